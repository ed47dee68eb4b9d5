package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hamed0406/healthwatch/internal/domain"
)

var (
	checkWebsiteID string
	checkAppID     string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check one website (with its apps) or one internal app right now",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		switch {
		case checkWebsiteID != "" && checkAppID != "":
			return errors.New("pass either --website-id or --app-id, not both")
		case checkAppID != "":
			ref := domain.TargetRef{Kind: domain.KindApp, ID: domain.TargetID(checkAppID)}
			t, err := svc.Registry.Resolve(ctx, ref)
			if err != nil {
				return err
			}
			r, err := svc.Monitor.CheckTarget(ctx, ref)
			if err != nil {
				return err
			}
			fmt.Println(resultLine(t.DisplayName(), r))
			return nil
		case checkWebsiteID != "":
			id := domain.TargetID(checkWebsiteID)
			rs, err := svc.Monitor.CheckWebsite(ctx, id)
			names := map[domain.TargetRef]string{}
			if w, werr := svc.Registry.Resolve(ctx, domain.TargetRef{Kind: domain.KindWebsite, ID: id}); werr == nil {
				names[w.Ref()] = w.DisplayName()
			}
			apps, _ := svc.Registry.AppsOf(ctx, id)
			for _, a := range apps {
				names[a.Ref()] = "  " + a.DisplayName()
			}
			for _, r := range rs {
				fmt.Println(resultLine(names[r.Target], r))
			}
			return err
		}
		return errors.New("one of --website-id or --app-id is required")
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkWebsiteID, "website-id", "", "website to check, together with its active apps")
	checkCmd.Flags().StringVar(&checkAppID, "app-id", "", "internal app to check")
}
