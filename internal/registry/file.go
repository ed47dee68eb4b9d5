package registry

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/healthwatch/internal/domain"
)

// File is the YAML seed format:
//
//	websites:
//	  - name: Shop
//	    url: https://shop.example.com
//	    alert_email: ops@example.com
//	    apps:
//	      - name: api
//	        app_type: backend
//	        url: https://api.shop.example.com/health
type File struct {
	Websites []FileWebsite `yaml:"websites"`
}

type FileWebsite struct {
	domain.Website `yaml:",inline"`
	Apps           []FileApp `yaml:"apps"`
}

type FileApp struct {
	ID                 domain.TargetID `yaml:"id"`
	Name               string          `yaml:"name"`
	AppType            domain.AppType  `yaml:"app_type"`
	URL                string          `yaml:"url"`
	Description        string          `yaml:"description"`
	IsActive           *bool           `yaml:"is_active"`
	TimeoutSeconds     int             `yaml:"timeout_seconds"`
	ExpectedStatusCode int             `yaml:"expected_status_code"`
}

// Seeded IDs are derived from names so that reloading the same file
// updates rows instead of duplicating them.
var seedNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("healthwatch"))

func websiteSeedID(name string) domain.TargetID {
	return domain.TargetID(uuid.NewSHA1(seedNamespace, []byte("website/"+name)).String())
}

func appSeedID(websiteID domain.TargetID, name string) domain.TargetID {
	return domain.TargetID(uuid.NewSHA1(seedNamespace, []byte("app/"+string(websiteID)+"/"+name)).String())
}

func ParseFile(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse targets: %w", err)
	}
	return f, nil
}

// LoadFile upserts every website and app in the YAML file at path and
// returns how many targets it touched.
func (r *Registry) LoadFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read targets file: %w", err)
	}
	f, err := ParseFile(data)
	if err != nil {
		return 0, err
	}

	n := 0
	for i := range f.Websites {
		fw := f.Websites[i]
		w := fw.Website
		if w.ID == "" {
			w.ID = websiteSeedID(w.Name)
		}
		if err := r.AddWebsite(ctx, &w); err != nil {
			return n, fmt.Errorf("website %q: %w", w.Name, err)
		}
		n++
		for _, fa := range fw.Apps {
			a := domain.InternalApp{
				ID:                 fa.ID,
				WebsiteID:          w.ID,
				Name:               fa.Name,
				AppType:            fa.AppType,
				URL:                fa.URL,
				Description:        fa.Description,
				IsActive:           fa.IsActive == nil || *fa.IsActive,
				TimeoutSeconds:     fa.TimeoutSeconds,
				ExpectedStatusCode: fa.ExpectedStatusCode,
			}
			if a.ID == "" {
				a.ID = appSeedID(w.ID, a.Name)
			}
			if err := r.AddApp(ctx, &a); err != nil {
				return n, fmt.Errorf("app %q of %q: %w", a.Name, w.Name, err)
			}
			n++
		}
	}
	r.Log.Info("targets_loaded", zap.String("path", path), zap.Int("count", n))
	return n, nil
}
