// Package registry is the read side of the monitored inventory plus the
// few maintenance operations (add, remove, seed from file).
package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/hamed0406/healthwatch/internal/domain"
	"github.com/hamed0406/healthwatch/internal/events"
	"github.com/hamed0406/healthwatch/internal/repo"
)

var ErrInvalid = errors.New("invalid target")

type Registry struct {
	Store repo.TargetStore
	Bus   *events.Bus
	Log   *zap.Logger
}

func New(store repo.TargetStore, bus *events.Bus, log *zap.Logger) *Registry {
	return &Registry{Store: store, Bus: bus, Log: log}
}

// Snapshot holds the targets eligible for a cycle.
type Snapshot struct {
	Websites []*domain.Website
	Apps     []*domain.InternalApp
}

func (s Snapshot) Targets() []domain.Target {
	out := make([]domain.Target, 0, len(s.Websites)+len(s.Apps))
	for _, w := range s.Websites {
		out = append(out, w)
	}
	for _, a := range s.Apps {
		out = append(out, a)
	}
	return out
}

func (s Snapshot) Len() int { return len(s.Websites) + len(s.Apps) }

func (r *Registry) Snapshot(ctx context.Context) (Snapshot, error) {
	ws, err := r.Store.Websites(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list websites: %w", err)
	}
	as, err := r.Store.Apps(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list apps: %w", err)
	}
	var snap Snapshot
	for _, w := range ws {
		if w.Eligible() {
			snap.Websites = append(snap.Websites, w)
		}
	}
	for _, a := range as {
		if a.Eligible() {
			snap.Apps = append(snap.Apps, a)
		}
	}
	return snap, nil
}

// Resolve loads one target regardless of eligibility.
func (r *Registry) Resolve(ctx context.Context, ref domain.TargetRef) (domain.Target, error) {
	switch ref.Kind {
	case domain.KindWebsite:
		return r.Store.Website(ctx, ref.ID)
	case domain.KindApp:
		return r.Store.App(ctx, ref.ID)
	}
	return nil, fmt.Errorf("target kind %q: %w", ref.Kind, ErrInvalid)
}

// AppsOf returns the internal apps of one website, eligible or not.
func (r *Registry) AppsOf(ctx context.Context, websiteID domain.TargetID) ([]*domain.InternalApp, error) {
	all, err := r.Store.Apps(ctx)
	if err != nil {
		return nil, err
	}
	var out []*domain.InternalApp
	for _, a := range all {
		if a.WebsiteID == websiteID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *Registry) Websites(ctx context.Context) ([]*domain.Website, error) {
	return r.Store.Websites(ctx)
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validateWebsite(w *domain.Website) error {
	switch {
	case w.Name == "":
		return fmt.Errorf("name required: %w", ErrInvalid)
	case !validURL(w.URL):
		return fmt.Errorf("url %q: %w", w.URL, ErrInvalid)
	case !w.Status.Valid():
		return fmt.Errorf("status %q: %w", w.Status, ErrInvalid)
	}
	return nil
}

func validateApp(a *domain.InternalApp) error {
	switch {
	case a.Name == "":
		return fmt.Errorf("name required: %w", ErrInvalid)
	case a.WebsiteID == "":
		return fmt.Errorf("website id required: %w", ErrInvalid)
	case !validURL(a.URL):
		return fmt.Errorf("url %q: %w", a.URL, ErrInvalid)
	}
	return nil
}

// AddWebsite creates or updates w. A TargetAdded event is published only
// for websites that did not exist before.
func (r *Registry) AddWebsite(ctx context.Context, w *domain.Website) error {
	w.ApplyDefaults()
	if err := validateWebsite(w); err != nil {
		return err
	}
	existed := false
	if w.ID != "" {
		_, err := r.Store.Website(ctx, w.ID)
		existed = err == nil
	}
	if err := r.Store.SaveWebsite(ctx, w); err != nil {
		return fmt.Errorf("save website: %w", err)
	}
	if !existed {
		r.publish(ctx, events.WebsiteEvent(events.TargetAdded, w))
	}
	return nil
}

func (r *Registry) AddApp(ctx context.Context, a *domain.InternalApp) error {
	a.ApplyDefaults()
	if err := validateApp(a); err != nil {
		return err
	}
	existed := false
	if a.ID != "" {
		_, err := r.Store.App(ctx, a.ID)
		existed = err == nil
	}
	if err := r.Store.SaveApp(ctx, a); err != nil {
		return fmt.Errorf("save app: %w", err)
	}
	if !existed {
		r.publish(ctx, events.AppEvent(events.TargetAdded, a))
	}
	return nil
}

// RemoveWebsite deletes the website together with its apps, history and alerts.
func (r *Registry) RemoveWebsite(ctx context.Context, id domain.TargetID) error {
	w, err := r.Store.Website(ctx, id)
	if err != nil {
		return err
	}
	if err := r.Store.DeleteWebsite(ctx, id); err != nil {
		return fmt.Errorf("delete website: %w", err)
	}
	r.publish(ctx, events.WebsiteEvent(events.TargetRemoved, w))
	return nil
}

func (r *Registry) RemoveApp(ctx context.Context, id domain.TargetID) error {
	a, err := r.Store.App(ctx, id)
	if err != nil {
		return err
	}
	if err := r.Store.DeleteApp(ctx, id); err != nil {
		return fmt.Errorf("delete app: %w", err)
	}
	r.publish(ctx, events.AppEvent(events.TargetRemoved, a))
	return nil
}

// publish never fails the caller; the store change already happened.
func (r *Registry) publish(ctx context.Context, e events.Event) {
	if r.Bus == nil {
		return
	}
	if err := r.Bus.Publish(ctx, e); err != nil {
		r.Log.Warn("event_handlers_failed",
			zap.String("target", e.Target.String()),
			zap.String("kind", string(e.Kind)),
			zap.Error(err),
		)
	}
}
