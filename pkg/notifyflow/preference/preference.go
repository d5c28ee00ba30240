// Package preference stores per-user opt-in choices for subscribable event
// kinds.
package preference

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/notifyflow/pkg/notifyflow/event"
)

// ErrNotSubscribable is returned when setting a preference for a kind users
// cannot toggle.
var ErrNotSubscribable = errors.New("event kind is not subscribable")

// Preferences maps kinds to a user's explicit choice.
// Kinds without an entry fall back to the taxonomy default.
type Preferences map[event.Kind]bool

// Enabled returns the effective preference for kind.
func (p Preferences) Enabled(kind event.Kind) bool {
	if v, ok := p[kind]; ok {
		return v
	}
	meta, err := event.MetadataFor(kind)
	if err != nil {
		return false
	}
	return meta.DefaultEnabled
}

// Store reads and writes user preferences.
type Store interface {
	GetPreferences(ctx context.Context, tenantID, userID string) (Preferences, error)
	SetPreference(ctx context.Context, tenantID, userID string, kind event.Kind, enabled bool) error
}

// Effective lists the effective preference for every subscribable kind.
// Preference screens use it to show defaults alongside explicit choices.
func Effective(ctx context.Context, store Store, tenantID, userID string) (Preferences, error) {
	prefs, err := store.GetPreferences(ctx, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	kinds := event.SubscribableKinds()
	out := make(Preferences, len(kinds))
	for _, k := range kinds {
		out[k] = prefs.Enabled(k)
	}
	return out, nil
}

func checkSubscribable(kind event.Kind) error {
	meta, err := event.MetadataFor(kind)
	if err != nil {
		return err
	}
	if !meta.Subscribable {
		return fmt.Errorf("%s: %w", kind, ErrNotSubscribable)
	}
	return nil
}
