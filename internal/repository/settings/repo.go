// Package settings persists the operator-editable settings blob. Load always
// returns a complete snapshot: stored values layered over the defaults, then
// normalized, so callers never see a partial or out-of-range configuration.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/linkmesh/internal/db"
	"github.com/kailas-cloud/linkmesh/internal/domain"
)

var settingsKey = domain.KeyPrefix + "settings"

// store is the consumer interface for settings (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Del(ctx context.Context, keys ...string) error
}

// Repo implements domain.SettingsSource over a JSON key-value blob.
type Repo struct {
	store store
}

var _ domain.SettingsSource = (*Repo)(nil)

// New creates a settings repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Load returns the current snapshot. A missing blob yields the defaults.
func (r *Repo) Load(ctx context.Context) (domain.Settings, error) {
	data, err := r.store.Get(ctx, settingsKey)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.DefaultSettings(), nil
		}
		return domain.Settings{}, fmt.Errorf("get %s: %w", settingsKey, err)
	}

	// Unmarshal over the defaults so keys absent from an older blob keep
	// their documented values.
	s := domain.DefaultSettings()
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	return s.Normalize(), nil
}

// Save persists a full snapshot, normalized first.
func (r *Repo) Save(ctx context.Context, s domain.Settings) error {
	data, err := json.Marshal(s.Normalize())
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := r.store.Set(ctx, settingsKey, data); err != nil {
		return fmt.Errorf("set %s: %w", settingsKey, err)
	}
	return nil
}

// Reset drops the stored blob, returning the system to defaults.
func (r *Repo) Reset(ctx context.Context) error {
	if err := r.store.Del(ctx, settingsKey); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("del %s: %w", settingsKey, err)
	}
	return nil
}
