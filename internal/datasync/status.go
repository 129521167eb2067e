package datasync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/at-ishikawa/leetrecall/internal/storage"
)

const statusKey = "sync:status"

// DefaultSyncInterval is how old the last sync may get before NeedsSync reports true.
const DefaultSyncInterval = 6 * time.Hour

// Status is the outcome of the most recent sync sessions.
type Status struct {
	LastSyncedAt  time.Time `json:"last_synced_at" yaml:"last_synced_at"`
	LastSessionID string    `json:"last_session_id" yaml:"last_session_id"`
	LastReport    *Report   `json:"last_report,omitempty" yaml:"last_report,omitempty"`
	LastError     string    `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	LastFailedAt  time.Time `json:"last_failed_at,omitzero" yaml:"last_failed_at,omitempty"`
}

// StatusRepository persists the sync Status.
type StatusRepository struct {
	kv storage.KV
}

// NewStatusRepository creates a new StatusRepository.
func NewStatusRepository(kv storage.KV) *StatusRepository {
	return &StatusRepository{kv: kv}
}

// Load returns the stored status, or nil when no session ever finished.
func (r *StatusRepository) Load(ctx context.Context) (*Status, error) {
	data, err := r.kv.Get(ctx, statusKey)
	if err != nil {
		return nil, fmt.Errorf("kv.Get(%s) > %w", statusKey, err)
	}
	if data == nil {
		return nil, nil
	}
	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("decode %s: %w", statusKey, err)
	}
	return &status, nil
}

func (r *StatusRepository) Save(ctx context.Context, status *Status) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("encode %s: %w", statusKey, err)
	}
	if err := r.kv.Set(ctx, statusKey, data); err != nil {
		return fmt.Errorf("kv.Set(%s) > %w", statusKey, err)
	}
	return nil
}

// NeedsSync reports whether no sync has completed yet or the last one is at
// least interval old. A non-positive interval uses DefaultSyncInterval.
func (r *StatusRepository) NeedsSync(ctx context.Context, now time.Time, interval time.Duration) (bool, error) {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	status, err := r.Load(ctx)
	if err != nil {
		return false, err
	}
	if status == nil || status.LastSyncedAt.IsZero() {
		return true, nil
	}
	return now.Sub(status.LastSyncedAt) >= interval, nil
}
