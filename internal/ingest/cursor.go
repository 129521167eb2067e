package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/at-ishikawa/leetrecall/internal/storage"
)

const cursorKey = "sync:cursor"

// SyncCursor records how far a sync session got through the event source.
type SyncCursor struct {
	Offset     int    `json:"offset" yaml:"offset" validate:"gte=0"`
	PageToken  string `json:"page_token,omitempty" yaml:"page_token,omitempty"`
	IsComplete bool   `json:"is_complete" yaml:"is_complete"`
}

// CursorRepository persists the SyncCursor.
type CursorRepository struct {
	kv       storage.KV
	validate *validator.Validate
}

// NewCursorRepository creates a new CursorRepository.
func NewCursorRepository(kv storage.KV) *CursorRepository {
	return &CursorRepository{
		kv:       kv,
		validate: newValidator(),
	}
}

// Load returns the persisted cursor, or an empty one when none is stored.
// A cursor that cannot be decoded or is invalid is deleted.
func (r *CursorRepository) Load(ctx context.Context) (*SyncCursor, error) {
	data, err := r.kv.Get(ctx, cursorKey)
	if err != nil {
		return nil, fmt.Errorf("kv.Get(%s) > %w", cursorKey, err)
	}
	if data == nil {
		return &SyncCursor{}, nil
	}

	var cursor SyncCursor
	err = json.Unmarshal(data, &cursor)
	if err == nil {
		err = r.validate.Struct(cursor)
	}
	if err != nil {
		slog.Default().Warn("clear invalid sync cursor",
			"value", string(data),
			"error", err,
		)
		if err := r.Reset(ctx); err != nil {
			return nil, err
		}
		return &SyncCursor{}, nil
	}
	return &cursor, nil
}

func (r *CursorRepository) Save(ctx context.Context, cursor *SyncCursor) error {
	if err := r.validate.Struct(cursor); err != nil {
		return fmt.Errorf("validate cursor: %w", err)
	}
	data, err := json.Marshal(cursor)
	if err != nil {
		return fmt.Errorf("encode cursor: %w", err)
	}
	if err := r.kv.Set(ctx, cursorKey, data); err != nil {
		return fmt.Errorf("kv.Set(%s) > %w", cursorKey, err)
	}
	return nil
}

// Reset removes the cursor so the next session starts from the beginning.
func (r *CursorRepository) Reset(ctx context.Context) error {
	if err := r.kv.Delete(ctx, cursorKey); err != nil {
		return fmt.Errorf("kv.Delete(%s) > %w", cursorKey, err)
	}
	return nil
}
