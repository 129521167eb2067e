// Package ingest folds completion events into the review store.
package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/at-ishikawa/leetrecall/internal/review"
)

// ErrMalformedEvent marks an event that is skipped during a merge.
var ErrMalformedEvent = errors.New("malformed completion event")

// Metadata describes the completed item.
type Metadata struct {
	Title      string   `json:"title" yaml:"title"`
	Difficulty string   `json:"difficulty" yaml:"difficulty"`
	Tags       []string `json:"tags" yaml:"tags"`
	URL        string   `json:"url,omitempty" yaml:"url,omitempty"`
}

// CompletionEvent reports that an item was completed at AcceptedAt.
type CompletionEvent struct {
	ItemID     string    `json:"item_id" yaml:"item_id" validate:"required,max=255"`
	Metadata   Metadata  `json:"metadata" yaml:"metadata"`
	AcceptedAt time.Time `json:"accepted_at" yaml:"accepted_at" validate:"required"`
}

func (e CompletionEvent) patch() review.ItemPatch {
	return review.ItemPatch{
		Title:       e.Metadata.Title,
		Difficulty:  e.Metadata.Difficulty,
		Tags:        e.Metadata.Tags,
		URL:         e.Metadata.URL,
		CompletedAt: e.AcceptedAt,
	}
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func validateEvent(validate *validator.Validate, event *CompletionEvent) error {
	event.ItemID = strings.TrimSpace(event.ItemID)
	if err := validate.Struct(event); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			fields := make([]string, 0, len(validationErrors))
			for _, fe := range validationErrors {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrMalformedEvent, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}
	return nil
}
