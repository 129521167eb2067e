// Package datasync drives sync sessions that feed completion events into the review store.
package datasync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/at-ishikawa/leetrecall/internal/batch"
	"github.com/at-ishikawa/leetrecall/internal/ingest"
	"github.com/at-ishikawa/leetrecall/internal/storage"
)

// ErrNotStarted is returned when a session is used before Start.
var ErrNotStarted = errors.New("sync session not started")

// Page is one batch of events from the event source together with the cursor
// position right after it.
type Page struct {
	Events []ingest.CompletionEvent
	Cursor ingest.SyncCursor
}

// Report summarizes one session.
type Report struct {
	SessionID     string    `json:"session_id" yaml:"session_id"`
	Total         int       `json:"total" yaml:"total"`
	Processed     int       `json:"processed" yaml:"processed"`
	Pages         int       `json:"pages" yaml:"pages"`
	Initialized   int       `json:"initialized" yaml:"initialized"`
	Malformed     int       `json:"malformed" yaml:"malformed"`
	FailedBatches int       `json:"failed_batches" yaml:"failed_batches"`
	StartedAt     time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time `json:"finished_at" yaml:"finished_at"`
}

// Session is one sync run. Pages are merged one at a time in the order
// Progress receives them.
type Session struct {
	id        string
	merger    *ingest.Merger
	cursors   *ingest.CursorRepository
	statuses  *StatusRepository
	processor *batch.Processor[Page]
	now       func() time.Time

	mu      sync.Mutex
	started bool
	report  Report
}

// Option configures a Session.
type Option func(*sessionOptions)

type sessionOptions struct {
	pollInterval time.Duration
	now          func() time.Time
}

// WithPollInterval sets how often Complete checks whether all pages were merged.
func WithPollInterval(d time.Duration) Option {
	return func(o *sessionOptions) {
		o.pollInterval = d
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *sessionOptions) {
		o.now = now
	}
}

// NewSession creates a session that merges pages with merger and keeps its
// cursor and status in kv.
func NewSession(kv storage.KV, merger *ingest.Merger, opts ...Option) *Session {
	o := sessionOptions{
		pollInterval: batch.DefaultPollInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		id:       uuid.NewString(),
		merger:   merger,
		cursors:  ingest.NewCursorRepository(kv),
		statuses: NewStatusRepository(kv),
		now:      o.now,
	}
	s.processor = batch.NewProcessor(s.applyPage, batch.WithPollInterval(o.pollInterval))
	return s
}

func (s *Session) ID() string {
	return s.id
}

// Start begins the session and returns the cursor to resume from.
// fresh discards any persisted cursor; a cursor left complete by the previous
// session is discarded too.
func (s *Session) Start(ctx context.Context, totalExpected int, fresh bool) (*ingest.SyncCursor, error) {
	cursor, err := s.cursors.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("cursors.Load() > %w", err)
	}
	if fresh || cursor.IsComplete {
		if err := s.cursors.Reset(ctx); err != nil {
			return nil, fmt.Errorf("cursors.Reset() > %w", err)
		}
		cursor = &ingest.SyncCursor{}
	}

	s.mu.Lock()
	s.started = true
	s.report = Report{
		SessionID: s.id,
		Total:     totalExpected,
		Processed: cursor.Offset,
		StartedAt: s.now(),
	}
	s.mu.Unlock()

	slog.Default().Info("sync started",
		"session_id", s.id,
		"total", totalExpected,
		"offset", cursor.Offset,
		"fresh", fresh,
	)
	return cursor, nil
}

// Progress queues page for merging. It never blocks.
func (s *Session) Progress(page Page) {
	s.processor.Enqueue(page)
}

func (s *Session) applyPage(ctx context.Context, page Page) error {
	result, err := s.merger.Merge(ctx, page.Events)
	if err != nil {
		return fmt.Errorf("merger.Merge(%d events) > %w", len(page.Events), err)
	}
	// The cursor stays behind the first failed page so a later session retries it.
	if failed := s.processor.Stats().Failed; failed > 0 {
		slog.Default().Warn("sync cursor held after a failed page",
			"session_id", s.id,
			"failed_batches", failed,
			"page_end", page.Cursor.Offset,
		)
	} else if err := s.cursors.Save(ctx, &page.Cursor); err != nil {
		return fmt.Errorf("cursors.Save() > %w", err)
	}

	s.mu.Lock()
	s.report.Processed += result.Received
	s.report.Pages++
	s.report.Initialized += result.Initialized
	s.report.Malformed += result.Malformed
	processed, total := s.report.Processed, s.report.Total
	s.mu.Unlock()

	slog.Default().Debug("sync page merged",
		"session_id", s.id,
		"processed", processed,
		"total", total,
		"initialized", result.Initialized,
	)
	return nil
}

// Snapshot returns the running counters.
func (s *Session) Snapshot() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.report
	r.FailedBatches = s.processor.Stats().Failed
	return r
}

// Complete waits until every queued page was merged, then marks the cursor
// complete and records the sync time. ctx bounds the wait.
// When a page failed, the cursor is left where the failed page starts and the
// failure is recorded as the last sync error instead.
func (s *Session) Complete(ctx context.Context) (*Report, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	if err := s.processor.WaitDrained(ctx); err != nil {
		return nil, fmt.Errorf("processor.WaitDrained() > %w", err)
	}

	report := s.Snapshot()
	report.FinishedAt = s.now()

	if report.FailedBatches == 0 {
		cursor, err := s.cursors.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("cursors.Load() > %w", err)
		}
		cursor.IsComplete = true
		if err := s.cursors.Save(ctx, cursor); err != nil {
			return nil, fmt.Errorf("cursors.Save() > %w", err)
		}
	}

	status, err := s.statuses.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("statuses.Load() > %w", err)
	}
	if status == nil {
		status = &Status{}
	}
	status.LastSessionID = s.id
	status.LastReport = &report
	if report.FailedBatches > 0 {
		status.LastError = fmt.Sprintf("%d of %d pages failed", report.FailedBatches, report.Pages+report.FailedBatches)
		status.LastFailedAt = report.FinishedAt
	} else {
		status.LastSyncedAt = report.FinishedAt
		status.LastError = ""
	}
	if err := s.statuses.Save(ctx, status); err != nil {
		return nil, fmt.Errorf("statuses.Save() > %w", err)
	}

	if report.FailedBatches > 0 {
		slog.Default().Warn("sync finished with failed pages",
			"session_id", s.id,
			"processed", report.Processed,
			"total", report.Total,
			"failed_batches", report.FailedBatches,
		)
		return &report, nil
	}
	slog.Default().Info("sync completed",
		"session_id", s.id,
		"processed", report.Processed,
		"total", report.Total,
		"initialized", report.Initialized,
	)
	return &report, nil
}

// Fail records reason as the last sync error. The cursor is kept so the next
// session resumes where this one stopped.
func (s *Session) Fail(ctx context.Context, reason error) error {
	slog.Default().Error("sync failed",
		"session_id", s.id,
		"error", reason,
	)

	status, err := s.statuses.Load(ctx)
	if err != nil {
		return fmt.Errorf("statuses.Load() > %w", err)
	}
	if status == nil {
		status = &Status{}
	}
	status.LastError = reason.Error()
	status.LastFailedAt = s.now()
	if err := s.statuses.Save(ctx, status); err != nil {
		return fmt.Errorf("statuses.Save() > %w", err)
	}
	return nil
}

func (s *Session) isStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Paginate splits events into pages of size, skipping the first offset events.
// Each page carries the cursor positioned after its last event.
func Paginate(events []ingest.CompletionEvent, offset, size int) []Page {
	if size <= 0 {
		size = len(events)
	}
	if offset < 0 {
		offset = 0
	}
	var pages []Page
	for start := offset; start < len(events); start += size {
		end := min(start+size, len(events))
		pages = append(pages, Page{
			Events: events[start:end],
			Cursor: ingest.SyncCursor{Offset: end},
		})
	}
	return pages
}
