package datasync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/at-ishikawa/leetrecall/internal/ingest"
	"github.com/at-ishikawa/leetrecall/internal/review"
)

// ExportData holds every record in the store.
type ExportData struct {
	ExportedAt time.Time        `yaml:"exported_at"`
	Records    []ExportedRecord `yaml:"records"`
}

// ExportedRecord is one item and its review state.
type ExportedRecord struct {
	ID    string              `yaml:"id"`
	Item  *review.Item        `yaml:"item,omitempty"`
	State *review.ReviewState `yaml:"state,omitempty"`
}

// RecordSource lists every record. *review.Store implements it.
type RecordSource interface {
	All(ctx context.Context) ([]review.Record, error)
}

// Exporter reads the store and writes YAML snapshots.
type Exporter struct {
	source RecordSource
}

// NewExporter creates a new Exporter.
func NewExporter(source RecordSource) *Exporter {
	return &Exporter{source: source}
}

// Export reads all records sorted by id.
func (e *Exporter) Export(ctx context.Context, now time.Time) (*ExportData, error) {
	records, err := e.source.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("source.All() > %w", err)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})

	data := &ExportData{
		ExportedAt: now,
		Records:    make([]ExportedRecord, 0, len(records)),
	}
	for _, r := range records {
		data.Records = append(data.Records, ExportedRecord{
			ID:    r.ID,
			Item:  r.Item,
			State: r.State,
		})
	}
	return data, nil
}

// Write encodes data as YAML.
func (e *Exporter) Write(w io.Writer, data *ExportData) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoder.Encode() > %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("encoder.Close() > %w", err)
	}
	return nil
}

// Format is the encoding of an event file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from the file extension. Anything but
// .json is read as YAML.
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// LoadEvents decodes a list of completion events.
func LoadEvents(r io.Reader, format Format) ([]ingest.CompletionEvent, error) {
	var events []ingest.CompletionEvent
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&events); err != nil {
			return nil, fmt.Errorf("json.Decode() > %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&events); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("yaml.Decode() > %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported event format %q", format)
	}
	return events, nil
}

// LoadEventsFile reads the events in path.
func LoadEventsFile(path string) ([]ingest.CompletionEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s) > %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	return LoadEvents(f, FormatFromPath(path))
}
