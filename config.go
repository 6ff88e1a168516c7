package casescan

import (
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/caselab/casescan/dataset"
	"github.com/caselab/casescan/filter"
	"github.com/caselab/casescan/progress"
	"github.com/caselab/casescan/sink"
)

// Config contains configuration for one scan run. It is constructed at
// startup and passed into the driver; nothing in the engine reads
// process-wide state.
type Config struct {
	// Data is the input directory or glob pattern of parquet files.
	// REQUIRED: MUST NOT be empty.
	Data string

	// Output is the path of the materialized subset file.
	// OPTIONAL: If empty, the run is count-only and no file is written.
	// An existing file at this path is silently overwritten. Even in
	// materialize mode no file is created when zero rows match.
	Output string

	// BatchSize is the maximum row count per record batch.
	// OPTIONAL: dataset.DefaultBatchSize if <= 0.
	BatchSize int64

	// Allocator for Arrow memory management.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for run events.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger

	// Progress receives per-batch scan totals.
	// OPTIONAL: nil disables progress reporting entirely.
	Progress *progress.Reporter
}

func (c Config) withDefaults() Config {
	if c.Allocator == nil {
		c.Allocator = memory.DefaultAllocator
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func (c Config) validate() error {
	if c.Data == "" {
		return fmt.Errorf("config: Data is required")
	}
	return nil
}

// Errors surfaced by a run. All are fatal: the run stops immediately,
// and the accumulated ScanResult and any output file stay at their
// last-flushed state.
var (
	// ErrSourceRead: a data file cannot be opened or has a schema
	// incompatible with the requested columns.
	ErrSourceRead = dataset.ErrSourceRead

	// ErrPredicate: the filter references a column absent from the
	// schema (or of an unsupported type). Raised before scanning.
	ErrPredicate = filter.ErrPredicate

	// ErrSinkSchema: a batch's schema diverged from the output file's.
	ErrSinkSchema = sink.ErrSinkSchema
)
