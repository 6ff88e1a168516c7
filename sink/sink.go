// Package sink materializes matched record batches into one compressed
// parquet output file.
//
// The sink is a small state machine: Uninitialized until the first
// batch with at least one row arrives, at which point the output file
// is created (silently overwriting any existing file), the schema and
// compression codec are fixed, and the state becomes Open. Every later
// batch is appended as its own row group and must carry the same
// schema. Close flushes and finalizes. If no non-empty batch is ever
// written, no output file is created at all.
//
// On a fatal error mid-run the file is left at its last flushed state;
// callers get whatever row groups were completed, never a repaired or
// deleted file.
package sink

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ErrSinkSchema indicates a batch's schema diverged from the schema the
// output file was opened with. Fatal; the file keeps its last flushed
// contents.
var ErrSinkSchema = errors.New("sink schema mismatch")

// Options configures a Sink.
type Options struct {
	// Allocator for Arrow memory management.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for sink lifecycle events.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger

	// Compression for the output file, fixed at open time.
	// OPTIONAL: zstd if unset.
	Compression compress.Compression
}

// Sink writes matched batches to one parquet file, lazily.
type Sink struct {
	path  string
	alloc memory.Allocator
	log   *slog.Logger
	codec compress.Compression

	w      *pqarrow.FileWriter
	schema *arrow.Schema
	opened bool
	rows   int64
	closed bool
}

// New creates an uninitialized sink for path. No file is touched until
// the first non-empty batch is written.
func New(path string, opts Options) *Sink {
	if opts.Allocator == nil {
		opts.Allocator = memory.DefaultAllocator
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	codec := opts.Compression
	if codec == compress.Codecs.Uncompressed {
		codec = compress.Codecs.Zstd
	}
	return &Sink{path: path, alloc: opts.Allocator, log: opts.Logger, codec: codec}
}

// Write appends one batch of matched rows. An empty batch is a no-op
// and does not open the file. The first non-empty batch fixes the
// output schema; a later batch with a different schema is
// ErrSinkSchema.
func (s *Sink) Write(rec arrow.Record) error {
	if s.closed {
		return fmt.Errorf("write to closed sink %s", s.path)
	}
	if rec.NumRows() == 0 {
		return nil
	}
	if s.w == nil {
		if err := s.open(rec.Schema()); err != nil {
			return err
		}
	}
	if !rec.Schema().Equal(s.schema) {
		return fmt.Errorf("%w: %s: batch schema diverged from the schema the file was opened with",
			ErrSinkSchema, s.path)
	}
	if err := s.w.Write(rec); err != nil {
		return fmt.Errorf("writing %s: %w", s.path, err)
	}
	s.rows += rec.NumRows()
	return nil
}

func (s *Sink) open(schema *arrow.Schema) error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", s.path, err)
	}
	props := parquet.NewWriterProperties(
		parquet.WithCompression(s.codec),
		parquet.WithAllocator(s.alloc),
	)
	w, err := pqarrow.NewFileWriter(schema, f, props, pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return fmt.Errorf("opening writer for %s: %w", s.path, err)
	}
	s.w = w
	s.schema = schema
	s.opened = true
	s.log.Debug("sink opened", "path", s.path, "compression", s.codec)
	return nil
}

// Rows returns the number of rows written so far.
func (s *Sink) Rows() int64 { return s.rows }

// Created reports whether an output file was opened, i.e. at least one
// non-empty batch arrived.
func (s *Sink) Created() bool { return s.opened }

// Close finalizes and closes the output file if one was opened.
// Idempotent; calling Close on a sink that never opened is a no-op and
// leaves no file behind.
func (s *Sink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.w == nil {
		return nil
	}
	// The writer owns the file handle and closes it.
	err := s.w.Close()
	s.w = nil
	if err != nil {
		return fmt.Errorf("finalizing %s: %w", s.path, err)
	}
	s.log.Debug("sink closed", "path", s.path, "rows", s.rows)
	return nil
}
