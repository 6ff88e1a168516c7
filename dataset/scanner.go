package dataset

import (
	"context"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

// ScanOptions controls one scan pass over a dataset.
type ScanOptions struct {
	// Columns restricts the read to the named top-level columns.
	// nil reads full rows (required when the existence predicate or an
	// otherwise uninferrable column is in play).
	Columns []string

	// BatchSize is the maximum row count per yielded batch.
	// OPTIONAL: DefaultBatchSize if <= 0.
	BatchSize int64
}

// Scan starts a sequential pass over the dataset. The returned Scanner
// yields at most BatchSize rows per batch, in file order then in-file
// order. The caller must Close the scanner.
func (d *Dataset) Scan(ctx context.Context, opts ScanOptions) (*Scanner, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Scanner{
		ctx:  ctx,
		ds:   d,
		opts: opts,
	}, nil
}

// Scanner streams record batches from a dataset. Iterate with Next,
// read the current batch with Record; the batch stays valid until the
// next call to Next or Close. Not safe for concurrent use.
type Scanner struct {
	ctx  context.Context
	ds   *Dataset
	opts ScanOptions

	fileIdx int
	rdr     *file.Reader
	rr      pqarrow.RecordReader
	cur     arrow.Record
	err     error
}

// Next advances to the next non-empty batch. It returns false at end
// of input, on context cancellation, or on error; check Err afterwards.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}
	if s.cur != nil {
		s.cur.Release()
		s.cur = nil
	}
	for {
		if err := s.ctx.Err(); err != nil {
			s.err = err
			return false
		}
		if s.rr == nil {
			if s.fileIdx >= len(s.ds.files) {
				return false
			}
			if err := s.openFile(s.ds.files[s.fileIdx]); err != nil {
				s.err = err
				return false
			}
		}
		if s.rr.Next() {
			rec := s.rr.Record()
			if rec == nil || rec.NumRows() == 0 {
				continue
			}
			rec.Retain()
			s.cur = rec
			return true
		}
		if err := s.rr.Err(); err != nil && err != io.EOF {
			s.err = fmt.Errorf("%w: reading %s: %v", ErrSourceRead, s.ds.files[s.fileIdx].Path, err)
			return false
		}
		s.closeFile()
		s.fileIdx++
	}
}

// Record returns the current batch. Valid only after a true Next and
// only until the next Next or Close call; callers needing the batch
// longer must Retain it.
func (s *Scanner) Record() arrow.Record { return s.cur }

// Err returns the error that stopped iteration, if any.
func (s *Scanner) Err() error { return s.err }

// File returns the path of the file the current batch came from.
func (s *Scanner) File() string {
	if s.fileIdx < len(s.ds.files) {
		return s.ds.files[s.fileIdx].Path
	}
	return ""
}

// Close releases the current batch and any open file.
func (s *Scanner) Close() {
	if s.cur != nil {
		s.cur.Release()
		s.cur = nil
	}
	s.closeFile()
}

func (s *Scanner) openFile(f File) error {
	if err := s.checkSchema(f); err != nil {
		return err
	}

	rdr, err := file.OpenParquetFile(f.Path, false)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrSourceRead, f.Path, err)
	}

	var colIndices []int
	if s.opts.Columns != nil {
		colIndices = leafIndices(rdr, s.opts.Columns)
	}

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: s.opts.BatchSize}, s.ds.alloc)
	if err != nil {
		rdr.Close()
		return fmt.Errorf("%w: read %s: %v", ErrSourceRead, f.Path, err)
	}
	rr, err := fr.GetRecordReader(s.ctx, colIndices, nil)
	if err != nil {
		rdr.Close()
		return fmt.Errorf("%w: record reader for %s: %v", ErrSourceRead, f.Path, err)
	}

	s.rdr = rdr
	s.rr = rr
	s.ds.log.Debug("scanning file", "path", f.Path, "rows", f.NumRows)
	return nil
}

// checkSchema verifies the file can serve this scan: every requested
// column present with the dataset schema's type, or, for full-row
// reads, a schema equal to the dataset schema.
func (s *Scanner) checkSchema(f File) error {
	want := s.ds.Schema()
	if s.opts.Columns == nil {
		if !f.Schema.Equal(want) {
			return fmt.Errorf("%w: %s: schema differs from dataset schema", ErrSourceRead, f.Path)
		}
		return nil
	}
	for _, col := range s.opts.Columns {
		indices := f.Schema.FieldIndices(col)
		if len(indices) == 0 {
			return fmt.Errorf("%w: %s: column %q not present", ErrSourceRead, f.Path, col)
		}
		have := f.Schema.Field(indices[0]).Type
		if wi := want.FieldIndices(col); len(wi) > 0 && !arrow.TypeEqual(have, want.Field(wi[0]).Type) {
			return fmt.Errorf("%w: %s: column %q is %s, dataset schema has %s",
				ErrSourceRead, f.Path, col, have, want.Field(wi[0]).Type)
		}
	}
	return nil
}

// leafIndices maps top-level column names to the parquet leaf column
// indices pqarrow projects by. Nested columns expand to several leaves,
// so the mapping goes through each leaf's root path element rather than
// the arrow field index.
func leafIndices(rdr *file.Reader, cols []string) []int {
	want := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		want[c] = struct{}{}
	}
	sc := rdr.MetaData().Schema
	var out []int
	for i := 0; i < sc.NumColumns(); i++ {
		root := sc.Column(i).ColumnPath()[0]
		if _, ok := want[root]; ok {
			out = append(out, i)
		}
	}
	return out
}

func (s *Scanner) closeFile() {
	if s.rr != nil {
		s.rr.Release()
		s.rr = nil
	}
	if s.rdr != nil {
		s.rdr.Close()
		s.rdr = nil
	}
}
