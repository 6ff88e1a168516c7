// Package dataset discovers columnar batch files and streams them back
// as Arrow record batches, file by file, batch by batch, in source
// order.
//
// A Dataset is discovered once at startup and immutable afterwards:
// files matching the glob are listed, stably sorted by path, and each
// file's footer is read to capture its schema and row count. The first
// file's schema is the dataset schema; every later file must stay
// compatible with it for the columns a scan requests.
//
// All read failures are fatal (ErrSourceRead): there is no
// partial-file skip policy, a dataset with one unreadable file aborts
// the whole run.
package dataset

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/bmatcuk/doublestar/v4"
)

// ErrSourceRead indicates a data file cannot be opened or carries a
// schema incompatible with the requested columns. Always fatal for the
// run it occurs in.
var ErrSourceRead = errors.New("source read failed")

// DefaultBatchSize is the row count per record batch when ScanOptions
// does not override it.
const DefaultBatchSize = 65536

// File is one discovered data file: its path, the schema inferred from
// its footer, and the footer's row count. Immutable.
type File struct {
	Path    string
	Schema  *arrow.Schema
	NumRows int64
}

// Options configures dataset discovery and scanning.
type Options struct {
	// Allocator for Arrow memory management.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for discovery and scan events.
	// OPTIONAL: Uses slog.Default() if nil.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Allocator == nil {
		o.Allocator = memory.DefaultAllocator
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Dataset is an ordered, immutable set of discovered files sharing a
// compatible schema. Safe for concurrent use; every Scan gets its own
// iterator state.
type Dataset struct {
	files []File
	alloc memory.Allocator
	log   *slog.Logger
}

// Open discovers data files. pattern is either a directory, in which
// case its *.parquet files are taken, or a doublestar glob pattern.
// Every matched file's footer is read up front; an unreadable file is
// ErrSourceRead. An empty match set is a valid empty dataset, not an
// error.
func Open(pattern string, opts Options) (*Dataset, error) {
	opts = opts.withDefaults()

	if info, err := os.Stat(pattern); err == nil && info.IsDir() {
		pattern = filepath.Join(pattern, "*.parquet")
	}
	paths, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: bad file pattern %q: %v", ErrSourceRead, pattern, err)
	}
	sort.Strings(paths)

	ds := &Dataset{alloc: opts.Allocator, log: opts.Logger}
	for _, path := range paths {
		f, err := readFooter(path, opts.Allocator)
		if err != nil {
			return nil, err
		}
		ds.files = append(ds.files, f)
	}
	opts.Logger.Debug("dataset discovered", "pattern", pattern, "files", len(ds.files))
	return ds, nil
}

// readFooter opens only the file metadata: schema and row count.
func readFooter(path string, alloc memory.Allocator) (File, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return File{}, fmt.Errorf("%w: open %s: %v", ErrSourceRead, path, err)
	}
	defer rdr.Close()

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, alloc)
	if err != nil {
		return File{}, fmt.Errorf("%w: read %s: %v", ErrSourceRead, path, err)
	}
	schema, err := fr.Schema()
	if err != nil {
		return File{}, fmt.Errorf("%w: schema of %s: %v", ErrSourceRead, path, err)
	}
	return File{Path: path, Schema: schema, NumRows: rdr.NumRows()}, nil
}

// Files returns the discovered files in scan order.
func (d *Dataset) Files() []File { return d.files }

// NumFiles returns the number of discovered files.
func (d *Dataset) NumFiles() int { return len(d.files) }

// Schema returns the dataset schema: the first file's schema, or nil
// for an empty dataset.
func (d *Dataset) Schema() *arrow.Schema {
	if len(d.files) == 0 {
		return nil
	}
	return d.files[0].Schema
}

// TotalRows sums the footer row counts without reading any data.
func (d *Dataset) TotalRows() int64 {
	var n int64
	for _, f := range d.files {
		n += f.NumRows
	}
	return n
}

// Partition splits the dataset into at most n contiguous file shards
// for the parallel scan extension. Shards share the discovered file
// list (which is read-only) and each carries at least one file; fewer
// than n shards are returned when there are fewer files.
func (d *Dataset) Partition(n int) []*Dataset {
	if n < 1 {
		n = 1
	}
	if n > len(d.files) {
		n = len(d.files)
	}
	if n == 0 {
		return nil
	}
	shards := make([]*Dataset, 0, n)
	per := (len(d.files) + n - 1) / n
	for start := 0; start < len(d.files); start += per {
		end := start + per
		if end > len(d.files) {
			end = len(d.files)
		}
		shards = append(shards, &Dataset{files: d.files[start:end], alloc: d.alloc, log: d.log})
	}
	return shards
}
