package casescan

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/compute"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/caselab/casescan/aggregate"
	"github.com/caselab/casescan/dataset"
	"github.com/caselab/casescan/filter"
	"github.com/caselab/casescan/progress"
	"github.com/caselab/casescan/sink"
)

// batchObserver receives per-batch deltas for throughput accounting.
type batchObserver func(scannedDelta, matchedDelta int64)

// Run executes one sequential scan: discover files, compile the filter
// against the dataset schema, then stream batches through predicate
// evaluation, aggregation and (in materialize mode) the output sink.
//
// The scan is single-threaded and strictly ordered, file by file,
// batch by batch. Cancellation via ctx is cooperative and checked
// between batches; on cancellation or any fatal error the accumulated
// state is abandoned and any partially written output file is left
// as-is.
func Run(ctx context.Context, cfg Config, spec *filter.Spec) (*aggregate.ScanResult, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	ds, err := dataset.Open(cfg.Data, dataset.Options{Allocator: cfg.Allocator, Logger: cfg.Logger})
	if err != nil {
		return nil, err
	}
	agg, err := scanDataset(ctx, cfg, spec, ds, cfg.Output, reporterObserver(cfg.Progress))
	cfg.Progress.Done()
	if err != nil {
		return nil, err
	}
	return agg.Finalize(), nil
}

// reporterObserver adapts a progress reporter to per-batch deltas by
// keeping running totals in the closure.
func reporterObserver(r *progress.Reporter) batchObserver {
	var scanned, matched int64
	return func(s, m int64) {
		scanned += s
		matched += m
		r.Observe(scanned, matched)
	}
}

// scanDataset runs the scan loop over one dataset (the whole run, or
// one shard of it) and returns the unfinalized aggregator.
func scanDataset(ctx context.Context, cfg Config, spec *filter.Spec, ds *dataset.Dataset, outPath string, observe batchObserver) (*aggregate.Aggregator, error) {
	agg := aggregate.New(spec.GroupBy, spec.MinMax)
	if ds.NumFiles() == 0 {
		return agg, nil
	}

	ps, err := filter.Compile(spec, ds.Schema())
	if err != nil {
		return nil, err
	}

	// Materializing requires full rows; count-only reads just the
	// columns the spec touches.
	columns := spec.NeededColumns()
	if outPath != "" {
		columns = nil
	}

	var out *sink.Sink
	if outPath != "" {
		out = sink.New(outPath, sink.Options{Allocator: cfg.Allocator, Logger: cfg.Logger})
		defer out.Close()
	}

	sc, err := ds.Scan(ctx, dataset.ScanOptions{Columns: columns, BatchSize: cfg.BatchSize})
	if err != nil {
		return nil, err
	}
	defer sc.Close()

	for sc.Next() {
		rec := sc.Record()
		mask, err := ps.EvalMask(rec)
		if err != nil {
			return nil, err
		}
		agg.Observe(rec, mask)

		matched := filter.MatchCount(mask)
		if out != nil && matched > 0 {
			filtered, err := filterRecord(ctx, cfg.Allocator, rec, mask)
			if err != nil {
				return nil, err
			}
			err = out.Write(filtered)
			filtered.Release()
			if err != nil {
				return nil, err
			}
		}
		observe(rec.NumRows(), matched)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if out != nil {
		if err := out.Close(); err != nil {
			return nil, err
		}
	}
	return agg, nil
}

// filterRecord re-materializes the surviving rows of one batch using
// the Arrow selection kernel. The caller owns the returned record.
func filterRecord(ctx context.Context, alloc memory.Allocator, rec arrow.Record, mask []bool) (arrow.Record, error) {
	b := array.NewBooleanBuilder(alloc)
	defer b.Release()
	b.AppendValues(mask, nil)
	maskArr := b.NewBooleanArray()
	defer maskArr.Release()

	opts := compute.FilterOptions{NullSelection: compute.SelectionDropNulls}
	return compute.FilterRecordBatch(ctx, rec, maskArr, &opts)
}
