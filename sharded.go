package casescan

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/caselab/casescan/aggregate"
	"github.com/caselab/casescan/dataset"
	"github.com/caselab/casescan/filter"
)

// RunSharded executes the scan with files partitioned across up to
// workers goroutines. Each shard scans independently with its own
// aggregator; the shard results are merged at the end, which is sound
// because aggregation merge is associative and commutative.
//
// In materialize mode each shard writes its own output file, derived
// from cfg.Output by inserting a shard index ("subset.parquet" becomes
// "subset-00001.parquet", ...); only shards that matched at least one
// row produce a file. Row ordering across shards is unspecified: same
// set of rows, arbitrary inter-shard order.
//
// The first shard error cancels the remaining shards and is returned.
func RunSharded(ctx context.Context, cfg Config, spec *filter.Spec, workers int) (*aggregate.ScanResult, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if workers <= 1 {
		return Run(ctx, cfg, spec)
	}

	ds, err := dataset.Open(cfg.Data, dataset.Options{Allocator: cfg.Allocator, Logger: cfg.Logger})
	if err != nil {
		return nil, err
	}
	if ds.NumFiles() == 0 {
		return aggregate.New(spec.GroupBy, spec.MinMax).Finalize(), nil
	}

	// Validate the filter once against the dataset schema before any
	// worker starts, so a bad spec fails fast instead of mid-scan.
	if _, err := filter.Compile(spec, ds.Schema()); err != nil {
		return nil, err
	}

	shards := ds.Partition(workers)
	cfg.Logger.Debug("sharded scan", "files", ds.NumFiles(), "shards", len(shards))

	var scanned, matched atomic.Int64
	observe := func(s, m int64) {
		sc := scanned.Add(s)
		mc := matched.Add(m)
		cfg.Progress.Observe(sc, mc)
	}

	aggs := make([]*aggregate.Aggregator, len(shards))
	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		g.Go(func() error {
			out := ""
			if cfg.Output != "" {
				out = shardPath(cfg.Output, i)
			}
			agg, err := scanDataset(gctx, cfg, spec, shard, out, observe)
			if err != nil {
				return err
			}
			aggs[i] = agg
			return nil
		})
	}
	err = g.Wait()
	cfg.Progress.Done()
	if err != nil {
		return nil, err
	}

	total := aggs[0]
	for _, agg := range aggs[1:] {
		total.Merge(agg)
	}
	return total.Finalize(), nil
}

// shardPath derives a per-shard output path: "subset.parquet", shard 2
// becomes "subset-00002.parquet".
func shardPath(path string, shard int) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	return fmt.Sprintf("%s-%05d%s", base, shard, ext)
}
