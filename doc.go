// Package casescan is a streaming scan engine for large collections of
// columnar court-opinion batch files. It applies a composable set of
// predicates (equality, not-null, range, and a nested-list existence
// test) to every record batch and produces either aggregate statistics
// or a filtered, re-materialized subset, under bounded memory and
// without row-by-row interpretation for the bulk of the work.
//
// The run drivers wire the component packages together:
//
//	dataset   file discovery and batched parquet reading
//	filter    predicate compilation and vectorized mask evaluation
//	aggregate scanned/matched totals, histograms, min/max
//	sink      lazy compressed parquet output
//	progress  transient scan-rate reporting
//
// # Counting
//
//	spec, _ := filter.ParseTokens([]string{"court_type=FD", "attorneys!=NULL", "court_type"})
//	res, err := casescan.Run(ctx, casescan.Config{Data: "hf_data"}, spec)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.TotalScanned(), res.TotalMatched())
//
// # Materializing a subset
//
//	res, err := casescan.Run(ctx, casescan.Config{
//	    Data:   "hf_data",
//	    Output: "subset.parquet",
//	}, spec)
//
// # Sharded scanning
//
// Because aggregation merge is associative and commutative, files can
// be sharded across workers and reduced at the end. RunSharded does
// exactly that; in materialize mode each worker writes its own output
// shard, and row order across shards is unspecified ("same set,
// arbitrary inter-shard order").
package casescan
