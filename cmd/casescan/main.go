// Command casescan scans a directory of columnar court-opinion batch
// files, applies a token filter grammar, and prints counts and value
// histograms or materializes the matched rows into a parquet subset.
//
//	casescan count --data hf_data court_type=FD "attorneys!=NULL" court_type
//	casescan count --data hf_data "date_filed>=2001-01-01" --has-opinion
//	casescan subset --data hf_data -o subset.parquet court_type=FD --has-opinion
//	casescan preview --data hf_data
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/caselab/casescan"
	"github.com/caselab/casescan/aggregate"
	"github.com/caselab/casescan/dataset"
	"github.com/caselab/casescan/filter"
	"github.com/caselab/casescan/progress"
)

var flags struct {
	data          string
	output        string
	batchSize     int64
	hasOpinion    bool
	opinionColumn string
	opinionField  string
	minMax        []string
	top           int
	workers       int
	quiet         bool
	logLevel      string
}

var rootCmd = &cobra.Command{
	Use:           "casescan",
	Short:         "Streaming filter/count/subset tool for columnar court-opinion datasets",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(flags.logLevel)); err != nil {
			return fmt.Errorf("invalid log level %q", flags.logLevel)
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&flags.data, "data", "hf_data", "input directory or glob pattern of parquet files")
	rootCmd.PersistentFlags().Int64Var(&flags.batchSize, "batch-size", dataset.DefaultBatchSize, "rows per record batch")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&flags.quiet, "quiet", "q", false, "suppress the transient progress line")

	for _, cmd := range []*cobra.Command{countCmd, subsetCmd} {
		cmd.Flags().BoolVar(&flags.hasOpinion, "has-opinion", false, "keep only rows with at least one non-null opinion text")
		cmd.Flags().StringVar(&flags.opinionColumn, "opinion-column", filter.DefaultExistenceColumn, "nested list column for --has-opinion")
		cmd.Flags().StringVar(&flags.opinionField, "opinion-field", filter.DefaultExistenceField, "nested target field for --has-opinion")
		cmd.Flags().IntVar(&flags.workers, "workers", 1, "scan shards run in parallel (1 = sequential)")
	}
	countCmd.Flags().StringSliceVar(&flags.minMax, "min-max", nil, "track min/max of a column over matched rows (repeatable)")
	countCmd.Flags().IntVar(&flags.top, "top", 0, "print only the top N histogram entries (0 = all)")
	subsetCmd.Flags().StringVarP(&flags.output, "output", "o", "subset.parquet", "output parquet file")

	rootCmd.AddCommand(countCmd, subsetCmd, previewCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// buildSpec parses the positional filter tokens and applies the
// existence/min-max flags.
func buildSpec(tokens []string) (*filter.Spec, error) {
	spec, err := filter.ParseTokens(tokens)
	if err != nil {
		return nil, err
	}
	spec.Existence = flags.hasOpinion
	spec.ExistenceColumn = flags.opinionColumn
	spec.ExistenceField = flags.opinionField
	spec.MinMax = flags.minMax
	return spec, nil
}

func buildConfig(output string) casescan.Config {
	cfg := casescan.Config{
		Data:      flags.data,
		Output:    output,
		BatchSize: flags.batchSize,
	}
	if !flags.quiet {
		cfg.Progress = progress.New(os.Stderr, 0)
	}
	return cfg
}

func runScan(cmd *cobra.Command, cfg casescan.Config, spec *filter.Spec) (*aggregate.ScanResult, time.Duration, error) {
	start := time.Now()
	var (
		res *aggregate.ScanResult
		err error
	)
	if flags.workers > 1 {
		res, err = casescan.RunSharded(cmd.Context(), cfg, spec, flags.workers)
	} else {
		res, err = casescan.Run(cmd.Context(), cfg, spec)
	}
	return res, time.Since(start), err
}

var countCmd = &cobra.Command{
	Use:   "count [filters...]",
	Short: "Count matched rows and print value histograms",
	Long: `Count scans every batch file, applies the filter tokens and prints
total and matched row counts. A bare column name token requests a
value-count histogram over that column, accumulated from matched rows
and printed descending by frequency.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := buildSpec(args)
		if err != nil {
			return err
		}
		res, elapsed, err := runScan(cmd, buildConfig(""), spec)
		if err != nil {
			return err
		}
		printSummary(res, spec, elapsed)
		return nil
	},
}

var subsetCmd = &cobra.Command{
	Use:   "subset [filters...]",
	Short: "Materialize matched rows into one compressed parquet file",
	Long: `Subset scans like count but also writes every matched row, in scan
order, to the output file (zstd-compressed parquet). The file is
created lazily: a run matching zero rows produces no file. An existing
file at the output path is overwritten. With --workers > 1 each shard
writes its own output file and inter-shard row order is unspecified.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		spec, err := buildSpec(args)
		if err != nil {
			return err
		}
		res, elapsed, err := runScan(cmd, buildConfig(flags.output), spec)
		if err != nil {
			return err
		}
		printSummary(res, spec, elapsed)
		if res.TotalMatched() > 0 {
			fmt.Printf("Output: %s\n", flags.output)
		} else {
			fmt.Println("No rows matched; no output file written")
		}
		return nil
	},
}

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Print the dataset schema and per-file row counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := dataset.Open(flags.data, dataset.Options{})
		if err != nil {
			return err
		}
		fmt.Printf("Found %d parquet files, %s rows\n", ds.NumFiles(), humanize.Comma(ds.TotalRows()))
		for _, f := range ds.Files() {
			fmt.Printf("  %s: %s rows\n", f.Path, humanize.Comma(f.NumRows))
		}
		if schema := ds.Schema(); schema != nil {
			fmt.Println("\nSchema:")
			for _, f := range schema.Fields() {
				fmt.Printf("  %s: %s\n", f.Name, f.Type)
			}
		}
		return nil
	},
}

func printSummary(res *aggregate.ScanResult, spec *filter.Spec, elapsed time.Duration) {
	fmt.Printf("Scanned %s total rows in %.1fs\n", humanize.Comma(res.TotalScanned()), elapsed.Seconds())
	if desc := spec.Describe(); desc != "" {
		fmt.Printf("Filters: %s\n", desc)
	}
	fmt.Printf("Matched: %s rows\n", humanize.Comma(res.TotalMatched()))

	for _, col := range res.MinMaxColumns() {
		if minVal, maxVal, ok := res.MinMaxOf(col); ok {
			fmt.Printf("%s: min=%s max=%s\n", col, minVal, maxVal)
		} else {
			fmt.Printf("%s: no non-null values among matched rows\n", col)
		}
	}

	for _, col := range res.GroupColumns() {
		h := res.Group(col)
		entries := h.Entries()
		if flags.top > 0 {
			entries = h.Top(flags.top)
		}
		fmt.Printf("\n--- %s value counts (%d unique) ---\n", col, h.Len())
		for _, e := range entries {
			fmt.Printf("  %s: %s\n", e.Value, humanize.Comma(e.Count))
		}
	}
}
