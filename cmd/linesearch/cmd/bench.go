package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/linesearch/internal/corpus"
	"github.com/Aman-CERP/linesearch/internal/index"
	"github.com/Aman-CERP/linesearch/internal/logging"
	"github.com/Aman-CERP/linesearch/internal/output"
	"github.com/Aman-CERP/linesearch/internal/profiling"
)

// BenchResult is one mode's measurements.
type BenchResult struct {
	Mode      string        `json:"mode"`
	Lines     int           `json:"lines"`
	Build     time.Duration `json:"build_ns"`
	HeapBytes uint64        `json:"heap_bytes"`
	MeanQuery time.Duration `json:"mean_query_ns"`
	Queries   int           `json:"queries"`
}

func newBenchCmd() *cobra.Command {
	var (
		corpusPath string
		samples    int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Compare the search modes on a corpus",
		Long: `Build every search mode over the corpus and report build time, heap
growth and mean lookup time. The lookups mix lines present in the corpus
with lines that are not; every mode must give the same answers.`,
		Example: `  linesearch bench --corpus ./200k.txt
  linesearch bench --samples 5000 --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path := cfg.Corpus.Path
			if corpusPath != "" {
				if path, err = filepath.Abs(corpusPath); err != nil {
					return fmt.Errorf("failed to resolve corpus path: %w", err)
				}
			}
			if path == "" {
				return fmt.Errorf("no corpus: set corpus.path or pass --corpus")
			}

			store, err := corpus.New(corpus.Options{Path: path, Logger: logging.Discard()})
			if err != nil {
				return err
			}
			snap, err := store.Reload(cmd.Context())
			if err != nil {
				return err
			}

			results, err := runBench(cmd.Context(), snap.Lines, samples)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			printBench(output.New(cmd.OutOrStdout()), path, results)
			return nil
		},
	}

	cmd.Flags().StringVar(&corpusPath, "corpus", "", "Corpus file (default corpus.path)")
	cmd.Flags().IntVar(&samples, "samples", 1000, "Lookups per mode, half hits and half misses")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// benchTargets picks up to n lookups: corpus lines spread over the file and
// the same lines with a suffix that makes most of them misses.
func benchTargets(lines []string, n int) []string {
	if n <= 0 {
		n = 1
	}
	targets := make([]string, 0, n)
	hits := (n + 1) / 2
	step := 1
	if len(lines) > hits {
		step = len(lines) / hits
	}
	for i := 0; i < len(lines) && len(targets) < hits; i += step {
		targets = append(targets, lines[i])
	}
	for i := 0; len(targets) < n; i++ {
		base := ""
		if len(lines) > 0 {
			base = lines[(i*step)%len(lines)]
		}
		targets = append(targets, fmt.Sprintf("%s#miss-%d", base, i))
	}
	return targets
}

// runBench measures each mode in turn, then checks concurrently that
// every mode agrees with linear search on every target.
func runBench(ctx context.Context, lines []string, samples int) ([]BenchResult, error) {
	targets := benchTargets(lines, samples)
	built := make(map[index.Mode]index.Index, len(index.Modes))
	results := make([]BenchResult, 0, len(index.Modes))

	for _, mode := range index.Modes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			idx   index.Index
			build time.Duration
		)
		heap := profiling.MeasureHeap(func() any {
			start := time.Now()
			idx = index.Build(lines, mode)
			build = time.Since(start)
			return idx
		})
		built[mode] = idx

		start := time.Now()
		for _, t := range targets {
			if _, err := index.Query(idx, mode, t); err != nil {
				return nil, err
			}
		}
		mean := time.Since(start) / time.Duration(len(targets))

		results = append(results, BenchResult{
			Mode:      mode.String(),
			Lines:     idx.Len(),
			Build:     build,
			HeapBytes: heap,
			MeanQuery: mean,
			Queries:   len(targets),
		})
	}

	want := make([]bool, len(targets))
	for i, t := range targets {
		want[i] = built[index.ModeLinear].Contains(t)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, mode := range index.Modes {
		g.Go(func() error {
			idx := built[mode]
			for i, t := range targets {
				if i%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				got, err := index.Query(idx, mode, t)
				if err != nil {
					return err
				}
				if got != want[i] {
					return fmt.Errorf("%s disagrees with linear search on %q", mode, t)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printBench(out *output.Writer, path string, results []BenchResult) {
	lines := 0
	if len(results) > 0 {
		lines = results[0].Lines
	}
	out.Header("Search mode benchmark")
	out.KeyValue("Corpus", path)
	out.KeyValue("Lines", fmt.Sprint(lines))
	if len(results) > 0 {
		out.KeyValue("Lookups per mode", fmt.Sprint(results[0].Queries))
	}
	out.Newline()

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Mode,
			r.Build.Round(time.Microsecond).String(),
			profiling.FormatBytes(r.HeapBytes),
			r.MeanQuery.String(),
		})
	}
	out.Table([]string{"MODE", "BUILD", "HEAP", "MEAN LOOKUP"}, rows)
	out.Newline()
	out.Success("All modes agree")
}
