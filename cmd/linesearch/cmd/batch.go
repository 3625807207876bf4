package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/linesearch/internal/config"
	"github.com/Aman-CERP/linesearch/internal/corpus"
	"github.com/Aman-CERP/linesearch/internal/engine"
	"github.com/Aman-CERP/linesearch/internal/logging"
	"github.com/Aman-CERP/linesearch/internal/logstore"
	"github.com/Aman-CERP/linesearch/internal/output"
	"github.com/Aman-CERP/linesearch/internal/server"
)

// maxQueryLine bounds one line of a query file.
const maxQueryLine = 1 << 20

type batchFlags struct {
	client      clientFlags
	file        string
	mode        string
	concurrency int
	local       bool
	verbose     bool
}

// batchOutcome is the result of one batch query.
type batchOutcome struct {
	Query   string
	Status  logstore.Status
	Elapsed time.Duration
	Err     string
}

func newBatchCmd() *cobra.Command {
	var f batchFlags

	cmd := &cobra.Command{
		Use:   "batch [query...]",
		Short: "Run many queries concurrently",
		Long: `Run many queries at once, either against a running server or, with
--local, directly against the configured corpus and query log.

Queries come from the arguments, from --file (one per line), or from
stdin with --file -.`,
		Example: `  linesearch batch apple banana kiwi
  linesearch batch --file queries.txt --concurrency 32
  linesearch batch --local --file queries.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := collectQueries(cmd.InOrStdin(), f.file, args)
			if err != nil {
				return err
			}
			if len(queries) == 0 {
				return fmt.Errorf("no queries given")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if f.concurrency <= 0 {
				f.concurrency = cfg.BatchWorkers()
			}

			var outcomes []batchOutcome
			start := time.Now()
			if f.local {
				outcomes, err = runBatchLocal(cmd.Context(), cfg, queries, f)
			} else {
				outcomes, err = runBatchRemote(cmd.Context(), cmd, cfg, queries, f)
			}
			if err != nil {
				return err
			}
			reportBatch(output.New(cmd.OutOrStdout()), outcomes, time.Since(start), f.verbose)
			return nil
		},
	}

	f.client.register(cmd)
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "Read queries from a file, one per line (- for stdin)")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "Search mode (default: the server's)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "Concurrent requests (default: batch.workers)")
	cmd.Flags().BoolVar(&f.local, "local", false, "Search the corpus in-process instead of over TCP")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Print one row per query")

	return cmd
}

// collectQueries returns args followed by the lines of file.
func collectQueries(stdin io.Reader, file string, args []string) ([]string, error) {
	queries := append([]string(nil), args...)
	if file == "" {
		return queries, nil
	}

	var r io.Reader = stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open query file: %w", err)
		}
		defer f.Close()
		r = f
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxQueryLine)
	for scanner.Scan() {
		queries = append(queries, strings.TrimSuffix(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read queries: %w", err)
	}
	return queries, nil
}

func runBatchRemote(ctx context.Context, cmd *cobra.Command, cfg *config.Config, queries []string, f batchFlags) ([]batchOutcome, error) {
	client, err := newClient(cfg, f.client.addr)
	if err != nil {
		return nil, err
	}
	server.WithTimeout(f.client.timeout)(client)

	progress := output.New(cmd.ErrOrStderr())
	var (
		mu   sync.Mutex
		done int
	)
	outcomes := make([]batchOutcome, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, q := range queries {
		g.Go(func() error {
			start := time.Now()
			reply, err := client.CreateLog(gctx, q, f.mode)
			o := batchOutcome{Query: q, Elapsed: time.Since(start)}
			switch {
			case err != nil:
				o.Status = logstore.StatusError
				o.Err = err.Error()
			default:
				o.Status = reply.Status
				o.Err = reply.Error
			}
			outcomes[i] = o

			mu.Lock()
			done++
			progress.Progress(done, len(queries), "queries")
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, nil
}

func runBatchLocal(ctx context.Context, cfg *config.Config, queries []string, f batchFlags) ([]batchOutcome, error) {
	logger, cleanup, err := logging.Setup(cfg.LoggingConfig(debugMode))
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	logOpts, err := cfg.LogStoreOptions(logger)
	if err != nil {
		return nil, err
	}
	logs, err := logstore.Open(logOpts)
	if err != nil {
		return nil, err
	}
	defer logs.Close()

	store, err := corpus.New(cfg.CorpusOptions(logger))
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(store, logs,
		engine.WithDefaultMode(cfg.DefaultMode()),
		engine.WithPoolSize(f.concurrency),
		engine.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	defer eng.Release()

	reqs := make([]engine.Request, len(queries))
	for i, q := range queries {
		reqs[i] = engine.Request{Addr: "127.0.0.1", Query: q, Mode: f.mode}
	}

	outcomes := make([]batchOutcome, len(queries))
	for _, br := range eng.ExecuteBatch(ctx, reqs) {
		outcomes[br.Index] = batchOutcome{
			Query:   br.Request.Query,
			Status:  br.Result.Status,
			Elapsed: br.Result.ExecutionTime,
			Err:     br.Result.ErrorDetail,
		}
	}
	return outcomes, nil
}

func reportBatch(out *output.Writer, outcomes []batchOutcome, wall time.Duration, verbose bool) {
	counts := map[logstore.Status]int{}
	var total time.Duration
	for _, o := range outcomes {
		counts[o.Status]++
		total += o.Elapsed
	}

	if verbose {
		rows := make([][]string, 0, len(outcomes))
		for _, o := range outcomes {
			rows = append(rows, []string{string(o.Status), o.Elapsed.Round(time.Microsecond).String(), clip(o.Query, queryColumnWidth), o.Err})
		}
		out.Table([]string{"STATUS", "TIME", "QUERY", "ERROR"}, rows)
		out.Newline()
	}

	out.Header("Batch summary")
	out.KeyValue("Queries", fmt.Sprint(len(outcomes)))
	out.KeyValue("Found", fmt.Sprint(counts[logstore.StatusFound]))
	out.KeyValue("Not found", fmt.Sprint(counts[logstore.StatusNotFound]))
	out.KeyValue("Errors", fmt.Sprint(counts[logstore.StatusError]))
	out.KeyValue("Wall time", wall.Round(time.Millisecond).String())
	if len(outcomes) > 0 {
		out.KeyValue("Mean latency", (total / time.Duration(len(outcomes))).Round(time.Microsecond).String())
	}
	if secs := wall.Seconds(); secs > 0 {
		out.KeyValue("Throughput", fmt.Sprintf("%.1f queries/s", float64(len(outcomes))/secs))
	}
	if len(outcomes) > 0 {
		printLatency(out, outcomeMetrics(outcomes))
	}
}
