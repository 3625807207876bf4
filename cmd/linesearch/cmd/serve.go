package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/linesearch/internal/config"
	"github.com/Aman-CERP/linesearch/internal/corpus"
	"github.com/Aman-CERP/linesearch/internal/engine"
	"github.com/Aman-CERP/linesearch/internal/logging"
	"github.com/Aman-CERP/linesearch/internal/logstore"
	"github.com/Aman-CERP/linesearch/internal/output"
	"github.com/Aman-CERP/linesearch/internal/server"
	"github.com/Aman-CERP/linesearch/internal/telemetry"
)

type serveFlags struct {
	corpusPath     string
	host           string
	port           int
	mode           string
	maxConnections int
	reread         bool
	watch          bool
	logBackend     string
}

func newServeCmd() *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the line-search server",
		Long: `Start the TCP server in the foreground.

The corpus is loaded once at startup. With reread_on_query (the default)
it is read again for every query, so edits show up immediately. Without
it, the loaded corpus is served until the watcher (corpus.watch) or a
restart reloads it.

Stop the server with Ctrl+C or 'linesearch stop'.`,
		Example: `  # Serve a corpus on the default port
  linesearch serve --corpus ./200k.txt

  # Cache the corpus and reload it when the file changes
  linesearch serve --corpus ./200k.txt --reread=false --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := applyServeFlags(cmd, cfg, f); err != nil {
				return err
			}
			return runServe(cmd.Context(), cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&f.corpusPath, "corpus", "", "Corpus file to search")
	cmd.Flags().StringVar(&f.host, "host", "", "Listen host")
	cmd.Flags().IntVarP(&f.port, "port", "p", 0, "Listen port")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "", "Default search mode")
	cmd.Flags().IntVar(&f.maxConnections, "max-connections", 0, "Concurrent connection limit (0 = unbounded)")
	cmd.Flags().BoolVar(&f.reread, "reread", true, "Reread the corpus for every query")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "Reload the corpus when the file changes (with --reread=false)")
	cmd.Flags().StringVar(&f.logBackend, "log-backend", "", "Query log backend: json, sqlite, badger")

	return cmd
}

// applyServeFlags overlays explicitly set flags on cfg, the last layer of
// precedence.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config, f serveFlags) error {
	flags := cmd.Flags()
	if flags.Changed("corpus") {
		abs, err := filepath.Abs(f.corpusPath)
		if err != nil {
			return fmt.Errorf("failed to resolve corpus path: %w", err)
		}
		cfg.Corpus.Path = abs
	}
	if flags.Changed("host") {
		cfg.Server.Host = f.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = f.port
	}
	if flags.Changed("mode") {
		cfg.Corpus.DefaultMode = f.mode
	}
	if flags.Changed("max-connections") {
		cfg.Server.MaxConnections = f.maxConnections
	}
	if flags.Changed("reread") {
		cfg.Corpus.RereadOnQuery = f.reread
	}
	if flags.Changed("watch") {
		cfg.Corpus.Watch = f.watch
	}
	if flags.Changed("log-backend") {
		cfg.Logs.Backend = f.logBackend
	}
	return cfg.Validate()
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := output.New(cmd.OutOrStdout())

	logger, cleanup, err := logging.Setup(cfg.LoggingConfig(debugMode))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	logOpts, err := cfg.LogStoreOptions(logger)
	if err != nil {
		return err
	}
	logs, err := logstore.Open(logOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := logs.Close(); err != nil {
			logger.Warn("failed to close log store", slog.String("error", err.Error()))
		}
	}()

	settings := cfg.ServerSettings()
	store, err := corpus.New(settings.CorpusOptions(logger))
	if err != nil {
		return err
	}
	// A missing corpus is not fatal: queries report it until it appears.
	if _, err := store.Warm(ctx, settings.DefaultMode); err != nil {
		logger.Warn("corpus not loaded at startup",
			slog.String("path", store.Path()),
			slog.String("error", err.Error()))
		out.Warningf("Corpus not loaded: %s", store.Path())
	}

	metrics := telemetry.NewQueryMetrics()
	defer metrics.Close()

	eng, err := engine.New(store, logs,
		engine.WithDefaultMode(settings.DefaultMode),
		engine.WithPoolSize(cfg.BatchWorkers()),
		engine.WithMetrics(metrics),
		engine.WithLogger(logger))
	if err != nil {
		return err
	}
	defer eng.Release()

	srv, err := server.New(settings, eng, server.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}
	defer srv.Close()

	pidFile := server.NewPIDFile(cfg.Server.PIDFile)
	if err := pidFile.Claim(srv.Addr().String()); err != nil {
		return err
	}
	defer func() { _ = pidFile.Remove() }()

	if cfg.WatchEnabled() {
		go func() {
			if err := store.Watch(ctx, cfg.WatchOptions()); err != nil {
				logger.Error("corpus watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	out.Successf("Listening on %s", srv.Addr())
	out.KeyValue("Corpus", store.Path())
	out.KeyValue("Mode", settings.DefaultMode.String())
	out.KeyValue("Logs", fmt.Sprintf("%s %s", logOpts.Backend, logOpts.Path))
	out.Status("", "Press Ctrl+C to stop")

	err = srv.Serve(ctx)
	snap := metrics.Snapshot()
	logQuerySummary(logger, snap)
	if errors.Is(err, context.Canceled) {
		out.Success("Server stopped")
		printQuerySummary(out, snap)
		return nil
	}
	return err
}
