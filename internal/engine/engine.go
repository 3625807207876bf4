// Package engine runs one query end to end: pick the index for the
// requested mode, time the lookup, and persist a log entry before the
// caller replies. Failures come back as StatusError results, never as
// errors or panics.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/Aman-CERP/linesearch/internal/corpus"
	lserrors "github.com/Aman-CERP/linesearch/internal/errors"
	"github.com/Aman-CERP/linesearch/internal/index"
	"github.com/Aman-CERP/linesearch/internal/logstore"
	"github.com/Aman-CERP/linesearch/internal/telemetry"
)

// Request is one query as received from a client.
type Request struct {
	// Addr is the requester's network address, host or host:port.
	Addr string
	// Query is the line to look for.
	Query string
	// Mode is the wire name of the search mode. Empty selects the default.
	Mode string
}

// Result is the outcome reported back to the client.
type Result struct {
	Status        logstore.Status
	Mode          index.Mode
	Query         string
	Addr          string
	ExecutionTime time.Duration
	Timestamp     time.Time
	LogID         string
	ErrorDetail   string
	// CorpusVersion is the snapshot the query ran against; zero if none.
	CorpusVersion uint64
}

// Engine executes queries against a corpus store and records them.
type Engine struct {
	corpus      *corpus.Store
	logs        logstore.Store
	defaultMode index.Mode
	pool        *ants.Pool
	retry       lserrors.RetryConfig
	metrics     *telemetry.QueryMetrics
	logger      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine) error

// WithDefaultMode sets the mode used when a request names none.
func WithDefaultMode(mode index.Mode) Option {
	return func(e *Engine) error {
		if !mode.Valid() {
			return fmt.Errorf("invalid default mode %d", mode)
		}
		e.defaultMode = mode
		return nil
	}
}

// WithPoolSize sets the number of batch workers. Default is runtime.NumCPU().
func WithPoolSize(size int) Option {
	return func(e *Engine) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if e.pool != nil {
			e.pool.Release()
		}
		e.pool = pool
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger != nil {
			e.logger = logger
		}
		return nil
	}
}

// WithMetrics records every executed query in m.
func WithMetrics(m *telemetry.QueryMetrics) Option {
	return func(e *Engine) error {
		e.metrics = m
		return nil
	}
}

// WithRetry sets the backoff for log store writes.
func WithRetry(cfg lserrors.RetryConfig) Option {
	return func(e *Engine) error {
		e.retry = cfg
		return nil
	}
}

// New creates an Engine. Release it when done.
func New(store *corpus.Store, logs logstore.Store, opts ...Option) (*Engine, error) {
	if store == nil || logs == nil {
		return nil, lserrors.InternalError("engine needs a corpus store and a log store", nil)
	}

	pool, err := ants.NewPool(runtime.NumCPU())
	if err != nil {
		return nil, err
	}

	e := &Engine{
		corpus:      store,
		logs:        logs,
		defaultMode: index.ModeTrie,
		pool:        pool,
		retry:       lserrors.DefaultRetryConfig(),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			e.Release()
			return nil, err
		}
	}
	e.retry.Retryable = logstore.Retryable
	return e, nil
}

// DefaultMode returns the mode used for requests that name none.
func (e *Engine) DefaultMode() index.Mode { return e.defaultMode }

// Metrics returns the metrics set with WithMetrics, or nil.
func (e *Engine) Metrics() *telemetry.QueryMetrics { return e.metrics }

// Corpus returns the underlying corpus store.
func (e *Engine) Corpus() *corpus.Store { return e.corpus }

// Release stops the batch workers.
func (e *Engine) Release() {
	if e.pool != nil {
		e.pool.Release()
	}
}

// Execute runs req and persists its log entry. Every call yields exactly
// one result; an entry is stored for errors too. Panics become
// StatusError results.
func (e *Engine) Execute(ctx context.Context, req Request) (res Result) {
	if e.metrics != nil {
		// Registered first so it sees the result after panic recovery.
		defer func() {
			e.metrics.Record(telemetry.QueryEvent{
				Query:   res.Query,
				Mode:    res.Mode,
				Status:  res.Status,
				Latency: res.ExecutionTime,
			})
		}()
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("query panicked", slog.Any("panic", r))
			res = e.failure(res, lserrors.InternalError("Internal server error", fmt.Errorf("panic: %v", r)))
		}
	}()

	entry := logstore.NewEntry(req.Query, RequesterIP(req.Addr))
	mode := index.Resolve(req.Mode, e.defaultMode, e.logger)

	res = Result{
		Mode:  mode,
		Query: entry.Query,
		Addr:  entry.RequestingIP,
	}

	found, elapsed, version, err := e.search(ctx, mode, req.Query)
	res.CorpusVersion = version

	status := logstore.StatusNotFound
	if found {
		status = logstore.StatusFound
	}
	if err != nil {
		status = logstore.StatusError
		res.ErrorDetail = lserrors.Message(err)
		e.logger.Warn("query failed",
			slog.String("mode", mode.String()),
			slog.String("code", lserrors.GetCode(err)),
			slog.String("error", err.Error()))
	}

	if cerr := entry.Complete(status, elapsed, res.ErrorDetail); cerr != nil {
		return e.failure(res, lserrors.InternalError("log entry completed twice", cerr))
	}
	res.Status = entry.Status
	res.ExecutionTime = elapsed
	res.Timestamp = entry.Timestamp

	if perr := e.persist(ctx, entry); perr != nil {
		e.logger.Error("log store write failed",
			slog.String("log_id", entry.ID),
			slog.String("error", perr.Error()))
		return e.failure(res, lserrors.New(lserrors.ErrCodeLogStoreFailed, "Failed to store log entry", perr))
	}
	res.LogID = entry.ID

	e.logger.Info("query_served",
		slog.String("mode", mode.String()),
		slog.String("status", string(res.Status)),
		slog.Duration("duration", elapsed),
		slog.String("log_id", res.LogID),
		slog.String("requesting_ip", res.Addr))
	return res
}

// search resolves the index and times only the lookup itself.
func (e *Engine) search(ctx context.Context, mode index.Mode, target string) (bool, time.Duration, uint64, error) {
	idx, snap, err := e.corpus.Ensure(ctx, mode)
	if err != nil {
		return false, 0, 0, err
	}

	start := time.Now()
	found, err := index.Query(idx, mode, target)
	return found, time.Since(start), snap.Version, err
}

func (e *Engine) persist(ctx context.Context, entry *logstore.Entry) error {
	return lserrors.Retry(ctx, e.retry, func() error {
		return e.logs.Create(ctx, entry)
	})
}

func (e *Engine) failure(res Result, err error) Result {
	res.Status = logstore.StatusError
	res.ErrorDetail = lserrors.Message(err)
	res.LogID = ""
	if res.Timestamp.IsZero() {
		res.Timestamp = time.Now().UTC()
	}
	return res
}

// ReadLogs returns every stored entry in append order.
func (e *Engine) ReadLogs(ctx context.Context) ([]logstore.Entry, error) {
	entries, err := e.logs.ReadAll(ctx)
	if err != nil {
		return nil, lserrors.New(lserrors.ErrCodeLogStoreFailed, "Failed to read logs", err)
	}
	return entries, nil
}

// RequesterIP strips the port from addr when it has one.
func RequesterIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
