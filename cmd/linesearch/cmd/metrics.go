package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Aman-CERP/linesearch/internal/logstore"
	"github.com/Aman-CERP/linesearch/internal/output"
	"github.com/Aman-CERP/linesearch/internal/telemetry"
)

// printLatency writes one line per latency bucket.
func printLatency(out *output.Writer, snap telemetry.Snapshot) {
	for _, b := range telemetry.Buckets {
		out.KeyValue("Latency "+b.String(), fmt.Sprint(snap.LatencyDistribution[b]))
	}
}

// printQuerySummary writes what the server answered since it started.
func printQuerySummary(out *output.Writer, snap telemetry.Snapshot) {
	out.Header("Queries served")
	out.KeyValue("Total", fmt.Sprint(snap.TotalQueries))
	if snap.TotalQueries == 0 {
		return
	}
	out.KeyValue("Found", fmt.Sprint(snap.StatusCounts[logstore.StatusFound]))
	out.KeyValue("Not found", fmt.Sprint(snap.StatusCounts[logstore.StatusNotFound]))
	out.KeyValue("Errors", fmt.Sprint(snap.StatusCounts[logstore.StatusError]))
	out.KeyValue("Hit rate", fmt.Sprintf("%.1f%%", snap.HitRate()))
	out.KeyValue("Mean lookup", snap.MeanLatency.Round(time.Microsecond).String())
	out.KeyValue("Max lookup", snap.MaxLatency.Round(time.Microsecond).String())
	printLatency(out, snap)
	if len(snap.TopQueries) > 0 {
		top := snap.TopQueries[0]
		out.KeyValue("Most asked", fmt.Sprintf("%s (%d)", clip(top.Query, queryColumnWidth), top.Count))
	}
}

// logQuerySummary records the same summary in the server log.
func logQuerySummary(logger *slog.Logger, snap telemetry.Snapshot) {
	attrs := []any{
		slog.Int64("total", snap.TotalQueries),
		slog.Int64("found", snap.StatusCounts[logstore.StatusFound]),
		slog.Int64("not_found", snap.StatusCounts[logstore.StatusNotFound]),
		slog.Int64("errors", snap.StatusCounts[logstore.StatusError]),
		slog.Duration("mean_lookup", snap.MeanLatency),
		slog.Duration("max_lookup", snap.MaxLatency),
	}
	modes := make([]any, 0, len(snap.ModeCounts))
	for mode, n := range snap.ModeCounts {
		modes = append(modes, slog.Int64(mode, n))
	}
	attrs = append(attrs, slog.Group("modes", modes...))
	logger.Info("query_summary", attrs...)
}

// outcomeMetrics folds batch outcomes into a snapshot.
func outcomeMetrics(outcomes []batchOutcome) telemetry.Snapshot {
	m := telemetry.NewQueryMetrics()
	defer m.Close()
	for _, o := range outcomes {
		// Mode is not known client side; an invalid mode is not counted.
		m.Record(telemetry.QueryEvent{Query: o.Query, Mode: -1, Status: o.Status, Latency: o.Elapsed})
	}
	return m.Snapshot()
}
