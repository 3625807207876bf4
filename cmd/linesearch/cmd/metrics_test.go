package cmd

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/linesearch/internal/index"
	"github.com/Aman-CERP/linesearch/internal/logstore"
	"github.com/Aman-CERP/linesearch/internal/output"
	"github.com/Aman-CERP/linesearch/internal/telemetry"
)

func TestPrintQuerySummary(t *testing.T) {
	m := telemetry.NewQueryMetrics()
	m.Record(telemetry.QueryEvent{Query: "apple", Mode: index.ModeTrie, Status: logstore.StatusFound, Latency: 20 * time.Microsecond})
	m.Record(telemetry.QueryEvent{Query: "apple", Mode: index.ModeTrie, Status: logstore.StatusFound, Latency: 40 * time.Microsecond})
	m.Record(telemetry.QueryEvent{Query: "kiwi", Mode: index.ModeTrie, Status: logstore.StatusNotFound, Latency: 2 * time.Millisecond})

	buf := &strings.Builder{}
	printQuerySummary(output.New(buf), m.Snapshot())

	out := buf.String()
	assert.Contains(t, out, "Queries served")
	assert.Contains(t, out, "  Total: 3")
	assert.Contains(t, out, "  Not found: 1")
	assert.Contains(t, out, "  Hit rate: 66.7%")
	assert.Contains(t, out, "  Latency <100µs: 2")
	assert.Contains(t, out, "  Latency <10ms: 1")
	assert.Contains(t, out, "  Most asked: apple (2)")
}

func TestPrintQuerySummary_Empty(t *testing.T) {
	buf := &strings.Builder{}
	printQuerySummary(output.New(buf), telemetry.NewQueryMetrics().Snapshot())

	assert.Contains(t, buf.String(), "  Total: 0")
	assert.NotContains(t, buf.String(), "Hit rate")
}

func TestLogQuerySummary(t *testing.T) {
	m := telemetry.NewQueryMetrics()
	m.Record(telemetry.QueryEvent{Query: "apple", Mode: index.ModeHashSet, Status: logstore.StatusFound})

	buf := &bytes.Buffer{}
	logQuerySummary(slog.New(slog.NewJSONHandler(buf, nil)), m.Snapshot())

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "query_summary", record["msg"])
	assert.Equal(t, float64(1), record["total"])
	assert.Equal(t, map[string]any{"hash_set": float64(1)}, record["modes"])
}

func TestOutcomeMetrics(t *testing.T) {
	snap := outcomeMetrics([]batchOutcome{
		{Query: "a", Status: logstore.StatusFound, Elapsed: 50 * time.Microsecond},
		{Query: "b", Status: logstore.StatusNotFound, Elapsed: 5 * time.Millisecond},
		{Query: "c", Status: logstore.StatusError, Err: "boom"},
	})

	assert.Equal(t, int64(3), snap.TotalQueries)
	assert.Empty(t, snap.ModeCounts)
	assert.Equal(t, int64(1), snap.LatencyDistribution[telemetry.BucketUnder100us])
	assert.Equal(t, int64(1), snap.LatencyDistribution[telemetry.BucketUnder10ms])
	assert.Equal(t, []string{"b"}, snap.RecentMisses)
}
