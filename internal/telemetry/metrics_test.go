package telemetry

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/linesearch/internal/index"
	"github.com/Aman-CERP/linesearch/internal/logstore"
)

// =============================================================================
// CircularBuffer Tests
// =============================================================================

func TestCircularBuffer_Add_MultipleItems(t *testing.T) {
	buf := NewCircularBuffer[string](10)

	buf.Add("query1")
	buf.Add("query2")
	buf.Add("query3")

	assert.Equal(t, []string{"query1", "query2", "query3"}, buf.Items())
}

func TestCircularBuffer_MaintainsCapacity(t *testing.T) {
	buf := NewCircularBuffer[string](3)

	for _, q := range []string{"query1", "query2", "query3", "query4", "query5"} {
		buf.Add(q)
	}

	assert.Equal(t, 3, buf.Size())
	assert.Equal(t, []string{"query3", "query4", "query5"}, buf.Items())
}

func TestCircularBuffer_EmptyAndClear(t *testing.T) {
	buf := NewCircularBuffer[string](0)

	items := buf.Items()
	assert.NotNil(t, items)
	assert.Empty(t, items)

	buf.Add("a")
	buf.Add("b")
	assert.Equal(t, []string{"b"}, buf.Items())

	buf.Clear()
	assert.Equal(t, 0, buf.Size())
	assert.Empty(t, buf.Items())
}

// =============================================================================
// LatencyBucket Tests
// =============================================================================

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency  time.Duration
		expected LatencyBucket
	}{
		{0, BucketUnder100us},
		{99 * time.Microsecond, BucketUnder100us},
		{100 * time.Microsecond, BucketUnder1ms},
		{999 * time.Microsecond, BucketUnder1ms},
		{time.Millisecond, BucketUnder10ms},
		{9 * time.Millisecond, BucketUnder10ms},
		{10 * time.Millisecond, BucketUnder100ms},
		{99 * time.Millisecond, BucketUnder100ms},
		{100 * time.Millisecond, BucketOver100ms},
		{5 * time.Second, BucketOver100ms},
	}

	for _, tt := range tests {
		t.Run(tt.latency.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, LatencyToBucket(tt.latency))
		})
	}
}

func TestLatencyBucket_String(t *testing.T) {
	assert.Equal(t, "<100µs", BucketUnder100us.String())
	assert.Equal(t, ">=100ms", BucketOver100ms.String())
	assert.Equal(t, "unknown", LatencyBucket(42).String())
}

// =============================================================================
// QueryMetrics Tests
// =============================================================================

func TestQueryMetrics_Record_CountsStatusAndMode(t *testing.T) {
	m := NewQueryMetrics()
	defer m.Close()

	m.Record(QueryEvent{Query: "apple", Mode: index.ModeTrie, Status: logstore.StatusFound, Latency: 5 * time.Microsecond})
	m.Record(QueryEvent{Query: "kiwi", Mode: index.ModeTrie, Status: logstore.StatusNotFound, Latency: 3 * time.Microsecond})
	m.Record(QueryEvent{Query: "apple", Mode: index.ModeLinear, Status: logstore.StatusFound, Latency: 2 * time.Millisecond})

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalQueries)
	assert.Equal(t, int64(2), snap.StatusCounts[logstore.StatusFound])
	assert.Equal(t, int64(1), snap.StatusCounts[logstore.StatusNotFound])
	assert.Equal(t, int64(2), snap.ModeCounts[index.ModeTrie.String()])
	assert.Equal(t, int64(1), snap.ModeCounts[index.ModeLinear.String()])
	assert.InDelta(t, 66.67, snap.HitRate(), 0.01)
}

func TestQueryMetrics_Record_BucketsLatency(t *testing.T) {
	m := NewQueryMetrics()
	defer m.Close()

	m.Record(QueryEvent{Query: "a", Status: logstore.StatusFound, Latency: 50 * time.Microsecond})
	m.Record(QueryEvent{Query: "b", Status: logstore.StatusFound, Latency: 500 * time.Microsecond})
	m.Record(QueryEvent{Query: "c", Status: logstore.StatusNotFound, Latency: 550 * time.Microsecond})
	m.Record(QueryEvent{Query: "d", Status: logstore.StatusFound, Latency: 200 * time.Millisecond})
	// Errors are counted but not timed.
	m.Record(QueryEvent{Query: "e", Status: logstore.StatusError, Latency: time.Hour})

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketUnder100us])
	assert.Equal(t, int64(2), snap.LatencyDistribution[BucketUnder1ms])
	assert.Equal(t, int64(0), snap.LatencyDistribution[BucketUnder10ms])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketOver100ms])
	assert.Equal(t, 200*time.Millisecond, snap.MaxLatency)
	assert.Equal(t, (50*time.Microsecond+1050*time.Microsecond+200*time.Millisecond)/4, snap.MeanLatency)
	assert.Equal(t, int64(5), snap.TotalQueries)
}

func TestQueryMetrics_RecentMisses(t *testing.T) {
	m := NewQueryMetricsWithConfig(Config{RecentMissesCapacity: 5})
	defer m.Close()

	m.Record(QueryEvent{Query: "found", Status: logstore.StatusFound})
	for i := 0; i < 10; i++ {
		m.Record(QueryEvent{Query: fmt.Sprintf("miss%d", i), Status: logstore.StatusNotFound})
	}

	snap := m.Snapshot()
	assert.Equal(t, []string{"miss5", "miss6", "miss7", "miss8", "miss9"}, snap.RecentMisses)
}

func TestQueryMetrics_TopQueries(t *testing.T) {
	m := NewQueryMetricsWithConfig(Config{TopN: 2})
	defer m.Close()

	for i := 0; i < 3; i++ {
		m.Record(QueryEvent{Query: "banana", Status: logstore.StatusFound})
	}
	for i := 0; i < 2; i++ {
		m.Record(QueryEvent{Query: "apple", Status: logstore.StatusFound})
		m.Record(QueryEvent{Query: "cherry", Status: logstore.StatusFound})
	}
	m.Record(QueryEvent{Query: "kiwi", Status: logstore.StatusNotFound})

	snap := m.Snapshot()
	assert.Equal(t, []QueryCount{{"banana", 3}, {"apple", 2}}, snap.TopQueries)
}

func TestQueryMetrics_TopQueries_LRUEviction(t *testing.T) {
	m := NewQueryMetricsWithConfig(Config{TopQueriesCapacity: 3, TopN: 10})
	defer m.Close()

	for _, q := range []string{"alpha", "beta", "gamma", "delta", "epsilon"} {
		m.Record(QueryEvent{Query: q, Status: logstore.StatusFound})
	}

	snap := m.Snapshot()
	assert.Len(t, snap.TopQueries, 3)
	for _, qc := range snap.TopQueries {
		assert.NotEqual(t, "alpha", qc.Query)
	}
}

func TestQueryMetrics_Concurrent_ThreadSafe(t *testing.T) {
	m := NewQueryMetrics()
	defer m.Close()

	var wg sync.WaitGroup
	numGoroutines := 50
	eventsPerGoroutine := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				m.Record(QueryEvent{Query: "banana", Mode: index.ModeHashSet, Status: logstore.StatusFound, Latency: time.Microsecond})
				_ = m.Snapshot()
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, int64(numGoroutines*eventsPerGoroutine), snap.TotalQueries)
	assert.Equal(t, []QueryCount{{"banana", int64(numGoroutines * eventsPerGoroutine)}}, snap.TopQueries)
}

func TestQueryMetrics_RecordAfterCloseIsIgnored(t *testing.T) {
	m := NewQueryMetrics()

	m.Record(QueryEvent{Query: "apple", Status: logstore.StatusFound})
	require.NoError(t, m.Close())
	m.Record(QueryEvent{Query: "after close", Status: logstore.StatusFound})

	assert.Equal(t, int64(1), m.Snapshot().TotalQueries)
}

func TestSnapshot_JSON(t *testing.T) {
	m := NewQueryMetrics()
	defer m.Close()

	m.Record(QueryEvent{Query: "kiwi", Mode: index.ModeTrie, Status: logstore.StatusNotFound, Latency: time.Microsecond})

	data, err := json.Marshal(m.Snapshot())
	require.NoError(t, err)

	var decoded struct {
		TotalQueries        int64            `json:"total_queries"`
		StatusCounts        map[string]int64 `json:"status_counts"`
		ModeCounts          map[string]int64 `json:"mode_counts"`
		LatencyDistribution map[string]int64 `json:"latency_distribution"`
		RecentMisses        []string         `json:"recent_misses"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, int64(1), decoded.TotalQueries)
	assert.Equal(t, int64(1), decoded.StatusCounts["NOT_FOUND"])
	assert.Equal(t, int64(1), decoded.ModeCounts["trie"])
	assert.Equal(t, int64(1), decoded.LatencyDistribution["<100µs"])
	assert.Len(t, decoded.LatencyDistribution, len(Buckets))
	assert.Equal(t, []string{"kiwi"}, decoded.RecentMisses)
}

func TestSnapshot_HitRateEmpty(t *testing.T) {
	assert.Zero(t, Snapshot{}.HitRate())
}
