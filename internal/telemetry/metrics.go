// Package telemetry aggregates served queries in memory: outcome counts,
// per-mode counts, a lookup latency histogram, the most recent misses and
// the most repeated queries. Nothing here is persisted; the query log is
// the durable record.
package telemetry

import (
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/linesearch/internal/index"
	"github.com/Aman-CERP/linesearch/internal/logstore"
)

// LatencyBucket is a lookup latency range.
type LatencyBucket int

const (
	BucketUnder100us LatencyBucket = iota
	BucketUnder1ms
	BucketUnder10ms
	BucketUnder100ms
	BucketOver100ms

	bucketCount
)

// Buckets lists every bucket in ascending order.
var Buckets = []LatencyBucket{BucketUnder100us, BucketUnder1ms, BucketUnder10ms, BucketUnder100ms, BucketOver100ms}

// String returns the bucket label.
func (b LatencyBucket) String() string {
	switch b {
	case BucketUnder100us:
		return "<100µs"
	case BucketUnder1ms:
		return "<1ms"
	case BucketUnder10ms:
		return "<10ms"
	case BucketUnder100ms:
		return "<100ms"
	case BucketOver100ms:
		return ">=100ms"
	default:
		return "unknown"
	}
}

// MarshalText encodes the bucket by label so it can key a JSON object.
func (b LatencyBucket) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// LatencyToBucket maps a lookup duration to its bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch {
	case d < 100*time.Microsecond:
		return BucketUnder100us
	case d < time.Millisecond:
		return BucketUnder1ms
	case d < 10*time.Millisecond:
		return BucketUnder10ms
	case d < 100*time.Millisecond:
		return BucketUnder100ms
	default:
		return BucketOver100ms
	}
}

// QueryEvent is one served query.
type QueryEvent struct {
	Query   string
	Mode    index.Mode
	Status  logstore.Status
	Latency time.Duration
}

// QueryCount pairs a query with how often it was asked.
type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Config sizes the bounded parts of QueryMetrics.
type Config struct {
	// TopQueriesCapacity bounds the distinct queries tracked for repeats.
	TopQueriesCapacity int
	// RecentMissesCapacity bounds the recent NOT_FOUND queries kept.
	RecentMissesCapacity int
	// TopN is how many repeated queries a snapshot reports.
	TopN int
}

// DefaultConfig returns the default sizes.
func DefaultConfig() Config {
	return Config{
		TopQueriesCapacity:   1000,
		RecentMissesCapacity: 100,
		TopN:                 10,
	}
}

// QueryMetrics collects QueryEvents. It is safe for concurrent use and
// the zero value is not usable; use NewQueryMetrics.
type QueryMetrics struct {
	mu         sync.Mutex
	started    time.Time
	total      int64
	byStatus   map[logstore.Status]int64
	byMode     map[index.Mode]int64
	latency    [bucketCount]int64
	latencySum time.Duration
	latencyMax time.Duration

	topN    int
	queries *lru.Cache[string, int64]
	misses  *CircularBuffer[string]
	closed  bool
}

// NewQueryMetrics creates metrics with DefaultConfig.
func NewQueryMetrics() *QueryMetrics {
	return NewQueryMetricsWithConfig(DefaultConfig())
}

// NewQueryMetricsWithConfig creates metrics with cfg. Non-positive sizes
// fall back to the defaults.
func NewQueryMetricsWithConfig(cfg Config) *QueryMetrics {
	def := DefaultConfig()
	if cfg.TopQueriesCapacity < 1 {
		cfg.TopQueriesCapacity = def.TopQueriesCapacity
	}
	if cfg.RecentMissesCapacity < 1 {
		cfg.RecentMissesCapacity = def.RecentMissesCapacity
	}
	if cfg.TopN < 1 {
		cfg.TopN = def.TopN
	}

	// Only fails for a non-positive size.
	queries, _ := lru.New[string, int64](cfg.TopQueriesCapacity)

	return &QueryMetrics{
		started:  time.Now(),
		byStatus: make(map[logstore.Status]int64),
		byMode:   make(map[index.Mode]int64),
		topN:     cfg.TopN,
		queries:  queries,
		misses:   NewCircularBuffer[string](cfg.RecentMissesCapacity),
	}
}

// Record adds ev. Calls after Close are ignored.
func (m *QueryMetrics) Record(ev QueryEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.total++
	m.byStatus[ev.Status]++
	if ev.Mode.Valid() {
		m.byMode[ev.Mode]++
	}

	// Errors carry no meaningful lookup time.
	if ev.Status != logstore.StatusError {
		m.latency[LatencyToBucket(ev.Latency)]++
		m.latencySum += ev.Latency
		m.latencyMax = max(m.latencyMax, ev.Latency)
	}

	count, _ := m.queries.Get(ev.Query)
	m.queries.Add(ev.Query, count+1)

	if ev.Status == logstore.StatusNotFound {
		m.misses.Add(ev.Query)
	}
}

// Close stops recording.
func (m *QueryMetrics) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Snapshot is a point-in-time copy of the metrics.
type Snapshot struct {
	Since               time.Time                 `json:"since"`
	TotalQueries        int64                     `json:"total_queries"`
	StatusCounts        map[logstore.Status]int64 `json:"status_counts"`
	ModeCounts          map[string]int64          `json:"mode_counts"`
	LatencyDistribution map[LatencyBucket]int64   `json:"latency_distribution"`
	MeanLatency         time.Duration             `json:"mean_latency_ns"`
	MaxLatency          time.Duration             `json:"max_latency_ns"`
	RecentMisses        []string                  `json:"recent_misses"`
	TopQueries          []QueryCount              `json:"top_queries"`
}

// Snapshot copies the current state.
func (m *QueryMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		Since:               m.started,
		TotalQueries:        m.total,
		StatusCounts:        make(map[logstore.Status]int64, len(m.byStatus)),
		ModeCounts:          make(map[string]int64, len(m.byMode)),
		LatencyDistribution: make(map[LatencyBucket]int64, bucketCount),
		MaxLatency:          m.latencyMax,
		RecentMisses:        m.misses.Items(),
	}
	for status, n := range m.byStatus {
		snap.StatusCounts[status] = n
	}
	for mode, n := range m.byMode {
		snap.ModeCounts[mode.String()] = n
	}

	var timed int64
	for _, b := range Buckets {
		snap.LatencyDistribution[b] = m.latency[b]
		timed += m.latency[b]
	}
	if timed > 0 {
		snap.MeanLatency = m.latencySum / time.Duration(timed)
	}

	snap.TopQueries = m.topQueries()
	return snap
}

// topQueries returns the most asked queries, most frequent first. Ties
// sort by query so the order is stable.
func (m *QueryMetrics) topQueries() []QueryCount {
	counts := make([]QueryCount, 0, m.queries.Len())
	for _, q := range m.queries.Keys() {
		if n, ok := m.queries.Peek(q); ok {
			counts = append(counts, QueryCount{Query: q, Count: n})
		}
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Query < counts[j].Query
	})
	if len(counts) > m.topN {
		counts = counts[:m.topN]
	}
	return counts
}

// HitRate returns the percentage of queries answered FOUND.
func (s Snapshot) HitRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.StatusCounts[logstore.StatusFound]) / float64(s.TotalQueries) * 100
}
