package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/kafka"
)

// maxLatencySamples bounds the window used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalPlans      int64         `json:"total_plans"`
	CacheHits       int64         `json:"cache_hits"`
	CacheMisses     int64         `json:"cache_misses"`
	ZeroResultPlans int64         `json:"zero_result_plans"`
	CappedPlans     int64         `json:"capped_plans"`
	AvgAccepted     float64       `json:"avg_accepted"`
	AvgLatencyMs    float64       `json:"avg_latency_ms"`
	P50LatencyMs    int64         `json:"p50_latency_ms"`
	P95LatencyMs    int64         `json:"p95_latency_ms"`
	P99LatencyMs    int64         `json:"p99_latency_ms"`
	HistorySaves    int64         `json:"history_saves"`
	DraftSaves      int64         `json:"draft_saves"`
	TopTargets      []TargetCount `json:"top_targets"`
	PlansPerMinute  float64       `json:"plans_per_minute"`
}

// TargetCount counts plans requested for one SGPA/CGPA target pair.
type TargetCount struct {
	Target string `json:"target"`
	Count  int64  `json:"count"`
}

// Aggregator folds plan and record events into in-memory stats.
type Aggregator struct {
	mu           sync.RWMutex
	totalPlans   int64
	cacheHits    int64
	cacheMisses  int64
	zeroResults  int64
	capped       int64
	acceptedSum  int64
	historySaves int64
	draftSaves   int64
	latencies    []int64
	latencyNext  int
	targetCounts map[string]int64
	startTime    time.Time
	now          func() time.Time
	logger       *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:    make([]int64, 0, 1024),
		targetCounts: make(map[string]int64),
		startTime:    time.Now(),
		now:          time.Now,
		logger:       slog.Default().With("component", "analytics-aggregator"),
	}
}

// HandleMessage is a kafka.MessageHandler. Undecodable messages are logged
// and acknowledged so a poison message cannot stall the partition.
func (a *Aggregator) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	env, err := kafka.DecodeJSON[envelope](value)
	if err != nil {
		a.logger.Error("failed to decode analytics event", "key", string(key), "error", err)
		return nil
	}
	switch env.Type {
	case EventPlan:
		event, err := kafka.DecodeJSON[PlanEvent](value)
		if err != nil {
			a.logger.Error("failed to decode plan event", "error", err)
			return nil
		}
		a.RecordPlan(event)
	case EventRecordSaved:
		event, err := kafka.DecodeJSON[RecordEvent](value)
		if err != nil {
			a.logger.Error("failed to decode record event", "error", err)
			return nil
		}
		a.RecordSave(event)
	default:
		a.logger.Warn("unknown analytics event type", "type", env.Type)
	}
	return nil
}

func (a *Aggregator) RecordPlan(event PlanEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalPlans++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if event.Accepted == 0 {
		a.zeroResults++
	}
	if event.Capped {
		a.capped++
	}
	a.acceptedSum += int64(event.Accepted)
	a.targetCounts[targetKey(event.TargetSGPA, event.TargetCGPA)]++

	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.latencyNext] = event.LatencyMs
		a.latencyNext = (a.latencyNext + 1) % maxLatencySamples
	}
}

func (a *Aggregator) RecordSave(event RecordEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch event.Kind {
	case "history":
		a.historySaves++
	case "draft":
		a.draftSaves++
	}
}

// Seed restores counters from a persisted snapshot. Latency samples and the
// per-minute rate start fresh.
func (a *Aggregator) Seed(s AggregatedStats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.totalPlans = s.TotalPlans
	a.cacheHits = s.CacheHits
	a.cacheMisses = s.CacheMisses
	a.zeroResults = s.ZeroResultPlans
	a.capped = s.CappedPlans
	a.acceptedSum = int64(s.AvgAccepted*float64(s.TotalPlans) + 0.5)
	a.historySaves = s.HistorySaves
	a.draftSaves = s.DraftSaves
	for _, tc := range s.TopTargets {
		a.targetCounts[tc.Target] = tc.Count
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalPlans:      a.totalPlans,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultPlans: a.zeroResults,
		CappedPlans:     a.capped,
		HistorySaves:    a.historySaves,
		DraftSaves:      a.draftSaves,
	}
	if a.totalPlans > 0 {
		stats.AvgAccepted = float64(a.acceptedSum) / float64(a.totalPlans)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopTargets = topN(a.targetCounts, 10)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.PlansPerMinute = float64(stats.TotalPlans) / elapsed
	}
	return stats
}

func targetKey(sgpa, cgpa float64) string {
	return fmt.Sprintf("%.2f/%.2f", sgpa, cgpa)
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count descending, then key ascending for stable output.
func topN(counts map[string]int64, n int) []TargetCount {
	result := make([]TargetCount, 0, len(counts))
	for target, count := range counts {
		result = append(result, TargetCount{Target: target, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Target < result[j].Target
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
