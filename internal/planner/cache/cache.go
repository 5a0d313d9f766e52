// Package cache memoises complete search outcomes in Redis. Concurrent
// identical searches are collapsed with singleflight, and a circuit breaker
// keeps a failing Redis from adding latency to every plan.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/grading"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/planner"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/resilience"
)

const keyPrefix = "plan:"

// Backend is the subset of *pkgredis.Client the cache uses.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	CountByPattern(ctx context.Context, pattern string) (int64, error)
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Stats is reported by the cache stats endpoint.
type Stats struct {
	Enabled bool   `json:"enabled"`
	Hits    int64  `json:"hits"`
	Misses  int64  `json:"misses"`
	Total   int64  `json:"total"`
	HitRate string `json:"hit_rate"`
	Entries int64  `json:"entries"`
	Breaker string `json:"breaker"`
}

// PlanCache is safe for concurrent use. With a nil Backend it still
// collapses concurrent identical searches but stores nothing.
type PlanCache struct {
	backend Backend
	ttl     time.Duration
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	group   singleflight.Group
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New creates a PlanCache. m may be nil.
func New(backend Backend, ttl time.Duration, m *metrics.Metrics) *PlanCache {
	c := &PlanCache{
		backend: backend,
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "plan-cache"),
	}
	c.breaker = resilience.NewCircuitBreaker("plan-cache", resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		OnStateChange: func(name string, from, to resilience.State) {
			if m != nil {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	return c
}

// GetOrCompute returns the cached outcome for q or runs compute once for all
// concurrent callers with the same key. The bool reports a cache hit.
// Backend failures are logged and treated as misses.
func (c *PlanCache) GetOrCompute(ctx context.Context, q planner.Query, compute func() (planner.Outcome, error)) (planner.Outcome, bool, error) {
	key, err := BuildKey(q)
	if err != nil {
		return planner.Outcome{}, false, err
	}
	if out, ok := c.get(ctx, key); ok {
		c.recordHit()
		return out, true, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		if out, ok := c.get(ctx, key); ok {
			return out, nil
		}
		out, err := compute()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, out)
		return out, nil
	})
	c.recordMiss()
	if err != nil {
		return planner.Outcome{}, false, err
	}
	return val.(planner.Outcome), false, nil
}

// Invalidate removes every cached outcome and returns how many were removed.
func (c *PlanCache) Invalidate(ctx context.Context) (int64, error) {
	if c.backend == nil {
		return 0, nil
	}
	deleted, err := c.backend.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating plan cache: %w", err)
	}
	c.breaker.Reset()
	c.logger.Info("plan cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *PlanCache) Stats(ctx context.Context) Stats {
	s := Stats{
		Enabled: c.backend != nil,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Breaker: c.breaker.GetState().String(),
	}
	s.Total = s.Hits + s.Misses
	var rate float64
	if s.Total > 0 {
		rate = float64(s.Hits) / float64(s.Total) * 100
	}
	s.HitRate = fmt.Sprintf("%.1f%%", rate)
	if c.backend != nil {
		n, err := c.backend.CountByPattern(ctx, keyPrefix+"*")
		if err != nil {
			c.logger.Warn("counting cache entries failed", "error", err)
		}
		s.Entries = n
	}
	return s
}

func (c *PlanCache) get(ctx context.Context, key string) (planner.Outcome, bool) {
	var out planner.Outcome
	if c.backend == nil {
		return out, false
	}
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.backend.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		return out, false
	}
	if data == nil {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return out, false
	}
	return out, true
}

func (c *PlanCache) set(ctx context.Context, key string, out planner.Outcome) {
	if c.backend == nil {
		return
	}
	data, err := json.Marshal(out)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.backend.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *PlanCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *PlanCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

type keyCourse struct {
	Code    string         `json:"c,omitempty"`
	Credits float64        `json:"k"`
	Grade   grading.Symbol `json:"g,omitempty"`
}

type keyInput struct {
	History [][]keyCourse   `json:"h"`
	Draft   []keyCourse     `json:"d"`
	Targets planner.Targets `json:"t"`
	Options planner.Options `json:"o"`
}

// BuildKey hashes exactly the inputs that determine an Outcome. Semester
// names, indexes, history course codes and cached grade points do not, so
// they are left out. Alphabet order is kept because it fixes result order.
func BuildKey(q planner.Query) (string, error) {
	in := keyInput{
		History: make([][]keyCourse, len(q.History)),
		Draft:   make([]keyCourse, len(q.Draft)),
		Targets: q.Targets,
		Options: q.Options,
	}
	for i, sem := range q.History {
		in.History[i] = make([]keyCourse, len(sem.Courses))
		for j, c := range sem.Courses {
			in.History[i][j] = keyCourse{Credits: c.Credits, Grade: c.Grade}
		}
	}
	for i, c := range q.Draft {
		in.Draft[i] = keyCourse{Code: c.Code, Credits: c.Credits}
	}
	if in.Options.ResultCap < 0 {
		in.Options.ResultCap = planner.Unlimited
	}
	raw, err := json.Marshal(in)
	if err != nil {
		return "", fmt.Errorf("building cache key: %w", err)
	}
	sum := sha256.Sum256(raw)
	return keyPrefix + hex.EncodeToString(sum[:16]), nil
}
