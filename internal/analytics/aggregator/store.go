// Package aggregator persists periodic snapshots of the analytics counters
// to PostgreSQL so a restarted analytics service resumes from them.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Adithya-Monish-Kumar-K/grade-planner/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/grade-planner/pkg/postgres"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Store reads and writes the analytics_snapshots table.
type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewStore(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "analytics-store"),
	}
}

func (s *Store) SaveSnapshot(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	query, args, err := psql.Insert("analytics_snapshots").
		Columns("data", "captured_at").
		Values(data, time.Now().UTC()).
		ToSql()
	if err != nil {
		return fmt.Errorf("building snapshot insert: %w", err)
	}
	if _, err := s.db.DB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Debug("analytics snapshot saved", "total_plans", stats.TotalPlans)
	return nil
}

// LatestSnapshot returns nil, nil when nothing has been saved yet.
func (s *Store) LatestSnapshot(ctx context.Context) (*analytics.AggregatedStats, error) {
	query, args, err := latestQuery(1)
	if err != nil {
		return nil, err
	}
	var data []byte
	err = s.db.DB.QueryRowContext(ctx, query, args...).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var stats analytics.AggregatedStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	return &stats, nil
}

func latestQuery(limit uint64) (string, []any, error) {
	query, args, err := psql.Select("data").
		From("analytics_snapshots").
		OrderBy("captured_at DESC").
		Limit(limit).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("building snapshot query: %w", err)
	}
	return query, args, nil
}

// StartPeriodicSave snapshots agg every interval and once more on shutdown.
func (s *Store) StartPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.SaveSnapshot(shutdownCtx, agg.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
}
