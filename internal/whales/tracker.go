// Package whales syncs the Polymarket volume leaderboard and the recent
// trades of its top wallets, keeping a hot copy in Redis and a durable one
// in Postgres.
package whales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ranjan2829/PolyBrain/internal/domain"
	"github.com/ranjan2829/PolyBrain/internal/notify"
)

// lockTTL bounds how long a sync may hold the cluster-wide lock.
const lockTTL = 5 * time.Minute

// Source exposes the leaderboard and per-wallet activity endpoints of the
// Polymarket data API.
type Source interface {
	Leaderboard(ctx context.Context, limit int) ([]domain.WhaleTrader, error)
	TraderActivity(ctx context.Context, wallet string, limit int) ([]domain.WhaleMove, error)
}

// New creates a whale tracker. Only one instance syncs at a time: the run
// is guarded by a distributed lock so multiple bot processes sharing a
// Redis do not hammer the data API in parallel.
func New(cfg Config) *Sync {
	return &Sync{
		source:           cfg.Source,
		cache:            cfg.Cache,
		store:            cfg.Store,
		locks:            cfg.Locks,
		alerts:           cfg.Alerts,
		logger:           cfg.Logger.With(slog.String("component", "whale_tracker")),
		syncInterval:     cfg.SyncInterval,
		leaderboardLimit: cfg.LeaderboardLimit,
		movesPerTrader:   cfg.MovesPerTrader,
		minMoveUSD:       cfg.MinMoveUSD,
	}
}

// Config wires the tracker dependencies. Store and Alerts are optional.
type Config struct {
	Source           Source
	Cache            domain.WhaleCache
	Store            domain.WhaleMoveStore
	Locks            domain.LockManager
	Alerts           *notify.Alerts
	Logger           *slog.Logger
	SyncInterval     time.Duration
	LeaderboardLimit int
	MovesPerTrader   int
	MinMoveUSD       float64 // alert floor; 0 disables move alerts
}

// Sync refreshes the leaderboard and top-wallet activity on a schedule.
type Sync struct {
	source           Source
	cache            domain.WhaleCache
	store            domain.WhaleMoveStore
	locks            domain.LockManager
	alerts           *notify.Alerts
	logger           *slog.Logger
	syncInterval     time.Duration
	leaderboardLimit int
	movesPerTrader   int
	minMoveUSD       float64
}

// Run syncs immediately, then at the configured interval until ctx is
// cancelled.
func (s *Sync) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "whale tracker started",
		slog.Duration("sync_interval", s.syncInterval),
		slog.Int("leaderboard_limit", s.leaderboardLimit),
	)
	defer s.logger.InfoContext(ctx, "whale tracker stopped")

	if err := s.SyncOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "initial whale sync failed",
			slog.String("error", err.Error()),
		)
	}

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.SyncOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.ErrorContext(ctx, "whale sync failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// SyncOnce performs one leaderboard refresh under the cluster lock. When
// another instance holds the lock the sync is skipped silently.
func (s *Sync) SyncOnce(ctx context.Context) error {
	unlock, err := s.locks.Acquire(ctx, "locks:whale_sync", lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			s.logger.DebugContext(ctx, "whale sync already running elsewhere")
			return nil
		}
		return fmt.Errorf("whales: acquire lock: %w", err)
	}
	defer unlock()

	// Moves seen before the previous sync have already been alerted.
	lastSync, err := s.cache.LastSync(ctx)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "read last sync time failed",
			slog.String("error", err.Error()),
		)
	}

	traders, err := s.source.Leaderboard(ctx, s.leaderboardLimit)
	if err != nil {
		return fmt.Errorf("whales: fetch leaderboard: %w", err)
	}
	if err := s.cache.SaveTraders(ctx, traders); err != nil {
		return fmt.Errorf("whales: cache traders: %w", err)
	}

	var moveCount int
	for _, trader := range traders {
		if err := ctx.Err(); err != nil {
			return err
		}

		moves, actErr := s.source.TraderActivity(ctx, trader.Wallet, s.movesPerTrader)
		if actErr != nil {
			s.logger.WarnContext(ctx, "trader activity fetch failed",
				slog.String("wallet", trader.Wallet),
				slog.String("error", actErr.Error()),
			)
			continue
		}
		if len(moves) == 0 {
			continue
		}
		moveCount += len(moves)

		if cacheErr := s.cache.SaveMoves(ctx, trader.Wallet, moves); cacheErr != nil {
			s.logger.WarnContext(ctx, "cache moves failed",
				slog.String("wallet", trader.Wallet),
				slog.String("error", cacheErr.Error()),
			)
		}
		if s.store != nil {
			if storeErr := s.store.InsertBatch(ctx, moves); storeErr != nil {
				s.logger.WarnContext(ctx, "persist moves failed",
					slog.String("wallet", trader.Wallet),
					slog.String("error", storeErr.Error()),
				)
			}
		}

		s.alertBigMoves(ctx, moves, lastSync)
	}

	if err := s.cache.SetLastSync(ctx, time.Now().UTC()); err != nil {
		s.logger.WarnContext(ctx, "record sync time failed",
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "whale sync complete",
		slog.Int("traders", len(traders)),
		slog.Int("moves", moveCount),
	)

	return nil
}

// alertBigMoves notifies on moves at or above the configured notional
// floor that happened since the previous sync.
func (s *Sync) alertBigMoves(ctx context.Context, moves []domain.WhaleMove, since time.Time) {
	// A zero since means this is the first sync; it establishes the
	// baseline without replaying every historical move as an alert.
	if s.alerts == nil || s.minMoveUSD <= 0 || since.IsZero() {
		return
	}
	for _, move := range moves {
		if move.SizeUSD < s.minMoveUSD || !move.Timestamp.After(since) {
			continue
		}
		if err := s.alerts.WhaleMove(ctx, move); err != nil {
			s.logger.WarnContext(ctx, "whale alert failed",
				slog.String("wallet", move.Wallet),
				slog.String("error", err.Error()),
			)
		}
	}
}
