// Package pipeline holds the background jobs that run beside the trading
// loop.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ranjan2829/PolyBrain/internal/domain"
)

// Archiver periodically moves old trade history from Postgres to S3 cold
// storage.
type Archiver struct {
	blobArchiver  domain.Archiver
	retentionDays int
	interval      time.Duration
	logger        *slog.Logger
}

// NewArchiver creates an archiver that runs every interval and archives
// records older than retentionDays.
func NewArchiver(blobArchiver domain.Archiver, retentionDays int, interval time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		blobArchiver:  blobArchiver,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger.With(slog.String("component", "archiver_job")),
	}
}

// RunOnce executes a single archive pass. The cutoff is computed from the
// retention window at call time.
func (a *Archiver) RunOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)
	a.logger.InfoContext(ctx, "archive run starting",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	positions, err := a.blobArchiver.ArchiveClosedPositions(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archive closed positions before %v: %w", cutoff, err)
	}

	moves, err := a.blobArchiver.ArchiveWhaleMoves(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: archive whale moves before %v: %w", cutoff, err)
	}

	a.logger.InfoContext(ctx, "archive run complete",
		slog.Int64("positions_archived", positions),
		slog.Int64("whale_moves_archived", moves),
	)
	return nil
}

// Run executes archive passes on the configured interval until ctx is
// cancelled. A failed pass is logged and retried on the next tick.
func (a *Archiver) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "archiver started",
		slog.Duration("interval", a.interval),
	)
	defer a.logger.InfoContext(ctx, "archiver stopped")

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.logger.ErrorContext(ctx, "archive run failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
