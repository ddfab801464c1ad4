package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PositionArchive is the durable history of every trade, written
// alongside the hot Redis ledger.
type PositionArchive interface {
	Insert(ctx context.Context, pos Position) error
	RecordClose(ctx context.Context, pos Position) error
	GetByID(ctx context.Context, id string) (Position, error)
	ListClosed(ctx context.Context, opts ListOpts) ([]Position, error)
	RealizedPnL(ctx context.Context, since time.Time) (float64, error)
}

// WhaleMoveStore persists observed whale activity for later analysis.
type WhaleMoveStore interface {
	InsertBatch(ctx context.Context, moves []WhaleMove) error
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]WhaleMove, error)
	ListRecent(ctx context.Context, limit int) ([]WhaleMove, error)
}
