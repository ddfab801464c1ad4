package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ranjan2829/PolyBrain/internal/domain"
)

// PositionArchive implements domain.PositionArchive using PostgreSQL. The
// Redis ledger carries the hot state; every row here is the durable record
// that survives the 7-day TTL.
type PositionArchive struct {
	pool *pgxpool.Pool
}

// NewPositionArchive creates a new PositionArchive backed by the given pool.
func NewPositionArchive(pool *pgxpool.Pool) *PositionArchive {
	return &PositionArchive{pool: pool}
}

const positionSelectCols = `id, market_id, condition_id, question, outcome, token_id,
	buy_price, shares, investment, sell_price, sell_amount, profit,
	exit_reason, status, opened_at, closed_at, updated_at`

func scanPosition(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var status string
	var sellPrice, sellAmount, profit *float64
	var exitReason *string

	err := row.Scan(
		&p.ID, &p.MarketID, &p.ConditionID, &p.Question, &p.Outcome, &p.TokenID,
		&p.BuyPrice, &p.Shares, &p.Investment,
		&sellPrice, &sellAmount, &profit,
		&exitReason, &status,
		&p.OpenedAt, &p.ClosedAt, &p.UpdatedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	if sellPrice != nil {
		p.SellPrice = *sellPrice
	}
	if sellAmount != nil {
		p.SellAmount = *sellAmount
	}
	if profit != nil {
		p.Profit = *profit
	}
	if exitReason != nil {
		p.ExitReason = *exitReason
	}
	p.Status = domain.PositionStatus(status)
	return p, nil
}

// Insert records a freshly opened position.
func (s *PositionArchive) Insert(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			id, market_id, condition_id, question, outcome, token_id,
			buy_price, shares, investment, status, opened_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, NOW()
		)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.MarketID, p.ConditionID, p.Question, p.Outcome, p.TokenID,
		p.BuyPrice, p.Shares, p.Investment, string(p.Status), p.OpenedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert position %s: %w", p.ID, err)
	}
	return nil
}

// RecordClose writes the settlement fields of a closed position.
func (s *PositionArchive) RecordClose(ctx context.Context, p domain.Position) error {
	const query = `
		UPDATE positions SET
			sell_price  = $2,
			sell_amount = $3,
			profit      = $4,
			exit_reason = $5,
			status      = 'closed',
			closed_at   = $6,
			updated_at  = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		p.ID, p.SellPrice, p.SellAmount, p.Profit, p.ExitReason, p.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: record close %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID retrieves a single position by its ID.
func (s *PositionArchive) GetByID(ctx context.Context, id string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions WHERE id = $1`, id)

	p, err := scanPosition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// ListClosed returns closed positions with pagination and optional time filtering.
func (s *PositionArchive) ListClosed(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	query := `SELECT ` + positionSelectCols + ` FROM positions WHERE status = 'closed'`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND closed_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND closed_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY closed_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan closed position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list closed positions: %w", err)
	}
	return positions, nil
}

// RealizedPnL sums the profit of positions closed at or after since.
func (s *PositionArchive) RealizedPnL(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(profit), 0) FROM positions
		 WHERE status = 'closed' AND closed_at >= $1`, since,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("postgres: realized pnl: %w", err)
	}
	return total, nil
}

// Compile-time interface check.
var _ domain.PositionArchive = (*PositionArchive)(nil)
