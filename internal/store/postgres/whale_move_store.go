package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ranjan2829/PolyBrain/internal/domain"
)

// WhaleMoveStore implements domain.WhaleMoveStore using PostgreSQL.
type WhaleMoveStore struct {
	pool *pgxpool.Pool
}

// NewWhaleMoveStore creates a new WhaleMoveStore backed by the given pool.
func NewWhaleMoveStore(pool *pgxpool.Pool) *WhaleMoveStore {
	return &WhaleMoveStore{pool: pool}
}

const whaleMoveSelectCols = `wallet, market_id, question, outcome, side, price, size_usd, shares, ts`

func scanWhaleMoves(rows pgx.Rows) ([]domain.WhaleMove, error) {
	var moves []domain.WhaleMove
	for rows.Next() {
		var m domain.WhaleMove
		if err := rows.Scan(
			&m.Wallet, &m.MarketID, &m.Question, &m.Outcome,
			&m.Side, &m.Price, &m.SizeUSD, &m.Shares, &m.Timestamp,
		); err != nil {
			return nil, err
		}
		moves = append(moves, m)
	}
	return moves, rows.Err()
}

// InsertBatch inserts moves, silently skipping duplicates already recorded
// from a previous sync.
func (s *WhaleMoveStore) InsertBatch(ctx context.Context, moves []domain.WhaleMove) error {
	if len(moves) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO whale_moves (wallet, market_id, question, outcome, side, price, size_usd, shares, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (wallet, market_id, side, ts) DO NOTHING`

	for _, m := range moves {
		batch.Queue(query,
			m.Wallet, m.MarketID, m.Question, m.Outcome,
			m.Side, m.Price, m.SizeUSD, m.Shares, m.Timestamp,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range moves {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert whale moves: %w", err)
		}
	}
	return nil
}

// ListByWallet returns moves for one wallet, newest first.
func (s *WhaleMoveStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.WhaleMove, error) {
	query := `SELECT ` + whaleMoveSelectCols + ` FROM whale_moves WHERE wallet = $1`
	args := []any{wallet}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND ts >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}

	query += " ORDER BY ts DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list whale moves %s: %w", wallet, err)
	}
	defer rows.Close()

	moves, err := scanWhaleMoves(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan whale moves %s: %w", wallet, err)
	}
	return moves, nil
}

// ListRecent returns the most recent moves across all wallets.
func (s *WhaleMoveStore) ListRecent(ctx context.Context, limit int) ([]domain.WhaleMove, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+whaleMoveSelectCols+` FROM whale_moves ORDER BY ts DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent whale moves: %w", err)
	}
	defer rows.Close()

	moves, err := scanWhaleMoves(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan recent whale moves: %w", err)
	}
	return moves, nil
}

// Compile-time interface check.
var _ domain.WhaleMoveStore = (*WhaleMoveStore)(nil)
