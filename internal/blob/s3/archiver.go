package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ranjan2829/PolyBrain/internal/domain"
)

// Narrow read interfaces for the archiver: it only needs the query methods
// it actually calls, not the full store surfaces. The Postgres stores
// satisfy these implicitly.

// ClosedPositionSource provides read access to settled positions.
type ClosedPositionSource interface {
	ListClosed(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error)
}

// WhaleMoveSource provides read access to recorded whale activity.
type WhaleMoveSource interface {
	ListRecent(ctx context.Context, limit int) ([]domain.WhaleMove, error)
}

// archiveBatchLimit caps how many rows one archive run pulls from Postgres.
const archiveBatchLimit = 10000

// ArchiveImpl implements domain.Archiver by querying Postgres for records
// older than the cutoff, serializing them to JSONL, and uploading the
// result to S3.
//
// Deletion of the archived rows from the primary store is intentionally
// NOT performed here; that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer    domain.BlobWriter
	positions ClosedPositionSource
	moves     WhaleMoveSource
	prefix    string
	logger    *slog.Logger
}

// NewArchiver creates an archiver writing under the given key prefix
// (e.g. "polybrain").
func NewArchiver(
	writer domain.BlobWriter,
	positions ClosedPositionSource,
	moves WhaleMoveSource,
	prefix string,
	logger *slog.Logger,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:    writer,
		positions: positions,
		moves:     moves,
		prefix:    strings.Trim(prefix, "/"),
		logger:    logger.With(slog.String("component", "archiver")),
	}
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// ArchiveClosedPositions uploads every position closed before the cutoff
// to <prefix>/positions/YYYY-MM.jsonl and returns the archived count.
func (a *ArchiveImpl) ArchiveClosedPositions(ctx context.Context, before time.Time) (int64, error) {
	positions, err := a.positions.ListClosed(ctx, domain.ListOpts{
		Limit: archiveBatchLimit,
		Until: &before,
	})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive positions query: %w", err)
	}
	if len(positions) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(positions)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive positions marshal: %w", err)
	}

	path := a.archivePath("positions", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive positions upload: %w", err)
	}

	count := int64(len(positions))
	a.logger.InfoContext(ctx, "archived closed positions",
		slog.String("path", path),
		slog.Int64("count", count),
		slog.Time("before", before),
	)
	return count, nil
}

// ArchiveWhaleMoves uploads recorded whale fills older than the cutoff to
// <prefix>/whale_moves/YYYY-MM.jsonl and returns the archived count.
func (a *ArchiveImpl) ArchiveWhaleMoves(ctx context.Context, before time.Time) (int64, error) {
	recent, err := a.moves.ListRecent(ctx, archiveBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive whale moves query: %w", err)
	}

	var old []domain.WhaleMove
	for _, m := range recent {
		if m.Timestamp.Before(before) {
			old = append(old, m)
		}
	}
	if len(old) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(old)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive whale moves marshal: %w", err)
	}

	path := a.archivePath("whale_moves", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive whale moves upload: %w", err)
	}

	count := int64(len(old))
	a.logger.InfoContext(ctx, "archived whale moves",
		slog.String("path", path),
		slog.Int64("count", count),
		slog.Time("before", before),
	)
	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time:
//
//	polybrain/positions/2026-08.jsonl
//	polybrain/whale_moves/2026-08.jsonl
func (a *ArchiveImpl) archivePath(kind string, before time.Time) string {
	key := fmt.Sprintf("%s/%s.jsonl", kind, before.Format("2006-01"))
	if a.prefix == "" {
		return key
	}
	return a.prefix + "/" + key
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
