package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ProcessedURLRepository is the dedupe ledger: the set of source URLs that
// have already been evaluated, whether or not they produced a lead.
type ProcessedURLRepository struct {
	db *sqlx.DB
}

// NewProcessedURLRepository creates a new processed-URL repository.
func NewProcessedURLRepository(db *sqlx.DB) *ProcessedURLRepository {
	return &ProcessedURLRepository{db: db}
}

// CheckAndMark atomically claims url. It returns true if this call is the
// first time url has been seen, false if it was already processed. The claim
// is a single conflict-guarded insert, so two concurrent callers with the
// same url can never both observe first-time.
func (r *ProcessedURLRepository) CheckAndMark(ctx context.Context, url string) (bool, error) {
	query := r.db.Rebind(`
		INSERT INTO processed_urls (url, processed_at)
		VALUES (?, ?)
		ON CONFLICT (url) DO NOTHING
	`)

	res, err := r.db.ExecContext(ctx, query, url, time.Now().UTC().Unix())
	if err != nil {
		return false, fmt.Errorf("failed to claim url: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}

	return affected == 1, nil
}

// Contains reports whether url has already been processed.
func (r *ProcessedURLRepository) Contains(ctx context.Context, url string) (bool, error) {
	query := r.db.Rebind(`SELECT COUNT(*) FROM processed_urls WHERE url = ?`)

	var count int64
	if err := r.db.GetContext(ctx, &count, query, url); err != nil {
		return false, fmt.Errorf("failed to check url: %w", err)
	}

	return count > 0, nil
}

// Count returns the size of the processed-URL set.
func (r *ProcessedURLRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM processed_urls`); err != nil {
		return 0, fmt.Errorf("failed to count processed urls: %w", err)
	}
	return count, nil
}
