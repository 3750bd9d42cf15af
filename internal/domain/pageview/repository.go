package pageview

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const columns = `id, topic_id, year, month, page_views, is_confirmed, is_paid, paid_at, transaction_hash, settlement_batch_id, created_at, updated_at`

// Upsert writes the count for (topic, year, month). A paid row is left
// untouched and ErrAlreadyPaid is returned.
func (r *Repository) Upsert(ctx context.Context, pv *MonthlyPageView) error {
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO monthly_page_views (id, topic_id, year, month, page_views, is_confirmed)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (topic_id, year, month) DO UPDATE
		SET page_views = EXCLUDED.page_views,
		    is_confirmed = EXCLUDED.is_confirmed,
		    updated_at = now()
		WHERE monthly_page_views.is_paid = false
		RETURNING `+columns,
		pv.ID, pv.TopicID, pv.Year, pv.Month, pv.PageViews, pv.IsConfirmed,
	).StructScan(pv)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAlreadyPaid
	}
	if err != nil {
		return fmt.Errorf("upsert page view: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (*MonthlyPageView, error) {
	var pv MonthlyPageView
	err := r.db.GetContext(ctx, &pv, `SELECT `+columns+` FROM monthly_page_views WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get page view: %w", err)
	}
	return &pv, nil
}

func (r *Repository) ListByTopic(ctx context.Context, topicID string) ([]MonthlyPageView, error) {
	var out []MonthlyPageView
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+columns+` FROM monthly_page_views
		WHERE topic_id = $1
		ORDER BY year DESC, month DESC
	`, topicID)
	if err != nil {
		return nil, fmt.Errorf("list page views: %w", err)
	}
	return out, nil
}

// Claim reserves the row for one settlement batch. Only an unpaid, unclaimed
// row can be claimed, so at most one batch ever reaches the payment rail.
func (r *Repository) Claim(ctx context.Context, id, batchID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE monthly_page_views
		SET settlement_batch_id = $2, updated_at = now()
		WHERE id = $1 AND is_paid = false AND settlement_batch_id IS NULL
	`, id, batchID)
	if err != nil {
		return false, fmt.Errorf("claim page view: %w", err)
	}
	return affectedOne(res)
}

// ReleaseClaim drops the batch's claim on an unpaid row.
func (r *Repository) ReleaseClaim(ctx context.Context, id, batchID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE monthly_page_views
		SET settlement_batch_id = NULL, updated_at = now()
		WHERE id = $1 AND settlement_batch_id = $2 AND is_paid = false
	`, id, batchID)
	if err != nil {
		return fmt.Errorf("release page view claim: %w", err)
	}
	return nil
}

// MarkPaid flips is_paid only if it is still false and the row is held by
// batchID. It reports whether this call made the transition.
func (r *Repository) MarkPaid(ctx context.Context, id, batchID, hashes string, paidAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE monthly_page_views
		SET is_paid = true, paid_at = $2, transaction_hash = $3, updated_at = now()
		WHERE id = $1 AND is_paid = false AND settlement_batch_id = $4
	`, id, paidAt, hashes, batchID)
	if err != nil {
		return false, fmt.Errorf("mark page view paid: %w", err)
	}
	return affectedOne(res)
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
