package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// TransactionFilter selects ledger rows. Non-empty conditions are ANDed.
type TransactionFilter struct {
	UserIDs      []string
	ArticleIDs   []string
	TopicIDs     []string
	AdvertiserID string
	Types        []TransactionType
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const transactionColumns = `id, type, amount, transaction_hash, user_id, article_id, topic_id, metadata, is_received, created_at`

func (f TransactionFilter) where() (string, []interface{}) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.UserIDs) > 0 {
		conds = append(conds, "user_id = ANY("+arg(pq.Array(f.UserIDs))+")")
	}
	if len(f.ArticleIDs) > 0 {
		conds = append(conds, "article_id = ANY("+arg(pq.Array(f.ArticleIDs))+")")
	}
	if len(f.TopicIDs) > 0 {
		conds = append(conds, "topic_id = ANY("+arg(pq.Array(f.TopicIDs))+")")
	}
	if f.AdvertiserID != "" {
		p := arg(f.AdvertiserID)
		// string-encoded metadata is matched the same way attribution reads it
		conds = append(conds, "(metadata->>'advertiserId' = "+p+
			" OR (jsonb_typeof(metadata) = 'string' AND (metadata #>> '{}') LIKE '%\"advertiserId\":\"' || "+p+" || '\"%'))")
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		conds = append(conds, "type = ANY("+arg(pq.Array(types))+")")
	}
	if f.From != nil {
		conds = append(conds, "created_at >= "+arg(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "created_at < "+arg(*f.To))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *Repository) FindTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error) {
	where, args := f.where()
	q := `SELECT ` + transactionColumns + ` FROM transactions` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit, f.Offset)
		q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	var txs []Transaction
	if err := r.db.SelectContext(ctx, &txs, q, args...); err != nil {
		return nil, fmt.Errorf("find transactions: %w", err)
	}
	return txs, nil
}

func (r *Repository) CountTransactions(ctx context.Context, f TransactionFilter) (int, error) {
	where, args := f.where()
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM transactions`+where, args...); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (r *Repository) FindUsers(ctx context.Context, ids []string) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []User
	err := r.db.SelectContext(ctx, &users, `
		SELECT id, name, wallet_address, is_advertiser, is_admin
		FROM users WHERE id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	return users, nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `
		SELECT id, name, wallet_address, is_advertiser, is_admin
		FROM users WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

const articleColumns = `id, title, user_id, topic_id, view_count, is_purchased, purchased_by`

func (r *Repository) FindArticles(ctx context.Context, ids []string) ([]Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var articles []Article
	if err := r.db.SelectContext(ctx, &articles,
		`SELECT `+articleColumns+` FROM articles WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find articles: %w", err)
	}
	return articles, nil
}

func (r *Repository) FindArticlesByAuthor(ctx context.Context, userID string) ([]Article, error) {
	var articles []Article
	if err := r.db.SelectContext(ctx, &articles,
		`SELECT `+articleColumns+` FROM articles WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("find articles by author: %w", err)
	}
	return articles, nil
}

func (r *Repository) FindArticlesByTopic(ctx context.Context, topicID string) ([]Article, error) {
	var articles []Article
	if err := r.db.SelectContext(ctx, &articles,
		`SELECT `+articleColumns+` FROM articles WHERE topic_id = $1 ORDER BY id`, topicID); err != nil {
		return nil, fmt.Errorf("find articles by topic: %w", err)
	}
	return articles, nil
}

const topicColumns = `id, title, advertiser_id, ad_fee, monthly_pv_threshold`

func (r *Repository) FindTopics(ctx context.Context, ids []string) ([]Topic, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var topics []Topic
	if err := r.db.SelectContext(ctx, &topics,
		`SELECT `+topicColumns+` FROM topics WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find topics: %w", err)
	}
	return topics, nil
}

func (r *Repository) FindTopicsByAdvertiser(ctx context.Context, userID string) ([]Topic, error) {
	var topics []Topic
	if err := r.db.SelectContext(ctx, &topics,
		`SELECT `+topicColumns+` FROM topics WHERE advertiser_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("find topics by advertiser: %w", err)
	}
	return topics, nil
}

// RecordTransactions appends rows in a single database transaction and fills
// in their ids and timestamps.
func (r *Repository) RecordTransactions(ctx context.Context, rows ...*Transaction) error {
	if len(rows) == 0 {
		return ErrNothingToWrite
	}

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, row := range rows {
		err := tx.QueryRowxContext(ctx, `
			INSERT INTO transactions (type, amount, transaction_hash, user_id, article_id, topic_id, metadata, is_received)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at
		`, string(row.Type), row.Amount, row.TransactionHash, row.ActorUserID, row.ArticleID,
			row.TopicID, row.Metadata, row.IsReceived).Scan(&row.ID, &row.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert %s transaction: %w", row.Type, err)
		}
	}

	return tx.Commit()
}
