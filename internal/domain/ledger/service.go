package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/touristlog/touristlog-api/internal/pkg/logger"
)

// Store is the persistence the history service reads from. Every lookup is a
// batch; nothing is queried per row.
type Store interface {
	FindTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error)
	CountTransactions(ctx context.Context, f TransactionFilter) (int, error)
	GetUser(ctx context.Context, id string) (*User, error)
	FindUsers(ctx context.Context, ids []string) ([]User, error)
	FindArticles(ctx context.Context, ids []string) ([]Article, error)
	FindTopics(ctx context.Context, ids []string) ([]Topic, error)
	FindArticlesByAuthor(ctx context.Context, userID string) ([]Article, error)
	FindTopicsByAdvertiser(ctx context.Context, userID string) ([]Topic, error)
}

// BuildObserver records how long building a ledger view took.
type BuildObserver interface {
	ObserveLedgerBuild(view string, d time.Duration)
}

type Service struct {
	store   Store
	metrics BuildObserver
}

func NewService(store Store, metrics BuildObserver) *Service {
	return &Service{store: store, metrics: metrics}
}

// History builds the caller's attributed transaction history and balance.
func (s *Service) History(ctx context.Context, caller Caller) (*Summary, error) {
	start := time.Now()
	defer s.observe("history", start)

	user, err := s.store.GetUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	articles, err := s.store.FindArticlesByAuthor(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	topics, err := s.store.FindTopicsByAdvertiser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	articleIDs := make([]string, 0, len(articles))
	for _, a := range articles {
		articleIDs = append(articleIDs, a.ID)
	}
	topicIDs := make([]string, 0, len(topics))
	for _, t := range topics {
		topicIDs = append(topicIDs, t.ID)
	}

	actor := Actor{ID: caller.UserID, Role: ResolveRole(user, topicIDs, caller)}

	filters := []TransactionFilter{{UserIDs: []string{caller.UserID}}}
	if len(articleIDs) > 0 {
		filters = append(filters, TransactionFilter{ArticleIDs: articleIDs})
	}
	if len(topicIDs) > 0 {
		filters = append(filters, TransactionFilter{TopicIDs: topicIDs})
	}
	if actor.Role.IsAdvertiser() {
		filters = append(filters, TransactionFilter{AdvertiserID: caller.UserID})
	}

	rows, err := s.collect(ctx, filters)
	if err != nil {
		return nil, err
	}

	attributed, err := s.attribute(ctx, rows)
	if err != nil {
		return nil, err
	}

	summary := Aggregate(actor, attributed)

	logger.FromContext(ctx).Debug().
		Str("user_id", caller.UserID).
		Str("role", actor.Role.Kind().String()).
		Int("transactions", len(summary.Transactions)).
		Msg("Transaction history built")

	return &summary, nil
}

// collect runs the overlapping queries concurrently and dedupes the union.
func (s *Service) collect(ctx context.Context, filters []TransactionFilter) ([]Transaction, error) {
	results := make([][]Transaction, len(filters))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range filters {
		g.Go(func() error {
			txs, err := s.store.FindTransactions(gctx, f)
			if err != nil {
				return err
			}
			results[i] = txs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Transaction
	for _, r := range results {
		all = append(all, r...)
	}
	return Dedupe(all, transactionID), nil
}

// attribute batch-loads every referenced record, then resolves parties.
// Articles and topics are loaded first so their owners join the user batch.
func (s *Service) attribute(ctx context.Context, rows []Transaction) ([]AttributedTransaction, error) {
	articleSet := map[string]struct{}{}
	topicSet := map[string]struct{}{}
	for _, tx := range rows {
		if tx.ArticleID != nil {
			articleSet[*tx.ArticleID] = struct{}{}
		}
		if tx.TopicID != nil {
			topicSet[*tx.TopicID] = struct{}{}
		}
	}

	var (
		articles []Article
		topics   []Topic
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		articles, err = s.store.FindArticles(gctx, keys(articleSet))
		return err
	})
	g.Go(func() error {
		var err error
		topics, err = s.store.FindTopics(gctx, keys(topicSet))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load related records: %w", err)
	}

	lk := NewLookups(nil, articles, topics)
	users, err := s.store.FindUsers(ctx, ReferencedUserIDs(rows, lk))
	if err != nil {
		return nil, err
	}
	lk = NewLookups(users, articles, topics)

	out := AttributeAll(rows, lk)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Listing is one page of the admin transaction listing.
type Listing struct {
	Transactions []AttributedTransaction `json:"transactions"`
	Total        int                     `json:"total"`
	InflowXym    float64                 `json:"inflowXym"`
	OutflowXym   float64                 `json:"outflowXym"`
}

// ListAll returns a filtered page of every transaction, attributed.
func (s *Service) ListAll(ctx context.Context, f TransactionFilter) (*Listing, error) {
	start := time.Now()
	defer s.observe("admin", start)

	if f.Limit < 0 || f.Offset < 0 || (f.From != nil && f.To != nil && !f.From.Before(*f.To)) {
		return nil, ErrInvalidFilter
	}

	rows, err := s.store.FindTransactions(ctx, f)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountTransactions(ctx, f)
	if err != nil {
		return nil, err
	}

	attributed, err := s.attribute(ctx, Dedupe(rows, transactionID))
	if err != nil {
		return nil, err
	}

	listing := &Listing{Transactions: attributed, Total: total}
	for _, tx := range attributed {
		if tx.Amount > 0 {
			listing.InflowXym += tx.Amount
		} else {
			listing.OutflowXym += -tx.Amount
		}
	}
	return listing, nil
}

func (s *Service) observe(view string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveLedgerBuild(view, time.Since(start))
	}
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
