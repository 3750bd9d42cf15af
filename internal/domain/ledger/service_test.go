package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubStore struct {
	mu       sync.Mutex
	users    map[string]User
	articles []Article
	topics   []Topic
	txs      []Transaction

	filters   []TransactionFilter
	userCalls [][]string
	txErr     error
}

func (s *stubStore) FindTransactions(_ context.Context, f TransactionFilter) ([]Transaction, error) {
	s.mu.Lock()
	s.filters = append(s.filters, f)
	s.mu.Unlock()
	if s.txErr != nil {
		return nil, s.txErr
	}

	var out []Transaction
	for _, tx := range s.txs {
		if f.matches(tx) {
			out = append(out, tx)
		}
	}
	if f.Limit > 0 {
		end := f.Offset + f.Limit
		if f.Offset >= len(out) {
			return nil, nil
		}
		if end > len(out) {
			end = len(out)
		}
		out = out[f.Offset:end]
	}
	return out, nil
}

func (s *stubStore) CountTransactions(_ context.Context, f TransactionFilter) (int, error) {
	n := 0
	for _, tx := range s.txs {
		if f.matches(tx) {
			n++
		}
	}
	return n, nil
}

// matches mirrors the repository's WHERE clause for the fields tests use.
func (f TransactionFilter) matches(tx Transaction) bool {
	in := func(v *string, set []string) bool {
		if v == nil {
			return false
		}
		for _, s := range set {
			if s == *v {
				return true
			}
		}
		return false
	}
	if len(f.UserIDs) > 0 && !in(tx.ActorUserID, f.UserIDs) {
		return false
	}
	if len(f.ArticleIDs) > 0 && !in(tx.ArticleID, f.ArticleIDs) {
		return false
	}
	if len(f.TopicIDs) > 0 && !in(tx.TopicID, f.TopicIDs) {
		return false
	}
	if f.AdvertiserID != "" && tx.Metadata.Get(KeyAdvertiserID) != f.AdvertiserID {
		return false
	}
	if len(f.Types) > 0 {
		ok := false
		for _, t := range f.Types {
			ok = ok || t == tx.Type
		}
		if !ok {
			return false
		}
	}
	return true
}

func (s *stubStore) GetUser(_ context.Context, id string) (*User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *stubStore) FindUsers(_ context.Context, ids []string) ([]User, error) {
	s.mu.Lock()
	s.userCalls = append(s.userCalls, ids)
	s.mu.Unlock()
	var out []User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *stubStore) FindArticles(_ context.Context, ids []string) ([]Article, error) {
	var out []Article
	for _, a := range s.articles {
		for _, id := range ids {
			if a.ID == id {
				out = append(out, a)
			}
		}
	}
	return out, nil
}

func (s *stubStore) FindTopics(_ context.Context, ids []string) ([]Topic, error) {
	var out []Topic
	for _, t := range s.topics {
		for _, id := range ids {
			if t.ID == id {
				out = append(out, t)
			}
		}
	}
	return out, nil
}

func (s *stubStore) FindArticlesByAuthor(_ context.Context, userID string) ([]Article, error) {
	var out []Article
	for _, a := range s.articles {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubStore) FindTopicsByAdvertiser(_ context.Context, userID string) ([]Topic, error) {
	var out []Topic
	for _, t := range s.topics {
		if t.OwnedBy(userID) {
			out = append(out, t)
		}
	}
	return out, nil
}

type stubObserver struct {
	views []string
}

func (o *stubObserver) ObserveLedgerBuild(view string, _ time.Duration) {
	o.views = append(o.views, view)
}

func newHistoryStore() *stubStore {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &stubStore{
		users: map[string]User{
			"author": {ID: "author", Name: "Author", WalletAddress: strPtr("TAUTHOR")},
			"adv":    {ID: "adv", Name: "Advertiser", IsAdvertiser: true},
			"buyer":  {ID: "buyer", Name: "Buyer"},
		},
		articles: []Article{{ID: "art1", Title: "Hot springs", UserID: "author", TopicID: strPtr("top1")}},
		topics:   []Topic{{ID: "top1", Title: "Onsen", AdvertiserID: strPtr("adv"), AdFee: 300}},
		txs: []Transaction{
			{ID: 77, Type: TypeAdRevenue, Amount: 100, ActorUserID: strPtr("author"), ArticleID: strPtr("art1"), TopicID: strPtr("top1"), IsReceived: true, CreatedAt: t0},
			{ID: 78, Type: TypeAdvertisement, Amount: -100, ActorUserID: strPtr("adv"), ArticleID: strPtr("art1"), TopicID: strPtr("top1"),
				Metadata: ParsedMetadata(MetadataFields{AdvertiserID: "adv", RecipientID: "author"}), CreatedAt: t0},
			{ID: 80, Type: TypeReceiveTip, Amount: 50, ActorUserID: strPtr("author"), Metadata: ParsedMetadata(MetadataFields{PurchaserID: "buyer"}), CreatedAt: t0.Add(time.Hour)},
			{ID: 81, Type: TypePurchase, Amount: -20, ActorUserID: strPtr("author"), Metadata: ParsedMetadata(MetadataFields{AuthorID: "someone"}), CreatedAt: t0.Add(2 * time.Hour)},
		},
	}
}

func TestHistoryAuthorDedupesOverlappingQueries(t *testing.T) {
	store := newHistoryStore()
	obs := &stubObserver{}
	svc := NewService(store, obs)

	s, err := svc.History(context.Background(), Caller{UserID: "author"})
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}

	// 77 matches both the user id and the owned article query
	if len(s.Transactions) != 4 {
		t.Fatalf("expected 4 distinct transactions, got %d", len(s.Transactions))
	}
	if s.TotalReceivedXym != 150 || s.TotalPaidXym != 20 || s.CurrentBalance != 130 {
		t.Fatalf("unexpected totals: %+v", s)
	}
	if s.Transactions[0].ID != 81 {
		t.Fatalf("expected newest first, got id %d", s.Transactions[0].ID)
	}
	if len(store.userCalls) != 1 {
		t.Fatalf("expected a single batched user load, got %d", len(store.userCalls))
	}
	if len(obs.views) != 1 || obs.views[0] != "history" {
		t.Fatalf("expected build observed, got %v", obs.views)
	}
}

func TestHistoryAdvertiserUsesTopicAndMetadataClauses(t *testing.T) {
	store := newHistoryStore()
	svc := NewService(store, nil)

	s, err := svc.History(context.Background(), Caller{UserID: "adv"})
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !s.IsAdvertiser {
		t.Fatal("expected advertiser")
	}

	var sawTopic, sawMeta bool
	for _, f := range store.filters {
		sawTopic = sawTopic || len(f.TopicIDs) > 0
		sawMeta = sawMeta || f.AdvertiserID == "adv"
	}
	if !sawTopic || !sawMeta {
		t.Fatalf("expected topic and metadata clauses, got %+v", store.filters)
	}

	// 77 and 78 only; the advertisement row counts once as paid
	if len(s.Transactions) != 2 || s.TotalPaidXym != 100 {
		t.Fatalf("unexpected summary: %d rows, paid %v", len(s.Transactions), s.TotalPaidXym)
	}
	for _, tx := range s.Transactions {
		if tx.From == nil || tx.From.ID != "adv" {
			t.Fatalf("expected advertiser as payer of %d, got %+v", tx.ID, tx.From)
		}
	}
}

func TestHistoryUnknownUser(t *testing.T) {
	svc := NewService(newHistoryStore(), nil)
	if _, err := svc.History(context.Background(), Caller{UserID: "nobody"}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestHistoryPropagatesStoreError(t *testing.T) {
	store := newHistoryStore()
	store.txErr = errors.New("db down")
	svc := NewService(store, nil)
	if _, err := svc.History(context.Background(), Caller{UserID: "author"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestListAll(t *testing.T) {
	svc := NewService(newHistoryStore(), nil)

	l, err := svc.ListAll(context.Background(), TransactionFilter{Limit: 2})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if l.Total != 4 || len(l.Transactions) != 2 {
		t.Fatalf("expected page of 2 out of 4, got %d of %d", len(l.Transactions), l.Total)
	}
	if l.InflowXym != 100 || l.OutflowXym != 100 {
		t.Fatalf("unexpected page totals: in %v out %v", l.InflowXym, l.OutflowXym)
	}
}

func TestListAllRejectsInvertedRange(t *testing.T) {
	svc := NewService(newHistoryStore(), nil)
	from := time.Now()
	to := from.Add(-time.Hour)
	if _, err := svc.ListAll(context.Background(), TransactionFilter{From: &from, To: &to}); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("expected ErrInvalidFilter, got %v", err)
	}
}
