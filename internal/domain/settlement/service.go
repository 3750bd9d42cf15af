package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/touristlog/touristlog-api/internal/domain/ledger"
	"github.com/touristlog/touristlog-api/internal/domain/pageview"
	"github.com/touristlog/touristlog-api/internal/pkg/lock"
	"github.com/touristlog/touristlog-api/internal/pkg/logger"
)

// Rail moves XYM between addresses and returns the transfer hash.
type Rail interface {
	Transfer(ctx context.Context, from, to string, amount float64, memo string) (string, error)
}

type LedgerStore interface {
	FindTopics(ctx context.Context, ids []string) ([]ledger.Topic, error)
	FindArticlesByTopic(ctx context.Context, topicID string) ([]ledger.Article, error)
	FindUsers(ctx context.Context, ids []string) ([]ledger.User, error)
	RecordTransactions(ctx context.Context, rows ...*ledger.Transaction) error
}

type PageViewStore interface {
	GetByID(ctx context.Context, id string) (*pageview.MonthlyPageView, error)
	Claim(ctx context.Context, id, batchID string) (bool, error)
	ReleaseClaim(ctx context.Context, id, batchID string) error
	MarkPaid(ctx context.Context, id, batchID, hashes string, paidAt time.Time) (bool, error)
}

// MetricsRecorder receives settlement outcomes.
type MetricsRecorder interface {
	RecordPayout(status string, amount float64)
	RecordSettlement(outcome string)
	RecordRailLatency(d time.Duration)
}

type Config struct {
	TreasuryAddress string
	Concurrency     int
	LockTTL         time.Duration
}

type Service struct {
	ledger    LedgerStore
	pageviews PageViewStore
	rail      Rail
	locker    lock.Locker
	metrics   MetricsRecorder
	cfg       Config
	now       func() time.Time
}

func NewService(ls LedgerStore, ps PageViewStore, rail Rail, locker lock.Locker, metrics MetricsRecorder, cfg Config) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	return &Service{
		ledger:    ls,
		pageviews: ps,
		rail:      rail,
		locker:    locker,
		metrics:   metrics,
		cfg:       cfg,
		now:       time.Now,
	}
}

// batch is everything a payout task needs; it is read-only once built.
type batch struct {
	id         string
	pv         *pageview.MonthlyPageView
	topic      *ledger.Topic
	advertiser *ledger.User
	users      map[string]*ledger.User
	amount     float64
	memo       string
}

// Settle pays a confirmed month's ad fee to the topic's distinct authors.
// All preconditions are checked before the first rail call. The lock only
// turns concurrent requests away early; the page view's claim is what keeps a
// second batch off the rail, however long the first one runs. A result is
// returned alongside ErrNoSuccessfulPayouts when every payout failed.
func (s *Service) Settle(ctx context.Context, caller ledger.Caller, pageViewID string) (*Result, error) {
	log := logger.FromContext(ctx)

	pv, topic, articles, err := s.check(ctx, caller, pageViewID)
	if err != nil {
		s.recordSettlement("rejected")
		return nil, err
	}

	unlock, err := s.locker.Acquire(ctx, "settlement:"+pv.ID, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			s.recordSettlement("rejected")
			return nil, ErrSettlementInProgress
		}
		return nil, fmt.Errorf("acquire settlement lock: %w", err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Str("page_view_id", pv.ID).Msg("Failed to release settlement lock")
		}
	}()

	batchID := uuid.NewString()
	if err := s.claim(ctx, pv.ID, batchID); err != nil {
		s.recordSettlement("rejected")
		return nil, err
	}
	release := func(reason string) {
		if err := s.pageviews.ReleaseClaim(context.WithoutCancel(ctx), pv.ID, batchID); err != nil {
			log.Error().Err(err).Str("page_view_id", pv.ID).Str("batch_id", batchID).Msg("Failed to release settlement claim after " + reason)
		}
	}

	recipients := DistinctAuthors(articles)
	b, err := s.prepare(ctx, batchID, pv, topic, recipients)
	if err != nil {
		release("prepare error")
		return nil, err
	}

	results := s.payAll(ctx, b, recipients)

	res := &Result{
		PageViewID:        pv.ID,
		BatchID:           b.id,
		PerAuthorAmount:   b.amount,
		TransactionHashes: []string{},
		PaymentResults:    results,
	}
	succeeded := 0
	seen := map[string]struct{}{}
	for _, r := range results {
		if r.Status != StatusSuccess {
			continue
		}
		succeeded++
		res.TotalPaidXym += r.Amount
		if _, ok := seen[r.TransactionHash]; !ok {
			seen[r.TransactionHash] = struct{}{}
			res.TransactionHashes = append(res.TransactionHashes, r.TransactionHash)
		}
	}

	if succeeded == 0 {
		// nothing moved, so the page view may be settled again
		release("a batch with no payouts")
		res.Message = fmt.Sprintf("No payouts succeeded for %d author(s)", len(results))
		log.Error().
			Str("page_view_id", pv.ID).
			Str("batch_id", b.id).
			Int("authors", len(results)).
			Msg("Settlement failed, page view left unpaid")
		s.recordSettlement("failed")
		return res, ErrNoSuccessfulPayouts
	}

	// payouts already moved money; finalize even if the caller went away.
	// The claim stays on the row whatever happens next.
	paidAt := s.now().UTC()
	marked, err := s.pageviews.MarkPaid(context.WithoutCancel(ctx), pv.ID, b.id, strings.Join(res.TransactionHashes, ","), paidAt)
	if err != nil {
		log.Error().Err(err).Str("page_view_id", pv.ID).Str("batch_id", b.id).Msg("Failed to mark page view paid after payouts")
		s.recordSettlement("unfinalized")
		res.Message = "Payouts were sent but the page view could not be marked paid"
		return res, fmt.Errorf("mark page view paid: %w", err)
	}
	if !marked {
		log.Error().Str("page_view_id", pv.ID).Str("batch_id", b.id).Msg("Settlement claim lost, payouts need reconciliation")
		s.recordSettlement("unfinalized")
		res.Message = fmt.Sprintf("Paid %d of %d author(s) but the page view was no longer held by this batch", succeeded, len(results))
		return res, ErrClaimLost
	}

	res.Success = true
	res.Message = fmt.Sprintf("Paid %d of %d author(s)", succeeded, len(results))
	log.Info().
		Str("page_view_id", pv.ID).
		Str("batch_id", b.id).
		Int("succeeded", succeeded).
		Int("authors", len(results)).
		Float64("paid_xym", res.TotalPaidXym).
		Msg("Settlement completed")
	s.recordSettlement("paid")
	return res, nil
}

// claim reserves the page view for batchID. A row that cannot be claimed is
// either paid or held by another batch.
func (s *Service) claim(ctx context.Context, pageViewID, batchID string) error {
	ok, err := s.pageviews.Claim(ctx, pageViewID, batchID)
	if err != nil {
		return fmt.Errorf("claim page view: %w", err)
	}
	if ok {
		return nil
	}
	pv, err := s.pageviews.GetByID(ctx, pageViewID)
	if err != nil {
		return err
	}
	if pv.IsPaid {
		return ErrAlreadyPaid
	}
	return ErrSettlementInProgress
}

// check validates every precondition without side effects.
func (s *Service) check(ctx context.Context, caller ledger.Caller, pageViewID string) (*pageview.MonthlyPageView, *ledger.Topic, []ledger.Article, error) {
	pv, err := s.pageviews.GetByID(ctx, pageViewID)
	if err != nil {
		if errors.Is(err, pageview.ErrNotFound) {
			return nil, nil, nil, ErrNotFound
		}
		return nil, nil, nil, err
	}

	topics, err := s.ledger.FindTopics(ctx, []string{pv.TopicID})
	if err != nil {
		return nil, nil, nil, err
	}
	if len(topics) == 0 {
		return nil, nil, nil, ErrTopicNotFound
	}
	topic := &topics[0]

	if !caller.IsAdmin && !topic.OwnedBy(caller.UserID) {
		return nil, nil, nil, ErrUnauthorized
	}
	if pv.IsPaid {
		return nil, nil, nil, ErrAlreadyPaid
	}
	if pv.Claimed() {
		return nil, nil, nil, ErrSettlementInProgress
	}
	if !pv.IsConfirmed {
		return nil, nil, nil, ErrNotConfirmed
	}
	if !pv.MeetsThreshold(topic.MonthlyPVThreshold) {
		return nil, nil, nil, ErrThresholdNotMet
	}
	if topic.AdFee <= 0 {
		return nil, nil, nil, ErrNoFee
	}

	articles, err := s.ledger.FindArticlesByTopic(ctx, topic.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(DistinctAuthors(articles)) == 0 {
		return nil, nil, nil, ErrNoArticles
	}
	return pv, topic, articles, nil
}

// prepare batch-loads the recipients and the advertiser.
func (s *Service) prepare(ctx context.Context, batchID string, pv *pageview.MonthlyPageView, topic *ledger.Topic, recipients []Recipient) (*batch, error) {
	ids := make([]string, 0, len(recipients)+1)
	for _, r := range recipients {
		ids = append(ids, r.UserID)
	}
	if topic.AdvertiserID != nil {
		ids = append(ids, *topic.AdvertiserID)
	}

	users, err := s.ledger.FindUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	lk := ledger.NewLookups(users, nil, nil)

	b := &batch{
		id:     batchID,
		pv:     pv,
		topic:  topic,
		users:  lk.Users,
		amount: PerAuthorAmount(topic.AdFee, len(recipients)),
		memo:   fmt.Sprintf("Tourist Log ad revenue: %s %04d-%02d", topic.Title, pv.Year, pv.Month),
	}
	if topic.AdvertiserID != nil {
		b.advertiser = lk.Users[*topic.AdvertiserID]
	}
	return b, nil
}

// payAll fans the payouts out and waits for every one of them. Each task
// writes only its own slot.
func (s *Service) payAll(ctx context.Context, b *batch, recipients []Recipient) []PaymentResult {
	results := make([]PaymentResult, len(recipients))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, r := range recipients {
		g.Go(func() error {
			results[i] = s.pay(ctx, b, r)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (s *Service) pay(ctx context.Context, b *batch, r Recipient) PaymentResult {
	log := logger.FromContext(ctx).With().
		Str("batch_id", b.id).
		Str("author_id", r.UserID).
		Float64("amount", b.amount).
		Logger()

	u := b.users[r.UserID]
	res := PaymentResult{AuthorID: r.UserID, Amount: b.amount}
	if u != nil {
		res.AuthorName = u.Name
		res.WalletAddress = u.Wallet()
	}

	if res.WalletAddress == "" {
		res.Status = StatusSkipped
		res.Error = reasonNoWallet
		log.Warn().Msg("Payout skipped, author has no wallet address")
		s.recordPayout(res)
		return res
	}

	start := s.now()
	hash, err := s.rail.Transfer(ctx, s.cfg.TreasuryAddress, res.WalletAddress, b.amount, b.memo)
	if s.metrics != nil {
		s.metrics.RecordRailLatency(s.now().Sub(start))
	}
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		log.Error().Err(err).Str("wallet", res.WalletAddress).Msg("Payout failed")
		s.recordPayout(res)
		return res
	}

	res.Status = StatusSuccess
	res.TransactionHash = hash
	s.recordPayout(res)

	// the transfer happened; a recording failure must not turn it into a failure
	if err := s.ledger.RecordTransactions(context.WithoutCancel(ctx), s.ledgerRows(b, r, res)...); err != nil {
		log.Error().Err(err).Str("hash", hash).Msg("Payout succeeded but ledger rows were not recorded")
	} else {
		log.Info().Str("hash", hash).Msg("Payout succeeded")
	}
	return res
}

// ledgerRows builds the advertiser's debit and the author's credit.
func (s *Service) ledgerRows(b *batch, r Recipient, res PaymentResult) []*ledger.Transaction {
	topicID := b.topic.ID
	articleID := r.ArticleID
	authorID := r.UserID

	meta := ledger.MetadataFields{
		RecipientID:  r.UserID,
		AuthorID:     r.UserID,
		AuthorName:   res.AuthorName,
		ArticleTitle: r.Title,
		BatchID:      b.id,
	}
	if b.topic.AdvertiserID != nil {
		meta.AdvertiserID = *b.topic.AdvertiserID
	}
	if b.advertiser != nil {
		meta.AdvertiserName = b.advertiser.Name
	}

	return []*ledger.Transaction{
		{
			Type:            ledger.TypeAdvertisement,
			Amount:          -res.Amount,
			TransactionHash: res.TransactionHash,
			ActorUserID:     b.topic.AdvertiserID,
			ArticleID:       &articleID,
			TopicID:         &topicID,
			Metadata:        ledger.ParsedMetadata(meta),
		},
		{
			Type:            ledger.TypeAdRevenue,
			Amount:          res.Amount,
			TransactionHash: res.TransactionHash,
			ActorUserID:     &authorID,
			ArticleID:       &articleID,
			TopicID:         &topicID,
			Metadata:        ledger.ParsedMetadata(meta),
			IsReceived:      true,
		},
	}
}

func (s *Service) recordPayout(r PaymentResult) {
	if s.metrics != nil {
		s.metrics.RecordPayout(string(r.Status), r.Amount)
	}
}

func (s *Service) recordSettlement(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordSettlement(outcome)
	}
}
