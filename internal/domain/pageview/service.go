package pageview

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/touristlog/touristlog-api/internal/domain/ledger"
	"github.com/touristlog/touristlog-api/internal/pkg/logger"
)

type Store interface {
	Upsert(ctx context.Context, pv *MonthlyPageView) error
	GetByID(ctx context.Context, id string) (*MonthlyPageView, error)
	ListByTopic(ctx context.Context, topicID string) ([]MonthlyPageView, error)
}

// TopicFinder loads topics by id.
type TopicFinder interface {
	FindTopics(ctx context.Context, ids []string) ([]ledger.Topic, error)
}

type Service struct {
	store       Store
	topics      TopicFinder
	deadlineDay int
	now         func() time.Time
}

// NewService creates the page-view service. Non-admin entries for the previous
// month are accepted up to and including deadlineDay of the current month.
func NewService(store Store, topics TopicFinder, deadlineDay int) *Service {
	return &Service{
		store:       store,
		topics:      topics,
		deadlineDay: deadlineDay,
		now:         time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Record enters or corrects the page-view count of one topic for one month.
func (s *Service) Record(ctx context.Context, caller ledger.Caller, topicID string, in RecordInput) (*MonthlyPageView, error) {
	topic, err := s.authorize(ctx, caller, topicID)
	if err != nil {
		return nil, err
	}

	if err := s.checkPeriod(caller, Period{Year: in.Year, Month: time.Month(in.Month)}); err != nil {
		return nil, err
	}

	pv := &MonthlyPageView{
		ID:          uuid.NewString(),
		TopicID:     topic.ID,
		Year:        in.Year,
		Month:       in.Month,
		PageViews:   in.PageViews,
		IsConfirmed: in.Confirmed,
	}
	if err := s.store.Upsert(ctx, pv); err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info().
		Str("topic_id", topic.ID).
		Str("page_view_id", pv.ID).
		Int("year", pv.Year).
		Int("month", pv.Month).
		Int64("page_views", pv.PageViews).
		Bool("payable", pv.Payable(topic.MonthlyPVThreshold)).
		Msg("Monthly page views recorded")

	return pv, nil
}

// ListByTopic returns the topic's periods, newest first.
func (s *Service) ListByTopic(ctx context.Context, caller ledger.Caller, topicID string) ([]Status, error) {
	topic, err := s.authorize(ctx, caller, topicID)
	if err != nil {
		return nil, err
	}

	rows, err := s.store.ListByTopic(ctx, topic.ID)
	if err != nil {
		return nil, err
	}

	out := make([]Status, 0, len(rows))
	for _, pv := range rows {
		out = append(out, Status{
			MonthlyPageView: pv,
			Threshold:       topic.MonthlyPVThreshold,
			Payable:         pv.Payable(topic.MonthlyPVThreshold),
		})
	}
	return out, nil
}

func (s *Service) authorize(ctx context.Context, caller ledger.Caller, topicID string) (*ledger.Topic, error) {
	topics, err := s.topics.FindTopics(ctx, []string{topicID})
	if err != nil {
		return nil, err
	}
	if len(topics) == 0 {
		return nil, ErrTopicNotFound
	}
	topic := &topics[0]
	if !caller.IsAdmin && !topic.OwnedBy(caller.UserID) {
		return nil, ErrForbidden
	}
	return topic, nil
}

// checkPeriod enforces the entry window: advertisers may only enter the
// previous month, on or before the deadline day. Admins may enter any period
// that is not in the future. Periods and the deadline are judged in UTC.
func (s *Service) checkPeriod(caller ledger.Caller, p Period) error {
	now := s.now().UTC()
	current := PeriodOf(now)

	if p.After(current) {
		return ErrFuturePeriod
	}
	if caller.IsAdmin {
		return nil
	}
	if p != current.Previous() {
		return ErrPeriodNotAllowed
	}
	if now.Day() > s.deadlineDay {
		return ErrDeadlinePassed
	}
	return nil
}
