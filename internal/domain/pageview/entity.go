package pageview

import "time"

// MonthlyPageView is the page-view count of one topic for one calendar month.
// IsPaid flips to true once and never back. SettlementBatchID is set when a
// settlement claims the row before its first transfer and is only cleared
// again if that settlement paid nobody.
type MonthlyPageView struct {
	ID                string     `db:"id" json:"id"`
	TopicID           string     `db:"topic_id" json:"topicId"`
	Year              int        `db:"year" json:"year"`
	Month             int        `db:"month" json:"month"`
	PageViews         int64      `db:"page_views" json:"pageViews"`
	IsConfirmed       bool       `db:"is_confirmed" json:"isConfirmed"`
	IsPaid            bool       `db:"is_paid" json:"isPaid"`
	PaidAt            *time.Time `db:"paid_at" json:"paidAt,omitempty"`
	TransactionHash   *string    `db:"transaction_hash" json:"transactionHash,omitempty"`
	SettlementBatchID *string    `db:"settlement_batch_id" json:"settlementBatchId,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updatedAt"`
}

// Claimed reports whether a settlement batch holds the row.
func (p *MonthlyPageView) Claimed() bool {
	return p.SettlementBatchID != nil
}

// MeetsThreshold reports whether the count reaches the topic's gate.
func (p *MonthlyPageView) MeetsThreshold(threshold int64) bool {
	return p.PageViews >= threshold
}

// Payable reports whether the period can be settled.
func (p *MonthlyPageView) Payable(threshold int64) bool {
	return !p.IsPaid && !p.Claimed() && p.IsConfirmed && p.MeetsThreshold(threshold)
}

// Period identifies a calendar month.
type Period struct {
	Year  int
	Month time.Month
}

func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Previous returns the calendar month before p.
func (p Period) Previous() Period {
	if p.Month == time.January {
		return Period{Year: p.Year - 1, Month: time.December}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

func (p Period) After(o Period) bool {
	return p.Year > o.Year || (p.Year == o.Year && p.Month > o.Month)
}

// RecordInput is a page-view entry for one period.
type RecordInput struct {
	Year      int   `json:"year" validate:"required,gte=2000,lte=9999"`
	Month     int   `json:"month" validate:"required,gte=1,lte=12"`
	PageViews int64 `json:"pageViews" validate:"gte=0"`
	Confirmed bool  `json:"isConfirmed"`
}

// Status is a page view together with its topic's gate.
type Status struct {
	MonthlyPageView
	Threshold int64 `json:"threshold"`
	Payable   bool  `json:"payable"`
}
