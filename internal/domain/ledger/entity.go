package ledger

import (
	"time"
)

// TransactionType identifies the kind of ledger entry.
type TransactionType string

const (
	TypePurchase      TransactionType = "purchase"
	TypeTip           TransactionType = "tip"
	TypeReceiveTip    TransactionType = "receive_tip"
	TypeAdPayment     TransactionType = "ad_payment"
	TypeAdRevenue     TransactionType = "ad_revenue"
	TypeAdvertisement TransactionType = "advertisement"
)

// Transaction is an append-only ledger row. Amount is in XYM.
type Transaction struct {
	ID              int64           `db:"id" json:"id"`
	Type            TransactionType `db:"type" json:"type"`
	Amount          float64         `db:"amount" json:"amount"`
	TransactionHash string          `db:"transaction_hash" json:"transactionHash"`
	ActorUserID     *string         `db:"user_id" json:"userId,omitempty"`
	ArticleID       *string         `db:"article_id" json:"articleId,omitempty"`
	TopicID         *string         `db:"topic_id" json:"topicId,omitempty"`
	Metadata        Metadata        `db:"metadata" json:"metadata"`
	IsReceived      bool            `db:"is_received" json:"isReceived"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
}

// FiledUnder reports whether the row is filed under the given user.
func (t *Transaction) FiledUnder(userID string) bool {
	return t.ActorUserID != nil && *t.ActorUserID == userID
}

type User struct {
	ID            string  `db:"id" json:"id"`
	Name          string  `db:"name" json:"name"`
	WalletAddress *string `db:"wallet_address" json:"walletAddress,omitempty"`
	IsAdvertiser  bool    `db:"is_advertiser" json:"isAdvertiser"`
	IsAdmin       bool    `db:"is_admin" json:"isAdmin"`
}

// Wallet returns the registered payout address or "".
func (u *User) Wallet() string {
	if u == nil || u.WalletAddress == nil {
		return ""
	}
	return *u.WalletAddress
}

// Article ownership never transfers; IsPurchased is one-shot.
type Article struct {
	ID          string  `db:"id" json:"id"`
	Title       string  `db:"title" json:"title"`
	UserID      string  `db:"user_id" json:"userId"`
	TopicID     *string `db:"topic_id" json:"topicId,omitempty"`
	ViewCount   int64   `db:"view_count" json:"viewCount"`
	IsPurchased bool    `db:"is_purchased" json:"isPurchased"`
	PurchasedBy *string `db:"purchased_by" json:"purchasedBy,omitempty"`
}

// Topic is owned by one advertiser and defines the monthly fee pool.
type Topic struct {
	ID                 string  `db:"id" json:"id"`
	Title              string  `db:"title" json:"title"`
	AdvertiserID       *string `db:"advertiser_id" json:"advertiserId,omitempty"`
	AdFee              float64 `db:"ad_fee" json:"adFee"`
	MonthlyPVThreshold int64   `db:"monthly_pv_threshold" json:"monthlyPVThreshold"`
}

// OwnedBy reports whether userID is the topic's advertiser.
func (t *Topic) OwnedBy(userID string) bool {
	return t.AdvertiserID != nil && *t.AdvertiserID == userID
}

// Caller is the authenticated actor of a request, as supplied by the session.
type Caller struct {
	UserID       string
	IsAdmin      bool
	IsAdvertiser bool
}
