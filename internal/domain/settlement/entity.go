package settlement

import (
	"github.com/touristlog/touristlog-api/internal/domain/ledger"
)

type PaymentStatus string

const (
	StatusSuccess PaymentStatus = "success"
	StatusFailed  PaymentStatus = "failed"
	StatusSkipped PaymentStatus = "skipped"
)

const reasonNoWallet = "no wallet address"

// PaymentResult is the outcome of paying one recipient.
type PaymentResult struct {
	AuthorID        string        `json:"authorId"`
	AuthorName      string        `json:"authorName"`
	WalletAddress   string        `json:"walletAddress,omitempty"`
	Amount          float64       `json:"amount"`
	Status          PaymentStatus `json:"status"`
	TransactionHash string        `json:"transactionHash,omitempty"`
	Error           string        `json:"error,omitempty"`
}

// Result is the outcome of one settlement batch.
type Result struct {
	PageViewID        string          `json:"pageViewId"`
	BatchID           string          `json:"batchId"`
	Success           bool            `json:"success"`
	Message           string          `json:"message"`
	PerAuthorAmount   float64         `json:"perAuthorAmount"`
	TotalPaidXym      float64         `json:"totalPaidXym"`
	TransactionHashes []string        `json:"transactionHashes"`
	PaymentResults    []PaymentResult `json:"paymentResults"`
}

// Recipient is a distinct author of a topic and the article their payout is
// filed against.
type Recipient struct {
	UserID    string
	ArticleID string
	Title     string
}

// DistinctAuthors returns one recipient per author in first-seen order. An
// author with several articles is paid once.
func DistinctAuthors(articles []ledger.Article) []Recipient {
	seen := make(map[string]struct{}, len(articles))
	var out []Recipient
	for _, a := range articles {
		if a.UserID == "" {
			continue
		}
		if _, ok := seen[a.UserID]; ok {
			continue
		}
		seen[a.UserID] = struct{}{}
		out = append(out, Recipient{UserID: a.UserID, ArticleID: a.ID, Title: a.Title})
	}
	return out
}

// PerAuthorAmount splits the pool evenly. No remainder is redistributed.
func PerAuthorAmount(pool float64, authors int) float64 {
	if authors <= 0 {
		return 0
	}
	return pool / float64(authors)
}
