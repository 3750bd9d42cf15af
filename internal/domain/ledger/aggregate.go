package ledger

// Summary is a user's transaction history with its derived totals.
type Summary struct {
	TotalReceivedXym float64                 `json:"totalReceivedXym"`
	TotalPaidXym     float64                 `json:"totalPaidXym"`
	CurrentBalance   float64                 `json:"currentBalance"`
	IsAdvertiser     bool                    `json:"isAdvertiser"`
	Transactions     []AttributedTransaction `json:"transactions"`
}

// rows an advertiser paid out of pocket
var advertiserPaidTypes = map[TransactionType]struct{}{
	TypePurchase:      {},
	TypeTip:           {},
	TypeAdPayment:     {},
	TypeAdvertisement: {},
}

// Dedupe keeps the first occurrence of each transaction id, preserving order.
func Dedupe[T any](items []T, id func(T) int64) []T {
	seen := make(map[int64]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		k := id(it)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}

func transactionID(t Transaction) int64 { return t.ID }

func attributedID(t AttributedTransaction) int64 { return t.ID }

// Aggregate computes totals for actor. Rows are deduplicated by id before any
// sum. totalReceived counts every positive amount in the set regardless of
// who the payee is.
func Aggregate(a Actor, txs []AttributedTransaction) Summary {
	rows := Dedupe(txs, attributedID)

	var received, paid float64
	for i := range rows {
		tx := &rows[i]
		if tx.Amount > 0 {
			received += tx.Amount
		}
		if countsAsPaid(a, &tx.Transaction) {
			paid += abs(tx.Amount)
		}
	}

	return Summary{
		TotalReceivedXym: received,
		TotalPaidXym:     paid,
		CurrentBalance:   received - paid,
		IsAdvertiser:     a.Role.IsAdvertiser(),
		Transactions:     rows,
	}
}

// countsAsPaid applies the paid branches in order; a row matches at most once.
func countsAsPaid(a Actor, tx *Transaction) bool {
	if a.Role.IsAdvertiser() {
		if _, ok := advertiserPaidTypes[tx.Type]; ok {
			if tx.TopicID != nil && a.Role.OwnsTopic(*tx.TopicID) {
				return true
			}
			if tx.FiledUnder(a.ID) {
				return true
			}
		}
	}
	return tx.Amount < 0 && tx.FiledUnder(a.ID)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
