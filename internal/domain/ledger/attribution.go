package ledger

// Party is one side of a transaction as displayed in a history.
type Party struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

// AttributedTransaction is a row with its payer and payee resolved.
// From or To is nil when no source could identify the party.
type AttributedTransaction struct {
	Transaction
	From         *Party `json:"from"`
	To           *Party `json:"to"`
	ArticleTitle string `json:"articleTitle,omitempty"`
	TopicTitle   string `json:"topicTitle,omitempty"`
}

// Lookups holds batch-loaded related records keyed by id.
type Lookups struct {
	Users    map[string]*User
	Articles map[string]*Article
	Topics   map[string]*Topic
}

func NewLookups(users []User, articles []Article, topics []Topic) Lookups {
	lk := Lookups{
		Users:    make(map[string]*User, len(users)),
		Articles: make(map[string]*Article, len(articles)),
		Topics:   make(map[string]*Topic, len(topics)),
	}
	for i := range users {
		lk.Users[users[i].ID] = &users[i]
	}
	for i := range articles {
		lk.Articles[articles[i].ID] = &articles[i]
	}
	for i := range topics {
		lk.Topics[topics[i].ID] = &topics[i]
	}
	return lk
}

type candidate struct {
	id   string
	name string
}

// source yields a party id for a row, or ok=false when it has nothing.
type source func(tx *Transaction, lk Lookups) (candidate, bool)

func articleAuthor(tx *Transaction, lk Lookups) (candidate, bool) {
	if tx.ArticleID == nil {
		return candidate{}, false
	}
	a, ok := lk.Articles[*tx.ArticleID]
	if !ok || a.UserID == "" {
		return candidate{}, false
	}
	return candidate{id: a.UserID}, true
}

func topicAdvertiser(tx *Transaction, lk Lookups) (candidate, bool) {
	if tx.TopicID == nil {
		return candidate{}, false
	}
	t, ok := lk.Topics[*tx.TopicID]
	if !ok || t.AdvertiserID == nil || *t.AdvertiserID == "" {
		return candidate{}, false
	}
	return candidate{id: *t.AdvertiserID}, true
}

func fromMetadata(idKey, nameKey string) source {
	return func(tx *Transaction, _ Lookups) (candidate, bool) {
		id := tx.Metadata.Get(idKey)
		if id == "" {
			return candidate{}, false
		}
		return candidate{id: id, name: tx.Metadata.Get(nameKey)}, true
	}
}

// actor only counts when the row's owner is a known user.
func actor(tx *Transaction, lk Lookups) (candidate, bool) {
	if tx.ActorUserID == nil {
		return candidate{}, false
	}
	if _, ok := lk.Users[*tx.ActorUserID]; !ok {
		return candidate{}, false
	}
	return candidate{id: *tx.ActorUserID}, true
}

var (
	metaAuthor     = fromMetadata(KeyAuthorID, KeyAuthorName)
	metaPurchaser  = fromMetadata(KeyPurchaserID, KeyPurchaserName)
	metaRecipient  = fromMetadata(KeyRecipientID, "")
	metaAdvertiser = fromMetadata(KeyAdvertiserID, KeyAdvertiserName)
)

type partyRule struct {
	payer []source
	payee []source
}

// Sources are tried in order: relation, then metadata, then the row's owner.
var partyRules = map[TransactionType]partyRule{
	TypePurchase: {
		payer: []source{metaPurchaser, actor},
		payee: []source{articleAuthor, metaAuthor},
	},
	TypeTip: {
		payer: []source{metaPurchaser},
		payee: []source{articleAuthor, metaAuthor},
	},
	TypeReceiveTip: {
		payer: []source{metaPurchaser},
		payee: []source{metaRecipient, actor},
	},
	TypeAdPayment: {
		payer: []source{metaAdvertiser, actor},
		payee: []source{articleAuthor, metaAuthor},
	},
	TypeAdRevenue: {
		payer: []source{topicAdvertiser, metaAdvertiser},
		payee: []source{metaRecipient, actor},
	},
	TypeAdvertisement: {
		payer: []source{topicAdvertiser, metaAdvertiser},
		payee: []source{articleAuthor, metaRecipient, metaAuthor},
	},
}

var fallbackRule = partyRule{
	payer: []source{metaPurchaser, metaAdvertiser},
	payee: []source{articleAuthor, metaRecipient, metaAuthor},
}

// Attribute resolves payer and payee for a single row. It is pure: all related
// records must already be present in lk.
func Attribute(tx Transaction, lk Lookups) AttributedTransaction {
	rule, ok := partyRules[tx.Type]
	if !ok {
		rule = fallbackRule
	}

	out := AttributedTransaction{
		Transaction: tx,
		From:        resolveParty(&tx, lk, rule.payer),
		To:          resolveParty(&tx, lk, rule.payee),
	}

	if tx.ArticleID != nil {
		if a, ok := lk.Articles[*tx.ArticleID]; ok {
			out.ArticleTitle = a.Title
		}
	}
	if out.ArticleTitle == "" {
		out.ArticleTitle = tx.Metadata.Get(KeyArticleTitle)
	}
	if tx.TopicID != nil {
		if t, ok := lk.Topics[*tx.TopicID]; ok {
			out.TopicTitle = t.Title
		}
	}
	return out
}

func AttributeAll(txs []Transaction, lk Lookups) []AttributedTransaction {
	out := make([]AttributedTransaction, 0, len(txs))
	for _, tx := range txs {
		out = append(out, Attribute(tx, lk))
	}
	return out
}

func resolveParty(tx *Transaction, lk Lookups, sources []source) *Party {
	for _, src := range sources {
		c, ok := src(tx, lk)
		if !ok {
			continue
		}
		p := &Party{ID: c.id, Name: c.name}
		if u, ok := lk.Users[c.id]; ok {
			if u.Name != "" {
				p.Name = u.Name
			}
			p.WalletAddress = u.Wallet()
		}
		return p
	}
	return nil
}

// ReferencedUserIDs collects every user id a batch may need for attribution:
// row owners, relation owners and metadata ids.
func ReferencedUserIDs(txs []Transaction, lk Lookups) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	for i := range txs {
		tx := &txs[i]
		if tx.ActorUserID != nil {
			add(*tx.ActorUserID)
		}
		if c, ok := articleAuthor(tx, lk); ok {
			add(c.id)
		}
		if c, ok := topicAdvertiser(tx, lk); ok {
			add(c.id)
		}
		for _, key := range []string{KeyAuthorID, KeyPurchaserID, KeyRecipientID, KeyAdvertiserID} {
			add(tx.Metadata.Get(key))
		}
	}
	return ids
}
