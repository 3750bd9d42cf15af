package ledger

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Metadata keys carried by transaction rows.
const (
	KeyAuthorID       = "authorId"
	KeyAuthorName     = "authorName"
	KeyPurchaserID    = "purchaserId"
	KeyPurchaserName  = "purchaserName"
	KeyRecipientID    = "recipientId"
	KeyAdvertiserID   = "advertiserId"
	KeyAdvertiserName = "advertiserName"
	KeyArticleTitle   = "articleTitle"
	KeyBatchID        = "batchId"
)

type MetadataKind int

const (
	MetadataEmpty MetadataKind = iota
	MetadataParsed
	MetadataRaw
)

// MetadataFields is the denormalized counterparty info written alongside a row.
type MetadataFields struct {
	AuthorID       string `json:"authorId,omitempty"`
	AuthorName     string `json:"authorName,omitempty"`
	PurchaserID    string `json:"purchaserId,omitempty"`
	PurchaserName  string `json:"purchaserName,omitempty"`
	RecipientID    string `json:"recipientId,omitempty"`
	AdvertiserID   string `json:"advertiserId,omitempty"`
	AdvertiserName string `json:"advertiserName,omitempty"`
	ArticleTitle   string `json:"articleTitle,omitempty"`
	BatchID        string `json:"batchId,omitempty"`
}

// Metadata is either Parsed(fields) or Raw(text) when the stored blob could not
// be decoded. The variant is fixed when the row is read.
type Metadata struct {
	kind   MetadataKind
	raw    string
	fields MetadataFields
}

func ParsedMetadata(f MetadataFields) Metadata {
	return Metadata{kind: MetadataParsed, fields: f}
}

func RawMetadata(s string) Metadata {
	if strings.TrimSpace(s) == "" {
		return Metadata{}
	}
	return Metadata{kind: MetadataRaw, raw: s}
}

// ParseMetadata resolves a stored blob. Objects decode to Parsed; a JSON string
// holding an encoded object is unwrapped once; anything else stays Raw.
func ParseMetadata(b []byte) Metadata {
	t := bytes.TrimSpace(b)
	if len(t) == 0 || bytes.Equal(t, []byte("null")) {
		return Metadata{}
	}

	switch t[0] {
	case '{':
		if f, ok := decodeFields(t); ok {
			return ParsedMetadata(f)
		}
		return RawMetadata(string(t))
	case '"':
		var s string
		if err := json.Unmarshal(t, &s); err != nil {
			return RawMetadata(string(t))
		}
		inner := strings.TrimSpace(s)
		if strings.HasPrefix(inner, "{") {
			if f, ok := decodeFields([]byte(inner)); ok {
				return ParsedMetadata(f)
			}
		}
		return RawMetadata(s)
	default:
		return RawMetadata(string(t))
	}
}

func decodeFields(b []byte) (MetadataFields, bool) {
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return MetadataFields{}, false
	}
	str := func(key string) string {
		switch v := m[key].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		default:
			return ""
		}
	}
	return MetadataFields{
		AuthorID:       str(KeyAuthorID),
		AuthorName:     str(KeyAuthorName),
		PurchaserID:    str(KeyPurchaserID),
		PurchaserName:  str(KeyPurchaserName),
		RecipientID:    str(KeyRecipientID),
		AdvertiserID:   str(KeyAdvertiserID),
		AdvertiserName: str(KeyAdvertiserName),
		ArticleTitle:   str(KeyArticleTitle),
		BatchID:        str(KeyBatchID),
	}, true
}

func (m Metadata) Kind() MetadataKind { return m.kind }

// Fields returns the decoded fields; ok is false unless the variant is Parsed.
func (m Metadata) Fields() (MetadataFields, bool) {
	return m.fields, m.kind == MetadataParsed
}

// Get returns the value for key or "". Raw blobs are searched for `"key":"`.
func (m Metadata) Get(key string) string {
	switch m.kind {
	case MetadataParsed:
		return m.fields.get(key)
	case MetadataRaw:
		return searchRaw(m.raw, key)
	default:
		return ""
	}
}

func (f MetadataFields) get(key string) string {
	switch key {
	case KeyAuthorID:
		return f.AuthorID
	case KeyAuthorName:
		return f.AuthorName
	case KeyPurchaserID:
		return f.PurchaserID
	case KeyPurchaserName:
		return f.PurchaserName
	case KeyRecipientID:
		return f.RecipientID
	case KeyAdvertiserID:
		return f.AdvertiserID
	case KeyAdvertiserName:
		return f.AdvertiserName
	case KeyArticleTitle:
		return f.ArticleTitle
	case KeyBatchID:
		return f.BatchID
	default:
		return ""
	}
}

func searchRaw(raw, key string) string {
	marker := `"` + key + `":"`
	i := strings.Index(raw, marker)
	if i < 0 {
		return ""
	}
	rest := raw[i+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
	case []byte:
		*m = ParseMetadata(v)
	case string:
		*m = ParseMetadata([]byte(v))
	default:
		return fmt.Errorf("unsupported metadata type: %T", src)
	}
	return nil
}

// Value implements driver.Valuer. Raw text is stored as a JSON string.
func (m Metadata) Value() (driver.Value, error) {
	if m.kind == MetadataEmpty {
		return nil, nil
	}
	b, err := m.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	switch m.kind {
	case MetadataParsed:
		return json.Marshal(m.fields)
	case MetadataRaw:
		return json.Marshal(m.raw)
	default:
		return []byte("null"), nil
	}
}

func (m *Metadata) UnmarshalJSON(b []byte) error {
	*m = ParseMetadata(b)
	return nil
}
