package ledger

import (
	"encoding/json"
	"testing"
)

func TestParseMetadataObject(t *testing.T) {
	m := ParseMetadata([]byte(`{"authorId":"u1","authorName":"Aki","batchId":7}`))
	if m.Kind() != MetadataParsed {
		t.Fatalf("expected parsed, got %v", m.Kind())
	}
	if got := m.Get(KeyAuthorID); got != "u1" {
		t.Fatalf("expected u1, got %q", got)
	}
	if got := m.Get(KeyBatchID); got != "7" {
		t.Fatalf("expected numeric batch id as string, got %q", got)
	}
}

func TestParseMetadataEncodedString(t *testing.T) {
	encoded, _ := json.Marshal(`{"purchaserId":"buyer","articleTitle":"Kyoto"}`)
	m := ParseMetadata(encoded)
	if m.Kind() != MetadataParsed {
		t.Fatalf("expected string-encoded object to be unwrapped, got %v", m.Kind())
	}
	if got := m.Get(KeyPurchaserID); got != "buyer" {
		t.Fatalf("expected buyer, got %q", got)
	}
}

func TestParseMetadataMalformedFallsBackToRaw(t *testing.T) {
	encoded, _ := json.Marshal(`{"recipientId":"r9","authorName":"broken`)
	m := ParseMetadata(encoded)
	if m.Kind() != MetadataRaw {
		t.Fatalf("expected raw, got %v", m.Kind())
	}
	if got := m.Get(KeyRecipientID); got != "r9" {
		t.Fatalf("expected substring search to find r9, got %q", got)
	}
	if got := m.Get(KeyAuthorName); got != "" {
		t.Fatalf("unterminated value must not resolve, got %q", got)
	}
}

func TestParseMetadataEmpty(t *testing.T) {
	for _, in := range []string{"", "null", "  ", `""`} {
		if k := ParseMetadata([]byte(in)).Kind(); k != MetadataEmpty {
			t.Fatalf("input %q: expected empty, got %v", in, k)
		}
	}
}

func TestMetadataScan(t *testing.T) {
	var m Metadata
	if err := m.Scan([]byte(`{"advertiserId":"adv"}`)); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if m.Get(KeyAdvertiserID) != "adv" {
		t.Fatalf("unexpected metadata: %+v", m)
	}

	if err := m.Scan(nil); err != nil || m.Kind() != MetadataEmpty {
		t.Fatalf("expected nil to scan as empty, got %v %v", m.Kind(), err)
	}

	if err := m.Scan(42); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

func TestMetadataValueKeepsRawText(t *testing.T) {
	v, err := RawMetadata(`not json "authorId":"a1"`).Value()
	if err != nil {
		t.Fatalf("value failed: %v", err)
	}

	var back Metadata
	if err := back.Scan(v); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if back.Kind() != MetadataRaw || back.Get(KeyAuthorID) != "a1" {
		t.Fatalf("raw text not preserved: kind=%v author=%q", back.Kind(), back.Get(KeyAuthorID))
	}
}
