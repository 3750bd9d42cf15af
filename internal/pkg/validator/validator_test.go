package validator

import "testing"

type sample struct {
	Type  string `json:"type" validate:"tx_type"`
	Month int    `json:"month" validate:"required,gte=1,lte=12"`
}

func TestValidateUsesJSONNames(t *testing.T) {
	errs := Validate(sample{Type: "refund", Month: 13})
	if errs["type"] != "Invalid transaction type" {
		t.Fatalf("expected tx_type error on json name, got %v", errs)
	}
	if errs["month"] != "Value must be at most 12" {
		t.Fatalf("expected lte error, got %v", errs)
	}
}

func TestValidateAcceptsKnownTypes(t *testing.T) {
	for _, tt := range []string{"", "purchase", "tip", "receive_tip", "ad_payment", "ad_revenue", "advertisement"} {
		if errs := Validate(sample{Type: tt, Month: 3}); errs != nil {
			t.Fatalf("type %q rejected: %v", tt, errs)
		}
	}
}

func TestValidateVar(t *testing.T) {
	if err := ValidateVar("", "required"); err == nil {
		t.Fatal("expected required error")
	}
	if err := ValidateVar("pv-1", "required,max=64"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
