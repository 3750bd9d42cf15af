package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label == "" {
				return m.GetCounter().GetValue()
			}
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{%s} not found", name, label)
	return 0
}

func TestRecordPayout(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPayout("success", 100)
	c.RecordPayout("success", 50)
	c.RecordPayout("failed", 100)
	c.RecordPayout("skipped", 100)

	if v := counterValue(t, reg, "touristlog_payouts_total", "success"); v != 2 {
		t.Errorf("success payouts = %v, want 2", v)
	}
	if v := counterValue(t, reg, "touristlog_payouts_total", "failed"); v != 1 {
		t.Errorf("failed payouts = %v, want 1", v)
	}
	if v := counterValue(t, reg, "touristlog_paid_xym_total", ""); v != 150 {
		t.Errorf("paid xym = %v, want 150", v)
	}
}

func TestRecordSettlement(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSettlement("paid")
	c.RecordSettlement("rejected")
	c.RecordSettlement("paid")

	if v := counterValue(t, reg, "touristlog_settlements_total", "paid"); v != 2 {
		t.Errorf("paid settlements = %v, want 2", v)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.ObserveLedgerBuild("history", 20*time.Millisecond)
	c.RecordRailLatency(time.Second)

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"touristlog_ledger_build_seconds", "touristlog_rail_transfer_seconds"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("response should contain %s", name)
		}
	}
}
