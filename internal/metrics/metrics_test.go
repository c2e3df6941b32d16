package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

func TestCollectorCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSearch("first", OutcomeSuccess)
	c.RecordSearch("first", OutcomeSuccess)
	c.RecordSearch("more", OutcomeFailure)
	c.RecordBillsParsed(5)
	c.RecordDroppedSegments(2)
	c.RecordSavedMutation("save")

	if v := counterValue(t, reg, "billfinder_searches_total", map[string]string{"kind": "first", "outcome": OutcomeSuccess}); v != 2 {
		t.Errorf("first/success = %v, want 2", v)
	}
	if v := counterValue(t, reg, "billfinder_searches_total", map[string]string{"kind": "more", "outcome": OutcomeFailure}); v != 1 {
		t.Errorf("more/failure = %v, want 1", v)
	}
	if v := counterValue(t, reg, "billfinder_bills_parsed_total", nil); v != 5 {
		t.Errorf("bills parsed = %v, want 5", v)
	}
	if v := counterValue(t, reg, "billfinder_dropped_segments_total", nil); v != 2 {
		t.Errorf("dropped = %v, want 2", v)
	}
	if v := counterValue(t, reg, "billfinder_saved_mutations_total", map[string]string{"op": "save"}); v != 1 {
		t.Errorf("saved mutations = %v, want 1", v)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSearchLatency(250 * time.Millisecond)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "billfinder_search_latency_seconds_count 1") {
		t.Errorf("latency histogram missing from scrape:\n%s", body)
	}
}
