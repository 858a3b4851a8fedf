package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCountAndServe(t *testing.T) {
	m := New()
	m.RowsImported(3, 1)
	m.RenaperOutcome("accepted")
	m.RenaperOutcome("accepted")
	m.CupoDecision("FUERA")

	if got := testutil.ToFloat64(m.Rows.WithLabelValues("valid")); got != 3 {
		t.Fatalf("rows valid = %v", got)
	}
	if got := testutil.ToFloat64(m.Renaper.WithLabelValues("accepted")); got != 2 {
		t.Fatalf("renaper accepted = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `celiaquia_cupo_decisions_total{estado="FUERA"} 1`) {
		t.Fatalf("exposition missing cupo counter:\n%s", body)
	}

	// A second instance registers the same names on its own registry.
	_ = New()
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RowsImported(1, 1)
	m.WorkProcessed("renaper", "done")
}
