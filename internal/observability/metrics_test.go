package observability

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordEnterAndLeave(t *testing.T) {
	RecordEnter("vault-a", 1000, 1000)
	RecordLeave("vault-a", 3000, 1500)

	if got := testutil.ToFloat64(DefaultMetrics.AssetsDeposited.WithLabelValues("vault-a")); got != 1000 {
		t.Errorf("assets deposited = %v, want 1000", got)
	}
	if got := testutil.ToFloat64(DefaultMetrics.SharesBurned.WithLabelValues("vault-a")); got != 1500 {
		t.Errorf("shares burned = %v, want 1500", got)
	}
}

func TestUpdatePool(t *testing.T) {
	UpdatePool("vault-b", 3000, 1500, 2)

	if got := testutil.ToFloat64(DefaultMetrics.SharePrice.WithLabelValues("vault-b")); got != 2 {
		t.Errorf("share price = %v, want 2", got)
	}
}

func TestRecordDBQuery_Error(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "test"))
	RecordDBQuery("postgres", "test", 0.01, errors.New("boom"))
	after := testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "test"))
	if after != before+1 {
		t.Errorf("errors counter = %v, want %v", after, before+1)
	}
}

func TestHandler(t *testing.T) {
	RecordDonation("vault-c")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "share_vault_watcher_donations_detected_total") {
		t.Errorf("metrics output missing donations counter")
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.HTTPRequests.WithLabelValues("GET /v1/vaults", "404"))
	RecordHTTPRequest("GET /v1/vaults", 404)
	if got := testutil.ToFloat64(DefaultMetrics.HTTPRequests.WithLabelValues("GET /v1/vaults", "404")); got != before+1 {
		t.Errorf("http requests = %v, want %v", got, before+1)
	}
}
