package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(HeadAdvances.WithLabelValues("consensus"))
	HeadAdvances.WithLabelValues("consensus").Inc()
	if got := testutil.ToFloat64(HeadAdvances.WithLabelValues("consensus")); got != before+1 {
		t.Fatalf("head advances = %v, want %v", got, before+1)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	ReviewsCompleted.WithLabelValues("approved").Inc()

	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "afropedia_reviews_completed_total") {
		t.Fatal("expected reviews counter in exposition")
	}
}
