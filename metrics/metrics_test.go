package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Observe(t *testing.T) {
	m := New("formsite")

	m.ObserveSubmission(OutcomeAccepted)
	m.ObserveSubmission(OutcomeAccepted)
	m.ObserveSubmission(OutcomeSpam)
	m.ObserveAction("webhook", false, 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues(OutcomeAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues(OutcomeSpam)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.actionResults.WithLabelValues("webhook", "false")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "formsite_submissions_total")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSubmission(OutcomeError)
	m.ObserveAction("email", true, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 404, rec.Code)
}
