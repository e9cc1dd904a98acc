package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRequest(t *testing.T) {
	collectionRequestsTotal.Reset()

	RecordRequest("accepted")
	RecordRequest("accepted")
	RecordRequest("NotAuthorized")

	counter, err := collectionRequestsTotal.GetMetricWithLabelValues("accepted")
	assert.NoError(t, err)
	assert.Equal(t, float64(2), testutil.ToFloat64(counter))

	counter, err = collectionRequestsTotal.GetMetricWithLabelValues("NotAuthorized")
	assert.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(counter))
}

func TestRecordWorkflow(t *testing.T) {
	workflowTransitionsTotal.Reset()
	workflowFailuresTotal.Reset()

	RecordTransition("RolesPending")
	RecordFailure("RoleConfigurationFailed")

	assert.Equal(t, float64(1), testutil.ToFloat64(workflowTransitionsTotal.WithLabelValues("RolesPending")))
	assert.Equal(t, float64(1), testutil.ToFloat64(workflowFailuresTotal.WithLabelValues("RoleConfigurationFailed")))

	before := testutil.ToFloat64(workflowInflight)
	InflightAdd(1)
	InflightAdd(1)
	InflightAdd(-1)
	assert.Equal(t, before+1, testutil.ToFloat64(workflowInflight))
}

func TestMetricsServerExposesPrefixedNames(t *testing.T) {
	srv, err := New("collection-provisioning-backend", "127.0.0.1:0")
	require.NoError(t, err)

	RecordRequest("accepted")
	ObserveIssuerCall("issue", 150*time.Millisecond)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "collection_provisioning_backend_collections_requests_total")
	assert.Contains(t, body, "collection_provisioning_backend_issuer_call_duration_seconds_bucket")
	assert.Contains(t, body, "go_goroutines")
}
