package metrics

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRequest(t *testing.T) {
	okBefore := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("test_op", OutcomeSuccess))
	errBefore := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("test_op", OutcomeError))

	RecordRequest("test_op", nil)
	RecordRequest("test_op", fmt.Errorf("boom"))
	RecordRequest("test_op", nil)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("test_op", OutcomeSuccess)))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("test_op", OutcomeError)))
}

func TestHandlerExposesMetrics(t *testing.T) {
	StreamFramesTotal.WithLabelValues("log_line").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "storefront_stream_frames_total")
}
