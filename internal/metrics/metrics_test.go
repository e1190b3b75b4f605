package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-token-service/internal/metrics"
	"github.com/jrsteele09/go-token-service/token/refresh"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var _ refresh.Observer = (*metrics.Recorder)(nil)

func TestRecorder_ObserveOperation(t *testing.T) {
	r := metrics.New()

	r.ObserveOperation(refresh.OperationRotate, "success", 3*time.Millisecond)
	r.ObserveOperation(refresh.OperationRotate, "success", time.Millisecond)
	r.ObserveOperation(refresh.OperationRotate, "concurrent_reuse", time.Millisecond)
	r.ObserveOperation(refresh.OperationIssue, "success", time.Millisecond)

	expected := `
# HELP token_lifecycle_operations_total Refresh token lifecycle operations by outcome.
# TYPE token_lifecycle_operations_total counter
token_lifecycle_operations_total{operation="issue",outcome="success"} 1
token_lifecycle_operations_total{operation="rotate",outcome="concurrent_reuse"} 1
token_lifecycle_operations_total{operation="rotate",outcome="success"} 2
`
	require.NoError(t, testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected), "token_lifecycle_operations_total"))

	count, err := testutil.GatherAndCount(r.Registry(), "token_lifecycle_operation_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 2, count)
}

func TestRecorder_Handler(t *testing.T) {
	r := metrics.New()
	r.ObserveOperation(refresh.OperationRevoke, "success", time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `token_lifecycle_operations_total{operation="revoke",outcome="success"} 1`)
}
