package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(requestsTotal.WithLabelValues(http.MethodGet, "/items/{id}", "418"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	after := testutil.ToFloat64(requestsTotal.WithLabelValues(http.MethodGet, "/items/{id}", "418"))
	require.Equal(t, before+1, after)
}

func TestRecordReconcileAction(t *testing.T) {
	t.Parallel()

	before := testutil.ToFloat64(reconcileActionsTotal.WithLabelValues(ActionDisconnect, ResultFailure))
	RecordReconcileAction(ActionDisconnect, false)
	after := testutil.ToFloat64(reconcileActionsTotal.WithLabelValues(ActionDisconnect, ResultFailure))

	require.Equal(t, before+1, after)
}

func TestRecordFileOperation(t *testing.T) {
	t.Parallel()

	before := testutil.ToFloat64(filesTotal.WithLabelValues(FileUpload, ResultSuccess))
	RecordFileOperation(FileUpload, true)
	after := testutil.ToFloat64(filesTotal.WithLabelValues(FileUpload, ResultSuccess))

	require.Equal(t, before+1, after)
}

func TestHandler_ServesExposition(t *testing.T) {
	t.Parallel()

	RecordConnect(true)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "mcphub_client_connects_total"))
}
