package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesDashboardMetrics(t *testing.T) {
	ConfirmTotal.WithLabelValues("ok").Inc()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	for _, name := range []string{"sitemap_refresh_total", "sitemap_confirm_total", "sitemap_visible_duration_ms"} {
		assert.Contains(t, string(body), name)
	}
}
