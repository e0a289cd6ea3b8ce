package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestMiddlewareExposesRequestCounts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", Handler())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))
	BatchesStarted.WithLabelValues("weed").Inc()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	if !strings.Contains(body, `streetlab_http_requests_total{code="200",method="GET",route="/ping"}`) {
		t.Fatalf("missing request counter in:\n%s", body)
	}
	if !strings.Contains(body, `streetlab_batches_started_total{drug="weed"}`) {
		t.Fatalf("missing batch counter")
	}
}
