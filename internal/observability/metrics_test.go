package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/iogate/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
	RecordFrame(DirectionIngress)
	RecordSyncDrop("bad_preamble")
	RecordReadError()
	RecordDecodeError("length_mismatch")
	RecordMessage(DirectionEgress, "set_output")
	RecordCommand("set_output")
	RecordPublish("state", true)
}

func TestFrameCounterIncrements(t *testing.T) {
	testlog.Start(t)
	before := testutil.ToFloat64(frames.WithLabelValues(DirectionEgress))
	RecordFrame(DirectionEgress)
	RecordFrame(DirectionEgress)
	after := testutil.ToFloat64(frames.WithLabelValues(DirectionEgress))
	if after-before != 2 {
		t.Fatalf("unexpected frame delta: %v", after-before)
	}
}

func TestAdminRequestsRecordsRouteTemplate(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(AdminRequests(zerolog.New(&buf).With().Str("component", "test").Logger()))
	r.GET("/devices/:addr", func(c *gin.Context) { c.String(http.StatusOK, c.Param("addr")) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	req := httptest.NewRequest(http.MethodGet, "/devices/7", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	if got := w.Header().Get(RequestIDHeader); got != "req-42" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
	line := buf.String()
	for _, want := range []string{`"component":"test"`, "id=req-42", "route=/devices/:addr", "path=/devices/7", "status=200"} {
		if !strings.Contains(line, want) {
			t.Fatalf("access log missing %q: %s", want, line)
		}
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", w.Code)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected a generated request id")
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	if !strings.Contains(body, `iogate_http_requests_total{method="GET",path="/devices/:addr",status="200"}`) {
		t.Fatalf("metrics output missing templated route counter")
	}
	if !strings.Contains(body, `iogate_http_requests_total{method="GET",path="unmatched",status="404"}`) {
		t.Fatalf("metrics output missing unmatched route counter")
	}
}
