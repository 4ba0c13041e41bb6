package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/iogate/internal/bridge"
	"github.com/danmuck/iogate/internal/observability"
	"github.com/danmuck/iogate/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
)

type stubSource struct {
	ready   bool
	snap    Snapshot
	devices []bridge.DeviceStatus
}

func (s stubSource) Ready() bool                    { return s.ready }
func (s stubSource) Snapshot() Snapshot             { return s.snap }
func (s stubSource) Devices() []bridge.DeviceStatus { return s.devices }

func serve(t *testing.T, srv *AdminServer, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	srv.HTTPRouter().ServeHTTP(rr, req)
	return rr
}

func TestAdminRoutes(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	source := stubSource{
		ready: true,
		snap: Snapshot{
			StartedAt: time.Unix(1700000000, 0),
			Uptime:    "1m0s",
			Ready:     true,
			Router:    bridge.Stats{Commands: 3},
		},
		devices: []bridge.DeviceStatus{{Name: "hall", Addr: 2, Configured: true}},
	}
	srv := NewAdminServer(source, nil)

	rr := serve(t, srv, "/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("health status: %d", rr.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["status"] != "ok" || health["uptime"] != "1m0s" || health["service"] != "iogate" {
		t.Fatalf("unexpected health body: %#v", health)
	}

	if rr := serve(t, srv, "/ready"); rr.Code != http.StatusOK {
		t.Fatalf("ready status: %d", rr.Code)
	}

	rr = serve(t, srv, "/devices")
	var devs struct {
		Devices []bridge.DeviceStatus `json:"devices"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &devs); err != nil {
		t.Fatalf("decode devices: %v", err)
	}
	if len(devs.Devices) != 1 || devs.Devices[0].Name != "hall" || !devs.Devices[0].Configured {
		t.Fatalf("unexpected devices body: %s", rr.Body.String())
	}

	rr = serve(t, srv, "/stats")
	var snap Snapshot
	if err := json.Unmarshal(rr.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if snap.Router.Commands != 3 || !snap.Ready {
		t.Fatalf("unexpected stats body: %s", rr.Body.String())
	}

	if rr := serve(t, srv, "/metrics"); rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
}

func TestAdminDeviceByAddr(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	srv := NewAdminServer(stubSource{
		devices: []bridge.DeviceStatus{{Name: "hall", Addr: 2, Configured: true}},
	}, nil)

	rr := serve(t, srv, "/devices/2")
	if rr.Code != http.StatusOK {
		t.Fatalf("device status: %d", rr.Code)
	}
	var dev bridge.DeviceStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &dev); err != nil {
		t.Fatalf("decode device: %v", err)
	}
	if dev.Name != "hall" || dev.Addr != 2 {
		t.Fatalf("unexpected device body: %s", rr.Body.String())
	}
	if rr.Header().Get(observability.RequestIDHeader) == "" {
		t.Fatalf("expected a request id header")
	}

	if rr := serve(t, srv, "/devices/9"); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unseen device, got %d", rr.Code)
	}
	if rr := serve(t, srv, "/devices/300"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out of range address, got %d", rr.Code)
	}
}

func TestAdminReadyReportsUnavailable(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)
	srv := NewAdminServer(stubSource{}, []string{" ", "http://panel.local"})
	rr := serve(t, srv, "/ready")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestNormalizeOrigins(t *testing.T) {
	testlog.Start(t)
	if got := normalizeOrigins(nil); len(got) != 1 || got[0] != "http://localhost:3000" {
		t.Fatalf("unexpected default origins: %v", got)
	}
	if got := normalizeOrigins([]string{" http://a ", ""}); len(got) != 1 || got[0] != "http://a" {
		t.Fatalf("unexpected origins: %v", got)
	}
}
