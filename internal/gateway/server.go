package gateway

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/iogate/internal/bridge"
	"github.com/danmuck/iogate/internal/homeassistant"
	"github.com/danmuck/iogate/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const adminShutdownTimeout = 5 * time.Second

// StatusSource is the read-only view the admin server exposes.
type StatusSource interface {
	Ready() bool
	Snapshot() Snapshot
	Devices() []bridge.DeviceStatus
}

// AdminServer serves health, readiness, metrics and gateway state over HTTP.
type AdminServer struct {
	router *gin.Engine
	source StatusSource
}

func NewAdminServer(source StatusSource, corsOrigins []string) *AdminServer {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.AdminRequests(observability.Component("admin")))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  normalizeOrigins(corsOrigins),
		AllowMethods:  []string{"GET"},
		AllowHeaders:  []string{"Origin", "Content-Type", observability.RequestIDHeader},
		ExposeHeaders: []string{observability.RequestIDHeader},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &AdminServer{router: r, source: source}
	s.registerRoutes()
	return s
}

func (s *AdminServer) HTTPRouter() *gin.Engine {
	return s.router
}

func (s *AdminServer) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		snap := s.source.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  snap.Uptime,
			"service": "iogate",
			"version": homeassistant.Version,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		ready := s.source.Ready()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"service": "iogate",
			"version": homeassistant.Version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/devices", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"devices": s.source.Devices()})
	})

	s.router.GET("/devices/:addr", func(c *gin.Context) {
		addr, err := strconv.ParseUint(c.Param("addr"), 10, 8)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device address"})
			return
		}
		for _, dev := range s.source.Devices() {
			if uint64(dev.Addr) == addr {
				c.JSON(http.StatusOK, dev)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "device not seen"})
	})

	s.router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.source.Snapshot())
	})
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *AdminServer) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              strings.TrimSpace(addr),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("gateway.admin listening addr=%q", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), adminShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Msgf("gateway.admin shutdown err=%v", err)
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if v := strings.TrimSpace(o); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
