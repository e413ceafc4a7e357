package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danmuck/namegate/internal/auth"
	"github.com/danmuck/namegate/internal/client"
	"github.com/danmuck/namegate/internal/gate"
	"github.com/danmuck/namegate/internal/network"
	"github.com/danmuck/namegate/internal/observability"
	"github.com/danmuck/namegate/internal/provider"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

func (s *Service) newRouter() *gin.Engine {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(s.cfg.ID))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(s.cfg.CorsOrigins),
		AllowMethods: []string{"GET", "POST", "DELETE"},
		AllowHeaders: []string{"Origin", "Content-Type", auth.HeaderAdminToken},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	return r
}

func (s *Service) registerRoutes() {
	var admin auth.Validator
	if token := strings.TrimSpace(s.cfg.AdminToken); token != "" {
		admin = auth.StaticToken{Token: token}
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": s.cfg.ID,
			"version": version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		ready := s.reconciler.Ready()
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"uptime":  time.Since(s.appeared).String(),
			"service": s.cfg.ID,
			"version": version,
		})
	})

	api := s.router.Group("/api", provider.Middleware(s.holder))

	api.GET("/network", func(c *gin.Context) {
		dc, _ := provider.FromContext(c)
		c.JSON(http.StatusOK, gin.H{
			"current":   optionalJSON(s.state.Current()),
			"client":    clientJSON(dc),
			"installs":  s.holder.Installs(),
			"reconcile": s.reconciler.Status(),
		})
	})

	api.POST("/network", auth.Require(admin), func(c *gin.Context) {
		var body struct {
			Network json.RawMessage `json:"network"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		id, err := parseNetworkField(body.Network)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.state.Switch(id)
		c.JSON(http.StatusAccepted, gin.H{"current": optionalJSON(s.state.Current())})
	})

	api.DELETE("/network", auth.Require(admin), func(c *gin.Context) {
		s.state.Clear()
		c.JSON(http.StatusAccepted, gin.H{"current": optionalJSON(s.state.Current())})
	})

	api.POST("/reconcile", auth.Require(admin), func(c *gin.Context) {
		s.reconciler.Trigger()
		c.JSON(http.StatusAccepted, gin.H{"status": "triggered"})
	})

	api.GET("/errors", func(c *gin.Context) {
		s.respondQuery(c, client.GetErrors)
	})

	api.GET("/labels", func(c *gin.Context) {
		s.respondQuery(c, client.GetLabels)
	})

	s.router.NoRoute(provider.Middleware(s.holder), gate.Middleware(), s.dispatcher.Handle)
}

func (s *Service) respondQuery(c *gin.Context, op client.Operation) {
	dc, ok := provider.FromContext(c)
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no active client"})
		return
	}
	resp, err := dc.Query(c.Request.Context(), client.Request{Operation: op})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp.Data)
}

// parseNetworkField accepts a JSON number or a string understood by network.ParseID.
func parseNetworkField(raw json.RawMessage) (network.ID, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, errors.New("network is required")
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil {
		return network.ParseID(strconv.FormatUint(n, 10))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, network.ErrInvalidID
	}
	return network.ParseID(s)
}

func optionalJSON(o network.Optional) gin.H {
	if !o.Set {
		return nil
	}
	return gin.H{"id": uint64(o.ID), "name": o.ID.String()}
}

func clientJSON(dc *client.Client) gin.H {
	if dc == nil {
		return nil
	}
	out := gin.H{
		"id":        dc.ID(),
		"fallback":  dc.Fallback(),
		"createdAt": dc.CreatedAt(),
		"network":   optionalJSON(dc.Binding()),
	}
	if rec, ok := dc.ErrorRecord(); ok {
		out["error"] = rec
	}
	return out
}
