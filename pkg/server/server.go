package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"tailview/pkg/core"
	"tailview/pkg/logstore"
)

var queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "tailview_log_queries_total",
	Help: "Range queries served, by outcome.",
}, []string{"status"})

// Server exposes the log-query HTTP API consumed by the viewer.
type Server struct {
	store   *logstore.Store
	logger  *slog.Logger
	limiter *rate.Limiter
	http    *http.Server
}

// New builds the server around a store. qps <= 0 disables rate limiting.
func New(store *logstore.Store, listen string, qps float64, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{store: store, logger: logger}
	if qps > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(qps), int(qps)*2)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestID())
	router.Use(s.requestLog())

	router.GET("/logs", s.rateLimit(), s.handleLogs)
	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.http = &http.Server{Addr: listen, Handler: router}
	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("serving log queries", "addr", s.http.Addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	}
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// logsQuery binds the /logs query string.
type logsQuery struct {
	StartMs   int64  `form:"start_ms"`
	EndMs     int64  `form:"end_ms"`
	Limit     int    `form:"limit"`
	Direction string `form:"direction"`
}

// logsResponse is the wire payload. An empty list is a valid response
// meaning no matching lines in range.
type logsResponse struct {
	Logs []core.LogEntry `json:"logs"`
}

func (s *Server) handleLogs(c *gin.Context) {
	var q logsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		queriesTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query: " + err.Error()})
		return
	}
	if q.Limit == 0 {
		q.Limit = 500
	}
	if q.Direction == "" {
		q.Direction = string(core.DirectionForward)
	}

	direction := core.Direction(q.Direction)
	switch {
	case q.StartMs > q.EndMs:
		queriesTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_ms must not exceed end_ms"})
		return
	case q.Limit <= 0:
		queriesTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be positive"})
		return
	case !direction.Valid():
		queriesTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be forward or backward"})
		return
	}

	logs, err := s.store.QueryRange(c.Request.Context(), q.StartMs, q.EndMs, q.Limit, direction)
	if err != nil {
		queriesTotal.WithLabelValues("error").Inc()
		s.logger.Error("range query failed", "err", err, "request_id", c.GetString("request_id"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if logs == nil {
		logs = []core.LogEntry{}
	}

	queriesTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, logsResponse{Logs: logs})
}

func (s *Server) handleHealth(c *gin.Context) {
	if _, err := s.store.Count(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set("request_id", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", strconv.Itoa(c.Writer.Status()),
			"duration", time.Since(start),
			"request_id", c.GetString("request_id"),
		)
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter != nil && !s.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
