// Package httpapi is the HTTP boundary of speechgate.
package httpapi

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ineyio/speechgate"
)

const (
	defaultMaxUploadBytes = 10 << 20
	adminTokenHeader      = "X-Admin-Token"
)

// Server serves the speechgate HTTP API.
type Server struct {
	dispatcher *speechgate.Dispatcher
	dumpDir    string
	maxUpload  int64
	adminToken string
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithDumpDir sets the directory uploads are written to.
func WithDumpDir(dir string) Option {
	return func(s *Server) { s.dumpDir = dir }
}

// WithMaxUploadBytes limits the request body size.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) { s.maxUpload = n }
}

// WithAdminToken enables the operator endpoints, guarded by the X-Admin-Token header.
func WithAdminToken(token string) Option {
	return func(s *Server) { s.adminToken = token }
}

// WithMetrics exposes g on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server in front of d.
func New(d *speechgate.Dispatcher, opts ...Option) *Server {
	s := &Server{
		dispatcher: d,
		dumpDir:    os.TempDir(),
		maxUpload:  defaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxUpload <= 0 {
		s.maxUpload = defaultMaxUploadBytes
	}
	return s
}

// Handler builds the gin engine with all routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.healthz)

	api := r.Group("/api")
	api.POST("/process_audio_file", s.processAudioFile)
	api.GET("/quota", s.quota)
	api.POST("/quota/reset", s.requireAdmin(), s.resetQuota)

	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	return r
}

type processResponse struct {
	Result  string `json:"result"`
	Matched bool   `json:"matched"`
	SayMuh  bool   `json:"say_muh"`
}

type errorResponse struct {
	Result  string `json:"result"`
	Message string `json:"message"`
}

func invalidFile(c *gin.Context) {
	c.JSON(http.StatusBadRequest, errorResponse{Result: "error", Message: "Invalid file"})
}

func (s *Server) processAudioFile(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)

	fh, err := c.FormFile("file")
	if err != nil {
		s.logger.Info("rejected upload", "error", err)
		invalidFile(c)
		return
	}

	src, err := fh.Open()
	if err != nil {
		invalidFile(c)
		return
	}
	defer src.Close()

	tmp, err := speechgate.SaveTemp(s.dumpDir, src, speechgate.WithTempLogger(s.logger))
	if err != nil {
		s.logger.Error("saving upload failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Result: "error", Message: "Internal error"})
		return
	}

	if err := speechgate.ProbeWAV(tmp.Path()); err != nil {
		tmp.Release()
		s.logger.Info("rejected upload", "filename", fh.Filename, "error", err)
		invalidFile(c)
		return
	}

	// Dispatch owns tmp from here on.
	out := s.dispatcher.Dispatch(c.Request.Context(), tmp)
	c.JSON(http.StatusOK, processResponse{Result: "success", Matched: out.Matched, SayMuh: out.Matched})
}

type engineHealth struct {
	State       string     `json:"state"`
	Failures    int        `json:"failures"`
	LastError   string     `json:"last_error,omitempty"`
	LastFailure *time.Time `json:"last_failure,omitempty"`
}

func (s *Server) healthz(c *gin.Context) {
	engines := make(map[string]engineHealth)
	for name, h := range s.dispatcher.Health() {
		eh := engineHealth{State: h.State.String(), Failures: h.Failures, LastError: h.LastError}
		if !h.LastFailure.IsZero() {
			at := h.LastFailure
			eh.LastFailure = &at
		}
		engines[name] = eh
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "engines": engines})
}

type quotaResponse struct {
	ProcessedSeconds float64 `json:"processed_seconds"`
	ThresholdSeconds float64 `json:"threshold_seconds"`
	RemainingSeconds float64 `json:"remaining_seconds"`
	Exhausted        bool    `json:"exhausted"`
	PeriodAnchor     string  `json:"period_anchor"`
	Backend          string  `json:"backend"`
}

func (s *Server) quotaBody() quotaResponse {
	snap, backend := s.dispatcher.Quota()
	return quotaResponse{
		ProcessedSeconds: snap.ProcessedSeconds,
		ThresholdSeconds: snap.Threshold,
		RemainingSeconds: snap.Remaining(),
		Exhausted:        snap.Exhausted(),
		PeriodAnchor:     snap.Anchor.Format(speechgate.AnchorLayout),
		Backend:          backend.String(),
	}
}

func (s *Server) quota(c *gin.Context) {
	c.JSON(http.StatusOK, s.quotaBody())
}

func (s *Server) resetQuota(c *gin.Context) {
	if err := s.dispatcher.ResetQuota(c.Request.Context()); err != nil {
		s.logger.Error("quota reset failed", "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Result: "error", Message: "Reset failed"})
		return
	}
	s.logger.Warn("quota reset by operator", "client_ip", c.ClientIP())
	c.JSON(http.StatusOK, s.quotaBody())
}

// requireAdmin rejects requests without the admin token. Without a configured
// token the operator endpoints do not exist.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.adminToken == "" {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		got := c.GetHeader(adminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.adminToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Result: "error", Message: "Unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
