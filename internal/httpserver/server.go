package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tinytelemetry/onuwatch/internal/model"
)

// DefaultMaxUploadBytes bounds the multipart body of POST /upload.
const DefaultMaxUploadBytes int64 = 50 << 20

// Store is the store contract required by the HTTP API.
type Store interface {
	model.ReadAPI
	DeleteAllRecords(ctx context.Context) (int64, error)
	DeleteRecords(ctx context.Context, ids []int64) (int64, error)
	GetJob(id string) (model.Job, error)
	ListJobs(limit int) ([]model.Job, error)
	JobStatusCounts() (map[model.JobStatus]int64, error)
}

// Uploader accepts spreadsheet uploads for background processing.
type Uploader interface {
	Submit(ctx context.Context, filename, contentType string, contents []byte) (model.Job, error)
	QueueDepth() int
}

// Config holds optional server parameters.
type Config struct {
	MaxUploadBytes int64
	Now            func() time.Time
}

// Server provides the dashboard HTTP API.
type Server struct {
	addr      string
	store     Store
	uploads   Uploader
	maxUpload int64
	now       func() time.Time
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, store Store, uploads Uploader, conf ...Config) *Server {
	if addr == "" {
		addr = "0.0.0.0:8000"
	}
	cfg := Config{}
	if len(conf) > 0 {
		cfg = conf[0]
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		store:     store,
		uploads:   uploads,
		maxUpload: cfg.MaxUploadBytes,
		now:       cfg.Now,
		ctx:       ctx,
		cancel:    cancel,
		startTime: cfg.Now(),
	}
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(), CORS())

	r.GET("/", s.handleRoot)
	r.GET("/api/health", s.handleHealth)

	r.POST("/upload", s.handleUpload)
	r.GET("/relatorios", s.handleListJobs)
	r.GET("/relatorios/status/:job_id", s.handleJobStatus)

	r.GET("/clients", s.handleClients)
	r.GET("/clients/export", s.handleExport)
	r.GET("/clients/:serial", s.handleClientBySerial)
	r.DELETE("/clients/all", s.handleDeleteAll)
	r.DELETE("/clients", s.handleDeleteClients)

	r.GET("/stats/regions", s.handleStatsRegions)
	r.GET("/stats/cities", s.handleStatsCities)
	r.GET("/stats/history", s.handleStatsHistory)
	r.GET("/stats/kpis", s.handleKPIs)
	r.GET("/regions", s.handleRegions)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = s.now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "API online"})
}

func (s *Server) handleHealth(c *gin.Context) {
	count, err := s.store.TotalRecordCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to read health metrics"})
		return
	}
	jobs, err := s.store.JobStatusCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to read health metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"uptime":       s.now().Sub(s.startTime).Round(time.Second).String(),
		"record_count": count,
		"queue_depth":  s.uploads.QueueDepth(),
		"jobs":         jobs,
	})
}

func detail(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"detail": msg})
}
