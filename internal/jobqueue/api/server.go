// Package api exposes the queue manager and monitor over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/broker"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/manager"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/monitor"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
	"github.com/trigg3rX/triggerx-jobqueue/pkg/logging"
)

// JobQueue is the part of the queue manager the API drives.
type JobQueue interface {
	Enqueue(ctx context.Context, req manager.EnqueueRequest) (*types.JobRecord, error)
	GetJob(ctx context.Context, id string) (*types.JobRecord, bool, error)
	Cancel(ctx context.Context, id string) (bool, error)
	RequeueJob(ctx context.Context, id string) (*types.JobRecord, error)
	RequeueFailed(ctx context.Context, p types.Priority) (int, error)
	ClearQueue(ctx context.Context, p types.Priority) (int, error)
	GetQueueStats(ctx context.Context) (types.QueueStats, error)
	PendingJobs(ctx context.Context, p types.Priority, limit int) ([]*types.JobRecord, error)
	RecentJobs(ctx context.Context, p types.Priority, reg broker.Registry, limit int) ([]*types.JobRecord, error)
	ListWorkers(ctx context.Context) ([]types.WorkerInfo, error)
	BrokerHealth(ctx context.Context) (broker.Health, error)
}

// HealthMonitor is the part of the queue monitor the API reads.
type HealthMonitor interface {
	GetSystemHealthSummary() monitor.HealthSummary
	GetAlerts(f monitor.AlertFilter) []types.QueueAlert
	GenerateMonitoringReport(hours int) monitor.Report
}

type Options struct {
	Addr string
	// Metrics serves GET /metrics when set.
	Metrics http.Handler
	// AlertStream serves GET /ws/alerts when set.
	AlertStream http.Handler
	Observer    HTTPObserver
	DevMode     bool
}

type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	logger     logging.Logger
	queue      JobQueue
	monitor    HealthMonitor
	opts       Options
}

func NewServer(queue JobQueue, mon HealthMonitor, logger logging.Logger, opts Options) *Server {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	if !opts.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	s := &Server{
		router:  router,
		logger:  logger.With("component", "api"),
		queue:   queue,
		monitor: mon,
		opts:    opts,
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(TraceMiddleware(s.logger))
	s.router.Use(LoggingMiddleware())
	if s.opts.Observer != nil {
		s.router.Use(MetricsMiddleware(s.opts.Observer))
	}

	s.router.GET("/", s.handleRoot)
	s.router.GET("/health", s.handleHealth)
	if s.opts.Metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.opts.Metrics))
	}
	if s.opts.AlertStream != nil {
		s.router.GET("/ws/alerts", gin.WrapH(s.opts.AlertStream))
	}

	jobs := s.router.Group("/jobs")
	jobs.POST("", s.handleCreateJob)
	jobs.GET("/:id", s.handleGetJob)
	jobs.GET("/:id/result", s.handleGetResult)
	jobs.POST("/:id/cancel", s.handleCancelJob)
	jobs.POST("/:id/requeue", s.handleRequeueJob)

	queues := s.router.Group("/queues")
	queues.GET("", s.handleQueueStats)
	queues.GET("/:name/jobs", s.handleQueueJobs)
	queues.POST("/:name/requeue", s.handleRequeueQueue)
	queues.DELETE("/:name", s.handleClearQueue)

	s.router.GET("/workers", s.handleWorkers)
	s.router.GET("/alerts", s.handleAlerts)
	s.router.GET("/report", s.handleReport)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Infof("Starting API server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
