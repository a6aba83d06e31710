package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/broker"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/manager"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/monitor"
	"github.com/trigg3rX/triggerx-jobqueue/internal/jobqueue/types"
)

const defaultListLimit = 20

type CreateJobRequest struct {
	Function       string          `json:"function" binding:"required"`
	Queue          string          `json:"queue"`
	Args           json.RawMessage `json:"args,omitempty"`
	JobID          string          `json:"job_id,omitempty"`
	TimeoutSeconds int             `json:"timeout_seconds,omitempty"`
	Retries        *int            `json:"retries,omitempty"`
}

type JobResultResponse struct {
	JobID  string          `json:"job_id"`
	Status types.JobStatus `json:"status"`
	Ready  bool            `json:"ready"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *types.JobError `json:"error,omitempty"`
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "jobqueue",
		"status":  "ok",
		"time":    time.Now().UTC(),
	})
}

type HealthResponse struct {
	monitor.HealthSummary
	Broker *broker.Health `json:"broker,omitempty"`
}

// handleHealth answers 503 while a critical alert is active or the broker
// does not respond.
func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{HealthSummary: s.monitor.GetSystemHealthSummary()}
	code := http.StatusOK
	if resp.Critical() {
		code = http.StatusServiceUnavailable
	}
	bh, err := s.queue.BrokerHealth(c.Request.Context())
	switch {
	case err != nil:
		bh = broker.Health{Error: err.Error(), CheckedAt: time.Now().UTC()}
		code = http.StatusServiceUnavailable
	case !bh.Healthy:
		code = http.StatusServiceUnavailable
	}
	resp.Broker = &bh
	c.JSON(code, resp)
}

func (s *Server) handleCreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request body: %v", err)})
		return
	}
	if req.TimeoutSeconds < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timeout_seconds must not be negative"})
		return
	}

	rec, err := s.queue.Enqueue(c.Request.Context(), manager.EnqueueRequest{
		FuncName: req.Function,
		Priority: types.Priority(req.Queue),
		Args:     req.Args,
		JobID:    req.JobID,
		Timeout:  time.Duration(req.TimeoutSeconds) * time.Second,
		Retry:    req.Retries,
	})
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return
	}
	GetLogger(c).Infof("POST [CreateJob] Enqueued job %s on %s", rec.ID, rec.Priority)
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) loadJob(c *gin.Context) (*types.JobRecord, bool) {
	id := c.Param("id")
	rec, ok, err := s.queue.GetJob(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, http.StatusInternalServerError)
		return nil, false
	}
	if !ok {
		respondError(c, fmt.Errorf("%w: %s", jobqueue.ErrJobNotFound, id), http.StatusNotFound)
		return nil, false
	}
	return rec, true
}

func (s *Server) handleGetJob(c *gin.Context) {
	if rec, ok := s.loadJob(c); ok {
		c.JSON(http.StatusOK, rec)
	}
}

// handleGetResult reports ready=false until the job has finished.
func (s *Server) handleGetResult(c *gin.Context) {
	rec, ok := s.loadJob(c)
	if !ok {
		return
	}
	resp := JobResultResponse{JobID: rec.ID, Status: rec.Status, Error: rec.Error}
	if rec.Status == types.StatusFinished {
		resp.Ready = true
		resp.Result = rec.Result
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCancelJob(c *gin.Context) {
	rec, ok := s.loadJob(c)
	if !ok {
		return
	}
	canceled, err := s.queue.Cancel(c.Request.Context(), rec.ID)
	if err != nil {
		respondError(c, err, http.StatusInternalServerError)
		return
	}
	if !canceled {
		respondError(c, fmt.Errorf("%w: job %s is %s", jobqueue.ErrInvalidJobState, rec.ID, rec.Status), http.StatusConflict)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": rec.ID, "canceled": true})
}

func (s *Server) handleRequeueJob(c *gin.Context) {
	rec, err := s.queue.RequeueJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleQueueStats(c *gin.Context) {
	stats, err := s.queue.GetQueueStats(c.Request.Context())
	if err != nil {
		respondError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func queueParam(c *gin.Context) (types.Priority, bool) {
	p, err := types.ParsePriority(c.Param("name"))
	if err != nil {
		respondError(c, err, http.StatusBadRequest)
		return "", false
	}
	return p, true
}

// handleQueueJobs lists pending jobs, or the newest entries of a registry
// when ?registry= names one.
func (s *Server) handleQueueJobs(c *gin.Context) {
	p, ok := queueParam(c)
	if !ok {
		return
	}
	limit, err := intQuery(c, "limit", defaultListLimit)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	var jobs []*types.JobRecord
	switch reg := broker.Registry(c.DefaultQuery("registry", "pending")); reg {
	case "pending":
		jobs, err = s.queue.PendingJobs(c.Request.Context(), p, limit)
	case broker.RegistryStarted, broker.RegistryFinished, broker.RegistryFailed, broker.RegistryDeferred:
		jobs, err = s.queue.RecentJobs(c.Request.Context(), p, reg, limit)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown registry %q", reg)})
		return
	}
	if err != nil {
		respondError(c, err, http.StatusInternalServerError)
		return
	}
	if jobs == nil {
		jobs = []*types.JobRecord{}
	}
	c.JSON(http.StatusOK, jobs)
}

func (s *Server) handleRequeueQueue(c *gin.Context) {
	p, ok := queueParam(c)
	if !ok {
		return
	}
	n, err := s.queue.RequeueFailed(c.Request.Context(), p)
	if err != nil {
		respondError(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": p, "requeued": n})
}

// handleClearQueue requires ?confirm=true.
func (s *Server) handleClearQueue(c *gin.Context) {
	p, ok := queueParam(c)
	if !ok {
		return
	}
	if c.Query("confirm") != "true" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "clearing a queue requires confirm=true"})
		return
	}
	n, err := s.queue.ClearQueue(c.Request.Context(), p)
	if err != nil {
		respondError(c, err, http.StatusInternalServerError)
		return
	}
	GetLogger(c).Warnf("DELETE [ClearQueue] Cleared %d jobs from %s", n, p)
	c.JSON(http.StatusOK, gin.H{"queue": p, "cleared": n})
}

func (s *Server) handleWorkers(c *gin.Context) {
	workers, err := s.queue.ListWorkers(c.Request.Context())
	if err != nil {
		respondError(c, err, http.StatusInternalServerError)
		return
	}
	if workers == nil {
		workers = []types.WorkerInfo{}
	}
	c.JSON(http.StatusOK, workers)
}

// handleAlerts filters by ?hours= (default 24), ?level=, ?min_level= and ?queue=.
func (s *Server) handleAlerts(c *gin.Context) {
	hours, err := intQuery(c, "hours", 24)
	if err != nil || hours <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
		return
	}
	f := monitor.AlertFilter{
		Since: time.Now().UTC().Add(-time.Duration(hours) * time.Hour),
		Queue: c.Query("queue"),
	}
	for param, dst := range map[string]*types.AlertLevel{"level": &f.Level, "min_level": &f.MinLevel} {
		if v := c.Query(param); v != "" {
			level, ok := types.ParseAlertLevel(v)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown alert level %q", v)})
				return
			}
			*dst = level
		}
	}

	alerts := s.monitor.GetAlerts(f)
	if alerts == nil {
		alerts = []types.QueueAlert{}
	}
	c.JSON(http.StatusOK, alerts)
}

func (s *Server) handleReport(c *gin.Context) {
	hours, err := intQuery(c, "hours", 24)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be an integer"})
		return
	}
	c.JSON(http.StatusOK, s.monitor.GenerateMonitoringReport(hours))
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
