package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lysyi3m/wp-extractor/app/jobs"
	"github.com/lysyi3m/wp-extractor/app/metrics"
	"github.com/lysyi3m/wp-extractor/app/sites"
)

const statusPath = "/extract/status/"

type HandlerConfig struct {
	BaseURL    string
	StoreInfo  string
	PendingTTL time.Duration
	PerPage    int
}

func NewHandler(store jobs.Store, queue Enqueuer, extractor jobs.Extractor,
	registry *sites.Registry, m *metrics.Metrics, config HandlerConfig) *Handler {
	return &Handler{
		store:      store,
		queue:      queue,
		extractor:  extractor,
		sites:      registry,
		metrics:    m,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		storeInfo:  config.StoreInfo,
		pendingTTL: config.PendingTTL,
		perPage:    config.PerPage,
		newID:      uuid.NewString,
	}
}

func (h *Handler) Extract(c *gin.Context) {
	req, err := bindRequest(c, h.sites, h.perPage)
	if err != nil {
		c.JSON(http.StatusBadRequest, extractError(err))
		return
	}

	slog.Info("Synchronous extraction started", "base_url", req.BaseURL, "post_type", req.PostType, "after", req.After)

	outcome, err := h.extractor.Run(c.Request.Context(), req.Params(), nil)
	if err != nil {
		slog.Error("Synchronous extraction failed", "base_url", req.BaseURL, "error", err)
		c.JSON(http.StatusInternalServerError, extractError(err))
		return
	}

	if h.metrics != nil {
		h.metrics.SyncPostsTotal.Add(float64(len(outcome.Posts)))
	}

	slog.Info("Synchronous extraction completed", "base_url", req.BaseURL, "posts", len(outcome.Posts), "total_pages", outcome.TotalPages)

	c.JSON(http.StatusOK, ExtractResponse{Success: true, Data: outcome.Posts})
}

func (h *Handler) ExtractAsync(c *gin.Context) {
	req, err := bindRequest(c, h.sites, h.perPage)
	if err != nil {
		c.JSON(http.StatusBadRequest, SubmitResponse{Success: false, Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	job := jobs.NewJob(h.newID(), req)

	// the record must exist before a worker can pick the job up
	if err := h.store.Set(ctx, job, h.pendingTTL); err != nil {
		slog.Error("Failed to store job", "job_id", job.ID, "error", err)
		c.JSON(http.StatusInternalServerError, SubmitResponse{Success: false, Error: err.Error()})
		return
	}

	if err := h.queue.Enqueue(ctx, jobs.Message{JobID: job.ID, Request: req}); err != nil {
		slog.Error("Failed to enqueue job", "job_id", job.ID, "error", err)
		h.discard(ctx, job, err)
		c.JSON(http.StatusInternalServerError, SubmitResponse{Success: false, Error: err.Error()})
		return
	}

	if h.metrics != nil {
		h.metrics.JobsSubmitted.Inc()
	}

	slog.Info("Extraction job submitted", "job_id", job.ID, "base_url", req.BaseURL, "post_type", req.PostType, "after", req.After)

	c.JSON(http.StatusAccepted, SubmitResponse{
		Success:  true,
		TaskID:   job.ID,
		Status:   string(jobs.StatePending),
		Message:  "Extraction task started",
		CheckURL: h.baseURL + statusPath + job.ID,
	})
}

// discard marks a job that never reached the queue as failed.
func (h *Handler) discard(ctx context.Context, job *jobs.Job, cause error) {
	now := time.Now().UTC()
	job.State = jobs.StateFailure
	job.Error = cause.Error()
	job.Progress.Status = jobs.StatusFailed
	job.UpdatedAt = now
	job.CompletedAt = &now

	if err := h.store.Set(context.WithoutCancel(ctx), job, h.pendingTTL); err != nil {
		slog.Warn("Failed to record unqueued job", "job_id", job.ID, "error", err)
	}
}

func (h *Handler) GetStatus(c *gin.Context) {
	id := c.Param("task_id")

	job, err := h.store.Get(c.Request.Context(), id)
	if errors.Is(err, jobs.ErrNotFound) {
		msg := "Task not found or expired"
		c.JSON(http.StatusNotFound, StatusResponse{Success: false, TaskID: id, State: StateUnknown, Error: &msg})
		return
	}
	if err != nil {
		slog.Error("Failed to get job", "job_id", id, "error", err)
		msg := err.Error()
		c.JSON(http.StatusInternalServerError, StatusResponse{Success: false, TaskID: id, State: StateUnknown, Error: &msg})
		return
	}

	resp := StatusResponse{
		Success:  true,
		TaskID:   job.ID,
		State:    string(job.State),
		Progress: &job.Progress,
	}
	if job.State == jobs.StateSuccess {
		resp.Result = job.Result
	}
	if job.State == jobs.StateFailure {
		msg := job.Error
		resp.Error = &msg
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	store := map[string]interface{}{
		"backend":   h.store.Backend(),
		"connected": true,
	}
	status, code := "healthy", http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		store["connected"] = false
		store["error"] = err.Error()
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"store":     store,
	})
}

func (h *Handler) DebugStore(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"backend": h.store.Backend(),
			"target":  h.storeInfo,
			"error":   err.Error(),
			"message": "Store connection failed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"backend": h.store.Backend(),
		"target":  h.storeInfo,
		"message": "Store connection successful",
	})
}

func extractError(err error) ExtractResponse {
	msg := err.Error()
	return ExtractResponse{Success: false, Error: &msg}
}
