package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/fluxqueue/jobqueue/internal/logger"
	"github.com/fluxqueue/jobqueue/internal/middleware"
	"github.com/fluxqueue/jobqueue/internal/queue"
	"github.com/fluxqueue/jobqueue/internal/worker"
)

// JobsHandler exposes the Queue Manager over HTTP, per spec.md §6.
type JobsHandler struct {
	manager   *queue.Manager
	validator *validator.Validate
	log       *logger.Logger
}

// NewJobsHandler builds the jobs HTTP handler. The "emailaddr" tag is
// backed by worker.EmailAddrPattern so a request that passes this check
// can never fail the executor's own address check later.
func NewJobsHandler(manager *queue.Manager, log *logger.Logger) *JobsHandler {
	v := validator.New()
	v.RegisterValidation("emailaddr", func(fl validator.FieldLevel) bool {
		return worker.EmailAddrPattern.MatchString(fl.Field().String())
	})
	return &JobsHandler{manager: manager, validator: v, log: log}
}

// submitEmailRequest is the JSON body for POST /jobs/email.
type submitEmailRequest struct {
	To      string `json:"to" binding:"required" validate:"required,emailaddr"`
	Subject string `json:"subject" binding:"required" validate:"required"`
	Body    string `json:"body" binding:"required" validate:"required"`
}

// SubmitEmail handles POST /jobs/email (spec.md §6).
func (h *JobsHandler) SubmitEmail(c *gin.Context) {
	var req submitEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := h.validator.Struct(&req); err != nil {
		h.validationErrorResponse(c, err)
		return
	}

	job, err := h.manager.CreateJob(queue.JobTypeSendEmail, map[string]interface{}{
		"to":      req.To,
		"subject": req.Subject,
		"body":    req.Body,
	}, queue.CreateOptions{})
	if err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			h.errorResponse(c, http.StatusServiceUnavailable, "queue is full", err)
			return
		}
		h.errorResponse(c, http.StatusInternalServerError, "failed to submit job", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"jobId":     job.ID,
		"status":    job.Status,
		"createdAt": job.CreatedAt,
		"message":   "job accepted",
	})
}

// GetJob handles GET /jobs/:id (spec.md §6).
func (h *JobsHandler) GetJob(c *gin.Context) {
	id, err := queue.ParseUUID(c.Param("id"))
	if err != nil {
		h.errorResponse(c, http.StatusNotFound, "job not found", err)
		return
	}

	job, err := h.manager.Get(id)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			h.errorResponse(c, http.StatusNotFound, "job not found", err)
			return
		}
		h.errorResponse(c, http.StatusInternalServerError, "failed to fetch job", err)
		return
	}

	c.JSON(http.StatusOK, jobView(job))
}

// ListJobs handles the ADD'd convenience endpoint GET /jobs.
func (h *JobsHandler) ListJobs(c *gin.Context) {
	status := queue.JobStatus(c.Query("status"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	jobs := h.manager.List(status, limit, offset)
	views := make([]gin.H, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, jobView(job))
	}

	c.JSON(http.StatusOK, gin.H{"jobs": views, "count": len(views)})
}

func jobView(job *queue.Job) gin.H {
	return gin.H{
		"id":          job.ID,
		"type":        job.Type,
		"status":      job.Status,
		"attempts":    job.Attempts,
		"maxAttempts": job.MaxAttempts,
		"createdAt":   job.CreatedAt,
		"startedAt":   job.StartedAt,
		"finishedAt":  job.FinishedAt,
		"retryAt":     job.RetryAt,
		"error":       job.Error,
		"result":      job.Result,
	}
}

func (h *JobsHandler) errorResponse(c *gin.Context, statusCode int, message string, err error) {
	response := gin.H{"error": message}
	if err != nil {
		response["details"] = err.Error()
	}
	if requestID, ok := c.Value(middleware.RequestIDKey).(string); ok {
		response["requestId"] = requestID
	}
	c.JSON(statusCode, response)
}

func (h *JobsHandler) validationErrorResponse(c *gin.Context, err error) {
	details := make(map[string]interface{})
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldError := range validationErrors {
			switch fieldError.Tag() {
			case "required":
				details[fieldError.Field()] = "this field is required"
			case "emailaddr":
				details[fieldError.Field()] = "invalid email format"
			default:
				details[fieldError.Field()] = "invalid value"
			}
		}
	}
	response := gin.H{"error": "validation failed", "details": details}
	if requestID, ok := c.Value(middleware.RequestIDKey).(string); ok {
		response["requestId"] = requestID
	}
	c.JSON(http.StatusBadRequest, response)
}
