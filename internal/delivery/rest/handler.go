package rest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/catalog-importer/internal/domain/apperror"
	"github.com/yourusername/catalog-importer/internal/domain/entity"
	"github.com/yourusername/catalog-importer/internal/infrastructure/logger"
)

// MaxBodySize POST /imports uchun maksimal hajm
const MaxBodySize = 100 * 1024 * 1024

const (
	defaultListLimit = 20
	maxListLimit     = 200
	requestTimeout   = 10 * time.Second
)

// ImportService is what the HTTP adapter needs from the import pipeline.
type ImportService interface {
	SubmitImport(ctx context.Context, raw []byte, metadata map[string]string) (string, error)
	GetJob(ctx context.Context, id string) (*entity.Job, error)
	ListJobs(ctx context.Context, filter entity.JobFilter) ([]*entity.Job, error)
	CancelJob(ctx context.Context, id string) (*entity.Job, error)
	ExportReport(ctx context.Context, id string) ([]byte, string, error)
	CheckStorage(ctx context.Context) (entity.StorageSize, entity.StorageStatus, error)
}

// ErrorResponse xato javobi
type ErrorResponse struct {
	Error string `json:"error"`
}

// SubmitResponse POST /imports javobi
type SubmitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobListResponse GET /imports javobi
type JobListResponse struct {
	Jobs  []*entity.Job `json:"jobs"`
	Count int           `json:"count"`
}

// StorageResponse GET /storage javobi
type StorageResponse struct {
	Status entity.StorageStatus `json:"status"`
	entity.StorageSize
}

// Handler import HTTP handler
type Handler struct {
	imports ImportService
	log     *logrus.Entry
}

// NewRouter builds the gin engine with every route. metricsHandler may be nil.
func NewRouter(imports ImportService, metricsHandler http.Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	h := &Handler{imports: imports, log: logger.Component("http")}

	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	jobs := router.Group("/imports")
	{
		jobs.POST("", h.SubmitImport)
		jobs.GET("", h.ListJobs)
		jobs.GET("/:id", h.GetJob)
		jobs.DELETE("/:id", h.CancelJob)
		jobs.GET("/:id/report", h.ExportReport)
	}
	router.GET("/storage", h.Storage)
	return router
}

// POST /imports
func (h *Handler) SubmitImport(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "could not read body"})
		return
	}
	if len(raw) == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "empty body"})
		return
	}

	meta := map[string]string{"source": "http", "remote": c.ClientIP()}
	if name := c.Query("file"); name != "" {
		meta["file"] = name
	}

	id, err := h.imports.SubmitImport(c.Request.Context(), raw, meta)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Location", "/imports/"+id)
	c.JSON(http.StatusAccepted, SubmitResponse{JobID: id, Status: string(entity.JobCreated)})
}

// GET /imports
func (h *Handler) ListJobs(c *gin.Context) {
	limit := defaultListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = min(n, maxListLimit)
	}

	status := entity.JobStatus(c.Query("status"))
	switch status {
	case "", entity.JobCreated, entity.JobProcessing, entity.JobCompleted, entity.JobFailed, entity.JobCancelled:
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid status"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	jobs, err := h.imports.ListJobs(ctx, entity.JobFilter{Status: status, Limit: limit})
	if err != nil {
		h.respondError(c, err)
		return
	}
	if jobs == nil {
		jobs = []*entity.Job{}
	}
	c.JSON(http.StatusOK, JobListResponse{Jobs: jobs, Count: len(jobs)})
}

// GET /imports/:id
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.imports.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// DELETE /imports/:id
func (h *Handler) CancelJob(c *gin.Context) {
	job, err := h.imports.CancelJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// GET /imports/:id/report
func (h *Handler) ExportReport(c *gin.Context) {
	data, name, err := h.imports.ExportReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// GET /storage
func (h *Handler) Storage(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	size, status, err := h.imports.CheckStorage(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, StorageResponse{Status: status, StorageSize: size})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperror.ErrJobNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, apperror.ErrNotCancellable), errors.Is(err, apperror.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.Is(err, apperror.ErrJobExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	default:
		h.log.WithError(err).WithField("path", c.FullPath()).Error("So'rov bajarilmadi")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start).String(),
		}).Debug("HTTP so'rov")
	}
}
