// handlers.go - HTTP handlers for batch upload, result listing and lookup

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/studyhub/study_eval_gemini/internal/common"
	"github.com/studyhub/study_eval_gemini/internal/pipeline"
	"github.com/studyhub/study_eval_gemini/internal/processor"
	"github.com/studyhub/study_eval_gemini/internal/storage"
)

// Multipart field names of the upload form.
const (
	FieldPlanFiles        = "plan_files"
	FieldReportFiles      = "report_files"
	FieldIncludeUnmatched = "include_unmatched"
)

// BatchProcessor evaluates one uploaded batch.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, rc *common.RequestContext, plans, reports []processor.UploadedFile, opts pipeline.Options) *pipeline.BatchResult
}

// ResultReader serves stored evaluations.
type ResultReader interface {
	List(ctx context.Context, f storage.ResultFilter) ([]storage.ResultSummary, error)
	FilterOptions(ctx context.Context) (storage.FilterOptions, error)
	Get(ctx context.Context, id int64) (*storage.ResultDetail, error)
}

// Handler holds the dependencies of every route.
type Handler struct {
	batches BatchProcessor
	results ResultReader
	logger  *logrus.Logger
	// processUnmatched is the include_unmatched default when the form omits it.
	processUnmatched bool
}

// NewHandler creates a Handler.
func NewHandler(batches BatchProcessor, results ResultReader, logger *logrus.Logger, processUnmatched bool) *Handler {
	return &Handler{
		batches:          batches,
		results:          results,
		logger:           logger,
		processUnmatched: processUnmatched,
	}
}

// UploadAndAnalyze handles POST /upload-and-analyze. Once files are accepted
// the response is always 200; per-pair failures are reported in results.
func (h *Handler) UploadAndAnalyze(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "Upload too large",
				"details": fmt.Sprintf("limit is %d bytes", tooLarge.Limit),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "Invalid request format",
			"details":  err.Error(),
			"expected": "multipart/form-data with plan_files and report_files",
		})
		return
	}

	includeUnmatched := h.processUnmatched
	if raw := strings.TrimSpace(c.PostForm(FieldIncludeUnmatched)); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "include_unmatched must be a boolean",
				"details": err.Error(),
			})
			return
		}
		includeUnmatched = v
	}

	planHeaders := form.File[FieldPlanFiles]
	reportHeaders := form.File[FieldReportFiles]
	if len(planHeaders) == 0 && len(reportHeaders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "no files uploaded: send plan_files and/or report_files",
		})
		return
	}

	plans, err := readUploads(planHeaders)
	if err == nil {
		var reports []processor.UploadedFile
		reports, err = readUploads(reportHeaders)
		if err == nil {
			h.runBatch(c, plans, reports, includeUnmatched)
			return
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Failed to read uploaded file",
		"details": err.Error(),
	})
}

func (h *Handler) runBatch(c *gin.Context, plans, reports []processor.UploadedFile, includeUnmatched bool) {
	rc := common.NewRequestContext(h.logger, fmt.Sprintf("%d plans, %d reports", len(plans), len(reports)))

	result := h.batches.ProcessBatch(c.Request.Context(), rc, plans, reports, pipeline.Options{
		IncludeUnmatched: includeUnmatched,
	})
	summary := rc.GetSummary()

	c.JSON(http.StatusOK, gin.H{
		"request_id": rc.RequestID,
		"summary":    result.Summary,
		"results":    result.Results,
		"metadata": gin.H{
			"total_duration_ms": summary["total_duration_ms"],
			"step_breakdown":    summary["step_breakdown"],
		},
	})
}

func readUploads(headers []*multipart.FileHeader) ([]processor.UploadedFile, error) {
	files := make([]processor.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		data, err := readUpload(fh)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		files = append(files, processor.UploadedFile{Name: fh.Filename, Data: data})
	}
	return files, nil
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// ListResults handles GET /results.
func (h *Handler) ListResults(c *gin.Context) {
	filter, err := storage.ParseResultFilter(
		c.Query("campus"),
		c.Query("class_name"),
		c.Query("start_date"),
		c.Query("end_date"),
		c.Query("q"),
	)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, err := h.results.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Listing analysis results failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load results",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": rows})
}

// FilterOptions handles GET /filter-options.
func (h *Handler) FilterOptions(c *gin.Context) {
	opts, err := h.results.FilterOptions(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Loading filter options failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load filter options",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, opts)
}

// GetResult handles GET /results/:id.
func (h *Handler) GetResult(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "result id must be an integer"})
		return
	}

	detail, err := h.results.Get(c.Request.Context(), id)
	if errors.Is(err, storage.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "결과를 찾을 수 없습니다."})
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("id", id).Error("Loading analysis result failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load result",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, detail)
}
