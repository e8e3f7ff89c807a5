package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/childlang-lab/cdi-api/internal/dto"
	"github.com/childlang-lab/cdi-api/internal/service"
	appErrors "github.com/childlang-lab/cdi-api/pkg/errors"
	"github.com/childlang-lab/cdi-api/pkg/response"
)

type csvIngestService interface {
	Ingest(ctx context.Context, r io.Reader) (*service.IngestResult, error)
	ParseCSV(ctx context.Context, r io.Reader) (*service.IngestResult, error)
}

type ingestMetricsRecorder interface {
	RecordIngest(records int)
	RecordRejectedUpload()
}

// IngestHandler exposes CSV snapshot upload endpoints.
type IngestHandler struct {
	ingest  csvIngestService
	metrics ingestMetricsRecorder
}

// NewIngestHandler constructs handler.
func NewIngestHandler(ingest csvIngestService, metrics ingestMetricsRecorder) *IngestHandler {
	return &IngestHandler{ingest: ingest, metrics: metrics}
}

// Upload godoc
// @Summary Ingest a CSV of checklist snapshots
// @Tags Snapshots
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Column-per-child CSV upload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /snapshots/upload [post]
func (h *IngestHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file upload required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	result, err := h.ingest.Ingest(c.Request.Context(), file)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.IngestResponse{
		Accepted:     len(result.Records),
		HadError:     result.HadError,
		ErrorMessage: result.ErrorMessage,
	}
	if result.HadError {
		resp.Accepted = 0
		h.metrics.RecordRejectedUpload()
		response.JSON(c, http.StatusUnprocessableEntity, resp, nil)
		return
	}
	h.metrics.RecordIngest(len(result.Records))
	response.JSON(c, http.StatusOK, resp, nil)
}

// Validate godoc
// @Summary Dry-run parse of a CSV upload without persisting
// @Tags Snapshots
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Column-per-child CSV upload"
// @Success 200 {object} response.Envelope
// @Router /snapshots/upload/validate [post]
func (h *IngestHandler) Validate(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file upload required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload"))
		return
	}
	defer file.Close()

	result, err := h.ingest.ParseCSV(c.Request.Context(), file)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.IngestResponse{
		Accepted:     len(result.Records),
		HadError:     result.HadError,
		ErrorMessage: result.ErrorMessage,
	}
	if result.HadError {
		resp.Accepted = 0
	}
	response.JSON(c, http.StatusOK, resp, nil)
}
