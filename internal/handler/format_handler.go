package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/childlang-lab/cdi-api/internal/dto"
	"github.com/childlang-lab/cdi-api/internal/models"
	appErrors "github.com/childlang-lab/cdi-api/pkg/errors"
	"github.com/childlang-lab/cdi-api/pkg/response"
)

type formatCatalogService interface {
	ListFormats(ctx context.Context) ([]models.CDIFormatMetadata, error)
	StrictLoadFormat(ctx context.Context, safeName string) (*models.CDIFormat, error)
	SaveFormat(ctx context.Context, format *models.CDIFormat) error
	DeleteFormat(ctx context.Context, safeName string) error
	ListPresentationFormats(ctx context.Context) ([]models.PresentationFormatMetadata, error)
	LoadPresentationFormat(ctx context.Context, safeName string) (*models.PresentationFormat, error)
	SavePresentationFormat(ctx context.Context, format *models.PresentationFormat) error
	DeletePresentationFormat(ctx context.Context, safeName string) error
	ListPercentileTables(ctx context.Context) ([]models.PercentileTableMetadata, error)
	LoadPercentileTable(ctx context.Context, safeName string) (*models.PercentileTable, error)
	SavePercentileTable(ctx context.Context, table *models.PercentileTable, body []byte) error
	DeletePercentileTable(ctx context.Context, safeName string) error
}

// FormatHandler exposes CRUD endpoints for checklist formats, presentation
// formats and percentile tables.
type FormatHandler struct {
	formats formatCatalogService
}

// NewFormatHandler constructs handler.
func NewFormatHandler(formats formatCatalogService) *FormatHandler {
	return &FormatHandler{formats: formats}
}

// ListCDI godoc
// @Summary List checklist formats
// @Tags Formats
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /formats/cdi [get]
func (h *FormatHandler) ListCDI(c *gin.Context) {
	formats, err := h.formats.ListFormats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, formats, nil)
}

// GetCDI godoc
// @Summary Fetch one checklist format with its parsed definition
// @Tags Formats
// @Produce json
// @Param name path string true "Safe name"
// @Success 200 {object} response.Envelope
// @Router /formats/cdi/{name} [get]
func (h *FormatHandler) GetCDI(c *gin.Context) {
	format, err := h.formats.StrictLoadFormat(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, format, nil)
}

// SaveCDI godoc
// @Summary Create or replace a checklist format
// @Tags Formats
// @Accept json
// @Produce json
// @Param name path string true "Safe name"
// @Param request body dto.SaveFormatRequest true "Format definition"
// @Success 200 {object} response.Envelope
// @Router /formats/cdi/{name} [put]
func (h *FormatHandler) SaveCDI(c *gin.Context) {
	var req dto.SaveFormatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	format := &models.CDIFormat{
		CDIFormatMetadata: models.CDIFormatMetadata{
			SafeName:  c.Param("name"),
			HumanName: req.HumanName,
			Filename:  req.Filename,
		},
		Details: req.Details,
	}
	if err := h.formats.SaveFormat(c.Request.Context(), format); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, format.CDIFormatMetadata, nil)
}

// DeleteCDI godoc
// @Summary Delete a checklist format
// @Tags Formats
// @Produce json
// @Param name path string true "Safe name"
// @Success 200 {object} response.Envelope
// @Router /formats/cdi/{name} [delete]
func (h *FormatHandler) DeleteCDI(c *gin.Context) {
	if err := h.formats.DeleteFormat(c.Request.Context(), c.Param("name")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": c.Param("name")}, nil)
}

// ListPresentation godoc
// @Summary List presentation formats
// @Tags Formats
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /formats/presentation [get]
func (h *FormatHandler) ListPresentation(c *gin.Context) {
	formats, err := h.formats.ListPresentationFormats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, formats, nil)
}

// GetPresentation godoc
// @Summary Fetch one presentation format with its value mapping
// @Tags Formats
// @Produce json
// @Param name path string true "Safe name"
// @Success 200 {object} response.Envelope
// @Router /formats/presentation/{name} [get]
func (h *FormatHandler) GetPresentation(c *gin.Context) {
	format, err := h.formats.LoadPresentationFormat(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if format == nil {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	response.JSON(c, http.StatusOK, format, nil)
}

// SavePresentation godoc
// @Summary Create or replace a presentation format
// @Tags Formats
// @Accept json
// @Produce json
// @Param name path string true "Safe name"
// @Param request body dto.SavePresentationRequest true "Value mapping"
// @Success 200 {object} response.Envelope
// @Router /formats/presentation/{name} [put]
func (h *FormatHandler) SavePresentation(c *gin.Context) {
	var req dto.SavePresentationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	format := &models.PresentationFormat{
		PresentationFormatMetadata: models.PresentationFormatMetadata{
			SafeName:  c.Param("name"),
			HumanName: req.HumanName,
			Filename:  req.Filename,
		},
		Details: req.Details,
	}
	if err := h.formats.SavePresentationFormat(c.Request.Context(), format); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, format.PresentationFormatMetadata, nil)
}

// DeletePresentation godoc
// @Summary Delete a presentation format
// @Tags Formats
// @Produce json
// @Param name path string true "Safe name"
// @Success 200 {object} response.Envelope
// @Router /formats/presentation/{name} [delete]
func (h *FormatHandler) DeletePresentation(c *gin.Context) {
	if err := h.formats.DeletePresentationFormat(c.Request.Context(), c.Param("name")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": c.Param("name")}, nil)
}

// ListPercentile godoc
// @Summary List percentile tables
// @Tags Formats
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /formats/percentile [get]
func (h *FormatHandler) ListPercentile(c *gin.Context) {
	tables, err := h.formats.ListPercentileTables(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tables, nil)
}

// GetPercentile godoc
// @Summary Fetch one percentile table with its parsed entries
// @Tags Formats
// @Produce json
// @Param name path string true "Safe name"
// @Success 200 {object} response.Envelope
// @Router /formats/percentile/{name} [get]
func (h *FormatHandler) GetPercentile(c *gin.Context) {
	table, err := h.formats.LoadPercentileTable(c.Request.Context(), c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, table, nil)
}

// SavePercentile godoc
// @Summary Create or replace a percentile table from raw CSV
// @Tags Formats
// @Accept json
// @Produce json
// @Param name path string true "Safe name"
// @Param request body dto.SavePercentileTableRequest true "Table body"
// @Success 200 {object} response.Envelope
// @Router /formats/percentile/{name} [put]
func (h *FormatHandler) SavePercentile(c *gin.Context) {
	var req dto.SavePercentileTableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	table := &models.PercentileTable{
		PercentileTableMetadata: models.PercentileTableMetadata{
			SafeName:  c.Param("name"),
			HumanName: req.HumanName,
			Filename:  req.Filename,
		},
	}
	if err := h.formats.SavePercentileTable(c.Request.Context(), table, []byte(req.Body)); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, table.PercentileTableMetadata, nil)
}

// DeletePercentile godoc
// @Summary Delete a percentile table
// @Tags Formats
// @Produce json
// @Param name path string true "Safe name"
// @Success 200 {object} response.Envelope
// @Router /formats/percentile/{name} [delete]
func (h *FormatHandler) DeletePercentile(c *gin.Context) {
	if err := h.formats.DeletePercentileTable(c.Request.Context(), c.Param("name")); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": c.Param("name")}, nil)
}
