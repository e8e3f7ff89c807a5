package dto

import "github.com/childlang-lab/cdi-api/internal/models"

// ExportRequest captures POST /exports payloads.
type ExportRequest struct {
	Type               models.ExportType   `json:"type" binding:"required"`
	Format             models.ExportFormat `json:"format" binding:"required"`
	Filters            []models.Filter     `json:"filters" binding:"required,dive"`
	PresentationFormat string              `json:"presentation_format,omitempty"`
	IncludeDeleted     bool                `json:"include_deleted,omitempty"`
	Title              string              `json:"title,omitempty"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
