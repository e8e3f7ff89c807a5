package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/childlang-lab/cdi-api/internal/dto"
	"github.com/childlang-lab/cdi-api/internal/models"
	"github.com/childlang-lab/cdi-api/internal/service"
	appErrors "github.com/childlang-lab/cdi-api/pkg/errors"
	"github.com/childlang-lab/cdi-api/pkg/response"
)

type snapshotQueryService interface {
	Search(ctx context.Context, filters []models.Filter, includeDeleted bool) ([]models.SnapshotMetadata, error)
	ConfirmDestructive(ctx context.Context, sessionID string) error
	Delete(ctx context.Context, sessionID string, filters []models.Filter, hard bool) ([]models.SnapshotMetadata, error)
	Restore(ctx context.Context, filters []models.Filter) ([]models.SnapshotMetadata, error)
}

type childPatchService interface {
	ApplyChildPatch(ctx context.Context, patch service.ChildMetadataPatch) ([]models.SnapshotMetadata, error)
}

// SnapshotHandler exposes search, delete lifecycle and child metadata
// endpoints over stored checklist snapshots.
type SnapshotHandler struct {
	queries snapshotQueryService
	recalc  childPatchService
}

// NewSnapshotHandler constructs handler.
func NewSnapshotHandler(queries snapshotQueryService, recalc childPatchService) *SnapshotHandler {
	return &SnapshotHandler{queries: queries, recalc: recalc}
}

// Search godoc
// @Summary Search snapshots by filter list
// @Tags Snapshots
// @Accept json
// @Produce json
// @Param request body dto.SearchRequest true "Search filters"
// @Success 200 {object} response.Envelope
// @Router /snapshots/search [post]
func (h *SnapshotHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	snapshots, err := h.queries.Search(c.Request.Context(), req.Filters, req.IncludeDeleted)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshots, nil)
}

// ConfirmDelete godoc
// @Summary Arm a delete confirmation for the caller
// @Tags Snapshots
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /snapshots/delete/confirm [post]
func (h *SnapshotHandler) ConfirmDelete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.queries.ConfirmDestructive(c.Request.Context(), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"confirmed": true}, nil)
}

// Delete godoc
// @Summary Delete snapshots matching filters
// @Tags Snapshots
// @Accept json
// @Produce json
// @Param request body dto.DeleteRequest true "Delete filters"
// @Success 200 {object} response.Envelope
// @Failure 428 {object} response.Envelope
// @Router /snapshots/delete [post]
func (h *SnapshotHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	affected, err := h.queries.Delete(c.Request.Context(), claims.UserID, req.Filters, req.Hard)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.AffectedResponse{Affected: len(affected), Snapshots: affected}, nil)
}

// Restore godoc
// @Summary Restore soft-deleted snapshots matching filters
// @Tags Snapshots
// @Accept json
// @Produce json
// @Param request body dto.RestoreRequest true "Restore filters"
// @Success 200 {object} response.Envelope
// @Router /snapshots/restore [post]
func (h *SnapshotHandler) Restore(c *gin.Context) {
	var req dto.RestoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	restored, err := h.queries.Restore(c.Request.Context(), req.Filters)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.AffectedResponse{Affected: len(restored), Snapshots: restored}, nil)
}

// UpdateChild godoc
// @Summary Update participant metadata and recompute derived fields
// @Tags Children
// @Accept json
// @Produce json
// @Param childId path string true "Global child ID"
// @Param request body dto.ChildPatchRequest true "Metadata patch"
// @Success 200 {object} response.Envelope
// @Router /children/{childId} [put]
func (h *SnapshotHandler) UpdateChild(c *gin.Context) {
	var req dto.ChildPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, err.Error()))
		return
	}
	patch := service.ChildMetadataPatch{
		ChildID:       c.Param("childId"),
		Gender:        req.Gender,
		Birthday:      req.Birthday,
		HardOfHearing: req.HardOfHearing,
		Languages:     req.Languages,
	}
	updated, err := h.recalc.ApplyChildPatch(c.Request.Context(), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.AffectedResponse{Affected: len(updated), Snapshots: updated}, nil)
}
