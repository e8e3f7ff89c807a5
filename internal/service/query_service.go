package service

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/childlang-lab/cdi-api/internal/models"
	appErrors "github.com/childlang-lab/cdi-api/pkg/errors"
)

// ErrDeleteNotConfirmed rejects destructive queries whose session never
// armed a confirmation flag.
var ErrDeleteNotConfirmed = appErrors.New(
	"DELETE_NOT_CONFIRMED",
	http.StatusPreconditionRequired,
	"destructive operation requires prior confirmation")

type snapshotQueryStore interface {
	RunSearch(ctx context.Context, filters []models.Filter) ([]models.SnapshotMetadata, error)
	RunSoftDelete(ctx context.Context, filters []models.Filter) ([]models.SnapshotMetadata, error)
	RunRestore(ctx context.Context, filters []models.Filter) ([]models.SnapshotMetadata, error)
	RunHardDelete(ctx context.Context, filters []models.Filter) ([]models.SnapshotMetadata, error)
}

type deleteConfirmer interface {
	Arm(ctx context.Context, sessionID string) error
	Consume(ctx context.Context, sessionID string) (bool, error)
}

// QueryService runs filter-compiled searches and the soft-delete
// lifecycle over snapshots.
type QueryService struct {
	snapshots     snapshotQueryStore
	confirmations deleteConfirmer
	logger        *zap.Logger
}

// NewQueryService constructs a QueryService.
func NewQueryService(snapshots snapshotQueryStore, confirmations deleteConfirmer, logger *zap.Logger) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{snapshots: snapshots, confirmations: confirmations, logger: logger}
}

// Search returns snapshots matching the filters. Unless includeDeleted is
// set, an implicit deleted = 0 filter keeps soft-deleted rows out.
func (s *QueryService) Search(ctx context.Context, filters []models.Filter, includeDeleted bool) ([]models.SnapshotMetadata, error) {
	return s.snapshots.RunSearch(ctx, s.effectiveFilters(filters, includeDeleted))
}

// ConfirmDestructive arms the session's one-shot confirmation flag.
func (s *QueryService) ConfirmDestructive(ctx context.Context, sessionID string) error {
	return s.confirmations.Arm(ctx, sessionID)
}

// Delete soft-deletes matching snapshots, or removes them permanently when
// hard is set. The session must have confirmed beforehand; the flag is
// consumed either way.
func (s *QueryService) Delete(ctx context.Context, sessionID string, filters []models.Filter, hard bool) ([]models.SnapshotMetadata, error) {
	confirmed, err := s.confirmations.Consume(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !confirmed {
		return nil, ErrDeleteNotConfirmed
	}

	var affected []models.SnapshotMetadata
	if hard {
		affected, err = s.snapshots.RunHardDelete(ctx, filters)
	} else {
		affected, err = s.snapshots.RunSoftDelete(ctx, s.effectiveFilters(filters, true))
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("snapshots deleted",
		zap.Int("affected", len(affected)),
		zap.Bool("hard", hard))
	return affected, nil
}

// Restore clears the deleted flag on matching snapshots.
func (s *QueryService) Restore(ctx context.Context, filters []models.Filter) ([]models.SnapshotMetadata, error) {
	affected, err := s.snapshots.RunRestore(ctx, filters)
	if err != nil {
		return nil, err
	}
	s.logger.Info("snapshots restored", zap.Int("affected", len(affected)))
	return affected, nil
}

func (s *QueryService) effectiveFilters(filters []models.Filter, includeDeleted bool) []models.Filter {
	if includeDeleted {
		return filters
	}
	out := make([]models.Filter, len(filters), len(filters)+1)
	copy(out, filters)
	return append(out, models.Filter{Field: "deleted", Operator: "eq", Operand: "0"})
}
