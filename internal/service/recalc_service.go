package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/childlang-lab/cdi-api/internal/models"
)

type recalcStore interface {
	LoadContents(ctx context.Context, snapshotID int64) ([]models.SnapshotContent, error)
	Update(ctx context.Context, meta *models.SnapshotMetadata) error
	ListByChildID(ctx context.Context, childID string) ([]models.SnapshotMetadata, error)
}

type recalcFormats interface {
	LoadFormat(ctx context.Context, safeName string) (*models.CDIFormat, error)
	PercentileTableForGender(ctx context.Context, safeName string, gender int) (*models.PercentileTable, error)
	MaxWords(ctx context.Context, safeName string) (int, error)
}

// ChildMetadataPatch updates shared participant metadata across every
// snapshot carrying the same global child id. Nil pointer fields are left
// untouched.
type ChildMetadataPatch struct {
	ChildID       string   `json:"child_id" binding:"required"`
	Gender        *int     `json:"gender,omitempty"`
	Birthday      *string  `json:"birthday,omitempty"`
	HardOfHearing *int     `json:"hard_of_hearing,omitempty"`
	Languages     []string `json:"languages,omitempty"`
}

// RecalcService recomputes derived snapshot fields after metadata edits.
// Snapshots that fail to recompute are logged and skipped so one bad row
// never blocks the rest of a batch.
type RecalcService struct {
	snapshots recalcStore
	formats   recalcFormats
	logger    *zap.Logger
}

// NewRecalcService constructs a RecalcService.
func NewRecalcService(snapshots recalcStore, formats recalcFormats, logger *zap.Logger) *RecalcService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecalcService{snapshots: snapshots, formats: formats, logger: logger}
}

// RecalculateSnapshots recomputes words_spoken, age and percentile for
// each snapshot and persists the updated rows one by one. It returns the
// snapshots that were successfully updated.
func (s *RecalcService) RecalculateSnapshots(ctx context.Context, snapshots []models.SnapshotMetadata) []models.SnapshotMetadata {
	updated := make([]models.SnapshotMetadata, 0, len(snapshots))
	for i := range snapshots {
		snapshot := snapshots[i]
		if err := s.recalculateOne(ctx, &snapshot); err != nil {
			s.logger.Warn("snapshot recalculation skipped",
				zap.Int64("snapshot_id", snapshot.DatabaseID),
				zap.Error(err))
			continue
		}
		if err := s.snapshots.Update(ctx, &snapshot); err != nil {
			s.logger.Warn("snapshot update skipped",
				zap.Int64("snapshot_id", snapshot.DatabaseID),
				zap.Error(err))
			continue
		}
		updated = append(updated, snapshot)
	}
	return updated
}

func (s *RecalcService) recalculateOne(ctx context.Context, snapshot *models.SnapshotMetadata) error {
	format, err := s.formats.LoadFormat(ctx, snapshot.CDIType)
	if err != nil {
		return fmt.Errorf("resolve format: %w", err)
	}

	contents, err := s.snapshots.LoadContents(ctx, snapshot.DatabaseID)
	if err != nil {
		return fmt.Errorf("load contents: %w", err)
	}

	spoken := format.CountAsSpokenSet()
	wordsSpoken := 0
	for _, content := range contents {
		if _, ok := spoken[content.Value]; ok {
			wordsSpoken++
		}
	}
	snapshot.WordsSpoken = wordsSpoken

	age, err := monthsBetween(snapshot.Birthday, snapshot.SessionDate)
	if err != nil {
		return fmt.Errorf("recompute age: %w", err)
	}
	snapshot.Age = age

	table, err := s.formats.PercentileTableForGender(ctx, snapshot.CDIType, snapshot.Gender)
	if err != nil {
		return fmt.Errorf("resolve percentile table: %w", err)
	}
	maxWords, err := s.formats.MaxWords(ctx, snapshot.CDIType)
	if err != nil {
		return fmt.Errorf("resolve max words: %w", err)
	}
	percentile, err := FindPercentile(table.Entries, wordsSpoken, age, maxWords)
	if err != nil {
		return fmt.Errorf("recompute percentile: %w", err)
	}
	snapshot.Percentile = percentile
	return nil
}

// ApplyChildPatch rewrites shared participant metadata for every snapshot
// with the given child id, then recomputes the derived fields. It returns
// the snapshots that were successfully updated.
func (s *RecalcService) ApplyChildPatch(ctx context.Context, patch ChildMetadataPatch) ([]models.SnapshotMetadata, error) {
	snapshots, err := s.snapshots.ListByChildID(ctx, patch.ChildID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots for patch: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, nil
	}

	for i := range snapshots {
		if patch.Gender != nil {
			snapshots[i].Gender = *patch.Gender
		}
		if patch.Birthday != nil {
			snapshots[i].Birthday = *patch.Birthday
		}
		if patch.HardOfHearing != nil {
			snapshots[i].HardOfHearing = *patch.HardOfHearing
		}
		if patch.Languages != nil {
			snapshots[i].SetLanguages(patch.Languages)
		}
	}

	updated := s.RecalculateSnapshots(ctx, snapshots)
	s.logger.Info("child metadata patch applied",
		zap.String("child_id", patch.ChildID),
		zap.Int("snapshots", len(updated)))
	return updated, nil
}
