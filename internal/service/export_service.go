package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/childlang-lab/cdi-api/internal/models"
	"github.com/childlang-lab/cdi-api/internal/repository"
	appErrors "github.com/childlang-lab/cdi-api/pkg/errors"
	"github.com/childlang-lab/cdi-api/pkg/jobs"
	"github.com/childlang-lab/cdi-api/pkg/storage"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type snapshotSearcher interface {
	Search(ctx context.Context, filters []models.Filter, includeDeleted bool) ([]models.SnapshotMetadata, error)
}

type reportRenderer interface {
	GenerateConsolidatedCSV(ctx context.Context, snapshots []models.SnapshotMetadata, presentationName string) ([]byte, error)
	GenerateArchive(ctx context.Context, snapshots []models.SnapshotMetadata, presentationName string) ([]byte, error)
	GenerateSummaryPDF(ctx context.Context, snapshots []models.SnapshotMetadata, presentationName, title string) ([]byte, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type exportMetrics interface {
	RecordExport(exportType string)
}

// ExportConfig tunes export job behaviour.
type ExportConfig struct {
	APIPrefix       string
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	ExpiresAt time.Time
}

// ExportService owns the asynchronous export lifecycle: it persists job
// rows, dispatches work onto the queue, renders report files via the
// report service, and signs download URLs.
type ExportService struct {
	repo     exportJobStore
	queue    jobDispatcher
	searcher snapshotSearcher
	renderer reportRenderer
	storage  exportFileStorage
	signer   *storage.SignedURLSigner
	metrics  exportMetrics
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(repo exportJobStore, queue jobDispatcher, searcher snapshotSearcher, renderer reportRenderer, files exportFileStorage, signer *storage.SignedURLSigner, metrics exportMetrics, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		repo:     repo,
		queue:    queue,
		searcher: searcher,
		renderer: renderer,
		storage:  files,
		signer:   signer,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// SetQueue wires the dispatcher after construction. The queue handler
// needs the service, so the two are linked in two steps at startup.
func (s *ExportService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// CreateJob persists a new export job and enqueues its processing.
func (s *ExportService) CreateJob(ctx context.Context, exportType models.ExportType, params models.ExportJobParams, actorID string) (*models.ExportJob, error) {
	if err := validateExportRequest(exportType, params.Format); err != nil {
		return nil, err
	}

	job := &models.ExportJob{
		Type:      exportType,
		Params:    params,
		Status:    models.ExportStatusQueued,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
		s.markFailed(ctx, job.ID, "failed to enqueue job")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return job, nil
}

func validateExportRequest(exportType models.ExportType, format models.ExportFormat) error {
	switch exportType {
	case models.ExportTypeConsolidated:
		if format != models.ExportFormatCSV {
			return appErrors.Clone(appErrors.ErrValidation, "consolidated exports render as csv")
		}
	case models.ExportTypeArchive:
		if format != models.ExportFormatZip {
			return appErrors.Clone(appErrors.ErrValidation, "archive exports render as zip")
		}
	case models.ExportTypeSummary:
		if format != models.ExportFormatPDF {
			return appErrors.Clone(appErrors.ErrValidation, "summary exports render as pdf")
		}
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export type %s", exportType))
	}
	return nil
}

// GetStatus exposes job metadata to clients.
func (s *ExportService) GetStatus(ctx context.Context, id string) (*models.ExportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return job, nil
}

// ProcessJob renders the export named by the queue job and stores the
// result. It is the queue handler.
func (s *ExportService) ProcessJob(ctx context.Context, queued jobs.Job) error {
	job, err := s.repo.GetByID(ctx, queued.ID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", queued.ID, err)
	}

	processing := models.ExportStatusProcessing
	progress := 10
	_ = s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &processing, Progress: &progress})

	snapshots, err := s.searcher.Search(ctx, job.Params.Filters, job.Params.IncludeDeleted)
	if err != nil {
		s.markFailed(ctx, job.ID, err.Error())
		return err
	}

	var payload []byte
	switch job.Type {
	case models.ExportTypeConsolidated:
		payload, err = s.renderer.GenerateConsolidatedCSV(ctx, snapshots, job.Params.PresentationFormat)
	case models.ExportTypeArchive:
		payload, err = s.renderer.GenerateArchive(ctx, snapshots, job.Params.PresentationFormat)
	case models.ExportTypeSummary:
		payload, err = s.renderer.GenerateSummaryPDF(ctx, snapshots, job.Params.PresentationFormat, job.Params.Title)
	default:
		err = fmt.Errorf("unsupported export type %s", job.Type)
	}
	if err != nil {
		s.markFailed(ctx, job.ID, err.Error())
		return err
	}

	filename := buildExportFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.markFailed(ctx, job.ID, err.Error())
		return err
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.markFailed(ctx, job.ID, err.Error())
		return err
	}
	resultURL := fmt.Sprintf("%s/exports/download/%s", strings.TrimRight(s.cfg.APIPrefix, "/"), token)

	finished := models.ExportStatusFinished
	done := 100
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:     &finished,
		Progress:   &done,
		ResultURL:  &resultURL,
		FinishedAt: &now,
	}); err != nil {
		return fmt.Errorf("finalize export job %s: %w", job.ID, err)
	}

	if s.metrics != nil {
		s.metrics.RecordExport(string(job.Type))
	}
	s.logger.Info("export job finished",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.Int("snapshots", len(snapshots)))
	return nil
}

// ResolveDownload validates a token and opens the stored export file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	return &ExportDownload{
		File:      file,
		Filename:  relPath[strings.LastIndex(relPath, "/")+1:],
		Format:    job.Params.Format,
		ExpiresAt: expiresAt,
	}, nil
}

// RecoverPendingJobs replays queued jobs after process restart.
func (s *ExportService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to recover queued export jobs", zap.Error(err))
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(job.Type)}); err != nil {
			s.logger.Warn("failed to requeue pending export job",
				zap.String("job_id", job.ID), zap.Error(err))
		}
	}
}

// StartCleanup boots a goroutine that purges expired export files.
func (s *ExportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deleted, err := s.storage.CleanupOlderThan(s.cfg.ResultTTL)
				if err != nil {
					s.logger.Warn("export cleanup failed", zap.Error(err))
					continue
				}
				if len(deleted) > 0 {
					s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
				}
			}
		}
	}()
}

func (s *ExportService) markFailed(ctx context.Context, jobID, message string) {
	failed := models.ExportStatusFailed
	progress := 100
	now := time.Now().UTC()
	_ = s.repo.Update(ctx, jobID, repository.UpdateExportJobParams{
		Status:       &failed,
		Progress:     &progress,
		ErrorMessage: &message,
		FinishedAt:   &now,
	})
}

func buildExportFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s.%s", job.Type, job.ID[:8], timestamp, job.Params.Format)
}
