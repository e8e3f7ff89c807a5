package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/childlang-lab/cdi-api/internal/models"
	appErrors "github.com/childlang-lab/cdi-api/pkg/errors"
)

type formatRepository interface {
	ListCDIFormats(ctx context.Context) ([]models.CDIFormatMetadata, error)
	LoadCDIFormat(ctx context.Context, safeName string) (*models.CDIFormat, error)
	SaveCDIFormat(ctx context.Context, format *models.CDIFormat) error
	DeleteCDIFormat(ctx context.Context, safeName string) error
	ListPresentationFormats(ctx context.Context) ([]models.PresentationFormatMetadata, error)
	LoadPresentationFormat(ctx context.Context, safeName string) (*models.PresentationFormat, error)
	SavePresentationFormat(ctx context.Context, format *models.PresentationFormat) error
	DeletePresentationFormat(ctx context.Context, safeName string) error
	ListPercentileTables(ctx context.Context) ([]models.PercentileTableMetadata, error)
	LoadPercentileTable(ctx context.Context, safeName string) (*models.PercentileTable, error)
	SavePercentileTable(ctx context.Context, table *models.PercentileTable, body []byte) error
	DeletePercentileTable(ctx context.Context, safeName string) error
}

type formatCacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// FormatService resolves checklist formats, presentation formats and
// percentile tables. Parsed bodies are memoized per process because
// ingest touches the same format once per CSV column.
type FormatService struct {
	repo          formatRepository
	cache         formatCacheInvalidator
	validator     *validator.Validate
	defaultFormat string
	logger        *zap.Logger

	mu          sync.RWMutex
	formats     map[string]*models.CDIFormat
	tables      map[string]*models.PercentileTable
	presentiers map[string]*models.PresentationFormat
}

// NewFormatService constructs a FormatService. defaultFormat names the
// checklist used when a snapshot references an unknown format.
func NewFormatService(repo formatRepository, cache formatCacheInvalidator, validate *validator.Validate, defaultFormat string, logger *zap.Logger) *FormatService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormatService{
		repo:          repo,
		cache:         cache,
		validator:     validate,
		defaultFormat: defaultFormat,
		logger:        logger,
		formats:       make(map[string]*models.CDIFormat),
		tables:        make(map[string]*models.PercentileTable),
		presentiers:   make(map[string]*models.PresentationFormat),
	}
}

// ClearCache drops every memoized body. Tests and format mutations use it
// to force a reload from the repository.
func (s *FormatService) ClearCache() {
	s.mu.Lock()
	s.formats = make(map[string]*models.CDIFormat)
	s.tables = make(map[string]*models.PercentileTable)
	s.presentiers = make(map[string]*models.PresentationFormat)
	s.mu.Unlock()
}

// ListFormats returns metadata for every stored checklist format.
func (s *FormatService) ListFormats(ctx context.Context) ([]models.CDIFormatMetadata, error) {
	return s.repo.ListCDIFormats(ctx)
}

// LoadFormat returns the parsed checklist for safeName, memoized.
// Unknown names fall back to the configured default format; when that is
// also missing the lookup fails.
func (s *FormatService) LoadFormat(ctx context.Context, safeName string) (*models.CDIFormat, error) {
	if safeName == "" {
		safeName = s.defaultFormat
	}

	s.mu.RLock()
	cached, ok := s.formats[safeName]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	format, err := s.repo.LoadCDIFormat(ctx, safeName)
	if err != nil {
		return nil, err
	}
	if format == nil && safeName != s.defaultFormat {
		s.logger.Warn("unknown cdi format, falling back to default",
			zap.String("requested", safeName),
			zap.String("default", s.defaultFormat))
		return s.LoadFormat(ctx, s.defaultFormat)
	}
	if format == nil {
		return nil, fmt.Errorf("cdi format %s: %w", safeName, appErrors.ErrNotFound)
	}

	s.mu.Lock()
	s.formats[safeName] = format
	s.mu.Unlock()
	return format, nil
}

// StrictLoadFormat returns the parsed checklist for safeName without the
// default-format fallback. Callers validating user input use it.
func (s *FormatService) StrictLoadFormat(ctx context.Context, safeName string) (*models.CDIFormat, error) {
	format, err := s.repo.LoadCDIFormat(ctx, safeName)
	if err != nil {
		return nil, err
	}
	if format == nil {
		return nil, fmt.Errorf("cdi format %s: %w", safeName, appErrors.ErrNotFound)
	}
	return format, nil
}

// SaveFormat persists a checklist format and drops stale caches.
func (s *FormatService) SaveFormat(ctx context.Context, format *models.CDIFormat) error {
	if err := s.validator.Struct(format); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := s.repo.SaveCDIFormat(ctx, format); err != nil {
		return err
	}
	s.invalidate(ctx, "formats:*")
	return nil
}

// DeleteFormat removes a checklist format and drops stale caches.
func (s *FormatService) DeleteFormat(ctx context.Context, safeName string) error {
	if err := s.repo.DeleteCDIFormat(ctx, safeName); err != nil {
		return err
	}
	s.invalidate(ctx, "formats:*")
	return nil
}

// MaxWords reports the word count ceiling of a checklist format.
func (s *FormatService) MaxWords(ctx context.Context, safeName string) (int, error) {
	format, err := s.LoadFormat(ctx, safeName)
	if err != nil {
		return 0, err
	}
	return format.MaxWords(), nil
}

// PercentileTableForGender resolves the lookup table a format assigns to a
// gender code. The male table serves codes without a dedicated table.
func (s *FormatService) PercentileTableForGender(ctx context.Context, safeName string, gender int) (*models.PercentileTable, error) {
	format, err := s.LoadFormat(ctx, safeName)
	if err != nil {
		return nil, err
	}

	refs := format.Details.Percentiles
	tableName := refs.Male
	switch gender {
	case models.Female:
		tableName = refs.Female
	case models.OtherGender:
		if refs.Other != "" {
			tableName = refs.Other
		}
	}
	if tableName == "" {
		return nil, fmt.Errorf("format %s names no percentile table for gender %d", safeName, gender)
	}

	return s.loadTable(ctx, tableName)
}

// LoadPercentileTable returns the parsed lookup table for safeName.
func (s *FormatService) LoadPercentileTable(ctx context.Context, safeName string) (*models.PercentileTable, error) {
	return s.loadTable(ctx, safeName)
}

func (s *FormatService) loadTable(ctx context.Context, safeName string) (*models.PercentileTable, error) {
	s.mu.RLock()
	cached, ok := s.tables[safeName]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	table, err := s.repo.LoadPercentileTable(ctx, safeName)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, fmt.Errorf("percentile table %s: %w", safeName, appErrors.ErrNotFound)
	}

	s.mu.Lock()
	s.tables[safeName] = table
	s.mu.Unlock()
	return table, nil
}

// ListPercentileTables returns metadata for every stored table.
func (s *FormatService) ListPercentileTables(ctx context.Context) ([]models.PercentileTableMetadata, error) {
	return s.repo.ListPercentileTables(ctx)
}

// SavePercentileTable persists a table body and drops stale caches.
func (s *FormatService) SavePercentileTable(ctx context.Context, table *models.PercentileTable, body []byte) error {
	if err := s.validator.Struct(&table.PercentileTableMetadata); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := s.repo.SavePercentileTable(ctx, table, body); err != nil {
		return err
	}
	s.invalidate(ctx, "formats:*")
	return nil
}

// DeletePercentileTable removes a table and drops stale caches.
func (s *FormatService) DeletePercentileTable(ctx context.Context, safeName string) error {
	if err := s.repo.DeletePercentileTable(ctx, safeName); err != nil {
		return err
	}
	s.invalidate(ctx, "formats:*")
	return nil
}

// ListPresentationFormats returns metadata for stored presentation formats.
func (s *FormatService) ListPresentationFormats(ctx context.Context) ([]models.PresentationFormatMetadata, error) {
	return s.repo.ListPresentationFormats(ctx)
}

// LoadPresentationFormat returns the parsed mapping, memoized. An empty
// safe name yields (nil, nil): exports then render raw sentinel codes.
func (s *FormatService) LoadPresentationFormat(ctx context.Context, safeName string) (*models.PresentationFormat, error) {
	if safeName == "" {
		return nil, nil
	}

	s.mu.RLock()
	cached, ok := s.presentiers[safeName]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	format, err := s.repo.LoadPresentationFormat(ctx, safeName)
	if err != nil {
		return nil, err
	}
	if format == nil {
		return nil, fmt.Errorf("presentation format %s: %w", safeName, appErrors.ErrNotFound)
	}

	s.mu.Lock()
	s.presentiers[safeName] = format
	s.mu.Unlock()
	return format, nil
}

// SavePresentationFormat persists a mapping and drops stale caches.
func (s *FormatService) SavePresentationFormat(ctx context.Context, format *models.PresentationFormat) error {
	if err := s.validator.Struct(&format.PresentationFormatMetadata); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := s.repo.SavePresentationFormat(ctx, format); err != nil {
		return err
	}
	s.invalidate(ctx, "formats:*")
	return nil
}

// DeletePresentationFormat removes a mapping and drops stale caches.
func (s *FormatService) DeletePresentationFormat(ctx context.Context, safeName string) error {
	if err := s.repo.DeletePresentationFormat(ctx, safeName); err != nil {
		return err
	}
	s.invalidate(ctx, "formats:*")
	return nil
}

func (s *FormatService) invalidate(ctx context.Context, pattern string) {
	s.ClearCache()
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, pattern); err != nil {
		s.logger.Warn("format cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
	}
}
