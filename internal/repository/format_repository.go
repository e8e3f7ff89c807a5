package repository

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"gopkg.in/yaml.v3"

	"github.com/childlang-lab/cdi-api/internal/models"
)

// FormatFiles abstracts the filesystem holding format definition bodies.
type FormatFiles interface {
	ReadFile(filename string) ([]byte, error)
	Save(filename string, data []byte) (string, error)
	Delete(filename string) error
}

// FormatRepository manages checklist formats, presentation formats and
// percentile tables. Metadata rows live in the database; bodies live on
// disk as YAML (formats) or CSV (percentile tables).
type FormatRepository struct {
	db    *sqlx.DB
	files FormatFiles
}

// NewFormatRepository constructs a FormatRepository.
func NewFormatRepository(db *sqlx.DB, files FormatFiles) *FormatRepository {
	return &FormatRepository{db: db, files: files}
}

// ListCDIFormats returns metadata for every stored checklist format.
func (r *FormatRepository) ListCDIFormats(ctx context.Context) ([]models.CDIFormatMetadata, error) {
	var out []models.CDIFormatMetadata
	const query = `SELECT safe_name, human_name, filename FROM cdi_formats ORDER BY safe_name`
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list cdi formats: %w", err)
	}
	return out, nil
}

// LoadCDIFormat fetches a checklist format by safe name and parses its
// YAML body. Returns (nil, nil) when the format is unknown.
func (r *FormatRepository) LoadCDIFormat(ctx context.Context, safeName string) (*models.CDIFormat, error) {
	var meta models.CDIFormatMetadata
	const query = `SELECT safe_name, human_name, filename FROM cdi_formats WHERE safe_name = $1`
	if err := r.db.GetContext(ctx, &meta, query, safeName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load cdi format %s: %w", safeName, err)
	}

	raw, err := r.files.ReadFile(meta.Filename)
	if err != nil {
		return nil, fmt.Errorf("read cdi format body %s: %w", meta.Filename, err)
	}

	var details models.CDIFormatDetails
	if err := yaml.Unmarshal(raw, &details); err != nil {
		return nil, fmt.Errorf("parse cdi format body %s: %w", meta.Filename, err)
	}

	return &models.CDIFormat{CDIFormatMetadata: meta, Details: details}, nil
}

// SaveCDIFormat writes the format body to disk and upserts its metadata.
func (r *FormatRepository) SaveCDIFormat(ctx context.Context, format *models.CDIFormat) error {
	body, err := yaml.Marshal(format.Details)
	if err != nil {
		return fmt.Errorf("encode cdi format body: %w", err)
	}
	if _, err := r.files.Save(format.Filename, body); err != nil {
		return fmt.Errorf("store cdi format body: %w", err)
	}

	const query = `INSERT INTO cdi_formats (safe_name, human_name, filename)
        VALUES ($1, $2, $3)
        ON CONFLICT (safe_name) DO UPDATE SET human_name = EXCLUDED.human_name, filename = EXCLUDED.filename`
	if _, err := r.db.ExecContext(ctx, query, format.SafeName, format.HumanName, format.Filename); err != nil {
		return fmt.Errorf("save cdi format: %w", err)
	}
	return nil
}

// DeleteCDIFormat removes the metadata row and the on-disk body.
func (r *FormatRepository) DeleteCDIFormat(ctx context.Context, safeName string) error {
	var meta models.CDIFormatMetadata
	const query = `SELECT safe_name, human_name, filename FROM cdi_formats WHERE safe_name = $1`
	if err := r.db.GetContext(ctx, &meta, query, safeName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("load cdi format %s: %w", safeName, err)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM cdi_formats WHERE safe_name = $1`, safeName); err != nil {
		return fmt.Errorf("delete cdi format: %w", err)
	}
	if err := r.files.Delete(meta.Filename); err != nil {
		return fmt.Errorf("delete cdi format body: %w", err)
	}
	return nil
}

// ListPresentationFormats returns metadata for stored presentation formats.
func (r *FormatRepository) ListPresentationFormats(ctx context.Context) ([]models.PresentationFormatMetadata, error) {
	var out []models.PresentationFormatMetadata
	const query = `SELECT safe_name, human_name, filename FROM presentation_formats ORDER BY safe_name`
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list presentation formats: %w", err)
	}
	return out, nil
}

// LoadPresentationFormat fetches a presentation format by safe name.
// Returns (nil, nil) when unknown.
func (r *FormatRepository) LoadPresentationFormat(ctx context.Context, safeName string) (*models.PresentationFormat, error) {
	var meta models.PresentationFormatMetadata
	const query = `SELECT safe_name, human_name, filename FROM presentation_formats WHERE safe_name = $1`
	if err := r.db.GetContext(ctx, &meta, query, safeName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load presentation format %s: %w", safeName, err)
	}

	raw, err := r.files.ReadFile(meta.Filename)
	if err != nil {
		return nil, fmt.Errorf("read presentation format body %s: %w", meta.Filename, err)
	}

	details := map[string]string{}
	if err := yaml.Unmarshal(raw, &details); err != nil {
		return nil, fmt.Errorf("parse presentation format body %s: %w", meta.Filename, err)
	}

	return &models.PresentationFormat{PresentationFormatMetadata: meta, Details: details}, nil
}

// SavePresentationFormat writes the mapping to disk and upserts metadata.
func (r *FormatRepository) SavePresentationFormat(ctx context.Context, format *models.PresentationFormat) error {
	body, err := yaml.Marshal(format.Details)
	if err != nil {
		return fmt.Errorf("encode presentation format body: %w", err)
	}
	if _, err := r.files.Save(format.Filename, body); err != nil {
		return fmt.Errorf("store presentation format body: %w", err)
	}

	const query = `INSERT INTO presentation_formats (safe_name, human_name, filename)
        VALUES ($1, $2, $3)
        ON CONFLICT (safe_name) DO UPDATE SET human_name = EXCLUDED.human_name, filename = EXCLUDED.filename`
	if _, err := r.db.ExecContext(ctx, query, format.SafeName, format.HumanName, format.Filename); err != nil {
		return fmt.Errorf("save presentation format: %w", err)
	}
	return nil
}

// DeletePresentationFormat removes the metadata row and on-disk body.
func (r *FormatRepository) DeletePresentationFormat(ctx context.Context, safeName string) error {
	var meta models.PresentationFormatMetadata
	const query = `SELECT safe_name, human_name, filename FROM presentation_formats WHERE safe_name = $1`
	if err := r.db.GetContext(ctx, &meta, query, safeName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("load presentation format %s: %w", safeName, err)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM presentation_formats WHERE safe_name = $1`, safeName); err != nil {
		return fmt.Errorf("delete presentation format: %w", err)
	}
	if err := r.files.Delete(meta.Filename); err != nil {
		return fmt.Errorf("delete presentation format body: %w", err)
	}
	return nil
}

// ListPercentileTables returns metadata for stored percentile tables.
func (r *FormatRepository) ListPercentileTables(ctx context.Context) ([]models.PercentileTableMetadata, error) {
	var out []models.PercentileTableMetadata
	const query = `SELECT safe_name, human_name, filename FROM percentile_tables ORDER BY safe_name`
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list percentile tables: %w", err)
	}
	return out, nil
}

// LoadPercentileTable fetches a percentile table by safe name and parses
// its CSV body. Returns (nil, nil) when unknown.
func (r *FormatRepository) LoadPercentileTable(ctx context.Context, safeName string) (*models.PercentileTable, error) {
	var meta models.PercentileTableMetadata
	const query = `SELECT safe_name, human_name, filename FROM percentile_tables WHERE safe_name = $1`
	if err := r.db.GetContext(ctx, &meta, query, safeName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load percentile table %s: %w", safeName, err)
	}

	raw, err := r.files.ReadFile(meta.Filename)
	if err != nil {
		return nil, fmt.Errorf("read percentile table body %s: %w", meta.Filename, err)
	}

	entries, err := parsePercentileCSV(raw)
	if err != nil {
		return nil, fmt.Errorf("parse percentile table body %s: %w", meta.Filename, err)
	}

	return &models.PercentileTable{PercentileTableMetadata: meta, Entries: entries}, nil
}

// SavePercentileTable writes the CSV body to disk and upserts metadata.
func (r *FormatRepository) SavePercentileTable(ctx context.Context, table *models.PercentileTable, body []byte) error {
	if _, err := parsePercentileCSV(body); err != nil {
		return fmt.Errorf("validate percentile table body: %w", err)
	}
	if _, err := r.files.Save(table.Filename, body); err != nil {
		return fmt.Errorf("store percentile table body: %w", err)
	}

	const query = `INSERT INTO percentile_tables (safe_name, human_name, filename)
        VALUES ($1, $2, $3)
        ON CONFLICT (safe_name) DO UPDATE SET human_name = EXCLUDED.human_name, filename = EXCLUDED.filename`
	if _, err := r.db.ExecContext(ctx, query, table.SafeName, table.HumanName, table.Filename); err != nil {
		return fmt.Errorf("save percentile table: %w", err)
	}
	return nil
}

// DeletePercentileTable removes the metadata row and on-disk body.
func (r *FormatRepository) DeletePercentileTable(ctx context.Context, safeName string) error {
	var meta models.PercentileTableMetadata
	const query = `SELECT safe_name, human_name, filename FROM percentile_tables WHERE safe_name = $1`
	if err := r.db.GetContext(ctx, &meta, query, safeName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("load percentile table %s: %w", safeName, err)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM percentile_tables WHERE safe_name = $1`, safeName); err != nil {
		return fmt.Errorf("delete percentile table: %w", err)
	}
	if err := r.files.Delete(meta.Filename); err != nil {
		return fmt.Errorf("delete percentile table body: %w", err)
	}
	return nil
}

// parsePercentileCSV reads the two-dimensional lookup body. The corner
// cell and any other non-numeric cell parse as zero; reference tables are
// numeric everywhere that matters.
func parsePercentileCSV(raw []byte) ([][]float64, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("expected header row and at least one rank row, found %d rows", len(rows))
	}

	entries := make([][]float64, len(rows))
	for i, row := range rows {
		entries[i] = make([]float64, len(row))
		for j, cell := range row {
			value, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				value = 0
			}
			entries[i][j] = value
		}
	}
	return entries, nil
}
