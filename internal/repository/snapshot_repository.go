package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/childlang-lab/cdi-api/internal/models"
	"github.com/childlang-lab/cdi-api/internal/query"
)

const insertSnapshotSQL = `INSERT INTO snapshots (
        child_id, study_id, study, gender, age, birthday, session_date,
        session_num, total_num_sessions, words_spoken, items_excluded,
        percentile, extra_categories, revision, languages, num_languages,
        cdi_type, hard_of_hearing, deleted)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
    RETURNING database_id`

const updateSnapshotSQL = `UPDATE snapshots SET
        child_id = :child_id, study_id = :study_id, study = :study,
        gender = :gender, age = :age, birthday = :birthday,
        session_date = :session_date, session_num = :session_num,
        total_num_sessions = :total_num_sessions, words_spoken = :words_spoken,
        items_excluded = :items_excluded, percentile = :percentile,
        extra_categories = :extra_categories, revision = :revision,
        languages = :languages, num_languages = :num_languages,
        cdi_type = :cdi_type, hard_of_hearing = :hard_of_hearing,
        deleted = :deleted
    WHERE database_id = :database_id`

const insertContentSQL = `INSERT INTO snapshot_content (snapshot_id, word, value, revision)
    VALUES ($1, $2, $3, $4)`

// SnapshotRepository executes compiled filter queries and persists
// snapshots with their word-level contents.
type SnapshotRepository struct {
	db      *sqlx.DB
	builder *query.Builder
	logger  *zap.Logger
}

// NewSnapshotRepository constructs a SnapshotRepository.
func NewSnapshotRepository(db *sqlx.DB, logger *zap.Logger) *SnapshotRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotRepository{db: db, builder: query.NewBuilder(logger), logger: logger}
}

// RunSearch compiles the filters against the snapshots table and returns
// the matching metadata rows.
func (r *SnapshotRepository) RunSearch(ctx context.Context, filters []models.Filter) ([]models.SnapshotMetadata, error) {
	info := r.builder.Build(filters, models.SnapshotsTable, query.SearchTemplate)
	params, err := info.Params()
	if err != nil {
		return nil, fmt.Errorf("interpret search filters: %w", err)
	}

	var out []models.SnapshotMetadata
	statement := r.db.Rebind(info.Statement)
	if err := r.db.SelectContext(ctx, &out, statement, params...); err != nil {
		return nil, fmt.Errorf("run snapshot search: %w", err)
	}
	return out, nil
}

// RunSoftDelete marks matching snapshots deleted and returns the rows as
// they were before the flag flipped.
func (r *SnapshotRepository) RunSoftDelete(ctx context.Context, filters []models.Filter) ([]models.SnapshotMetadata, error) {
	return r.runFlagUpdate(ctx, filters, query.SoftDeleteTemplate, "soft delete")
}

// RunRestore clears the deleted flag on matching snapshots and returns the
// rows as they were before the flag flipped.
func (r *SnapshotRepository) RunRestore(ctx context.Context, filters []models.Filter) ([]models.SnapshotMetadata, error) {
	return r.runFlagUpdate(ctx, filters, query.RestoreTemplate, "restore")
}

func (r *SnapshotRepository) runFlagUpdate(ctx context.Context, filters []models.Filter, template, action string) ([]models.SnapshotMetadata, error) {
	matched, err := r.RunSearch(ctx, filters)
	if err != nil {
		return nil, err
	}

	info := r.builder.Build(filters, models.SnapshotsTable, template)
	params, err := info.Params()
	if err != nil {
		return nil, fmt.Errorf("interpret %s filters: %w", action, err)
	}

	statement := r.db.Rebind(info.Statement)
	if _, err := r.db.ExecContext(ctx, statement, params...); err != nil {
		return nil, fmt.Errorf("run snapshot %s: %w", action, err)
	}
	return matched, nil
}

// RunHardDelete removes matching snapshots and their contents permanently.
// The matched rows are returned for audit logging.
func (r *SnapshotRepository) RunHardDelete(ctx context.Context, filters []models.Filter) ([]models.SnapshotMetadata, error) {
	matched, err := r.RunSearch(ctx, filters)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return nil, nil
	}

	info := r.builder.Build(filters, models.SnapshotsTable, query.HardDeleteTemplate)
	params, err := info.Params()
	if err != nil {
		return nil, fmt.Errorf("interpret hard delete filters: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin hard delete: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ids := make([]interface{}, len(matched))
	placeholders := make([]string, len(matched))
	for i, snap := range matched {
		ids[i] = snap.DatabaseID
		placeholders[i] = "?"
	}
	contentStmt := r.db.Rebind(fmt.Sprintf(
		"DELETE FROM %s WHERE snapshot_id IN (%s)",
		models.SnapshotContentTable, strings.Join(placeholders, ", ")))
	if _, err := tx.ExecContext(ctx, contentStmt, ids...); err != nil {
		return nil, fmt.Errorf("delete snapshot contents: %w", err)
	}

	statement := r.db.Rebind(info.Statement)
	if _, err := tx.ExecContext(ctx, statement, params...); err != nil {
		return nil, fmt.Errorf("run snapshot hard delete: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit hard delete: %w", err)
	}
	return matched, nil
}

// InsertBatch persists snapshots and their contents in one transaction.
// Either every record lands or none does.
func (r *SnapshotRepository) InsertBatch(ctx context.Context, records []models.SnapshotRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range records {
		meta := &records[i].Meta
		row := tx.QueryRowxContext(ctx, insertSnapshotSQL,
			meta.ChildID, meta.StudyID, meta.Study, meta.Gender, meta.Age,
			meta.Birthday, meta.SessionDate, meta.SessionNum,
			meta.TotalNumSessions, meta.WordsSpoken, meta.ItemsExcluded,
			meta.Percentile, meta.ExtraCategories, meta.Revision,
			meta.Languages, meta.NumLanguages, meta.CDIType,
			meta.HardOfHearing, meta.Deleted)
		if err := row.Scan(&meta.DatabaseID); err != nil {
			return fmt.Errorf("insert snapshot %s/%s: %w", meta.Study, meta.StudyID, err)
		}

		for j := range records[i].Contents {
			content := &records[i].Contents[j]
			content.SnapshotID = meta.DatabaseID
			if _, err := tx.ExecContext(ctx, insertContentSQL,
				content.SnapshotID, content.Word, content.Value, content.Revision); err != nil {
				return fmt.Errorf("insert snapshot content %q: %w", content.Word, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot batch: %w", err)
	}
	return nil
}

// Update overwrites one snapshot's metadata row by database id.
func (r *SnapshotRepository) Update(ctx context.Context, meta *models.SnapshotMetadata) error {
	if _, err := r.db.NamedExecContext(ctx, updateSnapshotSQL, meta); err != nil {
		return fmt.Errorf("update snapshot %d: %w", meta.DatabaseID, err)
	}
	return nil
}

// LoadContents returns the word-level entries for one snapshot.
func (r *SnapshotRepository) LoadContents(ctx context.Context, snapshotID int64) ([]models.SnapshotContent, error) {
	var out []models.SnapshotContent
	const statement = `SELECT snapshot_id, word, value, revision FROM snapshot_content WHERE snapshot_id = $1`
	if err := r.db.SelectContext(ctx, &out, statement, snapshotID); err != nil {
		return nil, fmt.Errorf("load snapshot contents %d: %w", snapshotID, err)
	}
	return out, nil
}

// CountSessions returns how many snapshots exist for a participant within
// a study, deleted rows included.
func (r *SnapshotRepository) CountSessions(ctx context.Context, study, studyID string) (int, error) {
	var count int
	const statement = `SELECT COUNT(*) FROM snapshots WHERE study = $1 AND study_id = $2`
	if err := r.db.GetContext(ctx, &count, statement, study, studyID); err != nil {
		return 0, fmt.Errorf("count sessions %s/%s: %w", study, studyID, err)
	}
	return count, nil
}

// ListByChildID returns every snapshot sharing a global child identifier,
// deleted rows included, for metadata propagation.
func (r *SnapshotRepository) ListByChildID(ctx context.Context, childID string) ([]models.SnapshotMetadata, error) {
	var out []models.SnapshotMetadata
	const statement = `SELECT * FROM snapshots WHERE child_id = $1`
	if err := r.db.SelectContext(ctx, &out, statement, childID); err != nil {
		return nil, fmt.Errorf("list snapshots for child %s: %w", childID, err)
	}
	return out, nil
}

// ListByStudyID returns every snapshot for a participant within one study,
// deleted rows included.
func (r *SnapshotRepository) ListByStudyID(ctx context.Context, study, studyID string) ([]models.SnapshotMetadata, error) {
	var out []models.SnapshotMetadata
	const statement = `SELECT * FROM snapshots WHERE study = $1 AND study_id = $2`
	if err := r.db.SelectContext(ctx, &out, statement, study, studyID); err != nil {
		return nil, fmt.Errorf("list snapshots for %s/%s: %w", study, studyID, err)
	}
	return out, nil
}
