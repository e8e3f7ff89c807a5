package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/childlang-lab/cdi-api/internal/models"
)

var snapshotColumns = []string{
	"database_id", "child_id", "study_id", "study", "gender", "age",
	"birthday", "session_date", "session_num", "total_num_sessions",
	"words_spoken", "items_excluded", "percentile", "extra_categories",
	"revision", "languages", "num_languages", "cdi_type",
	"hard_of_hearing", "deleted",
}

func addSnapshotRow(rows *sqlmock.Rows, dbID int64, studyID string, deleted int) *sqlmock.Rows {
	return rows.AddRow(
		dbID, "C1", studyID, "wordspurt", models.Female, 16.5,
		"2014/01/01", "2015/05/05", 1, 2,
		2, 0, 50.0, 0,
		1, "english", 1, "testcdi",
		models.ExplicitFalse, deleted)
}

func newSnapshotRepoMock(t *testing.T) (*SnapshotRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewSnapshotRepository(sqlxDB, nil), mock, func() { db.Close() }
}

func TestSnapshotRepositoryRunSearch(t *testing.T) {
	repo, mock, cleanup := newSnapshotRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows(snapshotColumns)
	addSnapshotRow(rows, 1, "S1", 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM snapshots WHERE (study = ?)")).
		WithArgs("wordspurt").
		WillReturnRows(rows)

	out, err := repo.RunSearch(context.Background(), []models.Filter{
		{Field: "study", Operator: "eq", Operand: "wordspurt"},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, int64(1), out[0].DatabaseID)
	assert.Equal(t, "S1", out[0].StudyID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryRunSoftDeleteReturnsMatchedRows(t *testing.T) {
	repo, mock, cleanup := newSnapshotRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows(snapshotColumns)
	addSnapshotRow(rows, 1, "S1", 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM snapshots WHERE (child_id = ?)")).
		WithArgs("C1").
		WillReturnRows(rows)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE snapshots SET deleted = 1 WHERE (child_id = ?)")).
		WithArgs("C1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	matched, err := repo.RunSoftDelete(context.Background(), []models.Filter{
		{Field: "child_id", Operator: "eq", Operand: "C1"},
	})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, int64(1), matched[0].DatabaseID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryRunHardDeleteRemovesContentsFirst(t *testing.T) {
	repo, mock, cleanup := newSnapshotRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows(snapshotColumns)
	addSnapshotRow(rows, 7, "S1", 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM snapshots WHERE (child_id = ?)")).
		WithArgs("C1").
		WillReturnRows(rows)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM snapshot_content WHERE snapshot_id IN (?)")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM snapshots WHERE (child_id = ?)")).
		WithArgs("C1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	matched, err := repo.RunHardDelete(context.Background(), []models.Filter{
		{Field: "child_id", Operator: "eq", Operand: "C1"},
	})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryRunHardDeleteNoMatchesSkipsTransaction(t *testing.T) {
	repo, mock, cleanup := newSnapshotRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM snapshots WHERE (child_id = ?)")).
		WithArgs("C9").
		WillReturnRows(sqlmock.NewRows(snapshotColumns))

	matched, err := repo.RunHardDelete(context.Background(), []models.Filter{
		{Field: "child_id", Operator: "eq", Operand: "C9"},
	})
	require.NoError(t, err)
	assert.Empty(t, matched)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryInsertBatch(t *testing.T) {
	repo, mock, cleanup := newSnapshotRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO snapshots").
		WillReturnRows(sqlmock.NewRows([]string{"database_id"}).AddRow(41))
	mock.ExpectExec("INSERT INTO snapshot_content").
		WithArgs(int64(41), "cat", models.ExplicitTrue, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO snapshot_content").
		WithArgs(int64(41), "dog", models.ExplicitFalse, 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	records := []models.SnapshotRecord{{
		Meta: models.SnapshotMetadata{ChildID: "C1", StudyID: "S1", Study: "wordspurt"},
		Contents: []models.SnapshotContent{
			{Word: "cat", Value: models.ExplicitTrue},
			{Word: "dog", Value: models.ExplicitFalse},
		},
	}}

	require.NoError(t, repo.InsertBatch(context.Background(), records))
	assert.Equal(t, int64(41), records[0].Meta.DatabaseID)
	assert.Equal(t, int64(41), records[0].Contents[0].SnapshotID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryCountSessions(t *testing.T) {
	repo, mock, cleanup := newSnapshotRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM snapshots WHERE study = $1 AND study_id = $2")).
		WithArgs("wordspurt", "S1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountSessions(context.Background(), "wordspurt", "S1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryLoadContents(t *testing.T) {
	repo, mock, cleanup := newSnapshotRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"snapshot_id", "word", "value", "revision"}).
		AddRow(int64(5), "cat", models.ExplicitTrue, 0).
		AddRow(int64(5), "dog", models.NoData, 0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT snapshot_id, word, value, revision FROM snapshot_content WHERE snapshot_id = $1")).
		WithArgs(int64(5)).
		WillReturnRows(rows)

	contents, err := repo.LoadContents(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, contents, 2)
	assert.Equal(t, "cat", contents[0].Word)
	assert.Equal(t, models.NoData, contents[1].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}
