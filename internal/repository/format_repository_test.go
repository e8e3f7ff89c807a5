package repository

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/childlang-lab/cdi-api/internal/models"
)

type mockFormatFiles struct {
	bodies  map[string][]byte
	saved   map[string][]byte
	deleted []string
}

func newMockFormatFiles() *mockFormatFiles {
	return &mockFormatFiles{
		bodies: make(map[string][]byte),
		saved:  make(map[string][]byte),
	}
}

func (m *mockFormatFiles) ReadFile(filename string) ([]byte, error) {
	body, ok := m.bodies[filename]
	if !ok {
		return nil, fmt.Errorf("no such file %s", filename)
	}
	return body, nil
}

func (m *mockFormatFiles) Save(filename string, data []byte) (string, error) {
	m.saved[filename] = data
	m.bodies[filename] = data
	return filename, nil
}

func (m *mockFormatFiles) Delete(filename string) error {
	m.deleted = append(m.deleted, filename)
	delete(m.bodies, filename)
	return nil
}

func newFormatRepoMock(t *testing.T) (*FormatRepository, sqlmock.Sqlmock, *mockFormatFiles, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	files := newMockFormatFiles()
	repo := NewFormatRepository(sqlx.NewDb(db, "sqlmock"), files)
	return repo, mock, files, func() { db.Close() }
}

const formatBodyYAML = `categories:
  - name: animals
    words: [cat, dog]
options:
  - name: "no"
    value: 0
  - name: "yes"
    value: 1
count_as_spoken: [1]
percentiles:
  male: testtable
  female: testtable
`

func TestFormatRepositoryLoadCDIFormat(t *testing.T) {
	repo, mock, files, cleanup := newFormatRepoMock(t)
	defer cleanup()

	files.bodies["testcdi.yaml"] = []byte(formatBodyYAML)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT safe_name, human_name, filename FROM cdi_formats WHERE safe_name = $1")).
		WithArgs("testcdi").
		WillReturnRows(sqlmock.NewRows([]string{"safe_name", "human_name", "filename"}).
			AddRow("testcdi", "Test CDI", "testcdi.yaml"))

	format, err := repo.LoadCDIFormat(context.Background(), "testcdi")
	require.NoError(t, err)
	require.NotNil(t, format)
	assert.Equal(t, "Test CDI", format.HumanName)
	assert.Equal(t, []string{"cat", "dog"}, format.Words())
	assert.Equal(t, 2, format.MaxWords())
	assert.Equal(t, "testtable", format.Details.Percentiles.Male)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormatRepositoryLoadCDIFormatUnknownReturnsNil(t *testing.T) {
	repo, mock, _, cleanup := newFormatRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT safe_name, human_name, filename FROM cdi_formats WHERE safe_name = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"safe_name", "human_name", "filename"}))

	format, err := repo.LoadCDIFormat(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, format)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormatRepositorySaveCDIFormatUpserts(t *testing.T) {
	repo, mock, files, cleanup := newFormatRepoMock(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO cdi_formats").
		WithArgs("testcdi", "Test CDI", "testcdi.yaml").
		WillReturnResult(sqlmock.NewResult(0, 1))

	format := &models.CDIFormat{
		CDIFormatMetadata: models.CDIFormatMetadata{
			SafeName:  "testcdi",
			HumanName: "Test CDI",
			Filename:  "testcdi.yaml",
		},
		Details: models.CDIFormatDetails{
			Categories: []models.WordCategory{{Name: "animals", Words: []string{"cat"}}},
		},
	}
	require.NoError(t, repo.SaveCDIFormat(context.Background(), format))
	assert.Contains(t, files.saved, "testcdi.yaml")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormatRepositoryDeleteCDIFormatRemovesBody(t *testing.T) {
	repo, mock, files, cleanup := newFormatRepoMock(t)
	defer cleanup()

	files.bodies["testcdi.yaml"] = []byte(formatBodyYAML)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT safe_name, human_name, filename FROM cdi_formats WHERE safe_name = $1")).
		WithArgs("testcdi").
		WillReturnRows(sqlmock.NewRows([]string{"safe_name", "human_name", "filename"}).
			AddRow("testcdi", "Test CDI", "testcdi.yaml"))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM cdi_formats WHERE safe_name = $1")).
		WithArgs("testcdi").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteCDIFormat(context.Background(), "testcdi"))
	assert.Equal(t, []string{"testcdi.yaml"}, files.deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormatRepositoryLoadPercentileTable(t *testing.T) {
	repo, mock, files, cleanup := newFormatRepoMock(t)
	defer cleanup()

	files.bodies["table.csv"] = []byte("month,16,17\n95,3,3\n50,2,2\n")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT safe_name, human_name, filename FROM percentile_tables WHERE safe_name = $1")).
		WithArgs("testtable").
		WillReturnRows(sqlmock.NewRows([]string{"safe_name", "human_name", "filename"}).
			AddRow("testtable", "Test Table", "table.csv"))

	table, err := repo.LoadPercentileTable(context.Background(), "testtable")
	require.NoError(t, err)
	require.NotNil(t, table)
	require.Len(t, table.Entries, 3)
	// The corner label cell parses as zero.
	assert.Equal(t, 0.0, table.Entries[0][0])
	assert.Equal(t, 16.0, table.Entries[0][1])
	assert.Equal(t, 95.0, table.Entries[1][0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFormatRepositorySavePercentileTableValidatesBody(t *testing.T) {
	repo, _, files, cleanup := newFormatRepoMock(t)
	defer cleanup()

	table := &models.PercentileTable{
		PercentileTableMetadata: models.PercentileTableMetadata{
			SafeName: "testtable", HumanName: "Test Table", Filename: "table.csv",
		},
	}
	err := repo.SavePercentileTable(context.Background(), table, []byte("onlyonerow\n"))
	assert.Error(t, err)
	assert.NotContains(t, files.saved, "table.csv")
}

func TestFormatRepositoryLoadPresentationFormat(t *testing.T) {
	repo, mock, files, cleanup := newFormatRepoMock(t)
	defer cleanup()

	files.bodies["standard.yaml"] = []byte("male: male\nexplicit_true: \"true\"\n")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT safe_name, human_name, filename FROM presentation_formats WHERE safe_name = $1")).
		WithArgs("standard").
		WillReturnRows(sqlmock.NewRows([]string{"safe_name", "human_name", "filename"}).
			AddRow("standard", "Standard", "standard.yaml"))

	format, err := repo.LoadPresentationFormat(context.Background(), "standard")
	require.NoError(t, err)
	require.NotNil(t, format)
	assert.Equal(t, "male", format.Details["male"])
	assert.Equal(t, "true", format.Details["explicit_true"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
