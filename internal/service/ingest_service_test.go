package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/childlang-lab/cdi-api/internal/models"
)

type mockChecklistSource struct {
	format *models.CDIFormat
	table  *models.PercentileTable
}

func (m *mockChecklistSource) StrictLoadFormat(ctx context.Context, safeName string) (*models.CDIFormat, error) {
	if m.format == nil || safeName != m.format.SafeName {
		return nil, fmt.Errorf("cdi format %s not found", safeName)
	}
	return m.format, nil
}

func (m *mockChecklistSource) LoadFormat(ctx context.Context, safeName string) (*models.CDIFormat, error) {
	return m.format, nil
}

func (m *mockChecklistSource) PercentileTableForGender(ctx context.Context, safeName string, gender int) (*models.PercentileTable, error) {
	return m.table, nil
}

func (m *mockChecklistSource) MaxWords(ctx context.Context, safeName string) (int, error) {
	return m.format.MaxWords(), nil
}

type mockIngestStore struct {
	inserted      []models.SnapshotRecord
	priorSessions int
	countCalls    int
}

func (m *mockIngestStore) InsertBatch(ctx context.Context, records []models.SnapshotRecord) error {
	m.inserted = append(m.inserted, records...)
	return nil
}

func (m *mockIngestStore) CountSessions(ctx context.Context, study, studyID string) (int, error) {
	m.countCalls++
	return m.priorSessions, nil
}

func testChecklistFixture() *mockChecklistSource {
	format := &models.CDIFormat{
		CDIFormatMetadata: models.CDIFormatMetadata{SafeName: "testcdi", HumanName: "Test CDI"},
		Details: models.CDIFormatDetails{
			Categories: []models.WordCategory{
				{Name: "animals", Words: []string{"cat", "dog"}},
				{Name: "toys", Words: []string{"ball", "mama"}},
			},
			Options: []models.WordOption{
				{Name: "no", Value: 0},
				{Name: "yes", Value: 1},
			},
			CountAsSpoken: []int{1},
		},
	}
	table := &models.PercentileTable{
		PercentileTableMetadata: models.PercentileTableMetadata{SafeName: "testtable"},
		Entries: [][]float64{
			{0, 16, 17, 18},
			{95, 3, 3, 3},
			{50, 2, 2, 2},
			{10, 1, 1, 1},
		},
	}
	return &mockChecklistSource{format: format, table: table}
}

// uploadRows is the row-label sequence with one data column per child.
func uploadRows(columns ...[]string) string {
	labels := []string{
		"Child ID", "Study ID", "Study", "Gender", "Age", "Birthday",
		"Session Date", "Session Num", "Total Num Sessions", "Words Spoken",
		"Items Excluded", "Percentile", "Extra Categories", "Revision",
		"Languages", "Num Languages", "CDI Type", "Hard of Hearing", "Deleted",
		"cat", "dog", "ball", "mama",
	}
	var sb strings.Builder
	for rowIdx, label := range labels {
		cells := []string{label}
		for _, column := range columns {
			cells = append(cells, column[rowIdx])
		}
		sb.WriteString(strings.Join(cells, ","))
		sb.WriteString("\n")
	}
	return sb.String()
}

func cleanUploadColumn() []string {
	return []string{
		"C1", "S1", "wordspurt", "f", "", "2014/01/01",
		"2015/05/05", "", "2", "2",
		"", "", "", "1",
		"english", "1", "testcdi", "n", "n",
		"1", "1", "0", "0",
	}
}

func TestIngestAcceptsCleanUploadAndFillsDeferredFields(t *testing.T) {
	formats := testChecklistFixture()
	store := &mockIngestStore{priorSessions: 1}
	svc := NewIngestService(formats, store, nil)

	result, err := svc.Ingest(context.Background(), strings.NewReader(uploadRows(cleanUploadColumn())))
	require.NoError(t, err)
	require.False(t, result.HadError, result.ErrorMessage)
	require.Len(t, store.inserted, 1)

	meta := store.inserted[0].Meta
	assert.Equal(t, "C1", meta.ChildID)
	assert.Equal(t, "S1", meta.StudyID)
	assert.Equal(t, "wordspurt", meta.Study)
	assert.Equal(t, models.Female, meta.Gender)
	assert.Equal(t, "2014/01/01", meta.Birthday)
	assert.Equal(t, "2015/05/05", meta.SessionDate)
	assert.Equal(t, 2, meta.WordsSpoken)
	assert.Equal(t, models.ExplicitFalse, meta.HardOfHearing)
	assert.Equal(t, models.ExplicitFalse, meta.Deleted)
	assert.Equal(t, "english", meta.Languages)
	assert.Equal(t, 1, meta.NumLanguages)

	// Deferred age comes from the birthday/session span in 30.42-day months.
	assert.InDelta(t, 16.07, meta.Age, 0.05)
	// Deferred session number is one past the prior count for the pair.
	assert.Equal(t, 2, meta.SessionNum)
	assert.Equal(t, 1, store.countCalls)
	// Deferred percentile is recomputed from the lookup table.
	assert.InDelta(t, 50, meta.Percentile, 0.001)

	contents := store.inserted[0].Contents
	require.Len(t, contents, 4)
	assert.Equal(t, "cat", contents[0].Word)
	assert.Equal(t, 1, contents[0].Value)
	assert.Equal(t, "mama", contents[3].Word)
	assert.Equal(t, 0, contents[3].Value)
}

func TestIngestRejectsWrongWordsSpoken(t *testing.T) {
	formats := testChecklistFixture()
	store := &mockIngestStore{}
	svc := NewIngestService(formats, store, nil)

	column := cleanUploadColumn()
	column[9] = "3"

	result, err := svc.Ingest(context.Background(), strings.NewReader(uploadRows(column)))
	require.NoError(t, err)
	assert.True(t, result.HadError)
	assert.Equal(t, "Incorrect num words on column 1 (given 3 but found 2).", result.ErrorMessage)
	assert.Empty(t, store.inserted)
}

func TestIngestRejectsUnknownCDIType(t *testing.T) {
	formats := testChecklistFixture()
	store := &mockIngestStore{}
	svc := NewIngestService(formats, store, nil)

	column := cleanUploadColumn()
	column[16] = "nosuchcdi"

	result, err := svc.Ingest(context.Background(), strings.NewReader(uploadRows(column)))
	require.NoError(t, err)
	assert.True(t, result.HadError)
	assert.Contains(t, result.ErrorMessage, "unknown CDI type")
	assert.Empty(t, store.inserted)
}

func TestIngestRejectsUnknownWordValue(t *testing.T) {
	formats := testChecklistFixture()
	store := &mockIngestStore{}
	svc := NewIngestService(formats, store, nil)

	column := cleanUploadColumn()
	column[19] = "7"

	result, err := svc.Ingest(context.Background(), strings.NewReader(uploadRows(column)))
	require.NoError(t, err)
	assert.True(t, result.HadError)
	assert.Contains(t, result.ErrorMessage, "Unexpected value (7) for word cat")
	assert.Empty(t, store.inserted)
}

func TestIngestRejectsMisorderedHeader(t *testing.T) {
	formats := testChecklistFixture()
	store := &mockIngestStore{}
	svc := NewIngestService(formats, store, nil)

	upload := uploadRows(cleanUploadColumn())
	upload = strings.Replace(upload, "Study ID", "Study Number", 1)

	result, err := svc.Ingest(context.Background(), strings.NewReader(upload))
	require.NoError(t, err)
	assert.True(t, result.HadError)
	assert.Contains(t, result.ErrorMessage, "Expected header column value study id")
	assert.Empty(t, store.inserted)
}

func TestIngestRejectsMismatchedAge(t *testing.T) {
	formats := testChecklistFixture()
	store := &mockIngestStore{}
	svc := NewIngestService(formats, store, nil)

	column := cleanUploadColumn()
	column[4] = "20.5"

	result, err := svc.Ingest(context.Background(), strings.NewReader(uploadRows(column)))
	require.NoError(t, err)
	assert.True(t, result.HadError)
	assert.Contains(t, result.ErrorMessage, "Incorrect age on column 1")
	assert.Empty(t, store.inserted)
}

func TestIngestAcceptsAgeWithinTolerance(t *testing.T) {
	formats := testChecklistFixture()
	store := &mockIngestStore{priorSessions: 0}
	svc := NewIngestService(formats, store, nil)

	column := cleanUploadColumn()
	column[4] = "16.5"

	result, err := svc.Ingest(context.Background(), strings.NewReader(uploadRows(column)))
	require.NoError(t, err)
	require.False(t, result.HadError, result.ErrorMessage)
	require.Len(t, store.inserted, 1)
	assert.InDelta(t, 16.5, store.inserted[0].Meta.Age, 0.001)
}

func TestIngestProcessesMultipleColumns(t *testing.T) {
	formats := testChecklistFixture()
	store := &mockIngestStore{priorSessions: 0}
	svc := NewIngestService(formats, store, nil)

	second := cleanUploadColumn()
	second[0] = "C2"
	second[1] = "S2"

	result, err := svc.Ingest(context.Background(), strings.NewReader(uploadRows(cleanUploadColumn(), second)))
	require.NoError(t, err)
	require.False(t, result.HadError, result.ErrorMessage)
	require.Len(t, store.inserted, 2)
	assert.Equal(t, "C1", store.inserted[0].Meta.ChildID)
	assert.Equal(t, "C2", store.inserted[1].Meta.ChildID)
}

func TestIngestReportsErrorColumnByDataPosition(t *testing.T) {
	formats := testChecklistFixture()
	store := &mockIngestStore{}
	svc := NewIngestService(formats, store, nil)

	second := cleanUploadColumn()
	second[9] = "3"

	result, err := svc.Ingest(context.Background(), strings.NewReader(uploadRows(cleanUploadColumn(), second)))
	require.NoError(t, err)
	assert.True(t, result.HadError)
	assert.Equal(t, "Incorrect num words on column 2 (given 3 but found 2).", result.ErrorMessage)
	assert.Empty(t, store.inserted)
}

func TestParseCSVDoesNotPersist(t *testing.T) {
	formats := testChecklistFixture()
	store := &mockIngestStore{}
	svc := NewIngestService(formats, store, nil)

	result, err := svc.ParseCSV(context.Background(), strings.NewReader(uploadRows(cleanUploadColumn())))
	require.NoError(t, err)
	assert.False(t, result.HadError, result.ErrorMessage)
	assert.Len(t, result.Records, 1)
	assert.Empty(t, store.inserted)
}

func TestMonthsBetweenUsesNormalizedMonths(t *testing.T) {
	months, err := monthsBetween("2014/01/01", "2014/01/31")
	require.NoError(t, err)
	assert.InDelta(t, 30.0/30.42, months, 0.0001)
}

func TestParseIntStrictRejectsLeadingZeros(t *testing.T) {
	_, ok := parseIntStrict("042")
	assert.False(t, ok)

	value, ok := parseIntStrict("0")
	assert.True(t, ok)
	assert.Equal(t, 0, value)

	value, ok = parseIntStrict("42")
	assert.True(t, ok)
	assert.Equal(t, 42, value)
}
