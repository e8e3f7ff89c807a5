package service

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/childlang-lab/cdi-api/internal/models"
)

type mockReportStore struct {
	contents map[int64][]models.SnapshotContent
}

func (m *mockReportStore) LoadContents(ctx context.Context, snapshotID int64) ([]models.SnapshotContent, error) {
	return m.contents[snapshotID], nil
}

type mockReportFormats struct {
	format       *models.CDIFormat
	presentation *models.PresentationFormat
}

func (m *mockReportFormats) LoadFormat(ctx context.Context, safeName string) (*models.CDIFormat, error) {
	return m.format, nil
}

func (m *mockReportFormats) LoadPresentationFormat(ctx context.Context, safeName string) (*models.PresentationFormat, error) {
	if safeName == "" {
		return nil, nil
	}
	return m.presentation, nil
}

func reportFixtures() (*mockReportStore, *mockReportFormats) {
	store := &mockReportStore{
		contents: map[int64][]models.SnapshotContent{
			1: {
				{Word: "cat", Value: models.ExplicitTrue},
				{Word: "dog", Value: models.ExplicitFalse},
			},
			2: {
				{Word: "cat", Value: models.ExplicitFalse},
			},
		},
	}
	formats := &mockReportFormats{
		format: &models.CDIFormat{
			CDIFormatMetadata: models.CDIFormatMetadata{SafeName: "testcdi"},
			Details: models.CDIFormatDetails{
				Categories: []models.WordCategory{
					{Name: "animals", Words: []string{"cat", "dog"}},
				},
			},
		},
		presentation: &models.PresentationFormat{
			PresentationFormatMetadata: models.PresentationFormatMetadata{SafeName: "standard"},
			Details: map[string]string{
				"male":           "male",
				"female":         "female",
				"explicit_true":  "true",
				"explicit_false": "false",
				"no_data":        "",
			},
		},
	}
	return store, formats
}

func reportSnapshot(dbID int64, studyID, study string, sessionNum int) models.SnapshotMetadata {
	return models.SnapshotMetadata{
		DatabaseID:       dbID,
		ChildID:          "C1",
		StudyID:          studyID,
		Study:            study,
		Gender:           models.Male,
		Age:              16.5,
		Birthday:         "2014/01/01",
		SessionDate:      "2015/05/05",
		SessionNum:       sessionNum,
		TotalNumSessions: 2,
		WordsSpoken:      1,
		Percentile:       50,
		Languages:        "english",
		NumLanguages:     1,
		CDIType:          "testcdi",
		HardOfHearing:    models.ExplicitFalse,
	}
}

func TestGenerateConsolidatedCSVLayout(t *testing.T) {
	store, formats := reportFixtures()
	svc := NewReportService(store, formats, nil)

	body, err := svc.GenerateConsolidatedCSV(context.Background(), []models.SnapshotMetadata{
		reportSnapshot(1, "S1", "wordspurt", 1),
		reportSnapshot(2, "S2", "wordspurt", 2),
	}, "")
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	require.NoError(t, err)

	// 20 metadata rows plus one row per checklist word.
	require.Len(t, rows, 22)
	assert.Equal(t, []string{"database id", "1", "2"}, rows[0])
	assert.Equal(t, []string{"study id", "S1", "S2"}, rows[2])
	assert.Equal(t, "cat", rows[20][0])
	assert.Equal(t, "4", rows[20][1])
	assert.Equal(t, "0", rows[20][2])

	// Snapshot 2 never recorded "dog", so the cell carries the no-data code.
	assert.Equal(t, "dog", rows[21][0])
	assert.Equal(t, "-100", rows[21][2])
}

func TestGenerateConsolidatedCSVAppliesPresentationFormat(t *testing.T) {
	store, formats := reportFixtures()
	svc := NewReportService(store, formats, nil)

	body, err := svc.GenerateConsolidatedCSV(context.Background(), []models.SnapshotMetadata{
		reportSnapshot(1, "S1", "wordspurt", 1),
		reportSnapshot(2, "S2", "wordspurt", 2),
	}, "standard")
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	require.NoError(t, err)

	assert.Equal(t, []string{"gender", "male", "male"}, rows[4])
	assert.Equal(t, []string{"cat", "true", "false"}, rows[20])
	assert.Equal(t, []string{"dog", "false", ""}, rows[21])
}

func TestGenerateConsolidatedCSVSortsBySessionThenStudyID(t *testing.T) {
	store, formats := reportFixtures()
	svc := NewReportService(store, formats, nil)

	body, err := svc.GenerateConsolidatedCSV(context.Background(), []models.SnapshotMetadata{
		reportSnapshot(2, "S2", "wordspurt", 2),
		reportSnapshot(1, "S1", "wordspurt", 1),
	}, "")
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"session num", "1", "2"}, rows[8])
	assert.Equal(t, []string{"study id", "S1", "S2"}, rows[2])
}

func TestGenerateConsolidatedCSVEmptySetKeepsLabels(t *testing.T) {
	store, formats := reportFixtures()
	svc := NewReportService(store, formats, nil)

	body, err := svc.GenerateConsolidatedCSV(context.Background(), nil, "")
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 20)
	assert.Equal(t, []string{"database id"}, rows[0])
	assert.Equal(t, []string{"deleted"}, rows[19])
}

func TestGenerateArchiveGroupsByStudy(t *testing.T) {
	store, formats := reportFixtures()
	svc := NewReportService(store, formats, nil)

	body, err := svc.GenerateArchive(context.Background(), []models.SnapshotMetadata{
		reportSnapshot(1, "S1", "alpha", 1),
		reportSnapshot(2, "S2", "beta", 1),
	}, "")
	require.NoError(t, err)

	archive, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	require.Len(t, archive.File, 2)
	assert.Equal(t, "alpha.csv", archive.File[0].Name)
	assert.Equal(t, "beta.csv", archive.File[1].Name)

	member, err := archive.File[0].Open()
	require.NoError(t, err)
	defer member.Close()
	rows, err := csv.NewReader(member).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"study", "alpha"}, rows[3])
}

func TestGenerateArchiveIsDeterministic(t *testing.T) {
	store, formats := reportFixtures()
	svc := NewReportService(store, formats, nil)

	snapshots := []models.SnapshotMetadata{
		reportSnapshot(1, "S1", "alpha", 1),
		reportSnapshot(2, "S2", "beta", 1),
	}

	first, err := svc.GenerateArchive(context.Background(), snapshots, "")
	require.NoError(t, err)
	second, err := svc.GenerateArchive(context.Background(), snapshots, "")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerateSummaryPDFRendersDocument(t *testing.T) {
	store, formats := reportFixtures()
	svc := NewReportService(store, formats, nil)

	body, err := svc.GenerateSummaryPDF(context.Background(), []models.SnapshotMetadata{
		reportSnapshot(1, "S1", "wordspurt", 1),
	}, "", "Lab Summary")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}
