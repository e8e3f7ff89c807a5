package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/childlang-lab/cdi-api/internal/models"
	"github.com/childlang-lab/cdi-api/pkg/export"
)

// presentationValueNames maps sentinel codes to the mapping keys a
// presentation format may rewrite.
var presentationValueNames = map[int]string{
	models.NoData:             "no_data",
	models.Unknown:            "unknown",
	models.PossiblyWronglyRec: "possibly_wrongly_recorded",
	models.EmergencyRec:       "emergency",
	models.ImpliedFalse:       "implied_false",
	models.ImpliedTrue:        "implied_true",
	models.ExplicitTrue:       "explicit_true",
	models.ExplicitFalse:      "explicit_false",
	models.ExplicitNone:       "explicit_none",
	models.ExplicitNA:         "explicit_na",
	models.ExplicitOther:      "explicit_other",
	models.NoExtraCategories:  "no_extra_categories",
	models.ExtraCategories:    "extra_categories",
	models.Male:               "male",
	models.Female:             "female",
	models.OtherGender:        "other_gender",
	models.ElevenPresumedTrue: "explicit_true",
}

// reportHeaderColumn lists the fixed metadata row labels of every report.
var reportHeaderColumn = []string{
	"database id",
	"child id",
	"study id",
	"study",
	"gender",
	"age",
	"birthday",
	"session date",
	"session num",
	"total num sessions",
	"words spoken",
	"items excluded",
	"percentile",
	"extra categories",
	"revision",
	"languages",
	"num languages",
	"cdi type",
	"hard of hearing",
	"deleted",
}

type reportContentStore interface {
	LoadContents(ctx context.Context, snapshotID int64) ([]models.SnapshotContent, error)
}

type reportFormats interface {
	LoadFormat(ctx context.Context, safeName string) (*models.CDIFormat, error)
	LoadPresentationFormat(ctx context.Context, safeName string) (*models.PresentationFormat, error)
}

// ReportService renders snapshot sets into column-major CSV reports,
// per-study archives and PDF summaries.
type ReportService struct {
	snapshots reportContentStore
	formats   reportFormats
	csv       *export.CSVExporter
	zip       *export.ZipExporter
	pdf       *export.PDFExporter
	logger    *zap.Logger
}

// NewReportService constructs a ReportService.
func NewReportService(snapshots reportContentStore, formats reportFormats, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		snapshots: snapshots,
		formats:   formats,
		csv:       export.NewCSVExporter(),
		zip:       export.NewZipExporter(),
		pdf:       export.NewPDFExporter(),
		logger:    logger,
	}
}

// GenerateConsolidatedCSV renders every snapshot into one column-major
// CSV. Column 1 carries the row labels; each later column is one snapshot
// with metadata in fixed rows followed by word values in the checklist's
// declared order.
func (s *ReportService) GenerateConsolidatedCSV(ctx context.Context, snapshots []models.SnapshotMetadata, presentationName string) ([]byte, error) {
	presentation, err := s.formats.LoadPresentationFormat(ctx, presentationName)
	if err != nil {
		return nil, err
	}

	sortSnapshotsForReport(snapshots)
	rows, err := s.buildReportRows(ctx, snapshots, presentation)
	if err != nil {
		return nil, err
	}
	return s.csv.RenderTable(rows)
}

// GenerateArchive groups the snapshots by study and assembles one CSV per
// study into a zip archive. Members appear in sorted study-name order.
func (s *ReportService) GenerateArchive(ctx context.Context, snapshots []models.SnapshotMetadata, presentationName string) ([]byte, error) {
	presentation, err := s.formats.LoadPresentationFormat(ctx, presentationName)
	if err != nil {
		return nil, err
	}

	sortSnapshotsForReport(snapshots)
	byStudy := make(map[string][]models.SnapshotMetadata)
	for _, snapshot := range snapshots {
		byStudy[snapshot.Study] = append(byStudy[snapshot.Study], snapshot)
	}

	members := make(map[string][]byte, len(byStudy))
	for study, studySnapshots := range byStudy {
		rows, err := s.buildReportRows(ctx, studySnapshots, presentation)
		if err != nil {
			return nil, fmt.Errorf("render study %s: %w", study, err)
		}
		body, err := s.csv.RenderTable(rows)
		if err != nil {
			return nil, fmt.Errorf("render study %s: %w", study, err)
		}
		members[study+".csv"] = body
	}

	return s.zip.Render(members)
}

// GenerateSummaryPDF renders snapshot metadata, without word values, into
// a tabular PDF.
func (s *ReportService) GenerateSummaryPDF(ctx context.Context, snapshots []models.SnapshotMetadata, presentationName, title string) ([]byte, error) {
	presentation, err := s.formats.LoadPresentationFormat(ctx, presentationName)
	if err != nil {
		return nil, err
	}

	sortSnapshotsForReport(snapshots)
	headers := []string{"study", "study id", "gender", "age", "session", "words spoken", "percentile"}
	rows := make([]map[string]string, 0, len(snapshots))
	for _, snapshot := range snapshots {
		rows = append(rows, map[string]string{
			"study":        snapshot.Study,
			"study id":     snapshot.StudyID,
			"gender":       interpretValue(snapshot.Gender, presentation),
			"age":          floatString(snapshot.Age),
			"session":      strconv.Itoa(snapshot.SessionNum),
			"words spoken": strconv.Itoa(snapshot.WordsSpoken),
			"percentile":   floatString(snapshot.Percentile),
		})
	}

	return s.pdf.Render(export.Dataset{Headers: headers, Rows: rows}, title)
}

// buildReportRows assembles the cell grid for a report: the label column
// first, then one column per snapshot, transposed to CSV rows. Word order
// follows the first snapshot's checklist, falling back to the default
// format when that checklist is unknown.
func (s *ReportService) buildReportRows(ctx context.Context, snapshots []models.SnapshotMetadata, presentation *models.PresentationFormat) ([][]string, error) {
	if len(snapshots) == 0 {
		rows := make([][]string, len(reportHeaderColumn))
		for i, label := range reportHeaderColumn {
			rows[i] = []string{label}
		}
		return rows, nil
	}

	format, err := s.formats.LoadFormat(ctx, safeFormatName(snapshots[0].CDIType))
	if err != nil {
		return nil, err
	}
	words := format.Words()
	wordListing := make([]string, len(words))
	for i, word := range words {
		wordListing[i] = models.NormalizeWord(word)
	}

	columns := make([][]string, 0, len(snapshots)+1)
	labels := make([]string, 0, len(reportHeaderColumn)+len(wordListing))
	labels = append(labels, reportHeaderColumn...)
	labels = append(labels, wordListing...)
	columns = append(columns, labels)

	for _, snapshot := range snapshots {
		column, err := s.serializeSnapshot(ctx, snapshot, wordListing, presentation)
		if err != nil {
			return nil, err
		}
		columns = append(columns, column)
	}

	rows := make([][]string, len(labels))
	for rowIdx := range rows {
		row := make([]string, len(columns))
		for colIdx, column := range columns {
			row[colIdx] = column[rowIdx]
		}
		rows[rowIdx] = row
	}
	return rows, nil
}

func (s *ReportService) serializeSnapshot(ctx context.Context, snapshot models.SnapshotMetadata, wordListing []string, presentation *models.PresentationFormat) ([]string, error) {
	contents, err := s.snapshots.LoadContents(ctx, snapshot.DatabaseID)
	if err != nil {
		return nil, err
	}
	values := make(map[string]int, len(contents))
	for _, content := range contents {
		values[models.NormalizeWord(content.Word)] = content.Value
	}

	column := []string{
		strconv.FormatInt(snapshot.DatabaseID, 10),
		snapshot.ChildID,
		snapshot.StudyID,
		snapshot.Study,
		interpretValue(snapshot.Gender, presentation),
		floatString(snapshot.Age),
		snapshot.Birthday,
		snapshot.SessionDate,
		strconv.Itoa(snapshot.SessionNum),
		strconv.Itoa(snapshot.TotalNumSessions),
		strconv.Itoa(snapshot.WordsSpoken),
		strconv.Itoa(snapshot.ItemsExcluded),
		floatString(snapshot.Percentile),
		interpretValue(snapshot.ExtraCategories, presentation),
		strconv.Itoa(snapshot.Revision),
		snapshot.Languages,
		strconv.Itoa(snapshot.NumLanguages),
		snapshot.CDIType,
		strconv.Itoa(snapshot.HardOfHearing),
		strconv.Itoa(snapshot.Deleted),
	}

	for _, word := range wordListing {
		value, ok := values[word]
		if !ok {
			value = models.NoData
		}
		column = append(column, interpretValue(value, presentation))
	}
	return column, nil
}

// sortSnapshotsForReport orders snapshots by session number, ties broken
// lexicographically on study id, for deterministic report layout.
func sortSnapshotsForReport(snapshots []models.SnapshotMetadata) {
	sort.SliceStable(snapshots, func(i, j int) bool {
		if snapshots[i].SessionNum != snapshots[j].SessionNum {
			return snapshots[i].SessionNum < snapshots[j].SessionNum
		}
		return snapshots[i].StudyID < snapshots[j].StudyID
	})
}

// interpretValue rewrites a sentinel code through the presentation
// mapping when one applies, otherwise renders the raw integer.
func interpretValue(value int, presentation *models.PresentationFormat) string {
	if presentation != nil {
		if name, ok := presentationValueNames[value]; ok {
			if mapped, ok := presentation.Details[name]; ok {
				return mapped
			}
		}
	}
	return strconv.Itoa(value)
}

// safeFormatName folds a stored CDI type name onto its format safe name.
func safeFormatName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", ""))
}

func floatString(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
