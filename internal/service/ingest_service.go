package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/childlang-lab/cdi-api/internal/models"
)

// daysPerMonth is the normalized month length used for age computation.
const daysPerMonth = 30.42

// Reconciliation tolerances for user-supplied derived fields.
const (
	ageTolerance        = 1.0
	percentileTolerance = 1.0
)

type parseState int

const (
	stateHeader parseState = iota
	stateDatabaseID
	stateChildID
	stateStudyID
	stateStudy
	stateGender
	stateAge
	stateBirthday
	stateSessionDate
	stateSessionNum
	stateTotalNumSessions
	stateWordsSpoken
	stateItemsExcluded
	statePercentile
	stateExtraCategories
	stateRevision
	stateLanguages
	stateNumLanguages
	stateCDIType
	stateHardOfHearing
	stateDeleted
	stateStartWords
	stateWords
	stateError
)

// expectedHeaderFields is the fixed row-label sequence, after the optional
// database id label, that every upload must carry.
var expectedHeaderFields = []string{
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

var expectedGenderValues = map[string]int{
	"m":      models.Male,
	"male":   models.Male,
	"f":      models.Female,
	"female": models.Female,
	"o":      models.OtherGender,
	"other":  models.OtherGender,
}

var expectedBooleanValues = map[string]int{
	"y":   models.ExplicitTrue,
	"yes": models.ExplicitTrue,
	"1":   models.ExplicitTrue,
	"4":   models.ExplicitTrue,
	"n":   models.ExplicitFalse,
	"no":  models.ExplicitFalse,
	"0":   models.ExplicitFalse,
}

const (
	errInvalidLength           = "Expected at least 19 rows in the provided dataset. Found %d rows."
	errHeaderUnexpectedValue   = "Expected header column value %s but got %s in row %d."
	errNoStudyID               = "Study ID was missing for record in column %d."
	errNoStudy                 = "Study was missing for record in column %d."
	errNoGender                = "Gender was missing for record in column %d."
	errInvalidGender           = "An invalid value (%s) was provided for gender in column %d."
	errUnexpectedAge           = "An invalid value (%s) was provided for age in column %d."
	errNoBirthday              = "Birth date was missing for record in column %d."
	errUnexpectedBirthday      = "An invalid value (%s) was provided for birthday in column %d."
	errNoSessionDate           = "Session date was missing for record in column %d."
	errUnexpectedSessionDate   = "An invalid value (%s) was provided for session date in column %d."
	errUnexpectedSessionNum    = "An invalid value (%s) was provided for session number in column %d."
	errNoTotalSessions         = "Total number of sessions was missing for column %d."
	errUnexpectedTotalSessions = "An invalid value (%s) was provided for total sessions in column %d."
	errUnexpectedWordsSpoken   = "An invalid value (%s) was provided for num words spoken in column %d."
	errUnexpectedExcludedItems = "An invalid value (%s) was provided for num words excluded in column %d."
	errUnexpectedPercentile    = "An invalid value (%s) was provided for percentile in column %d."
	errUnexpectedExtraCats     = "An invalid value (%s) was provided for extra categories in column %d."
	errUnexpectedRevision      = "An invalid value (%s) was provided for revision in column %d."
	errNoLanguages             = "Languages missing in column %d."
	errUnexpectedNumLanguages  = "An invalid value (%s) was provided for num languages in column %d."
	errUnknownCDIType          = "An unknown CDI type (%s) was encountered in column %d."
	errWordsNotExpected        = "The words provided were not expected for CDI type %s (%s)."
	errHardOfHearingValue      = "Unexpected value (%s) for hard of hearing in column %d."
	errDeletedValue            = "Unexpected value (%s) for deleted in column %d."
	errUnknownWordValue        = "Unexpected value (%s) for word %s in column %d."
	errUnexpectedWord          = "Too many word values found for column %d."
	errMissingWords            = "Too few word values found for column %d."
	errShortColumn             = "Unexpected end of column %d."
	errInvalidNumLanguages     = "Incorrect number of languages provided on column %d."
	errInvalidPercentile       = "Incorrect percentile provided on column %d (given %.1f but found %.1f)."
	errInvalidAge              = "Incorrect age on column %d (given %.1f but found %.1f)."
	errInvalidNumWords         = "Incorrect num words on column %d (given %d but found %d)."
)

type checklistSource interface {
	StrictLoadFormat(ctx context.Context, safeName string) (*models.CDIFormat, error)
	LoadFormat(ctx context.Context, safeName string) (*models.CDIFormat, error)
	PercentileTableForGender(ctx context.Context, safeName string, gender int) (*models.PercentileTable, error)
	MaxWords(ctx context.Context, safeName string) (int, error)
}

type ingestStore interface {
	InsertBatch(ctx context.Context, records []models.SnapshotRecord) error
	CountSessions(ctx context.Context, study, studyID string) (int, error)
}

// IngestResult reports the outcome of parsing one upload.
type IngestResult struct {
	Records      []models.SnapshotRecord `json:"records"`
	HadError     bool                    `json:"had_error"`
	ErrorMessage string                  `json:"error_message,omitempty"`
}

// IngestService parses column-major snapshot CSV uploads, reconciles
// derived fields against recomputed values, and persists clean batches.
type IngestService struct {
	formats   checklistSource
	snapshots ingestStore
	logger    *zap.Logger
}

// NewIngestService constructs an IngestService.
func NewIngestService(formats checklistSource, snapshots ingestStore, logger *zap.Logger) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{formats: formats, snapshots: snapshots, logger: logger}
}

// ParseCSV runs the upload automaton over the reader without persisting
// anything. Column 1 holds row labels; each later column is one snapshot.
func (s *IngestService) ParseCSV(ctx context.Context, r io.Reader) (*IngestResult, error) {
	rows, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read upload csv: %w", err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("upload csv is empty")
	}

	automaton := newUploadAutomaton(s.formats, s.snapshots)
	for col := 0; col < len(rows[0]); col++ {
		column := make([]string, len(rows))
		for rowIdx := range rows {
			column[rowIdx] = rows[rowIdx][col]
		}
		automaton.processColumn(ctx, column)
	}

	return &IngestResult{
		Records:      automaton.records,
		HadError:     automaton.inError(),
		ErrorMessage: automaton.errorMessage,
	}, nil
}

// Ingest parses the upload and, when the automaton finishes clean,
// persists every record in one transaction. A parse error leaves the
// database untouched.
func (s *IngestService) Ingest(ctx context.Context, r io.Reader) (*IngestResult, error) {
	result, err := s.ParseCSV(ctx, r)
	if err != nil {
		return nil, err
	}
	if result.HadError {
		s.logger.Warn("upload rejected", zap.String("reason", result.ErrorMessage))
		return result, nil
	}

	if err := s.snapshots.InsertBatch(ctx, result.Records); err != nil {
		return nil, fmt.Errorf("persist upload: %w", err)
	}
	s.logger.Info("upload accepted", zap.Int("records", len(result.Records)))
	return result, nil
}

// uploadAutomaton is the single-threaded state machine behind ParseCSV.
// Once an error latches the automaton drops all further input.
type uploadAutomaton struct {
	formats  checklistSource
	sessions ingestStore

	state        parseState
	errorMessage string

	columnsProcessed int
	hasDatabaseID    bool
	expectedWords    []string

	childID          string
	studyID          string
	study            string
	gender           int
	age              float64
	birthday         string
	sessionDate      string
	sessionNum       int
	totalNumSessions int
	wordsSpoken      int
	itemsExcluded    int
	percentile       float64
	extraCategories  int
	revision         int
	languages        []string
	numLanguages     int
	cdiName          string
	hardOfHearing    int
	deleted          int

	ageDeferred          bool
	sessionNumDeferred   bool
	wordsSpokenDeferred  bool
	percentileDeferred   bool
	numLanguagesDeferred bool

	allowedWordValues map[int]struct{}
	countAsSpokenSet  map[int]struct{}
	wordValues        map[string]int
	expectedWordQueue []string

	records []models.SnapshotRecord
}

func newUploadAutomaton(formats checklistSource, sessions ingestStore) *uploadAutomaton {
	return &uploadAutomaton{
		formats:  formats,
		sessions: sessions,
		state:    stateHeader,
		gender:   models.Unknown,
		cdiName:  "Unknown",
	}
}

func (a *uploadAutomaton) inError() bool {
	return a.state == stateError
}

func (a *uploadAutomaton) enterErrorState(message string) {
	a.state = stateError
	a.errorMessage = message
}

// columnNumber is the 1-based index of the data column being processed.
// The row-label column does not count.
func (a *uploadAutomaton) columnNumber() int {
	return a.columnsProcessed + 1
}

func (a *uploadAutomaton) processColumn(ctx context.Context, cells []string) {
	if a.inError() {
		return
	}
	if a.state == stateHeader {
		a.parseHeader(cells)
		return
	}
	a.processRecordColumn(ctx, cells)
}

func (a *uploadAutomaton) parseHeader(cellsCased []string) {
	cells := make([]string, len(cellsCased))
	for i, cell := range cellsCased {
		cells[i] = strings.ToLower(strings.TrimSpace(cell))
	}

	if len(cells) < len(expectedHeaderFields) {
		a.enterErrorState(fmt.Sprintf(errInvalidLength, len(cells)))
		return
	}

	a.hasDatabaseID = cells[0] == "database id"
	offset := 0
	if a.hasDatabaseID {
		offset = 1
	}

	if len(cells) < len(expectedHeaderFields)+offset {
		a.enterErrorState(fmt.Sprintf(errInvalidLength, len(cells)))
		return
	}

	for i, expected := range expectedHeaderFields {
		row := i + offset
		if cells[row] != expected {
			a.enterErrorState(fmt.Sprintf(errHeaderUnexpectedValue, expected, cells[row], row+1))
			return
		}
	}

	words := cells[len(expectedHeaderFields)+offset:]
	a.expectedWords = make([]string, len(words))
	for i, word := range words {
		a.expectedWords[i] = models.NormalizeWord(word)
	}

	a.resetForNextRecord()
}

func (a *uploadAutomaton) resetForNextRecord() {
	if a.hasDatabaseID {
		a.state = stateDatabaseID
	} else {
		a.state = stateChildID
	}
}

func (a *uploadAutomaton) processRecordColumn(ctx context.Context, cells []string) {
	for _, cell := range cells {
		if a.inError() {
			return
		}
		a.step(ctx, cell)
	}
	if a.inError() {
		return
	}
	a.finalizeRecord(ctx)
	a.columnsProcessed++
}

func (a *uploadAutomaton) step(ctx context.Context, cell string) {
	switch a.state {
	case stateDatabaseID:
		// Participant re-reference marker, value itself is unused here.
		a.state = stateChildID
	case stateChildID:
		a.parseChildID(cell)
	case stateStudyID:
		a.parseStudyID(cell)
	case stateStudy:
		a.parseStudy(cell)
	case stateGender:
		a.parseGender(cell)
	case stateAge:
		a.parseAge(cell)
	case stateBirthday:
		a.parseBirthday(cell)
	case stateSessionDate:
		a.parseSessionDate(cell)
	case stateSessionNum:
		a.parseSessionNum(cell)
	case stateTotalNumSessions:
		a.parseTotalNumSessions(cell)
	case stateWordsSpoken:
		a.parseWordsSpoken(cell)
	case stateItemsExcluded:
		a.parseItemsExcluded(cell)
	case statePercentile:
		a.parsePercentile(cell)
	case stateExtraCategories:
		a.parseExtraCategories(cell)
	case stateRevision:
		a.parseRevision(cell)
	case stateLanguages:
		a.parseLanguages(cell)
	case stateNumLanguages:
		a.parseNumLanguages(cell)
	case stateCDIType:
		a.parseCDIType(ctx, cell)
	case stateHardOfHearing:
		a.parseHardOfHearing(cell)
	case stateDeleted:
		a.parseDeleted(cell)
	case stateStartWords:
		a.wordValues = make(map[string]int, len(a.expectedWords))
		a.expectedWordQueue = append([]string(nil), a.expectedWords...)
		a.state = stateWords
		a.parseWord(cell)
	case stateWords:
		a.parseWord(cell)
	default:
		a.enterErrorState("Automaton reached unexpected state.")
	}
}

func (a *uploadAutomaton) parseChildID(cell string) {
	a.childID = strings.TrimSpace(cell)
	a.state = stateStudyID
}

func (a *uploadAutomaton) parseStudyID(cell string) {
	if isEmptyCell(cell) {
		a.enterErrorState(fmt.Sprintf(errNoStudyID, a.columnNumber()))
		return
	}
	a.studyID = cell
	a.state = stateStudy
}

func (a *uploadAutomaton) parseStudy(cell string) {
	if isEmptyCell(cell) {
		a.enterErrorState(fmt.Sprintf(errNoStudy, a.columnNumber()))
		return
	}
	a.study = cell
	a.state = stateGender
}

func (a *uploadAutomaton) parseGender(cellCased string) {
	cell := strings.ToLower(strings.TrimSpace(cellCased))
	if cell == "" {
		a.enterErrorState(fmt.Sprintf(errNoGender, a.columnNumber()))
		return
	}
	gender, ok := expectedGenderValues[cell]
	if !ok {
		a.enterErrorState(fmt.Sprintf(errInvalidGender, cellCased, a.columnNumber()))
		return
	}
	a.gender = gender
	a.state = stateAge
}

func (a *uploadAutomaton) parseAge(cell string) {
	if isEmptyCell(cell) {
		a.ageDeferred = true
		a.state = stateBirthday
		return
	}
	a.ageDeferred = false

	age, ok := parseFloatStrict(cell)
	if !ok || age <= 0 {
		a.enterErrorState(fmt.Sprintf(errUnexpectedAge, cell, a.columnNumber()))
		return
	}
	a.age = age
	a.state = stateBirthday
}

func (a *uploadAutomaton) parseBirthday(cell string) {
	if isEmptyCell(cell) {
		a.enterErrorState(fmt.Sprintf(errNoBirthday, a.columnNumber()))
		return
	}
	normalized, ok := parseDateCell(cell)
	if !ok {
		a.enterErrorState(fmt.Sprintf(errUnexpectedBirthday, cell, a.columnNumber()))
		return
	}
	a.birthday = normalized
	a.state = stateSessionDate
}

func (a *uploadAutomaton) parseSessionDate(cell string) {
	if isEmptyCell(cell) {
		a.enterErrorState(fmt.Sprintf(errNoSessionDate, a.columnNumber()))
		return
	}
	normalized, ok := parseDateCell(cell)
	if !ok {
		a.enterErrorState(fmt.Sprintf(errUnexpectedSessionDate, cell, a.columnNumber()))
		return
	}
	a.sessionDate = normalized
	a.state = stateSessionNum
}

func (a *uploadAutomaton) parseSessionNum(cell string) {
	if isEmptyCell(cell) {
		a.sessionNumDeferred = true
		a.state = stateTotalNumSessions
		return
	}
	a.sessionNumDeferred = false

	num, ok := parseIntStrict(cell)
	if !ok || num <= 0 {
		a.enterErrorState(fmt.Sprintf(errUnexpectedSessionNum, cell, a.columnNumber()))
		return
	}
	a.sessionNum = num
	a.state = stateTotalNumSessions
}

func (a *uploadAutomaton) parseTotalNumSessions(cell string) {
	if isEmptyCell(cell) {
		a.enterErrorState(fmt.Sprintf(errNoTotalSessions, a.columnNumber()))
		return
	}
	num, ok := parseIntStrict(cell)
	if !ok || num <= 0 {
		a.enterErrorState(fmt.Sprintf(errUnexpectedTotalSessions, cell, a.columnNumber()))
		return
	}
	a.totalNumSessions = num
	a.state = stateWordsSpoken
}

func (a *uploadAutomaton) parseWordsSpoken(cell string) {
	if isEmptyCell(cell) {
		a.wordsSpokenDeferred = true
		a.state = stateItemsExcluded
		return
	}
	a.wordsSpokenDeferred = false

	num, ok := parseIntStrict(cell)
	if !ok || num < 0 {
		a.enterErrorState(fmt.Sprintf(errUnexpectedWordsSpoken, cell, a.columnNumber()))
		return
	}
	a.wordsSpoken = num
	a.state = stateItemsExcluded
}

func (a *uploadAutomaton) parseItemsExcluded(cell string) {
	if isEmptyCell(cell) {
		a.itemsExcluded = 0
		a.state = statePercentile
		return
	}
	num, ok := parseIntStrict(cell)
	if !ok || num < 0 {
		a.enterErrorState(fmt.Sprintf(errUnexpectedExcludedItems, cell, a.columnNumber()))
		return
	}
	a.itemsExcluded = num
	a.state = statePercentile
}

func (a *uploadAutomaton) parsePercentile(cell string) {
	if isEmptyCell(cell) {
		a.percentileDeferred = true
		a.state = stateExtraCategories
		return
	}
	a.percentileDeferred = false

	percentile, ok := parseFloatStrict(cell)
	if !ok || percentile < 0 || percentile > 100 {
		a.enterErrorState(fmt.Sprintf(errUnexpectedPercentile, cell, a.columnNumber()))
		return
	}
	a.percentile = percentile
	a.state = stateExtraCategories
}

func (a *uploadAutomaton) parseExtraCategories(cell string) {
	if isEmptyCell(cell) {
		a.extraCategories = 0
		a.state = stateRevision
		return
	}
	num, ok := parseIntStrict(cell)
	if !ok || num < 0 {
		a.enterErrorState(fmt.Sprintf(errUnexpectedExtraCats, cell, a.columnNumber()))
		return
	}
	a.extraCategories = num
	a.state = stateRevision
}

func (a *uploadAutomaton) parseRevision(cell string) {
	if isEmptyCell(cell) {
		a.revision = 0
		a.state = stateLanguages
		return
	}
	num, ok := parseIntStrict(cell)
	if !ok || num < 0 {
		a.enterErrorState(fmt.Sprintf(errUnexpectedRevision, cell, a.columnNumber()))
		return
	}
	a.revision = num
	a.state = stateLanguages
}

func (a *uploadAutomaton) parseLanguages(cell string) {
	if isEmptyCell(cell) {
		a.enterErrorState(fmt.Sprintf(errNoLanguages, a.columnNumber()))
		return
	}
	parts := strings.Split(cell, ",")
	a.languages = make([]string, len(parts))
	for i, part := range parts {
		a.languages[i] = strings.TrimSpace(part)
	}
	a.state = stateNumLanguages
}

func (a *uploadAutomaton) parseNumLanguages(cell string) {
	if isEmptyCell(cell) {
		a.numLanguagesDeferred = true
		a.state = stateCDIType
		return
	}
	a.numLanguagesDeferred = false

	num, ok := parseIntStrict(cell)
	if !ok || num <= 0 {
		a.enterErrorState(fmt.Sprintf(errUnexpectedNumLanguages, cell, a.columnNumber()))
		return
	}
	a.numLanguages = num
	a.state = stateCDIType
}

func (a *uploadAutomaton) parseCDIType(ctx context.Context, cell string) {
	format, err := a.formats.StrictLoadFormat(ctx, cell)
	if err != nil || format == nil {
		a.enterErrorState(fmt.Sprintf(errUnknownCDIType, cell, a.columnNumber()))
		return
	}

	required := make(map[string]struct{})
	for _, word := range format.Words() {
		required[models.NormalizeWord(word)] = struct{}{}
	}

	// The header's word tokens and the checklist's declared tokens must
	// match exactly as sets.
	var difference []string
	seen := make(map[string]struct{}, len(a.expectedWords))
	for _, word := range a.expectedWords {
		seen[word] = struct{}{}
		if _, ok := required[word]; !ok {
			difference = append(difference, word)
		}
	}
	for word := range required {
		if _, ok := seen[word]; !ok {
			difference = append(difference, word)
		}
	}
	if len(difference) > 0 {
		a.enterErrorState(fmt.Sprintf(errWordsNotExpected, cell, strings.Join(difference, ",")))
		return
	}

	a.allowedWordValues = format.AllowedValues()
	a.countAsSpokenSet = format.CountAsSpokenSet()
	a.cdiName = cell
	a.state = stateHardOfHearing
}

func (a *uploadAutomaton) parseHardOfHearing(cell string) {
	value, ok := expectedBooleanValues[strings.ToLower(strings.TrimSpace(cell))]
	if !ok {
		a.enterErrorState(fmt.Sprintf(errHardOfHearingValue, cell, a.columnNumber()))
		return
	}
	a.hardOfHearing = value
	a.state = stateDeleted
}

func (a *uploadAutomaton) parseDeleted(cell string) {
	value, ok := expectedBooleanValues[strings.ToLower(strings.TrimSpace(cell))]
	if !ok {
		a.enterErrorState(fmt.Sprintf(errDeletedValue, cell, a.columnNumber()))
		return
	}
	a.deleted = value
	a.state = stateStartWords
}

func (a *uploadAutomaton) parseWord(cell string) {
	if len(a.expectedWordQueue) == 0 {
		a.enterErrorState(fmt.Sprintf(errUnexpectedWord, a.columnNumber()))
		return
	}
	word := a.expectedWordQueue[0]
	a.expectedWordQueue = a.expectedWordQueue[1:]

	value, ok := parseIntStrict(cell)
	if !ok {
		a.enterErrorState(fmt.Sprintf(errUnknownWordValue, cell, word, a.columnNumber()))
		return
	}
	if _, allowed := a.allowedWordValues[value]; !allowed {
		a.enterErrorState(fmt.Sprintf(errUnknownWordValue, cell, word, a.columnNumber()))
		return
	}
	a.wordValues[word] = value
}

// finalizeRecord reconciles user-supplied derived fields against
// recomputed values, fills in deferred fields, and emits the record.
func (a *uploadAutomaton) finalizeRecord(ctx context.Context) {
	if a.state != stateWords {
		a.enterErrorState(fmt.Sprintf(errShortColumn, a.columnNumber()))
		return
	}
	if len(a.expectedWordQueue) > 0 {
		a.enterErrorState(fmt.Sprintf(errMissingWords, a.columnNumber()))
		return
	}

	if !a.numLanguagesDeferred && a.numLanguages != len(a.languages) {
		a.enterErrorState(fmt.Sprintf(errInvalidNumLanguages, a.columnNumber()))
		return
	}

	expectedAge, err := monthsBetween(a.birthday, a.sessionDate)
	if err != nil {
		a.enterErrorState(err.Error())
		return
	}
	if !a.ageDeferred && abs(a.age-expectedAge) > ageTolerance {
		a.enterErrorState(fmt.Sprintf(errInvalidAge, a.columnNumber(), a.age, expectedAge))
		return
	}

	expectedWordsSpoken := a.countWordsSpoken()
	if !a.wordsSpokenDeferred && a.wordsSpoken != expectedWordsSpoken {
		a.enterErrorState(fmt.Sprintf(errInvalidNumWords, a.columnNumber(), a.wordsSpoken, expectedWordsSpoken))
		return
	}

	resolvedAge := a.age
	if a.ageDeferred {
		resolvedAge = expectedAge
	}
	resolvedWordsSpoken := a.wordsSpoken
	if a.wordsSpokenDeferred {
		resolvedWordsSpoken = expectedWordsSpoken
	}

	expectedPercentile, err := a.computePercentile(ctx, resolvedWordsSpoken, resolvedAge)
	if err != nil {
		a.enterErrorState(err.Error())
		return
	}
	if !a.percentileDeferred && abs(a.percentile-expectedPercentile) > percentileTolerance {
		a.enterErrorState(fmt.Sprintf(errInvalidPercentile, a.columnNumber(), a.percentile, expectedPercentile))
		return
	}

	resolvedPercentile := a.percentile
	if a.percentileDeferred {
		resolvedPercentile = expectedPercentile
	}

	resolvedSessionNum := a.sessionNum
	if a.sessionNumDeferred {
		prior, err := a.sessions.CountSessions(ctx, a.study, a.studyID)
		if err != nil {
			a.enterErrorState(err.Error())
			return
		}
		resolvedSessionNum = prior + 1
	}

	resolvedNumLanguages := a.numLanguages
	if a.numLanguagesDeferred {
		resolvedNumLanguages = len(a.languages)
	}

	meta := models.SnapshotMetadata{
		ChildID:          a.childID,
		StudyID:          a.studyID,
		Study:            a.study,
		Gender:           a.gender,
		Age:              resolvedAge,
		Birthday:         a.birthday,
		SessionDate:      a.sessionDate,
		SessionNum:       resolvedSessionNum,
		TotalNumSessions: a.totalNumSessions,
		WordsSpoken:      resolvedWordsSpoken,
		ItemsExcluded:    a.itemsExcluded,
		Percentile:       resolvedPercentile,
		ExtraCategories:  a.extraCategories,
		Revision:         a.revision,
		CDIType:          a.cdiName,
		HardOfHearing:    a.hardOfHearing,
		Deleted:          a.deleted,
	}
	meta.SetLanguages(a.languages)
	meta.NumLanguages = resolvedNumLanguages

	contents := make([]models.SnapshotContent, 0, len(a.expectedWords))
	for _, word := range a.expectedWords {
		contents = append(contents, models.SnapshotContent{
			Word:     word,
			Value:    a.wordValues[word],
			Revision: 0,
		})
	}

	a.records = append(a.records, models.SnapshotRecord{Meta: meta, Contents: contents})
	a.resetForNextRecord()
}

func (a *uploadAutomaton) countWordsSpoken() int {
	count := 0
	for _, value := range a.wordValues {
		if _, spoken := a.countAsSpokenSet[value]; spoken {
			count++
		}
	}
	return count
}

func (a *uploadAutomaton) computePercentile(ctx context.Context, wordsSpoken int, age float64) (float64, error) {
	table, err := a.formats.PercentileTableForGender(ctx, a.cdiName, a.gender)
	if err != nil {
		return 0, err
	}
	maxWords, err := a.formats.MaxWords(ctx, a.cdiName)
	if err != nil {
		return 0, err
	}
	return FindPercentile(table.Entries, wordsSpoken, age, maxWords)
}

// monthsBetween computes the span between two YYYY/MM/DD dates in
// normalized months.
func monthsBetween(startDate, endDate string) (float64, error) {
	start, err := time.Parse("2006/01/02", startDate)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", startDate, err)
	}
	end, err := time.Parse("2006/01/02", endDate)
	if err != nil {
		return 0, fmt.Errorf("parse date %q: %w", endDate, err)
	}
	days := end.Sub(start).Hours() / 24
	return days / daysPerMonth, nil
}

func isEmptyCell(cell string) bool {
	return strings.TrimSpace(cell) == ""
}

// parseIntStrict rejects leading-zero integers other than the literal
// zero so ambiguous legacy formatting fails loudly.
func parseIntStrict(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "0" {
		return 0, true
	}
	if raw == "" || strings.HasPrefix(raw, "0") {
		return 0, false
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return value, true
}

// parseFloatStrict rejects leading-zero floats other than "0" and "0.x"
// forms.
func parseFloatStrict(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "0" {
		return 0, true
	}
	if raw == "" {
		return 0, false
	}
	if strings.HasPrefix(raw, "0") && !strings.HasPrefix(raw, "0.") {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// parseDateCell normalizes an accepted date cell to YYYY/MM/DD.
func parseDateCell(raw string) (string, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), "-", "/")
	for _, layout := range []string{"2006/01/02", "01/02/2006"} {
		if parsed, err := time.Parse(layout, cleaned); err == nil {
			return parsed.Format("2006/01/02"), true
		}
	}
	return "", false
}

func abs(value float64) float64 {
	if value < 0 {
		return -value
	}
	return value
}
