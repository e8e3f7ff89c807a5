package models

import "strings"

// SnapshotMetadata describes one completed checklist for one child on one
// date. Gender, hard_of_hearing and deleted hold sentinel codes from
// constants.go; languages is stored comma-joined in the database.
type SnapshotMetadata struct {
	DatabaseID       int64   `db:"database_id" json:"database_id"`
	ChildID          string  `db:"child_id" json:"child_id"`
	StudyID          string  `db:"study_id" json:"study_id"`
	Study            string  `db:"study" json:"study"`
	Gender           int     `db:"gender" json:"gender"`
	Age              float64 `db:"age" json:"age"`
	Birthday         string  `db:"birthday" json:"birthday"`
	SessionDate      string  `db:"session_date" json:"session_date"`
	SessionNum       int     `db:"session_num" json:"session_num"`
	TotalNumSessions int     `db:"total_num_sessions" json:"total_num_sessions"`
	WordsSpoken      int     `db:"words_spoken" json:"words_spoken"`
	ItemsExcluded    int     `db:"items_excluded" json:"items_excluded"`
	Percentile       float64 `db:"percentile" json:"percentile"`
	ExtraCategories  int     `db:"extra_categories" json:"extra_categories"`
	Revision         int     `db:"revision" json:"revision"`
	Languages        string  `db:"languages" json:"languages"`
	NumLanguages     int     `db:"num_languages" json:"num_languages"`
	CDIType          string  `db:"cdi_type" json:"cdi_type"`
	HardOfHearing    int     `db:"hard_of_hearing" json:"hard_of_hearing"`
	Deleted          int     `db:"deleted" json:"deleted"`
}

// LanguageList splits the comma-joined languages field back into tags.
func (s *SnapshotMetadata) LanguageList() []string {
	if s.Languages == "" {
		return nil
	}
	parts := strings.Split(s.Languages, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// SetLanguages stores an ordered list of language tags comma-joined.
func (s *SnapshotMetadata) SetLanguages(languages []string) {
	s.Languages = strings.Join(languages, ",")
	s.NumLanguages = len(languages)
}

// SnapshotContent is a word-level entry belonging to exactly one snapshot.
type SnapshotContent struct {
	SnapshotID int64  `db:"snapshot_id" json:"snapshot_id"`
	Word       string `db:"word" json:"word"`
	Value      int    `db:"value" json:"value"`
	Revision   int    `db:"revision" json:"revision"`
}

// SnapshotRecord pairs snapshot metadata with its word-level contents for
// batch persistence.
type SnapshotRecord struct {
	Meta     SnapshotMetadata  `json:"meta"`
	Contents []SnapshotContent `json:"contents"`
}

// Filter is one query predicate over snapshot metadata. Operand may hold a
// comma-joined multi-value string which expands into a disjunction.
type Filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Operand  string `json:"operand"`
}

// OperandValues returns the comma-split operand values.
func (f Filter) OperandValues() []string {
	return strings.Split(f.Operand, ",")
}
