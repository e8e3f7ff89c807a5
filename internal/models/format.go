package models

import "strings"

// CDIFormatMetadata is the database row describing one stored CDI format.
// The format body lives on disk as YAML under the formats directory.
type CDIFormatMetadata struct {
	SafeName  string `db:"safe_name" json:"safe_name" validate:"required"`
	HumanName string `db:"human_name" json:"human_name" validate:"required"`
	Filename  string `db:"filename" json:"filename" validate:"required"`
}

// WordCategory groups the checklist words asked for one language section.
type WordCategory struct {
	Name     string   `yaml:"name" json:"name" validate:"required"`
	Language string   `yaml:"language" json:"language"`
	Words    []string `yaml:"words" json:"words" validate:"min=1"`
}

// WordOption enumerates one legal integer code for per-word responses.
// PrefillValues lists additional codes a form may prefill for this option.
type WordOption struct {
	Name          string `yaml:"name" json:"name"`
	Value         int    `yaml:"value" json:"value"`
	PrefillValues []int  `yaml:"prefill_value" json:"prefill_value,omitempty"`
}

// PercentileRefs names the percentile table used for each gender.
type PercentileRefs struct {
	Male   string `yaml:"male" json:"male"`
	Female string `yaml:"female" json:"female"`
	Other  string `yaml:"other" json:"other"`
}

// CDIFormatDetails is the parsed body of a checklist definition file.
type CDIFormatDetails struct {
	Categories    []WordCategory `yaml:"categories" json:"categories" validate:"min=1,dive"`
	Options       []WordOption   `yaml:"options" json:"options"`
	CountAsSpoken []int          `yaml:"count_as_spoken" json:"count_as_spoken"`
	Percentiles   PercentileRefs `yaml:"percentiles" json:"percentiles"`
	Meta          CDIFormatMeta  `yaml:"meta" json:"meta"`
}

// CDIFormatMeta carries auxiliary identifiers for a checklist family.
type CDIFormatMeta struct {
	CDIType string `yaml:"cdi_type" json:"cdi_type"`
}

// CDIFormat joins metadata with the parsed definition body.
type CDIFormat struct {
	CDIFormatMetadata
	Details CDIFormatDetails `json:"details"`
}

// NormalizeWord strips the marker character and lowercases a word token so
// tokens compare by identity rather than presentation.
func NormalizeWord(word string) string {
	return strings.ToLower(strings.ReplaceAll(word, "*", ""))
}

// Words returns the declared word tokens in category order.
func (f *CDIFormat) Words() []string {
	var words []string
	for _, category := range f.Details.Categories {
		words = append(words, category.Words...)
	}
	return words
}

// MaxWords is the number of words a participant could know on this format.
func (f *CDIFormat) MaxWords() int {
	total := 0
	for _, category := range f.Details.Categories {
		total += len(category.Words)
	}
	return total
}

// AllowedValues is the set of legal word codes: every option value plus
// every prefill value.
func (f *CDIFormat) AllowedValues() map[int]struct{} {
	allowed := make(map[int]struct{})
	for _, option := range f.Details.Options {
		allowed[option.Value] = struct{}{}
		for _, prefill := range option.PrefillValues {
			allowed[prefill] = struct{}{}
		}
	}
	return allowed
}

// CountAsSpokenSet returns the codes counting a word as spoken.
func (f *CDIFormat) CountAsSpokenSet() map[int]struct{} {
	spoken := make(map[int]struct{}, len(f.Details.CountAsSpoken))
	for _, v := range f.Details.CountAsSpoken {
		spoken[v] = struct{}{}
	}
	return spoken
}

// PercentileTableMetadata is the database row for one percentile table.
type PercentileTableMetadata struct {
	SafeName  string `db:"safe_name" json:"safe_name" validate:"required"`
	HumanName string `db:"human_name" json:"human_name" validate:"required"`
	Filename  string `db:"filename" json:"filename" validate:"required"`
}

// PercentileTable joins metadata with the parsed CSV lookup body. The first
// row holds ages in months (ascending) after a sentinel cell; the first
// column of later rows holds percentile ranks in descending order.
type PercentileTable struct {
	PercentileTableMetadata
	Entries [][]float64 `json:"entries"`
}

// PresentationFormatMetadata is the database row for a presentation format.
type PresentationFormatMetadata struct {
	SafeName  string `db:"safe_name" json:"safe_name" validate:"required"`
	HumanName string `db:"human_name" json:"human_name" validate:"required"`
	Filename  string `db:"filename" json:"filename" validate:"required"`
}

// PresentationFormat maps sentinel value names to the strings a rendered
// export should show in their place.
type PresentationFormat struct {
	PresentationFormatMetadata
	Details map[string]string `json:"details"`
}
