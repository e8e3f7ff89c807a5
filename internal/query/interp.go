package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/childlang-lab/cdi-api/internal/models"
)

// FieldInfo interprets raw filter operands for one snapshot column. A
// comma-joined operand yields one interpreted value per element.
type FieldInfo interface {
	FieldName() string
	Interpret(raw string) ([]interface{}, error)
}

// RawField passes operand values through without interpretation.
type RawField struct {
	name string
}

// NewRawField binds a raw interpreter to a column.
func NewRawField(name string) RawField {
	return RawField{name: name}
}

// FieldName returns the stored column name.
func (f RawField) FieldName() string { return f.name }

// Interpret comma-splits the operand and returns the elements verbatim.
func (f RawField) Interpret(raw string) ([]interface{}, error) {
	parts := strings.Split(raw, ",")
	values := make([]interface{}, len(parts))
	for i, part := range parts {
		values[i] = part
	}
	return values, nil
}

// DateField normalizes date operands to YYYY/MM/DD.
type DateField struct {
	name string
}

// NewDateField binds a date interpreter to a column.
func NewDateField(name string) DateField {
	return DateField{name: name}
}

// FieldName returns the stored column name.
func (f DateField) FieldName() string { return f.name }

// Interpret parses each element as MM/DD/YYYY or YYYY/MM/DD.
func (f DateField) Interpret(raw string) ([]interface{}, error) {
	parts := strings.Split(raw, ",")
	values := make([]interface{}, len(parts))
	for i, part := range parts {
		normalized, err := NormalizeDate(part)
		if err != nil {
			return nil, err
		}
		values[i] = normalized
	}
	return values, nil
}

// NormalizeDate converts an accepted date string to YYYY/MM/DD. Dashes are
// treated as slashes so YYYY-MM-DD input also parses.
func NormalizeDate(raw string) (string, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), "-", "/")
	for _, layout := range []string{"2006/01/02", "01/02/2006"} {
		if parsed, err := time.Parse(layout, cleaned); err == nil {
			return parsed.Format("2006/01/02"), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", raw)
}

// GenderField converts gender descriptions to their sentinel codes.
type GenderField struct {
	name string
}

// NewGenderField binds a gender interpreter to a column.
func NewGenderField(name string) GenderField {
	return GenderField{name: name}
}

// FieldName returns the stored column name.
func (f GenderField) FieldName() string { return f.name }

var (
	maleValues   = []string{"male", "boy", "man"}
	femaleValues = []string{"female", "girl", "lady", "woman"}
	otherValues  = []string{"other", "transgender", "trans", "intersex"}
)

// Interpret maps each element onto a gender sentinel.
func (f GenderField) Interpret(raw string) ([]interface{}, error) {
	parts := strings.Split(raw, ",")
	values := make([]interface{}, len(parts))
	for i, part := range parts {
		lowered := strings.ToLower(strings.TrimSpace(part))
		switch {
		case contains(maleValues, lowered):
			values[i] = models.Male
		case contains(femaleValues, lowered):
			values[i] = models.Female
		case contains(otherValues, lowered):
			values[i] = models.OtherGender
		default:
			return nil, fmt.Errorf("unrecognized gender %q", part)
		}
	}
	return values, nil
}

// BooleanField converts yes/no style operands to boolean sentinels.
type BooleanField struct {
	name string
}

// NewBooleanField binds a boolean interpreter to a column.
func NewBooleanField(name string) BooleanField {
	return BooleanField{name: name}
}

// FieldName returns the stored column name.
func (f BooleanField) FieldName() string { return f.name }

var (
	trueValues  = []string{"true", "yes", "y", "t", "on"}
	falseValues = []string{"false", "no", "n", "f", "off"}
)

// Interpret maps each element to the explicit true/false sentinel.
func (f BooleanField) Interpret(raw string) ([]interface{}, error) {
	parts := strings.Split(raw, ",")
	values := make([]interface{}, len(parts))
	for i, part := range parts {
		lowered := strings.ToLower(strings.TrimSpace(part))
		switch {
		case contains(trueValues, lowered):
			values[i] = models.ExplicitTrue
		case contains(falseValues, lowered):
			values[i] = models.ExplicitFalse
		default:
			return nil, fmt.Errorf("unrecognized boolean %q", part)
		}
	}
	return values, nil
}

// NumericalField coerces operand elements to floats. Elements that fail to
// parse are kept as the original string so malformed search input binds
// verbatim and simply matches nothing.
type NumericalField struct {
	name string
}

// NewNumericalField binds a numerical interpreter to a column.
func NewNumericalField(name string) NumericalField {
	return NumericalField{name: name}
}

// FieldName returns the stored column name.
func (f NumericalField) FieldName() string { return f.name }

// Interpret parses each element as a float when possible.
func (f NumericalField) Interpret(raw string) ([]interface{}, error) {
	parts := strings.Split(raw, ",")
	values := make([]interface{}, len(parts))
	for i, part := range parts {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(part), 64); err == nil {
			values[i] = parsed
		} else {
			values[i] = part
		}
	}
	return values, nil
}

func contains(haystack []string, needle string) bool {
	for _, candidate := range haystack {
		if candidate == needle {
			return true
		}
	}
	return false
}
