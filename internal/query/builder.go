package query

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/childlang-lab/cdi-api/internal/models"
)

// SearchTemplate is the projection used for snapshot searches.
const SearchTemplate = "SELECT * FROM %s WHERE %s"

// SoftDeleteTemplate marks matched snapshots deleted.
const SoftDeleteTemplate = "UPDATE %s SET deleted = 1 WHERE %s"

// RestoreTemplate clears the deleted flag on matched snapshots.
const RestoreTemplate = "UPDATE %s SET deleted = 0 WHERE %s"

// HardDeleteTemplate removes matched snapshots permanently.
const HardDeleteTemplate = "DELETE FROM %s WHERE %s"

// fieldMap is the closed whitelist of filterable fields. Anything outside
// this map is dropped before reaching SQL.
var fieldMap = map[string]FieldInfo{
	"child_id":           NewRawField("child_id"),
	"study_id":           NewRawField("study_id"),
	"study":              NewRawField("study"),
	"gender":             NewGenderField("gender"),
	"birthday":           NewDateField("birthday"),
	"session_date":       NewDateField("session_date"),
	"session_num":        NewNumericalField("session_num"),
	"words_spoken":       NewNumericalField("words_spoken"),
	"items_excluded":     NewNumericalField("items_excluded"),
	"age":                NewNumericalField("age"),
	"total_num_sessions": NewNumericalField("total_num_sessions"),
	"percentile":         NewNumericalField("percentile"),
	"extra_categories":   NewNumericalField("extra_categories"),
	"revision":           NewNumericalField("revision"),
	"CDI_type":           NewRawField("cdi_type"),
	"specific_language":  NewRawField("languages"),
	"num_languages":      NewNumericalField("num_languages"),
	"hard_of_hearing":    NewBooleanField("hard_of_hearing"),
	"deleted":            NewNumericalField("deleted"),
}

// operatorMap is the closed whitelist of comparison operators.
var operatorMap = map[string]string{
	"eq":   "=",
	"neq":  "!=",
	"lt":   "<",
	"lteq": "<=",
	"gt":   ">",
	"gteq": ">=",
}

// QueryInfo carries a compiled parameterized statement together with the
// surviving filters and their field descriptors, in clause order.
type QueryInfo struct {
	Statement string
	Fields    []FieldInfo
	Filters   []models.Filter
}

// Builder compiles filter lists into parameterized SQL. Unknown fields and
// operators are elided silently; the logger records each drop at debug
// level so programmatic misuse stays diagnosable.
type Builder struct {
	logger *zap.Logger
}

// NewBuilder constructs a Builder.
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{logger: logger}
}

// Build substitutes the table and the AND-joined filter clauses into the
// template. Comma operands expand into a parenthesized OR disjunction of
// placeholders, one per value. Operand values never appear in the
// statement.
func (b *Builder) Build(filters []models.Filter, table string, template string) QueryInfo {
	clauses := make([]string, 0, len(filters))
	fields := make([]FieldInfo, 0, len(filters))
	kept := make([]models.Filter, 0, len(filters))

	for _, f := range filters {
		field, ok := fieldMap[f.Field]
		if !ok {
			b.logger.Debug("dropped filter with unknown field", zap.String("field", f.Field))
			continue
		}
		op, ok := operatorMap[f.Operator]
		if !ok {
			b.logger.Debug("dropped filter with unknown operator",
				zap.String("field", f.Field),
				zap.String("operator", f.Operator))
			continue
		}

		terms := make([]string, 0, 1)
		for range f.OperandValues() {
			terms = append(terms, fmt.Sprintf("%s %s ?", field.FieldName(), op))
		}
		clauses = append(clauses, "("+strings.Join(terms, " OR ")+")")
		fields = append(fields, field)
		kept = append(kept, f)
	}

	statement := fmt.Sprintf(template, table, strings.Join(clauses, " AND "))
	return QueryInfo{Statement: statement, Fields: fields, Filters: kept}
}

// Params interprets every surviving operand in clause order and flattens
// the value lists into the bind parameter slice for the statement.
func (info QueryInfo) Params() ([]interface{}, error) {
	var params []interface{}
	for i, field := range info.Fields {
		values, err := field.Interpret(info.Filters[i].Operand)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", info.Filters[i].Field, err)
		}
		params = append(params, values...)
	}
	return params, nil
}
