package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/childlang-lab/cdi-api/internal/models"
)

func TestBuildSingleFilter(t *testing.T) {
	b := NewBuilder(nil)

	info := b.Build([]models.Filter{
		{Field: "study", Operator: "eq", Operand: "wordspurt"},
	}, "snapshots", SearchTemplate)

	assert.Equal(t, "SELECT * FROM snapshots WHERE (study = ?)", info.Statement)

	params, err := info.Params()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"wordspurt"}, params)
}

func TestBuildJoinsClausesWithAnd(t *testing.T) {
	b := NewBuilder(nil)

	info := b.Build([]models.Filter{
		{Field: "study", Operator: "eq", Operand: "wordspurt"},
		{Field: "words_spoken", Operator: "gteq", Operand: "50"},
	}, "snapshots", SearchTemplate)

	assert.Equal(t, "SELECT * FROM snapshots WHERE (study = ?) AND (words_spoken >= ?)", info.Statement)

	params, err := info.Params()
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, "wordspurt", params[0])
	assert.Equal(t, 50.0, params[1])
}

func TestBuildCommaOperandExpandsToDisjunction(t *testing.T) {
	b := NewBuilder(nil)

	info := b.Build([]models.Filter{
		{Field: "study_id", Operator: "eq", Operand: "c1,c2,c3"},
	}, "snapshots", SearchTemplate)

	assert.Equal(t, "SELECT * FROM snapshots WHERE (study_id = ? OR study_id = ? OR study_id = ?)", info.Statement)

	params, err := info.Params()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"c1", "c2", "c3"}, params)
}

func TestBuildDropsUnknownFieldsAndOperators(t *testing.T) {
	b := NewBuilder(nil)

	info := b.Build([]models.Filter{
		{Field: "no_such_column", Operator: "eq", Operand: "x"},
		{Field: "study", Operator: "like", Operand: "x"},
		{Field: "study", Operator: "eq", Operand: "wordspurt"},
	}, "snapshots", SearchTemplate)

	assert.Equal(t, "SELECT * FROM snapshots WHERE (study = ?)", info.Statement)
	assert.Len(t, info.Filters, 1)

	params, err := info.Params()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"wordspurt"}, params)
}

func TestBuildDeleteAndRestoreTemplates(t *testing.T) {
	b := NewBuilder(nil)
	filters := []models.Filter{{Field: "child_id", Operator: "eq", Operand: "255"}}

	soft := b.Build(filters, "snapshots", SoftDeleteTemplate)
	assert.Equal(t, "UPDATE snapshots SET deleted = 1 WHERE (child_id = ?)", soft.Statement)

	restore := b.Build(filters, "snapshots", RestoreTemplate)
	assert.Equal(t, "UPDATE snapshots SET deleted = 0 WHERE (child_id = ?)", restore.Statement)

	hard := b.Build(filters, "snapshots", HardDeleteTemplate)
	assert.Equal(t, "DELETE FROM snapshots WHERE (child_id = ?)", hard.Statement)
}

func TestBuildAliasedFieldsMapToColumns(t *testing.T) {
	b := NewBuilder(nil)

	info := b.Build([]models.Filter{
		{Field: "CDI_type", Operator: "eq", Operand: "fullenglishcdi"},
		{Field: "specific_language", Operator: "eq", Operand: "english"},
	}, "snapshots", SearchTemplate)

	assert.Equal(t, "SELECT * FROM snapshots WHERE (cdi_type = ?) AND (languages = ?)", info.Statement)
}
