package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/childlang-lab/cdi-api/internal/models"
)

func TestRawFieldPassesValuesThrough(t *testing.T) {
	f := NewRawField("study")
	values, err := f.Interpret("wordspurt,lexsnap")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"wordspurt", "lexsnap"}, values)
}

func TestDateFieldNormalizesLayouts(t *testing.T) {
	f := NewDateField("birthday")

	values, err := f.Interpret("01/15/2014")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"2014/01/15"}, values)

	values, err = f.Interpret("2014/01/15")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"2014/01/15"}, values)

	values, err = f.Interpret("2014-01-15")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"2014/01/15"}, values)

	_, err = f.Interpret("January 15th")
	assert.Error(t, err)
}

func TestGenderFieldMapsDescriptionsToSentinels(t *testing.T) {
	f := NewGenderField("gender")

	values, err := f.Interpret("male,female,other")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{models.Male, models.Female, models.OtherGender}, values)

	values, err = f.Interpret("Boy")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{models.Male}, values)

	_, err = f.Interpret("unknown")
	assert.Error(t, err)
}

func TestBooleanFieldMapsToExplicitSentinels(t *testing.T) {
	f := NewBooleanField("hard_of_hearing")

	values, err := f.Interpret("yes,no")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{models.ExplicitTrue, models.ExplicitFalse}, values)

	_, err = f.Interpret("maybe")
	assert.Error(t, err)
}

func TestNumericalFieldKeepsUnparsableElements(t *testing.T) {
	f := NewNumericalField("words_spoken")

	values, err := f.Interpret("50, 75.5,garbage")
	require.NoError(t, err)
	require.Len(t, values, 3)
	assert.Equal(t, 50.0, values[0])
	assert.Equal(t, 75.5, values[1])
	assert.Equal(t, "garbage", values[2])
}
