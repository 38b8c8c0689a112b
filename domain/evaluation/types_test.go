package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredictionColumnName(t *testing.T) {
	assert.Equal(t, "mod_PGS", PredictionColumnName([]string{"PGS"}))
	assert.Equal(t, "mod_PGS+DEL+LOF", PredictionColumnName([]string{"PGS", "DEL", "LOF"}))
}

func TestFoldLabel_RoundTrip(t *testing.T) {
	for _, f := range []FoldLabel{0, 3, 9, ValidationFold} {
		parsed, ok := ParseFoldLabel(f.String())
		assert.True(t, ok)
		assert.Equal(t, f, parsed)
	}

	_, ok := ParseFoldLabel("")
	assert.False(t, ok)
	_, ok = ParseFoldLabel("-4")
	assert.False(t, ok)

	assert.True(t, ValidationFold.IsValidation())
	assert.False(t, ValidationFold.IsTraining())
	assert.True(t, FoldLabel(0).IsTraining())
	assert.False(t, Unassigned().IsTraining())
	assert.Equal(t, "", Unassigned().String())
}
