package casefeed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHeader(t *testing.T) {
	header := strings.Split(strings.TrimSpace(feedHeader), ",")
	idx, err := ValidateHeader(header)
	require.NoError(t, err)
	assert.Len(t, idx, 16)
	assert.Equal(t, 0, idx[ColReportDate])
	assert.Equal(t, 15, idx[ColNewRecover])
}

func TestValidateHeader_MissingCategoricalColumn(t *testing.T) {
	var header []string
	for _, f := range DefaultSchema() {
		if f.Column != ColGender {
			header = append(header, f.Column)
		}
	}
	_, err := ValidateHeader(header)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns: person_gender")
}

func TestDefaultSchema_CategoricalColumnsRequired(t *testing.T) {
	want := map[string]bool{ColGender: true, ColAgeGroup: true, ColConditions: true, ColMedicalWorker: true}
	for _, f := range DefaultSchema() {
		if want[f.Column] {
			assert.True(t, f.Required, f.Column)
			assert.False(t, f.NotEmpty, f.Column)
			delete(want, f.Column)
		}
	}
	assert.Empty(t, want)
}

func TestValidateHeader_NormalizesNames(t *testing.T) {
	header := strings.Split(strings.TrimSpace(feedHeader), ",")
	header[0] = "  ZVIT_DATE "
	idx, err := ValidateHeader(header)
	require.NoError(t, err)
	assert.Equal(t, 0, idx[ColReportDate])
}

func TestValidateHeader_Duplicate(t *testing.T) {
	header := append(strings.Split(strings.TrimSpace(feedHeader), ","), "new_susp")
	_, err := ValidateHeader(header)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate column "new_susp"`)
}

func TestValidateHeader_MissingListsAllSorted(t *testing.T) {
	_, err := ValidateHeader([]string{"zvit_date"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "active_confirm, edrpou_hosp")
}

func TestDefaultSchema_CountColumnsDefaultToZero(t *testing.T) {
	for _, f := range DefaultSchema() {
		if f.Kind == KindInt || f.Kind == KindCount {
			assert.Equal(t, "0", f.Default, f.Column)
			assert.True(t, f.Required, f.Column)
		}
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "count", KindCount.String())
	assert.Equal(t, "unknown", Kind(42).String())
}
