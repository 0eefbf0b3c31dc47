package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/journal-access-sync/internal/config"
)

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"missing", "null", "n/a"}, splitList([]string{"missing, null,n/a"}))
	assert.Equal(t, []string{"a", "b"}, splitList([]string{"a", "", " b "}))
	assert.Nil(t, splitList(nil))
}

func TestFilterInstitutions(t *testing.T) {
	all := []*config.InstitutionConfig{
		{InstitutionName: "University of Oxford", InstitutionCode: "ox"},
		{InstitutionName: "University of Leeds", InstitutionCode: "le"},
	}

	kept, err := filterInstitutions(all, nil)
	require.NoError(t, err)
	assert.Len(t, kept, 2)

	kept, err = filterInstitutions(all, []string{"le"})
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, "University of Leeds", kept[0].InstitutionName)

	_, err = filterInstitutions(all, []string{"cam"})
	assert.ErrorContains(t, err, `unknown institution code "cam"`)
}
