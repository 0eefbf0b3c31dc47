package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/journal-access-sync/internal/types"
	"github.com/ginjaninja78/journal-access-sync/internal/validation"
)

func registry() *types.CanonicalRegistry {
	return &types.CanonicalRegistry{Entries: []types.RegistryEntry{
		{Journal: "A", ISSN: "0028-0836"},
		{Journal: "B", ISSN: "0036-8075"},
		{Journal: "C", ISSN: "0046-225X"},
	}}
}

func TestCheckCompleteness(t *testing.T) {
	reg := registry()

	t.Run("complete", func(t *testing.T) {
		s := sheet(
			[]string{"C", "0046-225X", "1", ""},
			[]string{"A", "0028-0836", "0", ""},
			[]string{"B", "0036-8075", "1", ""},
		)
		ok, missing := validation.CheckCompleteness(s, reg.Journals())
		assert.True(t, ok)
		assert.Empty(t, missing)
	})

	t.Run("missing journals are sorted", func(t *testing.T) {
		s := sheet([]string{"B", "0036-8075", "1", ""})
		ok, missing := validation.CheckCompleteness(s, reg.Journals())
		assert.False(t, ok)
		assert.Equal(t, []string{"A", "C"}, missing)
	})

	t.Run("comparison is exact", func(t *testing.T) {
		s := sheet(
			[]string{"a", "0028-0836", "1", ""},
			[]string{"B ", "0036-8075", "1", ""},
			[]string{"C", "0046-225X", "1", ""},
		)
		ok, missing := validation.CheckCompleteness(s, reg.Journals())
		assert.False(t, ok)
		assert.Equal(t, []string{"A", "B"}, missing)
	})

	t.Run("extra sheet journals are allowed", func(t *testing.T) {
		s := sheet(
			[]string{"A", "0028-0836", "1", ""},
			[]string{"B", "0036-8075", "1", ""},
			[]string{"C", "0046-225X", "1", ""},
			[]string{"D", "0317-8471", "1", ""},
		)
		ok, _ := validation.CheckCompleteness(s, reg.Journals())
		assert.True(t, ok)
	})
}

func TestCheckConsistency(t *testing.T) {
	reg := registry().ISSNByJournal()

	t.Run("consistent", func(t *testing.T) {
		ok, mismatched := validation.CheckConsistency(reg, map[string][]string{
			"A": {"0028-0836"},
			"B": {"0036-8075"},
		})
		assert.True(t, ok)
		assert.Empty(t, mismatched)
	})

	t.Run("sheet-only journals are ignored", func(t *testing.T) {
		ok, _ := validation.CheckConsistency(reg, map[string][]string{
			"Z": {"1234-5679"},
		})
		assert.True(t, ok)
	})

	t.Run("mismatches are sorted", func(t *testing.T) {
		ok, mismatched := validation.CheckConsistency(reg, map[string][]string{
			"C": {"0317-8471"},
			"A": {"0028-0836", "2049-3630"},
			"B": {"0036-8075"},
		})
		assert.False(t, ok)
		assert.Equal(t, []string{"A", "C"}, mismatched)
	})
}

func TestSheetISSNs(t *testing.T) {
	s := sheet(
		[]string{"A", "0028-0836", "1", ""},
		[]string{"A", "2049-3630", "0", ""},
		[]string{"B", "0036-8075", "1", ""},
	)
	assert.Equal(t, map[string][]string{
		"A": {"0028-0836", "2049-3630"},
		"B": {"0036-8075"},
	}, validation.SheetISSNs(s))
}

func TestValidateRegistry(t *testing.T) {
	assert.NoError(t, validation.ValidateRegistry(registry()))

	assert.ErrorContains(t, validation.ValidateRegistry(nil), "empty")
	assert.ErrorContains(t, validation.ValidateRegistry(&types.CanonicalRegistry{}), "empty")

	bad := &types.CanonicalRegistry{Entries: []types.RegistryEntry{
		{Journal: "A", ISSN: "0028-0836"},
		{Journal: "A", ISSN: "0036-8075"},
		{Journal: "B", ISSN: "0028-0837"},
		{Journal: " ", ISSN: "0046-225X"},
	}}
	err := validation.ValidateRegistry(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 invalid registry entries")
	assert.Contains(t, err.Error(), `journal "A" already listed at entry 1`)
	assert.Contains(t, err.Error(), `journal "B" issn "0028-0837"`)
	assert.Contains(t, err.Error(), "entry 4: blank journal name")
}
