package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableFirstMatchWins(t *testing.T) {
	table, err := NewTable(
		Rule{Pattern: "/a/b/**", Require: []string{"P1"}},
		Rule{Pattern: "/a/**", Require: []string{"P2"}},
	)
	require.NoError(t, err)

	rule, ok := table.Match("/a/b/x")
	require.True(t, ok)
	assert.Equal(t, "/a/b/**", rule.Pattern)
	assert.Equal(t, []string{"P1"}, rule.Require)

	rule, ok = table.Match("/a/c")
	require.True(t, ok)
	assert.Equal(t, "/a/**", rule.Pattern)
}

func TestTableNoMatch(t *testing.T) {
	table := MustTable(Rule{Pattern: "/users/**", Require: []string{"USER_VIEW"}})

	_, ok := table.Match("/classes/1")
	assert.False(t, ok)
}

func TestPatternCoversBasePath(t *testing.T) {
	table := MustTable(Rule{Pattern: "/users/**", Require: []string{"USER_VIEW"}})

	_, ok := table.Match("/users")
	assert.True(t, ok, "/users/** should cover /users itself")

	_, ok = table.Match("/users/42/edit")
	assert.True(t, ok)
}

func TestNewTableRejectsInvalidPattern(t *testing.T) {
	_, err := NewTable(Rule{Pattern: "/a/[", Require: []string{"P1"}})
	assert.Error(t, err)

	_, err = NewTable(Rule{Require: []string{"P1"}})
	assert.Error(t, err)
}

func TestRuleSatisfiedAnyMode(t *testing.T) {
	rule := Rule{Require: []string{"USER_VIEW", "USER_EDIT"}, Mode: MatchAny}

	assert.True(t, rule.Satisfied([]string{"USER_EDIT"}))
	assert.True(t, rule.Satisfied([]string{"CLASS_VIEW", "USER_VIEW"}))
	assert.False(t, rule.Satisfied([]string{"CLASS_VIEW"}))
	assert.False(t, rule.Satisfied(nil))
}

func TestRuleSatisfiedAllMode(t *testing.T) {
	rule := Rule{Require: []string{"USER_VIEW", "USER_EDIT"}, Mode: MatchAll}

	assert.False(t, rule.Satisfied([]string{"USER_EDIT"}))
	assert.True(t, rule.Satisfied([]string{"USER_EDIT", "USER_VIEW"}))
}

func TestRuleSatisfiedCaseSensitive(t *testing.T) {
	rule := Rule{Require: []string{"USER_VIEW"}}

	assert.False(t, rule.Satisfied([]string{"user_view"}))
}

func TestDefaultPolicyOrdering(t *testing.T) {
	table := DefaultPolicy()

	rule, ok := table.Match("/reports/export/transcripts")
	require.True(t, ok)
	assert.Equal(t, "/reports/export/**", rule.Pattern, "export rule must precede the broad reports rule")

	rule, ok = table.Match("/reports/weekly")
	require.True(t, ok)
	assert.Equal(t, "/reports/**", rule.Pattern)
}
