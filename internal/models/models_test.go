package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairLabel(t *testing.T) {
	label := PairLabel("Bob", "Carol")
	assert.Equal(t, "Bob & Carol", label)
	assert.True(t, IsPairLabel(label))
	assert.False(t, IsPairLabel("Alice"))
}

func TestChampionships_NeedsRepair(t *testing.T) {
	assert.False(t, Championships{}.NeedsRepair(), "empty leaderboard is clean")
	assert.True(t, Championships{"Alice": 3, "Bob": 1}.NeedsRepair())
	assert.False(t, Championships{"Alice": 3, "Bob & Carol": 2}.NeedsRepair(),
		"any paired key means the migration already ran")
	assert.False(t, Championships{"Bob & Carol": 2}.NeedsRepair())
}

func TestChampionships_Purge(t *testing.T) {
	in := Championships{
		"Alice":       3,
		"Bob & Carol": 2,
		"Dave & Erin": 0,
	}
	out := in.Purge()
	assert.Equal(t, Championships{"Bob & Carol": 2}, out)

	// Purging clean data changes nothing
	assert.Equal(t, out, out.Purge())
	assert.False(t, out.NeedsRepair())
}

func TestRegistry_Find(t *testing.T) {
	reg := Registry{Tournaments: []TournamentSummary{
		{ID: "a"}, {ID: "b"}, {ID: "c"},
	}}
	assert.Equal(t, 1, reg.Find("b"))
	assert.Equal(t, -1, reg.Find("missing"))
	assert.Equal(t, -1, Registry{}.Find("a"))
}

func TestNewTournamentState(t *testing.T) {
	state := NewTournamentState("Spring Cup", ModeIndividual, nil)
	assert.Empty(t, state.Players)
	assert.NotNil(t, state.Players)
	assert.Empty(t, state.Matches)
	assert.NotNil(t, state.Matches)
	assert.False(t, state.Settings.Started)
	assert.Equal(t, "Spring Cup", state.Settings.Name)
	assert.Equal(t, ModeIndividual, state.Settings.Mode)
}
