package league

import (
	"context"
	"testing"

	"league-backend/internal/auth"
	"league-backend/internal/models"
	"league-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return NewService(st, zap.NewNop()), st
}

func admin() *auth.Session {
	return &auth.Session{UID: "admin-test", Admin: true}
}

func guest() *auth.Session {
	return &auth.Session{UID: "guest-test"}
}

func TestCreateTournament(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	first, err := svc.CreateTournament(ctx, admin(), "Spring Cup", models.ModeIndividual, nil)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, models.StatusPreparing, first.Status)
	assert.Equal(t, models.ModeIndividual, first.Mode)
	assert.False(t, first.CreatedAt.IsZero())

	second, err := svc.CreateTournament(ctx, admin(), "Summer Cup", models.ModeTeam, models.TeamConfig{"teamSize": 2})
	require.NoError(t, err)

	reg, err := svc.GetRegistry(ctx)
	require.NoError(t, err)
	require.Len(t, reg.Tournaments, 2)
	assert.Equal(t, second.ID, reg.Tournaments[0].ID, "newest entry is prepended")
	assert.Equal(t, first.ID, reg.Tournaments[1].ID)

	state, err := svc.GetTournament(ctx, first.ID)
	require.NoError(t, err)
	assert.Empty(t, state.Players)
	assert.Empty(t, state.Matches)
	assert.False(t, state.Settings.Started)
	assert.Equal(t, "Spring Cup", state.Settings.Name)
}

func TestCreateTournament_EmptyNameIsNoop(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	entry, err := svc.CreateTournament(ctx, admin(), "   ", models.ModeIndividual, nil)
	require.NoError(t, err)
	assert.Empty(t, entry.ID)

	reg, err := svc.GetRegistry(ctx)
	require.NoError(t, err)
	assert.Empty(t, reg.Tournaments)
}

func TestDeleteTournament_Ordering(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	a, err := svc.CreateTournament(ctx, admin(), "A", models.ModeIndividual, nil)
	require.NoError(t, err)
	b, err := svc.CreateTournament(ctx, admin(), "B", models.ModeIndividual, nil)
	require.NoError(t, err)
	c, err := svc.CreateTournament(ctx, admin(), "C", models.ModeIndividual, nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTournament(ctx, admin(), b.ID))

	reg, err := svc.GetRegistry(ctx)
	require.NoError(t, err)
	require.Len(t, reg.Tournaments, 2)
	assert.Equal(t, c.ID, reg.Tournaments[0].ID, "order of the others is preserved")
	assert.Equal(t, a.ID, reg.Tournaments[1].ID)

	snap, err := st.Get(ctx, store.TournamentKey(b.ID))
	require.NoError(t, err)
	assert.False(t, snap.Exists, "tournament document is removed")
}

func TestDeleteTournament_UnknownIDIsNoop(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	a, err := svc.CreateTournament(ctx, admin(), "A", models.ModeIndividual, nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTournament(ctx, admin(), "missing"))

	reg, err := svc.GetRegistry(ctx)
	require.NoError(t, err)
	require.Len(t, reg.Tournaments, 1)
	assert.Equal(t, a.ID, reg.Tournaments[0].ID)
}

func TestRenameTournament_Propagation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	a, err := svc.CreateTournament(ctx, admin(), "Old A", models.ModeIndividual, nil)
	require.NoError(t, err)
	b, err := svc.CreateTournament(ctx, admin(), "Old B", models.ModeIndividual, nil)
	require.NoError(t, err)

	// Renaming the selected tournament updates both copies of the name
	require.NoError(t, svc.RenameTournament(ctx, admin(), a.ID, "New A", a.ID))
	reg, err := svc.GetRegistry(ctx)
	require.NoError(t, err)
	assert.Equal(t, "New A", reg.Tournaments[reg.Find(a.ID)].Name)
	state, err := svc.GetTournament(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "New A", state.Settings.Name)

	// Renaming a non-selected tournament touches only the registry
	require.NoError(t, svc.RenameTournament(ctx, admin(), b.ID, "New B", a.ID))
	reg, err = svc.GetRegistry(ctx)
	require.NoError(t, err)
	assert.Equal(t, "New B", reg.Tournaments[reg.Find(b.ID)].Name)
	state, err = svc.GetTournament(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Old B", state.Settings.Name)
}

func TestRenameTournament_EmptyNameRejected(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	a, err := svc.CreateTournament(ctx, admin(), "Keep", models.ModeIndividual, nil)
	require.NoError(t, err)

	require.NoError(t, svc.RenameTournament(ctx, admin(), a.ID, "   ", ""))

	reg, err := svc.GetRegistry(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Keep", reg.Tournaments[0].Name)
}

func TestUpdateChampionships_DeleteOnZero(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()
	label := models.PairLabel("Bob", "Carol")

	require.NoError(t, svc.UpdateChampionships(ctx, admin(), label, 2))

	snap, err := st.Get(ctx, store.KeyChampionships)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Bob & Carol": 2}`, string(snap.Data))

	require.NoError(t, svc.UpdateChampionships(ctx, admin(), label, 0))

	snap, err = st.Get(ctx, store.KeyChampionships)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(snap.Data), "zero-count keys are deleted, never stored")
}

func TestResetChampionships(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.UpdateChampionships(ctx, admin(), models.PairLabel("A", "B"), 5))
	require.NoError(t, svc.ResetChampionships(ctx, admin()))

	snap, err := st.Get(ctx, store.KeyChampionships)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(snap.Data))
}

func TestUpdateSeriesTeams(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.UpdateSeriesTeams(ctx, admin(), "a1", "a2", "b1", "b2"))

	snap, err := st.Get(ctx, store.KeySeriesTeams)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"teamA": {"player1": "a1", "player2": "a2"},
		"teamB": {"player1": "b1", "player2": "b2"}
	}`, string(snap.Data))
}

func TestSaveTournamentData(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	a, err := svc.CreateTournament(ctx, admin(), "A", models.ModeIndividual, nil)
	require.NoError(t, err)

	state, err := svc.GetTournament(ctx, a.ID)
	require.NoError(t, err)
	state.Players = append(state.Players, models.Player{ID: "p1", Name: "Dave"})
	state.Settings.Started = true
	require.NoError(t, svc.SaveTournamentData(ctx, admin(), a.ID, *state))

	got, err := svc.GetTournament(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, got.Players, 1)
	assert.True(t, got.Settings.Started)

	// No selection, no write
	require.NoError(t, svc.SaveTournamentData(ctx, admin(), "", *state))
}

func TestUpdateStatus(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	a, err := svc.CreateTournament(ctx, admin(), "A", models.ModeIndividual, nil)
	require.NoError(t, err)

	require.NoError(t, svc.UpdateStatus(ctx, admin(), a.ID, models.StatusInProgress))

	reg, err := svc.GetRegistry(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, reg.Tournaments[0].Status)

	// No selection is a no-op
	require.NoError(t, svc.UpdateStatus(ctx, admin(), "", models.StatusCompleted))
	reg, err = svc.GetRegistry(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, reg.Tournaments[0].Status)
}

// TestAdminGate drives every mutation as a guest and asserts all four
// documents come out byte-for-byte unchanged.
func TestAdminGate(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	a, err := svc.CreateTournament(ctx, admin(), "A", models.ModeIndividual, nil)
	require.NoError(t, err)
	require.NoError(t, svc.UpdateChampionships(ctx, admin(), models.PairLabel("X", "Y"), 1))
	require.NoError(t, svc.UpdateSeriesTeams(ctx, admin(), "a1", "a2", "b1", "b2"))

	keys := []string{
		store.KeyRegistry,
		store.KeyChampionships,
		store.KeySeriesTeams,
		store.TournamentKey(a.ID),
	}
	before := make(map[string]store.Snapshot, len(keys))
	for _, key := range keys {
		snap, err := st.Get(ctx, key)
		require.NoError(t, err)
		before[key] = snap
	}

	g := guest()
	created, err := svc.CreateTournament(ctx, g, "Nope", models.ModeTeam, nil)
	require.NoError(t, err)
	assert.Empty(t, created.ID)
	require.NoError(t, svc.DeleteTournament(ctx, g, a.ID))
	require.NoError(t, svc.RenameTournament(ctx, g, a.ID, "Nope", a.ID))
	require.NoError(t, svc.UpdateChampionships(ctx, g, models.PairLabel("X", "Y"), 9))
	require.NoError(t, svc.ResetChampionships(ctx, g))
	require.NoError(t, svc.UpdateSeriesTeams(ctx, g, "q", "w", "e", "r"))
	require.NoError(t, svc.SaveTournamentData(ctx, g, a.ID, models.TournamentState{}))
	require.NoError(t, svc.UpdateStatus(ctx, g, a.ID, models.StatusCompleted))
	_, _, err = svc.PurgeLegacyChampionships(ctx, g)
	require.NoError(t, err)
	_, err = svc.Repair(ctx, g)
	require.NoError(t, err)

	for _, key := range keys {
		snap, err := st.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, before[key].Exists, snap.Exists, key)
		assert.Equal(t, before[key].Data, snap.Data, key)
	}
}

func TestPurgeLegacyChampionships(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	require.NoError(t, st.Set(ctx, store.KeyChampionships, models.Championships{
		"Alice":       3,
		"Bob & Carol": 2,
		"Dave & Erin": 0,
	}))

	clean, changed, err := svc.PurgeLegacyChampionships(ctx, admin())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.Championships{"Bob & Carol": 2}, clean)

	snap, err := st.Get(ctx, store.KeyChampionships)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Bob & Carol": 2}`, string(snap.Data))

	// Second run is a no-op
	clean, changed, err = svc.PurgeLegacyChampionships(ctx, admin())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, models.Championships{"Bob & Carol": 2}, clean)
}

func TestRepair(t *testing.T) {
	svc, st := setup(t)
	ctx := context.Background()

	ok, err := svc.CreateTournament(ctx, admin(), "Healthy", models.ModeIndividual, nil)
	require.NoError(t, err)

	// Dangling registry entry: present in the registry, no document
	reg, err := svc.GetRegistry(ctx)
	require.NoError(t, err)
	reg.Tournaments = append(reg.Tournaments, models.TournamentSummary{
		ID: "dangling", Name: "Ghost", Status: models.StatusPreparing, Mode: models.ModeIndividual,
	})
	require.NoError(t, st.Set(ctx, store.KeyRegistry, reg))

	// Orphan document: present in the store, no registry entry
	require.NoError(t, st.Set(ctx, store.TournamentKey("orphan"),
		models.NewTournamentState("Orphan", models.ModeIndividual, nil)))

	report, err := svc.Repair(ctx, admin())
	require.NoError(t, err)
	assert.Equal(t, []string{"dangling"}, report.DanglingEntries)
	assert.Equal(t, []string{"orphan"}, report.OrphanDocuments)

	reg, err = svc.GetRegistry(ctx)
	require.NoError(t, err)
	require.Len(t, reg.Tournaments, 1)
	assert.Equal(t, ok.ID, reg.Tournaments[0].ID)

	// Orphan documents are reported, not deleted
	snap, err := st.Get(ctx, store.TournamentKey("orphan"))
	require.NoError(t, err)
	assert.True(t, snap.Exists)
}
