package league

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"league-backend/internal/auth"
	"league-backend/internal/models"
	"league-backend/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service is the mutation layer: every operation is a whole-document write
// against the store, gated on the session's admin flag. Non-admin calls are
// logged and dropped without error and without partial effect.
type Service struct {
	store store.Store
	log   *zap.Logger
}

func NewService(s store.Store, log *zap.Logger) *Service {
	return &Service{store: s, log: log}
}

func (s *Service) allowed(sess *auth.Session, op string) bool {
	if sess != nil && sess.Admin {
		return true
	}
	s.log.Warn("rejected non-admin mutation", zap.String("op", op))
	return false
}

// GetRegistry reads the registry once. An absent document is an empty list.
func (s *Service) GetRegistry(ctx context.Context) (models.Registry, error) {
	var reg models.Registry
	snap, err := s.store.Get(ctx, store.KeyRegistry)
	if err != nil {
		return reg, err
	}
	if snap.Exists {
		if err := json.Unmarshal(snap.Data, &reg); err != nil {
			return reg, fmt.Errorf("decoding registry: %w", err)
		}
	}
	return reg, nil
}

// GetTournament reads one tournament document once.
func (s *Service) GetTournament(ctx context.Context, id string) (*models.TournamentState, error) {
	snap, err := s.store.Get(ctx, store.TournamentKey(id))
	if err != nil {
		return nil, err
	}
	if !snap.Exists {
		return nil, store.ErrNotFound
	}
	var state models.TournamentState
	if err := json.Unmarshal(snap.Data, &state); err != nil {
		return nil, fmt.Errorf("decoding tournament %s: %w", id, err)
	}
	return &state, nil
}

func (s *Service) getChampionships(ctx context.Context) (models.Championships, error) {
	champs := models.Championships{}
	snap, err := s.store.Get(ctx, store.KeyChampionships)
	if err != nil {
		return champs, err
	}
	if snap.Exists {
		if err := json.Unmarshal(snap.Data, &champs); err != nil {
			return champs, fmt.Errorf("decoding championships: %w", err)
		}
	}
	return champs, nil
}

// CreateTournament prepends a registry entry and then writes the empty
// tournament document. The two writes are independent: if the second fails
// the registry entry stays behind as a dangling row, the error is returned
// for the caller to surface, and Repair can reconcile it later.
func (s *Service) CreateTournament(ctx context.Context, sess *auth.Session, name string, mode models.TournamentMode, teamConfig models.TeamConfig) (models.TournamentSummary, error) {
	if !s.allowed(sess, "createTournament") {
		return models.TournamentSummary{}, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		s.log.Warn("rejected tournament creation with empty name")
		return models.TournamentSummary{}, nil
	}

	entry := models.TournamentSummary{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now(),
		Status:    models.StatusPreparing,
		Mode:      mode,
	}

	reg, err := s.GetRegistry(ctx)
	if err != nil {
		return models.TournamentSummary{}, err
	}
	reg.Tournaments = append([]models.TournamentSummary{entry}, reg.Tournaments...)
	if err := s.store.Set(ctx, store.KeyRegistry, reg); err != nil {
		return models.TournamentSummary{}, fmt.Errorf("writing registry: %w", err)
	}

	state := models.NewTournamentState(name, mode, teamConfig)
	if err := s.store.Set(ctx, store.TournamentKey(entry.ID), state); err != nil {
		s.log.Error("tournament document write failed after registry update",
			zap.String("id", entry.ID), zap.Error(err))
		return entry, fmt.Errorf("writing tournament %s: %w", entry.ID, err)
	}

	s.log.Info("created tournament",
		zap.String("id", entry.ID), zap.String("name", name), zap.String("mode", string(mode)))
	return entry, nil
}

// DeleteTournament removes the registry entry first and the tournament
// document second, so no client can re-subscribe to a tournament that is
// about to disappear. Deleting an unknown id is a no-op.
func (s *Service) DeleteTournament(ctx context.Context, sess *auth.Session, id string) error {
	if !s.allowed(sess, "deleteTournament") {
		return nil
	}

	reg, err := s.GetRegistry(ctx)
	if err != nil {
		return err
	}
	idx := reg.Find(id)
	if idx < 0 {
		return nil
	}
	reg.Tournaments = append(reg.Tournaments[:idx], reg.Tournaments[idx+1:]...)
	if err := s.store.Set(ctx, store.KeyRegistry, reg); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}

	if err := s.store.Delete(ctx, store.TournamentKey(id)); err != nil {
		return fmt.Errorf("deleting tournament %s: %w", id, err)
	}

	s.log.Info("deleted tournament", zap.String("id", id))
	return nil
}

// RenameTournament updates the registry entry's name. When the renamed
// tournament is the selected one, the copy of the name inside its settings
// is rewritten too so the two stay consistent.
func (s *Service) RenameTournament(ctx context.Context, sess *auth.Session, id, newName, selectedID string) error {
	if !s.allowed(sess, "renameTournament") {
		return nil
	}
	newName = strings.TrimSpace(newName)
	if newName == "" {
		s.log.Warn("rejected rename with empty name", zap.String("id", id))
		return nil
	}

	reg, err := s.GetRegistry(ctx)
	if err != nil {
		return err
	}
	idx := reg.Find(id)
	if idx < 0 {
		return nil
	}
	reg.Tournaments[idx].Name = newName
	if err := s.store.Set(ctx, store.KeyRegistry, reg); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}

	if id == selectedID {
		state, err := s.GetTournament(ctx, id)
		if err != nil {
			if err == store.ErrNotFound {
				return nil
			}
			return err
		}
		state.Settings.Name = newName
		if err := s.store.Set(ctx, store.TournamentKey(id), *state); err != nil {
			return fmt.Errorf("writing tournament %s: %w", id, err)
		}
	}
	return nil
}

// UpdateChampionships merges one pairing label into the leaderboard and
// writes the whole mapping back. A zero count deletes the key. The
// read-then-write is not atomic: two admins racing on the same document
// resolve last-write-wins.
func (s *Service) UpdateChampionships(ctx context.Context, sess *auth.Session, label string, count int) error {
	if !s.allowed(sess, "updateChampionships") {
		return nil
	}

	champs, err := s.getChampionships(ctx)
	if err != nil {
		return err
	}
	if count <= 0 {
		delete(champs, label)
	} else {
		champs[label] = count
	}
	if err := s.store.Set(ctx, store.KeyChampionships, champs); err != nil {
		return fmt.Errorf("writing championships: %w", err)
	}
	return nil
}

// ResetChampionships overwrites the leaderboard with an empty mapping.
func (s *Service) ResetChampionships(ctx context.Context, sess *auth.Session) error {
	if !s.allowed(sess, "resetChampionships") {
		return nil
	}
	if err := s.store.Set(ctx, store.KeyChampionships, models.Championships{}); err != nil {
		return fmt.Errorf("writing championships: %w", err)
	}
	return nil
}

// UpdateSeriesTeams overwrites the fixed two-team pairing.
func (s *Service) UpdateSeriesTeams(ctx context.Context, sess *auth.Session, a1, a2, b1, b2 string) error {
	if !s.allowed(sess, "updateSeriesTeams") {
		return nil
	}
	teams := models.SeriesTeams{
		TeamA: models.TeamPair{Player1: a1, Player2: a2},
		TeamB: models.TeamPair{Player1: b1, Player2: b2},
	}
	if err := s.store.Set(ctx, store.KeySeriesTeams, teams); err != nil {
		return fmt.Errorf("writing series teams: %w", err)
	}
	return nil
}

// SaveTournamentData overwrites the selected tournament document wholesale.
// No-op when nothing is selected.
func (s *Service) SaveTournamentData(ctx context.Context, sess *auth.Session, id string, state models.TournamentState) error {
	if !s.allowed(sess, "saveTournamentData") {
		return nil
	}
	if id == "" {
		return nil
	}
	if err := s.store.Set(ctx, store.TournamentKey(id), state); err != nil {
		return fmt.Errorf("writing tournament %s: %w", id, err)
	}
	return nil
}

// UpdateStatus patches the registry entry's status for the selected
// tournament. No-op when nothing is selected.
func (s *Service) UpdateStatus(ctx context.Context, sess *auth.Session, id string, status models.TournamentStatus) error {
	if !s.allowed(sess, "updateStatus") {
		return nil
	}
	if id == "" {
		return nil
	}

	reg, err := s.GetRegistry(ctx)
	if err != nil {
		return err
	}
	idx := reg.Find(id)
	if idx < 0 {
		return nil
	}
	reg.Tournaments[idx].Status = status
	if err := s.store.Set(ctx, store.KeyRegistry, reg); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	return nil
}

// PurgeLegacyChampionships rewrites the leaderboard with legacy
// individual-player keys and zero-count pairs removed. Returns the cleaned
// mapping and whether a corrective write happened. Running it on clean data
// changes nothing, so repeated runs are safe.
func (s *Service) PurgeLegacyChampionships(ctx context.Context, sess *auth.Session) (models.Championships, bool, error) {
	if !s.allowed(sess, "purgeLegacyChampionships") {
		return nil, false, nil
	}

	champs, err := s.getChampionships(ctx)
	if err != nil {
		return nil, false, err
	}
	clean := champs.Purge()
	if len(clean) == len(champs) {
		return champs, false, nil
	}
	if err := s.store.Set(ctx, store.KeyChampionships, clean); err != nil {
		return nil, false, fmt.Errorf("writing championships: %w", err)
	}
	s.log.Info("purged legacy championship entries",
		zap.Int("before", len(champs)), zap.Int("after", len(clean)))
	return clean, true, nil
}

// RepairReport lists what a reconciliation pass found.
type RepairReport struct {
	// DanglingEntries are registry ids whose tournament document was
	// missing; they have been removed from the registry.
	DanglingEntries []string
	// OrphanDocuments are tournament ids with a document but no registry
	// entry. They are reported, not deleted.
	OrphanDocuments []string
}

// Repair reconciles the registry against the tournament documents. A failed
// create can leave a registry entry with no backing document; those entries
// are dropped. Documents without a registry entry are only reported, since
// deleting data is not this pass's call to make.
func (s *Service) Repair(ctx context.Context, sess *auth.Session) (RepairReport, error) {
	var report RepairReport
	if !s.allowed(sess, "repair") {
		return report, nil
	}

	reg, err := s.GetRegistry(ctx)
	if err != nil {
		return report, err
	}

	keys, err := s.store.List(ctx, "tournaments/")
	if err != nil {
		return report, err
	}
	docs := make(map[string]bool, len(keys))
	for _, key := range keys {
		if id, ok := store.TournamentID(key); ok {
			docs[id] = true
		}
	}

	kept := reg.Tournaments[:0]
	for _, entry := range reg.Tournaments {
		if docs[entry.ID] {
			kept = append(kept, entry)
		} else {
			report.DanglingEntries = append(report.DanglingEntries, entry.ID)
		}
		delete(docs, entry.ID)
	}
	for id := range docs {
		report.OrphanDocuments = append(report.OrphanDocuments, id)
	}

	if len(report.DanglingEntries) > 0 {
		reg.Tournaments = kept
		if err := s.store.Set(ctx, store.KeyRegistry, reg); err != nil {
			return report, fmt.Errorf("writing registry: %w", err)
		}
		s.log.Info("removed dangling registry entries",
			zap.Strings("ids", report.DanglingEntries))
	}
	return report, nil
}
