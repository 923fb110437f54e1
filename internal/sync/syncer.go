package sync

import (
	"context"
	"encoding/json"

	"league-backend/internal/auth"
	"league-backend/internal/league"
	"league-backend/internal/models"
	"league-backend/internal/store"

	"go.uber.org/zap"
)

type Msg interface{ isSyncMsg() }

// Select switches the session's active tournament. The previous mirror is
// discarded and the view enters loading before the new subscription's first
// snapshot arrives.
type Select struct{ ID string }

func (Select) isSyncMsg() {}

type Deselect struct{}

func (Deselect) isSyncMsg() {}

// AdminLogin attempts the Guest to Admin transition. There is no reverse
// transition for the life of the session.
type AdminLogin struct {
	PIN   string
	Reply chan bool
}

func (AdminLogin) isSyncMsg() {}

// Apply runs one mutation command. Reply, if non-nil, receives the result
// once the operation has run to completion.
type Apply struct {
	Cmd   Command
	Reply chan error
}

func (Apply) isSyncMsg() {}

// Attach registers a view outbox that receives every state change.
type Attach struct {
	ClientID string
	Outbox   chan View
}

func (Attach) isSyncMsg() {}

type Detach struct{ ClientID string }

func (Detach) isSyncMsg() {}

type GetView struct {
	Reply chan View
}

func (GetView) isSyncMsg() {}

type Shutdown struct{}

func (Shutdown) isSyncMsg() {}

// docEvent and docFailure carry store subscription callbacks onto the loop,
// so every notification is handled on the same cooperative queue as user
// commands.
type docEvent struct{ snap store.Snapshot }

func (docEvent) isSyncMsg() {}

type docFailure struct {
	key string
	err error
}

func (docFailure) isSyncMsg() {}

// View is the consolidated local state pushed to the view layer. The mirrors
// it carries are replaced wholesale on every change and never mutated in
// place, so sharing them across snapshots is safe.
type View struct {
	Version       int                     `json:"version"`
	Registry      models.Registry         `json:"registry"`
	Championships models.Championships    `json:"championships"`
	SeriesTeams   models.SeriesTeams      `json:"seriesTeams"`
	ActiveID      string                  `json:"activeId,omitempty"`
	Active        *models.TournamentState `json:"active,omitempty"`
	Loading       bool                    `json:"loading"`
	Admin         bool                    `json:"admin"`
	UID           string                  `json:"uid"`
}

// Syncer mirrors the four remote documents into local state for one client
// session. It owns the session's subscriptions, selection, and admin flag,
// and serializes everything — store notifications, selection changes,
// mutations — through a single loop.
type Syncer struct {
	inbox chan Msg

	store store.Store
	svc   *league.Service
	auth  *auth.Authenticator
	sess  *auth.Session
	log   *zap.Logger

	registry models.Registry
	champs   models.Championships
	series   models.SeriesTeams
	activeID string
	active   *models.TournamentState
	loading  bool
	version  int

	clients        map[string]chan View
	stopOrg        []func()
	stopTournament func()

	ctx    context.Context
	cancel context.CancelFunc
}

func NewSyncer(parent context.Context, st store.Store, svc *league.Service, au *auth.Authenticator, uid string, log *zap.Logger) *Syncer {
	ctx, cancel := context.WithCancel(parent)
	s := &Syncer{
		inbox:   make(chan Msg, 64),
		store:   st,
		svc:     svc,
		auth:    au,
		sess:    &auth.Session{UID: uid},
		log:     log.With(zap.String("uid", uid)),
		champs:  models.Championships{},
		clients: make(map[string]chan View),
		ctx:     ctx,
		cancel:  cancel,
	}
	go s.run()
	return s
}

func (s *Syncer) Inbox() chan<- Msg { return s.inbox }

func (s *Syncer) run() {
	// Identity is established before the syncer exists, so the three
	// organization documents are subscribed for the whole session.
	for _, key := range []string{store.KeyRegistry, store.KeyChampionships, store.KeySeriesTeams} {
		s.stopOrg = append(s.stopOrg, s.watch(key))
	}

	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case docEvent:
				s.handleSnapshot(msg.snap)

			case docFailure:
				s.handleSubscriptionError(msg.key, msg.err)

			case Select:
				s.selectTournament(msg.ID)

			case Deselect:
				s.deselect()
				s.broadcast()

			case AdminLogin:
				ok := s.auth.VerifyPIN(msg.PIN)
				if ok {
					s.sess.Admin = true
					s.log.Info("admin session established")
					// Privilege just arrived; heal a stale leaderboard now
					// instead of waiting for the next snapshot.
					s.healChampionships(s.champs)
				} else {
					s.log.Warn("admin login rejected")
				}
				if msg.Reply != nil {
					msg.Reply <- ok
				}
				s.broadcast()

			case Apply:
				err := s.apply(msg.Cmd)
				if err != nil {
					s.log.Error("mutation failed",
						zap.String("op", string(msg.Cmd.Type)), zap.Error(err))
				}
				if msg.Reply != nil {
					msg.Reply <- err
				}

			case Attach:
				s.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- s.view()

			case Detach:
				delete(s.clients, msg.ClientID)

			case GetView:
				msg.Reply <- s.view()

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

// watch subscribes to one document and funnels its callbacks into the inbox.
func (s *Syncer) watch(key string) func() {
	stop, err := s.store.Watch(key,
		func(snap store.Snapshot) {
			select {
			case s.inbox <- docEvent{snap: snap}:
			case <-s.ctx.Done():
			}
		},
		func(err error) {
			select {
			case s.inbox <- docFailure{key: key, err: err}:
			case <-s.ctx.Done():
			}
		})
	if err != nil {
		s.log.Error("subscription failed", zap.String("key", key), zap.Error(err))
		return func() {}
	}
	return stop
}

func (s *Syncer) handleSnapshot(snap store.Snapshot) {
	switch snap.Key {
	case store.KeyRegistry:
		var reg models.Registry
		if snap.Exists {
			if err := json.Unmarshal(snap.Data, &reg); err != nil {
				s.handleSubscriptionError(snap.Key, err)
				return
			}
		}
		s.registry = reg

	case store.KeyChampionships:
		champs := models.Championships{}
		if snap.Exists {
			if err := json.Unmarshal(snap.Data, &champs); err != nil {
				s.handleSubscriptionError(snap.Key, err)
				return
			}
		}
		s.healChampionships(champs)

	case store.KeySeriesTeams:
		var series models.SeriesTeams
		if snap.Exists {
			if err := json.Unmarshal(snap.Data, &series); err != nil {
				s.handleSubscriptionError(snap.Key, err)
				return
			}
		}
		s.series = series

	default:
		// A tournament snapshot for anything but the current selection is
		// a late delivery from a torn-down subscription.
		if snap.Key != store.TournamentKey(s.activeID) || s.activeID == "" {
			return
		}
		if !snap.Exists {
			s.active = nil
			s.loading = false
			break
		}
		var state models.TournamentState
		if err := json.Unmarshal(snap.Data, &state); err != nil {
			s.handleSubscriptionError(snap.Key, err)
			return
		}
		s.active = &state
		s.loading = false
	}

	s.broadcast()
}

// healChampionships installs a leaderboard mirror, first issuing the
// corrective overwrite when the stored data is entirely legacy
// individual-player entries and the session holds admin privilege.
func (s *Syncer) healChampionships(champs models.Championships) {
	if champs.NeedsRepair() && s.sess.Admin {
		clean, changed, err := s.svc.PurgeLegacyChampionships(s.ctx, s.sess)
		if err != nil {
			s.log.Error("championships cleanup failed", zap.Error(err))
			s.champs = champs
			return
		}
		if changed {
			s.log.Info("cleaned legacy championships entries",
				zap.Int("removed", len(champs)-len(clean)))
		}
		s.champs = clean
		return
	}
	s.champs = champs
}

// handleSubscriptionError resets the affected mirror to its empty default
// and keeps the session alive; the next successful notification repopulates
// it.
func (s *Syncer) handleSubscriptionError(key string, err error) {
	s.log.Error("subscription error", zap.String("key", key), zap.Error(err))
	switch key {
	case store.KeyRegistry:
		s.registry = models.Registry{}
	case store.KeyChampionships:
		s.champs = models.Championships{}
	case store.KeySeriesTeams:
		s.series = models.SeriesTeams{}
	default:
		if key == store.TournamentKey(s.activeID) {
			s.active = nil
			s.loading = false
		}
	}
	s.broadcast()
}

func (s *Syncer) selectTournament(id string) {
	if id == "" || id == s.activeID {
		return
	}
	if s.stopTournament != nil {
		s.stopTournament()
		s.stopTournament = nil
	}
	// Discard the previous mirror before the new subscription delivers,
	// so the old tournament never renders under the new id.
	s.activeID = id
	s.active = nil
	s.loading = true
	s.broadcast()
	s.stopTournament = s.watch(store.TournamentKey(id))
}

func (s *Syncer) deselect() {
	if s.stopTournament != nil {
		s.stopTournament()
		s.stopTournament = nil
	}
	s.activeID = ""
	s.active = nil
	s.loading = false
}

func (s *Syncer) apply(cmd Command) error {
	switch cmd.Type {
	case CmdCreateTournament:
		entry, err := s.svc.CreateTournament(s.ctx, s.sess, cmd.Name, cmd.Mode, cmd.TeamConfig)
		if err != nil {
			return err
		}
		// Team tournaments go straight to setup, so the creator lands in
		// the new tournament immediately.
		if entry.ID != "" && cmd.Mode == models.ModeTeam {
			s.selectTournament(entry.ID)
		}
		return nil

	case CmdDeleteTournament:
		if err := s.svc.DeleteTournament(s.ctx, s.sess, cmd.ID); err != nil {
			return err
		}
		if s.sess.Admin && cmd.ID == s.activeID {
			s.deselect()
			s.broadcast()
		}
		return nil

	case CmdRenameTournament:
		return s.svc.RenameTournament(s.ctx, s.sess, cmd.ID, cmd.Name, s.activeID)

	case CmdUpdateChampionships:
		return s.svc.UpdateChampionships(s.ctx, s.sess, cmd.Label, cmd.Count)

	case CmdResetChampionships:
		return s.svc.ResetChampionships(s.ctx, s.sess)

	case CmdUpdateSeriesTeams:
		return s.svc.UpdateSeriesTeams(s.ctx, s.sess,
			cmd.Players[0], cmd.Players[1], cmd.Players[2], cmd.Players[3])

	case CmdSaveTournament:
		if cmd.State == nil {
			return nil
		}
		return s.svc.SaveTournamentData(s.ctx, s.sess, s.activeID, *cmd.State)

	case CmdUpdateStatus:
		return s.svc.UpdateStatus(s.ctx, s.sess, s.activeID, cmd.Status)

	default:
		s.log.Warn("unknown command", zap.String("type", string(cmd.Type)))
		return nil
	}
}

func (s *Syncer) view() View {
	return View{
		Version:       s.version,
		Registry:      s.registry,
		Championships: s.champs,
		SeriesTeams:   s.series,
		ActiveID:      s.activeID,
		Active:        s.active,
		Loading:       s.loading,
		Admin:         s.sess.Admin,
		UID:           s.sess.UID,
	}
}

func (s *Syncer) broadcast() {
	s.version++
	v := s.view()
	for id, ch := range s.clients {
		select {
		case ch <- v:
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(s.clients, id)
		}
	}
}

func (s *Syncer) shutdown() {
	s.deselect()
	for _, stop := range s.stopOrg {
		stop()
	}
	s.stopOrg = nil
	for id, ch := range s.clients {
		close(ch)
		delete(s.clients, id)
	}
	s.cancel()
}
