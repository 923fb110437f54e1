package models

import (
	"strings"
	"time"
)

type TournamentMode string

const (
	ModeIndividual TournamentMode = "individual"
	ModeTeam       TournamentMode = "team"
)

type TournamentStatus string

const (
	StatusPreparing  TournamentStatus = "Hazırlık"
	StatusInProgress TournamentStatus = "Devam Ediyor"
	StatusCompleted  TournamentStatus = "Tamamlandı"
)

// TournamentSummary is one row of the lobby registry. The full tournament
// document lives separately, keyed by ID.
type TournamentSummary struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	CreatedAt time.Time        `json:"createdAt"`
	Status    TournamentStatus `json:"status"`
	Mode      TournamentMode   `json:"mode"`
}

// Registry is the ordered list of tournament summaries. Newest entries are
// prepended, so the lobby renders it as-is.
type Registry struct {
	Tournaments []TournamentSummary `json:"tournaments"`
}

// Find returns the index of the entry with the given id, or -1.
func (r Registry) Find(id string) int {
	for i, t := range r.Tournaments {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// TeamConfig is opaque to the backend: the view writes it at creation time
// and reads it back, nothing in between interprets it.
type TeamConfig map[string]any

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Match struct {
	ID      string `json:"id"`
	Round   int    `json:"round"`
	Player1 string `json:"player1"`
	Player2 string `json:"player2"`
	Winner  string `json:"winner,omitempty"`
}

type Settings struct {
	Started    bool           `json:"started"`
	Name       string         `json:"name"`
	Mode       TournamentMode `json:"mode"`
	TeamConfig TeamConfig     `json:"teamConfig,omitempty"`
}

// TournamentState is the full per-tournament document. It is always written
// wholesale; there are no field-level updates.
type TournamentState struct {
	Players  []Player `json:"players"`
	Matches  []Match  `json:"matches"`
	Settings Settings `json:"settings"`
}

// NewTournamentState returns the empty document written at creation time.
func NewTournamentState(name string, mode TournamentMode, teamConfig TeamConfig) TournamentState {
	return TournamentState{
		Players: []Player{},
		Matches: []Match{},
		Settings: Settings{
			Started:    false,
			Name:       name,
			Mode:       mode,
			TeamConfig: teamConfig,
		},
	}
}

type TeamPair struct {
	Player1 string `json:"player1"`
	Player2 string `json:"player2"`
}

// SeriesTeams is the fixed two-team pairing shown on the series scoreboard.
// An absent document reads as empty player names.
type SeriesTeams struct {
	TeamA TeamPair `json:"teamA"`
	TeamB TeamPair `json:"teamB"`
}

// Championships maps a pairing label to a win count. A label with zero wins
// is deleted rather than stored.
type Championships map[string]int

// PairSeparator joins the two player names of a team into a pairing label.
// Keys without it are legacy individual-player entries.
const PairSeparator = " & "

func PairLabel(p1, p2 string) string {
	return p1 + PairSeparator + p2
}

func IsPairLabel(key string) bool {
	return strings.Contains(key, PairSeparator)
}

// NeedsRepair reports whether the stored leaderboard is entirely legacy
// individual-player entries. Purge leaves this false, so the repair cycle
// terminates.
func (c Championships) NeedsRepair() bool {
	if len(c) == 0 {
		return false
	}
	for key := range c {
		if IsPairLabel(key) {
			return false
		}
	}
	return true
}

// Purge drops legacy individual-player keys regardless of count, and paired
// keys whose count is not strictly positive.
func (c Championships) Purge() Championships {
	clean := Championships{}
	for key, wins := range c {
		if IsPairLabel(key) && wins > 0 {
			clean[key] = wins
		}
	}
	return clean
}
