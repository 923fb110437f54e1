package sync

import "league-backend/internal/models"

type CommandType string

const (
	CmdCreateTournament    CommandType = "createTournament"
	CmdDeleteTournament    CommandType = "deleteTournament"
	CmdRenameTournament    CommandType = "renameTournament"
	CmdUpdateChampionships CommandType = "updateChampionships"
	CmdResetChampionships  CommandType = "resetChampionships"
	CmdUpdateSeriesTeams   CommandType = "updateSeriesTeams"
	CmdSaveTournament      CommandType = "saveTournament"
	CmdUpdateStatus        CommandType = "updateStatus"
)

// Command is one mutation request from the view layer. Fields are used per
// type; unused ones stay zero.
type Command struct {
	Type CommandType

	// createTournament / renameTournament
	Name       string
	Mode       models.TournamentMode
	TeamConfig models.TeamConfig

	// deleteTournament / renameTournament
	ID string

	// updateChampionships
	Label string
	Count int

	// updateSeriesTeams: teamA player1, teamA player2, teamB player1,
	// teamB player2
	Players [4]string

	// saveTournament
	State *models.TournamentState

	// updateStatus
	Status models.TournamentStatus
}
