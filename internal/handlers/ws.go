package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"league-backend/internal/models"
	"league-backend/internal/sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// clientMessage is one command from the view layer. Type selects which of
// the remaining fields matter.
type clientMessage struct {
	Type       string                  `json:"type"`
	ID         string                  `json:"id,omitempty"`
	Name       string                  `json:"name,omitempty"`
	Mode       models.TournamentMode   `json:"mode,omitempty"`
	TeamConfig models.TeamConfig       `json:"teamConfig,omitempty"`
	PIN        string                  `json:"pin,omitempty"`
	Label      string                  `json:"label,omitempty"`
	Count      int                     `json:"count,omitempty"`
	Players    []string                `json:"players,omitempty"`
	State      *models.TournamentState `json:"state,omitempty"`
	Status     models.TournamentStatus `json:"status,omitempty"`
}

type serverMessage struct {
	Type    string     `json:"type"`
	View    *sync.View `json:"view,omitempty"`
	OK      *bool      `json:"ok,omitempty"`
	Message string     `json:"message,omitempty"`
}

// Session upgrades to a websocket and runs one sync session over it: the
// server pushes consolidated state views, the client sends selection and
// mutation commands. Closing the connection tears the whole session down,
// subscriptions included.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	// Identity first; no subscription starts without one. A bad token
	// degrades to an anonymous identity instead of refusing the session.
	uid, err := h.auth.SignInWithToken(r.URL.Query().Get("token"))
	if err != nil {
		uid, _, err = h.auth.SignInAnonymously()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	syncer := sync.NewSyncer(r.Context(), h.store, h.svc, h.auth, uid, h.log)
	defer func() { syncer.Inbox() <- sync.Shutdown{} }()

	out := make(chan sync.View, 8)
	clientID := uuid.New().String()
	syncer.Inbox() <- sync.Attach{ClientID: clientID, Outbox: out}

	// Writer goroutine
	writeCtx, writeCancel := context.WithCancel(r.Context())
	defer writeCancel()
	go func() {
		for v := range out {
			writeMessage(writeCtx, conn, serverMessage{Type: "state", View: &v})
		}
	}()

	// Reader loop
	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			return
		}

		var cm clientMessage
		if err := json.Unmarshal(data, &cm); err != nil {
			writeMessage(r.Context(), conn, serverMessage{Type: "error", Message: "bad json"})
			continue
		}
		h.dispatch(r.Context(), conn, syncer, cm)
	}
}

func (h *Handler) dispatch(ctx context.Context, conn *websocket.Conn, syncer *sync.Syncer, cm clientMessage) {
	switch cm.Type {
	case "selectTournament":
		syncer.Inbox() <- sync.Select{ID: cm.ID}

	case "deselectTournament":
		syncer.Inbox() <- sync.Deselect{}

	case "adminLogin":
		reply := make(chan bool, 1)
		syncer.Inbox() <- sync.AdminLogin{PIN: cm.PIN, Reply: reply}
		ok := <-reply
		writeMessage(ctx, conn, serverMessage{Type: "adminResult", OK: &ok})

	case "createTournament":
		// Creation is the one mutation whose failure the user must see.
		reply := make(chan error, 1)
		syncer.Inbox() <- sync.Apply{
			Cmd:   sync.Command{Type: sync.CmdCreateTournament, Name: cm.Name, Mode: cm.Mode, TeamConfig: cm.TeamConfig},
			Reply: reply,
		}
		if err := <-reply; err != nil {
			writeMessage(ctx, conn, serverMessage{Type: "alert", Message: "tournament creation failed: " + err.Error()})
		}

	case "deleteTournament":
		syncer.Inbox() <- sync.Apply{Cmd: sync.Command{Type: sync.CmdDeleteTournament, ID: cm.ID}}

	case "renameTournament":
		syncer.Inbox() <- sync.Apply{Cmd: sync.Command{Type: sync.CmdRenameTournament, ID: cm.ID, Name: cm.Name}}

	case "updateChampionships":
		syncer.Inbox() <- sync.Apply{Cmd: sync.Command{Type: sync.CmdUpdateChampionships, Label: cm.Label, Count: cm.Count}}

	case "resetChampionships":
		syncer.Inbox() <- sync.Apply{Cmd: sync.Command{Type: sync.CmdResetChampionships}}

	case "updateSeriesTeams":
		if len(cm.Players) != 4 {
			writeMessage(ctx, conn, serverMessage{Type: "error", Message: "updateSeriesTeams needs exactly 4 players"})
			return
		}
		syncer.Inbox() <- sync.Apply{Cmd: sync.Command{
			Type:    sync.CmdUpdateSeriesTeams,
			Players: [4]string{cm.Players[0], cm.Players[1], cm.Players[2], cm.Players[3]},
		}}

	case "saveTournament":
		syncer.Inbox() <- sync.Apply{Cmd: sync.Command{Type: sync.CmdSaveTournament, State: cm.State}}

	case "updateStatus":
		syncer.Inbox() <- sync.Apply{Cmd: sync.Command{Type: sync.CmdUpdateStatus, Status: cm.Status}}

	default:
		h.log.Warn("unknown client message", zap.String("type", cm.Type))
		writeMessage(ctx, conn, serverMessage{Type: "error", Message: "unknown type"})
	}
}

func writeMessage(ctx context.Context, conn *websocket.Conn, msg serverMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_ = conn.Write(writeCtx, websocket.MessageText, payload)
}
