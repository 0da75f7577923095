package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jonradoff/arena-server/internal/models"
	"github.com/jonradoff/arena-server/internal/session"
	"github.com/jonradoff/arena-server/internal/store"
)

// HumanHandler implements the /human/* surface: identical shape to the agent
// endpoints, but authenticated by source IP rather than (name, token), and
// always played under the shared Humanity participant.
type HumanHandler struct {
	store                 *store.Store
	sessions              *session.Registry
	defaultQueueTimeLimit float64
}

func NewHumanHandler(st *store.Store, sessions *session.Registry, defaultQueueTimeLimit float64) *HumanHandler {
	return &HumanHandler{store: st, sessions: sessions, defaultQueueTimeLimit: defaultQueueTimeLimit}
}

// Register creates or refreshes the Human row for the caller's IP.
func (h *HumanHandler) Register(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	human, err := h.store.GetOrCreateHuman(r.Context(), ip)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to register")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"human_id": human.IP})
}

type humanJoinRequest struct {
	EnvID string `json:"env_id"`
}

// JoinMatchmaking enqueues Humanity for one environment, keyed by the
// caller's IP so multiple humans can share the same queue.
func (h *HumanHandler) JoinMatchmaking(w http.ResponseWriter, r *http.Request) {
	var req humanJoinRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	ip := clientIP(r)

	if _, err := h.store.GetEnvironment(r.Context(), req.EnvID); err != nil {
		respondWithError(w, http.StatusNotFound, "unknown environment")
		return
	}
	if _, err := h.store.FindHumanQueueEntry(r.Context(), req.EnvID, ip); err == nil {
		respondWithError(w, http.StatusBadRequest, "already queued for this environment")
		return
	}
	if _, _, err := h.store.ActivePlayerGameForHuman(r.Context(), ip); err == nil {
		respondWithError(w, http.StatusBadRequest, "already in an active game")
		return
	}

	now := store.NowSeconds()
	if err := h.store.JoinQueue(r.Context(), &models.QueueEntry{
		EnvID:           req.EnvID,
		ParticipantName: models.HumanityName,
		JoinedAt:        now,
		TimeLimit:       h.defaultQueueTimeLimit,
		LastChecked:     now,
		IsHuman:         true,
		HumanIP:         ip,
	}); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to join queue")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"ack": true})
}

// CheckMatchmakingStatus mirrors the agent endpoint, scoped to the caller's
// IP instead of a (name, token) pair.
func (h *HumanHandler) CheckMatchmakingStatus(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	envID := r.URL.Query().Get("env_id")

	if pg, g, err := h.store.ActivePlayerGameForHuman(r.Context(), ip); err == nil {
		env, _ := h.store.GetEnvironment(r.Context(), g.EnvID)
		opponent := ""
		if pgs, err := h.store.ListPlayerGames(r.Context(), g.ID); err == nil {
			for _, other := range pgs {
				if !(other.IsHuman && other.HumanIP == ip) {
					opponent = other.ParticipantName
					break
				}
			}
		}
		numPlayers := 0
		if env != nil {
			numPlayers = env.NumPlayers
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"status":        "Match found",
			"game_id":       g.ID.Hex(),
			"player_id":     pg.PlayerID,
			"opponent_name": opponent,
			"num_players":   numPlayers,
		})
		return
	}

	entry, err := h.store.FindHumanQueueEntry(r.Context(), envID, ip)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "not queued for this environment")
		return
	}
	now := store.NowSeconds()
	_ = h.store.TouchQueueEntry(r.Context(), entry.ID, now)

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "Searching",
		"queue_time":       now - entry.JoinedAt,
		"queue_time_limit": entry.TimeLimit,
	})
}

// CheckTurn resolves the caller's seat from (game_id, IP) since the human
// wire contract doesn't carry player_id on this call.
func (h *HumanHandler) CheckTurn(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	gameID, err := primitive.ObjectIDFromHex(r.URL.Query().Get("game_id"))
	if err != nil {
		respondWithError(w, http.StatusNotFound, "unknown game")
		return
	}

	pg, err := h.store.FindPlayerGameByHuman(r.Context(), gameID, ip)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "not a participant in this game")
		return
	}

	sess, err := h.sessions.Get(r.Context(), gameID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "unknown game")
		return
	}

	if sess.Finished() {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"status":      "done",
			"observation": sess.ForceObservation(pg.PlayerID),
			"done":        true,
		})
		return
	}

	if !sess.IsMyTurn(pg.PlayerID) {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"status":      "waiting",
			"observation": "",
			"done":        false,
		})
		return
	}

	obs, err := sess.ObserveTurn(r.Context(), pg.PlayerID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to fetch observation")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "your_turn",
		"observation": obs,
		"done":        false,
	})
}

type humanMakeMoveRequest struct {
	GameID string `json:"game_id"`
	Move   string `json:"move"`
}

// MakeMove submits the human's action for its resolved seat.
func (h *HumanHandler) MakeMove(w http.ResponseWriter, r *http.Request) {
	var req humanMakeMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ip := clientIP(r)
	gameID, err := primitive.ObjectIDFromHex(req.GameID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "unknown game")
		return
	}

	pg, err := h.store.FindPlayerGameByHuman(r.Context(), gameID, ip)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "not a participant in this game")
		return
	}

	sess, err := h.sessions.Get(r.Context(), gameID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "unknown game")
		return
	}

	if sess.Finished() {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{"status": "done", "done": true})
		return
	}

	done, err := sess.SubmitAction(r.Context(), pg.PlayerID, req.Move)
	if err != nil {
		if err == session.ErrNotYourTurn {
			respondWithError(w, http.StatusBadRequest, "not your turn")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to submit move")
		return
	}

	resp := map[string]interface{}{"status": "ok", "done": done}
	if done {
		if refreshed, err := h.store.GetPlayerGameByID(r.Context(), pg.ID); err == nil {
			resp["reward"] = refreshed.Reward
		}
		if g, err := h.store.GetGame(r.Context(), gameID); err == nil {
			resp["reason"] = g.Reason
		}
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// GetMatchOutcome returns the final outcome/reason for one of the caller's
// past seats, identified explicitly by (game_id, player_id) per the wire
// table (unlike check_turn/make_move, which resolve the seat from IP alone).
func (h *HumanHandler) GetMatchOutcome(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	gameID, err := primitive.ObjectIDFromHex(q.Get("game_id"))
	if err != nil {
		respondWithError(w, http.StatusNotFound, "unknown game")
		return
	}
	playerID, _ := strconv.Atoi(q.Get("player_id"))

	pg, err := h.store.GetPlayerGame(r.Context(), gameID, playerID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "unknown player game")
		return
	}
	g, err := h.store.GetGame(r.Context(), gameID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "unknown game")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"outcome": pg.Outcome,
		"reason":  g.Reason,
	})
}

// GetStats reports the caller's lifetime record and last 10 finished games.
func (h *HumanHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	wins, losses, draws, err := h.store.HumanGameOutcomeCounts(r.Context(), ip)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	recent, err := h.store.RecentPlayerGamesForHuman(r.Context(), ip, 10)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	type recentGame struct {
		GameID       string  `json:"game_id"`
		EnvID        string  `json:"env_id"`
		Opponent     string  `json:"opponent_name"`
		Outcome      *string `json:"outcome"`
	}
	games := make([]recentGame, 0, len(recent))
	for _, pg := range recent {
		g, err := h.store.GetGame(r.Context(), pg.GameID)
		if err != nil {
			continue
		}
		opponent := ""
		if pgs, err := h.store.ListPlayerGames(r.Context(), pg.GameID); err == nil {
			for _, other := range pgs {
				if other.ID != pg.ID {
					opponent = other.ParticipantName
					break
				}
			}
		}
		var outcome *string
		if pg.Outcome != nil {
			s := string(*pg.Outcome)
			outcome = &s
		}
		games = append(games, recentGame{
			GameID:   g.ID.Hex(),
			EnvID:    g.EnvID,
			Opponent: opponent,
			Outcome:  outcome,
		})
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"games_played": wins + losses + draws,
		"wins":         wins,
		"losses":       losses,
		"draws":        draws,
		"recent_games": games,
	})
}
