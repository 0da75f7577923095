package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/jonradoff/arena-server/internal/auth"
	"github.com/jonradoff/arena-server/internal/models"
	"github.com/jonradoff/arena-server/internal/session"
	"github.com/jonradoff/arena-server/internal/store"
)

type AgentHandler struct {
	store                 *store.Store
	sessions              *session.Registry
	auth                  *auth.Service
	defaultQueueTimeLimit float64
}

func NewAgentHandler(st *store.Store, sessions *session.Registry, authSvc *auth.Service, defaultQueueTimeLimit float64) *AgentHandler {
	return &AgentHandler{store: st, sessions: sessions, auth: authSvc, defaultQueueTimeLimit: defaultQueueTimeLimit}
}

// authenticate verifies the bearer token is both a validly signed JWT
// issued by this service and a (name, token) pair the Store recognizes.
// Checking the signature first rejects a tampered or foreign token before
// it ever reaches the database.
func (h *AgentHandler) authenticate(ctx context.Context, name, token string) (*models.Participant, error) {
	claims, err := h.auth.ParseToken(token)
	if err != nil {
		return nil, store.ErrNotFound
	}
	if claims.Name != name {
		return nil, store.ErrNotFound
	}
	return h.store.AuthenticateParticipant(ctx, name, token)
}

type registerModelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Email       string `json:"email"`
}

type registerModelResponse struct {
	Token string `json:"token"`
}

// RegisterModel creates a new Participant and mints its bearer token.
func (h *AgentHandler) RegisterModel(w http.ResponseWriter, r *http.Request) {
	var req registerModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "name is required")
		return
	}

	token, err := h.auth.IssueToken(req.Name)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	p := &models.Participant{
		Name:        req.Name,
		Description: req.Description,
		Email:       req.Email,
		Token:       token,
	}
	if err := h.store.CreateParticipant(r.Context(), p); err != nil {
		if err == store.ErrAlreadyExists {
			respondWithError(w, http.StatusBadRequest, "a participant with this name already exists")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to register participant")
		return
	}

	respondWithJSON(w, http.StatusOK, registerModelResponse{Token: token})
}

type joinMatchmakingRequest struct {
	EnvID          string  `json:"env_id"`
	Name           string  `json:"name"`
	Token          string  `json:"token"`
	QueueTimeLimit float64 `json:"queue_time_limit"`
}

// JoinMatchmaking enqueues an authenticated participant for one environment.
func (h *AgentHandler) JoinMatchmaking(w http.ResponseWriter, r *http.Request) {
	var req joinMatchmakingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.authenticate(r.Context(), req.Name, req.Token); err != nil {
		respondWithError(w, http.StatusNotFound, "unknown token")
		return
	}
	if _, err := h.store.GetEnvironment(r.Context(), req.EnvID); err != nil {
		respondWithError(w, http.StatusNotFound, "unknown environment")
		return
	}

	if _, err := h.store.FindQueueEntry(r.Context(), req.EnvID, req.Name); err == nil {
		respondWithError(w, http.StatusBadRequest, "already queued for this environment")
		return
	}
	if _, _, err := h.store.ActivePlayerGameForParticipant(r.Context(), req.EnvID, req.Name); err == nil {
		respondWithError(w, http.StatusBadRequest, "already in an active game for this environment")
		return
	}

	timeLimit := req.QueueTimeLimit
	if timeLimit <= 0 {
		timeLimit = h.defaultQueueTimeLimit
	}

	now := store.NowSeconds()
	if err := h.store.JoinQueue(r.Context(), &models.QueueEntry{
		EnvID:           req.EnvID,
		ParticipantName: req.Name,
		JoinedAt:        now,
		TimeLimit:       timeLimit,
		LastChecked:     now,
	}); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to join queue")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"ack": true})
}

type leaveMatchmakingRequest struct {
	EnvID string `json:"env_id"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

func (h *AgentHandler) LeaveMatchmaking(w http.ResponseWriter, r *http.Request) {
	var req leaveMatchmakingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := h.authenticate(r.Context(), req.Name, req.Token); err != nil {
		respondWithError(w, http.StatusNotFound, "unknown token")
		return
	}

	q, err := h.store.FindQueueEntry(r.Context(), req.EnvID, req.Name)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "not queued for this environment")
		return
	}
	if err := h.store.DeleteQueueEntry(r.Context(), q.ID); err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to leave queue")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"ack": true})
}

// CheckMatchmakingStatus polls whether a queued participant has been
// matched. Touches last_checked on every call so concurrent polls collapse
// to the last writer's timestamp.
func (h *AgentHandler) CheckMatchmakingStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	envID, name, token := q.Get("env_id"), q.Get("name"), q.Get("token")

	if _, err := h.authenticate(r.Context(), name, token); err != nil {
		respondWithError(w, http.StatusNotFound, "unknown token")
		return
	}

	if pg, g, err := h.store.ActivePlayerGameForParticipant(r.Context(), envID, name); err == nil {
		env, _ := h.store.GetEnvironment(r.Context(), envID)
		opponent := ""
		if pgs, err := h.store.ListPlayerGames(r.Context(), g.ID); err == nil {
			for _, other := range pgs {
				if other.ParticipantName != name {
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

	entry, err := h.store.FindQueueEntry(r.Context(), envID, name)
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

// CheckTurn fetches the current observation for a seat, or — if the game
// has already concluded — the terminal observation via force_observation,
// so the agent learns of the end state even without ever polling at the
// right moment.
func (h *AgentHandler) CheckTurn(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name, token := q.Get("name"), q.Get("token")
	gameIDHex := q.Get("game_id")
	playerID, _ := strconv.Atoi(q.Get("player_id"))

	if _, err := h.authenticate(r.Context(), name, token); err != nil {
		respondWithError(w, http.StatusNotFound, "unknown token")
		return
	}
	gameID, err := primitive.ObjectIDFromHex(gameIDHex)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "unknown game")
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
			"observation": sess.ForceObservation(playerID),
			"done":        true,
		})
		return
	}

	if !sess.IsMyTurn(playerID) {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"status":      "waiting",
			"observation": "",
			"done":        false,
		})
		return
	}

	obs, err := sess.ObserveTurn(r.Context(), playerID)
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

type stepRequest struct {
	EnvID      string `json:"env_id"`
	Name       string `json:"name"`
	Token      string `json:"token"`
	GameID     string `json:"game_id"`
	PlayerID   int    `json:"player_id"`
	ActionText string `json:"action_text"`
}

// Step submits an action for the caller's current turn. If the game has
// already finished it returns done:true instead of erroring.
func (h *AgentHandler) Step(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := h.authenticate(r.Context(), req.Name, req.Token); err != nil {
		respondWithError(w, http.StatusNotFound, "unknown token")
		return
	}
	gameID, err := primitive.ObjectIDFromHex(req.GameID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "unknown game")
		return
	}

	sess, err := h.sessions.Get(r.Context(), gameID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "unknown game")
		return
	}

	if sess.Finished() {
		respondWithJSON(w, http.StatusOK, map[string]interface{}{"message": "game already finished", "done": true})
		return
	}

	done, err := sess.SubmitAction(r.Context(), req.PlayerID, req.ActionText)
	if err != nil {
		if err == session.ErrNotYourTurn {
			respondWithError(w, http.StatusBadRequest, "not your turn")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "failed to submit action")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"message": "ok", "done": done})
}

type getResultsRequest struct {
	GameID string `json:"game_id"`
	Name   string `json:"name"`
	EnvID  string `json:"env_id"`
}

// GetResults returns the post-game summary for one participant: its
// reward/outcome/reason, current and previous rating, and opponent names.
func (h *AgentHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	var req getResultsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	gameID, err := primitive.ObjectIDFromHex(req.GameID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "unknown game")
		return
	}
	g, err := h.store.GetGame(r.Context(), gameID)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "unknown game")
		return
	}

	pg, err := h.store.FindPlayerGameByParticipant(r.Context(), gameID, req.Name)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "participant not in this game")
		return
	}

	pgs, err := h.store.ListPlayerGames(r.Context(), gameID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "failed to load game")
		return
	}
	var opponents []string
	for _, other := range pgs {
		if other.ParticipantName != req.Name {
			opponents = append(opponents, other.ParticipantName)
		}
	}

	resp := map[string]interface{}{
		"reward":    pg.Reward,
		"outcome":   pg.Outcome,
		"reason":    g.Reason,
		"opponents": opponents,
	}

	if recent, err := h.store.RecentRatings(r.Context(), req.Name, req.EnvID, 2); err == nil {
		if len(recent) > 0 {
			resp["current_rating"] = recent[0].Elo
		}
		if len(recent) > 1 {
			resp["previous_rating"] = recent[1].Elo
		} else {
			resp["previous_rating"] = models.DefaultElo
		}
	}

	respondWithJSON(w, http.StatusOK, resp)
}
