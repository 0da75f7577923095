package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/jonradoff/arena-server/internal/middleware"
)

// NewRouter wires every endpoint in the wire table to its handler, wrapped
// in the ambient CORS and security-header middleware and its per-endpoint
// rate limit.
func NewRouter(agentH *AgentHandler, humanH *HumanHandler, limiter *middleware.RateLimiter) http.Handler {
	r := mux.NewRouter()

	ip := middleware.GetClientIP
	limited := func(cfg middleware.RateLimitConfig, h http.HandlerFunc) http.HandlerFunc {
		return limiter.RateLimitHandler(cfg, ip, h)
	}

	r.HandleFunc("/register_model", limited(middleware.RegisterModelLimit, agentH.RegisterModel)).Methods(http.MethodPost)
	r.HandleFunc("/join_matchmaking", limited(middleware.JoinMatchmakingLimit, agentH.JoinMatchmaking)).Methods(http.MethodPost)
	r.HandleFunc("/leave_matchmaking", limited(middleware.JoinMatchmakingLimit, agentH.LeaveMatchmaking)).Methods(http.MethodPost)
	r.HandleFunc("/check_matchmaking_status", limited(middleware.PollLimit, agentH.CheckMatchmakingStatus)).Methods(http.MethodGet)
	r.HandleFunc("/check_turn", limited(middleware.PollLimit, agentH.CheckTurn)).Methods(http.MethodGet)
	r.HandleFunc("/step", limited(middleware.StepLimit, agentH.Step)).Methods(http.MethodPost)
	r.HandleFunc("/get_results", limited(middleware.PollLimit, agentH.GetResults)).Methods(http.MethodPost)

	r.HandleFunc("/human/register", limited(middleware.HumanRegisterLimit, humanH.Register)).Methods(http.MethodPost)
	r.HandleFunc("/human/join_matchmaking", limited(middleware.JoinMatchmakingLimit, humanH.JoinMatchmaking)).Methods(http.MethodPost)
	r.HandleFunc("/human/check_matchmaking_status", limited(middleware.PollLimit, humanH.CheckMatchmakingStatus)).Methods(http.MethodGet)
	r.HandleFunc("/human/check_turn", limited(middleware.PollLimit, humanH.CheckTurn)).Methods(http.MethodGet)
	r.HandleFunc("/human/make_move", limited(middleware.StepLimit, humanH.MakeMove)).Methods(http.MethodPost)
	r.HandleFunc("/human/get_match_outcome", limited(middleware.PollLimit, humanH.GetMatchOutcome)).Methods(http.MethodGet)
	r.HandleFunc("/human/get_stats", limited(middleware.PollLimit, humanH.GetStats)).Methods(http.MethodGet)

	corsWrapped := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(r)

	return middleware.SecurityHeaders(corsWrapped)
}
