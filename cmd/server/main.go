// Command arena-server runs the competitive-play server: it seeds the
// Environment catalog and pre-seeded Participants, then serves the agent
// and human HTTP surfaces while a background loop sweeps timeouts and runs
// matchmaking.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonradoff/arena-server/internal/agent"
	"github.com/jonradoff/arena-server/internal/auth"
	"github.com/jonradoff/arena-server/internal/config"
	"github.com/jonradoff/arena-server/internal/handlers"
	"github.com/jonradoff/arena-server/internal/matchmaker"
	"github.com/jonradoff/arena-server/internal/middleware"
	"github.com/jonradoff/arena-server/internal/models"
	"github.com/jonradoff/arena-server/internal/rating"
	"github.com/jonradoff/arena-server/internal/rules"
	"github.com/jonradoff/arena-server/internal/session"
	"github.com/jonradoff/arena-server/internal/store"
	"github.com/jonradoff/arena-server/internal/sweeper"
)

// seedEnvironments are the catalogs this build ships with. A real
// deployment wiring an external Rules library would list its environments
// here instead; the reference Nim engine is the only one this repo can run
// standalone, registered with one Standard opponent so solo agents always
// have someone to be matched against.
var seedEnvironments = []struct {
	id           string
	numPlayers   int
	standardName string
}{
	{id: "Nim-v0", numPlayers: 2, standardName: "StandardNim"},
}

func main() {
	cfg := &config.Config{}
	cmd := config.NewRootCommand(cfg, run)
	if err := cmd.Execute(); err != nil {
		log.Fatalf("arena-server: %v", err)
	}
}

func run(cmd *cobra.Command, cfg *config.Config) error {
	st, err := store.New(cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Close(ctx); err != nil {
			log.Printf("arena-server: error closing store: %v", err)
		}
	}()

	ctx := context.Background()
	standardNames, err := seed(ctx, st)
	if err != nil {
		return err
	}

	agents := agent.NewRegistry()
	for _, env := range seedEnvironments {
		if env.standardName != "" {
			agents.Register(env.standardName, agent.NewNimAgent())
		}
	}

	authSvc := auth.NewService(cfg.JWTSecret)
	updater := rating.NewUpdater(st, standardNames)
	sessions := session.NewRegistry(st, updater, rules.NimFactory{}, agents)
	mm := matchmaker.New(st, sessions, matchmaker.Tuning{
		MaxEloDelta:        cfg.MaxEloDelta,
		PctTimeBase:        cfg.PctTimeBase,
		NumRecentGamesCap:  cfg.NumRecentGamesCap,
		MinWaitForStandard: cfg.MinWaitForStandard.Seconds(),
	})
	sw := sweeper.New(st, sessions, updater)

	stopTicker := make(chan struct{})
	go runTicker(cfg, sw, mm, stopTicker)
	defer close(stopTicker)

	agentHandler := handlers.NewAgentHandler(st, sessions, authSvc, cfg.DefaultQueueTimeLimit.Seconds())
	humanHandler := handlers.NewHumanHandler(st, sessions, cfg.DefaultQueueTimeLimit.Seconds())
	limiter := middleware.NewRateLimiter()
	defer limiter.Stop()

	router := handlers.NewRouter(agentHandler, humanHandler, limiter)
	srv := &http.Server{
		Addr:         cfg.Bind,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("arena-server: listening on %s", cfg.Bind)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Println("arena-server: shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runTicker drives the Sweeper then the Matchmaker every MatchmakingInterval:
// timeouts must be resolved before a fresh matching pass looks at the queue.
func runTicker(cfg *config.Config, sw *sweeper.Sweeper, mm *matchmaker.Matchmaker, stop <-chan struct{}) {
	ticker := time.NewTicker(cfg.MatchmakingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), cfg.MatchmakingInterval)
			sw.Tick(ctx, cfg.StepTimeout.Seconds(), cfg.MatchmakingInactivityTimeout.Seconds())
			mm.Tick(ctx, cfg.RecencyWindow.Seconds())
			cancel()
		}
	}
}

// seed pre-creates the Environment catalog rows and the Humanity/Standard
// Participants with an initial rating row, so a fresh deployment has a
// matchable pool from the moment it starts. Returns the Standard
// participant names for the Rating Updater's K-factor lookup.
func seed(ctx context.Context, st *store.Store) ([]string, error) {
	if err := seedParticipant(ctx, st, models.HumanityName, "Shared pseudo-participant for human players", false); err != nil {
		return nil, err
	}

	var standardNames []string
	for _, env := range seedEnvironments {
		if err := st.UpsertEnvironment(ctx, &models.Environment{
			ID:           env.id,
			NumPlayers:   env.numPlayers,
			HasStandard:  env.standardName != "",
			StandardName: env.standardName,
		}); err != nil {
			return nil, err
		}
		if _, err := st.LatestRating(ctx, models.HumanityName, env.id); err == store.ErrNotFound {
			if err := st.AppendRating(ctx, &models.Rating{
				ParticipantName: models.HumanityName,
				EnvID:           env.id,
				Elo:             models.DefaultElo,
				UpdatedAt:       store.NowSeconds(),
			}); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}
		if env.standardName == "" {
			continue
		}
		if err := seedParticipant(ctx, st, env.standardName, "Pre-seeded in-process reference agent", true); err != nil {
			return nil, err
		}
		standardNames = append(standardNames, env.standardName)

		if _, err := st.LatestRating(ctx, env.standardName, env.id); err == store.ErrNotFound {
			if err := st.AppendRating(ctx, &models.Rating{
				ParticipantName: env.standardName,
				EnvID:           env.id,
				Elo:             models.DefaultElo,
				UpdatedAt:       store.NowSeconds(),
			}); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}
	}

	return standardNames, nil
}

func seedParticipant(ctx context.Context, st *store.Store, name, description string, isStandard bool) error {
	if _, err := st.GetParticipantByName(ctx, name); err == nil {
		return nil
	} else if err != store.ErrNotFound {
		return err
	}
	return st.CreateParticipant(ctx, &models.Participant{
		Name:        name,
		Description: description,
		Token:       name,
		IsStandard:  isStandard,
	})
}
