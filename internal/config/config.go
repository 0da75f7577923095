// Package config builds the arena-server CLI surface and resolves runtime
// configuration from flags and ARENA_-prefixed environment variables, via
// cobra + viper. No config file is read.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds every knob the server needs at startup, including the
// spec's fixed tuning constants — exposed as flags so a deployment can
// override them without a rebuild, but defaulting to the documented values.
type Config struct {
	Bind          string
	MongoURI      string
	MongoDatabase string
	JWTSecret     string

	MatchmakingInterval            time.Duration
	StepTimeout                    time.Duration
	MatchmakingInactivityTimeout   time.Duration
	MaxEloDelta                    float64
	PctTimeBase                    float64
	NumRecentGamesCap              int
	MinWaitForStandard             time.Duration
	RecencyWindow                  time.Duration
	DefaultQueueTimeLimit           time.Duration

	Verbose bool
}

func (c *Config) validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("--mongo-uri must be set")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("--jwt-secret must be set")
	}
	return nil
}

// NewRootCommand builds the root `arena-server` CLI command, which takes no
// positional arguments. run is called
// once flags/env/config-file resolution has populated cfg and validate has
// passed.
func NewRootCommand(cfg *Config, run func(cmd *cobra.Command, cfg *Config) error) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("ARENA")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "arena-server",
		Short:         "Competitive-play server for text-based agent games.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd, cfg)
		},
	}

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.Bind, "bind", "0.0.0.0:8080", "address to listen on (env: ARENA_BIND)")
	fs.StringVar(&cfg.MongoURI, "mongo-uri", "mongodb://localhost:27017", "MongoDB connection URI (env: ARENA_MONGO_URI)")
	fs.StringVar(&cfg.MongoDatabase, "mongo-database", "arena", "MongoDB database name (env: ARENA_MONGO_DATABASE)")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "HMAC secret for participant bearer tokens (env: ARENA_JWT_SECRET)")

	fs.DurationVar(&cfg.MatchmakingInterval, "matchmaking-interval", 3*time.Second, "ticker period for the Matchmaker + Sweeper loop (env: ARENA_MATCHMAKING_INTERVAL)")
	fs.DurationVar(&cfg.StepTimeout, "step-timeout", 180*time.Second, "per-turn deadline before forfeit (env: ARENA_STEP_TIMEOUT)")
	fs.DurationVar(&cfg.MatchmakingInactivityTimeout, "matchmaking-inactivity-timeout", 30*time.Second, "queue entry idle timeout (env: ARENA_MATCHMAKING_INACTIVITY_TIMEOUT)")
	fs.Float64Var(&cfg.MaxEloDelta, "max-elo-delta", 400, "maximum rating gap allowed in a match (env: ARENA_MAX_ELO_DELTA)")
	fs.Float64Var(&cfg.PctTimeBase, "pct-time-base", 0.5, "floor of the matchmaker's wait-time score component (env: ARENA_PCT_TIME_BASE)")
	fs.IntVar(&cfg.NumRecentGamesCap, "num-recent-games-cap", 25, "cap on the matchmaker's recency penalty (env: ARENA_NUM_RECENT_GAMES_CAP)")
	fs.DurationVar(&cfg.MinWaitForStandard, "min-wait-for-standard", 60*time.Second, "minimum queue wait before a Standard opponent is offered (env: ARENA_MIN_WAIT_FOR_STANDARD)")
	fs.DurationVar(&cfg.RecencyWindow, "recency-window", 3*time.Hour, "lookback window for the matchmaker's recent-meetings component (env: ARENA_RECENCY_WINDOW)")
	fs.DurationVar(&cfg.DefaultQueueTimeLimit, "default-queue-time-limit", 300*time.Second, "default queue_time_limit when join_matchmaking omits one (env: ARENA_DEFAULT_QUEUE_TIME_LIMIT)")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "verbose flag; parsed into Config.Verbose but not read by the server (env: ARENA_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SilenceUsage = true

	return cmd
}
