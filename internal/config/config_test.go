package config

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopRun(*cobra.Command, *Config) error { return nil }

func TestValidateRequiresMongoURIAndJWTSecret(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.validate())

	cfg.MongoURI = "mongodb://localhost:27017"
	assert.Error(t, cfg.validate())

	cfg.JWTSecret = "secret"
	assert.NoError(t, cfg.validate())
}

func TestNewRootCommandAppliesDocumentedDefaults(t *testing.T) {
	cfg := &Config{}
	cmd := NewRootCommand(cfg, noopRun)
	cmd.SetArgs([]string{"--jwt-secret", "secret"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "0.0.0.0:8080", cfg.Bind)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "arena", cfg.MongoDatabase)
	assert.Equal(t, 180*time.Second, cfg.StepTimeout)
	assert.Equal(t, 400.0, cfg.MaxEloDelta)
	assert.Equal(t, 25, cfg.NumRecentGamesCap)
	assert.Equal(t, 60*time.Second, cfg.MinWaitForStandard)
}

func TestNewRootCommandFlagOverridesDefault(t *testing.T) {
	cfg := &Config{}
	cmd := NewRootCommand(cfg, noopRun)
	cmd.SetArgs([]string{"--jwt-secret", "secret", "--bind", "127.0.0.1:9090", "--max-elo-delta", "250"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "127.0.0.1:9090", cfg.Bind)
	assert.Equal(t, 250.0, cfg.MaxEloDelta)
}

func TestNewRootCommandEnvVarOverridesDefault(t *testing.T) {
	t.Setenv("ARENA_MONGO_URI", "mongodb://example.test:27017")
	t.Setenv("ARENA_JWT_SECRET", "from-env")

	cfg := &Config{}
	cmd := NewRootCommand(cfg, noopRun)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "mongodb://example.test:27017", cfg.MongoURI)
	assert.Equal(t, "from-env", cfg.JWTSecret)
}

func TestNewRootCommandRejectsUnknownArgs(t *testing.T) {
	cfg := &Config{}
	cmd := NewRootCommand(cfg, noopRun)
	cmd.SetArgs([]string{"serve-now"})
	assert.Error(t, cmd.Execute())
}
