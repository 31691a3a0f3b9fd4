package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, cfg.PollInterval())
	assert.Equal(t, 60*time.Second, cfg.AgentInterval())
	assert.Equal(t, 10.0, cfg.Scoring.BuyThreshold)
	assert.Equal(t, 0.85, cfg.Arbitrage.SimilarityThreshold)
	assert.Equal(t, 0.0, cfg.Arbitrage.FeePercent)
	assert.Equal(t, 30, cfg.Backtest.Days)
	assert.Equal(t, 1000.0, cfg.Agent.InitialBalance)
	assert.Equal(t, []string{"Polymarket", "Manifold"}, cfg.API.Platforms)
	assert.Equal(t, ":5001", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("BETGPT_BACKTEST_SEED", "42")
	t.Setenv("ORACLE_API_KEY", "secret")

	cfg, err := Load(writeConfig(t, `
engine:
  poll_interval_seconds: 15
arbitrage:
  similarity_threshold: 0.9
  fee_percent: 2
agent:
  stake_per_trade: 25
api:
  platforms: [Manifold]
`))
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.PollInterval())
	assert.Equal(t, 0.9, cfg.Arbitrage.SimilarityThreshold)
	assert.Equal(t, 2.0, cfg.Arbitrage.FeePercent)
	assert.Equal(t, 25.0, cfg.Agent.StakePerTrade)
	assert.Equal(t, []string{"Manifold"}, cfg.API.Platforms)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, uint64(42), cfg.Backtest.Seed)
	assert.Equal(t, "secret", cfg.API.OracleAPIKey)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeConfig(t, `
arbitrage:
  similarity_threshold: 1.5
api:
  platforms: [Kalshi]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "similarity_threshold")
	assert.Contains(t, err.Error(), "Kalshi")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
