package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLendingEnv(t *testing.T) {
	assert.Equal(t, EnvDev, NormalizeLendingEnv("dev"))
	assert.Equal(t, EnvDev, NormalizeLendingEnv("DEVNET"))
	assert.Equal(t, EnvDev, NormalizeLendingEnv("staging-dev"))
	assert.Equal(t, EnvProduction, NormalizeLendingEnv("production"))
	assert.Equal(t, EnvProduction, NormalizeLendingEnv("mainnet"))
	assert.Equal(t, EnvProduction, NormalizeLendingEnv(""))
}

func TestParseList(t *testing.T) {
	assert.Nil(t, ParseList(""))
	assert.Equal(t, []string{"a", "b"}, ParseList(" a , ,b,"))
}

func TestLoad(t *testing.T) {
	t.Setenv("SOLANA_RPC_PRIMARY", " https://primary.example ")
	t.Setenv("SOLANA_RPC_FALLBACKS", "https://f1.example, https://f2.example")
	t.Setenv("MRGN_ENV", "dev")
	t.Setenv("METADATA_TTL", "10m")
	t.Setenv("RPC_PROBE_TIMEOUT", "bogus")
	t.Setenv("USE_MEMORY", "false")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example, https://admin.example")

	cfg := Load()

	assert.Equal(t, "https://primary.example", cfg.RPCPrimary)
	assert.Equal(t, []string{"https://f1.example", "https://f2.example"}, cfg.RPCFallbacks)
	assert.Equal(t, EnvDev, cfg.LendingEnv)
	assert.Equal(t, 10*time.Minute, cfg.MetadataTTL)
	assert.Equal(t, 5*time.Second, cfg.RPCProbeTimeout)
	assert.False(t, cfg.UseMemory)
	assert.Equal(t, DefaultTokenListURL, cfg.TokenListURL)
	assert.Equal(t, []string{"https://app.example", "https://admin.example"}, cfg.AllowedOrigins)

	assert.Error(t, cfg.Validate())
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=debug\nHTTP_ADDR=:9999\n"), 0o600))

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("HTTP_ADDR", "")
	os.Unsetenv("HTTP_ADDR")

	LoadDotEnv(path)
	t.Cleanup(func() { os.Unsetenv("HTTP_ADDR") })

	assert.Equal(t, "warn", os.Getenv("LOG_LEVEL"))
	assert.Equal(t, ":9999", os.Getenv("HTTP_ADDR"))
}

func TestLoad_NoImplicitRPCEndpoint(t *testing.T) {
	t.Setenv("SOLANA_RPC_PRIMARY", "")
	t.Setenv("SOLANA_RPC_FALLBACKS", "")

	cfg := Load()

	assert.Empty(t, cfg.RPCPrimary)
	assert.Empty(t, cfg.RPCFallbacks)
}
