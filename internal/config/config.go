// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultTokenListURL is the public strict token list.
const DefaultTokenListURL = "https://token.jup.ag/strict"

// Lending environments accepted by the protocol config.
const (
	EnvProduction = "production"
	EnvDev        = "dev"
)

// Config holds all runtime settings.
type Config struct {
	AppEnv   string
	LogLevel string
	HTTPAddr string

	// AllowedOrigins may open the market stream websocket. Empty means same
	// origin only; "*" allows any origin.
	AllowedOrigins []string

	RPCPrimary      string
	RPCFallbacks    []string
	RPCProbeTimeout time.Duration

	LendingEnv       string
	LendingBridgeURL string

	TokenListURL string
	MetadataTTL  time.Duration

	UseMemory     bool
	PostgresDSN   string
	ClickhouseDSN string
}

// LoadDotEnv loads .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// Load reads Config from the environment.
func Load() Config {
	return Config{
		AppEnv:   getEnv("APP_ENV", "local"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		AllowedOrigins: ParseList(os.Getenv("ALLOWED_ORIGINS")),

		RPCPrimary:      strings.TrimSpace(getEnv("SOLANA_RPC_PRIMARY", "")),
		RPCFallbacks:    ParseList(os.Getenv("SOLANA_RPC_FALLBACKS")),
		RPCProbeTimeout: getEnvDuration("RPC_PROBE_TIMEOUT", 5*time.Second),

		LendingEnv:       NormalizeLendingEnv(getEnv("MRGN_ENV", EnvProduction)),
		LendingBridgeURL: getEnv("LENDING_BRIDGE_URL", "http://localhost:7070"),

		TokenListURL: getEnv("TOKEN_LIST_URL", DefaultTokenListURL),
		MetadataTTL:  getEnvDuration("METADATA_TTL", 30*time.Minute),

		UseMemory:     getEnvBool("USE_MEMORY", true),
		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		ClickhouseDSN: getEnv("CLICKHOUSE_DSN", ""),
	}
}

// Validate checks settings that have no usable default.
func (c Config) Validate() error {
	if !c.UseMemory && (c.PostgresDSN == "" || c.ClickhouseDSN == "") {
		return fmt.Errorf("POSTGRES_DSN and CLICKHOUSE_DSN are required when USE_MEMORY=false")
	}
	if c.MetadataTTL <= 0 {
		return fmt.Errorf("METADATA_TTL must be positive")
	}
	return nil
}

// NormalizeLendingEnv maps any tag containing "dev" to the dev environment
// and everything else to production.
func NormalizeLendingEnv(env string) string {
	if strings.Contains(strings.ToLower(env), "dev") {
		return EnvDev
	}
	return EnvProduction
}

// ParseList splits a comma-separated list, trimming entries and dropping empties.
func ParseList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err == nil {
			return b
		}
	}
	return fallback
}
