package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// TokenRegistry parses WALLETGATE_TOKEN_REGISTRY entries of the form
// "mint:symbol:decimals" separated by commas.
type TokenRegistry map[string]TokenEntry

// TokenEntry is one supported token.
type TokenEntry struct {
	Symbol   string
	Decimals int
}

// Decode implements envconfig.Decoder.
func (r *TokenRegistry) Decode(value string) error {
	registry := TokenRegistry{}
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			return fmt.Errorf("invalid token registry entry %q, want mint:symbol:decimals", entry)
		}
		decimals, err := strconv.Atoi(parts[2])
		if err != nil || decimals < 0 {
			return fmt.Errorf("invalid decimals in token registry entry %q", entry)
		}
		registry[parts[0]] = TokenEntry{Symbol: parts[1], Decimals: decimals}
	}
	*r = registry
	return nil
}

// Config contains all configuration parameters for the service.
type Config struct {
	ListenAddr    string        `envconfig:"LISTEN_ADDR" default:":9000"`
	RedisURL      string        `envconfig:"REDIS_URL"`
	SolanaRPCURL  string        `envconfig:"SOLANA_RPC_URL" default:"https://api.mainnet-beta.solana.com"`
	SwapProgramID string        `envconfig:"SWAP_PROGRAM_ID"`
	TokenRegistry TokenRegistry `envconfig:"TOKEN_REGISTRY"`
}

// Load reads configuration from WALLETGATE_-prefixed environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("walletgate", cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	return cfg, nil
}
