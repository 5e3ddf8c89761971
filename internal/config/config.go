// Package config supplies runtime configuration for the quiz client. Values
// come from environment variables, optionally seeded from a YAML file named
// by QUIZ_CONFIG_FILE. Network parameters are externally supplied constants,
// never computed.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the quiz client binaries need.
type Config struct {
	// Target network and deployed addresses.
	RPCEndpoint     string `yaml:"rpc_endpoint"`
	ChainID         int    `yaml:"chain_id"`
	ContractAddress string `yaml:"contract_address"`
	TokenAddress    string `yaml:"token_address"`

	// Wallet session. Empty means a read-only viewer.
	PlayerAddress string `yaml:"player_address"`

	// Local timers.
	PollInterval  time.Duration `yaml:"poll_interval"`
	CountdownTick time.Duration `yaml:"countdown_tick"`

	// Bridge listen address for the UI.
	BridgeAddr string `yaml:"bridge_addr"`

	// Keeper timing. The deployment scripts disagree on the rotation check
	// cadence (30s vs 31s); both are surfaced here rather than guessing
	// which one the contract considers authoritative.
	KeeperCheckInterval   time.Duration `yaml:"keeper_check_interval"`
	RotationInterval      time.Duration `yaml:"rotation_interval"`
	RotationCheckInterval time.Duration `yaml:"rotation_check_interval"`
}

// Defaults match the zkSync Sepolia deployment this client was built against.
func defaults() Config {
	return Config{
		RPCEndpoint:           "http://localhost:8545",
		ChainID:               300,
		ContractAddress:       "",
		TokenAddress:          "",
		PlayerAddress:         "",
		PollInterval:          5 * time.Second,
		CountdownTick:         time.Second,
		BridgeAddr:            ":8090",
		KeeperCheckInterval:   5 * time.Second,
		RotationInterval:      30 * time.Second,
		RotationCheckInterval: 31 * time.Second,
	}
}

// Load builds the configuration from the optional YAML file plus environment
// overrides. Environment always wins over the file.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("QUIZ_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.RPCEndpoint = getEnv("QUIZ_RPC_ENDPOINT", cfg.RPCEndpoint)
	cfg.ChainID = getEnvAsInt("QUIZ_CHAIN_ID", cfg.ChainID)
	cfg.ContractAddress = getEnv("QUIZ_CONTRACT_ADDRESS", cfg.ContractAddress)
	cfg.TokenAddress = getEnv("QUIZ_TOKEN_ADDRESS", cfg.TokenAddress)
	cfg.PlayerAddress = getEnv("QUIZ_PLAYER_ADDRESS", cfg.PlayerAddress)
	cfg.BridgeAddr = getEnv("QUIZ_BRIDGE_ADDR", cfg.BridgeAddr)
	cfg.PollInterval = getEnvAsDuration("QUIZ_POLL_INTERVAL", cfg.PollInterval)
	cfg.CountdownTick = getEnvAsDuration("QUIZ_COUNTDOWN_TICK", cfg.CountdownTick)
	cfg.KeeperCheckInterval = getEnvAsDuration("QUIZ_KEEPER_CHECK_INTERVAL", cfg.KeeperCheckInterval)
	cfg.RotationInterval = getEnvAsDuration("QUIZ_ROTATION_INTERVAL", cfg.RotationInterval)
	cfg.RotationCheckInterval = getEnvAsDuration("QUIZ_ROTATION_CHECK_INTERVAL", cfg.RotationCheckInterval)

	if cfg.ContractAddress == "" {
		return Config{}, fmt.Errorf("QUIZ_CONTRACT_ADDRESS is required")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
