// Package config provides environment-aware configuration management for
// every rollups role process (state-fold powered roles all embed it).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	rollupsruntime "github.com/cartesi/rollups-sub002/internal/runtime"
	"github.com/joho/godotenv"
)

// Environment represents the deployment environment.
type Environment = rollupsruntime.Environment

const (
	Development = rollupsruntime.Development
	Testing     = rollupsruntime.Testing
	Production  = rollupsruntime.Production
)

// Chain holds the L1 connectivity and reorg-safety configuration shared by
// every role that reads on-chain state (the dispatcher, which embeds the
// state-fold engine, and the claimer).
type Chain struct {
	RPCURL             string
	WSURL              string
	ChainID            uint64
	DAppAddress        string
	InputBoxAddress    string
	HistoryAddress     string
	AuthorityAddress   string
	ConfirmationDepth  uint64
	SafetyMarginBlocks uint64
	LogFetchMaxRange   uint64
	LogFetchFanout     int
}

// Broker holds the Redis Streams connection shared by every role.
type Broker struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ChainID       uint64
	DAppAddress   string
}

// Machine holds the advance runner's deterministic-machine session config.
type Machine struct {
	Endpoint               string
	CheckInTimeout         time.Duration
	AdvanceTimeout         time.Duration
	InspectTimeout         time.Duration
	StoreTimeout           time.Duration
	FastTimeout            time.Duration
	InstantiationTimeout   time.Duration
	PendingInputMaxRetries int
	PendingInputRetryWait  time.Duration
}

// Snapshot holds the advance runner's snapshot manager config.
type Snapshot struct {
	Enabled   bool
	Directory string
}

// Signer selects and configures the authority claimer's transaction signer.
type Signer struct {
	// Kind is either "mnemonic" or "kms".
	Kind string

	MnemonicPath       string
	MnemonicAccountIdx uint32

	KMSKeyID string
	KMSRegion string
}

// Epoch holds the dispatcher's epoch-rotation duration policy.
type Epoch struct {
	Duration time.Duration
}

// Database holds the indexer's relational store config.
type Database struct {
	DSN              string
	MaxConnections   int
	IdleTimeout      time.Duration
}

// Backoff holds a bounded exponential-backoff budget read from the
// BACKOFF_* variables. The L1, machine, broker and database clients in this
// repository do not read it; they use their own retry settings.
type Backoff struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

// Config holds all configuration for one role process. Each role's Load*
// function populates only the sections that role uses; the rest remain at
// their zero value.
type Config struct {
	Env Environment

	Chain    Chain
	Broker   Broker
	Machine  Machine
	Snapshot Snapshot
	Signer   Signer
	Epoch    Epoch
	Database Database
	Backoff  Backoff

	LogLevel  string
	LogFormat string
}

// loadEnvFile loads the environment-specific .env file, tolerating its
// absence (it is optional in every environment).
func loadEnvFile(env Environment) {
	configFile := filepath.Join("config", fmt.Sprintf("%s.env", env))
	if err := godotenv.Load(configFile); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Printf("Warning: Could not load %s: %v\n", configFile, err)
		}
	}
}

// resolveEnv reads ROLLUPS_ENV (falling back to development) the same way
// every role's Load does.
func resolveEnv() (Environment, error) {
	envStr := getEnv("ROLLUPS_ENV", string(Development))
	env, ok := rollupsruntime.ParseEnvironment(envStr)
	if !ok {
		return "", fmt.Errorf("invalid ROLLUPS_ENV: %s (must be development, testing, or production)", envStr)
	}
	return env, nil
}

func newBase() (*Config, error) {
	env, err := resolveEnv()
	if err != nil {
		return nil, err
	}
	loadEnvFile(env)

	cfg := &Config{Env: env}
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "json")

	cfg.Backoff.InitialInterval = getDurationEnv("BACKOFF_INITIAL_INTERVAL", 500*time.Millisecond)
	cfg.Backoff.MaxInterval = getDurationEnv("BACKOFF_MAX_INTERVAL", 30*time.Second)
	maxElapsed, err := getDurationEnvErr("BACKOFF_MAX_ELAPSED_TIME", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.Backoff.MaxElapsedTime = maxElapsed

	return cfg, nil
}

func loadChain(cfg *Config) error {
	cfg.Chain.RPCURL = getEnv("CHAIN_RPC_URL", "")
	if cfg.Chain.RPCURL == "" {
		return fmt.Errorf("CHAIN_RPC_URL is required")
	}
	cfg.Chain.WSURL = getEnv("CHAIN_WS_URL", "")
	chainID, err := getUint64EnvErr("CHAIN_ID", 31337)
	if err != nil {
		return fmt.Errorf("invalid CHAIN_ID: %w", err)
	}
	cfg.Chain.ChainID = chainID

	cfg.Chain.DAppAddress = getEnv("DAPP_ADDRESS", "")
	if cfg.Chain.DAppAddress == "" {
		return fmt.Errorf("DAPP_ADDRESS is required")
	}
	cfg.Chain.InputBoxAddress = getEnv("INPUT_BOX_ADDRESS", "")
	if cfg.Chain.InputBoxAddress == "" {
		return fmt.Errorf("INPUT_BOX_ADDRESS is required")
	}
	cfg.Chain.HistoryAddress = getEnv("HISTORY_ADDRESS", "")
	if cfg.Chain.HistoryAddress == "" {
		return fmt.Errorf("HISTORY_ADDRESS is required")
	}
	cfg.Chain.AuthorityAddress = getEnv("AUTHORITY_ADDRESS", "")

	depth, err := getUint64EnvErr("CONFIRMATION_DEPTH", 7)
	if err != nil {
		return fmt.Errorf("invalid CONFIRMATION_DEPTH: %w", err)
	}
	cfg.Chain.ConfirmationDepth = depth

	margin, err := getUint64EnvErr("SAFETY_MARGIN_BLOCKS", 20)
	if err != nil {
		return fmt.Errorf("invalid SAFETY_MARGIN_BLOCKS: %w", err)
	}
	cfg.Chain.SafetyMarginBlocks = margin

	logRange, err := getUint64EnvErr("LOG_FETCH_MAX_RANGE", 2000)
	if err != nil {
		return fmt.Errorf("invalid LOG_FETCH_MAX_RANGE: %w", err)
	}
	cfg.Chain.LogFetchMaxRange = logRange
	cfg.Chain.LogFetchFanout = getIntEnv("LOG_FETCH_FANOUT", 4)

	return nil
}

func loadBroker(cfg *Config) error {
	cfg.Broker.RedisAddr = getEnv("BROKER_REDIS_ADDR", "localhost:6379")
	cfg.Broker.RedisPassword = getEnv("BROKER_REDIS_PASSWORD", "")
	cfg.Broker.RedisDB = getIntEnv("BROKER_REDIS_DB", 0)
	cfg.Broker.ChainID = cfg.Chain.ChainID
	cfg.Broker.DAppAddress = cfg.Chain.DAppAddress
	return nil
}

// LoadStateFold loads the L1 chain configuration shared by the dispatcher
// (which embeds the state-fold engine) and the claimer.
func LoadStateFold() (*Config, error) {
	cfg, err := newBase()
	if err != nil {
		return nil, err
	}
	if err := loadChain(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDispatcher loads the dispatcher role's configuration.
func LoadDispatcher() (*Config, error) {
	cfg, err := LoadStateFold()
	if err != nil {
		return nil, err
	}
	if err := loadBroker(cfg); err != nil {
		return nil, err
	}
	epochDuration, err := getDurationEnvErr("EPOCH_DURATION", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid EPOCH_DURATION: %w", err)
	}
	cfg.Epoch.Duration = epochDuration
	return cfg, nil
}

// LoadAdvanceRunner loads the advance runner role's configuration.
func LoadAdvanceRunner() (*Config, error) {
	cfg, err := newBase()
	if err != nil {
		return nil, err
	}
	// Broker stream keys are derived from the chain section, so it must load
	// first even though the advance runner never dials L1 itself.
	if err := loadChain(cfg); err != nil {
		return nil, err
	}
	if err := loadBroker(cfg); err != nil {
		return nil, err
	}

	cfg.Machine.Endpoint = getEnv("MACHINE_ENDPOINT", "")
	if cfg.Machine.Endpoint == "" {
		return nil, fmt.Errorf("MACHINE_ENDPOINT is required")
	}
	cfg.Machine.CheckInTimeout = getDurationEnv("MACHINE_CHECKIN_TIMEOUT", 10*time.Second)
	cfg.Machine.AdvanceTimeout = getDurationEnv("MACHINE_ADVANCE_TIMEOUT", 180*time.Second)
	cfg.Machine.InspectTimeout = getDurationEnv("MACHINE_INSPECT_TIMEOUT", 60*time.Second)
	cfg.Machine.StoreTimeout = getDurationEnv("MACHINE_STORE_TIMEOUT", 180*time.Second)
	cfg.Machine.FastTimeout = getDurationEnv("MACHINE_FAST_TIMEOUT", 5*time.Second)
	cfg.Machine.InstantiationTimeout = getDurationEnv("MACHINE_INSTANTIATION_TIMEOUT", 60*time.Second)
	cfg.Machine.PendingInputMaxRetries = getIntEnv("MACHINE_PENDING_INPUT_MAX_RETRIES", 50)
	cfg.Machine.PendingInputRetryWait = getDurationEnv("MACHINE_PENDING_INPUT_RETRY_WAIT", 100*time.Millisecond)

	cfg.Snapshot.Enabled = getBoolEnv("SNAPSHOT_ENABLED", true)
	cfg.Snapshot.Directory = getEnv("SNAPSHOT_DIR", "/var/rollups/snapshots")
	if cfg.Snapshot.Enabled && cfg.Snapshot.Directory == "" {
		return nil, fmt.Errorf("SNAPSHOT_DIR is required when SNAPSHOT_ENABLED is true")
	}

	return cfg, nil
}

// LoadClaimer loads the authority claimer role's configuration.
func LoadClaimer() (*Config, error) {
	cfg, err := LoadStateFold()
	if err != nil {
		return nil, err
	}
	if err := loadBroker(cfg); err != nil {
		return nil, err
	}

	cfg.Signer.Kind = getEnv("SIGNER_KIND", "mnemonic")
	switch cfg.Signer.Kind {
	case "mnemonic":
		cfg.Signer.MnemonicPath = getEnv("SIGNER_MNEMONIC_PATH", "")
		if cfg.Signer.MnemonicPath == "" {
			return nil, fmt.Errorf("SIGNER_MNEMONIC_PATH is required when SIGNER_KIND=mnemonic")
		}
		idx, err := getUint64EnvErr("SIGNER_MNEMONIC_ACCOUNT_INDEX", 0)
		if err != nil {
			return nil, fmt.Errorf("invalid SIGNER_MNEMONIC_ACCOUNT_INDEX: %w", err)
		}
		cfg.Signer.MnemonicAccountIdx = uint32(idx)
	case "kms":
		cfg.Signer.KMSKeyID = getEnv("SIGNER_KMS_KEY_ID", "")
		if cfg.Signer.KMSKeyID == "" {
			return nil, fmt.Errorf("SIGNER_KMS_KEY_ID is required when SIGNER_KIND=kms")
		}
		cfg.Signer.KMSRegion = getEnv("SIGNER_KMS_REGION", "")
		if cfg.Signer.KMSRegion == "" {
			return nil, fmt.Errorf("SIGNER_KMS_REGION is required when SIGNER_KIND=kms")
		}
	default:
		return nil, fmt.Errorf("invalid SIGNER_KIND: %s (must be mnemonic or kms)", cfg.Signer.Kind)
	}

	return cfg, nil
}

// LoadIndexer loads the indexer role's configuration.
func LoadIndexer() (*Config, error) {
	cfg, err := newBase()
	if err != nil {
		return nil, err
	}
	if err := loadChain(cfg); err != nil {
		return nil, err
	}
	if err := loadBroker(cfg); err != nil {
		return nil, err
	}

	cfg.Database.DSN = getEnv("DATABASE_DSN", "")
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("DATABASE_DSN is required")
	}
	cfg.Database.MaxConnections = getIntEnv("DATABASE_MAX_CONNECTIONS", 20)
	cfg.Database.IdleTimeout = getDurationEnv("DATABASE_IDLE_TIMEOUT", 5*time.Minute)

	return cfg, nil
}

// IsDevelopment reports whether this config is for the development environment.
func (c *Config) IsDevelopment() bool { return c.Env == Development }

// IsTesting reports whether this config is for the testing environment.
func (c *Config) IsTesting() bool { return c.Env == Testing }

// IsProduction reports whether this config is for the production environment.
func (c *Config) IsProduction() bool { return c.Env == Production }

// Validate performs cross-field validation not already enforced while
// loading. Invalid configuration must be fatal at startup, before any
// external side effect (spec.md §6/§7).
func (c *Config) Validate() error {
	if c.Chain.ConfirmationDepth == 0 {
		return fmt.Errorf("CONFIRMATION_DEPTH must be greater than zero")
	}
	if c.Chain.SafetyMarginBlocks < c.Chain.ConfirmationDepth {
		return fmt.Errorf("SAFETY_MARGIN_BLOCKS must be >= CONFIRMATION_DEPTH")
	}
	if c.Epoch.Duration < 0 {
		return fmt.Errorf("EPOCH_DURATION must not be negative")
	}
	if c.Backoff.MaxElapsedTime <= 0 {
		return fmt.Errorf("BACKOFF_MAX_ELAPSED_TIME must be greater than zero")
	}
	if c.Signer.Kind != "" && c.Signer.Kind != "mnemonic" && c.Signer.Kind != "kms" {
		return fmt.Errorf("invalid SIGNER_KIND: %s", c.Signer.Kind)
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getUint64EnvErr(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getDurationEnvErr(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	return d, nil
}
