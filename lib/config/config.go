package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"

	"github.com/HORNET-Storage/hornet-gatekeeper/lib/policy"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/signing"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/types"
)

var (
	// Cache the configuration after first load
	cachedConfig    atomic.Value // stores *types.Config
	configLoadOnce  sync.Once
	configLoadError error
)

// InitConfig initializes the global viper configuration.
// The file is read once; the relay never watches it for changes because
// the write policy must not move under a running session.
func InitConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/app")

	viper.SetEnvPrefix("GATEKEEPER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("No config.yaml found, creating default configuration...")
			if err := viper.WriteConfigAs("config.yaml"); err != nil {
				return fmt.Errorf("failed to create default config: %w", err)
			}
			if err := viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read created config: %w", err)
			}
		} else {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := reloadConfigCache(); err != nil {
		return fmt.Errorf("failed to load initial config: %w", err)
	}

	return nil
}

// reloadConfigCache loads the configuration from viper into the cache
func reloadConfigCache() error {
	config := &types.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cachedConfig.Store(config)
	return nil
}

// GetConfig returns the cached configuration struct
func GetConfig() (*types.Config, error) {
	if cfg := cachedConfig.Load(); cfg != nil {
		return cfg.(*types.Config), nil
	}

	configLoadOnce.Do(func() {
		configLoadError = reloadConfigCache()
	})

	if configLoadError != nil {
		return nil, configLoadError
	}

	cfg := cachedConfig.Load()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}

	return cfg.(*types.Config), nil
}

// GetDataDir returns the configured data directory
func GetDataDir() string {
	if cfg, err := GetConfig(); err == nil && cfg.Server.DataPath != "" {
		return cfg.Server.DataPath
	}
	return "./data"
}

// GetPath joins a sub path onto the data directory
func GetPath(subPath string) string {
	return filepath.Join(GetDataDir(), subPath)
}

// PolicyFromConfig builds the immutable write policy from the loaded config.
func PolicyFromConfig(cfg *types.Config) (policy.Config, error) {
	owner, err := signing.NormalizePublicKey(cfg.Policy.Owner)
	if err != nil {
		return policy.Config{}, fmt.Errorf("policy.owner: %w", err)
	}

	p := policy.Config{
		RelayOwner:            owner,
		AllPass:               cfg.Policy.AllPass,
		FollowsPass:           cfg.Policy.FollowsPass,
		ProofOfWorkEnabled:    cfg.Policy.ProofOfWorkEnabled,
		ProofOfWorkDifficulty: cfg.Policy.ProofOfWorkDifficulty,
	}
	if err := p.Validate(); err != nil {
		return policy.Config{}, err
	}
	return p, nil
}

// DuplicateTTL returns the retention of duplicate markers in the dedupe cache.
func DuplicateTTL(cfg *types.Config) time.Duration {
	if cfg.Cache.DuplicateTTLSecs <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(cfg.Cache.DuplicateTTLSecs) * time.Second
}

// AcceptedTTL returns the retention of accepted markers in the dedupe cache.
func AcceptedTTL(cfg *types.Config) time.Duration {
	if cfg.Cache.AcceptedTTLSecs <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(cfg.Cache.AcceptedTTLSecs) * time.Second
}

// setDefaults fills every key; values from the file or environment win.
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 9000)
	viper.SetDefault("server.bind_address", "0.0.0.0")
	viper.SetDefault("server.data_path", "./data")
	viper.SetDefault("server.metrics", true)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.path", "./logs")
	viper.SetDefault("logging.max_size_mb", 100)
	viper.SetDefault("logging.max_backups", 7)
	viper.SetDefault("logging.max_age_days", 30)

	// Relay information (NIP-11)
	viper.SetDefault("relay.name", "HORNETS Gatekeeper")
	viper.SetDefault("relay.description", "A private nostr relay guarded by a follow list and proof of work")
	viper.SetDefault("relay.contact", "")
	viper.SetDefault("relay.icon", "")
	viper.SetDefault("relay.software", "https://github.com/HORNET-Storage/hornet-gatekeeper")
	viper.SetDefault("relay.version", "0.1.0")
	viper.SetDefault("relay.supported_nips", []int{1, 9, 11, 13})

	// Write policy
	viper.SetDefault("policy.owner", "")
	viper.SetDefault("policy.all_pass", false)
	viper.SetDefault("policy.follows_pass", true)
	viper.SetDefault("policy.proof_of_work_enabled", false)
	viper.SetDefault("policy.proof_of_work_difficulty", 0)

	// Dedupe cache
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.redis_url", "redis://localhost:6379/0")
	viper.SetDefault("cache.prefix", "gatekeeper:")
	viper.SetDefault("cache.max_entries", 100000)
	viper.SetDefault("cache.duplicate_ttl_seconds", 86400)
	viper.SetDefault("cache.accepted_ttl_seconds", 604800)

	// Event store
	viper.SetDefault("store.path", "")
	viper.SetDefault("store.in_memory", false)
	viper.SetDefault("store.max_limit", 500)
}
