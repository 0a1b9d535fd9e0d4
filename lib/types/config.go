// Configuration and settings types
package types

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Relay   RelayConfig   `mapstructure:"relay"`
	Policy  PolicyConfig  `mapstructure:"policy"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Store   StoreConfig   `mapstructure:"store"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	BindAddress string `mapstructure:"bind_address"`
	DataPath    string `mapstructure:"data_path"`
	Metrics     bool   `mapstructure:"metrics"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"` // stdout, file, both
	Path   string `mapstructure:"path"`
	// Rotation settings for file output
	MaxSizeMB  int `mapstructure:"max_size_mb"`
	MaxBackups int `mapstructure:"max_backups"`
	MaxAgeDays int `mapstructure:"max_age_days"`
}

// RelayConfig holds the NIP-11 relay information
type RelayConfig struct {
	Name          string `mapstructure:"name"`
	Description   string `mapstructure:"description"`
	Contact       string `mapstructure:"contact"`
	Icon          string `mapstructure:"icon"`
	Software      string `mapstructure:"software"`
	Version       string `mapstructure:"version"`
	SupportedNIPs []int  `mapstructure:"supported_nips"`
}

// PolicyConfig holds the write policy of the relay.
// It is read once on start and never changed afterwards.
type PolicyConfig struct {
	Owner                 string `mapstructure:"owner"`
	AllPass               bool   `mapstructure:"all_pass"`
	FollowsPass           bool   `mapstructure:"follows_pass"`
	ProofOfWorkEnabled    bool   `mapstructure:"proof_of_work_enabled"`
	ProofOfWorkDifficulty int    `mapstructure:"proof_of_work_difficulty"`
}

// CacheConfig holds dedupe cache configuration
type CacheConfig struct {
	Backend          string `mapstructure:"backend"` // memory, redis
	RedisURL         string `mapstructure:"redis_url"`
	Prefix           string `mapstructure:"prefix"`
	MaxEntries       int    `mapstructure:"max_entries"`
	DuplicateTTLSecs int    `mapstructure:"duplicate_ttl_seconds"`
	AcceptedTTLSecs  int    `mapstructure:"accepted_ttl_seconds"`
}

// StoreConfig holds event store configuration
type StoreConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
	MaxLimit int    `mapstructure:"max_limit"`
}
