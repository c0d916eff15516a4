package cfg

import (
	"flag"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/rs/zerolog/log"
)

// DatabaseConfiguration controls the SQLite file the engine executes against
type DatabaseConfiguration struct {
	Path          string `toml:"path"`
	Name          string `toml:"name"` // Reported by SHOW TABLES as Tables_in_<name>
	BusyTimeoutMS int    `toml:"busy_timeout_ms"`
	JournalMode   string `toml:"journal_mode"`
}

// RetryConfiguration controls how busy/locked SQLite errors are retried
type RetryConfiguration struct {
	MaxAttempts      int `toml:"max_attempts"`       // 0 = retry until success
	InitialBackoffMS int `toml:"initial_backoff_ms"` // First sleep between attempts
	MaxBackoffMS     int `toml:"max_backoff_ms"`     // Backoff doubles up to this cap
}

// ExecutionConfiguration controls statement execution
type ExecutionConfiguration struct {
	ParamScanBudget     int  `toml:"param_scan_budget"`      // Initial literal scanner budget
	MaxParamScanBudget  int  `toml:"max_param_scan_budget"`  // Budget ceiling, beyond it the query is rejected
	SplitMultiRowInsert bool `toml:"split_multi_row_insert"` // Force one INSERT per VALUES tuple
	SuppressErrors      bool `toml:"suppress_errors"`        // Hide messages from ErrorMessage()
	RewriteCacheSize    int  `toml:"rewrite_cache_size"`     // Entries kept in each rewrite cache
}

// LoggingConfiguration controls logging behavior
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// AdminConfiguration controls the read-only admin endpoints. They share
// the listener configured under [prometheus].
type AdminConfiguration struct {
	Enabled bool   `toml:"enabled"`
	Secret  string `toml:"secret"` // Required as a bearer token when set
}

// PrometheusConfiguration for metrics
type PrometheusConfiguration struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Port    int    `toml:"port"`
}

// Configuration is the main configuration structure
type Configuration struct {
	InstanceID uint64 `toml:"instance_id"`

	Database   DatabaseConfiguration   `toml:"database"`
	Retry      RetryConfiguration      `toml:"retry"`
	Execution  ExecutionConfiguration  `toml:"execution"`
	Logging    LoggingConfiguration    `toml:"logging"`
	Prometheus PrometheusConfiguration `toml:"prometheus"`
	Admin      AdminConfiguration      `toml:"admin"`
}

// Command line flags
var (
	ConfigPathFlag = flag.String("config", "config.toml", "Path to configuration file")
	DatabaseFlag   = flag.String("db", "", "SQLite database file (overrides config)")
	FileFlag       = flag.String("file", "", "SQL script to execute (default stdin)")
	VerboseFlag    = flag.Bool("verbose", false, "Enable debug logging (overrides config)")
)

// Default configuration
// Literal scanner budgets used when none are configured
const (
	DefaultParamScanBudget    = 1_000_000
	DefaultMaxParamScanBudget = 64_000_000
)

var Config = &Configuration{
	InstanceID: 0, // Auto-generate

	Database: DatabaseConfiguration{
		Path:          "./mylite.db",
		Name:          "main",
		BusyTimeoutMS: 0,
		JournalMode:   "WAL",
	},

	Retry: RetryConfiguration{
		MaxAttempts:      0,
		InitialBackoffMS: 1,
		MaxBackoffMS:     100,
	},

	Execution: ExecutionConfiguration{
		ParamScanBudget:     DefaultParamScanBudget,
		MaxParamScanBudget:  DefaultMaxParamScanBudget,
		SplitMultiRowInsert: false,
		SuppressErrors:      false,
		RewriteCacheSize:    1024,
	},

	Logging: LoggingConfiguration{
		Verbose: false,
		Format:  "console",
	},

	Prometheus: PrometheusConfiguration{
		Enabled: false,
		Address: "127.0.0.1",
		Port:    9090,
	},

	Admin: AdminConfiguration{
		Enabled: false,
		Secret:  "",
	},
}

// Load loads configuration from file and applies CLI overrides
func Load(configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			if _, err := toml.DecodeFile(configPath, Config); err != nil {
				return fmt.Errorf("failed to decode config: %w", err)
			}
		} else {
			log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	if *DatabaseFlag != "" {
		Config.Database.Path = *DatabaseFlag
	}
	if *VerboseFlag {
		Config.Logging.Verbose = true
	}

	if Config.InstanceID == 0 {
		var err error
		Config.InstanceID, err = generateInstanceID()
		if err != nil {
			// Containers without a machine id still get a usable instance label
			log.Warn().Err(err).Msg("Failed to read machine ID, falling back to database path")
			Config.InstanceID = hashString(Config.Database.Path)
		}
		log.Debug().Uint64("instance_id", Config.InstanceID).Msg("Auto-generated instance ID")
	}

	if dir := filepath.Dir(Config.Database.Path); dir != "" && Config.Database.Path != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return nil
}

// generateInstanceID creates a stable instance ID based on machine ID
func generateInstanceID() (uint64, error) {
	id, err := machineid.ProtectedID("mylite")
	if err != nil {
		return 0, err
	}
	return hashString(id), nil
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// HTTPEnabled reports whether the metrics/admin listener should start
func HTTPEnabled() bool {
	return Config.Prometheus.Enabled || Config.Admin.Enabled
}

// Validate checks configuration for errors
func Validate() error {
	if Config.Database.Path == "" {
		return fmt.Errorf("database path must not be empty")
	}

	if Config.Database.BusyTimeoutMS < 0 {
		return fmt.Errorf("busy timeout must be >= 0")
	}

	switch Config.Database.JournalMode {
	case "", "WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "OFF":
	default:
		return fmt.Errorf("invalid journal mode: %s", Config.Database.JournalMode)
	}

	if Config.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry max attempts must be >= 0")
	}

	if Config.Retry.InitialBackoffMS < 0 {
		return fmt.Errorf("retry initial backoff must be >= 0")
	}

	if Config.Retry.MaxBackoffMS < Config.Retry.InitialBackoffMS {
		return fmt.Errorf("retry max backoff must be >= initial backoff")
	}

	if Config.Execution.ParamScanBudget < 1 {
		return fmt.Errorf("param scan budget must be >= 1")
	}

	if Config.Execution.MaxParamScanBudget < Config.Execution.ParamScanBudget {
		return fmt.Errorf("max param scan budget must be >= param scan budget")
	}

	if Config.Execution.RewriteCacheSize < 1 {
		return fmt.Errorf("rewrite cache size must be >= 1")
	}

	if Config.Logging.Format != "console" && Config.Logging.Format != "json" {
		return fmt.Errorf("invalid logging format: %s", Config.Logging.Format)
	}

	if (Config.Prometheus.Enabled || Config.Admin.Enabled) && (Config.Prometheus.Port < 1 || Config.Prometheus.Port > 65535) {
		return fmt.Errorf("invalid prometheus port: %d", Config.Prometheus.Port)
	}

	return nil
}
