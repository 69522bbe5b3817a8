package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/h2kv/h2kv"
	"github.com/h2kv/h2kv/database"
	h2kvhttp "github.com/h2kv/h2kv/http"
	"github.com/h2kv/h2kv/ignore"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for h2kv.
type Config struct {
	Server  ServerConfig        `mapstructure:"server"`
	Storage StorageConfig       `mapstructure:"storage"`
	Sync    SyncConfig          `mapstructure:"sync"`
	CORS    h2kvhttp.CORSConfig `mapstructure:"cors"`
	Metrics MetricsConfig       `mapstructure:"metrics"`
	Log     LogConfig           `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxUploadSize   int64         `mapstructure:"max_upload_size" validate:"min=0"`
	TLSCert         string        `mapstructure:"tls_cert" validate:"required_with=TLSKey"`
	TLSKey          string        `mapstructure:"tls_key" validate:"required_with=TLSCert"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TLS reports whether a certificate is configured.
func (c ServerConfig) TLS() bool {
	return c.TLSCert != ""
}

// StorageConfig selects and configures the storage engine.
type StorageConfig struct {
	Engine    string `mapstructure:"engine" validate:"required,oneof=badger sqlite postgres memory"`
	Path      string `mapstructure:"path"`
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table" validate:"required"`
	CacheSize int    `mapstructure:"cache_size" validate:"min=-1"`
}

// Database returns the engine configuration.
func (c StorageConfig) Database(logger *slog.Logger) database.Config {
	return database.Config{
		Engine: c.Engine,
		Path:   c.Path,
		DSN:    c.DSN,
		Table:  c.Table,
		Logger: logger,
	}
}

// Store returns the object store configuration.
func (c StorageConfig) Store() h2kv.StoreConfig {
	return h2kv.StoreConfig{CacheSize: c.CacheSize}
}

// SyncConfig configures the sync directory. Sync is disabled without Dir.
type SyncConfig struct {
	Dir        string        `mapstructure:"dir"`
	WriteBack  bool          `mapstructure:"write_back"`
	Ignore     string        `mapstructure:"ignore"`
	SkipHidden bool          `mapstructure:"skip_hidden"`
	Watch      bool          `mapstructure:"watch"`
	Debounce   time.Duration `mapstructure:"debounce" validate:"min=0"`
}

// Enabled reports whether a sync directory is configured.
func (c SyncConfig) Enabled() bool {
	return c.Dir != ""
}

// Filter compiles the ignore patterns.
func (c SyncConfig) Filter() (*ignore.Filter, error) {
	set, err := ignore.Parse(c.Ignore)
	if err != nil {
		return nil, err
	}
	return ignore.NewFilter(set, c.SkipHidden), nil
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"host":         "server.host",
	"port":         "server.port",
	"tls-cert":     "server.tls_cert",
	"tls-key":      "server.tls_key",
	"engine":       "storage.engine",
	"data":         "storage.path",
	"dsn":          "storage.dsn",
	"sync-dir":     "sync.dir",
	"write-back":   "sync.write_back",
	"ignore":       "sync.ignore",
	"skip-hidden":  "sync.skip_hidden",
	"watch":        "sync.watch",
	"metrics-addr": "metrics.addr",
	"log-level":    "log.level",
	"log-format":   "log.format",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 5928)
	v.SetDefault("server.max_upload_size", 0) // 0 means no limit
	v.SetDefault("server.tls_cert", "")
	v.SetDefault("server.tls_key", "")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("storage.engine", database.EngineBadger)
	v.SetDefault("storage.path", "./h2kv-data")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.table", "h2kv_kv")
	v.SetDefault("storage.cache_size", 0)

	v.SetDefault("sync.dir", "")
	v.SetDefault("sync.write_back", false)
	v.SetDefault("sync.ignore", "")
	v.SetDefault("sync.skip_hidden", true)
	v.SetDefault("sync.watch", false)
	v.SetDefault("sync.debounce", 500*time.Millisecond)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9128")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("H2KV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// H2KV_IGNORE is the short form of H2KV_SYNC_IGNORE.
	_ = v.BindEnv("sync.ignore", "H2KV_SYNC_IGNORE", "H2KV_IGNORE")

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// 7. Checks spanning several sections
	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) check() error {
	switch c.Storage.Engine {
	case database.EngineSQLite, database.EnginePostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the %s engine", c.Storage.Engine)
		}
	}

	if c.Sync.WriteBack && !c.Sync.Enabled() {
		return errors.New("sync.write_back requires sync.dir")
	}
	if c.Sync.Watch && !c.Sync.Enabled() {
		return errors.New("sync.watch requires sync.dir")
	}

	if c.Sync.Enabled() {
		info, err := os.Stat(c.Sync.Dir)
		if err != nil {
			return fmt.Errorf("sync.dir: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("sync.dir: %s is not a directory", c.Sync.Dir)
		}
	}

	if _, err := ignore.Parse(c.Sync.Ignore); err != nil {
		return fmt.Errorf("sync.ignore: %w", err)
	}

	return nil
}
