// Package config provides configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. TARANTULA_SERVER_PORT.
const EnvPrefix = "TARANTULA"

// Config holds all application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Search  SearchConfig  `mapstructure:"search"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Watch   WatchConfig   `mapstructure:"watch"`
	TLS     TLSConfig     `mapstructure:"tls"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig    `mapstructure:"cors"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"` // e.g., ["https://example.com", "*.sub.domain.tld"]
}

// Enabled returns true if CORS is configured with at least one allowed origin.
func (c *CORSConfig) Enabled() bool {
	return len(c.AllowedOrigins) > 0
}

// StorageConfig holds object storage configuration. Layer files are always
// read from LocalPath; remote backends download into it.
type StorageConfig struct {
	Type      string      `mapstructure:"type"` // s3, azure, http, local
	LocalPath string      `mapstructure:"local_path"`
	S3        S3Config    `mapstructure:"s3"`
	Azure     AzureConfig `mapstructure:"azure"`
	HTTP      HTTPConfig  `mapstructure:"http"`
}

// S3Config holds AWS S3 configuration.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Prefix          string `mapstructure:"prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string `mapstructure:"container"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	ConnectionString string `mapstructure:"connection_string"`
	Prefix           string `mapstructure:"prefix"`
}

// HTTPConfig holds HTTP download configuration.
type HTTPConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	IndexFile string        `mapstructure:"index_file"` // default: index.txt
	Timeout   time.Duration `mapstructure:"timeout"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
}

// SearchConfig describes the layer catalog and how regions are loaded.
type SearchConfig struct {
	Districts      []string               `mapstructure:"districts"`
	Hierarchies    []string               `mapstructure:"hierarchies"`
	DistrictPar    []string               `mapstructure:"district_par"`
	DistrictParAny []string               `mapstructure:"district_par_any"`
	Layers         map[string]LayerConfig `mapstructure:"layers"`
	Debug          bool                   `mapstructure:"debug"`      // Log edges of rejected rings
	DebugName      string                 `mapstructure:"debug_name"` // Log vertices of the named region
	Strict         bool                   `mapstructure:"strict"`     // Fail a layer on its first rejected ring
	PostGIS        PostGISConfig          `mapstructure:"postgis"`
}

// LayerConfig describes one named layer.
type LayerConfig struct {
	Level         int      `mapstructure:"level"`
	Attributes    []string `mapstructure:"attributes"`
	NameAttribute string   `mapstructure:"name_attribute"`
	Encoding      string   `mapstructure:"encoding"`
}

// PostGISConfig selects PostGIS tables instead of layer files when DSN is
// set.
type PostGISConfig struct {
	DSN            string `mapstructure:"dsn"`
	Schema         string `mapstructure:"schema"`
	GeometryColumn string `mapstructure:"geometry_column"`
	DistrictColumn string `mapstructure:"district_column"`
}

// Enabled returns true if layers are read from PostGIS.
func (c *PostGISConfig) Enabled() bool {
	return c.DSN != ""
}

// LayerNames returns every layer name referenced by the catalog lists.
func (c *SearchConfig) LayerNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, list := range [][]string{c.Hierarchies, c.DistrictPar, c.DistrictParAny} {
		for _, n := range list {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return names
}

// CacheConfig holds the Redis result cache configuration.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
	Prefix   string        `mapstructure:"prefix"`
}

// SyncConfig holds periodic storage synchronization settings.
type SyncConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	Cooldown time.Duration `mapstructure:"cooldown"` // Minimum time between API triggered syncs
}

// WatchConfig controls hot reload of local layer files.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// TLSConfig holds TLS/CertMagic configuration.
type TLSConfig struct {
	Enabled  bool         `mapstructure:"enabled"`
	Domains  []string     `mapstructure:"domains"`
	Email    string       `mapstructure:"email"`
	CacheDir string       `mapstructure:"cache_dir"`
	Staging  bool         `mapstructure:"staging"` // Use Let's Encrypt staging
	DNS      TLSDNSConfig `mapstructure:"dns"`
}

// TLSDNSConfig holds the Azure DNS zone used for DNS-01 challenges.
type TLSDNSConfig struct {
	SubscriptionID    string `mapstructure:"subscription_id"`
	ResourceGroupName string `mapstructure:"resource_group_name"`
	ClientID          string `mapstructure:"client_id"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json, text
}

// Defaults sets the default configuration values.
func Defaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)
	viper.SetDefault("server.idle_timeout", 120*time.Second)
	viper.SetDefault("server.shutdown_timeout", 10*time.Second)
	viper.SetDefault("server.cors.allowed_origins", []string{})

	// Storage defaults
	viper.SetDefault("storage.type", "local")
	viper.SetDefault("storage.local_path", "./data")
	viper.SetDefault("storage.http.index_file", "index.txt")
	viper.SetDefault("storage.http.timeout", 5*time.Minute)

	// Search defaults
	viper.SetDefault("search.debug", false)
	viper.SetDefault("search.strict", false)
	viper.SetDefault("search.postgis.schema", "public")
	viper.SetDefault("search.postgis.geometry_column", "geom")
	viper.SetDefault("search.postgis.district_column", "district")

	// Cache defaults
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.addr", "localhost:6379")
	viper.SetDefault("cache.db", 0)
	viper.SetDefault("cache.ttl", 10*time.Minute)
	viper.SetDefault("cache.prefix", "tarantula:")

	// Sync defaults
	viper.SetDefault("sync.enabled", false)
	viper.SetDefault("sync.interval", 5*time.Minute)
	viper.SetDefault("sync.cooldown", 30*time.Second)

	// Watch defaults
	viper.SetDefault("watch.enabled", true)
	viper.SetDefault("watch.debounce", 500*time.Millisecond)

	// TLS defaults
	viper.SetDefault("tls.enabled", false)
	viper.SetDefault("tls.cache_dir", "./.certmagic")
	viper.SetDefault("tls.staging", false)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")
	viper.SetDefault("metrics.namespace", "tarantula")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load loads configuration from .env, environment and config file.
func Load(configPath string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	Defaults()

	// Environment variable binding
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/tarantula")
	}

	// Try to read config file (not required)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.TLS.Enabled {
		if len(c.TLS.Domains) == 0 {
			return errors.New("TLS enabled but no domains specified")
		}
		if c.TLS.Email == "" {
			return errors.New("TLS enabled but no email specified")
		}
	}

	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}

	if c.Cache.Enabled && c.Cache.Addr == "" {
		return errors.New("cache enabled but no redis address specified")
	}
	if c.Sync.Enabled && c.Sync.Interval <= 0 {
		return fmt.Errorf("invalid sync interval: %s", c.Sync.Interval)
	}

	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Type {
	case "local":
		if c.Storage.LocalPath == "" {
			return errors.New("local storage path is required")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("S3 bucket is required")
		}
		if c.Storage.S3.Region == "" {
			return errors.New("S3 region is required")
		}
	case "azure":
		if c.Storage.Azure.Container == "" {
			return errors.New("azure container is required")
		}
		if c.Storage.Azure.AccountName == "" && c.Storage.Azure.ConnectionString == "" {
			return errors.New("azure account name or connection string is required")
		}
	case "http":
		if c.Storage.HTTP.BaseURL == "" {
			return errors.New("HTTP base URL is required")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}

	// Remote backends download into the local path.
	if c.Storage.LocalPath == "" {
		return errors.New("local storage path is required")
	}
	return nil
}

// Validate checks the layer catalog.
func (c *SearchConfig) Validate() error {
	if len(c.Districts) == 0 {
		return errors.New("search: at least one district is required")
	}
	if len(c.Hierarchies) == 0 {
		return errors.New("search: at least one hierarchy layer is required")
	}
	for _, name := range c.LayerNames() {
		if strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("search: invalid layer name %q", name)
		}
		layer, ok := c.Layers[name]
		if !ok {
			return fmt.Errorf("search: layer %q has no entry in search.layers", name)
		}
		if layer.Level < 1 {
			return fmt.Errorf("search: layer %q needs a level of at least 1", name)
		}
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
