package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "storefront.json"

	// EnvFileName is the optional dotenv file next to the configuration.
	EnvFileName = ".env"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "STOREFRONT_"

	// DefaultCatalogURL is the catalog API served by the storefront backend.
	DefaultCatalogURL = "http://localhost:8080"

	// DefaultUploadAddr is the upload service listen address.
	DefaultUploadAddr = ":8145"

	// DefaultAllowedOrigin is the web client's dev server.
	DefaultAllowedOrigin = "http://localhost:5173"

	// DefaultMaxFileSize is the image route limit.
	DefaultMaxFileSize = 4 << 20

	// DefaultRedisPrefix namespaces session keys in Redis.
	DefaultRedisPrefix = "storefront:"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

// Config represents storefront.json overlaid with STOREFRONT_* variables.
type Config struct {
	// Storage selects where the session is mirrored.
	Storage StorageConfig `json:"storage" envPrefix:"STORAGE_"`

	// Catalog configures the catalog API client.
	Catalog CatalogConfig `json:"catalog" envPrefix:"CATALOG_"`

	// Upload configures the upload service.
	Upload UploadConfig `json:"upload" envPrefix:"UPLOAD_"`

	// Log configures logging.
	Log LogConfig `json:"log" envPrefix:"LOG_"`

	// Tracing configures OpenTelemetry export.
	Tracing TracingConfig `json:"tracing" envPrefix:"TRACING_"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// StorageConfig selects and configures the durable session storage.
type StorageConfig struct {
	// Backend is one of memory, file, redis, sqlite or none.
	Backend string `json:"backend,omitempty" env:"BACKEND"`

	// Path is the session file (file) or database (sqlite).
	Path string `json:"path,omitempty" env:"PATH"`

	// Table is the SQL table name (sqlite).
	Table string `json:"table,omitempty" env:"TABLE"`

	// Redis configures the redis backend.
	Redis RedisConfig `json:"redis,omitempty" envPrefix:"REDIS_"`
}

// RedisConfig configures the redis storage backend.
type RedisConfig struct {
	Addr     string   `json:"addr,omitempty" env:"ADDR"`
	Password string   `json:"password,omitempty" env:"PASSWORD"`
	DB       int      `json:"db,omitempty" env:"DB"`
	Prefix   string   `json:"prefix,omitempty" env:"PREFIX"`
	TTL      Duration `json:"ttl,omitempty" env:"TTL"`
}

// CatalogConfig configures the catalog API client.
type CatalogConfig struct {
	// BaseURL is the catalog server root; the client appends /api/v1.
	BaseURL string `json:"baseURL,omitempty" env:"URL"`

	// Timeout bounds each catalog request.
	Timeout Duration `json:"timeout,omitempty" env:"TIMEOUT"`
}

// UploadConfig configures the upload service.
type UploadConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" env:"ADDR"`

	// Dir is the local upload directory, used when S3.Bucket is empty.
	Dir string `json:"dir,omitempty" env:"DIR"`

	// PublicURL is the base URL local uploads are served from.
	PublicURL string `json:"publicURL,omitempty" env:"PUBLIC_URL"`

	// MaxFileSize is the per-file limit of the image route in bytes.
	MaxFileSize int64 `json:"maxFileSize,omitempty" env:"MAX_FILE_SIZE"`

	// AllowedOrigins are the CORS origins.
	AllowedOrigins []string `json:"allowedOrigins,omitempty" env:"ALLOWED_ORIGINS" envSeparator:","`

	// JWTSecret verifies bearer tokens. Empty allows anonymous uploads.
	JWTSecret string `json:"-" env:"JWT_SECRET"`

	// CleanupInterval is how often unclaimed uploads are swept.
	CleanupInterval Duration `json:"cleanupInterval,omitempty" env:"CLEANUP_INTERVAL"`

	// MaxAge is how long unclaimed uploads are kept.
	MaxAge Duration `json:"maxAge,omitempty" env:"MAX_AGE"`

	// S3 stores uploads in a bucket instead of Dir.
	S3 S3Config `json:"s3,omitempty" envPrefix:"S3_"`
}

// S3Config configures the S3 upload store.
type S3Config struct {
	Bucket          string `json:"bucket,omitempty" env:"BUCKET"`
	Prefix          string `json:"prefix,omitempty" env:"PREFIX"`
	Region          string `json:"region,omitempty" env:"REGION"`
	Endpoint        string `json:"endpoint,omitempty" env:"ENDPOINT"`
	PathStyle       bool   `json:"pathStyle,omitempty" env:"PATH_STYLE"`
	AccessKeyID     string `json:"-" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `json:"-" env:"SECRET_ACCESS_KEY"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty" env:"LEVEL"`

	// Format is text or json.
	Format string `json:"format,omitempty" env:"FORMAT"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	// Endpoint is the OTLP/HTTP endpoint URL. Empty disables export.
	Endpoint string `json:"endpoint,omitempty" env:"ENDPOINT"`

	// ServiceName is reported with every span.
	ServiceName string `json:"serviceName,omitempty" env:"SERVICE_NAME"`
}

// Duration is a time.Duration written as a string ("10s") in JSON and env.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// New creates a new Config with default values.
func New() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads storefront.json from dir if present, then applies dir/.env and
// the environment. A missing file is not an error.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, ConfigFileName)
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.decode(path, data); err != nil {
			return nil, err
		}
		cfg.configPath = path
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return cfg.finish(dir)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := cfg.decode(path, data); err != nil {
		return nil, err
	}
	cfg.configPath = path
	return cfg.finish(filepath.Dir(path))
}

func (c *Config) decode(path string, data []byte) error {
	if err := json.Unmarshal(data, c); err != nil {
		return newSyntaxError(path, data, err)
	}
	return nil
}

func (c *Config) finish(dir string) (*Config, error) {
	if err := LoadDotEnv(dir); err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadDotEnv loads dir/.env into the process environment without
// overriding variables that are already set. A missing file is ignored.
func LoadDotEnv(dir string) error {
	path := filepath.Join(dir, EnvFileName)
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %s: %w", ErrEnv, path, err)
	}
	return nil
}

// ApplyEnv overlays STOREFRONT_* variables onto c.
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("%w: %w", ErrEnv, err)
	}
	return nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New("config: no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path. Secrets are
// never written.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	// Storage
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendFile
	}
	if c.Storage.Path == "" {
		switch c.Storage.Backend {
		case BackendFile:
			c.Storage.Path = filepath.Join(defaultStateDir(), "session.json")
		case BackendSQLite:
			c.Storage.Path = filepath.Join(defaultStateDir(), "session.db")
		}
	}
	if c.Storage.Redis.Prefix == "" {
		c.Storage.Redis.Prefix = DefaultRedisPrefix
	}

	// Catalog
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = DefaultCatalogURL
	}
	if c.Catalog.Timeout == 0 {
		c.Catalog.Timeout = Duration(10 * time.Second)
	}

	// Upload
	if c.Upload.Addr == "" {
		c.Upload.Addr = DefaultUploadAddr
	}
	if c.Upload.Dir == "" {
		c.Upload.Dir = "uploads"
	}
	if c.Upload.MaxFileSize == 0 {
		c.Upload.MaxFileSize = DefaultMaxFileSize
	}
	if len(c.Upload.AllowedOrigins) == 0 {
		c.Upload.AllowedOrigins = []string{DefaultAllowedOrigin}
	}
	if c.Upload.CleanupInterval == 0 {
		c.Upload.CleanupInterval = Duration(5 * time.Minute)
	}
	if c.Upload.MaxAge == 0 {
		c.Upload.MaxAge = Duration(time.Hour)
	}
	if c.Upload.S3.Region == "" {
		c.Upload.S3.Region = "us-east-1"
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	// Tracing
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "storefront"
	}
}

// defaultStateDir is where local session state lives by default.
func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "storefront")
	}
	return ".storefront"
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	path := filepath.Join(dir, ConfigFileName)
	_, err := os.Stat(path)
	return err == nil
}

// FindProjectRoot walks up directories to find the directory containing
// storefront.json.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w in %s or any parent directory", ErrNotFound, startDir)
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads the nearest storefront.json above the working
// directory, or defaults plus environment when there is none.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if errors.Is(err, ErrNotFound) {
		return Load(wd)
	}
	if err != nil {
		return nil, err
	}
	return Load(root)
}
