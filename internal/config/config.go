package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/dux/internal/errors"
)

// Config file names, in lookup order.
const (
	ConfigFileName     = "dux.json"
	YAMLConfigFileName = "dux.yaml"
	YMLConfigFileName  = "dux.yml"
)

const (
	// DefaultDurablePath is the sqlite database used for the durable area.
	DefaultDurablePath = ".dux/state.db"

	// DefaultDevtoolsAddr is the default devtools listen address.
	DefaultDevtoolsAddr = "localhost:7070"

	// DefaultDevtoolsRate is the default change frames per second per client.
	DefaultDevtoolsRate = 20

	// DefaultDevtoolsBurst is the default frame burst per client.
	DefaultDevtoolsBurst = 5

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "dux"

	// DefaultTimeout is the default per-call storage timeout.
	DefaultTimeout = "5s"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverS3     = "s3"
)

// Config represents the complete dux configuration.
type Config struct {
	// Storage selects the backend of each storage area.
	Storage StorageConfig `json:"storage,omitempty" yaml:"storage,omitempty"`

	// Devtools contains devtools server configuration.
	Devtools DevtoolsConfig `json:"devtools,omitempty" yaml:"devtools,omitempty"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty" yaml:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// StorageConfig contains the storage area configuration.
type StorageConfig struct {
	// Durable is the backend for values that outlive the process.
	Durable BackendConfig `json:"durable,omitempty" yaml:"durable,omitempty"`

	// Session is the backend for values scoped to one run.
	Session BackendConfig `json:"session,omitempty" yaml:"session,omitempty"`

	// Timeout bounds each backend call (e.g., "5s"). "0" disables it.
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// BackendConfig describes one storage backend.
type BackendConfig struct {
	// Driver is memory, sqlite, file or s3.
	Driver string `json:"driver,omitempty" yaml:"driver,omitempty"`

	// Path is the sqlite database file or the file backend directory.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`

	// Table is the sqlite table name.
	Table string `json:"table,omitempty" yaml:"table,omitempty"`

	// Bucket is the S3 bucket.
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`

	// Prefix is the S3 object key prefix.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Region is the S3 region.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Endpoint overrides the S3 endpoint (MinIO, localstack).
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
}

// DevtoolsConfig contains devtools server settings.
type DevtoolsConfig struct {
	// Addr is the listen address.
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`

	// Rate is the number of change frames per second per client.
	Rate float64 `json:"rate,omitempty" yaml:"rate,omitempty"`

	// Burst is the number of frames a client may receive above Rate.
	Burst int `json:"burst,omitempty" yaml:"burst,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Namespace prefixes every metric name.
	Namespace string `json:"namespace,omitempty" yaml:"namespace,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Default is New.
func Default() *Config {
	return New()
}

// applyDefaults fills in unset fields.
func (c *Config) applyDefaults() {
	if c.Storage.Durable.Driver == "" {
		c.Storage.Durable.Driver = DriverSQLite
		if c.Storage.Durable.Path == "" {
			c.Storage.Durable.Path = DefaultDurablePath
		}
	}
	if c.Storage.Session.Driver == "" {
		c.Storage.Session.Driver = DriverMemory
	}
	if c.Storage.Timeout == "" {
		c.Storage.Timeout = DefaultTimeout
	}
	if c.Devtools.Addr == "" {
		c.Devtools.Addr = DefaultDevtoolsAddr
	}
	if c.Devtools.Rate == 0 {
		c.Devtools.Rate = DefaultDevtoolsRate
	}
	if c.Devtools.Burst == 0 {
		c.Devtools.Burst = DefaultDevtoolsBurst
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Load reads configuration from the specified directory.
// It looks for dux.json, then dux.yaml, then dux.yml.
func Load(dir string) (*Config, error) {
	for _, name := range []string{ConfigFileName, YAMLConfigFileName, YMLConfigFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("D100").
		WithDetail("No " + ConfigFileName + " or " + YAMLConfigFileName + " found in " + dir).
		WithSuggestion("Create one, or run without a config file to use the defaults")
}

// LoadOrDefault is Load, falling back to the defaults when the directory
// has no config file.
func LoadOrDefault(dir string) (*Config, error) {
	if !Exists(dir) {
		return New(), nil
	}
	return Load(dir)
}

// LoadFile reads configuration from the specified file path. Files ending
// in .yaml or .yml are parsed as YAML, everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("D100").WithDetail(path).Wrap(err)
	}

	cfg := &Config{}
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("D101").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that " + filepath.Base(path) + " is valid " + formatName(path))
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func formatName(path string) string {
	if isYAML(path) {
		return "YAML"
	}
	return "JSON"
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path, as YAML or JSON by
// extension.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		// Add newline at end of file
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("D100").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New("D100").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file, or "." for a
// config that was not loaded from disk.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return "."
	}
	return filepath.Dir(c.configPath)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	for _, b := range []struct {
		area string
		cfg  BackendConfig
	}{
		{"durable", c.Storage.Durable},
		{"session", c.Storage.Session},
	} {
		if err := b.cfg.validate(); err != nil {
			return errors.New("D102").
				WithDetail("storage." + b.area + ": " + err.Error())
		}
	}

	if c.Storage.Timeout != "" {
		if d, err := time.ParseDuration(c.Storage.Timeout); err != nil || d < 0 {
			return errors.New("D102").
				WithDetail("storage.timeout must be a non-negative duration such as \"5s\"")
		}
	}
	if c.Devtools.Rate < 0 {
		return errors.New("D102").WithDetail("devtools.rate must not be negative")
	}
	if c.Devtools.Burst < 0 {
		return errors.New("D102").WithDetail("devtools.burst must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return errors.New("D102").WithDetail(err.Error())
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return errors.New("D102").WithDetail("log.format must be text or json")
	}
	return nil
}

func (b BackendConfig) validate() error {
	switch b.Driver {
	case DriverMemory:
	case DriverSQLite, DriverFile:
		if b.Path == "" {
			return errors.Newf(errors.CategoryConfig, "driver %q needs a path", b.Driver)
		}
	case DriverS3:
		if b.Bucket == "" {
			return errors.Newf(errors.CategoryConfig, "driver %q needs a bucket", b.Driver)
		}
	default:
		return errors.Newf(errors.CategoryConfig, "unknown driver %q", b.Driver)
	}
	return nil
}

// StorageTimeout returns the parsed storage timeout.
func (c *Config) StorageTimeout() time.Duration {
	d, err := time.ParseDuration(c.Storage.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// resolve makes a relative path relative to the config directory.
func (c *Config) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Dir(), path)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range []string{ConfigFileName, YAMLConfigFileName, YMLConfigFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing a config file, or an error if not found.
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
			return "", errors.New("D100").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the nearest project root,
// or the defaults when there is none.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return New(), nil
	}

	return Load(root)
}
