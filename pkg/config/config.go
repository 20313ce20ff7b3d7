package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete ftpbridge configuration.
//
// This structure captures all configurable aspects of the bridge:
//   - Logging configuration
//   - Server-wide settings
//   - The remote store (URI, superuser identity, backend options)
//   - The credential file
//   - File operation policies
//   - FTP and FTPS listeners
//   - The metrics endpoint
//
// Configuration sources (in order of precedence):
//  1. Environment variables (FTPBRIDGE_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server"`

	// Remote selects the remote filesystem and the identity used on it
	Remote RemoteConfig `mapstructure:"remote"`

	// Users locates the credential file
	Users UsersConfig `mapstructure:"users"`

	// Policy controls destructive file operations
	Policy PolicyConfig `mapstructure:"policy"`

	// Adapters contains the FTP and FTPS listener configurations
	Adapters AdaptersConfig `mapstructure:"adapters"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// RemoteConfig selects the remote filesystem.
//
// The URI scheme picks the backend:
//   - hdfs://namenode1:8020,namenode2:8020/optional/root (HA namenodes
//     separated by commas)
//   - s3://bucket/optional/prefix
//   - badger:///var/lib/ftpbridge/db or badger://memory
//   - file:///srv/ftp
//   - mem://
type RemoteConfig struct {
	// URI locates the remote store
	URI string `mapstructure:"uri" validate:"required"`

	// Superuser is the identity remote calls are issued as
	Superuser string `mapstructure:"superuser" validate:"required"`

	// HealthCheck stats the store root at startup and fails fast if it is
	// unreachable
	HealthCheck bool `mapstructure:"health_check"`

	// S3 contains S3-specific options. Only used for s3:// URIs.
	S3 map[string]any `mapstructure:"s3"`

	// Badger contains BadgerDB-specific options. Only used for badger:// URIs.
	Badger map[string]any `mapstructure:"badger"`
}

// UsersConfig locates the credential file.
type UsersConfig struct {
	// File is the users.properties path
	File string `mapstructure:"file" validate:"required"`

	// PasswordEncoding is how userpassword values are stored
	// Valid values: md5, bcrypt, clear
	PasswordEncoding string `mapstructure:"password_encoding" validate:"required,oneof=md5 bcrypt clear"`

	// Watch reloads the file when it changes on disk
	Watch bool `mapstructure:"watch"`

	// RequireSuperuserRecord refuses to start unless the superuser is also
	// an enabled user in File
	RequireSuperuserRecord bool `mapstructure:"require_superuser_record"`
}

// PolicyConfig controls destructive operations.
type PolicyConfig struct {
	// RecursiveDelete lets RMD remove non-empty directories
	RecursiveDelete bool `mapstructure:"recursive_delete"`

	// Overwrite lets STOR and RNTO replace existing files
	Overwrite bool `mapstructure:"overwrite"`

	// ChownToUser hands newly created entries to the FTP user
	ChownToUser bool `mapstructure:"chown_to_user"`
}

// AdaptersConfig contains all listener configurations.
type AdaptersConfig struct {
	FTP  FTPConfig  `mapstructure:"ftp"`
	FTPS FTPSConfig `mapstructure:"ftps"`
}

// FTPConfig configures a plaintext listener.
type FTPConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Port           int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	PassivePorts   string        `mapstructure:"passive_ports"`
	PublicHost     string        `mapstructure:"public_host"`
	MaxConnections int           `mapstructure:"max_connections" validate:"gte=0"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout" validate:"gte=0"`
}

// FTPSConfig configures the encrypted listener.
type FTPSConfig struct {
	FTPConfig `mapstructure:",squash"`

	// Implicit speaks TLS from the first byte; otherwise clients use AUTH TLS
	Implicit bool `mapstructure:"implicit"`

	// KeyStore locates the certificate and private key
	KeyStore KeyStoreConfig `mapstructure:"key_store"`
}

// KeyStoreConfig locates the FTPS key material.
type KeyStoreConfig struct {
	File        string `mapstructure:"file"`
	Type        string `mapstructure:"type" validate:"omitempty,oneof=PEM JKS pem jks"`
	Password    string `mapstructure:"password"`
	KeyPassword string `mapstructure:"key_password"`
	CertFile    string `mapstructure:"cert_file"`
	Alias       string `mapstructure:"alias"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// ProcessConfig is the write-once process state every component reads:
// the remote store location and the identity remote calls run as.
type ProcessConfig struct {
	RemoteURI string
	Superuser string
}

// Process returns the immutable process state of a validated Config.
func (c *Config) Process() ProcessConfig {
	return ProcessConfig{
		RemoteURI: c.Remote.URI,
		Superuser: c.Remote.Superuser,
	}
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FTPBRIDGE_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use FTPBRIDGE_ prefix and underscores
	// Example: FTPBRIDGE_REMOTE_URI=hdfs://namenode:8020
	v.SetEnvPrefix("FTPBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans that default to true cannot be told apart from an explicit
	// false after decoding, so they are defaulted here.
	for key, value := range boolDefaults {
		v.SetDefault(key, value)
	}

	// AutomaticEnv only applies to keys viper already knows about.
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/ftpbridge/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys lists the settings most often supplied through the environment.
var envKeys = []string{
	"logging.level",
	"remote.uri",
	"remote.superuser",
	"remote.s3.region",
	"remote.s3.endpoint",
	"remote.s3.access_key_id",
	"remote.s3.secret_access_key",
	"users.file",
	"users.password_encoding",
	"adapters.ftp.port",
	"adapters.ftp.passive_ports",
	"adapters.ftp.public_host",
	"adapters.ftps.port",
	"adapters.ftps.passive_ports",
	"adapters.ftps.public_host",
	"adapters.ftps.key_store.file",
	"adapters.ftps.key_store.type",
	"adapters.ftps.key_store.password",
	"adapters.ftps.key_store.key_password",
	"metrics.port",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		// An explicit path that does not exist falls back to defaults too.
		if configPath != "" && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "ftpbridge")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "ftpbridge")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
