package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_MinimalConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
remote:
  uri: "hdfs://namenode:8020"
  superuser: hdfs

users:
  file: /etc/ftpbridge/users.properties
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if !cfg.Adapters.FTP.Enabled || cfg.Adapters.FTP.Port != 2222 {
		t.Errorf("Expected FTP enabled on 2222, got enabled=%v port=%d", cfg.Adapters.FTP.Enabled, cfg.Adapters.FTP.Port)
	}
	if cfg.Adapters.FTP.PassivePorts != "2223-2225" {
		t.Errorf("Expected default passive ports 2223-2225, got %q", cfg.Adapters.FTP.PassivePorts)
	}
	if cfg.Adapters.FTPS.Enabled {
		t.Error("Expected FTPS disabled by default")
	}
	if !cfg.Policy.Overwrite || !cfg.Policy.ChownToUser || cfg.Policy.RecursiveDelete {
		t.Errorf("Unexpected default policy: %+v", cfg.Policy)
	}
	if !cfg.Remote.HealthCheck {
		t.Error("Expected health check enabled by default")
	}
	if cfg.Users.PasswordEncoding != "md5" {
		t.Errorf("Expected default encoding md5, got %q", cfg.Users.PasswordEncoding)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: debug
  format: json
  output: stderr

server:
  shutdown_timeout: 10s

remote:
  uri: "s3://archive/ftp"
  superuser: svc-ftp
  health_check: false
  s3:
    region: eu-west-1
    endpoint: http://localhost:9000
    part_size: 10485760

users:
  file: users.properties
  password_encoding: bcrypt
  watch: true

policy:
  recursive_delete: true
  overwrite: false
  chown_to_user: false

adapters:
  ftp:
    enabled: false
  ftps:
    enabled: true
    port: 990
    passive_ports: "30000-30009"
    public_host: ftp.example.com
    max_connections: 50
    idle_timeout: 2m
    implicit: false
    key_store:
      file: ftpserver.jks
      type: jks
      password: changeit

metrics:
  enabled: true
  port: 9191
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected shutdown_timeout 10s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Remote.HealthCheck {
		t.Error("Expected explicit health_check: false to be kept")
	}
	if cfg.Remote.S3["region"] != "eu-west-1" {
		t.Errorf("Expected s3 region in options, got %v", cfg.Remote.S3)
	}
	if cfg.Policy.Overwrite || cfg.Policy.ChownToUser || !cfg.Policy.RecursiveDelete {
		t.Errorf("Expected explicit policy to be kept, got %+v", cfg.Policy)
	}
	if cfg.Adapters.FTP.Enabled {
		t.Error("Expected explicit ftp.enabled: false to be kept")
	}

	ftps := cfg.Adapters.FTPS
	if !ftps.Enabled || ftps.Port != 990 || ftps.PassivePorts != "30000-30009" {
		t.Errorf("Unexpected FTPS listener: %+v", ftps.FTPConfig)
	}
	if ftps.PublicHost != "ftp.example.com" || ftps.MaxConnections != 50 || ftps.IdleTimeout != 2*time.Minute {
		t.Errorf("Unexpected FTPS listener: %+v", ftps.FTPConfig)
	}
	if ftps.Implicit {
		t.Error("Expected explicit implicit: false to be kept")
	}
	if ftps.KeyStore.Type != "JKS" || ftps.KeyStore.Password != "changeit" {
		t.Errorf("Unexpected key store: %+v", ftps.KeyStore)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Port != 9191 {
		t.Errorf("Unexpected metrics config: %+v", cfg.Metrics)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
remote:
  uri: "mem://"
  superuser: admin
`)
	t.Setenv("FTPBRIDGE_REMOTE_URI", "hdfs://nn1:8020,nn2:8020")
	t.Setenv("FTPBRIDGE_ADAPTERS_FTP_PORT", "2121")
	t.Setenv("FTPBRIDGE_LOGGING_LEVEL", "warn")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Remote.URI != "hdfs://nn1:8020,nn2:8020" {
		t.Errorf("Expected URI from environment, got %q", cfg.Remote.URI)
	}
	if cfg.Adapters.FTP.Port != 2121 {
		t.Errorf("Expected port 2121 from environment, got %d", cfg.Adapters.FTP.Port)
	}
	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level WARN from environment, got %q", cfg.Logging.Level)
	}
	if cfg.Remote.Superuser != "admin" {
		t.Errorf("Expected superuser from file, got %q", cfg.Remote.Superuser)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// A missing file falls back to defaults; the remote store has no
	// default and comes from the environment here.
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")
	t.Setenv("FTPBRIDGE_REMOTE_URI", "mem://")
	t.Setenv("FTPBRIDGE_REMOTE_SUPERUSER", "admin")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}
	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
}

func TestLoad_MissingRemote(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: INFO
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error when remote.uri and remote.superuser are missing")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid.yaml", `
logging:
  level: INFO
  invalid yaml here [[[
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[logging]
level = "WARN"
format = "json"

[remote]
uri = "badger://memory"
superuser = "admin"

[adapters.ftp]
enabled = true
port = 2121
passive_ports = "2122-2123"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Adapters.FTP.Port != 2121 {
		t.Errorf("Expected port 2121, got %d", cfg.Adapters.FTP.Port)
	}
}

func TestProcess(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Remote.URI = "hdfs://namenode:8020"
	cfg.Remote.Superuser = "hdfs"

	proc := cfg.Process()
	if proc.RemoteURI != "hdfs://namenode:8020" || proc.Superuser != "hdfs" {
		t.Errorf("Unexpected process config: %+v", proc)
	}

	// The value is detached from the Config it came from.
	cfg.Remote.URI = "mem://"
	if proc.RemoteURI != "hdfs://namenode:8020" {
		t.Error("ProcessConfig changed after the Config was modified")
	}
}
