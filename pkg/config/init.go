package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfig is written by InitConfig. Every key matches a Config field;
// values are the defaults except where a deployment must fill them in.
const sampleConfig = `# ftpbridge Configuration File
#
# Environment variables override any value here: FTPBRIDGE_<SECTION>_<KEY>,
# e.g. FTPBRIDGE_REMOTE_URI=hdfs://namenode:8020

logging:
  level: INFO        # DEBUG, INFO, WARN, ERROR
  format: text       # text or json
  output: stdout     # stdout, stderr or a file path

server:
  shutdown_timeout: 30s

remote:
  # hdfs://nn1:8020,nn2:8020/root, s3://bucket/prefix, badger:///path,
  # badger://memory, file:///path or mem://
  uri: "mem://"
  # Identity remote calls are issued as
  superuser: admin
  health_check: true
  s3:
    region: us-east-1
    # endpoint: http://localhost:9000
    # access_key_id: ""
    # secret_access_key: ""
  badger:
    block_cache_mb: 64

users:
  file: users.properties
  password_encoding: md5   # md5, bcrypt or clear
  watch: false
  require_superuser_record: false

policy:
  recursive_delete: false
  overwrite: true
  chown_to_user: true

adapters:
  ftp:
    enabled: true
    port: 2222
    passive_ports: "2223-2225"
    public_host: ""
    max_connections: 0
    idle_timeout: 5m
  ftps:
    enabled: false
    port: 2226
    passive_ports: "2227-2229"
    implicit: true
    key_store:
      file: ftpserver.jks
      type: JKS            # JKS or PEM
      password: ""
      # key_password: ""
      # cert_file: cert.pem  (PEM only)

metrics:
  enabled: false
  port: 9090
`

// InitConfig writes a sample configuration file to the default location
// and returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	return InitConfigAt(GetDefaultConfigPath(), force)
}

// InitConfigAt is InitConfig with an explicit destination.
func InitConfigAt(path string, force bool) (string, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return path, nil
}
