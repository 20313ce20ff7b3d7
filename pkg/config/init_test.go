package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// useConfigHome points the default config location at a temp directory.
func useConfigHome(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", "")
	return tmpDir
}

func TestInitConfig_Success(t *testing.T) {
	tmpDir := useConfigHome(t)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	want := filepath.Join(tmpDir, ".config", "ftpbridge", "config.yaml")
	if configPath != want {
		t.Errorf("Expected config at %s, got %s", want, configPath)
	}
	if !ConfigExists() {
		t.Error("ConfigExists returned false after InitConfig")
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	for _, section := range []string{
		"# ftpbridge Configuration File",
		"logging:",
		"remote:",
		"users:",
		"policy:",
		"adapters:",
		"metrics:",
	} {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	var raw map[string]any
	if err := yaml.Unmarshal(content, &raw); err != nil {
		t.Fatalf("Generated config is not valid YAML: %v", err)
	}

	// The generated file must load as is.
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Generated config does not load: %v", err)
	}
	if cfg.Remote.URI != "mem://" || !cfg.Adapters.FTP.Enabled {
		t.Errorf("Unexpected generated config: remote=%q ftp=%v", cfg.Remote.URI, cfg.Adapters.FTP.Enabled)
	}
}

func TestInitConfig_XDGConfigHome(t *testing.T) {
	useConfigHome(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if configPath != filepath.Join(xdg, "ftpbridge", "config.yaml") {
		t.Errorf("Expected config under XDG_CONFIG_HOME, got %s", configPath)
	}
	if GetConfigDir() != filepath.Join(xdg, "ftpbridge") {
		t.Errorf("Unexpected config dir %s", GetConfigDir())
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	useConfigHome(t)

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}
}

func TestInitConfig_Force(t *testing.T) {
	useConfigHome(t)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}
	if err := os.WriteFile(configPath, []byte("modified"), 0644); err != nil {
		t.Fatalf("Failed to modify config: %v", err)
	}

	if _, err := InitConfig(true); err != nil {
		t.Fatalf("InitConfig with force failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	if string(content) == "modified" {
		t.Error("Config file was not overwritten with force")
	}
}

func TestInitConfigAt_CreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "ftpbridge.yaml")

	got, err := InitConfigAt(path, false)
	if err != nil {
		t.Fatalf("InitConfigAt failed: %v", err)
	}
	if got != path {
		t.Errorf("Expected %s, got %s", path, got)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Config file not created: %v", err)
	}
}
