// Package config loads gofer settings. Settings are merged from the user
// file (~/.gofer/settings.yaml) and the workspace file
// (<workspace>/.gofer/settings.yaml), with the workspace winning. String
// values may reference environment variables as ${VAR}.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// UserSettingsDirName is the per-user settings directory under $HOME.
const UserSettingsDirName = ".gofer"

// SettingsFileName is the YAML settings file looked up in both locations.
const SettingsFileName = "settings.yaml"

// Settings is the on-disk YAML shape.
type Settings struct {
	Model    string   `yaml:"model"`
	Project  string   `yaml:"project"`
	Endpoint string   `yaml:"endpoint"`
	Debug    bool     `yaml:"debug"`
	Exclude  []string `yaml:"exclude"` // extra ignore patterns for file tools
}

// Config is the merged, resolved configuration.
type Config struct {
	// TargetDir is the absolute workspace root all file tools operate in.
	TargetDir string

	Model    string
	Project  string
	Endpoint string
	Debug    bool
	Exclude  []string
}

// Default returns the configuration used when no settings files exist.
func Default(targetDir string) *Config {
	return &Config{
		TargetDir: targetDir,
		Model:     "gemini-2.5-pro",
	}
}

// UserSettingsDir returns ~/.gofer, or "" when the home directory is
// unknown.
func UserSettingsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserSettingsDirName)
}

var envRef = regexp.MustCompile(`\$\{(\w+)\}`)

// expandEnv substitutes ${VAR} references. Unset variables expand to the
// empty string.
func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envRef.FindStringSubmatch(m)[1])
	})
}

func loadSettingsFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	s.Model = expandEnv(s.Model)
	s.Project = expandEnv(s.Project)
	s.Endpoint = expandEnv(s.Endpoint)
	return &s, nil
}

func (c *Config) apply(s *Settings) {
	if s == nil {
		return
	}
	if s.Model != "" {
		c.Model = s.Model
	}
	if s.Project != "" {
		c.Project = s.Project
	}
	if s.Endpoint != "" {
		c.Endpoint = s.Endpoint
	}
	if s.Debug {
		c.Debug = true
	}
	c.Exclude = append(c.Exclude, s.Exclude...)
}

// Load builds the merged configuration for a workspace directory.
func Load(workspace string) (*Config, error) {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	cfg := Default(abs)

	if dir := UserSettingsDir(); dir != "" {
		user, err := loadSettingsFile(filepath.Join(dir, SettingsFileName))
		if err != nil {
			return nil, err
		}
		cfg.apply(user)
	}
	ws, err := loadSettingsFile(filepath.Join(abs, UserSettingsDirName, SettingsFileName))
	if err != nil {
		return nil, err
	}
	cfg.apply(ws)

	// Environment overrides beat both files.
	if m := os.Getenv("GOFER_MODEL"); m != "" {
		cfg.Model = m
	}
	if p := os.Getenv("GOFER_PROJECT"); p != "" {
		cfg.Project = p
	}
	if e := os.Getenv("GOFER_ENDPOINT"); e != "" {
		cfg.Endpoint = e
	}
	return cfg, nil
}
