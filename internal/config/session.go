package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Dir is the per-project configuration directory.
const Dir = ".pkgdeploy"

// targetServerEnv overrides target_server from the config file.
const targetServerEnv = "PKGDEPLOY_TARGET_SERVER"

// SessionConfig is loaded from .pkgdeploy/config.yaml in the project root.
type SessionConfig struct {
	Name         string   `yaml:"name"`
	SourceServer string   `yaml:"source_server"`
	TargetServer string   `yaml:"target_server"`
	Catalog      string   `yaml:"catalog"`
	IDMapDir     string   `yaml:"idmap_dir"`
	UserFiles    string   `yaml:"user_files_root"`
	Packages     []string `yaml:"packages,omitempty"` // package keys to load; empty loads the whole catalog
	Suppress     Suppress `yaml:"suppress"`
	Select       []string `yaml:"select,omitempty"`   // dependency keys to include after loading
	Deselect     []string `yaml:"deselect,omitempty"` // dependency keys to exclude after loading
	Hooks        Hooks    `yaml:"hooks"`

	// projectDir is the directory the config was loaded from.
	projectDir string
}

// Suppress lists dependencies a session ignores.
type Suppress struct {
	ObjectTypes []string `yaml:"object_types,omitempty"`
	Keys        []string `yaml:"keys,omitempty"`
}

// Hooks holds shell commands run on the install target.
type Hooks struct {
	PreInstall  string `yaml:"pre_install,omitempty"`
	PostInstall string `yaml:"post_install,omitempty"`
}

// LoadSessionConfig reads and parses .pkgdeploy/config.yaml from the given directory.
func LoadSessionConfig(projectDir string) (*SessionConfig, error) {
	path := configPath(projectDir)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var cfg SessionConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse %s: %w", path, err)
	}

	// Env var overrides file target
	if s := os.Getenv(targetServerEnv); s != "" {
		cfg.TargetServer = s
	}

	if cfg.Name == "" {
		return nil, fmt.Errorf("%s: 'name' is required", path)
	}
	if cfg.SourceServer == "" {
		return nil, fmt.Errorf("%s: 'source_server' is required", path)
	}
	if cfg.TargetServer == "" {
		return nil, fmt.Errorf("%s: 'target_server' is required (or set %s)", path, targetServerEnv)
	}
	if cfg.SourceServer == cfg.TargetServer {
		return nil, fmt.Errorf("%s: source_server and target_server must differ", path)
	}

	applySessionDefaults(&cfg)
	cfg.projectDir = projectDir
	return &cfg, nil
}

func configPath(projectDir string) string {
	return filepath.Join(projectDir, Dir, "config.yaml")
}

// SaveSessionConfig writes cfg to .pkgdeploy/config.yaml in projectDir.
// Comments in an existing file are not preserved.
func SaveSessionConfig(projectDir string, cfg *SessionConfig) error {
	if err := os.MkdirAll(filepath.Join(projectDir, Dir), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath(projectDir), data, 0644)
}

func applySessionDefaults(cfg *SessionConfig) {
	if cfg.Catalog == "" {
		cfg.Catalog = filepath.Join(Dir, "catalog.yaml")
	}
	if cfg.IDMapDir == "" {
		cfg.IDMapDir = filepath.Join(Dir, "idmaps")
	}
	if cfg.UserFiles == "" {
		cfg.UserFiles = "."
	}
}

// Path resolves a config-relative path against the project directory.
// Absolute paths are returned unchanged.
func (c *SessionConfig) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.projectDir, p)
}
