package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	cfgDir := filepath.Join(dir, Dir)
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSessionConfig_Valid(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
name: site-migration
source_server: cms-dev:9992
target_server: cms-prod:9992
suppress:
  object_types: [Role]
  keys: [Template-9]
select: [Template-301]
deselect: [Template-302]
`)
	cfg, err := LoadSessionConfig(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Name != "site-migration" {
		t.Errorf("Name = %q, want %q", cfg.Name, "site-migration")
	}
	if cfg.SourceServer != "cms-dev:9992" || cfg.TargetServer != "cms-prod:9992" {
		t.Errorf("servers = %q -> %q", cfg.SourceServer, cfg.TargetServer)
	}
	if len(cfg.Suppress.ObjectTypes) != 1 || cfg.Suppress.ObjectTypes[0] != "Role" {
		t.Errorf("Suppress.ObjectTypes = %v", cfg.Suppress.ObjectTypes)
	}
	if len(cfg.Select) != 1 || len(cfg.Deselect) != 1 {
		t.Errorf("Select = %v, Deselect = %v", cfg.Select, cfg.Deselect)
	}
}

func TestLoadSessionConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
name: app
source_server: a
target_server: b
`)
	cfg, err := LoadSessionConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Catalog != filepath.Join(".pkgdeploy", "catalog.yaml") {
		t.Errorf("default Catalog = %q", cfg.Catalog)
	}
	if cfg.IDMapDir != filepath.Join(".pkgdeploy", "idmaps") {
		t.Errorf("default IDMapDir = %q", cfg.IDMapDir)
	}
	if cfg.UserFiles != "." {
		t.Errorf("default UserFiles = %q", cfg.UserFiles)
	}
	if got := cfg.Path(cfg.Catalog); got != filepath.Join(dir, ".pkgdeploy", "catalog.yaml") {
		t.Errorf("Path(Catalog) = %q", got)
	}
	if got := cfg.Path("/abs/catalog.yaml"); got != "/abs/catalog.yaml" {
		t.Errorf("Path(abs) = %q", got)
	}
}

func TestLoadSessionConfig_Required(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"missing name", "source_server: a\ntarget_server: b\n"},
		{"missing source", "name: app\ntarget_server: b\n"},
		{"missing target", "name: app\nsource_server: a\n"},
		{"same servers", "name: app\nsource_server: a\ntarget_server: a\n"},
		{"bad yaml", "name: [app\n"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, c.content)
			if _, err := LoadSessionConfig(dir); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadSessionConfig_FileNotFound(t *testing.T) {
	_, err := LoadSessionConfig(t.TempDir())
	if err == nil {
		t.Error("expected error when config file does not exist")
	}
}

func TestLoadSessionConfig_EnvOverridesTarget(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
name: app
source_server: a
`)
	t.Setenv("PKGDEPLOY_TARGET_SERVER", "staging:9992")
	cfg, err := LoadSessionConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TargetServer != "staging:9992" {
		t.Errorf("TargetServer = %q, want env override", cfg.TargetServer)
	}
}

func TestSaveSessionConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PKGDEPLOY_TARGET_SERVER", "")
	cfg := &SessionConfig{
		Name:         "app",
		SourceServer: "a",
		TargetServer: "b",
		Packages:     []string{"Application-1"},
		Deselect:     []string{"Template-2"},
		Hooks:        Hooks{PostInstall: "systemctl restart cms"},
	}
	if err := SaveSessionConfig(dir, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := LoadSessionConfig(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Packages) != 1 || got.Packages[0] != "Application-1" {
		t.Errorf("Packages = %v", got.Packages)
	}
	if len(got.Deselect) != 1 || got.Hooks.PostInstall != "systemctl restart cms" {
		t.Errorf("Deselect = %v, Hooks = %+v", got.Deselect, got.Hooks)
	}
}
