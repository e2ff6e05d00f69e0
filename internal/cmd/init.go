package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/flo-mic/pkgdeploy/internal/config"
)

// askInit fills cfg from the init wizard. Fields already set are offered as
// defaults. Replaced in tests.
var askInit = func(cfg *config.SessionConfig) error {
	if err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Session name").
			Description("Used to name the package archive.").
			Value(&cfg.Name).
			Validate(notEmpty("session name")),
		huh.NewInput().
			Title("Source server").
			Description("Server the packages are exported from, e.g. cms-dev:9992").
			Value(&cfg.SourceServer).
			Validate(notEmpty("source server")),
		huh.NewInput().
			Title("Target server").
			Description("Server the packages are installed on, e.g. cms-prod:9992").
			Value(&cfg.TargetServer).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("target server cannot be empty")
				}
				if s == cfg.SourceServer {
					return fmt.Errorf("target server must differ from the source server")
				}
				return nil
			}),
	)).Run(); err != nil {
		return err
	}

	suppress := strings.Join(cfg.Suppress.ObjectTypes, ",")
	var hasHooks bool
	if err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Discovery catalog").
			Description("Relative to the project root.").
			Value(&cfg.Catalog),
		huh.NewInput().
			Title("User files root").
			Description("Directory user dependency paths are relative to.").
			Value(&cfg.UserFiles),
		huh.NewInput().
			Title("Object types to suppress").
			Description("Comma separated, e.g. Role,Group. Leave empty for none.").
			Value(&suppress),
		huh.NewConfirm().
			Title("Run shell hooks around install?").
			Value(&hasHooks),
	)).Run(); err != nil {
		return err
	}
	cfg.Suppress.ObjectTypes = splitList(suppress)

	if !hasHooks {
		return nil
	}
	return huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Pre-install command").
			Description("Runs in the install target before files are placed.").
			Value(&cfg.Hooks.PreInstall),
		huh.NewInput().
			Title("Post-install command").
			Description("Runs after; on failure the previous files are restored.").
			Value(&cfg.Hooks.PostInstall),
	)).Run()
}

// Init runs the interactive init wizard and writes .pkgdeploy/config.yaml.
func Init(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", ".", "Project directory (default: current directory)")
	reinit := fs.Bool("reinit", false, "Overwrite an existing config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	projectDir, err := filepath.Abs(*dir)
	if err != nil {
		return err
	}
	configPath := filepath.Join(projectDir, config.Dir, "config.yaml")

	cfg := &config.SessionConfig{
		Catalog:   filepath.Join(config.Dir, "catalog.yaml"),
		IDMapDir:  filepath.Join(config.Dir, "idmaps"),
		UserFiles: ".",
	}
	if _, err := os.Stat(configPath); err == nil {
		if !*reinit {
			fmt.Fprintf(stdout, "A %s/config.yaml already exists. Run with --reinit to overwrite.\n", config.Dir)
			return nil
		}
		// start from the old values; an invalid file just means no defaults
		if old, err := config.LoadSessionConfig(projectDir); err == nil {
			cfg = old
		}
	}

	fmt.Fprintln(stdout, "Welcome to pkgdeploy init. Let's set up your deployment session.")
	fmt.Fprintln(stdout)
	if err := askInit(cfg); err != nil {
		return err
	}

	if err := config.SaveSessionConfig(projectDir, cfg); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}
	fmt.Fprintf(stdout, "Created %s/config.yaml\n", config.Dir)

	if err := ensureGitignore(projectDir); err != nil {
		fmt.Fprintf(stdout, "warning: could not update .gitignore: %v\n", err)
	} else {
		fmt.Fprintf(stdout, "Updated .gitignore (%s excluded)\n", buildIgnore)
	}

	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Done! Next steps:")
	if _, err := os.Stat(cfg.Path(cfg.Catalog)); err != nil {
		fmt.Fprintf(stdout, "  1. Export the discovery catalog from %s to %s\n", cfg.SourceServer, cfg.Catalog)
	} else {
		fmt.Fprintln(stdout, "  1. Review the packages: pkgdeploy plan")
	}
	fmt.Fprintln(stdout, "  2. Map ids to the target: pkgdeploy map")
	fmt.Fprintln(stdout, "  3. Run: pkgdeploy build")
	return nil
}

// buildIgnore is the .gitignore entry for built archives.
const buildIgnore = config.Dir + "/build/"

func ensureGitignore(projectDir string) error {
	gitignorePath := filepath.Join(projectDir, ".gitignore")

	var existing string
	if data, err := os.ReadFile(gitignorePath); err == nil {
		existing = string(data)
		for _, line := range strings.Split(existing, "\n") {
			if strings.TrimSpace(line) == buildIgnore {
				return nil
			}
		}
	}

	var content string
	if existing != "" && !strings.HasSuffix(existing, "\n") {
		content = existing + "\n" + buildIgnore + "\n"
	} else {
		content = existing + buildIgnore + "\n"
	}
	return os.WriteFile(gitignorePath, []byte(content), 0644)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
