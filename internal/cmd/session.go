package cmd

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/flo-mic/pkgdeploy/internal/config"
	"github.com/flo-mic/pkgdeploy/internal/dependency"
	"github.com/flo-mic/pkgdeploy/internal/depctx"
	"github.com/flo-mic/pkgdeploy/internal/discovery"
)

// session is a loaded project: its config and the tree of its packages.
type session struct {
	dir  string
	cfg  *config.SessionConfig
	tree *depctx.TreeContext
}

// commonFlags registers the flags every subcommand takes.
func commonFlags(name string, stderr io.Writer) (*flag.FlagSet, *string, *bool) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", ".", "Project directory (default: current directory)")
	verbose := fs.Bool("verbose", false, "Log session events")
	return fs, dir, verbose
}

func newLogger(stderr io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
}

// loadSession reads the config and catalog of the project in dir and builds
// the tree: configured packages are added recursively, then the select and
// deselect lists are applied.
func loadSession(dir string, logger *slog.Logger) (*session, error) {
	projectDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving project dir: %w", err)
	}
	cfg, err := config.LoadSessionConfig(projectDir)
	if err != nil {
		return nil, err
	}
	pkgs, err := discovery.LoadCatalog(cfg.Path(cfg.Catalog))
	if err != nil {
		return nil, err
	}

	tree := depctx.NewTreeContext(
		depctx.WithSuppressor(depctx.NewTypeSuppressor(cfg.Suppress.ObjectTypes, cfg.Suppress.Keys)),
		depctx.WithLogger(logger),
	)
	wanted := make(map[string]bool, len(cfg.Packages))
	for _, k := range cfg.Packages {
		wanted[k] = true
	}
	for _, pkg := range pkgs {
		if len(wanted) > 0 && !wanted[pkg.Key()] {
			continue
		}
		delete(wanted, pkg.Key())
		if err := tree.AddPackage(pkg, true); err != nil {
			return nil, fmt.Errorf("adding package %s: %w", pkg.Key(), err)
		}
	}
	for k := range wanted {
		return nil, fmt.Errorf("package %s is configured but not in %s", k, cfg.Catalog)
	}

	for _, k := range cfg.Select {
		applySelection(tree, k, true, logger)
	}
	for _, k := range cfg.Deselect {
		applySelection(tree, k, false, logger)
	}
	return &session{dir: projectDir, cfg: cfg, tree: tree}, nil
}

func applySelection(tree *depctx.TreeContext, key string, state bool, logger *slog.Logger) {
	ctx := tree.Context(key)
	switch {
	case ctx == nil:
		logger.Warn("selection refers to an unknown dependency", "key", key)
	case !ctx.CanBeSelected():
		logger.Warn("dependency cannot be selected", "key", key)
	default:
		ctx.SetIncluded(state)
	}
}

// mark renders the inclusion state of dep within pkg.
func mark(dep, pkg *dependency.Dependency) string {
	switch {
	case !dep.IsDeployable():
		return "[-]"
	case pkg.IncludesDependency(dep, true):
		return "[x]"
	default:
		return "[ ]"
	}
}
