package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/flo-mic/pkgdeploy/internal/config"
	"github.com/flo-mic/pkgdeploy/internal/dependency"
)

// Remove drops a package from the session. Unless --keep-local is given,
// shared dependencies in other packages that were only pulled in by the
// package's local dependencies are excluded too, after confirmation.
func Remove(args []string, stdout, stderr io.Writer) error {
	fs, dir, verbose := commonFlags("remove", stderr)
	key := fs.String("package", "", "Key of the package to remove (required)")
	yes := fs.Bool("yes", false, "Do not ask for confirmation")
	keepLocal := fs.Bool("keep-local", false, "Keep dependencies shared with the package's local dependencies")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *key == "" {
		return fmt.Errorf("--package is required\nUsage: pkgdeploy remove --package <key> [--yes] [--keep-local]")
	}

	s, err := loadSession(*dir, newLogger(stderr, *verbose))
	if err != nil {
		return err
	}
	pkg := s.tree.Package(*key)
	if pkg == nil {
		return fmt.Errorf("package %s is not part of the session", *key)
	}

	removeLocal := !*keepLocal
	var affected map[string][]*dependency.Dependency
	if removeLocal {
		if affected, err = s.tree.CheckRemoveLocal(pkg); err != nil {
			return err
		}
	}
	if len(affected) > 0 {
		fmt.Fprintf(stdout, "[pkgdeploy] Removing %s also excludes:\n", pkg.DisplayIdentifier())
		for _, pkgKey := range sortedKeys(affected) {
			for _, d := range affected[pkgKey] {
				fmt.Fprintf(stdout, "  %s (in %s)\n", d.DisplayIdentifier(), pkgKey)
			}
		}
		if !*yes {
			ok, err := confirm("Exclude these dependencies?", "No = keep them and only remove the package")
			if err != nil {
				return err
			}
			if !ok {
				removeLocal = false
				affected = nil
			}
		}
	}

	if err := s.tree.RemovePackage(pkg, removeLocal); err != nil {
		return err
	}

	var remaining []string
	for _, p := range s.tree.Packages() {
		remaining = append(remaining, p.Key())
	}
	s.cfg.Packages = remaining
	for _, deps := range affected {
		for _, d := range deps {
			s.cfg.Select = without(s.cfg.Select, d.Key())
			if !contains(s.cfg.Deselect, d.Key()) {
				s.cfg.Deselect = append(s.cfg.Deselect, d.Key())
			}
		}
	}
	if err := config.SaveSessionConfig(s.dir, s.cfg); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	fmt.Fprintf(stdout, "[pkgdeploy] Removed %s; remaining packages: %s\n", pkg.Key(), strings.Join(remaining, ", "))
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func without(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
