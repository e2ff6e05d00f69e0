package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/flo-mic/pkgdeploy/internal/dependency"
)

// Plan prints every package tree with its inclusion state.
//
//	[x] included  [ ] excluded  [-] never deployed  (*) shared with another package
func Plan(args []string, stdout, stderr io.Writer) error {
	fs, dir, verbose := commonFlags("plan", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := loadSession(*dir, newLogger(stderr, *verbose))
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "[pkgdeploy] %s: %s -> %s\n", s.cfg.Name, s.cfg.SourceServer, s.cfg.TargetServer)
	for _, pkg := range s.tree.Packages() {
		fmt.Fprintln(stdout)
		printTree(stdout, s, pkg)
		fmt.Fprintf(stdout, "  %d dependencies included\n", len(s.tree.IncludedDependencies(pkg)))
	}
	return nil
}

func printTree(w io.Writer, s *session, pkg *dependency.Dependency) {
	pkg.Walk(func(dep *dependency.Dependency, depth int) bool {
		if depth > 0 && s.tree.ShouldSuppressDependency(dep) {
			return false
		}
		shared := ""
		if ctx := s.tree.ContextFor(dep); ctx != nil && ctx.IsMulti() {
			shared = " (*)"
		}
		fmt.Fprintf(w, "%s%s %s%s\n", strings.Repeat("  ", depth), mark(dep, pkg), dep.DisplayIdentifier(), shared)
		return depth == 0 || !dep.IsDeployableElement()
	})
}
