package cmd

import (
	"fmt"
	"io"

	"github.com/flo-mic/pkgdeploy/internal/dependency"
	"github.com/flo-mic/pkgdeploy/internal/idmap"
	"github.com/flo-mic/pkgdeploy/internal/store"
)

// Map edits the id map from the source to the target server. Every included
// dependency that supports id mapping gets a mapping; unresolved ones are
// prompted for, or all of them with --all. With --check nothing is prompted
// and the command fails if any mapping is unresolved.
func Map(args []string, stdout, stderr io.Writer) error {
	fs, dir, verbose := commonFlags("map", stderr)
	all := fs.Bool("all", false, "Prompt for resolved mappings too")
	check := fs.Bool("check", false, "Only report unresolved mappings")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := loadSession(*dir, newLogger(stderr, *verbose))
	if err != nil {
		return err
	}
	st := store.New(s.cfg.Path(s.cfg.IDMapDir))
	ids, err := st.LoadIDMap(s.cfg.SourceServer, s.cfg.TargetServer)
	if err != nil {
		return err
	}

	var wanted []*idmap.Mapping
	seen := make(map[string]bool)
	added := 0
	for _, pkg := range s.tree.Packages() {
		for _, dep := range s.tree.IncludedDependencies(pkg) {
			if !dep.SupportsIDMapping() || seen[dep.Key()] {
				continue
			}
			seen[dep.Key()] = true
			mp := ids.MappingFor(dep)
			if mp == nil {
				if mp, err = newMappingFor(dep); err != nil {
					return err
				}
				if err := ids.AddMapping(mp); err != nil {
					return err
				}
				added++
			}
			wanted = append(wanted, mp)
		}
	}

	if *check {
		var open int
		for _, mp := range wanted {
			if !mp.IsMapped() {
				fmt.Fprintf(stdout, "  unmapped: %s %q (%s)\n", mp.ObjectType(), mp.SourceName(), mp.SourceKey())
				open++
			}
		}
		if open > 0 {
			return fmt.Errorf("%d of %d mappings to %s are unresolved", open, len(wanted), s.cfg.TargetServer)
		}
		fmt.Fprintf(stdout, "[pkgdeploy] All %d mappings to %s are resolved\n", len(wanted), s.cfg.TargetServer)
		return nil
	}

	changed := 0
	for _, mp := range wanted {
		if mp.IsMapped() && !*all {
			continue
		}
		ok, err := promptMapping(mp, s.cfg.TargetServer)
		if err != nil {
			return err
		}
		if ok {
			changed++
		}
	}
	if changed+added == 0 {
		fmt.Fprintln(stdout, "[pkgdeploy] Id map unchanged")
		return nil
	}
	if err := st.SaveIDMap(ids); err != nil {
		return fmt.Errorf("saving id map: %w", err)
	}
	fmt.Fprintf(stdout, "[pkgdeploy] Saved %s (%d unresolved)\n", st.Path(ids.SourceServer(), ids.TargetServer()), len(ids.Unmapped()))
	return nil
}

// newMappingFor returns an unresolved mapping for dep. The parent name is
// taken from the containing dependency when it is the parent object.
func newMappingFor(dep *dependency.Dependency) (*idmap.Mapping, error) {
	if dep.ParentType() == "" {
		return idmap.NewMapping(dep.DependencyID(), dep.DisplayName(), dep.ObjectType())
	}
	parentName := dep.ParentID()
	if p := dep.ParentDependency(); p != nil && p.DependencyID() == dep.ParentID() && p.ObjectType() == dep.ParentType() {
		parentName = p.DisplayName()
	}
	return idmap.NewScopedMapping(dep.DependencyID(), dep.DisplayName(), dep.ObjectType(), dep.ParentID(), parentName, dep.ParentType())
}
