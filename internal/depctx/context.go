// Package depctx keeps the inclusion state of dependencies consistent across
// every package of a deployment session.
//
// A Context holds all instances of one logical dependency (one key) found in
// the session's packages. A TreeContext owns the contexts and the packages.
package depctx

import (
	"fmt"

	"github.com/flo-mic/pkgdeploy/internal/dependency"
	"github.com/flo-mic/pkgdeploy/internal/deployerr"
)

// Context tracks every instance of one dependency key, grouped by the
// package that owns the instance.
type Context struct {
	key string

	// order lists package keys in the order their first instance was added.
	order []string
	deps  map[string][]*dependency.Dependency
	pkgs  map[string]*dependency.Dependency

	included bool

	owner *TreeContext
}

// NewContext returns an empty context for key.
func NewContext(key string) (*Context, error) {
	if key == "" {
		return nil, deployerr.Invalid("context key may not be empty")
	}
	return &Context{
		key:  key,
		deps: make(map[string][]*dependency.Dependency),
		pkgs: make(map[string]*dependency.Dependency),
	}, nil
}

// Key returns the dependency key shared by all instances.
func (c *Context) Key() string { return c.key }

// IsIncluded reports whether at least one instance is actually included
// within its package.
func (c *Context) IsIncluded() bool { return c.included }

// IsEmpty reports whether no instance is tracked.
func (c *Context) IsEmpty() bool { return len(c.order) == 0 }

// IsMulti reports whether more than one instance is tracked.
func (c *Context) IsMulti() bool { return c.count() > 1 }

func (c *Context) count() int {
	n := 0
	for _, list := range c.deps {
		n += len(list)
	}
	return n
}

// Packages returns the packages owning an instance, in the order they were added.
func (c *Context) Packages() []*dependency.Dependency {
	out := make([]*dependency.Dependency, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, c.pkgs[k])
	}
	return out
}

// Dependencies returns all instances, grouped by package.
func (c *Context) Dependencies() []*dependency.Dependency {
	var out []*dependency.Dependency
	for _, k := range c.order {
		out = append(out, c.deps[k]...)
	}
	return out
}

// DependenciesFor returns the instances owned by pkg.
func (c *Context) DependenciesFor(pkg *dependency.Dependency) []*dependency.Dependency {
	if pkg == nil {
		return nil
	}
	return append([]*dependency.Dependency(nil), c.deps[pkg.Key()]...)
}

func (c *Context) hasPackage(pkgKey string) bool {
	_, ok := c.pkgs[pkgKey]
	return ok
}

// CanBeSelected reports whether every instance may be included or excluded
// on its own, which is required to toggle the context.
func (c *Context) CanBeSelected() bool {
	if c.IsEmpty() {
		return false
	}
	for _, d := range c.Dependencies() {
		if !d.CanBeIncludedExcluded() {
			return false
		}
	}
	return true
}

// AddDependency adds an instance owned by pkg and synchronizes inclusion:
// an included context selects dep, and an included dep makes the context, and
// with it every other toggleable instance, included. Adding an excluded
// instance that cannot be toggled to an included context is an ErrInvalidState.
func (c *Context) AddDependency(dep, pkg *dependency.Dependency) error {
	if dep == nil || pkg == nil {
		return deployerr.Invalid("dependency and package may not be nil")
	}
	if dep.Key() != c.key {
		return deployerr.Invalid("dependency key %s does not match context key %s", dep.Key(), c.key)
	}
	if _, _, ok := c.locate(dep); ok {
		return nil
	}

	wasEmpty := c.IsEmpty()
	wasMulti := c.IsMulti()
	changed := false

	if c.included {
		if !dep.IsIncluded() {
			if !dep.CanBeIncludedExcluded() {
				return deployerr.State("%s dependency %s cannot join included context %s", dep.DependencyType(), dep, c.key)
			}
			if err := dep.SetIncluded(true); err != nil {
				return fmt.Errorf("adding %s to an included context: %w", dep, err)
			}
		}
	} else if dep.IsIncluded() && reallyIncluded(dep, pkg) {
		c.included = true
		changed = true
		c.selectAll()
	}

	pkgKey := pkg.Key()
	if !c.hasPackage(pkgKey) {
		c.order = append(c.order, pkgKey)
		c.pkgs[pkgKey] = pkg
	}
	c.deps[pkgKey] = append(c.deps[pkgKey], dep)

	if !wasEmpty && (changed || wasMulti != c.IsMulti()) {
		c.notify()
	}
	return nil
}

// RemoveDependency removes one instance and recomputes the inclusion state.
//
// When removeLocal is set and dep was an included local instance, toggleable
// instances in the remaining packages are excluded, unless another included
// local instance still pulls the object in. It reports whether dep was tracked.
func (c *Context) RemoveDependency(dep *dependency.Dependency, removeLocal bool) bool {
	pkgKey, idx, ok := c.locate(dep)
	if !ok {
		return false
	}
	wasIncludedLocal := dep.DependencyType() == dependency.TypeLocal && reallyIncluded(dep, c.pkgs[pkgKey])
	wasMulti := c.IsMulti()
	wasIncluded := c.included

	list := c.deps[pkgKey]
	c.deps[pkgKey] = append(list[:idx:idx], list[idx+1:]...)
	if len(c.deps[pkgKey]) == 0 {
		c.dropPackage(pkgKey)
	}

	if removeLocal && wasIncludedLocal {
		for _, deps := range c.deselectCandidates("") {
			for _, d := range deps {
				// candidates are toggleable by construction
				_ = d.SetIncluded(false)
			}
		}
	}
	c.included = c.recompute()

	if !c.IsEmpty() && (wasIncluded != c.included || wasMulti != c.IsMulti()) {
		c.notify()
	}
	return true
}

// SetIncluded includes or excludes every instance. It succeeds only if the
// context can be selected and state differs from the current one.
func (c *Context) SetIncluded(state bool) bool {
	if !c.CanBeSelected() || state == c.included {
		return false
	}
	for _, d := range c.Dependencies() {
		_ = d.SetIncluded(state)
	}
	c.included = state
	c.notify()
	if c.owner != nil {
		c.owner.refresh()
	}
	return true
}

// deselectCandidates returns, grouped by package key, the included toggleable
// instances that would lose their reason to be included once no local
// instance pulls the object in. Instances of skipPkg are ignored. It returns
// nil if some remaining local instance is still included.
func (c *Context) deselectCandidates(skipPkg string) map[string][]*dependency.Dependency {
	var out map[string][]*dependency.Dependency
	for _, k := range c.order {
		if k == skipPkg {
			continue
		}
		for _, d := range c.deps[k] {
			if d.DependencyType() == dependency.TypeLocal && reallyIncluded(d, c.pkgs[k]) {
				return nil
			}
			if d.CanBeIncludedExcluded() && d.IsIncluded() {
				if out == nil {
					out = make(map[string][]*dependency.Dependency)
				}
				out[k] = append(out[k], d)
			}
		}
	}
	return out
}

// recompute derives the inclusion state from the instances.
func (c *Context) recompute() bool {
	for _, k := range c.order {
		for _, d := range c.deps[k] {
			if reallyIncluded(d, c.pkgs[k]) {
				return true
			}
		}
	}
	return false
}

// refresh re-derives the inclusion state after changes elsewhere in the
// session. It reports whether the state changed.
func (c *Context) refresh() bool {
	now := c.recompute()
	if now == c.included {
		return false
	}
	c.included = now
	if now {
		c.selectAll()
	}
	c.notify()
	return true
}

func (c *Context) selectAll() {
	for _, d := range c.Dependencies() {
		if d.CanBeIncludedExcluded() && !d.IsIncluded() {
			_ = d.SetIncluded(true)
		}
	}
}

func (c *Context) locate(dep *dependency.Dependency) (string, int, bool) {
	for _, k := range c.order {
		for i, d := range c.deps[k] {
			if d == dep {
				return k, i, true
			}
		}
	}
	return "", 0, false
}

func (c *Context) dropPackage(pkgKey string) {
	delete(c.deps, pkgKey)
	delete(c.pkgs, pkgKey)
	for i, k := range c.order {
		if k == pkgKey {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Context) notify() {
	if c.owner != nil {
		c.owner.notify(c)
	}
}

// reallyIncluded evaluates dep's inclusion inside its package. Toggleable
// dependencies carry their own flag; local and user ones follow their ancestors.
func reallyIncluded(dep, pkg *dependency.Dependency) bool {
	if dep.CanBeIncludedExcluded() && !dep.IsUserDependency() {
		return dep.IsIncluded()
	}
	if !dep.IsIncluded() {
		return false
	}
	return pkg.IncludesDependency(dep, true)
}
