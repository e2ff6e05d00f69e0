package depctx

import (
	"io"
	"log/slog"
	"sort"

	"github.com/flo-mic/pkgdeploy/internal/dependency"
	"github.com/flo-mic/pkgdeploy/internal/deployerr"
)

// ChangeListener is told synchronously when a context's multiplicity or
// inclusion state changes.
type ChangeListener interface {
	ContextChanged(ctx *Context)
}

// ChangeListenerFunc adapts a function to ChangeListener.
type ChangeListenerFunc func(ctx *Context)

func (f ChangeListenerFunc) ContextChanged(ctx *Context) { f(ctx) }

type listenerEntry struct {
	id       int
	listener ChangeListener
	// pkgKey is empty for listeners not bound to a package.
	pkgKey string
}

// TreeContext owns the contexts of every dependency in a deployment session.
type TreeContext struct {
	contexts map[string]*Context
	packages map[string]*dependency.Dependency
	pkgOrder []string

	listeners []listenerEntry
	nextID    int

	suppressor Suppressor
	log        *slog.Logger
}

// TreeOption configures a TreeContext.
type TreeOption func(*TreeContext)

// WithSuppressor sets the policy consulted while packages are added.
func WithSuppressor(s Suppressor) TreeOption {
	return func(t *TreeContext) { t.suppressor = s }
}

// WithLogger sets the logger for session events. The default discards output.
func WithLogger(l *slog.Logger) TreeOption {
	return func(t *TreeContext) {
		if l != nil {
			t.log = l
		}
	}
}

// NewTreeContext returns an empty session.
func NewTreeContext(opts ...TreeOption) *TreeContext {
	t := &TreeContext{
		contexts: make(map[string]*Context),
		packages: make(map[string]*dependency.Dependency),
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SetSuppressor replaces the suppression policy; nil suppresses nothing.
func (t *TreeContext) SetSuppressor(s Suppressor) {
	t.suppressor = s
}

// ShouldSuppressDependency consults the suppression policy.
func (t *TreeContext) ShouldSuppressDependency(dep *dependency.Dependency) bool {
	if t.suppressor == nil || dep == nil {
		return false
	}
	return t.suppressor.Suppress(dep)
}

// AddChangeListener registers l. If pkg is not nil the listener is bound to
// that package: it only hears about contexts holding one of its instances
// and is dropped when the package is removed. The returned func unregisters l.
func (t *TreeContext) AddChangeListener(l ChangeListener, pkg *dependency.Dependency) func() {
	t.nextID++
	id := t.nextID
	entry := listenerEntry{id: id, listener: l}
	if pkg != nil {
		entry.pkgKey = pkg.Key()
	}
	t.listeners = append(t.listeners, entry)
	return func() { t.removeListener(id) }
}

func (t *TreeContext) removeListener(id int) {
	for i, e := range t.listeners {
		if e.id == id {
			t.listeners = append(t.listeners[:i:i], t.listeners[i+1:]...)
			return
		}
	}
}

func (t *TreeContext) notify(ctx *Context) {
	t.log.Debug("context changed", "key", ctx.Key(), "included", ctx.IsIncluded(), "multi", ctx.IsMulti())
	// Copy so a listener may unregister itself.
	for _, e := range append([]listenerEntry(nil), t.listeners...) {
		if e.pkgKey != "" && !ctx.hasPackage(e.pkgKey) {
			continue
		}
		e.listener.ContextChanged(ctx)
	}
}

// Context returns the context for key, or nil.
func (t *TreeContext) Context(key string) *Context {
	return t.contexts[key]
}

// ContextFor returns the context tracking dep's key, or nil.
func (t *TreeContext) ContextFor(dep *dependency.Dependency) *Context {
	if dep == nil {
		return nil
	}
	return t.contexts[dep.Key()]
}

// Contexts returns all contexts ordered by key.
func (t *TreeContext) Contexts() []*Context {
	keys := make([]string, 0, len(t.contexts))
	for k := range t.contexts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Context, len(keys))
	for i, k := range keys {
		out[i] = t.contexts[k]
	}
	return out
}

// Packages returns the packages in the order they were added.
func (t *TreeContext) Packages() []*dependency.Dependency {
	out := make([]*dependency.Dependency, len(t.pkgOrder))
	for i, k := range t.pkgOrder {
		out[i] = t.packages[k]
	}
	return out
}

// Package returns the package with the given key, or nil.
func (t *TreeContext) Package(key string) *dependency.Dependency {
	return t.packages[key]
}

// HasPackage reports whether pkg has been added.
func (t *TreeContext) HasPackage(pkg *dependency.Dependency) bool {
	if pkg == nil {
		return false
	}
	return t.packages[pkg.Key()] == pkg
}

// AddPackage registers pkg and tracks its root. With recurse set, every
// descendant and every ancestor reachable from it is tracked as well; an
// instance whose key is already included elsewhere becomes included.
// Suppressed dependencies are skipped along with everything below them.
func (t *TreeContext) AddPackage(pkg *dependency.Dependency, recurse bool) error {
	if pkg == nil || !pkg.IsDeployableElement() {
		return deployerr.Invalid("package must be a deployable element")
	}
	key := pkg.Key()
	if _, ok := t.packages[key]; ok {
		return deployerr.State("package %s already added", key)
	}
	t.packages[key] = pkg
	t.pkgOrder = append(t.pkgOrder, key)

	err := t.track(pkg, pkg)
	if err == nil && recurse {
		visited := map[*dependency.Dependency]bool{pkg: true}
		err = t.addTree(pkg, pkg, visited)
	}
	if err != nil {
		_ = t.RemovePackage(pkg, false)
		return err
	}
	t.refresh()
	t.log.Debug("package added", "package", key, "contexts", len(t.contexts))
	return nil
}

func (t *TreeContext) addTree(dep, pkg *dependency.Dependency, visited map[*dependency.Dependency]bool) error {
	for _, child := range dep.Dependencies() {
		if !t.admit(child, visited) {
			continue
		}
		if err := t.track(child, pkg); err != nil {
			return err
		}
		if child.IsDeployableElement() {
			continue
		}
		if err := t.addTree(child, pkg, visited); err != nil {
			return err
		}
	}
	return t.addAncestors(dep, pkg, visited)
}

func (t *TreeContext) addAncestors(dep, pkg *dependency.Dependency, visited map[*dependency.Dependency]bool) error {
	for _, anc := range dep.Ancestors() {
		if !t.admit(anc, visited) {
			continue
		}
		if err := t.track(anc, pkg); err != nil {
			return err
		}
		if err := t.addAncestors(anc, pkg, visited); err != nil {
			return err
		}
	}
	return nil
}

func (t *TreeContext) admit(dep *dependency.Dependency, visited map[*dependency.Dependency]bool) bool {
	if visited[dep] {
		return false
	}
	visited[dep] = true
	if t.ShouldSuppressDependency(dep) {
		t.log.Debug("dependency suppressed", "key", dep.Key())
		return false
	}
	return true
}

func (t *TreeContext) track(dep, pkg *dependency.Dependency) error {
	ctx := t.contexts[dep.Key()]
	if ctx == nil {
		var err error
		if ctx, err = NewContext(dep.Key()); err != nil {
			return err
		}
		ctx.owner = t
		t.contexts[dep.Key()] = ctx
	}
	return ctx.AddDependency(dep, pkg)
}

// RemovePackage stops tracking every instance owned by pkg and drops the
// listeners bound to it. See Context.RemoveDependency for removeLocal.
func (t *TreeContext) RemovePackage(pkg *dependency.Dependency, removeLocal bool) error {
	if pkg == nil {
		return deployerr.Invalid("package may not be nil")
	}
	key := pkg.Key()
	if _, ok := t.packages[key]; !ok {
		return deployerr.State("package %s not added", key)
	}
	for _, ctx := range t.Contexts() {
		for _, dep := range ctx.DependenciesFor(pkg) {
			ctx.RemoveDependency(dep, removeLocal)
		}
		if ctx.IsEmpty() {
			delete(t.contexts, ctx.Key())
		}
	}

	delete(t.packages, key)
	for i, k := range t.pkgOrder {
		if k == key {
			t.pkgOrder = append(t.pkgOrder[:i:i], t.pkgOrder[i+1:]...)
			break
		}
	}
	kept := t.listeners[:0]
	for _, e := range t.listeners {
		if e.pkgKey != key {
			kept = append(kept, e)
		}
	}
	t.listeners = kept

	t.refresh()
	t.log.Debug("package removed", "package", key, "removeLocal", removeLocal)
	return nil
}

// CheckRemoveLocal reports, without changing anything, which dependencies in
// other packages RemovePackage(pkg, true) would exclude, keyed by package key.
func (t *TreeContext) CheckRemoveLocal(pkg *dependency.Dependency) (map[string][]*dependency.Dependency, error) {
	if pkg == nil {
		return nil, deployerr.Invalid("package may not be nil")
	}
	key := pkg.Key()
	if _, ok := t.packages[key]; !ok {
		return nil, deployerr.State("package %s not added", key)
	}
	affected := make(map[string][]*dependency.Dependency)
	for _, ctx := range t.Contexts() {
		if !ctx.hasPackage(key) || !hasIncludedLocal(ctx, pkg) {
			continue
		}
		for k, deps := range ctx.deselectCandidates(key) {
			affected[k] = append(affected[k], deps...)
		}
	}
	return affected, nil
}

func hasIncludedLocal(ctx *Context, pkg *dependency.Dependency) bool {
	for _, d := range ctx.DependenciesFor(pkg) {
		if d.DependencyType() == dependency.TypeLocal && reallyIncluded(d, pkg) {
			return true
		}
	}
	return false
}

// AddUserDependency adds a user file reference below parent and tracks it
// in the package that owns parent.
func (t *TreeContext) AddUserDependency(parent *dependency.Dependency, path string) (*dependency.Dependency, error) {
	pkg, err := t.owningPackage(parent)
	if err != nil {
		return nil, err
	}
	user, err := parent.AddUserDependency(path)
	if err != nil {
		return nil, err
	}
	if err := t.track(user, pkg); err != nil {
		parent.RemoveDependency(user)
		return nil, err
	}
	return user, nil
}

// RemoveUserDependency removes a user file reference from parent and from its context.
func (t *TreeContext) RemoveUserDependency(parent *dependency.Dependency, path string) error {
	if _, err := t.owningPackage(parent); err != nil {
		return err
	}
	user, err := parent.RemoveUserDependency(path)
	if err != nil {
		return err
	}
	if ctx := t.contexts[user.Key()]; ctx != nil {
		ctx.RemoveDependency(user, false)
		if ctx.IsEmpty() {
			delete(t.contexts, ctx.Key())
		}
	}
	return nil
}

func (t *TreeContext) owningPackage(dep *dependency.Dependency) (*dependency.Dependency, error) {
	if dep == nil {
		return nil, deployerr.Invalid("dependency may not be nil")
	}
	if ctx := t.contexts[dep.Key()]; ctx != nil {
		if k, _, ok := ctx.locate(dep); ok {
			return ctx.pkgs[k], nil
		}
	}
	return nil, deployerr.State("%s is not tracked by this session", dep)
}

// IncludedDependencies lists, in pre-order, the deployable dependencies pkg
// actually includes. Nested packages are listed but not expanded, suppressed
// dependencies are skipped with their subtree.
func (t *TreeContext) IncludedDependencies(pkg *dependency.Dependency) []*dependency.Dependency {
	var out []*dependency.Dependency
	pkg.Walk(func(dep *dependency.Dependency, depth int) bool {
		if depth > 0 && t.ShouldSuppressDependency(dep) {
			return false
		}
		if dep.IsDeployable() && pkg.IncludesDependency(dep, true) {
			out = append(out, dep)
		}
		return depth == 0 || !dep.IsDeployableElement()
	})
	return out
}

// refresh re-derives every context until no state changes. A pass may
// include or exclude a context but only ever sets instance flags to
// included, so recompute can only go from false to true after the first
// pass. Each context then changes at most once more and the loop terminates.
func (t *TreeContext) refresh() {
	for changed := true; changed; {
		changed = false
		for _, ctx := range t.Contexts() {
			if ctx.refresh() {
				changed = true
			}
		}
	}
}
