package depctx

import (
	"errors"
	"testing"

	"github.com/flo-mic/pkgdeploy/internal/dependency"
	"github.com/flo-mic/pkgdeploy/internal/deployerr"
)

func newObj(t *testing.T, id, objType string, typ dependency.Type, opts ...dependency.Option) *dependency.Dependency {
	t.Helper()
	d, err := dependency.NewDeployableObject(id, objType, objType, objType+" "+id, typ, opts...)
	if err != nil {
		t.Fatalf("NewDeployableObject(%s, %s): %v", id, objType, err)
	}
	return d
}

func newPkg(t *testing.T, id string, children ...*dependency.Dependency) *dependency.Dependency {
	t.Helper()
	p, err := dependency.NewDeployableElement(id, "Application", "Application", "App "+id, dependency.TypeShared,
		dependency.SupportsUserDependencies())
	if err != nil {
		t.Fatalf("NewDeployableElement(%s): %v", id, err)
	}
	if err := p.SetDependencies(children); err != nil {
		t.Fatalf("SetDependencies(%s): %v", id, err)
	}
	return p
}

// countingListener records every notification it receives.
type countingListener struct {
	keys []string
}

func (l *countingListener) ContextChanged(ctx *Context) {
	l.keys = append(l.keys, ctx.Key())
}

func mustAdd(t *testing.T, tc *TreeContext, pkg *dependency.Dependency) {
	t.Helper()
	if err := tc.AddPackage(pkg, true); err != nil {
		t.Fatalf("AddPackage(%s): %v", pkg.Key(), err)
	}
}

func TestAddPackage_SecondInstanceJoinsIncludedContext(t *testing.T) {
	a := newObj(t, "K", "Template", dependency.TypeShared)
	p := newPkg(t, "P", a)

	tc := NewTreeContext()
	mustAdd(t, tc, p)

	ctx := tc.ContextFor(a)
	if ctx == nil {
		t.Fatal("no context for A after AddPackage")
	}
	if ctx.IsIncluded() {
		t.Fatal("shared dependency should start excluded")
	}
	if !ctx.SetIncluded(true) {
		t.Fatal("SetIncluded(true) = false, want true")
	}
	if ctx.SetIncluded(true) {
		t.Error("second SetIncluded(true) should report no change")
	}

	l := &countingListener{}
	tc.AddChangeListener(l, nil)

	a2 := newObj(t, "K", "Template", dependency.TypeShared)
	q := newPkg(t, "Q", a2)
	mustAdd(t, tc, q)

	if !a2.IsIncluded() {
		t.Error("Q's instance of A should be auto-selected")
	}
	if !ctx.IsMulti() {
		t.Error("context should hold two instances")
	}
	if len(l.keys) != 1 || l.keys[0] != a.Key() {
		t.Errorf("notifications = %v, want exactly one for %s", l.keys, a.Key())
	}
}

func TestAddPackage_Errors(t *testing.T) {
	tc := NewTreeContext()
	obj := newObj(t, "1", "Template", dependency.TypeShared)
	if err := tc.AddPackage(obj, true); !errors.Is(err, deployerr.ErrInvalidArgument) {
		t.Errorf("non-element: got %v, want ErrInvalidArgument", err)
	}
	p := newPkg(t, "P")
	mustAdd(t, tc, p)
	if err := tc.AddPackage(p, true); !errors.Is(err, deployerr.ErrInvalidState) {
		t.Errorf("duplicate: got %v, want ErrInvalidState", err)
	}
	if err := tc.RemovePackage(newPkg(t, "X"), false); !errors.Is(err, deployerr.ErrInvalidState) {
		t.Errorf("unknown package: got %v, want ErrInvalidState", err)
	}
}

func TestAddPackage_NonRecursiveTracksRootOnly(t *testing.T) {
	a := newObj(t, "1", "Template", dependency.TypeShared)
	p := newPkg(t, "P", a)
	tc := NewTreeContext()
	if err := tc.AddPackage(p, false); err != nil {
		t.Fatal(err)
	}
	if tc.ContextFor(p) == nil {
		t.Error("root should be tracked")
	}
	if tc.ContextFor(a) != nil {
		t.Error("children should not be tracked without recurse")
	}
}

func TestAddPackage_NestedPackageNotExpanded(t *testing.T) {
	inner := newObj(t, "9", "Template", dependency.TypeShared)
	nested := newPkg(t, "N", inner)
	p := newPkg(t, "P", nested)

	tc := NewTreeContext()
	mustAdd(t, tc, p)
	if tc.ContextFor(nested) == nil {
		t.Error("nested package should be tracked")
	}
	if tc.ContextFor(inner) != nil {
		t.Error("nested package contents should not be tracked")
	}
}

func TestAddPackage_TracksAncestors(t *testing.T) {
	folder := newObj(t, "f1", "Folder", dependency.TypeShared)
	child := newObj(t, "1", "Template", dependency.TypeShared)
	if err := child.SetAncestors([]*dependency.Dependency{folder}); err != nil {
		t.Fatal(err)
	}
	p := newPkg(t, "P", child)

	tc := NewTreeContext()
	mustAdd(t, tc, p)
	ctx := tc.ContextFor(folder)
	if ctx == nil {
		t.Fatal("ancestor should be tracked")
	}
	if got := ctx.Packages(); len(got) != 1 || got[0] != p {
		t.Errorf("ancestor packages = %v, want [P]", got)
	}
}

func TestAddPackage_Suppression(t *testing.T) {
	c := newObj(t, "3", "Image", dependency.TypeShared)
	b := newObj(t, "2", "Workflow", dependency.TypeShared)
	if err := b.SetDependencies([]*dependency.Dependency{c}); err != nil {
		t.Fatal(err)
	}
	a := newObj(t, "1", "Template", dependency.TypeShared)
	p := newPkg(t, "P", a, b)

	cases := []struct {
		name string
		s    Suppressor
	}{
		{"func", SuppressorFunc(func(d *dependency.Dependency) bool { return d.ObjectType() == "Workflow" })},
		{"by type", NewTypeSuppressor([]string{"Workflow"}, nil)},
		{"by key", NewTypeSuppressor(nil, []string{b.Key()})},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			tc := NewTreeContext(WithSuppressor(tt.s))
			mustAdd(t, tc, p)
			if tc.ContextFor(a) == nil {
				t.Error("unsuppressed dependency should be tracked")
			}
			if tc.ContextFor(b) != nil || tc.ContextFor(c) != nil {
				t.Error("suppressed dependency and its subtree should be skipped")
			}
		})
	}

	if NewTreeContext().ShouldSuppressDependency(b) {
		t.Error("default policy should suppress nothing")
	}
}

// localShared builds P holding a local instance and Q holding a shared
// instance of the same object.
func localShared(t *testing.T) (tc *TreeContext, p, q, local, shared *dependency.Dependency) {
	t.Helper()
	local = newObj(t, "K", "Template", dependency.TypeLocal)
	shared = newObj(t, "K", "Template", dependency.TypeShared)
	p = newPkg(t, "P", local)
	q = newPkg(t, "Q", shared)
	tc = NewTreeContext()
	mustAdd(t, tc, p)
	mustAdd(t, tc, q)
	if !shared.IsIncluded() {
		t.Fatal("shared instance should follow the included local instance")
	}
	return tc, p, q, local, shared
}

func TestRemovePackage_RemoveLocal(t *testing.T) {
	t.Run("deselects shared instances", func(t *testing.T) {
		tc, p, _, _, shared := localShared(t)
		if err := tc.RemovePackage(p, true); err != nil {
			t.Fatal(err)
		}
		if shared.IsIncluded() {
			t.Error("shared instance should be excluded")
		}
		if tc.ContextFor(shared).IsIncluded() {
			t.Error("context should be excluded")
		}
	})
	t.Run("keeps shared instances", func(t *testing.T) {
		tc, p, _, _, shared := localShared(t)
		if err := tc.RemovePackage(p, false); err != nil {
			t.Fatal(err)
		}
		if !shared.IsIncluded() {
			t.Error("shared instance should stay included")
		}
		if !tc.ContextFor(shared).IsIncluded() {
			t.Error("context should stay included")
		}
	})
	t.Run("another local keeps it", func(t *testing.T) {
		tc, p, _, _, shared := localShared(t)
		mustAdd(t, tc, newPkg(t, "R", newObj(t, "K", "Template", dependency.TypeLocal)))
		if err := tc.RemovePackage(p, true); err != nil {
			t.Fatal(err)
		}
		if !shared.IsIncluded() {
			t.Error("shared instance should stay included while R pulls it in")
		}
	})
}

func TestRemovePackage_Teardown(t *testing.T) {
	tc, p, q, local, shared := localShared(t)
	bound := &countingListener{}
	tc.AddChangeListener(bound, p)

	if err := tc.RemovePackage(p, false); err != nil {
		t.Fatal(err)
	}
	if tc.HasPackage(p) || tc.ContextFor(p) != nil {
		t.Error("package and its root context should be gone")
	}
	ctx := tc.ContextFor(local)
	if ctx == nil || ctx.IsMulti() || len(ctx.DependenciesFor(p)) != 0 {
		t.Fatalf("context should hold only Q's instance, got %v", ctx)
	}

	bound.keys = nil
	ctx.SetIncluded(false)
	if len(bound.keys) != 0 {
		t.Errorf("listener bound to removed package still notified: %v", bound.keys)
	}
	if shared.IsIncluded() {
		t.Error("SetIncluded(false) should exclude the remaining instance")
	}
	if got := tc.Packages(); len(got) != 1 || got[0] != q {
		t.Errorf("Packages() = %v, want [Q]", got)
	}
}

func TestCheckRemoveLocal_DryRun(t *testing.T) {
	tc, p, q, _, shared := localShared(t)

	affected, err := tc.CheckRemoveLocal(p)
	if err != nil {
		t.Fatal(err)
	}
	got := affected[q.Key()]
	if len(affected) != 1 || len(got) != 1 || got[0] != shared {
		t.Errorf("CheckRemoveLocal = %v, want {Q: [shared]}", affected)
	}
	if !shared.IsIncluded() || !tc.HasPackage(p) {
		t.Error("dry run must not change state")
	}

	mustAdd(t, tc, newPkg(t, "R", newObj(t, "K", "Template", dependency.TypeLocal)))
	affected, err = tc.CheckRemoveLocal(p)
	if err != nil {
		t.Fatal(err)
	}
	if len(affected) != 0 {
		t.Errorf("CheckRemoveLocal with another local = %v, want empty", affected)
	}
}

func TestChangeListener_Unregister(t *testing.T) {
	a := newObj(t, "1", "Template", dependency.TypeShared)
	tc := NewTreeContext()
	mustAdd(t, tc, newPkg(t, "P", a))

	var calls int
	unregister := tc.AddChangeListener(ChangeListenerFunc(func(*Context) { calls++ }), nil)
	tc.ContextFor(a).SetIncluded(true)
	unregister()
	tc.ContextFor(a).SetIncluded(false)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestContext_SetIncludedRequiresSelectable(t *testing.T) {
	srv := newObj(t, "1", "Server", dependency.TypeServer)
	tc := NewTreeContext()
	mustAdd(t, tc, newPkg(t, "P", srv))
	ctx := tc.ContextFor(srv)
	if ctx.CanBeSelected() {
		t.Error("server dependency context should not be selectable")
	}
	if ctx.SetIncluded(true) {
		t.Error("SetIncluded on a non-selectable context should fail")
	}
}

func TestContext_AddDependencyKeyMismatch(t *testing.T) {
	ctx, err := NewContext("Template-1")
	if err != nil {
		t.Fatal(err)
	}
	err = ctx.AddDependency(newObj(t, "2", "Template", dependency.TypeShared), newPkg(t, "P"))
	if !errors.Is(err, deployerr.ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}
	if _, err := NewContext(""); !errors.Is(err, deployerr.ErrInvalidArgument) {
		t.Errorf("empty key: got %v, want ErrInvalidArgument", err)
	}
}

func TestContext_AddDependencyRejectsUntoggleableInIncluded(t *testing.T) {
	shared := newObj(t, "K", "Template", dependency.TypeShared)
	p := newPkg(t, "P", shared)
	tc := NewTreeContext()
	mustAdd(t, tc, p)
	ctx := tc.ContextFor(shared)
	if !ctx.SetIncluded(true) {
		t.Fatal("SetIncluded(true) should succeed")
	}

	srv := newObj(t, "K", "Template", dependency.TypeServer)
	err := ctx.AddDependency(srv, newPkg(t, "Q"))
	if !errors.Is(err, deployerr.ErrInvalidState) {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}
	if ctx.IsMulti() || !ctx.CanBeSelected() {
		t.Error("rejected instance must not be tracked")
	}

	// through AddPackage the failed package is rolled back
	q := newPkg(t, "Q", newObj(t, "K", "Template", dependency.TypeServer))
	if err := tc.AddPackage(q, true); !errors.Is(err, deployerr.ErrInvalidState) {
		t.Fatalf("AddPackage: got %v, want ErrInvalidState", err)
	}
	if tc.HasPackage(q) || ctx.IsMulti() || !ctx.CanBeSelected() {
		t.Error("AddPackage should leave the session unchanged")
	}
	if !ctx.SetIncluded(false) {
		t.Error("context should still be deselectable")
	}
}

func TestUserDependencies(t *testing.T) {
	a := newObj(t, "1", "Template", dependency.TypeShared)
	p := newPkg(t, "P", a)
	tc := NewTreeContext()
	mustAdd(t, tc, p)

	user, err := tc.AddUserDependency(p, "media/logo.png")
	if err != nil {
		t.Fatal(err)
	}
	if tc.ContextFor(user) == nil {
		t.Fatal("user dependency should be tracked")
	}
	if _, err := tc.AddUserDependency(newPkg(t, "X"), "a.txt"); !errors.Is(err, deployerr.ErrInvalidState) {
		t.Errorf("untracked parent: got %v, want ErrInvalidState", err)
	}
	if err := tc.RemoveUserDependency(p, "media/logo.png"); err != nil {
		t.Fatal(err)
	}
	if tc.ContextFor(user) != nil {
		t.Error("user dependency context should be gone")
	}
}

func TestIncludedDependencies(t *testing.T) {
	local := newObj(t, "2", "Field", dependency.TypeLocal)
	on := newObj(t, "1", "Template", dependency.TypeShared)
	if err := on.SetDependencies([]*dependency.Dependency{local}); err != nil {
		t.Fatal(err)
	}
	off := newObj(t, "3", "Template", dependency.TypeShared)
	srv := newObj(t, "4", "Server", dependency.TypeServer)
	p := newPkg(t, "P", on, off, srv)

	tc := NewTreeContext()
	mustAdd(t, tc, p)
	tc.ContextFor(on).SetIncluded(true)

	got := tc.IncludedDependencies(p)
	want := []*dependency.Dependency{p, on, local}
	if len(got) != len(want) {
		t.Fatalf("IncludedDependencies = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestIncludedDependencies_SkipsSuppressed(t *testing.T) {
	field := newObj(t, "2", "Field", dependency.TypeLocal)
	wf := newObj(t, "1", "Workflow", dependency.TypeLocal)
	if err := wf.SetDependencies([]*dependency.Dependency{field}); err != nil {
		t.Fatal(err)
	}
	home := newObj(t, "3", "Template", dependency.TypeLocal)
	p := newPkg(t, "P", wf, home)

	tc := NewTreeContext(WithSuppressor(NewTypeSuppressor([]string{"Workflow"}, nil)))
	mustAdd(t, tc, p)

	got := tc.IncludedDependencies(p)
	if len(got) != 2 || got[0] != p || got[1] != home {
		t.Errorf("IncludedDependencies = %v, want [P, home]", got)
	}
}

func TestIncludedDependencies_UserBelowExcludedShared(t *testing.T) {
	shared := newObj(t, "1", "Template", dependency.TypeShared, dependency.SupportsUserDependencies())
	if err := shared.SetDependencies(nil); err != nil {
		t.Fatal(err)
	}
	p := newPkg(t, "P", shared)
	tc := NewTreeContext()
	mustAdd(t, tc, p)
	user, err := tc.AddUserDependency(shared, "media/logo.png")
	if err != nil {
		t.Fatal(err)
	}

	if got := tc.IncludedDependencies(p); len(got) != 1 || got[0] != p {
		t.Errorf("IncludedDependencies = %v, want only the package", got)
	}
	if tc.ContextFor(user).IsIncluded() {
		t.Error("user context should follow its excluded parent")
	}

	tc.ContextFor(shared).SetIncluded(true)
	got := tc.IncludedDependencies(p)
	if len(got) != 3 || got[2] != user {
		t.Errorf("IncludedDependencies = %v, want [P, shared, user]", got)
	}
	if !tc.ContextFor(user).IsIncluded() {
		t.Error("user context should be included once its parent is")
	}
}
