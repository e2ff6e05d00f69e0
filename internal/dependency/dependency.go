// Package dependency models deployable server objects and the containment
// graph between them.
//
// A Dependency is not safe for concurrent use. Instances that represent the
// same server object in different packages are kept consistent by the depctx
// package, not by the nodes themselves.
package dependency

import (
	"cmp"
	"strings"

	"github.com/flo-mic/pkgdeploy/internal/deployerr"
)

// Dependency is one node of a dependency graph.
type Dependency struct {
	kind           Kind
	id             string
	objectType     string
	objectTypeName string
	displayName    string
	depType        Type

	// parentID and parentType extend the identity of objects whose id is
	// only unique within a parent's scope.
	parentID   string
	parentType string

	included    bool
	association bool
	auto        bool

	supportsIDMapping bool
	supportsIDTypes   bool
	supportsUserDeps  bool
	supportsParentID  bool

	children        []*Dependency
	childrenLoaded  bool
	ancestors       []*Dependency
	ancestorsLoaded bool

	// parent is a non-owning back-reference maintained by SetDependencies.
	parent *Dependency
}

// Option configures optional attributes of a new Dependency.
type Option func(*Dependency)

// WithParent scopes the dependency's identity by the id and object type of a parent object.
func WithParent(parentID, parentType string) Option {
	return func(d *Dependency) {
		d.parentID = parentID
		d.parentType = parentType
	}
}

// SupportsIDMapping marks ids that differ between servers and must be
// translated through an id map on install.
func SupportsIDMapping() Option {
	return func(d *Dependency) { d.supportsIDMapping = true }
}

// SupportsIDTypes marks objects whose content references other ids.
func SupportsIDTypes() Option {
	return func(d *Dependency) { d.supportsIDTypes = true }
}

// SupportsUserDependencies allows user file references to be added as children.
func SupportsUserDependencies() Option {
	return func(d *Dependency) { d.supportsUserDeps = true }
}

// SupportsParentID marks objects whose id is scoped by a parent id.
func SupportsParentID() Option {
	return func(d *Dependency) { d.supportsParentID = true }
}

// AutoDependency marks a dependency that discovery added on its own rather
// than one requested by the user.
func AutoDependency() Option {
	return func(d *Dependency) { d.auto = true }
}

// NewDeployableObject returns a dependency on a regular server object.
func NewDeployableObject(id, objectType, objectTypeName, displayName string, typ Type, opts ...Option) (*Dependency, error) {
	return newDependency(KindDeployableObject, id, objectType, objectTypeName, displayName, typ, opts)
}

// NewDeployableElement returns a package root.
func NewDeployableElement(id, objectType, objectTypeName, displayName string, typ Type, opts ...Option) (*Dependency, error) {
	return newDependency(KindDeployableElement, id, objectType, objectTypeName, displayName, typ, opts)
}

func newDependency(kind Kind, id, objectType, objectTypeName, displayName string, typ Type, opts []Option) (*Dependency, error) {
	if err := requireNonEmpty(
		"id", id,
		"objectType", objectType,
		"objectTypeName", objectTypeName,
		"displayName", displayName,
	); err != nil {
		return nil, err
	}
	if typ == TypeUser {
		return nil, deployerr.Invalid("type %s is reserved for user dependencies", typ)
	}
	d := &Dependency{
		kind:           kind,
		id:             id,
		objectType:     objectType,
		objectTypeName: objectTypeName,
		displayName:    displayName,
	}
	for _, opt := range opts {
		opt(d)
	}
	if (d.parentID == "") != (d.parentType == "") {
		return nil, deployerr.Invalid("parentID and parentType must both be set or both be empty")
	}
	if err := d.SetDependencyType(typ); err != nil {
		return nil, err
	}
	if kind == KindDeployableElement && d.CanBeIncludedExcluded() {
		// A package is deployed unless the user says otherwise.
		d.included = true
	}
	return d, nil
}

// requireNonEmpty takes name/value pairs.
func requireNonEmpty(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return deployerr.Invalid("%s may not be empty", pairs[i])
		}
	}
	return nil
}

func (d *Dependency) Kind() Kind { return d.kind }
func (d *Dependency) DependencyID() string { return d.id }
func (d *Dependency) ObjectType() string { return d.objectType }
func (d *Dependency) ObjectTypeName() string { return d.objectTypeName }
func (d *Dependency) DisplayName() string { return d.displayName }
func (d *Dependency) DependencyType() Type { return d.depType }
func (d *Dependency) ParentID() string { return d.parentID }
func (d *Dependency) ParentType() string { return d.parentType }
func (d *Dependency) IsIncluded() bool { return d.included }
func (d *Dependency) IsAssociation() bool { return d.association }
func (d *Dependency) IsAutoDependency() bool { return d.auto }
func (d *Dependency) SupportsIDMapping() bool { return d.supportsIDMapping }
func (d *Dependency) SupportsIDTypes() bool { return d.supportsIDTypes }
func (d *Dependency) SupportsParentID() bool { return d.supportsParentID }
func (d *Dependency) IsDeployableElement() bool { return d.kind == KindDeployableElement }
func (d *Dependency) IsUserDependency() bool { return d.kind == KindUserDependency }

// SupportsUserDependencies reports whether user file references may be added.
func (d *Dependency) SupportsUserDependencies() bool { return d.supportsUserDeps }

// ParentDependency returns the node whose children contain d, or nil.
func (d *Dependency) ParentDependency() *Dependency { return d.parent }

// Key identifies the server object d represents. Two instances with equal
// keys stand for the same object even when they sit in different trees.
func (d *Dependency) Key() string {
	return makeKey(d.objectType, d.id, d.parentType, d.parentID)
}

func makeKey(objectType, id, parentType, parentID string) string {
	key := objectType + "-" + id
	if parentID != "" {
		key += "-" + parentType + "-" + parentID
	}
	return key
}

// DisplayIdentifier is the label used for ordering and display.
func (d *Dependency) DisplayIdentifier() string {
	return d.objectTypeName + ": " + d.displayName
}

func (d *Dependency) String() string {
	return d.DisplayIdentifier() + " [" + d.Key() + "]"
}

// Compare orders dependencies by display identifier, then by id.
func (d *Dependency) Compare(other *Dependency) int {
	if c := cmp.Compare(d.DisplayIdentifier(), other.DisplayIdentifier()); c != 0 {
		return c
	}
	return cmp.Compare(d.id, other.id)
}

// SetDependencyType changes the type and re-derives the inclusion defaults:
// local dependencies become included and lose the association flag, server
// and system dependencies become excluded.
func (d *Dependency) SetDependencyType(t Type) error {
	if !t.valid() {
		return deployerr.Invalid("unknown dependency type %d", int(t))
	}
	if (t == TypeUser) != (d.kind == KindUserDependency) {
		return deployerr.Invalid("type %s not allowed for a %s dependency", t, d.kind)
	}
	d.depType = t
	switch t {
	case TypeLocal:
		d.included = true
		d.association = false
	case TypeServer, TypeSystem:
		d.included = false
	}
	return nil
}

// CanBeIncludedExcluded reports whether the inclusion flag may be toggled.
func (d *Dependency) CanBeIncludedExcluded() bool {
	switch d.depType {
	case TypeLocal, TypeServer, TypeSystem:
		return false
	}
	return true
}

// IsDeployable reports whether the object can be packaged at all.
func (d *Dependency) IsDeployable() bool {
	return d.depType != TypeServer && d.depType != TypeSystem
}

// SetIncluded sets the inclusion flag. Changing the flag of a dependency
// that cannot be included or excluded is an error; re-asserting the
// current value is not.
func (d *Dependency) SetIncluded(included bool) error {
	if d.included == included {
		return nil
	}
	if !d.CanBeIncludedExcluded() {
		return deployerr.State("%s dependency %s cannot be included or excluded", d.depType, d.Key())
	}
	d.included = included
	return nil
}

// SetAssociation marks the edge from the parent as optional.
func (d *Dependency) SetAssociation(association bool) error {
	if association && d.depType == TypeLocal {
		return deployerr.State("local dependency %s cannot be an association", d.Key())
	}
	d.association = association
	return nil
}

// SetAutoDependency marks whether discovery added d on its own.
func (d *Dependency) SetAutoDependency(auto bool) {
	d.auto = auto
}

// SetDisplayName changes the display name. The identity is unaffected.
func (d *Dependency) SetDisplayName(name string) error {
	if strings.TrimSpace(name) == "" {
		return deployerr.Invalid("displayName may not be empty")
	}
	d.displayName = name
	return nil
}

// AreDependenciesLoaded reports whether SetDependencies has been called.
func (d *Dependency) AreDependenciesLoaded() bool { return d.childrenLoaded }

// AreAncestorsLoaded reports whether SetAncestors has been called.
func (d *Dependency) AreAncestorsLoaded() bool { return d.ancestorsLoaded }

// HasDependencies reports whether d has at least one child.
func (d *Dependency) HasDependencies() bool { return len(d.children) > 0 }

// Dependencies returns the children in order.
func (d *Dependency) Dependencies() []*Dependency {
	return append([]*Dependency(nil), d.children...)
}

// Ancestors returns the ancestors in order.
func (d *Dependency) Ancestors() []*Dependency {
	return append([]*Dependency(nil), d.ancestors...)
}

// SetDependencies replaces all children. Previous children lose their parent
// back-reference and each new child gets d as its parent.
func (d *Dependency) SetDependencies(children []*Dependency) error {
	set, err := buildSet(children)
	if err != nil {
		return err
	}
	for _, old := range d.children {
		if old.parent == d {
			old.parent = nil
		}
	}
	for _, child := range set {
		child.parent = d
	}
	d.children = set
	d.childrenLoaded = true
	return nil
}

// SetAncestors replaces all ancestors.
func (d *Dependency) SetAncestors(ancestors []*Dependency) error {
	set, err := buildSet(ancestors)
	if err != nil {
		return err
	}
	d.ancestors = set
	d.ancestorsLoaded = true
	return nil
}

// RemoveDependency detaches child from d. It reports whether child was present.
func (d *Dependency) RemoveDependency(child *Dependency) bool {
	for i, c := range d.children {
		if c != child {
			continue
		}
		d.children = append(d.children[:i:i], d.children[i+1:]...)
		if child.parent == d {
			child.parent = nil
		}
		return true
	}
	return false
}

// Child returns the child with the given key, or nil.
func (d *Dependency) Child(key string) *Dependency {
	for _, c := range d.children {
		if c.Key() == key {
			return c
		}
	}
	return nil
}
