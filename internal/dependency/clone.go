package dependency

// Clone returns a deep copy of d: every reachable child and ancestor is
// copied once, and each copied child's parent points at its copied parent.
// The clone of d itself has no parent.
func (d *Dependency) Clone() *Dependency {
	c := d.cloneWith(make(map[*Dependency]*Dependency))
	c.parent = nil
	return c
}

func (d *Dependency) cloneWith(memo map[*Dependency]*Dependency) *Dependency {
	if c, ok := memo[d]; ok {
		return c
	}
	c := &Dependency{}
	*c = *d
	c.parent = nil
	c.children = nil
	c.ancestors = nil
	memo[d] = c

	if d.children != nil {
		c.children = make([]*Dependency, len(d.children))
		for i, child := range d.children {
			cc := child.cloneWith(memo)
			cc.parent = c
			c.children[i] = cc
		}
	}
	if d.ancestors != nil {
		c.ancestors = make([]*Dependency, len(d.ancestors))
		for i, anc := range d.ancestors {
			c.ancestors[i] = anc.cloneWith(memo)
		}
	}
	return c
}

// CopyFrom replaces the state of d with a deep copy of other's. The parent
// back-reference of d is kept.
func (d *Dependency) CopyFrom(other *Dependency) {
	if other == nil || other == d {
		return
	}
	parent := d.parent
	for _, old := range d.children {
		if old.parent == d {
			old.parent = nil
		}
	}
	c := other.Clone()
	*d = *c
	d.parent = parent
	for _, child := range d.children {
		child.parent = d
	}
}

// Equal reports whether d and other describe the same state: identity,
// type, flags, ancestors by key and children recursively.
func (d *Dependency) Equal(other *Dependency) bool {
	return equalDeps(d, other, make(map[[2]*Dependency]bool))
}

func equalDeps(a, b *Dependency, seen map[[2]*Dependency]bool) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	pair := [2]*Dependency{a, b}
	if seen[pair] {
		return true
	}
	seen[pair] = true

	if a.kind != b.kind ||
		a.id != b.id ||
		a.objectType != b.objectType ||
		a.objectTypeName != b.objectTypeName ||
		a.displayName != b.displayName ||
		a.depType != b.depType ||
		a.parentID != b.parentID ||
		a.parentType != b.parentType ||
		a.included != b.included ||
		a.association != b.association ||
		a.auto != b.auto ||
		a.supportsIDMapping != b.supportsIDMapping ||
		a.supportsIDTypes != b.supportsIDTypes ||
		a.supportsUserDeps != b.supportsUserDeps ||
		a.supportsParentID != b.supportsParentID ||
		a.childrenLoaded != b.childrenLoaded ||
		a.ancestorsLoaded != b.ancestorsLoaded {
		return false
	}
	if len(a.children) != len(b.children) || len(a.ancestors) != len(b.ancestors) {
		return false
	}
	for i := range a.ancestors {
		if a.ancestors[i].Key() != b.ancestors[i].Key() {
			return false
		}
	}
	for i := range a.children {
		if !equalDeps(a.children[i], b.children[i], seen) {
			return false
		}
	}
	return true
}
