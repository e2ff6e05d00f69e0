package dependency

// ContainsDependency reports whether other, matched by key, appears anywhere
// in the subtree rooted at d, including d itself.
func (d *Dependency) ContainsDependency(other *Dependency) bool {
	if other == nil {
		return false
	}
	return d.Find(other.Key()) != nil
}

// Find returns the first instance in pre-order whose key matches, or nil.
func (d *Dependency) Find(key string) *Dependency {
	var found *Dependency
	d.Walk(func(dep *Dependency, _ int) bool {
		if found != nil {
			return false
		}
		if dep.Key() == key {
			found = dep
			return false
		}
		return true
	})
	return found
}

// Walk visits d and its descendants in pre-order. Each node is visited once
// even if the graph has cycles or shares nodes. Returning false from fn skips
// the node's children.
func (d *Dependency) Walk(fn func(dep *Dependency, depth int) bool) {
	visited := make(map[*Dependency]bool)
	var walk func(dep *Dependency, depth int)
	walk = func(dep *Dependency, depth int) {
		if visited[dep] {
			return
		}
		visited[dep] = true
		if !fn(dep, depth) {
			return
		}
		for _, child := range dep.children {
			walk(child, depth+1)
		}
	}
	walk(d, 0)
}

// IncludesDependency reports whether d, acting as a package, includes other.
//
// With sameInstance set, other must be reachable from d by its parent chain
// and its own inclusion is checked. Otherwise any instance with other's key
// in d's subtree counts; nested packages are matched but not searched.
//
// A local dependency is included exactly when its nearest non-local ancestor
// is. A user dependency needs its own flag as well as that ancestor's.
func (d *Dependency) IncludesDependency(other *Dependency, sameInstance bool) bool {
	if other == nil {
		return false
	}
	if sameInstance {
		return d.includesInstance(other)
	}
	key := other.Key()
	if d.Key() == key {
		return d.included
	}
	visited := map[*Dependency]bool{d: true}
	return d.includesKey(key, []*Dependency{d}, visited)
}

func (d *Dependency) includesInstance(other *Dependency) bool {
	seen := make(map[*Dependency]bool)
	reached := false
	for p := other; p != nil && !seen[p]; p = p.parent {
		if p == d {
			reached = true
			break
		}
		seen[p] = true
	}
	if !reached {
		return false
	}
	if other == d || !followsParent(other) {
		return other.included
	}
	if !other.included {
		return false
	}
	clear(seen)
	for p := other.parent; p != nil && !seen[p]; p = p.parent {
		if p.depType != TypeLocal || p == d {
			return p.included
		}
		seen[p] = true
	}
	return other.included
}

// includesKey searches below d. stack holds the path from the package root
// to d and is only read up to its length, so siblings may share its backing array.
func (d *Dependency) includesKey(key string, stack []*Dependency, visited map[*Dependency]bool) bool {
	for _, child := range d.children {
		if visited[child] {
			continue
		}
		visited[child] = true
		if child.Key() == key && effectivelyIncluded(child, stack) {
			return true
		}
		if child.kind == KindDeployableElement {
			continue
		}
		if child.includesKey(key, append(stack, child), visited) {
			return true
		}
	}
	return false
}

func effectivelyIncluded(dep *Dependency, stack []*Dependency) bool {
	if !followsParent(dep) || !dep.included {
		return dep.included
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].depType != TypeLocal || i == 0 {
			return stack[i].included
		}
	}
	return dep.included
}

// followsParent reports whether d's inclusion depends on its ancestors.
func followsParent(d *Dependency) bool {
	return d.depType == TypeLocal || d.depType == TypeUser
}
