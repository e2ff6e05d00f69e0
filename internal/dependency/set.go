package dependency

import "github.com/flo-mic/pkgdeploy/internal/deployerr"

// Edge sets are ordered by Compare and de-duplicated by Key. Dependencies that
// compare equal keep their insertion order, so two objects sharing a display
// name and id but differing in key can live side by side.

func buildSet(deps []*Dependency) ([]*Dependency, error) {
	for i, dep := range deps {
		if dep == nil {
			return nil, deployerr.Invalid("dependency at index %d is nil", i)
		}
	}
	set := make([]*Dependency, 0, len(deps))
	for _, dep := range deps {
		set, _ = insertSorted(set, dep)
	}
	return set, nil
}

// insertSorted adds dep after every element that does not compare greater.
// It returns false and leaves set unchanged if an element with the same key
// is already present.
func insertSorted(set []*Dependency, dep *Dependency) ([]*Dependency, bool) {
	key := dep.Key()
	pos := len(set)
	for i, cur := range set {
		if cur.Key() == key {
			return set, false
		}
		if pos == len(set) && cur.Compare(dep) > 0 {
			pos = i
		}
	}
	set = append(set, nil)
	copy(set[pos+1:], set[pos:])
	set[pos] = dep
	return set, true
}
