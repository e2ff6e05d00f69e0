package depctx

import "github.com/flo-mic/pkgdeploy/internal/dependency"

// Suppressor decides which dependencies a session ignores entirely.
type Suppressor interface {
	Suppress(dep *dependency.Dependency) bool
}

// SuppressorFunc adapts a function to Suppressor.
type SuppressorFunc func(dep *dependency.Dependency) bool

func (f SuppressorFunc) Suppress(dep *dependency.Dependency) bool { return f(dep) }

// TypeSuppressor suppresses dependencies by object type or by exact key.
type TypeSuppressor struct {
	objectTypes map[string]bool
	keys        map[string]bool
}

// NewTypeSuppressor builds a suppressor from object type names and dependency keys.
func NewTypeSuppressor(objectTypes, keys []string) *TypeSuppressor {
	s := &TypeSuppressor{
		objectTypes: make(map[string]bool, len(objectTypes)),
		keys:        make(map[string]bool, len(keys)),
	}
	for _, t := range objectTypes {
		s.objectTypes[t] = true
	}
	for _, k := range keys {
		s.keys[k] = true
	}
	return s
}

func (s *TypeSuppressor) Suppress(dep *dependency.Dependency) bool {
	return s.objectTypes[dep.ObjectType()] || s.keys[dep.Key()]
}
