package dependency

import (
	"fmt"
	"strings"
)

// Type governs whether a dependency is packaged and whether the user may
// toggle it.
type Type int

const (
	// TypeLocal dependencies are packaged with their parent and cannot be
	// toggled on their own.
	TypeLocal Type = iota + 1
	// TypeShared dependencies may appear under several parents and are
	// optionally included.
	TypeShared
	// TypeServer dependencies exist on every server and are never packaged.
	TypeServer
	// TypeSystem dependencies are part of the product and are never packaged.
	TypeSystem
	// TypeUser is reserved for file references added by the user.
	TypeUser
)

func (t Type) String() string {
	switch t {
	case TypeLocal:
		return "local"
	case TypeShared:
		return "shared"
	case TypeServer:
		return "server"
	case TypeSystem:
		return "system"
	case TypeUser:
		return "user"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

func (t Type) valid() bool {
	return t >= TypeLocal && t <= TypeUser
}

// ParseType converts a type name as written in catalogs and manifests.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "local":
		return TypeLocal, nil
	case "shared":
		return TypeShared, nil
	case "server":
		return TypeServer, nil
	case "system":
		return TypeSystem, nil
	case "user":
		return TypeUser, nil
	}
	return 0, fmt.Errorf("unknown dependency type %q", s)
}

// Kind distinguishes the variants of Dependency.
type Kind int

const (
	// KindDeployableObject is a regular server object.
	KindDeployableObject Kind = iota
	// KindDeployableElement is a package root: one complete archive unit.
	KindDeployableElement
	// KindUserDependency is a file reference added by the user.
	KindUserDependency
)

func (k Kind) String() string {
	switch k {
	case KindDeployableElement:
		return "element"
	case KindUserDependency:
		return "user"
	default:
		return "object"
	}
}

// UserDependencyObjectType is the object type of every user dependency.
const UserDependencyObjectType = "UserDependency"
