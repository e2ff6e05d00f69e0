package dependency

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/flo-mic/pkgdeploy/internal/deployerr"
)

// NewUserDependency returns a file reference scoped to parent. It is not
// attached to parent; use AddUserDependency for that.
func NewUserDependency(parent *Dependency, filePath string) (*Dependency, error) {
	if parent == nil {
		return nil, deployerr.Invalid("parent may not be nil")
	}
	p, err := cleanUserPath(filePath)
	if err != nil {
		return nil, err
	}
	return &Dependency{
		kind:           KindUserDependency,
		id:             p,
		objectType:     UserDependencyObjectType,
		objectTypeName: "User Dependency",
		displayName:    p,
		depType:        TypeUser,
		parentID:       parent.id,
		parentType:     parent.objectType,
		included:       true,
		childrenLoaded: true,
	}, nil
}

// cleanUserPath normalizes a user file path to a slash-separated path that
// stays within the files root.
func cleanUserPath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", deployerr.Invalid("user dependency path may not be empty")
	}
	clean := path.Clean(filepath.ToSlash(p))
	if !filepath.IsLocal(filepath.FromSlash(clean)) {
		return "", deployerr.Invalid("user dependency path %q must be relative and stay within the files root", p)
	}
	return clean, nil
}

// Path returns the file path of a user dependency.
func (d *Dependency) Path() string {
	if d.kind != KindUserDependency {
		return ""
	}
	return d.id
}

// AddUserDependency attaches a new user file reference as a child of d.
func (d *Dependency) AddUserDependency(filePath string) (*Dependency, error) {
	if err := d.checkUserDependencies(); err != nil {
		return nil, err
	}
	user, err := NewUserDependency(d, filePath)
	if err != nil {
		return nil, err
	}
	set, added := insertSorted(d.children, user)
	if !added {
		return nil, deployerr.Invalid("user dependency %q already exists on %s", user.id, d.Key())
	}
	d.children = set
	user.parent = d
	return user, nil
}

// RemoveUserDependency detaches the user file reference with the given path.
func (d *Dependency) RemoveUserDependency(filePath string) (*Dependency, error) {
	if err := d.checkUserDependencies(); err != nil {
		return nil, err
	}
	p, err := cleanUserPath(filePath)
	if err != nil {
		return nil, err
	}
	user := d.Child(makeKey(UserDependencyObjectType, p, d.objectType, d.id))
	if user == nil || user.kind != KindUserDependency {
		return nil, deployerr.Invalid("no user dependency %q on %s", p, d.Key())
	}
	d.RemoveDependency(user)
	return user, nil
}

// UserDependencies returns the user file references directly below d.
func (d *Dependency) UserDependencies() []*Dependency {
	var users []*Dependency
	for _, c := range d.children {
		if c.kind == KindUserDependency {
			users = append(users, c)
		}
	}
	return users
}

func (d *Dependency) checkUserDependencies() error {
	if !d.supportsUserDeps {
		return deployerr.State("%s does not support user dependencies", d.Key())
	}
	if !d.childrenLoaded {
		return deployerr.State("dependencies of %s are not loaded", d.Key())
	}
	return nil
}
