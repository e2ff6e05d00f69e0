// Package discovery builds dependency trees from a catalog file exported by
// the source server.
package discovery

import (
	"fmt"
	"os"

	"github.com/flo-mic/pkgdeploy/internal/dependency"
	"gopkg.in/yaml.v3"
)

// catalogFile mirrors the .pkgdeploy/catalog.yaml structure.
type catalogFile struct {
	Packages []node `yaml:"packages"`
}

type node struct {
	ID             string `yaml:"id"`
	ObjectType     string `yaml:"object_type"`
	TypeName       string `yaml:"type_name"`
	Name           string `yaml:"name"`
	DependencyType string `yaml:"dependency_type"`
	ParentID       string `yaml:"parent_id"`
	ParentType     string `yaml:"parent_type"`

	IDMapping        bool  `yaml:"id_mapping"`
	IDTypes          bool  `yaml:"id_types"`
	ParentIDs        bool  `yaml:"parent_ids"`
	UserDependencies bool  `yaml:"user_dependencies"`
	Auto             bool  `yaml:"auto"`
	Association      bool  `yaml:"association"`
	Included         *bool `yaml:"included"`

	Dependencies []node   `yaml:"dependencies"`
	Ancestors    []node   `yaml:"ancestors"`
	UserFiles    []string `yaml:"user_files"`

	// Package marks a nested package root.
	Package bool `yaml:"package"`
}

// LoadCatalog reads a catalog file and returns its package roots with
// children and ancestors assigned.
func LoadCatalog(path string) ([]*dependency.Dependency, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	pkgs, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pkgs, nil
}

// ParseCatalog builds package roots from catalog YAML.
func ParseCatalog(data []byte) ([]*dependency.Dependency, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(f.Packages) == 0 {
		return nil, fmt.Errorf("catalog has no packages")
	}

	seen := make(map[string]bool, len(f.Packages))
	pkgs := make([]*dependency.Dependency, 0, len(f.Packages))
	for i, n := range f.Packages {
		n.Package = true
		pkg, err := build(n, fmt.Sprintf("packages[%d]", i))
		if err != nil {
			return nil, err
		}
		if seen[pkg.Key()] {
			return nil, fmt.Errorf("packages[%d]: duplicate package %s", i, pkg.Key())
		}
		seen[pkg.Key()] = true
		pkgs = append(pkgs, pkg)
	}
	return pkgs, nil
}

func build(n node, at string) (*dependency.Dependency, error) {
	typ, err := dependency.ParseType(n.DependencyType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", at, err)
	}
	typeName := n.TypeName
	if typeName == "" {
		typeName = n.ObjectType
	}

	var opts []dependency.Option
	if n.ParentID != "" || n.ParentType != "" {
		opts = append(opts, dependency.WithParent(n.ParentID, n.ParentType))
	}
	if n.IDMapping {
		opts = append(opts, dependency.SupportsIDMapping())
	}
	if n.IDTypes {
		opts = append(opts, dependency.SupportsIDTypes())
	}
	if n.ParentIDs {
		opts = append(opts, dependency.SupportsParentID())
	}
	if n.UserDependencies || len(n.UserFiles) > 0 {
		opts = append(opts, dependency.SupportsUserDependencies())
	}
	if n.Auto {
		opts = append(opts, dependency.AutoDependency())
	}

	newDep := dependency.NewDeployableObject
	if n.Package {
		newDep = dependency.NewDeployableElement
	}
	d, err := newDep(n.ID, n.ObjectType, typeName, n.Name, typ, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", at, err)
	}
	if n.Association {
		if err := d.SetAssociation(true); err != nil {
			return nil, fmt.Errorf("%s: %w", at, err)
		}
	}
	if n.Included != nil {
		if err := d.SetIncluded(*n.Included); err != nil {
			return nil, fmt.Errorf("%s: %w", at, err)
		}
	}

	children := make([]*dependency.Dependency, 0, len(n.Dependencies))
	for i, c := range n.Dependencies {
		child, err := build(c, fmt.Sprintf("%s.dependencies[%d]", at, i))
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	if err := d.SetDependencies(children); err != nil {
		return nil, fmt.Errorf("%s: %w", at, err)
	}

	if len(n.Ancestors) > 0 {
		ancestors := make([]*dependency.Dependency, 0, len(n.Ancestors))
		for i, a := range n.Ancestors {
			anc, err := build(a, fmt.Sprintf("%s.ancestors[%d]", at, i))
			if err != nil {
				return nil, err
			}
			ancestors = append(ancestors, anc)
		}
		if err := d.SetAncestors(ancestors); err != nil {
			return nil, fmt.Errorf("%s: %w", at, err)
		}
	}

	for _, p := range n.UserFiles {
		if _, err := d.AddUserDependency(p); err != nil {
			return nil, fmt.Errorf("%s: %w", at, err)
		}
	}
	return d, nil
}
