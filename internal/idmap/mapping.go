package idmap

import (
	"strings"

	"github.com/flo-mic/pkgdeploy/internal/deployerr"
)

// Mapping translates one source-server object to its target-server
// counterpart. A mapping is unresolved until SetTarget or SetNewObject(true)
// is called.
type Mapping struct {
	sourceID   string
	sourceName string
	objectType string

	parentID   string
	parentName string
	parentType string

	targetID         string
	targetName       string
	targetParentID   string
	targetParentName string

	newObject bool
}

// NewMapping returns an unresolved mapping for an object whose id is unique
// on the source server.
func NewMapping(sourceID, sourceName, objectType string) (*Mapping, error) {
	if err := required("sourceID", sourceID, "sourceName", sourceName, "objectType", objectType); err != nil {
		return nil, err
	}
	return &Mapping{sourceID: sourceID, sourceName: sourceName, objectType: objectType}, nil
}

// NewScopedMapping returns an unresolved mapping for an object whose id is
// only unique within its parent.
func NewScopedMapping(sourceID, sourceName, objectType, parentID, parentName, parentType string) (*Mapping, error) {
	m, err := NewMapping(sourceID, sourceName, objectType)
	if err != nil {
		return nil, err
	}
	if err := required("parentID", parentID, "parentName", parentName, "parentType", parentType); err != nil {
		return nil, err
	}
	m.parentID, m.parentName, m.parentType = parentID, parentName, parentType
	return m, nil
}

func required(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return deployerr.Invalid("%s may not be empty", pairs[i])
		}
	}
	return nil
}

func (m *Mapping) SourceID() string { return m.sourceID }
func (m *Mapping) SourceName() string { return m.sourceName }
func (m *Mapping) ObjectType() string { return m.objectType }
func (m *Mapping) ParentID() string { return m.parentID }
func (m *Mapping) ParentName() string { return m.parentName }
func (m *Mapping) ParentType() string { return m.parentType }
func (m *Mapping) TargetID() string { return m.targetID }
func (m *Mapping) TargetName() string { return m.targetName }
func (m *Mapping) TargetParentID() string { return m.targetParentID }
func (m *Mapping) TargetParentName() string { return m.targetParentName }
func (m *Mapping) IsNewObject() bool { return m.newObject }

// IsScoped reports whether the source id is scoped by a parent.
func (m *Mapping) IsScoped() bool { return m.parentType != "" }

// IsMapped reports whether the mapping is resolved, either to an existing
// target object or as a new object.
func (m *Mapping) IsMapped() bool { return m.newObject || m.targetID != "" }

// SourceKey identifies the source object. It uses the same format as a
// dependency key, so a mapping can be found from a dependency.
func (m *Mapping) SourceKey() string {
	k := m.objectType + "-" + m.sourceID
	if m.parentType != "" {
		k += "-" + m.parentType + "-" + m.parentID
	}
	return k
}

// SetTarget resolves the mapping to an existing target object. The target
// parent must be given exactly when the mapping is scoped.
func (m *Mapping) SetTarget(targetID, targetName, targetParentID, targetParentName string) error {
	if err := required("targetID", targetID, "targetName", targetName); err != nil {
		return err
	}
	hasParent := targetParentID != "" || targetParentName != ""
	if m.IsScoped() {
		if err := required("targetParentID", targetParentID, "targetParentName", targetParentName); err != nil {
			return err
		}
	} else if hasParent {
		return deployerr.Invalid("mapping for %s has no source parent, target parent not allowed", m.SourceKey())
	}
	m.targetID, m.targetName = targetID, targetName
	m.targetParentID, m.targetParentName = targetParentID, targetParentName
	m.newObject = false
	return nil
}

// SetNewObject marks the object as one to be created on the target. A new
// object has no target identity, so the target fields are cleared.
func (m *Mapping) SetNewObject(newObject bool) {
	m.newObject = newObject
	if !newObject {
		return
	}
	m.targetID, m.targetName = "", ""
	if m.IsScoped() {
		m.targetParentID, m.targetParentName = "", ""
	}
}

// matches compares source identity. Parent fields only count when both sides
// carry them.
func (m *Mapping) matches(sourceID, objectType, parentID, parentType string) bool {
	if m.sourceID != sourceID || m.objectType != objectType {
		return false
	}
	if m.parentID != "" && parentID != "" && m.parentID != parentID {
		return false
	}
	if m.parentType != "" && parentType != "" && m.parentType != parentType {
		return false
	}
	return true
}

// Clone returns an independent copy.
func (m *Mapping) Clone() *Mapping {
	c := *m
	return &c
}

// Equal reports whether both mappings hold the same values.
func (m *Mapping) Equal(other *Mapping) bool {
	if m == nil || other == nil {
		return m == other
	}
	return *m == *other
}

// CopyFrom replaces every field of m with other's.
func (m *Mapping) CopyFrom(other *Mapping) {
	*m = *other
}
