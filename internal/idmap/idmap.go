// Package idmap translates object ids from a source server to a target
// server. An IDMap is filled by the mapping editor before installation and
// consulted by the installer for every dependency that supports id mapping.
package idmap

import (
	"strconv"

	"github.com/flo-mic/pkgdeploy/internal/dependency"
	"github.com/flo-mic/pkgdeploy/internal/deployerr"
)

// IDMap holds the mappings from one source server to one target server, in
// the order they were added.
type IDMap struct {
	source   string
	target   string
	mappings []*Mapping
}

// NewIDMap returns an empty map.
func NewIDMap(sourceServer, targetServer string) (*IDMap, error) {
	if err := required("sourceServer", sourceServer, "targetServer", targetServer); err != nil {
		return nil, err
	}
	return &IDMap{source: sourceServer, target: targetServer}, nil
}

// SourceServer returns the server the source ids belong to.
func (m *IDMap) SourceServer() string { return m.source }

// TargetServer returns the server the target ids belong to.
func (m *IDMap) TargetServer() string { return m.target }

// Mappings returns all mappings in order.
func (m *IDMap) Mappings() []*Mapping {
	return append([]*Mapping(nil), m.mappings...)
}

// Unmapped returns the mappings that are not resolved yet.
func (m *IDMap) Unmapped() []*Mapping {
	var out []*Mapping
	for _, mp := range m.mappings {
		if !mp.IsMapped() {
			out = append(out, mp)
		}
	}
	return out
}

// AddMapping adds mp, replacing a mapping with the same source key in place.
func (m *IDMap) AddMapping(mp *Mapping) error {
	if mp == nil {
		return deployerr.Invalid("mapping may not be nil")
	}
	key := mp.SourceKey()
	for i, existing := range m.mappings {
		if existing.SourceKey() == key {
			m.mappings[i] = mp
			return nil
		}
	}
	m.mappings = append(m.mappings, mp)
	return nil
}

// RemoveMapping removes the mapping with mp's source key. It reports whether
// one was found.
func (m *IDMap) RemoveMapping(mp *Mapping) bool {
	if mp == nil {
		return false
	}
	key := mp.SourceKey()
	for i, existing := range m.mappings {
		if existing.SourceKey() == key {
			m.mappings = append(m.mappings[:i:i], m.mappings[i+1:]...)
			return true
		}
	}
	return false
}

// GetMapping returns the first mapping for an unscoped source id, or nil.
func (m *IDMap) GetMapping(sourceID, objectType string) *Mapping {
	return m.GetMappingWithParent(sourceID, objectType, "", "")
}

// GetMappingWithParent returns the first mapping matching the source
// identity, or nil. Parent fields are only compared when set on both sides.
func (m *IDMap) GetMappingWithParent(sourceID, objectType, parentID, parentType string) *Mapping {
	for _, mp := range m.mappings {
		if mp.matches(sourceID, objectType, parentID, parentType) {
			return mp
		}
	}
	return nil
}

// MappingFor returns the mapping for dep, or nil.
func (m *IDMap) MappingFor(dep *dependency.Dependency) *Mapping {
	if dep == nil {
		return nil
	}
	return m.GetMappingWithParent(dep.DependencyID(), dep.ObjectType(), dep.ParentID(), dep.ParentType())
}

// GetNewID returns the target id for an unscoped source id.
func (m *IDMap) GetNewID(sourceID, objectType string) (string, error) {
	return m.GetNewIDWithParent(sourceID, objectType, "", "")
}

// GetNewIDWithParent returns the target id for a source id. It fails with a
// KindMissingMapping error if no mapping exists and with KindIncompleteMapping
// if the mapping has no target id. A new object has no target id either.
func (m *IDMap) GetNewIDWithParent(sourceID, objectType, parentID, parentType string) (string, error) {
	if err := required("sourceID", sourceID, "objectType", objectType); err != nil {
		return "", err
	}
	mp := m.GetMappingWithParent(sourceID, objectType, parentID, parentType)
	if mp == nil {
		return "", m.dataError(deployerr.KindMissingMapping, "idmap.GetNewID", objectType, sourceID, nil)
	}
	if mp.targetID == "" {
		return "", m.dataError(deployerr.KindIncompleteMapping, "idmap.GetNewID", objectType, sourceID, nil)
	}
	return mp.targetID, nil
}

// GetNewIDInt is GetNewID for servers with numeric ids.
func (m *IDMap) GetNewIDInt(sourceID, objectType string) (int, error) {
	return m.GetNewIDIntWithParent(sourceID, objectType, "", "")
}

// GetNewIDIntWithParent is GetNewIDWithParent for servers with numeric ids.
// A target id that is not a number is a KindInvalidTarget error.
func (m *IDMap) GetNewIDIntWithParent(sourceID, objectType, parentID, parentType string) (int, error) {
	id, err := m.GetNewIDWithParent(sourceID, objectType, parentID, parentType)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(id)
	if err != nil {
		return 0, m.dataError(deployerr.KindInvalidTarget, "idmap.GetNewIDInt", objectType, sourceID, err)
	}
	return n, nil
}

// NewIDFor resolves dep's target id. isNew is true for a dependency mapped as
// a new object, in which case id is empty.
func (m *IDMap) NewIDFor(dep *dependency.Dependency) (id string, isNew bool, err error) {
	if dep == nil {
		return "", false, deployerr.Invalid("dependency may not be nil")
	}
	if !dep.SupportsIDMapping() {
		return "", false, deployerr.Invalid("%s does not support id mapping", dep.Key())
	}
	if mp := m.MappingFor(dep); mp != nil && mp.newObject {
		return "", true, nil
	}
	id, err = m.GetNewIDWithParent(dep.DependencyID(), dep.ObjectType(), dep.ParentID(), dep.ParentType())
	return id, false, err
}

// Clone returns a deep copy.
func (m *IDMap) Clone() *IDMap {
	c := &IDMap{source: m.source, target: m.target, mappings: make([]*Mapping, len(m.mappings))}
	for i, mp := range m.mappings {
		c.mappings[i] = mp.Clone()
	}
	return c
}

func (m *IDMap) dataError(k deployerr.Kind, op, objectType, id string, err error) error {
	return &deployerr.Error{Kind: k, Op: op, ObjectType: objectType, ID: id, Server: m.source, Err: err}
}
