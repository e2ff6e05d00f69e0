// Package store persists id maps between sessions, one YAML file per
// source and target server pair.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flo-mic/pkgdeploy/internal/idmap"
	"gopkg.in/yaml.v3"
)

// Store reads and writes id maps below a directory.
type Store struct {
	dir string
}

// New returns a store rooted at dir. The directory is created on first save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

type idMapFile struct {
	SourceServer string        `yaml:"source_server"`
	TargetServer string        `yaml:"target_server"`
	Mappings     []mappingFile `yaml:"mappings"`
}

type mappingFile struct {
	SourceID   string `yaml:"source_id"`
	SourceName string `yaml:"source_name"`
	ObjectType string `yaml:"object_type"`
	ParentID   string `yaml:"parent_id,omitempty"`
	ParentName string `yaml:"parent_name,omitempty"`
	ParentType string `yaml:"parent_type,omitempty"`

	TargetID         string `yaml:"target_id,omitempty"`
	TargetName       string `yaml:"target_name,omitempty"`
	TargetParentID   string `yaml:"target_parent_id,omitempty"`
	TargetParentName string `yaml:"target_parent_name,omitempty"`

	NewObject bool `yaml:"new_object,omitempty"`
}

// Path returns the file holding the map from source to target.
func (s *Store) Path(source, target string) string {
	return filepath.Join(s.dir, sanitize(source)+"__"+sanitize(target)+".yaml")
}

// sanitize keeps server names usable as file names, e.g. "cms-dev:9992" → "cms-dev_9992".
func sanitize(server string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		}
		return '_'
	}, server)
}

// LoadIDMap reads the map from source to target.
// Returns an empty map if none was saved yet.
func (s *Store) LoadIDMap(source, target string) (*idmap.IDMap, error) {
	m, err := idmap.NewIDMap(source, target)
	if err != nil {
		return nil, err
	}
	path := s.Path(source, target)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading id map: %w", err)
	}

	var f idMapFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if f.SourceServer != source || f.TargetServer != target {
		return nil, fmt.Errorf("%s: holds %s -> %s, want %s -> %s", path, f.SourceServer, f.TargetServer, source, target)
	}
	for i, mf := range f.Mappings {
		mp, err := mf.toMapping()
		if err != nil {
			return nil, fmt.Errorf("%s: mappings[%d]: %w", path, i, err)
		}
		if err := m.AddMapping(mp); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SaveIDMap writes m, replacing any previous version.
func (s *Store) SaveIDMap(m *idmap.IDMap) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	f := idMapFile{SourceServer: m.SourceServer(), TargetServer: m.TargetServer()}
	for _, mp := range m.Mappings() {
		f.Mappings = append(f.Mappings, fromMapping(mp))
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path(m.SourceServer(), m.TargetServer()), data, 0644)
}

func (mf mappingFile) toMapping() (*idmap.Mapping, error) {
	var (
		mp  *idmap.Mapping
		err error
	)
	if mf.ParentType != "" || mf.ParentID != "" {
		mp, err = idmap.NewScopedMapping(mf.SourceID, mf.SourceName, mf.ObjectType, mf.ParentID, mf.ParentName, mf.ParentType)
	} else {
		mp, err = idmap.NewMapping(mf.SourceID, mf.SourceName, mf.ObjectType)
	}
	if err != nil {
		return nil, err
	}
	switch {
	case mf.NewObject:
		mp.SetNewObject(true)
	case mf.TargetID != "":
		if err := mp.SetTarget(mf.TargetID, mf.TargetName, mf.TargetParentID, mf.TargetParentName); err != nil {
			return nil, err
		}
	}
	return mp, nil
}

func fromMapping(mp *idmap.Mapping) mappingFile {
	return mappingFile{
		SourceID:         mp.SourceID(),
		SourceName:       mp.SourceName(),
		ObjectType:       mp.ObjectType(),
		ParentID:         mp.ParentID(),
		ParentName:       mp.ParentName(),
		ParentType:       mp.ParentType(),
		TargetID:         mp.TargetID(),
		TargetName:       mp.TargetName(),
		TargetParentID:   mp.TargetParentID(),
		TargetParentName: mp.TargetParentName(),
		NewObject:        mp.IsNewObject(),
	}
}
