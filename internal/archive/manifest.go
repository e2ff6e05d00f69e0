// Package archive writes and reads package archives: a gzip-compressed tar
// holding manifest.yaml and the user dependency files under files/.
package archive

import (
	"archive/tar"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"gopkg.in/yaml.v3"
)

const (
	manifestName = "manifest.yaml"
	// FilesPrefix is the archive directory holding user dependency files.
	FilesPrefix = "files/"
)

// Manifest describes the contents of an archive.
type Manifest struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	SourceServer string   `yaml:"source_server"`
	Packages     []string `yaml:"packages"`
	Entries      []Entry  `yaml:"entries"`
}

// Entry is one included dependency.
type Entry struct {
	Key            string `yaml:"key"`
	ID             string `yaml:"id"`
	ObjectType     string `yaml:"object_type"`
	Name           string `yaml:"name"`
	ParentID       string `yaml:"parent_id,omitempty"`
	ParentType     string `yaml:"parent_type,omitempty"`
	DependencyType string `yaml:"dependency_type"`
	IDMapping      bool   `yaml:"id_mapping,omitempty"`
	Package        string `yaml:"package"`

	// File is set for user dependencies.
	File *FileEntry `yaml:"file,omitempty"`
}

// FileEntry locates a user dependency file inside the archive.
type FileEntry struct {
	Path        string `yaml:"path"`
	ArchivePath string `yaml:"archive_path"`
	Hash        string `yaml:"hash"`
	// Mode is the octal permission of the source file, e.g. "0755".
	Mode string `yaml:"mode,omitempty"`
}

// ReadManifest returns the manifest of the archive read from r.
func ReadManifest(r io.Reader) (*Manifest, error) {
	gr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("archive has no %s", manifestName)
		}
		if err != nil {
			return nil, fmt.Errorf("tar: %w", err)
		}
		if hdr.Name != manifestName {
			continue
		}
		var m Manifest
		if err := yaml.NewDecoder(tr).Decode(&m); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", manifestName, err)
		}
		if m.ID == "" || m.SourceServer == "" {
			return nil, fmt.Errorf("%s: 'id' and 'source_server' are required", manifestName)
		}
		return &m, nil
	}
}
