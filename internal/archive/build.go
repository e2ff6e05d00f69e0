package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/flo-mic/pkgdeploy/internal/dependency"
	"github.com/flo-mic/pkgdeploy/internal/depctx"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// BuildOptions names the archive and locates user dependency files.
type BuildOptions struct {
	Name         string
	SourceServer string
	// FilesRoot is the directory user dependency paths are relative to.
	FilesRoot string
}

// Build writes an archive of everything the session's included packages
// include to w. Each dependency key is written once, attributed to the first
// package that includes it.
func Build(w io.Writer, tree *depctx.TreeContext, opts BuildOptions, log io.Writer) (*Manifest, error) {
	if opts.Name == "" || opts.SourceServer == "" {
		return nil, fmt.Errorf("archive name and source server are required")
	}

	m := &Manifest{ID: uuid.NewString(), Name: opts.Name, SourceServer: opts.SourceServer}
	type userFile struct {
		src, archivePath string
		mode             os.FileMode
	}
	var files []userFile
	seen := make(map[string]bool)

	for _, pkg := range tree.Packages() {
		if !pkg.IsIncluded() {
			fmt.Fprintf(log, "[pkgdeploy] Skipping excluded package %s\n", pkg.DisplayIdentifier())
			continue
		}
		m.Packages = append(m.Packages, pkg.Key())
		for _, dep := range tree.IncludedDependencies(pkg) {
			if seen[dep.Key()] {
				continue
			}
			seen[dep.Key()] = true
			e := newEntry(dep, pkg)
			if dep.IsUserDependency() {
				src := filepath.Join(opts.FilesRoot, filepath.FromSlash(dep.Path()))
				hash, err := HashFile(src)
				if err != nil {
					return nil, fmt.Errorf("hashing user file %s: %w", src, err)
				}
				info, err := os.Stat(src)
				if err != nil {
					return nil, err
				}
				mode := info.Mode().Perm()
				e.File = &FileEntry{
					Path:        dep.Path(),
					ArchivePath: FilesPrefix + dep.Path(),
					Hash:        hash,
					Mode:        fmt.Sprintf("%04o", mode),
				}
				if !seen[e.File.ArchivePath] {
					seen[e.File.ArchivePath] = true
					files = append(files, userFile{src: src, archivePath: e.File.ArchivePath, mode: mode})
				}
			}
			m.Entries = append(m.Entries, e)
		}
	}
	if len(m.Entries) == 0 {
		return nil, fmt.Errorf("nothing to archive: no package is included")
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}

	tw, gw := NewWriter(w)
	if err := addBytes(tw, manifestName, data, 0644); err != nil {
		return nil, fmt.Errorf("adding manifest: %w", err)
	}
	for _, f := range files {
		if err := AddFile(tw, f.src, f.archivePath, int64(f.mode)); err != nil {
			return nil, fmt.Errorf("adding %s: %w", f.src, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}

	fmt.Fprintf(log, "[pkgdeploy] Archived %d dependencies (%d files) from %s\n", len(m.Entries), len(files), strings.Join(m.Packages, ", "))
	return m, nil
}

func newEntry(dep, pkg *dependency.Dependency) Entry {
	return Entry{
		Key:            dep.Key(),
		ID:             dep.DependencyID(),
		ObjectType:     dep.ObjectType(),
		Name:           dep.DisplayName(),
		ParentID:       dep.ParentID(),
		ParentType:     dep.ParentType(),
		DependencyType: dep.DependencyType().String(),
		IDMapping:      dep.SupportsIDMapping(),
		Package:        pkg.Key(),
	}
}

// WriteFile builds the archive into path.
func WriteFile(path string, tree *depctx.TreeContext, opts BuildOptions, log io.Writer) (*Manifest, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	m, err := Build(f, tree, opts, log)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return m, nil
}
