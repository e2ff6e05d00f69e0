// Package install applies a package archive to a target server: it resolves
// every target id through an id map and places the user dependency files.
package install

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/flo-mic/pkgdeploy/internal/archive"
	"github.com/flo-mic/pkgdeploy/internal/deployerr"
	"github.com/flo-mic/pkgdeploy/internal/idmap"
)

// Action is what the installer does with one archive entry.
type Action string

const (
	// ActionCreate creates a new object on the target.
	ActionCreate Action = "create"
	// ActionUpdate updates the mapped target object.
	ActionUpdate Action = "update"
	// ActionInstall installs an object that keeps its source id.
	ActionInstall Action = "install"
	// ActionPlaceFile copies a user dependency file below the target root.
	ActionPlaceFile Action = "place-file"
)

// Step is one planned installation step.
type Step struct {
	Entry    archive.Entry
	Action   Action
	TargetID string
}

func (s Step) String() string {
	switch s.Action {
	case ActionUpdate:
		return fmt.Sprintf("%s %s -> %s", s.Action, s.Entry.Key, s.TargetID)
	case ActionPlaceFile:
		return fmt.Sprintf("%s %s", s.Action, s.Entry.File.Path)
	default:
		return fmt.Sprintf("%s %s", s.Action, s.Entry.Key)
	}
}

// Plan resolves a step for every manifest entry. Mapping problems are
// collected so they can be fixed in one pass; the returned error joins one
// *deployerr.Error per offending entry. File entries that would leave the
// archive's files/ directory or the target root are ErrInvalidArgument.
func Plan(m *archive.Manifest, ids *idmap.IDMap) ([]Step, error) {
	if m.SourceServer != ids.SourceServer() {
		return nil, fmt.Errorf("archive is from %s but the id map is for %s", m.SourceServer, ids.SourceServer())
	}

	steps := make([]Step, 0, len(m.Entries))
	var errs []error
	for _, e := range m.Entries {
		step := Step{Entry: e, Action: ActionInstall, TargetID: e.ID}
		switch {
		case e.File != nil:
			if err := checkFile(e.File); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", e.Key, err))
				continue
			}
			step.Action = ActionPlaceFile
			step.TargetID = ""
		case e.IDMapping:
			mp := ids.GetMappingWithParent(e.ID, e.ObjectType, e.ParentID, e.ParentType)
			if mp != nil && mp.IsNewObject() {
				step.Action = ActionCreate
				step.TargetID = ""
				break
			}
			id, err := ids.GetNewIDWithParent(e.ID, e.ObjectType, e.ParentID, e.ParentType)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			step.Action = ActionUpdate
			step.TargetID = id
		}
		steps = append(steps, step)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return steps, nil
}

// checkFile validates a file entry read from an untrusted manifest. The path
// must already be clean and local, and the archive path must be the file
// path below FilesPrefix.
func checkFile(f *archive.FileEntry) error {
	if f.Path == "" || path.Clean(f.Path) != f.Path || !filepath.IsLocal(filepath.FromSlash(f.Path)) {
		return deployerr.Invalid("file path %q must be relative and stay within the target root", f.Path)
	}
	if f.ArchivePath != archive.FilesPrefix+f.Path {
		return deployerr.Invalid("archive path %q does not match file path %q", f.ArchivePath, f.Path)
	}
	if _, err := parseMode(f.Mode, 0644); err != nil {
		return deployerr.Invalid("file %s has invalid mode %q", f.Path, f.Mode)
	}
	return nil
}

// PlanFile reads the manifest of the archive at path and plans it.
func PlanFile(path string, ids *idmap.IDMap) ([]Step, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := archive.ReadManifest(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Plan(m, ids)
}
