package install

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// backup holds the previous versions of files an install overwrites, so a
// failed install can be undone.
type backup struct {
	dir  string
	root string
}

// backupFiles saves the current versions of rels (relative to root) into dir.
// Files that do not exist yet are recorded and deleted on restore.
func backupFiles(dir, root string, rels []string) (*backup, error) {
	filesDir := filepath.Join(dir, "files")
	if err := os.MkdirAll(filesDir, 0755); err != nil {
		return nil, err
	}

	var newFiles []string
	for _, rel := range rels {
		dest := filepath.Join(root, rel)
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			newFiles = append(newFiles, rel)
			continue
		}
		backupPath := filepath.Join(filesDir, rel)
		if err := os.MkdirAll(filepath.Dir(backupPath), 0755); err != nil {
			return nil, fmt.Errorf("backup mkdir: %w", err)
		}
		if err := copyFile(dest, backupPath); err != nil {
			return nil, fmt.Errorf("backup %s: %w", dest, err)
		}
	}

	// Persist list of new files (to delete on restore)
	data, err := json.Marshal(newFiles)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dir, "new-files.json"), data, 0644); err != nil {
		return nil, err
	}
	return &backup{dir: dir, root: root}, nil
}

// restore puts the backed-up files back and deletes files that were new.
func (b *backup) restore(log io.Writer) error {
	filesDir := filepath.Join(b.dir, "files")
	err := filepath.Walk(filesDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(filesDir, path)
		if err != nil {
			return err
		}
		dest := filepath.Join(b.root, rel)
		fmt.Fprintf(log, "[pkgdeploy] restore: %s\n", dest)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			return err
		}
		return copyFile(path, dest)
	})
	if err != nil {
		return fmt.Errorf("restoring files: %w", err)
	}

	raw, err := os.ReadFile(filepath.Join(b.dir, "new-files.json"))
	if err != nil {
		return fmt.Errorf("reading new file list: %w", err)
	}
	var newFiles []string
	if err := json.Unmarshal(raw, &newFiles); err != nil {
		return fmt.Errorf("parsing new file list: %w", err)
	}
	for _, rel := range newFiles {
		dest := filepath.Join(b.root, rel)
		fmt.Fprintf(log, "[pkgdeploy] restore: removing new file %s\n", dest)
		if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
