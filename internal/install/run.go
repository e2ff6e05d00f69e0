package install

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/flo-mic/pkgdeploy/internal/archive"
	"github.com/flo-mic/pkgdeploy/internal/idmap"
)

// Options configure Run.
type Options struct {
	// TargetRoot receives the user dependency files.
	TargetRoot string

	// PreInstall and PostInstall are shell commands run in TargetRoot.
	PreInstall  string
	PostInstall string
}

// Run installs the archive at archivePath. Nothing is written unless every
// entry resolves; if placing files or the post-install hook fails, the
// previous versions of the placed files are restored.
func Run(archivePath string, ids *idmap.IDMap, opts Options, log io.Writer) ([]Step, error) {
	if opts.TargetRoot == "" {
		return nil, fmt.Errorf("target root is required")
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := archive.ReadManifest(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", archivePath, err)
	}
	steps, err := Plan(m, ids)
	if err != nil {
		return nil, fmt.Errorf("planning install of %s: %w", m.Name, err)
	}
	fmt.Fprintf(log, "[pkgdeploy] Installing %s (%d steps) from %s to %s\n", m.Name, len(steps), ids.SourceServer(), ids.TargetServer())

	work, err := os.MkdirTemp("", "pkgdeploy-install-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(work)

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	extracted := filepath.Join(work, "archive")
	if err := archive.Extract(f, extracted, archive.FilesPrefix); err != nil {
		return nil, fmt.Errorf("extracting %s: %w", archivePath, err)
	}

	var rels []string
	for _, s := range steps {
		if s.Action != ActionPlaceFile {
			continue
		}
		src := filepath.Join(extracted, filepath.FromSlash(s.Entry.File.ArchivePath))
		if err := archive.VerifyFile(src, s.Entry.File.Hash); err != nil {
			return nil, err
		}
		rels = append(rels, filepath.FromSlash(s.Entry.File.Path))
	}

	if opts.PreInstall != "" {
		if err := runHook(opts.PreInstall, opts.TargetRoot, log); err != nil {
			return nil, fmt.Errorf("pre-install hook: %w", err)
		}
	}

	b, err := backupFiles(filepath.Join(work, "backup"), opts.TargetRoot, rels)
	if err != nil {
		return nil, err
	}
	fail := func(err error) ([]Step, error) {
		if rerr := b.restore(log); rerr != nil {
			fmt.Fprintf(log, "[pkgdeploy] restore failed: %v\n", rerr)
		}
		return nil, err
	}

	for _, s := range steps {
		if s.Action == ActionPlaceFile {
			src := filepath.Join(extracted, filepath.FromSlash(s.Entry.File.ArchivePath))
			dest := filepath.Join(opts.TargetRoot, filepath.FromSlash(s.Entry.File.Path))
			if err := PlaceFile(src, dest, s.Entry.File.Mode, log); err != nil {
				return fail(err)
			}
			continue
		}
		fmt.Fprintf(log, "[pkgdeploy] %s\n", s)
	}

	if opts.PostInstall != "" {
		if err := runHook(opts.PostInstall, opts.TargetRoot, log); err != nil {
			return fail(fmt.Errorf("post-install hook: %w", err))
		}
	}

	fmt.Fprintf(log, "[pkgdeploy] Installed %s\n", m.Name)
	return steps, nil
}
