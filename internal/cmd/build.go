package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/flo-mic/pkgdeploy/internal/archive"
	"github.com/flo-mic/pkgdeploy/internal/config"
)

// Build writes the included dependencies of every package to an archive.
func Build(args []string, stdout, stderr io.Writer) error {
	fs, dir, verbose := commonFlags("build", stderr)
	out := fs.String("out", "", "Archive to write (default: .pkgdeploy/build/<name>.tar.gz)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := loadSession(*dir, newLogger(stderr, *verbose))
	if err != nil {
		return err
	}
	path := *out
	if path == "" {
		path = filepath.Join(config.Dir, "build", s.cfg.Name+".tar.gz")
	}
	path = s.cfg.Path(path)

	m, err := archive.WriteFile(path, s.tree, archive.BuildOptions{
		Name:         s.cfg.Name,
		SourceServer: s.cfg.SourceServer,
		FilesRoot:    s.cfg.Path(s.cfg.UserFiles),
	}, stdout)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "[pkgdeploy] Wrote %s (id %s)\n", path, m.ID)
	return nil
}
