package cmd

import (
	"fmt"
	"io"

	"github.com/flo-mic/pkgdeploy/internal/config"
	"github.com/flo-mic/pkgdeploy/internal/install"
	"github.com/flo-mic/pkgdeploy/internal/store"
)

// Install applies an archive to the target using the session's id map.
// The catalog is not needed, so only the config is loaded.
func Install(args []string, stdout, stderr io.Writer) error {
	fs, dir, _ := commonFlags("install", stderr)
	archivePath := fs.String("archive", "", "Archive built by 'pkgdeploy build' (required)")
	target := fs.String("target", "", "Directory receiving user files (required)")
	dryRun := fs.Bool("dry-run", false, "Print the install steps without applying them")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *archivePath == "" || (*target == "" && !*dryRun) {
		return fmt.Errorf("--archive and --target are required\nUsage: pkgdeploy install --archive <file> --target <dir> [--dry-run]")
	}

	cfg, err := config.LoadSessionConfig(*dir)
	if err != nil {
		return err
	}
	ids, err := store.New(cfg.Path(cfg.IDMapDir)).LoadIDMap(cfg.SourceServer, cfg.TargetServer)
	if err != nil {
		return err
	}

	if *dryRun {
		steps, err := install.PlanFile(*archivePath, ids)
		if err != nil {
			return err
		}
		for _, st := range steps {
			fmt.Fprintf(stdout, "  %s\n", st)
		}
		return nil
	}

	steps, err := install.Run(*archivePath, ids, install.Options{
		TargetRoot:  *target,
		PreInstall:  cfg.Hooks.PreInstall,
		PostInstall: cfg.Hooks.PostInstall,
	}, stdout)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "[pkgdeploy] Installed %d steps to %s\n", len(steps), cfg.TargetServer)
	return nil
}
