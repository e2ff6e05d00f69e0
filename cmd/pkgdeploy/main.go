package main

import (
	"fmt"
	"io"
	"os"

	"github.com/flo-mic/pkgdeploy/internal/cmd"
)

var commands = map[string]func(args []string, stdout, stderr io.Writer) error{
	"init":    cmd.Init,
	"plan":    cmd.Plan,
	"remove":  cmd.Remove,
	"map":     cmd.Map,
	"build":   cmd.Build,
	"install": cmd.Install,
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	run, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err := run(os.Args[2:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: pkgdeploy <command> [--dir DIR] [--verbose]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  init [--reinit]                    Initialize (or reinitialize) .pkgdeploy/ configuration")
	fmt.Fprintln(os.Stderr, "  plan                               Show the packages and what they include")
	fmt.Fprintln(os.Stderr, "  remove --package KEY [--yes] [--keep-local]")
	fmt.Fprintln(os.Stderr, "                                     Remove a package from the session")
	fmt.Fprintln(os.Stderr, "  map [--all] [--check]              Map object ids to the target server")
	fmt.Fprintln(os.Stderr, "  build [--out FILE]                 Write the package archive")
	fmt.Fprintln(os.Stderr, "  install --archive FILE --target DIR [--dry-run]")
	fmt.Fprintln(os.Stderr, "                                     Install an archive using the saved id map")
}
