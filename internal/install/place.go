package install

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// PlaceFile copies a file from src to dest with the octal mode recorded in
// the manifest (e.g. "0755"); an empty mode means 0644. It creates parent
// directories as needed and applies the mode even when dest already exists.
func PlaceFile(src, dest, modeStr string, log io.Writer) error {
	mode, err := parseMode(modeStr, 0644)
	if err != nil {
		return fmt.Errorf("invalid mode %q: %w", modeStr, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(dest), err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open src %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("open dest %s: %w", dest, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s: %w", dest, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dest, err)
	}
	// OpenFile leaves the mode of an existing file alone and is subject to umask
	if err := os.Chmod(dest, mode); err != nil {
		return fmt.Errorf("chmod %s: %w", dest, err)
	}

	fmt.Fprintf(log, "[pkgdeploy] Placed %s (mode %04o)\n", dest, mode)
	return nil
}

func parseMode(s string, fallback os.FileMode) (os.FileMode, error) {
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, err
	}
	if v > 0777 {
		return 0, fmt.Errorf("mode %s has bits beyond 0777", s)
	}
	return os.FileMode(v), nil
}
