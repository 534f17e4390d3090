package compose

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wudi/pdfoverlay/observability"
)

// copyFile writes a byte-for-byte copy of src to dst. A partial dst is
// removed on failure.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
		}
	}()
	if _, err = io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	return out.Sync()
}

// moveFile renames src to dst and falls back to copying across devices.
// copied reports that src still exists.
func moveFile(src, dst string) (copied bool, err error) {
	if err := os.Rename(src, dst); err == nil {
		return false, nil
	}
	if err := copyFile(src, dst); err != nil {
		return false, err
	}
	return true, nil
}

// removeAll deletes every path best-effort; missing paths are fine.
func removeAll(paths []string, log observability.Logger) error {
	var errs []error
	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			log.Warn("remove temp file", observability.String("path", p), observability.Error("error", err))
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTempFile, errors.Join(errs...))
}

func samePath(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	if err1 != nil || err2 != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	if aa == bb {
		return true
	}
	sa, err1 := os.Stat(aa)
	sb, err2 := os.Stat(bb)
	return err1 == nil && err2 == nil && os.SameFile(sa, sb)
}
