package provisioner

import (
	"fmt"
	"os"

	"github.com/ruteri/mtls-credential-provisioner/cryptoutils"
)

// teardownMaterial releases everything a staging step created. It is
// best-effort: every cleanup action is attempted regardless of earlier
// failures, deletion in particular is attempted even when the
// zero-overwrite failed, and all problems are collected for the caller to
// surface.
func teardownMaterial(m *StagedMaterial) []error {
	var errs []error

	if m.Backing == BackingTransientFile {
		for _, path := range []string{m.KeyPath, m.CertPath} {
			if path == "" {
				continue
			}
			if err := zeroOverwrite(path); err != nil && !os.IsNotExist(err) {
				errs = append(errs, fmt.Errorf("zero-overwrite %s: %w", path, err))
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
			}
		}
		if m.dir != "" {
			if err := os.Remove(m.dir); err != nil && !os.IsNotExist(err) {
				errs = append(errs, fmt.Errorf("remove staging dir %s: %w", m.dir, err))
			}
		}
	}

	cryptoutils.Zeroize(m.KeyBytes)

	return errs
}

// zeroOverwrite replaces the full byte range of the file at path with zero
// bytes and flushes the result to stable storage.
func zeroOverwrite(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}

	zeros := make([]byte, info.Size())
	if _, err := f.WriteAt(zeros, 0); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
