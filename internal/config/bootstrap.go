package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// EnsureUserConfig makes sure userPath exists. It copies defaultPath when
// that file exists and otherwise writes the built-in defaults.
func EnsureUserConfig(userPath, defaultPath string) (created bool, err error) {
	_, err = os.Stat(userPath)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(userPath), 0o755); err != nil {
		return false, err
	}

	src, err := os.Open(defaultPath)
	if errors.Is(err, os.ErrNotExist) {
		return true, SaveAtomic(userPath, Default())
	}
	if err != nil {
		return false, err
	}
	defer src.Close()

	dst, err := os.OpenFile(userPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return false, err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return false, err
	}
	return true, nil
}
