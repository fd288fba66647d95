package storage

import (
	"errors"
	"fmt"
	"golang.org/x/net/context"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidName = errors.New("invalid storage name")

// IStorage persists uploaded files. Save returns where the file ended up:
// a filesystem path for local storage, an object URL for S3.
type IStorage interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

type localStorage struct {
	dir string
}

func NewLocal(dir string) (IStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &localStorage{dir: dir}, nil
}

func (s *localStorage) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	path := filepath.Join(s.dir, name)
	if err := writeFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// writeFile writes bytes via a temp file, then atomically replaces the target.
func writeFile(path string, b []byte, mode os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}
