package indicator

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by stores when the requested file does not exist.
var ErrNotFound = errors.New("indicator file not found")

// Store reads the simulation engine's output files.
type Store interface {
	GetTextFile(ctx context.Context, path, name string) ([]byte, error)
}

// FileStore serves files from <Root>/<path>/<name> on the local disk.
type FileStore struct {
	Root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{Root: strings.TrimSpace(root)}
}

func (s *FileStore) GetTextFile(ctx context.Context, path, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full := filepath.Join(s.Root, filepath.FromSlash(path), name)
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", full, ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}
