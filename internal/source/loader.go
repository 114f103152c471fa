package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrOutsideRoot = errors.New("path escapes source root")

// Loader resolves a file name from a task to its content.
type Loader interface {
	Load(ctx context.Context, name string) (string, error)
}

// FileLoader reads files from the local filesystem. Relative names are
// resolved against Root; with an empty Root they are resolved against the
// working directory. When Root is set, names may not escape it.
type FileLoader struct {
	Root string
}

func NewFileLoader(root string) *FileLoader {
	return &FileLoader{Root: root}
}

func (l *FileLoader) Load(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := l.Resolve(name)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", name, err)
	}
	return string(data), nil
}

// Resolve maps name to a filesystem path under Root.
func (l *FileLoader) Resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("empty file name")
	}
	if l.Root == "" {
		return filepath.Clean(name), nil
	}

	root, err := filepath.Abs(l.Root)
	if err != nil {
		return "", fmt.Errorf("resolving root %s: %w", l.Root, err)
	}

	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", name, ErrOutsideRoot)
	}
	return path, nil
}
