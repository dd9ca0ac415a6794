package refdata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FSSource reads reference files from a local directory.
type FSSource struct {
	root string
}

// NewFSSource returns a source rooted at an existing directory.
func NewFSSource(root string) (*FSSource, error) {
	if root == "" {
		return nil, fmt.Errorf("%w: fs root required", ErrInvalidKey)
	}
	st, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("refdata fs root: %w", err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("refdata fs root %s is not a directory", root)
	}
	return &FSSource{root: root}, nil
}

// Driver implements Source.
func (s *FSSource) Driver() Driver { return DriverFilesystem }

// List walks the root and returns regular files whose key starts with prefix.
func (s *FSSource) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("refdata fs list: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Open opens the file for key.
func (s *FSSource) Open(_ context.Context, key string) (io.ReadCloser, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.root, filepath.FromSlash(k)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("refdata fs open: %w", err)
	}
	return f, nil
}
