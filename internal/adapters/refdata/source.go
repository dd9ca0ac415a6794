// Package refdata reads WHO LMS reference files from a filesystem directory,
// an S3 bucket or memory, parses them and builds a reference catalog.
package refdata

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// Driver identifies a Source implementation.
type Driver string

// Supported drivers.
const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

// Source lists and opens reference objects by slash-separated key.
type Source interface {
	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Open returns the object content. Missing keys wrap ErrNotFound.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Driver() Driver
}

// Config selects and configures a Source.
type Config struct {
	Driver Driver
	Root   string
	S3     S3Config
}

// Open selects a Source implementation from cfg.
func Open(ctx context.Context, cfg Config) (Source, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFSSource(cfg.Root)
	case DriverS3:
		return NewS3Source(ctx, cfg.S3)
	case DriverMemory:
		return NewMemorySource(nil), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
}

// cleanKey rejects keys that could escape the source root.
func cleanKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return path.Clean(key), nil
}
