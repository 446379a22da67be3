// Package storage persists cover image files. The database owns cover
// identity (content hash, id); this layer only reads and writes named blobs.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CoverStorage stores cover files under stable names.
type CoverStorage interface {
	Save(name string, data []byte) error
	Open(name string) (io.ReadCloser, error)
	Remove(name string) error
}

// DiskStore saves cover files to disk under a base directory.
type DiskStore struct {
	basePath string
}

// NewDiskStore creates the base directory if missing.
func NewDiskStore(basePath string) (*DiskStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("storage base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &DiskStore{basePath: basePath}, nil
}

// Save writes a cover file. The name is flattened to its base component so
// callers cannot escape the storage directory.
func (d *DiskStore) Save(name string, data []byte) error {
	target := filepath.Join(d.basePath, filepath.Base(name))
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write cover file: %w", err)
	}
	return nil
}

// Open returns a reader for a stored cover file.
func (d *DiskStore) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(d.basePath, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("open cover file: %w", err)
	}
	return f, nil
}

// Remove deletes a stored cover file; a missing file is not an error.
func (d *DiskStore) Remove(name string) error {
	err := os.Remove(filepath.Join(d.basePath, filepath.Base(name)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cover file: %w", err)
	}
	return nil
}

// SafeFilename reduces an uploaded file name to a conservative ASCII form
// usable inside a stored name.
func SafeFilename(name string) string {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		if r <= 0x7f {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
				b.WriteRune(r)
				lastUnderscore = false
				continue
			}
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.Trim(b.String(), "_")
}
