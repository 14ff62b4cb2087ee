// internal/app/system/filestore/filestore.go
package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dalemusser/waffle/pantry/storage"
)

// Local stores objects on the local filesystem and serves them under a
// URL prefix. It exposes the same Put/Delete/URL surface as waffle's
// pantry/storage Store, so an S3 backed store drops in without touching
// callers.
type Local struct {
	dir       string
	urlPrefix string
}

// NewLocal returns a store rooted at dir. Stored objects resolve to
// urlPrefix + "/" + path.
func NewLocal(dir, urlPrefix string) *Local {
	return &Local{dir: dir, urlPrefix: strings.TrimRight(urlPrefix, "/")}
}

// Put writes the object, creating parent directories as needed.
func (l *Local) Put(ctx context.Context, path string, r io.Reader, opts *storage.PutOptions) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create storage dir: %w", err)
	}
	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write object: %w", err)
	}
	return f.Close()
}

// Delete removes the object. Deleting a missing object is not an
// error.
func (l *Local) Delete(ctx context.Context, path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// URL returns the serving URL for a stored object.
func (l *Local) URL(path string) string {
	return l.urlPrefix + "/" + strings.TrimLeft(path, "/")
}

// resolve maps an object path to a file under the root, refusing paths
// that would escape it.
func (l *Local) resolve(p string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(p))
	if clean == "/" {
		return "", fmt.Errorf("empty object path %q", p)
	}
	return filepath.Join(l.dir, clean), nil
}
