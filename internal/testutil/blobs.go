package testutil

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// DirBlobs is an in-process blob container that keeps blobs as files under
// Root/container/name. Setting Fail makes every call return it.
type DirBlobs struct {
	Root string
	Fail error

	mu       sync.Mutex
	metadata map[string]map[string]string
}

// NewDirBlobs returns a DirBlobs rooted at dir.
func NewDirBlobs(dir string) *DirBlobs {
	return &DirBlobs{Root: dir, metadata: make(map[string]map[string]string)}
}

// Upload copies the file at path into the container.
func (d *DirBlobs) Upload(_ context.Context, container, name, path string, metadata map[string]string) (string, error) {
	if d.Fail != nil {
		return "", d.Fail
	}
	dst := filepath.Join(d.Root, container, name)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	if _, err := copyFile(path, dst); err != nil {
		return "", err
	}
	d.mu.Lock()
	d.metadata[container+"/"+name] = metadata
	d.mu.Unlock()
	return "file://" + dst, nil
}

// Download copies a stored blob to path.
func (d *DirBlobs) Download(_ context.Context, container, name, path string) (int64, error) {
	if d.Fail != nil {
		return 0, d.Fail
	}
	return copyFile(filepath.Join(d.Root, container, name), path)
}

// Metadata returns the metadata uploaded with container/name.
func (d *DirBlobs) Metadata(container, name string) map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.metadata[container+"/"+name]
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}
