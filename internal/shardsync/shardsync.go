// Package shardsync moves shard database files between the machines that
// evaluate them and a shared blob container, so shards computed on different
// hosts can be collected for merging.
//
// Push uploads a consistent snapshot of an open store, never the live file,
// and tags the blob with the grid fingerprint. Pull downloads into a temporary
// file next to the destination and renames it into place once complete.
package shardsync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/mirofedurco/EB-gridmaker/internal/model"
	"github.com/mirofedurco/EB-gridmaker/internal/store"
)

// Blob metadata keys set by Push.
const (
	MetaFingerprint = "gridfingerprint"
	MetaParameters  = "parameterrows"
)

// Blobs is the blob container a Syncer talks to.
type Blobs interface {
	Upload(ctx context.Context, container, name, path string, metadata map[string]string) (string, error)
	Download(ctx context.Context, container, name, path string) (int64, error)
}

// Syncer pushes and pulls shard files.
type Syncer struct {
	blobs     Blobs
	container string
	log       *zap.Logger
}

// New returns a Syncer bound to one container.
func New(blobs Blobs, container string, log *zap.Logger) (*Syncer, error) {
	if container == "" {
		return nil, model.Configf("storage container is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{blobs: blobs, container: container, log: log}, nil
}

// BlobName is the default blob name for a shard file.
func BlobName(dbPath string) string {
	return filepath.Base(dbPath)
}

// Push snapshots s and uploads the snapshot as blob. It returns the blob URL.
func (y *Syncer) Push(ctx context.Context, s *store.Store, blob string) (string, error) {
	if blob == "" {
		blob = BlobName(s.Path())
	}

	meta, err := s.Meta(ctx)
	if err != nil {
		return "", err
	}
	params, _, err := s.Counts(ctx)
	if err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp("", "gridmaker-push-")
	if err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}
	defer os.RemoveAll(dir)

	snap := filepath.Join(dir, BlobName(s.Path()))
	if err := s.Snapshot(ctx, snap); err != nil {
		return "", err
	}

	url, err := y.blobs.Upload(ctx, y.container, blob, snap, map[string]string{
		MetaFingerprint: meta.Fingerprint,
		MetaParameters:  strconv.FormatInt(params, 10),
	})
	if err != nil {
		return "", err
	}

	y.log.Info("shard pushed",
		zap.String("container", y.container),
		zap.String("blob", blob),
		zap.Int64("parameter_rows", params),
		zap.String("fingerprint", meta.Fingerprint))
	return url, nil
}

// Pull downloads blob to dst. An existing dst is a configuration error.
func (y *Syncer) Pull(ctx context.Context, blob, dst string) (int64, error) {
	if blob == "" {
		return 0, model.Configf("blob name is required")
	}
	if _, err := os.Stat(dst); err == nil {
		return 0, model.Configf("pull destination %s already exists", dst)
	}

	tmp := dst + ".partial"
	_ = os.Remove(tmp)
	n, err := y.blobs.Download(ctx, y.container, blob, tmp)
	if err != nil {
		_ = os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("move %s into place: %w", dst, err)
	}

	y.log.Info("shard pulled",
		zap.String("container", y.container),
		zap.String("blob", blob),
		zap.String("path", dst),
		zap.Int64("bytes", n))
	return n, nil
}
