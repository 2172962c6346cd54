package backup

import (
	"context"
	"time"
)

// Config controls periodic snapshots of the clients database.
type Config struct {
	Enabled  bool
	Interval time.Duration // between snapshots; 6h when zero
	LocalDir string
	KeepLast int       // newest local snapshots kept; 24 when zero
	Remote   *S3Config // nil keeps snapshots on the host
}

// Snapshot describes one snapshot file written by RunOnce.
type Snapshot struct {
	Name     string
	Path     string
	Bytes    int64
	TakenAt  time.Time
	Uploaded bool
}

// DatabaseSnapshotter copies the live clients database into a standalone
// file. duckdb.Store implements it.
type DatabaseSnapshotter interface {
	DBPath() string
	SnapshotTo(dstPath string) error
}

// SnapshotShipper copies a finished snapshot off the host.
type SnapshotShipper interface {
	UploadFile(ctx context.Context, localPath string) error
}
