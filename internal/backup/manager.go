package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultInterval = 6 * time.Hour
	defaultKeepLast = 24

	filePrefix = "onuwatch-"
	fileSuffix = ".duckdb"
)

// Manager takes periodic snapshots of the record store, keeps the newest
// KeepLast locally and optionally uploads each one.
type Manager struct {
	store    DatabaseSnapshotter
	cfg      Config
	uploader SnapshotShipper
	now      func() time.Time
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewManager validates cfg, takes a startup snapshot and starts the loop.
// It returns nil when backups are disabled.
func NewManager(store DatabaseSnapshotter, cfg Config) (*Manager, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if store == nil {
		return nil, fmt.Errorf("backup: nil snapshotter")
	}
	if strings.TrimSpace(store.DBPath()) == "" {
		return nil, fmt.Errorf("backup: db-path is empty (in-memory store)")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if strings.TrimSpace(cfg.LocalDir) == "" {
		return nil, fmt.Errorf("backup: local-dir is required when backup is enabled")
	}
	if cfg.KeepLast <= 0 {
		cfg.KeepLast = defaultKeepLast
	}
	if err := os.MkdirAll(cfg.LocalDir, 0755); err != nil {
		return nil, fmt.Errorf("backup: create local-dir: %w", err)
	}

	var uploader SnapshotShipper
	if cfg.Remote != nil {
		s3u, err := NewS3Uploader(*cfg.Remote)
		if err != nil {
			return nil, fmt.Errorf("backup: init s3 uploader: %w", err)
		}
		uploader = s3u
	}

	m := newManager(store, cfg, uploader)
	if _, err := m.RunOnce(m.ctx); err != nil {
		m.log.Warn("startup snapshot failed", "error", err)
	}
	m.wg.Add(1)
	go m.loop()
	return m, nil
}

func newManager(store DatabaseSnapshotter, cfg Config, uploader SnapshotShipper) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:    store,
		cfg:      cfg,
		uploader: uploader,
		now:      time.Now,
		log:      slog.Default().With("component", "backup"),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (m *Manager) loop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.RunOnce(m.ctx); err != nil {
				m.log.Warn("periodic snapshot failed", "error", err)
			}
		case <-m.done:
			return
		}
	}
}

// RunOnce writes one snapshot, uploads it when a remote is configured and
// prunes old local copies. The returned Snapshot is filled in as far as the
// run got.
func (m *Manager) RunOnce(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{TakenAt: m.now().UTC()}
	snap.Name = filePrefix + snap.TakenAt.Format("20060102-150405.000") + fileSuffix
	snap.Path = filepath.Join(m.cfg.LocalDir, snap.Name)

	if err := m.store.SnapshotTo(snap.Path); err != nil {
		return snap, fmt.Errorf("snapshot: %w", err)
	}
	if fi, err := os.Stat(snap.Path); err == nil {
		snap.Bytes = fi.Size()
	}
	m.log.Info("snapshot created", "path", snap.Path, "bytes", snap.Bytes)

	if m.uploader != nil {
		if err := m.uploader.UploadFile(ctx, snap.Path); err != nil {
			return snap, fmt.Errorf("upload: %w", err)
		}
		snap.Uploaded = true
		m.log.Info("snapshot uploaded", "file", snap.Name)
	}

	if err := pruneLocalBackups(m.cfg.LocalDir, m.cfg.KeepLast); err != nil {
		return snap, fmt.Errorf("prune local backups: %w", err)
	}
	return snap, nil
}

// Stop ends the loop and cancels an in-flight upload. Safe on nil.
func (m *Manager) Stop() {
	if m == nil {
		return
	}
	m.once.Do(func() {
		m.cancel()
		close(m.done)
	})
	m.wg.Wait()
}

func pruneLocalBackups(localDir string, keepLast int) error {
	if keepLast <= 0 {
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(localDir, filePrefix+"*"+fileSuffix))
	if err != nil {
		return err
	}
	if len(matches) <= keepLast {
		return nil
	}

	// Names embed a UTC timestamp, so lexical order is chronological.
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	for _, old := range matches[keepLast:] {
		if err := os.Remove(old); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
