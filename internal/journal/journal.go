// Package journal keeps accepted uploads durable until their ingestion job
// reaches a terminal state, so queued work survives a restart.
package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/tinytelemetry/onuwatch/internal/model"
)

const (
	defaultFileMode = 0644
	defaultDirMode  = 0755
)

type entry struct {
	Seq    uint64       `json:"seq"`
	Upload model.Upload `json:"upload"`
}

// Journal is an append-only log of accepted uploads. Each entry is one JSON
// line; the file contents are spooled next to it. Commit progress is kept in
// a sidecar file holding the highest committed sequence number.
type Journal struct {
	mu         sync.Mutex
	path       string
	commitPath string
	spoolDir   string
	file       *os.File
	nextSeq    uint64
	committed  uint64
	resolved   map[uint64]struct{} // settled entries above committed
}

// Open creates or opens a journal at path. On startup it compacts committed
// entries, ignores a partially written trailing line and removes spool files
// that no pending entry references.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal: path is empty")
	}
	spoolDir := path + ".spool"
	if err := os.MkdirAll(spoolDir, defaultDirMode); err != nil {
		return nil, fmt.Errorf("journal: mkdir: %w", err)
	}

	commitPath := path + ".commit"
	committed, err := readCommitted(commitPath)
	if err != nil {
		return nil, err
	}

	maxSeq, pending, err := compactCommitted(path, committed)
	if err != nil {
		return nil, err
	}
	if err := pruneSpool(spoolDir, pending); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, defaultFileMode)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}

	next := maxSeq + 1
	if committed+1 > next {
		next = committed + 1
	}

	return &Journal{
		path:       path,
		commitPath: commitPath,
		spoolDir:   spoolDir,
		file:       f,
		nextSeq:    next,
		committed:  committed,
		resolved:   make(map[uint64]struct{}),
	}, nil
}

// Append spools contents, persists the upload entry and returns its
// sequence number together with the upload carrying its spool path.
func (j *Journal) Append(upload model.Upload, contents []byte) (uint64, model.Upload, error) {
	if upload.JobID == "" {
		return 0, upload, errors.New("journal: upload without job id")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return 0, upload, errors.New("journal: closed")
	}

	upload.SpoolPath = filepath.Join(j.spoolDir, spoolName(upload.JobID))
	if err := writeFileSync(upload.SpoolPath, contents); err != nil {
		return 0, upload, fmt.Errorf("journal: spool upload: %w", err)
	}

	seq := j.nextSeq
	line, err := json.Marshal(entry{Seq: seq, Upload: upload})
	if err != nil {
		_ = os.Remove(upload.SpoolPath)
		return 0, upload, fmt.Errorf("journal: marshal entry: %w", err)
	}
	line = append(line, '\n')

	if _, err := j.file.Write(line); err != nil {
		_ = os.Remove(upload.SpoolPath)
		return 0, upload, fmt.Errorf("journal: write entry: %w", err)
	}
	j.nextSeq++
	if err := j.file.Sync(); err != nil {
		return 0, upload, fmt.Errorf("journal: sync entry: %w", err)
	}
	return seq, upload, nil
}

// Commit marks the entry seq as processed and removes the spool file of
// upload. The commit mark only moves over a contiguous run of settled
// entries, so an entry committed ahead of an older one never hides it from
// Replay.
func (j *Journal) Commit(seq uint64, upload model.Upload) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.resolveLocked(seq); err != nil {
		return err
	}
	return j.discardLocked(upload)
}

// Discard settles an entry that will never be processed and removes its
// spool file.
func (j *Journal) Discard(seq uint64, upload model.Upload) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.resolveLocked(seq); err != nil {
		return err
	}
	return j.discardLocked(upload)
}

func (j *Journal) resolveLocked(seq uint64) error {
	if seq <= j.committed {
		return nil
	}
	j.resolved[seq] = struct{}{}

	mark := j.committed
	for {
		if _, ok := j.resolved[mark+1]; !ok {
			break
		}
		delete(j.resolved, mark+1)
		mark++
	}
	if mark == j.committed {
		return nil
	}
	if err := writeCommitted(j.commitPath, mark); err != nil {
		return err
	}
	j.committed = mark
	return nil
}

func (j *Journal) discardLocked(upload model.Upload) error {
	if upload.SpoolPath == "" {
		return nil
	}
	if err := os.Remove(upload.SpoolPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("journal: remove spool: %w", err)
	}
	return nil
}

// Committed returns the highest committed sequence number.
func (j *Journal) Committed() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.committed
}

// Replay calls fn for each uncommitted entry in sequence order.
func (j *Journal) Replay(fn func(seq uint64, upload model.Upload) error) error {
	if fn == nil {
		return errors.New("journal: replay callback is nil")
	}

	j.mu.Lock()
	path := j.path
	committed := j.committed
	j.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("journal: open for replay: %w", err)
	}
	defer f.Close()

	return scanEntries(f, func(e entry) error {
		if e.Seq <= committed {
			return nil
		}
		return fn(e.Seq, e.Upload)
	})
}

// ReadSpool returns the spooled contents of upload.
func ReadSpool(upload model.Upload) ([]byte, error) {
	if upload.SpoolPath == "" {
		return nil, fmt.Errorf("journal: upload %s has no spool file", upload.JobID)
	}
	data, err := os.ReadFile(upload.SpoolPath)
	if err != nil {
		return nil, fmt.Errorf("journal: read spool: %w", err)
	}
	return data, nil
}

// Close closes the underlying journal file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

func spoolName(jobID string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(jobID) + ".upload"
}

// scanEntries calls fn for each complete entry. It stops silently at a torn
// trailing line or the first malformed line.
func scanEntries(r io.Reader, fn func(entry) error) error {
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("journal: read: %w", err)
		}
		if len(line) == 0 {
			if errors.Is(err, io.EOF) {
				return nil
			}
			continue
		}
		if line[len(line)-1] != '\n' {
			return nil
		}

		var e entry
		if uerr := json.Unmarshal(line, &e); uerr != nil {
			return nil
		}
		if ferr := fn(e); ferr != nil {
			return ferr
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}

func readCommitted(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("journal: read commit file: %w", err)
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0, nil
	}
	seq, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("journal: parse commit seq: %w", err)
	}
	return seq, nil
}

func writeCommitted(path string, seq uint64) error {
	tmp := path + ".tmp"
	if err := writeFileSync(tmp, []byte(strconv.FormatUint(seq, 10)+"\n")); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("journal: write commit tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("journal: rename commit file: %w", err)
	}
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// compactCommitted rewrites the journal keeping only uncommitted entries. It
// returns the highest sequence seen and the spool paths still referenced.
func compactCommitted(path string, committed uint64) (uint64, map[string]struct{}, error) {
	src, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, defaultFileMode)
	if err != nil {
		return 0, nil, fmt.Errorf("journal: open source for compact: %w", err)
	}
	defer src.Close()

	tmpPath := path + ".compact"
	dst, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_RDWR, defaultFileMode)
	if err != nil {
		return 0, nil, fmt.Errorf("journal: open compact tmp: %w", err)
	}
	fail := func(err error) (uint64, map[string]struct{}, error) {
		_ = dst.Close()
		_ = os.Remove(tmpPath)
		return 0, nil, err
	}

	var maxSeq uint64
	pending := make(map[string]struct{})
	err = scanEntries(src, func(e entry) error {
		if e.Seq > maxSeq {
			maxSeq = e.Seq
		}
		if e.Seq <= committed {
			return nil
		}
		pending[filepath.Clean(e.Upload.SpoolPath)] = struct{}{}
		line, merr := json.Marshal(e)
		if merr != nil {
			return merr
		}
		if _, werr := dst.Write(append(line, '\n')); werr != nil {
			return fmt.Errorf("journal: compact write: %w", werr)
		}
		return nil
	})
	if err != nil {
		return fail(err)
	}

	if err := dst.Sync(); err != nil {
		return fail(fmt.Errorf("journal: compact sync: %w", err))
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, nil, fmt.Errorf("journal: compact close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return 0, nil, fmt.Errorf("journal: compact rename: %w", err)
	}
	return maxSeq, pending, nil
}

func pruneSpool(dir string, keep map[string]struct{}) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("journal: read spool dir: %w", err)
	}
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		p := filepath.Clean(filepath.Join(dir, de.Name()))
		if _, ok := keep[p]; ok {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("journal: prune spool: %w", err)
		}
	}
	return nil
}
