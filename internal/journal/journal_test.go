package journal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tinytelemetry/onuwatch/internal/model"
)

func testUpload(jobID string) model.Upload {
	return model.Upload{
		JobID:      jobID,
		FileName:   jobID + ".csv",
		SizeBytes:  12,
		AcceptedAt: time.Now().UTC(),
	}
}

func TestAppendReplayCommit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uploads.journal")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })

	seq1, up1, err := j.Append(testUpload("job-1"), []byte("Status,Data\n"))
	if err != nil {
		t.Fatalf("Append job-1: %v", err)
	}
	seq2, up2, err := j.Append(testUpload("job-2"), []byte("second"))
	if err != nil {
		t.Fatalf("Append job-2: %v", err)
	}
	if seq2 <= seq1 {
		t.Fatalf("sequence did not advance: seq1=%d seq2=%d", seq1, seq2)
	}

	data, err := ReadSpool(up1)
	if err != nil {
		t.Fatalf("ReadSpool: %v", err)
	}
	if string(data) != "Status,Data\n" {
		t.Errorf("spool contents = %q", data)
	}

	if err := j.Commit(seq1, up1); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := os.Stat(up1.SpoolPath); !os.IsNotExist(err) {
		t.Errorf("committed spool file still exists: %v", err)
	}
	if j.Committed() != seq1 {
		t.Errorf("Committed = %d, want %d", j.Committed(), seq1)
	}

	var replayed []string
	err = j.Replay(func(_ uint64, u model.Upload) error {
		replayed = append(replayed, u.JobID)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(replayed) != 1 || replayed[0] != "job-2" {
		t.Fatalf("Replay jobs=%v, want [job-2]", replayed)
	}
	if _, err := os.Stat(up2.SpoolPath); err != nil {
		t.Errorf("pending spool file missing: %v", err)
	}
}

func TestReopenKeepsPendingAndPrunesOrphans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uploads.journal")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	seq1, up1, err := j.Append(testUpload("done"), []byte("a"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	_, up2, err := j.Append(testUpload("queued"), []byte("b"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Commit(seq1, up1); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	orphan := filepath.Join(path+".spool", "orphan.upload")
	if err := os.WriteFile(orphan, []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	j2, err := Open(path)
	if err != nil {
		t.Fatalf("Open second: %v", err)
	}
	defer func() { _ = j2.Close() }()

	var replayed []model.Upload
	if err := j2.Replay(func(_ uint64, u model.Upload) error {
		replayed = append(replayed, u)
		return nil
	}); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(replayed) != 1 || replayed[0].JobID != "queued" || replayed[0].SpoolPath != up2.SpoolPath {
		t.Fatalf("Replay = %+v, want only queued", replayed)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Errorf("orphan spool file not pruned: %v", err)
	}
	if data, err := ReadSpool(replayed[0]); err != nil || string(data) != "b" {
		t.Errorf("ReadSpool = %q, %v", data, err)
	}

	seq3, _, err := j2.Append(testUpload("after"), nil)
	if err != nil {
		t.Fatalf("Append after reopen: %v", err)
	}
	if seq3 <= seq1+1 {
		t.Errorf("seq after reopen = %d, want > %d", seq3, seq1+1)
	}
}

func TestOpenIgnoresPartialTrailingLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uploads.journal")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, _, err := j.Append(testUpload("ok"), []byte("data")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Simulate torn write.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.WriteString(`{"seq":999,"upload":`); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close torn writer: %v", err)
	}

	j2, err := Open(path)
	if err != nil {
		t.Fatalf("Open second: %v", err)
	}
	defer func() { _ = j2.Close() }()

	var replayed []string
	err = j2.Replay(func(_ uint64, u model.Upload) error {
		replayed = append(replayed, u.JobID)
		return nil
	})
	if err != nil {
		t.Fatalf("Replay second: %v", err)
	}
	if len(replayed) != 1 || replayed[0] != "ok" {
		t.Fatalf("Replay after torn write=%v, want [ok]", replayed)
	}
}

func TestDiscardSettlesEntry(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "uploads.journal"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	seq, up, err := j.Append(testUpload("rejected"), []byte("x"))
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Discard(seq, up); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if j.Committed() != seq {
		t.Errorf("Committed = %d, want %d", j.Committed(), seq)
	}
	if _, err := ReadSpool(up); err == nil {
		t.Error("ReadSpool after Discard succeeded")
	}
}

func TestCommitOutOfOrderKeepsOlderEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uploads.journal")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	seqA, upA, err := j.Append(testUpload("job-a"), []byte("a"))
	if err != nil {
		t.Fatalf("Append job-a: %v", err)
	}
	seqB, upB, err := j.Append(testUpload("job-b"), []byte("b"))
	if err != nil {
		t.Fatalf("Append job-b: %v", err)
	}

	// job-b reached the worker first.
	if err := j.Commit(seqB, upB); err != nil {
		t.Fatalf("Commit job-b: %v", err)
	}
	if j.Committed() != 0 {
		t.Errorf("Committed = %d, want 0 while job-a is pending", j.Committed())
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	j2, err := Open(path)
	if err != nil {
		t.Fatalf("Open second: %v", err)
	}
	defer func() { _ = j2.Close() }()

	var replayed []model.Upload
	if err := j2.Replay(func(_ uint64, u model.Upload) error {
		replayed = append(replayed, u)
		return nil
	}); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	var sawA bool
	for _, u := range replayed {
		if u.JobID == "job-a" {
			sawA = true
		}
	}
	if !sawA {
		t.Fatalf("Replay = %+v, want job-a", replayed)
	}
	if data, err := ReadSpool(upA); err != nil || string(data) != "a" {
		t.Fatalf("job-a spool = %q, %v", data, err)
	}

	// Settling both entries moves the mark past them.
	if err := j2.Commit(seqA, upA); err != nil {
		t.Fatalf("Commit job-a: %v", err)
	}
	if err := j2.Discard(seqB, upB); err != nil {
		t.Fatalf("Discard job-b: %v", err)
	}
	if j2.Committed() != seqB {
		t.Errorf("Committed = %d, want %d", j2.Committed(), seqB)
	}
}

func TestAppendRequiresJobID(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "uploads.journal"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	if _, _, err := j.Append(model.Upload{}, nil); err == nil {
		t.Error("expected error for upload without job id")
	}
	if _, err := Open("  "); err == nil {
		t.Error("expected error for empty path")
	}
}
