package draft

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Winstonlu01/Lunori/internal/journal"
)

// createTestStore opens an in-memory draft store with a controllable clock.
func createTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()

	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	now := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestPutAndGet(t *testing.T) {
	s, _ := createTestStore(t)

	d, err := s.Put(Draft{
		ID:            "sess-1",
		SessionID:     "sess-1",
		AudioFilename: "2026-10-17T10-00-00.wav",
		Transcript:    "a quiet morning",
		Words:         3,
		Images:        []journal.Image{{Filename: "a.jpg", Caption: "coffee", Tags: []string{"mug"}}},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	if d.Source != SourceLive {
		t.Errorf("source = %q, want %q", d.Source, SourceLive)
	}
	if d.Transcript != "a quiet morning" {
		t.Errorf("transcript = %q", d.Transcript)
	}
	if len(d.Images) != 1 || d.Images[0].Tags[0] != "mug" {
		t.Errorf("images = %+v", d.Images)
	}
	if d.CreatedAt.Unix() != time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC).Unix() {
		t.Errorf("createdAt = %v", d.CreatedAt)
	}
}

func TestPutUpdatesKeepCreatedAt(t *testing.T) {
	s, now := createTestStore(t)

	first, err := s.Put(Draft{ID: "d", AudioFilename: "x.wav", Transcript: "one"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	*now = now.Add(time.Minute)
	second, err := s.Put(Draft{ID: "d", AudioFilename: "x.wav", Transcript: "two"})
	if err != nil {
		t.Fatalf("put again: %v", err)
	}

	if second.Transcript != "two" {
		t.Errorf("transcript = %q, want %q", second.Transcript, "two")
	}
	if second.CreatedAt.Unix() != first.CreatedAt.Unix() {
		t.Errorf("createdAt changed: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("updatedAt not advanced: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}
}

func TestPutRequiresAudio(t *testing.T) {
	s, _ := createTestStore(t)
	if _, err := s.Put(Draft{Transcript: "orphan"}); err == nil {
		t.Error("expected error for draft without audio")
	}
}

func TestLatestAndList(t *testing.T) {
	s, now := createTestStore(t)

	latest, err := s.Latest()
	if err != nil {
		t.Fatalf("latest on empty: %v", err)
	}
	if latest != nil {
		t.Fatalf("latest = %+v, want nil", latest)
	}

	for _, id := range []string{"a", "b", "c"} {
		if _, err := s.Put(Draft{ID: id, AudioFilename: id + ".wav"}); err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
		*now = now.Add(time.Second)
	}

	latest, err = s.Latest()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.ID != "c" {
		t.Fatalf("latest = %+v, want c", latest)
	}

	all, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, d := range all {
		ids = append(ids, d.ID)
	}
	if len(ids) != 3 || ids[0] != "c" || ids[2] != "a" {
		t.Errorf("ids = %v, want [c b a]", ids)
	}
}

func TestDelete(t *testing.T) {
	s, _ := createTestStore(t)

	if _, err := s.Put(Draft{ID: "a", AudioFilename: "a.wav"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete("a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete("a"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if _, err := s.Get("a"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("get after delete: err = %v, want sql.ErrNoRows", err)
	}
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "drafts.sqlite")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Put(Draft{ID: "a", AudioFilename: "a.wav", Transcript: "kept"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	d, err := s.Get("a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if d.Transcript != "kept" {
		t.Errorf("transcript = %q, want %q", d.Transcript, "kept")
	}
}

func TestFromResults(t *testing.T) {
	live := FromFinalize(journal.FinalizeResult{SessionID: "s1", Transcript: "hi there", WordCount: 2, AudioFilename: "s.wav"})
	if live.ID != "s1" || live.Source != SourceLive || live.Words != 2 {
		t.Errorf("FromFinalize = %+v", live)
	}

	up := FromUpload(journal.UploadResult{Filename: "m.mp3", Transcript: "one two three"})
	if up.ID != "m.mp3" || up.Source != SourceUpload || up.Words != 3 {
		t.Errorf("FromUpload = %+v", up)
	}

	req := up.SaveRequest()
	if req.AudioFilename != "m.mp3" || req.Transcript != "one two three" {
		t.Errorf("SaveRequest = %+v", req)
	}
}
