package storage

import (
	"testing"
)

func TestLocalBlobStoreRoundTrip(t *testing.T) {
	store := NewLocalBlobStore(t.TempDir())

	path := RawBlobPath(7, "ds-123", "data.csv")
	payload := []byte("a,b\n1,2\n")

	if err := store.Save(path, payload); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Download(path)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Round trip mismatch: got %q", got)
	}
}

func TestLocalBlobStoreMissingBlob(t *testing.T) {
	store := NewLocalBlobStore(t.TempDir())
	if _, err := store.Download("raw/1/nope/missing.csv"); err == nil {
		t.Error("Expected error for missing blob")
	}
}

func TestLocalBlobStoreRejectsEscape(t *testing.T) {
	store := NewLocalBlobStore(t.TempDir())
	if err := store.Save("../../etc/passwd", []byte("x")); err == nil {
		t.Error("Expected path escape to be rejected")
	}
}

func TestBlobPathShapes(t *testing.T) {
	if got := RawBlobPath(1, "abc", "file.csv"); got != "raw/1/abc/file.csv" {
		t.Errorf("Unexpected raw path: %s", got)
	}
	if got := CleanBlobPath(1, "abc"); got != "clean/1/abc/records.json" {
		t.Errorf("Unexpected clean path: %s", got)
	}
}
