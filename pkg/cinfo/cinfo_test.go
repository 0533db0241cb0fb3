package cinfo

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadBarePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.yaml")
	want := []byte("camera_matrix: [1, 0, 0]")
	checkErr(t, os.WriteFile(path, want, 0644))

	s := New()
	checkErr(t, s.Load(path))
	if !bytes.Equal(s.Snapshot(), want) {
		t.Fatalf("snapshot = %q", s.Snapshot())
	}
	if s.URL() != path {
		t.Fatalf("url = %q", s.URL())
	}
}

func TestLoadFileURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.yaml")
	checkErr(t, os.WriteFile(path, []byte("x"), 0644))

	s := New()
	checkErr(t, s.Load("file://"+path))
	if s.Snapshot() == nil {
		t.Fatal("snapshot empty after file:// load")
	}
}

func TestLoadRejectsUnsupportedScheme(t *testing.T) {
	s := New()
	if err := s.Load("http://example.com/cal.yaml"); err == nil {
		t.Fatal("http scheme should be rejected")
	}
}

func TestLoadMissingFileKeepsOldSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.yaml")
	checkErr(t, os.WriteFile(path, []byte("x"), 0644))

	s := New()
	checkErr(t, s.Load(path))
	if err := s.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("missing file should error")
	}
	if s.Snapshot() == nil {
		t.Fatal("failed load discarded the previous snapshot")
	}
}

func TestEmptyURLClears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.yaml")
	checkErr(t, os.WriteFile(path, []byte("x"), 0644))

	s := New()
	checkErr(t, s.Load(path))
	checkErr(t, s.Load(""))
	if s.Snapshot() != nil || s.URL() != "" {
		t.Fatal("empty url did not clear the snapshot")
	}
}

func checkErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
