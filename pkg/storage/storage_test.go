package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestNewRejectsEmptyDir(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("empty dir should be rejected")
	}
}

func TestNewCreatesLayout(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	checkErr(t, err)

	if s.Dir() != dir {
		t.Fatalf("dir = %s", s.Dir())
	}
	for _, sub := range []string{stillsDir, recordingsDir} {
		info, err := os.Stat(filepath.Join(dir, sub))
		checkErr(t, err)
		if !info.IsDir() {
			t.Fatalf("%s is not a directory", sub)
		}
	}
}

func TestSaveStillAndList(t *testing.T) {
	s, err := New(t.TempDir())
	checkErr(t, err)

	name, err := s.SaveStill([]byte("not really a jpeg"))
	checkErr(t, err)
	if !strings.HasSuffix(name, ".jpg") {
		t.Fatalf("name = %s", name)
	}

	files, err := s.ListStills()
	checkErr(t, err)
	if len(files) != 1 || files[0].Name != name {
		t.Fatalf("files = %v", files)
	}
	if files[0].Size == "" {
		t.Fatal("size should be humanized, not empty")
	}

	var idx index
	data, err := os.ReadFile(filepath.Join(s.Dir(), indexFile))
	checkErr(t, err)
	checkErr(t, json.Unmarshal(data, &idx))
	if idx.Stills != 1 || idx.LastStill != name {
		t.Fatalf("index = %+v", idx)
	}
}

func TestListSortsNewestFirst(t *testing.T) {
	s, err := New(t.TempDir())
	checkErr(t, err)

	older := filepath.Join(s.Dir(), stillsDir, "20240101-000000.000.jpg")
	newer := filepath.Join(s.Dir(), stillsDir, "20240102-000000.000.jpg")
	checkErr(t, os.WriteFile(older, []byte("a"), 0644))
	past := time.Now().Add(-time.Hour)
	checkErr(t, os.Chtimes(older, past, past))
	checkErr(t, os.WriteFile(newer, []byte("b"), 0644))

	files, err := s.ListStills()
	checkErr(t, err)
	if len(files) != 2 {
		t.Fatalf("len = %d", len(files))
	}
	if files[0].Name != filepath.Base(newer) {
		t.Fatalf("first = %s", files[0].Name)
	}
}

func TestStillPathRejectsTraversal(t *testing.T) {
	s, err := New(t.TempDir())
	checkErr(t, err)

	for _, name := range []string{"", "../index.json", "a/b.jpg", ".."} {
		if _, err := s.StillPath(name); err == nil {
			t.Fatalf("name %q should be rejected", name)
		}
	}

	p, err := s.StillPath("x.jpg")
	checkErr(t, err)
	if p != filepath.Join(s.Dir(), stillsDir, "x.jpg") {
		t.Fatalf("path = %s", p)
	}
}

func TestNewRecordingPath(t *testing.T) {
	s, err := New(t.TempDir())
	checkErr(t, err)

	p := s.NewRecordingPath()
	if filepath.Dir(p) != s.RecordingsDir() {
		t.Fatalf("path = %s", p)
	}
	if !strings.HasSuffix(p, ".avi") {
		t.Fatalf("path = %s", p)
	}
}

func checkErr(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
