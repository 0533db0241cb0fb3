// Package storage is the on-disk archive behind the daemon: JPEG
// stills saved on request and AVI recordings, with a small JSON index.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
)

const (
	stillsDir     = "stills"
	recordingsDir = "recordings"
	indexFile     = "index.json"

	nameLayout = "20060102-150405.000"
)

type Storage struct {
	dir string
}

type File struct {
	Name    string    `json:"name"`
	Size    string    `json:"size"`
	ModTime time.Time `json:"modTime"`
}

type index struct {
	Stills     int       `json:"stills"`
	Recordings int       `json:"recordings"`
	LastStill  string    `json:"lastStill"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func New(dir string) (*Storage, error) {
	if dir == "" {
		return nil, fmt.Errorf("storage dir can not be empty")
	}
	for _, sub := range []string{stillsDir, recordingsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, err
		}
	}
	return &Storage{dir: dir}, nil
}

func (s *Storage) Dir() string {
	return s.dir
}

func (s *Storage) RecordingsDir() string {
	return filepath.Join(s.dir, recordingsDir)
}

// NewRecordingPath returns a timestamped path for a new AVI file.
func (s *Storage) NewRecordingPath() string {
	return filepath.Join(s.dir, recordingsDir, time.Now().Format(nameLayout)+".avi")
}

// SaveStill writes a JPEG still and updates the index. It returns the
// file name used.
func (s *Storage) SaveStill(jpegData []byte) (string, error) {
	name := time.Now().Format(nameLayout) + ".jpg"
	if err := os.WriteFile(filepath.Join(s.dir, stillsDir, name), jpegData, 0644); err != nil {
		return "", fmt.Errorf("save still: %w", err)
	}
	if err := s.updateIndex(name); err != nil {
		return name, err
	}
	return name, nil
}

func (s *Storage) ListStills() ([]File, error) {
	return s.list(stillsDir)
}

func (s *Storage) ListRecordings() ([]File, error) {
	return s.list(recordingsDir)
}

func (s *Storage) list(sub string) ([]File, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, sub))
	if err != nil {
		return nil, err
	}
	var files []File
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{
			Name:    e.Name(),
			Size:    humanize.Bytes(uint64(info.Size())),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, nil
}

func (s *Storage) updateIndex(lastStill string) error {
	stills, err := os.ReadDir(filepath.Join(s.dir, stillsDir))
	if err != nil {
		return err
	}
	recordings, err := os.ReadDir(filepath.Join(s.dir, recordingsDir))
	if err != nil {
		return err
	}
	data, err := json.Marshal(index{
		Stills:     len(stills),
		Recordings: len(recordings),
		LastStill:  lastStill,
		UpdatedAt:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	return os.WriteFile(filepath.Join(s.dir, indexFile), data, 0644)
}

// StillPath resolves a still name to its full path, refusing names
// that escape the archive.
func (s *Storage) StillPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid still name %q", name)
	}
	return filepath.Join(s.dir, stillsDir, name), nil
}
