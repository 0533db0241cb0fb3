// Package cinfo caches camera calibration snapshots. The snapshot is
// an opaque blob keyed by a URL; the driver forwards it alongside each
// published frame without interpreting it.
package cinfo

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
)

type Store struct {
	mu   sync.Mutex
	url  string
	data []byte
}

func New() *Store {
	return &Store{}
}

// Load replaces the cached snapshot with the contents behind rawURL.
// Supported schemes: file:// and bare paths. An empty URL clears the
// snapshot.
func (s *Store) Load(rawURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rawURL == "" {
		s.url = ""
		s.data = nil
		return nil
	}

	path := rawURL
	if strings.Contains(rawURL, "://") {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("camera info url: %w", err)
		}
		if u.Scheme != "file" {
			return fmt.Errorf("camera info url: unsupported scheme %q", u.Scheme)
		}
		path = u.Path
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("camera info: %w", err)
	}
	s.url = rawURL
	s.data = data
	return nil
}

// Snapshot returns the cached blob, or nil when nothing is loaded.
func (s *Store) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// URL returns the URL of the cached snapshot.
func (s *Store) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}
