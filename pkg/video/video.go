// Package video writes MJPEG AVI recordings from JPEG frames.
package video

import (
	"sync"

	"github.com/icza/mjpeg"
)

type Recorder struct {
	mu sync.Mutex

	width  int
	height int
	fps    int

	cnt int
	aw  mjpeg.AviWriter
}

func NewRecorder(path string, width, height, fps int) (*Recorder, error) {
	aw, err := mjpeg.New(path, int32(width), int32(height), int32(fps))
	if err != nil {
		return nil, err
	}

	return &Recorder{
		width:  width,
		height: height,
		fps:    fps,
		aw:     aw,
	}, nil
}

// Add appends one JPEG-encoded frame.
func (r *Recorder) Add(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.aw.AddFrame(frame); err != nil {
		return err
	}
	r.cnt++

	return nil
}

func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cnt
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aw.Close()
}
