// Package webdav exports the archive directory over WebDAV so stills
// and recordings can be pulled off the device without extra tooling.
package webdav

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/webdav"

	"uvc-camd/pkg/utils"
)

type Webdav struct {
	lock   sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	port   int
	dir    string
}

func New(ctx context.Context, port int, dir string) *Webdav {
	return &Webdav{
		ctx:  ctx,
		port: port,
		dir:  dir,
	}
}

func (w *Webdav) Start() {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.cancel != nil {
		return
	}
	newCtx, cancel := context.WithCancel(w.ctx)
	w.cancel = cancel
	serve(newCtx, w.port, w.dir)
}

func (w *Webdav) Stop() {
	w.lock.Lock()
	defer w.lock.Unlock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

func (w *Webdav) Running() bool {
	w.lock.Lock()
	defer w.lock.Unlock()
	return w.cancel != nil
}

func serve(ctx context.Context, port int, dir string) {
	logger := utils.GetLogger()

	h := &webdav.Handler{
		FileSystem: webdav.Dir(dir),
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			if err != nil {
				logger.Errorf("WEBDAV [%s]: %s, err: %s", r.Method, r.URL, err)
			}
		},
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: h,
	}

	go func() {
		logger.Infof("webdav served on :%d", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("webdav listen: %s", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("webdav shutdown: %s", err)
		}
		logger.Info("webdav stopped")
	}()
}
