package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"net/http"
	"sync"
	"time"

	"github.com/beevik/ntp"
	"github.com/gin-gonic/gin"
	"github.com/vincent-vinf/go-jsend"
	"go.uber.org/zap"

	"uvc-camd/pkg/camera"
	"uvc-camd/pkg/cinfo"
	"uvc-camd/pkg/ov"
	"uvc-camd/pkg/storage"
	"uvc-camd/pkg/utils"
	"uvc-camd/pkg/utils/ps"
	"uvc-camd/pkg/uvc/v4l2dev"
	"uvc-camd/pkg/video"
	"uvc-camd/pkg/webdav"
)

const (
	webDavStart    = "start"
	webDavShutdown = "shutdown"

	recordStart = "start"
	recordStop  = "stop"

	jpegQuality = 90
)

var (
	port       = flag.Int("port", 9999, "api port")
	webdavPort = flag.Int("webdav-port", 9998, "webdav port")
	storageDir = flag.String("dir", "./uvc-camd", "archive directory")

	vendor        = flag.String("vendor", "0x0", "usb vendor id, decimal or 0x-hex")
	product       = flag.String("product", "0x0", "usb product id, decimal or 0x-hex")
	serial        = flag.String("serial", "", "serial number, exact match")
	width         = flag.Int("width", 640, "stream width")
	height        = flag.Int("height", 480, "stream height")
	frameRate     = flag.Int("frame-rate", 30, "stream frame rate")
	videoMode     = flag.String("video-mode", "uncompressed", "uncompressed|compressed|yuyv|uyvy|rgb|bgr|mjpeg|gray8")
	frameID       = flag.String("frame-id", "camera", "frame id attached to published images")
	cameraInfoURL = flag.String("camera-info-url", "", "calibration snapshot url")
	ntpServer     = flag.String("ntp-server", "", "ntp server for timestamp offset correction")

	logger *zap.SugaredLogger

	driver *camera.Driver
	pipe   *framePipe
	stg    *storage.Storage
	wdav   *webdav.Webdav
)

func init() {
	logger = utils.GetLogger()
	flag.Parse()
}

func main() {
	defer logger.Sync()

	var err error
	stg, err = storage.New(*storageDir)
	if err != nil {
		logger.Fatal(err)
	}

	infoStore := cinfo.New()
	pipe = &framePipe{}

	driver = camera.New(v4l2dev.Backend{}, camera.Options{
		Publisher: pipe,
		Sink:      &configLogger{},
		Info:      infoStore,
		Now:       clock(),
	})

	seed := camera.Config{
		Vendor:        *vendor,
		Product:       *product,
		Serial:        *serial,
		Width:         *width,
		Height:        *height,
		FrameRate:     *frameRate,
		VideoMode:     *videoMode,
		FrameID:       *frameID,
		CameraInfoURL: *cameraInfoURL,
	}
	if _, err = driver.ApplyConfig(seed); err != nil {
		logger.Fatal(err)
	}
	if err = driver.Start(); err != nil {
		if errors.Is(err, camera.ErrSubsystemInit) {
			logger.Fatal(err)
		}
		// Device errors are not fatal; the camera can be brought up
		// later with a configuration update.
		logger.Warnf("initial open failed: %s", err)
	}
	defer func() {
		pipe.stopRecording()
		if err := driver.Stop(); err != nil {
			logger.Warnf("driver stop: %s", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wdav = webdav.New(ctx, *webdavPort, stg.Dir())

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(utils.Cors())
	registerRoutes(r)

	logger.Infof("api served on :%d", *port)
	utils.ListenAndServe(r, *port)
}

// clock returns the frame timestamp source, offset-corrected when an
// NTP server is configured.
func clock() func() time.Time {
	if *ntpServer == "" {
		return nil
	}
	resp, err := ntp.Query(*ntpServer)
	if err != nil {
		logger.Warnf("ntp query %s: %s, using local clock", *ntpServer, err)
		return nil
	}
	offset := resp.ClockOffset
	logger.Infof("ntp offset from %s: %s", *ntpServer, offset)
	return func() time.Time {
		return time.Now().Add(offset)
	}
}

func registerRoutes(r *gin.Engine) {
	api := r.Group("/api")

	api.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, jsend.Success(driver.State().String()))
	})
	api.GET("/config", func(c *gin.Context) {
		c.JSON(http.StatusOK, jsend.Success(driver.Config()))
	})
	api.PUT("/config", putConfig)
	api.GET("/image/latest", latestImage)
	api.GET("/stream/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, jsend.Success(pipe.status(driver.State().String())))
	})

	api.POST("/stills", saveStill)
	api.GET("/stills", func(c *gin.Context) {
		listFiles(c, stg.ListStills)
	})
	api.GET("/stills/:name", func(c *gin.Context) {
		path, err := stg.StillPath(c.Param("name"))
		if err != nil {
			c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
			return
		}
		c.File(path)
	})
	api.GET("/recordings", func(c *gin.Context) {
		listFiles(c, stg.ListRecordings)
	})
	api.POST("/record", record)

	api.GET("/status", systemStatus)
	api.POST("/webdav", webdavOp)
}

func putConfig(c *gin.Context) {
	var cfg camera.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}
	effective, err := driver.ApplyConfig(cfg)
	if err != nil {
		logger.Warnf("apply config: %s", err)
		c.JSON(http.StatusConflict, jsend.SimpleErr(err.Error()))
		return
	}
	c.JSON(http.StatusOK, jsend.Success(effective))
}

func latestImage(c *gin.Context) {
	data, err := pipe.latestJPEG()
	if err != nil {
		c.JSON(http.StatusNotFound, jsend.SimpleErr(err.Error()))
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

func saveStill(c *gin.Context) {
	data, err := pipe.latestJPEG()
	if err != nil {
		c.JSON(http.StatusNotFound, jsend.SimpleErr(err.Error()))
		return
	}
	name, err := stg.SaveStill(data)
	if err != nil {
		internalErr(c, err)
		return
	}
	c.JSON(http.StatusOK, jsend.Success(name))
}

func listFiles(c *gin.Context, list func() ([]storage.File, error)) {
	files, err := list()
	if err != nil {
		internalErr(c, err)
		return
	}
	c.JSON(http.StatusOK, jsend.Success(files))
}

func record(c *gin.Context) {
	var req ov.RecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}
	switch req.Action {
	case recordStart:
		cfg := driver.Config()
		rec, err := video.NewRecorder(stg.NewRecordingPath(), cfg.Width, cfg.Height, cfg.FrameRate)
		if err != nil {
			internalErr(c, err)
			return
		}
		if !pipe.startRecording(rec) {
			_ = rec.Close()
			c.JSON(http.StatusConflict, jsend.SimpleErr("already recording"))
			return
		}
		c.JSON(http.StatusOK, jsend.Success(nil))
	case recordStop:
		pipe.stopRecording()
		c.JSON(http.StatusOK, jsend.Success(nil))
	default:
		c.JSON(http.StatusBadRequest, jsend.SimpleErr("unknown action"))
	}
}

func systemStatus(c *gin.Context) {
	cpu, err := ps.CPUStatus()
	if err != nil {
		internalErr(c, err)
		return
	}
	memory, err := ps.MemoryStatus()
	if err != nil {
		internalErr(c, err)
		return
	}
	disk, err := ps.DiskStatus(stg.Dir())
	if err != nil {
		internalErr(c, err)
		return
	}
	c.JSON(http.StatusOK, jsend.Success(ov.SystemStatus{
		CPU:    cpu,
		Memory: memory,
		Disk:   disk,
	}))
}

func webdavOp(c *gin.Context) {
	var req ov.WebdavRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, jsend.SimpleErr(err.Error()))
		return
	}
	switch req.Operation {
	case webDavStart:
		wdav.Start()
		c.JSON(http.StatusOK, jsend.Success(c.Request.Host))
	case webDavShutdown:
		wdav.Stop()
		c.JSON(http.StatusOK, jsend.Success(nil))
	default:
		c.JSON(http.StatusBadRequest, jsend.SimpleErr("unknown operation"))
	}
}

func internalErr(c *gin.Context, err error) {
	logger.Error(err)
	c.JSON(http.StatusInternalServerError, jsend.SimpleErr(err.Error()))
}

// framePipe receives canonical images from the driver, keeps the most
// recent one for the HTTP surface and feeds the recorder when active.
// Publish runs under the driver lock, so HTTP handlers must never call
// back into the driver while holding the pipe lock.
type framePipe struct {
	mu sync.Mutex

	img     *camera.Image
	frameID string
	ts      time.Time
	frames  uint64
	rec     *video.Recorder
}

func (p *framePipe) Publish(img *camera.Image, frameID string, ts time.Time, info []byte) {
	p.mu.Lock()
	p.img = img
	p.frameID = frameID
	p.ts = ts
	p.frames++
	rec := p.rec
	p.mu.Unlock()

	if rec == nil {
		return
	}
	data, err := encodeJPEG(img)
	if err != nil {
		logger.Warnf("recording frame: %s", err)
		return
	}
	if err := rec.Add(data); err != nil {
		logger.Warnf("recording frame: %s", err)
	}
}

func (p *framePipe) latestJPEG() ([]byte, error) {
	p.mu.Lock()
	img := p.img
	p.mu.Unlock()
	if img == nil {
		return nil, errors.New("no frame received yet")
	}
	return encodeJPEG(img)
}

func (p *framePipe) status(state string) ov.StreamStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := ov.StreamStatus{
		State:           state,
		FramesPublished: p.frames,
		LastFrameAt:     p.ts,
		Recording:       p.rec != nil,
	}
	if p.img != nil {
		s.LastEncoding = p.img.Encoding
	}
	return s
}

func (p *framePipe) startRecording(rec *video.Recorder) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rec != nil {
		return false
	}
	p.rec = rec
	return true
}

func (p *framePipe) stopRecording() {
	p.mu.Lock()
	rec := p.rec
	p.rec = nil
	p.mu.Unlock()
	if rec != nil {
		if err := rec.Close(); err != nil {
			logger.Warnf("closing recording: %s", err)
		} else {
			logger.Infof("recording closed with %d frames", rec.Frames())
		}
	}
}

func encodeJPEG(img *camera.Image) ([]byte, error) {
	decoded, err := utils.DecodeCanonical(img.Encoding, img.Data, img.Width, img.Height)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := utils.EncodeJPEG(decoded, &buf, jpegQuality); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// configLogger reports out-of-band configuration updates pushed by the
// driver after status events.
type configLogger struct{}

func (configLogger) PushConfig(cfg camera.Config) {
	logger.Infof("device updated config: exposure_absolute=%g white_balance_temperature=%d",
		cfg.ExposureAbsolute, cfg.WhiteBalanceTemperature)
}
