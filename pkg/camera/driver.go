// Package camera holds the capture driver: a state machine that owns
// the open device, applies configuration to it, and turns the raw
// frames it delivers into canonical images for the publish hook.
package camera

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"uvc-camd/pkg/utils"
	"uvc-camd/pkg/uvc"
)

var (
	// ErrSubsystemInit means the capture subsystem cannot be started at
	// all. The driver instance is unusable; create a new one.
	ErrSubsystemInit = errors.New("camera: capture subsystem init failed")
	// ErrShutDown is returned by calls made after Stop.
	ErrShutDown = errors.New("camera: driver is shut down")
)

type State int

const (
	StateUninitialized State = iota
	StateIdle
	StateStreaming
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateShuttingDown:
		return "shutting-down"
	}
	return "invalid"
}

// Publisher receives one canonical image per successfully converted
// frame. Ownership of the image transfers with the call. Publish runs
// under the driver lock and must not call back into the driver.
type Publisher interface {
	Publish(img *Image, frameID string, ts time.Time, info []byte)
}

// ConfigSink receives the effective configuration whenever a status
// event has updated it out-of-band. Runs under the driver lock.
type ConfigSink interface {
	PushConfig(cfg Config)
}

// InfoStore is the camera-intrinsics collaborator. The driver loads a
// snapshot when the configured URL changes and forwards it unparsed.
type InfoStore interface {
	Load(url string) error
	Snapshot() []byte
}

// Options carries the driver's collaborators. All fields are optional.
type Options struct {
	Publisher Publisher
	Sink      ConfigSink
	Info      InfoStore
	Logger    *zap.SugaredLogger
	// Now supplies frame timestamps, overridable for offset-corrected
	// clocks.
	Now func() time.Time
}

// Driver owns the device lifecycle. A single mutex serializes public
// calls against the frame and status callbacks, which arrive on
// backend-owned goroutines.
type Driver struct {
	mu sync.Mutex

	backend uvc.Backend
	logger  *zap.SugaredLogger
	pub     Publisher
	sink    ConfigSink
	info    InfoStore
	now     func() time.Time

	state   State
	uvcCtx  uvc.Context
	dev     uvc.Device
	handle  uvc.Handle
	params  *uvc.StreamParams
	scratch []byte

	cfg Config
	// creation is set until Start runs; config deliveries before that
	// only seed the snapshot.
	creation bool
	// dirty marks a status-event update not yet pushed to the sink.
	dirty bool
}

func New(backend uvc.Backend, opts Options) *Driver {
	d := &Driver{
		backend:  backend,
		logger:   opts.Logger,
		pub:      opts.Publisher,
		sink:     opts.Sink,
		info:     opts.Info,
		now:      opts.Now,
		state:    StateUninitialized,
		creation: true,
	}
	if d.logger == nil {
		d.logger = utils.GetLogger()
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Config returns the last-applied configuration snapshot.
func (d *Driver) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Start acquires the capture context and replays the seeded
// configuration. On ErrSubsystemInit the driver must not be retried.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateUninitialized {
		return fmt.Errorf("camera: start from state %s", d.state)
	}
	ctx, err := d.backend.Init()
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSubsystemInit, err)
	}
	d.uvcCtx = ctx
	d.state = StateIdle
	d.creation = false

	_, err = d.applyLocked(d.cfg)
	return err
}

// Stop closes the device if streaming and releases the capture
// context. The driver accepts no further calls. Safe against frame and
// status callbacks in flight: the session is torn down after the lock
// is released.
func (d *Driver) Stop() error {
	d.mu.Lock()
	if d.state == StateShuttingDown {
		d.mu.Unlock()
		return nil
	}
	var s *session
	if d.state == StateStreaming {
		detached := d.detachLocked()
		s = &detached
	}
	ctx := d.uvcCtx
	d.uvcCtx = nil
	d.state = StateShuttingDown
	d.mu.Unlock()

	if s != nil {
		d.teardown(*s)
	}
	if ctx != nil {
		if err := ctx.Close(); err != nil {
			d.logger.Warnf("closing capture context: %s", err)
		}
	}
	return nil
}

// ApplyConfig transitions the device toward the desired configuration
// and returns the configuration that is actually in effect: fields
// rejected by hardware are reverted in the returned copy. The error
// reports open or negotiation failure; control rejections are not
// errors. Before Start the delivery only seeds the snapshot.
func (d *Driver) ApplyConfig(next Config) (Config, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.creation {
		d.logger.Debug("seeding configuration")
		d.cfg = next
		return next, nil
	}
	if d.state == StateShuttingDown {
		return d.cfg, ErrShutDown
	}
	return d.applyLocked(next)
}

func (d *Driver) applyLocked(next Config) (Config, error) {
	if structuralChange(d.cfg, next) && d.state == StateStreaming {
		s := d.detachLocked()
		// Teardown waits for in-flight callbacks, which take the lock
		// themselves; it must run unlocked. Callbacks of the detached
		// session arriving in the window see Idle and drop out.
		d.mu.Unlock()
		d.teardown(s)
		d.mu.Lock()
	}

	var openErr error
	if d.state == StateIdle {
		openErr = d.openLocked(next)
	}

	if next.CameraInfoURL != d.cfg.CameraInfoURL && d.info != nil {
		if err := d.info.Load(next.CameraInfoURL); err != nil {
			d.logger.Warnf("loading camera info from %q: %s", next.CameraInfoURL, err)
		}
	}

	if d.state == StateStreaming {
		d.pushControlsLocked(&next)
		d.cfg = next
	}

	return next, openErr
}

// openLocked resolves the identity, opens the device and starts
// streaming. Every failure path unwinds the acquisitions made so far
// and leaves the state at Idle.
func (d *Driver) openLocked(cfg Config) error {
	id, err := cfg.identity()
	if err != nil {
		return fmt.Errorf("camera: device identity: %w", err)
	}
	d.logger.Infof("opening camera vendor=0x%04x product=0x%04x serial=%q index=%d",
		id.VendorID, id.ProductID, id.Serial, id.Index)

	dev, err := d.uvcCtx.FindDevice(id.VendorID, id.ProductID, id.Serial)
	if err != nil {
		d.logger.Warnf("find device: %s", err)
		return err
	}

	h, err := dev.Open()
	if err != nil {
		d.logger.Warnf("open device: %s", err)
		dev.Release()
		return err
	}

	h.SetStatusCallback(d.onStatus)

	req, known := cfg.streamRequest()
	if !known {
		d.logger.Warnf("invalid video mode %q, using uncompressed", cfg.VideoMode)
	}
	params, err := h.Negotiate(req)
	if err != nil {
		d.logger.Warnf("negotiate: %s", err)
		d.logModes(h)
		_ = h.Close()
		dev.Release()
		return err
	}

	if err := h.StartStreaming(params, d.onFrame); err != nil {
		d.logger.Warnf("start streaming: %s", err)
		_ = h.Close()
		dev.Release()
		return err
	}

	need := params.Width * params.Height * 3
	if cap(d.scratch) < need {
		d.scratch = make([]byte, need)
	} else {
		d.scratch = d.scratch[:need]
	}

	d.dev = dev
	d.handle = h
	d.params = params
	d.state = StateStreaming
	return nil
}

// session is a detached streaming acquisition awaiting teardown.
type session struct {
	handle uvc.Handle
	dev    uvc.Device
}

// detachLocked strips the streaming session out of the driver and
// returns it for teardown, leaving the state at Idle. Valid only while
// streaming; any other state is a programming error. The caller must
// run teardown without holding the lock: stopping the stream waits for
// in-flight callbacks, and those take the lock themselves.
func (d *Driver) detachLocked() session {
	if d.state != StateStreaming {
		panic(fmt.Sprintf("camera: close while %s", d.state))
	}
	s := session{handle: d.handle, dev: d.dev}
	d.handle = nil
	d.dev = nil
	d.params = nil
	d.scratch = nil
	d.state = StateIdle
	return s
}

func (d *Driver) teardown(s session) {
	if err := s.handle.StopStreaming(); err != nil {
		d.logger.Warnf("stop streaming: %s", err)
	}
	if err := s.handle.Close(); err != nil {
		d.logger.Warnf("close handle: %s", err)
	}
	s.dev.Release()
}

func (d *Driver) logModes(h uvc.Handle) {
	modes := h.Modes()
	if len(modes) == 0 {
		return
	}
	d.logger.Warn("check video_mode/width/height/frame_rate against the supported modes:")
	for _, m := range modes {
		d.logger.Warnf("  %s", m)
	}
}

// pushControlsLocked diffs the live-settable controls against the
// last-applied snapshot and pushes each changed one individually. A
// rejected write reverts only that field in next. Pan and tilt travel
// together and revert together.
func (d *Driver) pushControlsLocked(next *Config) {
	cur := d.cfg
	push := func(name string, changed bool, id uvc.ControlID, val int32, revert func()) {
		if !changed {
			return
		}
		if err := d.handle.SetControl(id, val); err != nil {
			d.logger.Warnf("unable to set %s to %d: %s", name, val, err)
			revert()
			return
		}
		d.logger.Infof("set %s to %d", name, val)
	}

	push("scanning_mode", next.ScanningMode != cur.ScanningMode,
		uvc.CtrlScanningMode, next.ScanningMode,
		func() { next.ScanningMode = cur.ScanningMode })
	push("auto_exposure", next.AutoExposure != cur.AutoExposure,
		uvc.CtrlAEMode, 1<<uint(next.AutoExposure),
		func() { next.AutoExposure = cur.AutoExposure })
	push("auto_exposure_priority", next.AutoExposurePriority != cur.AutoExposurePriority,
		uvc.CtrlAEPriority, next.AutoExposurePriority,
		func() { next.AutoExposurePriority = cur.AutoExposurePriority })
	push("exposure_absolute", next.ExposureAbsolute != cur.ExposureAbsolute,
		uvc.CtrlExposureAbs, int32(next.ExposureAbsolute*10000),
		func() { next.ExposureAbsolute = cur.ExposureAbsolute })
	push("auto_focus", next.AutoFocus != cur.AutoFocus,
		uvc.CtrlFocusAuto, boolToInt32(next.AutoFocus),
		func() { next.AutoFocus = cur.AutoFocus })
	push("focus_absolute", next.FocusAbsolute != cur.FocusAbsolute,
		uvc.CtrlFocusAbs, next.FocusAbsolute,
		func() { next.FocusAbsolute = cur.FocusAbsolute })
	push("gain", next.Gain != cur.Gain,
		uvc.CtrlGain, next.Gain,
		func() { next.Gain = cur.Gain })
	push("iris_absolute", next.IrisAbsolute != cur.IrisAbsolute,
		uvc.CtrlIrisAbs, next.IrisAbsolute,
		func() { next.IrisAbsolute = cur.IrisAbsolute })
	push("brightness", next.Brightness != cur.Brightness,
		uvc.CtrlBrightness, next.Brightness,
		func() { next.Brightness = cur.Brightness })

	if next.PanAbsolute != cur.PanAbsolute || next.TiltAbsolute != cur.TiltAbsolute {
		if err := d.handle.SetPanTilt(next.PanAbsolute, next.TiltAbsolute); err != nil {
			d.logger.Warnf("unable to set pantilt to %d, %d: %s", next.PanAbsolute, next.TiltAbsolute, err)
			next.PanAbsolute = cur.PanAbsolute
			next.TiltAbsolute = cur.TiltAbsolute
		}
	}
}

// onFrame handles one captured frame. It runs on a backend goroutine
// and takes the driver lock, so a close in progress either finishes
// before conversion starts or observes the frame fully published.
func (d *Driver) onFrame(f *uvc.Frame) {
	ts := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	// A callback already in flight when the session was detached can
	// land here after the handle is gone; the frame belongs to a dead
	// session.
	if d.state != StateStreaming {
		return
	}
	if f == nil || len(f.Data) == 0 {
		d.logger.Warn("dropping frame with empty payload")
		return
	}

	img, err := d.convertLocked(f)
	if err != nil {
		d.logger.Warnf("dropping frame: %s", err)
		return
	}

	if d.pub != nil {
		var info []byte
		if d.info != nil {
			info = d.info.Snapshot()
		}
		d.pub.Publish(img, d.cfg.FrameID, ts, info)
	}

	// Status-event updates become visible to the outside only after
	// the frame they did not influence has been published.
	if d.dirty {
		if d.sink != nil {
			d.sink.PushConfig(d.cfg)
		}
		d.dirty = false
	}
}

// onStatus folds an asynchronous device notification into the pending
// configuration snapshot. It never writes to hardware; the values it
// records are already the device's own.
func (d *Driver) onStatus(ev uvc.StatusEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.logger.Debugf("status event class=%d event=%d selector=%d attr=%d len=%d",
		ev.Class, ev.Event, ev.Selector, ev.Attribute, len(ev.Data))

	// Events from a session being torn down have nothing to update.
	if d.state != StateStreaming {
		return
	}
	if ev.Attribute != uvc.StatusAttrValueChange {
		return
	}
	switch ev.Class {
	case uvc.StatusClassControlCamera:
		if ev.Selector == uvc.SelectorExposureTimeAbsolute && len(ev.Data) >= 4 {
			raw := binary.LittleEndian.Uint32(ev.Data)
			d.cfg.ExposureAbsolute = float64(raw) * 0.0001
			d.dirty = true
		}
	case uvc.StatusClassControlProcessing:
		if ev.Selector == uvc.SelectorWhiteBalanceTemperature && len(ev.Data) >= 2 {
			d.cfg.WhiteBalanceTemperature = int32(binary.LittleEndian.Uint16(ev.Data))
			d.dirty = true
		}
	}
}

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
