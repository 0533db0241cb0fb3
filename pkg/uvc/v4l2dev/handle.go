package v4l2dev

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"
	"golang.org/x/sync/errgroup"

	"uvc-camd/pkg/uvc"
)

const statusPollInterval = time.Second

type handle struct {
	path string

	dev      *device.Device
	statusCB uvc.StatusCallback

	cancel context.CancelFunc
	group  *errgroup.Group
}

func (h *handle) SetStatusCallback(cb uvc.StatusCallback) {
	h.statusCB = cb
}

func (h *handle) Negotiate(req uvc.StreamRequest) (*uvc.StreamParams, error) {
	fourcc, actual, err := pixelFormatFor(req.Format)
	if err != nil {
		return nil, &uvc.NegotiationError{Req: req, Cause: err}
	}

	// go4vl applies format and rate as open options, so the probe
	// device is reopened with the requested mode.
	if h.dev != nil {
		_ = h.dev.Close()
		h.dev = nil
	}
	opts := []device.Option{
		device.WithBufferSize(1),
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: fourcc,
			Width:       uint32(req.Width),
			Height:      uint32(req.Height),
			Field:       v4l2.FieldNone,
		}),
	}
	if req.FPS > 0 {
		opts = append(opts, device.WithFPS(uint32(req.FPS)))
	}
	dev, err := device.Open(h.path, opts...)
	if err != nil {
		return nil, &uvc.NegotiationError{Req: req, Cause: err}
	}

	got, err := v4l2.GetPixFormat(dev.Fd())
	if err != nil {
		_ = dev.Close()
		return nil, &uvc.NegotiationError{Req: req, Cause: err}
	}
	if got.PixelFormat != fourcc || int(got.Width) != req.Width || int(got.Height) != req.Height {
		_ = dev.Close()
		return nil, &uvc.NegotiationError{Req: req}
	}

	h.dev = dev
	return &uvc.StreamParams{
		Format: actual,
		Width:  req.Width,
		Height: req.Height,
		FPS:    req.FPS,
	}, nil
}

func (h *handle) StartStreaming(params *uvc.StreamParams, cb uvc.FrameCallback) error {
	if h.dev == nil {
		return errors.New("v4l2dev: stream not negotiated")
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := h.dev.Start(ctx); err != nil {
		cancel()
		return err
	}
	h.cancel = cancel

	g, gctx := errgroup.WithContext(ctx)
	h.group = g
	out := h.dev.GetOutput()
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case data, ok := <-out:
				if !ok {
					return nil
				}
				cb(&uvc.Frame{
					Format: params.Format,
					Width:  params.Width,
					Height: params.Height,
					Data:   data,
				})
			}
		}
	})
	g.Go(func() error {
		h.pollStatus(gctx)
		return nil
	})

	return nil
}

func (h *handle) StopStreaming() error {
	if h.cancel == nil {
		return nil
	}
	// Cancel first so the go4vl stream loop reaches its ctx.Done branch
	// and stops the device before we close it.
	h.cancel()
	h.cancel = nil
	if h.group != nil {
		_ = h.group.Wait()
		h.group = nil
	}
	time.Sleep(100 * time.Millisecond)
	return nil
}

func (h *handle) SetControl(id uvc.ControlID, value int32) error {
	if h.dev == nil {
		return errors.New("v4l2dev: device not open")
	}
	cid, ok := v4l2ControlID[id]
	if !ok {
		return fmt.Errorf("v4l2dev: control %d not mapped", id)
	}
	return h.dev.SetControlValue(v4l2.CtrlID(cid), v4l2.CtrlValue(value))
}

// SetPanTilt pushes the coupled pair. V4L2 exposes pan and tilt as
// separate controls; a failure of either reports the pair as rejected.
func (h *handle) SetPanTilt(pan, tilt int32) error {
	if h.dev == nil {
		return errors.New("v4l2dev: device not open")
	}
	if err := h.dev.SetControlValue(v4l2.CtrlID(cidPanAbsolute), v4l2.CtrlValue(pan)); err != nil {
		return fmt.Errorf("pan: %w", err)
	}
	if err := h.dev.SetControlValue(v4l2.CtrlID(cidTiltAbsolute), v4l2.CtrlValue(tilt)); err != nil {
		return fmt.Errorf("tilt: %w", err)
	}
	return nil
}

func (h *handle) Modes() []uvc.StreamMode {
	dev := h.dev
	if dev == nil {
		d, err := device.Open(h.path, device.WithBufferSize(1))
		if err != nil {
			return nil
		}
		defer d.Close()
		dev = d
	}
	sizes, err := v4l2.GetAllFormatFrameSizes(dev.Fd())
	if err != nil {
		return nil
	}
	var modes []uvc.StreamMode
	for _, s := range sizes {
		modes = append(modes, uvc.StreamMode{
			Format:    formatForPixelFormat(uint32(s.PixelFormat)),
			MinWidth:  int(s.Size.MinWidth),
			MinHeight: int(s.Size.MinHeight),
			MaxWidth:  int(s.Size.MaxWidth),
			MaxHeight: int(s.Size.MaxHeight),
		})
	}
	return modes
}

func (h *handle) Close() error {
	if h.dev == nil {
		return nil
	}
	err := h.dev.Close()
	h.dev = nil
	return err
}

// pollStatus watches auto-adjusted controls and reports value changes
// as status events. UVC status interrupts are not surfaced by V4L2, so
// the backend observes the controls directly.
func (h *handle) pollStatus(ctx context.Context) {
	if h.statusCB == nil {
		return
	}
	var (
		lastExposure, lastWB v4l2.CtrlValue
		seeded               bool
	)
	t := time.NewTicker(statusPollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		if h.dev == nil {
			return
		}
		exposure, expErr := v4l2.GetControl(h.dev.Fd(), v4l2.CtrlID(cidExposureAbsolute))
		wb, wbErr := v4l2.GetControl(h.dev.Fd(), v4l2.CtrlID(cidWhiteBalanceTemp))
		if !seeded {
			if expErr == nil {
				lastExposure = exposure.Value
			}
			if wbErr == nil {
				lastWB = wb.Value
			}
			seeded = true
			continue
		}
		if expErr == nil && exposure.Value != lastExposure {
			lastExposure = exposure.Value
			data := make([]byte, 4)
			binary.LittleEndian.PutUint32(data, uint32(exposure.Value))
			h.statusCB(uvc.StatusEvent{
				Class:     uvc.StatusClassControlCamera,
				Selector:  uvc.SelectorExposureTimeAbsolute,
				Attribute: uvc.StatusAttrValueChange,
				Data:      data,
			})
		}
		if wbErr == nil && wb.Value != lastWB {
			lastWB = wb.Value
			data := make([]byte, 2)
			binary.LittleEndian.PutUint16(data, uint16(wb.Value))
			h.statusCB(uvc.StatusEvent{
				Class:     uvc.StatusClassControlProcessing,
				Selector:  uvc.SelectorWhiteBalanceTemperature,
				Attribute: uvc.StatusAttrValueChange,
				Data:      data,
			})
		}
	}
}
