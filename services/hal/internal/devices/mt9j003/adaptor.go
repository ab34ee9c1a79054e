package mt9j003dev

import (
	"context"
	"errors"
	"sync"
	"time"

	"camsensor-go/drivers/mt9j003"
	"camsensor-go/errcode"
	"camsensor-go/services/hal/internal/consts"
	"camsensor-go/services/hal/internal/halcore"
	"camsensor-go/services/hal/internal/util"
	"camsensor-go/types"
)

// adaptor exposes one sensor as a "camera" capability. The driver does no
// locking, so every driver call goes through mu.
type adaptor struct {
	id  string
	pll mt9j003.PLL

	mu  sync.Mutex
	dev *mt9j003.Device
}

func newAdaptor(id string, dev *mt9j003.Device, pll mt9j003.PLL) *adaptor {
	return &adaptor{id: id, dev: dev, pll: pll}
}

func (a *adaptor) ID() string { return a.id }

func (a *adaptor) Capabilities() []halcore.CapInfo {
	a.mu.Lock()
	addr, chip := a.dev.Address(), a.dev.Model()
	a.mu.Unlock()

	info := types.CameraInfo{
		Address:    addr,
		ChipID:     chip,
		ArrayW:     mt9j003.PixelArrayWidth,
		ArrayH:     mt9j003.PixelArrayHeight,
		Controls:   controlInfos(),
		ArrayClkHz: a.pll.ArrayClockHz(),
		OutClkHz:   a.pll.OutputClockHz(),
	}
	for _, f := range mt9j003.Formats() {
		info.Formats = append(info.Formats, types.PixelFormat{Description: f.Description, FourCC: f.FourCC})
	}
	return []halcore.CapInfo{{
		Kind: consts.KindCamera,
		Info: types.Info{SchemaVersion: 1, Driver: "mt9j003", Detail: info},
	}}
}

// Trigger has nothing to start; the snapshot is read in Collect.
func (a *adaptor) Trigger(ctx context.Context) (time.Duration, error) {
	return 0, nil
}

// Collect publishes the sensor snapshot. While powered the gains are read
// back from the sensor; a stream enable in progress defers the read.
func (a *adaptor) Collect(ctx context.Context) (halcore.Sample, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.dev.State()
	if st.Stream == mt9j003.StreamConfiguring {
		return nil, halcore.ErrNotReady
	}
	if st.Power == mt9j003.PowerOn {
		for _, id := range gainIDs {
			if _, err := a.dev.GetControl(id); err != nil {
				return nil, codeOf(err)
			}
		}
		st = a.dev.State()
	}
	now := time.Now()
	return halcore.Sample{{Kind: consts.KindCamera, Payload: cameraValue(st, now), TS: now}}, nil
}

// Mutates reports the verbs after which the published value is stale.
func (a *adaptor) Mutates(method string) bool {
	switch method {
	case consts.CtrlSetFormat, consts.CtrlSetOrigin, consts.CtrlSetControl, consts.CtrlStream:
		return true
	}
	return false
}

func (a *adaptor) Control(kind, method string, payload any) (any, error) {
	if kind != consts.KindCamera {
		return nil, errcode.Unsupported
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	switch method {
	case consts.CtrlTryFormat:
		req, err := util.Payload[types.FormatRequest](payload)
		if err != nil {
			return nil, errcode.InvalidPayload
		}
		win, _ := a.dev.Negotiate(mt9j003.TryFormat(req.Width, req.Height))
		return geometry(win), nil

	case consts.CtrlSetFormat:
		req, err := util.Payload[types.FormatRequest](payload)
		if err != nil || req.Width <= 0 || req.Height <= 0 {
			return nil, errcode.InvalidPayload
		}
		win, err := a.dev.SetFormat(req.Width, req.Height)
		if err != nil {
			return nil, codeOf(err)
		}
		return geometry(win), nil

	case consts.CtrlSetOrigin:
		req, err := util.Payload[types.OriginRequest](payload)
		if err != nil {
			return nil, errcode.InvalidPayload
		}
		a.dev.SetOrigin(req.X, req.Y)
		return types.OKReply{OK: true}, nil

	case consts.CtrlListControls:
		return controlInfos(), nil

	case consts.CtrlGetControl, consts.CtrlSetControl:
		req, err := util.Payload[types.ControlRequest](payload)
		if err != nil {
			return nil, errcode.InvalidPayload
		}
		desc, ok := lookup(req)
		if !ok {
			return nil, errcode.Unsupported
		}
		out := types.ControlValue{ID: uint32(desc.ID), Name: desc.Name}
		if method == consts.CtrlSetControl {
			if err := a.dev.SetControl(desc.ID, req.Value); err != nil {
				return nil, codeOf(err)
			}
			// The write landed; a failed read-back is reported, not fatal.
			v, err := a.dev.GetControl(desc.ID)
			if err != nil {
				out.Value = req.Value
				out.ReadError = string(codeOf(err))
				return out, nil
			}
			out.Value = v
			return out, nil
		}
		v, err := a.dev.GetControl(desc.ID)
		if err != nil {
			return nil, codeOf(err)
		}
		out.Value = v
		return out, nil

	case consts.CtrlStream:
		req, err := util.Payload[types.StreamRequest](payload)
		if err != nil {
			return nil, errcode.InvalidPayload
		}
		if err := a.dev.SetStream(req.Enable); err != nil {
			return nil, codeOf(err)
		}
		return cameraValue(a.dev.State(), time.Now()), nil

	case consts.CtrlState:
		return cameraValue(a.dev.State(), time.Now()), nil

	case consts.CtrlRegister:
		req, err := util.Payload[types.RegisterRequest](payload)
		if err != nil {
			return nil, errcode.InvalidPayload
		}
		if req.Write {
			if err := a.dev.WriteRegister(req.Reg, req.Value); err != nil {
				return nil, codeOf(err)
			}
			return types.RegisterValue{Reg: req.Reg, Value: req.Value}, nil
		}
		v, err := a.dev.ReadRegister(req.Reg)
		if err != nil {
			return nil, codeOf(err)
		}
		return types.RegisterValue{Reg: req.Reg, Value: v}, nil
	}
	return nil, errcode.Unsupported
}

// Close quiesces the sensor (best effort) and detaches it.
func (a *adaptor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	var err error
	if a.dev.State().Stream != mt9j003.StreamIdle {
		err = a.dev.SetStream(false)
	}
	if a.dev.State().Power == mt9j003.PowerOn {
		err = errors.Join(err, a.dev.PowerOff())
	}
	a.dev.Remove()
	return err
}

// ---- mapping helpers ----

var gainIDs = [...]mt9j003.ControlID{
	mt9j003.CIDRedGain, mt9j003.CIDBlueGain, mt9j003.CIDGreen1Gain, mt9j003.CIDGreen2Gain,
}

func lookup(req types.ControlRequest) (mt9j003.ControlDescriptor, bool) {
	if req.ID != 0 {
		return mt9j003.LookupControl(mt9j003.ControlID(req.ID))
	}
	for _, c := range mt9j003.Controls() {
		if c.Name == req.Name {
			return c, true
		}
	}
	return mt9j003.ControlDescriptor{}, false
}

func controlInfos() []types.ControlInfo {
	cs := mt9j003.Controls()
	out := make([]types.ControlInfo, 0, len(cs))
	for _, c := range cs {
		out = append(out, types.ControlInfo{
			ID: uint32(c.ID), Name: c.Name, Kind: c.Kind.String(),
			Min: c.Min, Max: c.Max, Step: c.Step, Default: c.Default,
		})
	}
	return out
}

func geometry(w mt9j003.Window) types.Geometry {
	return types.Geometry{
		Width: w.Width, Height: w.Height,
		Left: w.Left, Top: w.Top,
		Skip: w.Skip, Bin: w.Bin,
	}
}

func cameraValue(st mt9j003.State, ts time.Time) types.CameraValue {
	return types.CameraValue{
		Power:  st.Power.String(),
		Stream: st.Stream.String(),
		Window: types.Geometry{
			Width: st.Width, Height: st.Height,
			Left: st.CurrentX, Top: st.CurrentY,
			Skip: st.XSkip, Bin: st.XBin,
		},
		Limits: types.GeometryLimits{
			XMin: st.Limits.XMin, YMin: st.Limits.YMin,
			WidthMin: st.Limits.WidthMin, HeightMin: st.Limits.HeightMin,
			WidthMax: st.Limits.WidthMax, HeightMax: st.Limits.HeightMax,
		},
		MirrorRow: st.MirrorRow,
		MirrorCol: st.MirrorCol,
		Gains: types.CameraGains{
			Red:    st.Gain[mt9j003.GainRed],
			Blue:   st.Gain[mt9j003.GainBlue],
			Green1: st.Gain[mt9j003.GainGreen1],
			Green2: st.Gain[mt9j003.GainGreen2],
		},
		Exposure: st.Exposure,
		TS:       ts,
	}
}

// codeOf maps driver errors onto bus-facing codes.
func codeOf(err error) errcode.Code {
	var te *mt9j003.TransferError
	switch {
	case err == nil:
		return errcode.OK
	case errors.Is(err, mt9j003.ErrNotReady):
		return errcode.HALNotReady
	case errors.Is(err, mt9j003.ErrNotDetected):
		return errcode.NotDetected
	case errors.Is(err, mt9j003.ErrOutOfRange):
		return errcode.OutOfRange
	case errors.Is(err, mt9j003.ErrUnsupported):
		return errcode.Unsupported
	case errors.Is(err, mt9j003.ErrUnimplemented):
		return errcode.Unimplemented
	case errors.Is(err, mt9j003.ErrRetryLimit):
		return errcode.RetryLimit
	case errors.As(err, &te):
		return errcode.IOError
	}
	return errcode.MapDriverErr(err)
}
