package types

import "time"

// ---- Camera sensor capability (kind "camera") ----

// CameraInfo is the retained info detail for a camera sensor.
type CameraInfo struct {
	Address    uint16        `json:"address"`
	ChipID     uint16        `json:"chip_id"`
	ArrayW     int           `json:"array_width"`
	ArrayH     int           `json:"array_height"`
	Formats    []PixelFormat `json:"formats"`
	Controls   []ControlInfo `json:"controls"`
	ArrayClkHz uint32        `json:"array_clock_hz"`
	OutClkHz   uint32        `json:"output_clock_hz"`
}

type PixelFormat struct {
	Description string `json:"description"`
	FourCC      uint32 `json:"fourcc"`
}

type ControlInfo struct {
	ID      uint32 `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"` // "boolean", "integer", "slider"
	Min     int32  `json:"min"`
	Max     int32  `json:"max"`
	Step    int32  `json:"step"`
	Default int32  `json:"default"`
}

// ---- Control payloads ----

// FormatRequest is the payload of "try_format" and "set_format".
type FormatRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// OriginRequest is the payload of "set_origin".
type OriginRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Geometry is a negotiated (or tried) capture window.
type Geometry struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	Left   int `json:"left"`
	Top    int `json:"top"`
	Skip   int `json:"skip"`
	Bin    int `json:"bin"`
}

// GeometryLimits bound the window for the current skip factor.
type GeometryLimits struct {
	XMin      int `json:"x_min"`
	YMin      int `json:"y_min"`
	WidthMin  int `json:"width_min"`
	HeightMin int `json:"height_min"`
	WidthMax  int `json:"width_max"`
	HeightMax int `json:"height_max"`
}

// ControlRequest is the payload of "get_control" and "set_control". Either
// ID or Name selects the control.
type ControlRequest struct {
	ID    uint32 `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Value int32  `json:"value,omitempty"`
}

type ControlValue struct {
	ID    uint32 `json:"id"`
	Name  string `json:"name"`
	Value int32  `json:"value"`
	// ReadError is set when a write succeeded but its read-back failed;
	// Value is then the value written.
	ReadError string `json:"read_error,omitempty"`
}

// StreamRequest is the payload of "stream".
type StreamRequest struct {
	Enable bool `json:"enable"`
}

// RegisterRequest is the payload of the diagnostic "register" verb.
type RegisterRequest struct {
	Reg   uint16 `json:"reg"`
	Value uint16 `json:"value,omitempty"`
	Write bool   `json:"write,omitempty"`
}

type RegisterValue struct {
	Reg   uint16 `json:"reg"`
	Value uint16 `json:"value"`
}

// CameraGains are the last-known analog gains.
type CameraGains struct {
	Red    int32 `json:"red"`
	Blue   int32 `json:"blue"`
	Green1 int32 `json:"green1"`
	Green2 int32 `json:"green2"`
}

// CameraValue is the published (and "state" reply) sensor snapshot.
type CameraValue struct {
	Power     string         `json:"power"`  // "on", "off"
	Stream    string         `json:"stream"` // "idle", "configuring", "streaming"
	Window    Geometry       `json:"window"`
	Limits    GeometryLimits `json:"limits"`
	MirrorRow bool           `json:"mirror_row"`
	MirrorCol bool           `json:"mirror_col"`
	Gains     CameraGains    `json:"gains"`
	Exposure  int32          `json:"exposure"`
	TS        time.Time      `json:"ts"`
}
