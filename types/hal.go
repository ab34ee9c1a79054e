package types

import "time"

// ------------------------
// HAL configuration (topic "config/hal")
// ------------------------

type HALConfig struct {
	Devices []HALDevice `json:"devices"`
}

type HALDevice struct {
	ID     string `json:"id"`   // logical device id
	Type   string `json:"type"` // e.g. "mt9j003"
	Params any    `json:"params,omitempty"`
	BusRef BusRef `json:"bus_ref,omitempty"`
}

type BusRef struct {
	Type string `json:"type"` // e.g. "i2c"
	ID   string `json:"id"`   // e.g. "i2c0"
}

// ------------------------
// Common HAL state (retained)
// ------------------------

type HALState struct {
	Level  string    `json:"level"`  // "idle", "ready", "error", "stopped"
	Status string    `json:"status"` // freeform short code
	TS     time.Time `json:"ts"`
	Error  string    `json:"error,omitempty"`
}

// Link is the link/state reported for a capability.
type Link string

const (
	LinkUp       Link = "up"
	LinkDown     Link = "down"
	LinkDegraded Link = "degraded"
)

type CapabilityState struct {
	Link  Link      `json:"link"`
	TS    time.Time `json:"ts"`
	Error string    `json:"error,omitempty"` // machine-readable short code
}

// ------------------------
// Capability kinds
// ------------------------

type Kind string

const (
	KindCamera Kind = "camera"
)

// ------------------------
// Generic replies
// ------------------------

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// ------------------------
// Info envelope (retained)
// ------------------------

type Info struct {
	SchemaVersion int    `json:"schema_version"`
	Driver        string `json:"driver"`
	Detail        any    `json:"detail,omitempty"` // one of the *Info types
}

// ------------------------
// Generic control payloads (handled by the HAL service)
// ------------------------

// SetRate is the payload of "set_rate". The period is clamped to 200 ms .. 1 h.
type SetRate struct {
	PeriodMS int `json:"period_ms"`
}

type SetRateAck struct {
	OK       bool `json:"ok"`
	PeriodMS int  `json:"period_ms"`
}

type ReadNowAck struct {
	OK bool `json:"ok"`
}

// ------------------------
// Heartbeat (topic "heartbeat", retained)
// ------------------------

type Heartbeat struct {
	Seq     uint64    `json:"seq"`
	UptimeS int64     `json:"uptime_s"`
	TS      time.Time `json:"ts"`
}
