// services/hal/internal/halcore/types.go
package halcore

import (
	"context"
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// Reading is one datum for one capability kind.
type Reading struct {
	Kind    string // e.g. "camera"
	Payload any    // JSON-serialisable
	TS      time.Time
}

// Sample is a batch collected together.
type Sample []Reading

// CapInfo describes one capability's retained info document.
type CapInfo struct {
	Kind string // capability kind
	Info any    // JSON-serialisable, usually types.Info
}

// Adaptor abstracts a concrete device/driver. Must not own goroutines or the bus.
// Control and the measurement cycle may be called from different goroutines;
// adaptors serialise access to their driver.
type Adaptor interface {
	ID() string
	Capabilities() []CapInfo
	// Split-phase measurement cycle.
	Trigger(ctx context.Context) (collectAfter time.Duration, err error)
	Collect(ctx context.Context) (Sample, error)
	// Device-specific control verbs.
	Control(kind, method string, payload any) (result any, err error)
}

// Closer is implemented by adaptors that hold hardware and must release it
// when their device leaves the configuration.
type Closer interface {
	Close() error
}

// Mutator is implemented by adaptors whose control verbs change published
// state; the service refreshes the capability value after a successful
// mutating verb.
type Mutator interface {
	Mutates(method string) bool
}

// WorkerConfig centralises timings and limits.
type WorkerConfig struct {
	TriggerTimeout time.Duration
	CollectTimeout time.Duration
	RetryBackoff   time.Duration
	MaxRetries     int
	InputQueueSize int
}

// MeasureReq asks a worker to service an adaptor.
type MeasureReq struct {
	ID      string
	Adaptor Adaptor
	Prio    bool // true for "read_now" and post-control refreshes
}

// Result emitted by a worker.
type Result struct {
	ID     string
	Sample Sample
	Err    error
}

var (
	// ErrNotReady signals the worker to retry Collect after backoff.
	ErrNotReady = errors.New("not ready")
	// ErrUnsupported for unknown control verbs.
	ErrUnsupported = errors.New("unsupported")
)

// ---- Buses ----

// I2CBusFactory injects configured I²C instances by id.
// Uses the TinyGo drivers.I2C interface to remain compatible on MCU builds.
type I2CBusFactory interface {
	ByID(id string) (drivers.I2C, bool)
}

// ---- GPIO abstractions ----

// GPIOPin is an output line, such as a sensor supply enable.
type GPIOPin interface {
	ConfigureOutput(initial bool) error
	Set(level bool) error
}

// PinFactory supplies GPIO pins by the configured number scheme.
type PinFactory interface {
	ByNumber(n int) (GPIOPin, bool)
}
