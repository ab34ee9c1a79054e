package mt9j003

import (
	"errors"

	"camsensor-go/x/conv"
)

var (
	// Sentinel errors (TinyGo-safe; no fmt)
	ErrNotReady      = errors.New("mt9j003: not ready")
	ErrNotDetected   = errors.New("mt9j003: sensor not detected")
	ErrOutOfRange    = errors.New("mt9j003: control value out of range")
	ErrUnsupported   = errors.New("mt9j003: unsupported control")
	ErrUnimplemented = errors.New("mt9j003: not implemented")
	ErrRetryLimit    = errors.New("mt9j003: stream enable retry limit reached")
	ErrInvalidPLL    = errors.New("mt9j003: invalid pll divider")
)

// TransferOp names the direction of a failed bus transaction.
type TransferOp string

const (
	OpRead  TransferOp = "read"
	OpWrite TransferOp = "write"
)

// TransferError reports a failed register transaction. The underlying bus
// error is kept as the cause. Transfers are never retried by the driver.
type TransferError struct {
	Op  TransferOp
	Reg uint16
	Err error
}

func (e *TransferError) Error() string {
	s := "mt9j003: i2c " + string(e.Op) + " " + conv.Hex16(e.Reg)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *TransferError) Unwrap() error { return e.Err }

// DetectionError reports an identity mismatch after the bounded retries.
// Err holds the last bus error when the final attempt failed to transfer.
type DetectionError struct {
	Observed uint16
	Err      error
}

func (e *DetectionError) Error() string {
	if e.Err != nil {
		return ErrNotDetected.Error() + ": " + e.Err.Error()
	}
	return ErrNotDetected.Error() + ", model id " + conv.Hex16(e.Observed)
}

func (e *DetectionError) Unwrap() error { return e.Err }

func (e *DetectionError) Is(target error) bool { return target == ErrNotDetected }

// RangeError rejects a control write outside its descriptor bounds.
type RangeError struct {
	ID    ControlID
	Value int32
	Min   int32
	Max   int32
}

func (e *RangeError) Error() string {
	var b [20]byte
	s := ErrOutOfRange.Error() + ": " + string(conv.Itoa(b[:], int64(e.Value)))
	s += " not in [" + string(conv.Itoa(b[:], int64(e.Min)))
	s += ", " + string(conv.Itoa(b[:], int64(e.Max))) + "]"
	return s
}

func (e *RangeError) Is(target error) bool { return target == ErrOutOfRange }
