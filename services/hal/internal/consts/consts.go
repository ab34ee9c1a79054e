// services/hal/internal/consts/consts.go
package consts

// Top-level topics
const (
	TokConfig     = "config"
	TokHAL        = "hal"
	TokCapability = "capability"
	TokInfo       = "info"
	TokState      = "state"
	TokValue      = "value"
	TokControl    = "control"
)

// Generic control verbs handled by the service.
const (
	CtrlReadNow = "read_now"
	CtrlSetRate = "set_rate"
)

// Camera control verbs handled by the sensor adaptor.
const (
	CtrlTryFormat    = "try_format"
	CtrlSetFormat    = "set_format"
	CtrlSetOrigin    = "set_origin"
	CtrlGetControl   = "get_control"
	CtrlSetControl   = "set_control"
	CtrlListControls = "list_controls"
	CtrlStream       = "stream"
	CtrlState        = "state"
	CtrlRegister     = "register"
)

// Capability kinds used in service wiring
const (
	KindCamera = "camera"
)
