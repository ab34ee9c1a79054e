package config

// Embedded board configurations keyed by device ID (the value placed in ctx
// under CtxDeviceKey).

const cfgCamBoard = `{
  "hal": {
    "devices": [
      {
        "id": "cam0",
        "type": "mt9j003",
        "bus_ref": {"type": "i2c", "id": "i2c1"},
        "params": {"addr": 16, "power_pin": 30, "sample_ms": 5000}
      }
    ]
  },
  "bridge": {
    "transport": {
      "type": "mqtt",
      "mqtt": {
        "broker": "tcp://localhost:1883",
        "client_id": "camsensor",
        "prefix": "camsensor"
      }
    }
  },
  "heartbeat": {
    "interval": 5
  }
}`

var embeddedConfigs = map[string][]byte{
	"camboard": []byte(cfgCamBoard),
}
