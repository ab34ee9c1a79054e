package config

import (
	"context"
	"errors"
	"log/slog"

	"camsensor-go/bus"
	"camsensor-go/types"

	"github.com/andreyvit/tinyjson"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

type ctxKey string

// CtxDeviceKey selects the embedded board config when no file was given.
const CtxDeviceKey ctxKey = "device"

var (
	errNotObject  = errors.New("board config is not a JSON object")
	errBadJSON    = errors.New("board config is not valid JSON")
	errNoDeviceID = errors.New("missing device ID in context")
)

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

// ConfigService publishes each top-level section of a board config retained
// on "config/<section>". The "hal" section is published as types.HALConfig;
// the rest as decoded JSON (map[string]any).
type ConfigService struct {
	Name string

	raw []byte
	log *slog.Logger
}

// NewConfigService serves raw, or the embedded config named by CtxDeviceKey
// when raw is empty.
func NewConfigService(raw []byte, log *slog.Logger) *ConfigService {
	if log == nil {
		log = slog.Default()
	}
	return &ConfigService{Name: serviceName, raw: raw, log: log.With("svc", serviceName)}
}

func (s *ConfigService) source(ctx context.Context) ([]byte, error) {
	if len(s.raw) > 0 {
		return s.raw, nil
	}
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return nil, errNoDeviceID
	}
	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return nil, errors.New("no embedded config for device: " + device)
	}
	return raw, nil
}

func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	raw, err := s.source(ctx)
	if err != nil {
		return err
	}
	sections, err := ParseBoard(raw)
	if err != nil {
		return err
	}
	for k, v := range sections {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
		s.log.Debug("config published", "section", k)
	}
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			s.log.Error("config publish failed", "err", err)
		}
	}()
}

// ParseBoard splits a board config into its top-level sections.
func ParseBoard(raw []byte) (sections map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			sections, err = nil, errBadJSON
		}
	}()

	r := tinyjson.Raw(raw)
	if r.Peek() != tinyjson.StartObject {
		return nil, errNotObject
	}
	sections = map[string]any{}
	for key := r.StartObject(); key != nil; key = r.ContinueObject() {
		name := key.Str()
		if name == "hal" {
			sections[name] = parseHAL(&r)
			continue
		}
		sections[name] = r.Value()
	}
	r.EnsureEOF()
	return sections, nil
}

// parseHAL reads {"devices":[{id,type,params,bus_ref}, ...]}. Unknown keys
// are skipped.
func parseHAL(r *tinyjson.Raw) types.HALConfig {
	var cfg types.HALConfig
	if r.Null() {
		return cfg
	}
	for key := r.StartObject(); key != nil; key = r.ContinueObject() {
		if key.Str() != "devices" {
			r.Skip()
			continue
		}
		if r.Null() {
			continue
		}
		for r.StartArray(); r.ContinueArray(); {
			cfg.Devices = append(cfg.Devices, parseDevice(r))
		}
	}
	return cfg
}

func parseDevice(r *tinyjson.Raw) types.HALDevice {
	var d types.HALDevice
	for key := r.StartObject(); key != nil; key = r.ContinueObject() {
		switch key.Str() {
		case "id":
			d.ID = r.Str()
		case "type":
			d.Type = r.Str()
		case "params":
			d.Params = r.Value()
		case "bus_ref":
			for k := r.StartObject(); k != nil; k = r.ContinueObject() {
				switch k.Str() {
				case "type":
					d.BusRef.Type = r.Str()
				case "id":
					d.BusRef.ID = r.Str()
				default:
					r.Skip()
				}
			}
		default:
			r.Skip()
		}
	}
	return d
}
