// Package bridge mirrors HAL capability topics to an MQTT broker and relays
// remote control requests back onto the local bus.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"camsensor-go/bus"
)

// Start starts the bridge service. It blocks until ctx is cancelled.
// It listens for JSON config on topic {"config","bridge"} and (re)configures the link.
func Start(ctx context.Context, conn *bus.Connection, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		conn:       conn,
		stateTopic: bus.Topic{"bridge", "state"},
		log:        log.With("svc", "bridge"),
	}
	s.run(ctx)
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config is the JSON-encoded configuration expected on "config/bridge".
type Config struct {
	Transport TransportConfig `json:"transport"`
}

type TransportConfig struct {
	// "mqtt" (provided here) or other names registered via RegisterTransport.
	Type string      `json:"type"`
	MQTT *MQTTConfig `json:"mqtt,omitempty"`
}

type MQTTConfig struct {
	Broker   string `json:"broker"` // e.g. "tcp://localhost:1883"
	ClientID string `json:"client_id"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	// Prefix is prepended to every remote topic. Default "camsensor".
	Prefix string `json:"prefix,omitempty"`
	QoS    byte   `json:"qos,omitempty"`
	// RequestTimeoutMS bounds a relayed control request. Default 2000.
	RequestTimeoutMS int `json:"request_timeout_ms,omitempty"`
}

const (
	defaultPrefix         = "camsensor"
	defaultRequestTimeout = 2 * time.Second
)

// Local topics mirrored to the broker.
var mirrored = []bus.Topic{
	{"hal", "capability", "+", "+", "+"},
	{"hal", "state"},
	{"heartbeat"},
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	conn       *bus.Connection
	stateTopic bus.Topic
	log        *slog.Logger

	mu     sync.Mutex
	curRun context.CancelFunc
	curCfg atomic.Value // stores Config
}

// run waits for config and supervises a single link instance.
func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(bus.Topic{"config", "bridge"})
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState("idle", "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState("error", "config_subscription_closed", nil)
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState("error", "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

func (s *Service) stopCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
}

func (s *Service) reconfigure(parent context.Context, cfg Config) {
	s.mu.Lock()
	if s.curRun != nil {
		s.curRun()
		s.curRun = nil
	}
	ctx, cancel := context.WithCancel(parent)
	s.curRun = cancel
	s.mu.Unlock()

	s.curCfg.Store(cfg)
	go s.runLink(ctx, cfg)
}

// -----------------------------------------------------------------------------
// Link supervision
// -----------------------------------------------------------------------------

func (s *Service) runLink(ctx context.Context, cfg Config) {
	tr, err := newTransport(cfg.Transport)
	if err != nil {
		s.publishState("error", "transport_init_failed", err)
		return
	}

	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		cl, err := tr.Open(ctx)
		if err != nil {
			delay := backoff()
			s.publishState("degraded", "dial_failed_retrying", fmt.Errorf("%w (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		s.publishState("up", "link_established", nil)
		s.log.Info("link up", "transport", tr.String())
		if err := s.handleLink(ctx, cl, linkOptions(cfg.Transport)); err != nil {
			cl.Close()
			delay := backoff()
			s.log.Warn("link lost", "err", err, "retry_in", delay)
			s.publishState("degraded", "link_lost_retrying", fmt.Errorf("%w (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		cl.Close()
		// Clean close: restart only on new config.
		return
	}
}

type linkOpts struct {
	prefix  string
	timeout time.Duration
}

func linkOptions(tc TransportConfig) linkOpts {
	o := linkOpts{prefix: defaultPrefix, timeout: defaultRequestTimeout}
	if tc.MQTT != nil {
		if tc.MQTT.Prefix != "" {
			o.prefix = strings.TrimSuffix(tc.MQTT.Prefix, "/")
		}
		if tc.MQTT.RequestTimeoutMS > 0 {
			o.timeout = time.Duration(tc.MQTT.RequestTimeoutMS) * time.Millisecond
		}
	}
	return o
}

var errLinkLost = errors.New("link lost")

// handleLink mirrors local topics outward and relays remote control
// requests until ctx ends (nil) or the client drops (error).
func (s *Service) handleLink(ctx context.Context, cl Client, o linkOpts) error {
	subs := make([]*bus.Subscription, 0, len(mirrored))
	for _, t := range mirrored {
		subs = append(subs, s.conn.Subscribe(t))
	}
	defer func() {
		for _, sub := range subs {
			s.conn.Unsubscribe(sub)
		}
	}()

	fctx, stop := context.WithCancel(ctx)
	defer stop()
	in := make(chan *bus.Message, 64)
	for _, sub := range subs {
		go forward(fctx, sub.Channel(), in)
	}

	filter := o.prefix + "/hal/capability/+/+/control/+"
	err := cl.Subscribe(filter, func(topic string, payload []byte) {
		go s.relay(ctx, cl, o, topic, payload)
	})
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-cl.Done():
			return errLinkLost
		case msg := <-in:
			if err := s.mirror(cl, o.prefix, msg); err != nil {
				s.log.Debug("mirror failed", "topic", msg.Topic.String(), "err", err)
			}
		}
	}
}

func forward(ctx context.Context, src <-chan *bus.Message, dst chan<- *bus.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-src:
			if !ok {
				return
			}
			select {
			case dst <- m:
			case <-ctx.Done():
				return
			}
		}
	}
}

// mirror publishes one local message to the broker as JSON. A nil payload
// (a cleared retained topic) clears the remote retained message.
func (s *Service) mirror(cl Client, prefix string, msg *bus.Message) error {
	var b []byte
	if msg.Payload != nil {
		var err error
		if b, err = json.Marshal(msg.Payload); err != nil {
			return err
		}
	}
	return cl.Publish(remoteTopic(prefix, msg.Topic), b, msg.Retained)
}

// relay turns a remote control message into a local request and publishes
// the reply on the matching reply topic.
func (s *Service) relay(ctx context.Context, cl Client, o linkOpts, topic string, payload []byte) {
	local, replyTo, ok := localControl(o.prefix, topic)
	if !ok {
		return
	}
	var reply any
	p, err := decodePayload(payload)
	if err != nil {
		reply = map[string]any{"ok": false, "error": "invalid_payload"}
	} else {
		rctx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()
		msg, err := s.conn.RequestWait(rctx, s.conn.NewMessage(local, p, false))
		switch {
		case err == nil:
			reply = msg.Payload
		case errors.Is(err, context.DeadlineExceeded):
			reply = map[string]any{"ok": false, "error": "timeout"}
		default:
			return
		}
	}
	b, err := json.Marshal(reply)
	if err != nil {
		s.log.Warn("reply encode failed", "topic", replyTo, "err", err)
		return
	}
	if err := cl.Publish(replyTo, b, false); err != nil {
		s.log.Debug("reply publish failed", "topic", replyTo, "err", err)
	}
}

// -----------------------------------------------------------------------------
// Topic mapping
// -----------------------------------------------------------------------------

// remoteTopic renders a bus topic under prefix: {"hal","capability","camera",0,"value"}
// becomes "<prefix>/hal/capability/camera/0/value".
func remoteTopic(prefix string, t bus.Topic) string {
	return prefix + "/" + t.String()
}

// localControl maps "<prefix>/hal/capability/<kind>/<id>/control/<verb>" to
// the bus control topic and the remote reply topic
// "<prefix>/hal/capability/<kind>/<id>/reply/<verb>".
func localControl(prefix, topic string) (bus.Topic, string, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return nil, "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 6 || parts[0] != "hal" || parts[1] != "capability" || parts[4] != "control" {
		return nil, "", false
	}
	kind, verb := parts[2], parts[5]
	id, err := strconv.Atoi(parts[3])
	if err != nil || id < 0 || kind == "" || verb == "" {
		return nil, "", false
	}
	local := bus.T("hal", "capability", kind, id, "control", verb)
	reply := prefix + "/hal/capability/" + kind + "/" + parts[3] + "/reply/" + verb
	return local, reply, true
}

// decodePayload parses a JSON request body; an empty body is nil.
func decodePayload(b []byte) (any, error) {
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// -----------------------------------------------------------------------------
// Transport registry
// -----------------------------------------------------------------------------

// Client is a connected broker session.
type Client interface {
	Publish(topic string, payload []byte, retained bool) error
	Subscribe(filter string, fn func(topic string, payload []byte)) error
	// Done is closed when the session is lost.
	Done() <-chan struct{}
	Close()
}

// Transport is a pluggable broker dialler.
type Transport interface {
	Open(ctx context.Context) (Client, error)
	String() string
}

type transportFactory func(TransportConfig) (Transport, error)

var (
	regMu    sync.RWMutex
	registry = map[string]transportFactory{}
)

// RegisterTransport allows external packages to add transports.
func RegisterTransport(name string, f transportFactory) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = f
}

func newTransport(cfg TransportConfig) (Transport, error) {
	regMu.RLock()
	f, ok := registry[cfg.Type]
	regMu.RUnlock()
	if ok {
		return f(cfg)
	}
	switch cfg.Type {
	case "mqtt":
		return newMQTTTransport(cfg)
	default:
		return nil, fmt.Errorf("unknown transport type: %q", cfg.Type)
	}
}

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

func decodeConfig(p any) (Config, error) {
	var cfg Config
	switch v := p.(type) {
	case Config:
		return v, nil
	case []byte:
		if err := json.Unmarshal(v, &cfg); err != nil {
			return cfg, err
		}
	case string:
		if err := json.Unmarshal([]byte(v), &cfg); err != nil {
			return cfg, err
		}
	case map[string]any:
		// Already decoded (config service); re-marshal into the typed form.
		b, err := json.Marshal(v)
		if err != nil {
			return cfg, err
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config payload type: %T", p)
	}
	return cfg, nil
}

func (s *Service) publishState(level, status string, err error) {
	payload := map[string]any{
		"level":  level,  // "up", "degraded", "error", "idle"
		"status": status, // short machine string
		"ts_ms":  time.Now().UnixMilli(),
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(s.stateTopic, payload, true))
}

func backoffSeq(lo, hi time.Duration) func() time.Duration {
	if lo <= 0 {
		lo = 100 * time.Millisecond
	}
	if hi < lo {
		hi = lo
	}
	cur := lo
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > hi {
			cur = hi
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
