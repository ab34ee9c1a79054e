package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"camsensor-go/bus"
	"camsensor-go/types"
)

var (
	topicConfigHeartbeat = bus.Topic{"config", "heartbeat"}
	topicHeartbeat       = bus.Topic{"heartbeat"}
)

const defaultInterval = time.Second

type Service struct {
	log   *slog.Logger
	start time.Time
	seq   uint64
}

func New(log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{log: log.With("svc", "heartbeat")}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	s.start = time.Now()
	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("heartbeat service stopping")
			return
		case t := <-tick.C:
			s.beat(conn, t)
		case msg := <-cfgSub.Channel():
			if iv, ok := interval(msg.Payload); ok {
				tick.Reset(iv)
				s.log.Info("heartbeat interval set", "interval", iv)
			} else {
				s.log.Warn("ignoring heartbeat config", "payload", msg.Payload)
			}
		}
	}
}

func (s *Service) beat(conn *bus.Connection, now time.Time) {
	s.seq++
	hb := types.Heartbeat{Seq: s.seq, UptimeS: int64(now.Sub(s.start) / time.Second), TS: now}
	conn.Publish(conn.NewMessage(topicHeartbeat, hb, true))
	s.log.Debug("heartbeat", "seq", hb.Seq, "uptime_s", hb.UptimeS)
}

// interval reads {"interval": <seconds>} as decoded from JSON.
func interval(p any) (time.Duration, bool) {
	m, ok := p.(map[string]any)
	if !ok {
		return 0, false
	}
	v, ok := m["interval"].(float64)
	if !ok || v <= 0 {
		return 0, false
	}
	return time.Duration(v * float64(time.Second)), true
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
