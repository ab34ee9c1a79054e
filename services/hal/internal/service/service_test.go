package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"camsensor-go/bus"
	"camsensor-go/errcode"
	"camsensor-go/services/hal/internal/consts"
	"camsensor-go/services/hal/internal/halcore"
	"camsensor-go/services/hal/internal/registry"
	"camsensor-go/types"

	"tinygo.org/x/drivers"
)

// ---- Test fakes ----

type nopBusFactory struct{}

func (nopBusFactory) ByID(id string) (drivers.I2C, bool) { return nil, false }

type nopPinFactory struct{}

func (nopPinFactory) ByNumber(int) (halcore.GPIOPin, bool) { return nil, false }

type svcTestAdaptor struct {
	id       string
	collects atomic.Int32
	closed   atomic.Bool
}

func (a *svcTestAdaptor) ID() string { return a.id }
func (a *svcTestAdaptor) Capabilities() []halcore.CapInfo {
	return []halcore.CapInfo{{Kind: "temp", Info: types.Info{SchemaVersion: 1, Driver: "fake"}}}
}
func (a *svcTestAdaptor) Trigger(ctx context.Context) (time.Duration, error) {
	return 5 * time.Millisecond, nil
}
func (a *svcTestAdaptor) Collect(ctx context.Context) (halcore.Sample, error) {
	n := a.collects.Add(1)
	return halcore.Sample{{Kind: "temp", Payload: int(n), TS: time.Now()}}, nil
}
func (a *svcTestAdaptor) Control(kind, method string, payload any) (any, error) {
	switch method {
	case "poke":
		return types.OKReply{OK: true}, nil
	case "fail":
		return nil, errcode.OutOfRange
	}
	return nil, halcore.ErrUnsupported
}
func (a *svcTestAdaptor) Mutates(method string) bool { return method == "poke" }
func (a *svcTestAdaptor) Close() error {
	a.closed.Store(true)
	return nil
}

var lastAdaptor atomic.Pointer[svcTestAdaptor]

type svcBuilder struct{}

func (svcBuilder) Build(in registry.BuildInput) (registry.BuildOutput, error) {
	a := &svcTestAdaptor{id: in.DeviceID}
	lastAdaptor.Store(a)
	return registry.BuildOutput{
		Adaptor:     a,
		BusID:       "bus0",
		SampleEvery: time.Hour,
	}, nil
}

type failBuilder struct{}

func (failBuilder) Build(in registry.BuildInput) (registry.BuildOutput, error) {
	return registry.BuildOutput{}, errcode.NotDetected
}

func ensureRegistered(t *testing.T, typ string, b registry.Builder) {
	t.Helper()
	if _, ok := registry.Lookup(typ); !ok {
		registry.RegisterBuilder(typ, b)
	}
}

func recvWithin[T any](t *testing.T, ch <-chan T, d time.Duration) (T, bool) {
	t.Helper()
	var zero T
	select {
	case v := <-ch:
		return v, true
	case <-time.After(d):
		return zero, false
	}
}

func waitHALLevel(t *testing.T, conn *bus.Connection, level string) types.HALState {
	t.Helper()
	sub := conn.Subscribe(bus.Topic{consts.TokHAL, consts.TokState})
	defer conn.Unsubscribe(sub)
	deadline := time.After(time.Second)
	for {
		select {
		case msg := <-sub.Channel():
			if st, ok := msg.Payload.(types.HALState); ok && st.Level == level {
				return st
			}
		case <-deadline:
			t.Fatalf("timeout waiting for hal/state level=%q", level)
			return types.HALState{}
		}
	}
}

func startService(t *testing.T, name string) (*bus.Connection, context.CancelFunc) {
	t.Helper()
	b := bus.NewBus(8)
	conn := b.NewConnection(name)
	s := New(conn, nopBusFactory{}, nopPinFactory{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	waitHALLevel(t, conn, "idle")
	return conn, cancel
}

func request(t *testing.T, conn *bus.Connection, verb string, payload any) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg := conn.NewMessage(bus.Topic{consts.TokHAL, consts.TokCapability, "temp", 0, consts.TokControl, verb}, payload, false)
	reply, err := conn.RequestWait(ctx, msg)
	if err != nil {
		t.Fatalf("%s request failed: %v", verb, err)
	}
	return reply.Payload
}

// ---- Tests ----

func TestServicePublishesStateAndValues(t *testing.T) {
	ensureRegistered(t, "svc_testdev", svcBuilder{})
	conn, cancel := startService(t, "test")
	defer cancel()

	conn.Publish(conn.NewMessage(bus.Topic{consts.TokConfig, consts.TokHAL},
		types.HALConfig{Devices: []types.HALDevice{{ID: "d1", Type: "svc_testdev"}}}, false))
	waitHALLevel(t, conn, "ready")

	infoSub := conn.Subscribe(bus.Topic{consts.TokHAL, consts.TokCapability, "temp", 0, consts.TokInfo})
	defer conn.Unsubscribe(infoSub)
	if msg, ok := recvWithin(t, infoSub.Channel(), 500*time.Millisecond); !ok {
		t.Fatal("no retained info")
	} else if info, _ := msg.Payload.(types.Info); info.Driver != "fake" {
		t.Fatalf("unexpected info: %+v", msg.Payload)
	}

	// First reading is due shortly after configuration.
	valSub := conn.Subscribe(bus.Topic{consts.TokHAL, consts.TokCapability, "temp", 0, consts.TokValue})
	defer conn.Unsubscribe(valSub)
	if _, ok := recvWithin(t, valSub.Channel(), time.Second); !ok {
		t.Fatal("timeout waiting for value")
	}

	stSub := conn.Subscribe(bus.Topic{consts.TokHAL, consts.TokCapability, "temp", 0, consts.TokState})
	defer conn.Unsubscribe(stSub)
	if msg, ok := recvWithin(t, stSub.Channel(), 500*time.Millisecond); !ok {
		t.Fatal("timeout waiting for retained state")
	} else if st, _ := msg.Payload.(types.CapabilityState); st.Link != types.LinkUp {
		t.Fatalf("expected link up, got %+v", msg.Payload)
	}

	if ack, ok := request(t, conn, consts.CtrlReadNow, nil).(types.ReadNowAck); !ok || !ack.OK {
		t.Fatal("read_now not acknowledged")
	}
	if _, ok := recvWithin(t, valSub.Channel(), time.Second); !ok {
		t.Fatal("read_now produced no value")
	}

	ack, ok := request(t, conn, consts.CtrlSetRate, map[string]any{"period_ms": 50.0}).(types.SetRateAck)
	if !ok || !ack.OK || ack.PeriodMS != 200 {
		t.Fatalf("set_rate should clamp to 200 ms, got %+v", ack)
	}
	if er, ok := request(t, conn, consts.CtrlSetRate, types.SetRate{}).(types.ErrorReply); !ok || er.Error != "invalid_period" {
		t.Fatalf("zero period accepted: %+v", er)
	}
}

func TestServiceControlRouting(t *testing.T) {
	ensureRegistered(t, "svc_testdev3", svcBuilder{})
	conn, cancel := startService(t, "test3")
	defer cancel()

	conn.Publish(conn.NewMessage(bus.Topic{consts.TokConfig, consts.TokHAL},
		types.HALConfig{Devices: []types.HALDevice{{ID: "d3", Type: "svc_testdev3"}}}, false))
	waitHALLevel(t, conn, "ready")

	valSub := conn.Subscribe(bus.Topic{consts.TokHAL, consts.TokCapability, "temp", 0, consts.TokValue})
	defer conn.Unsubscribe(valSub)
	// Drain the initial reading.
	recvWithin(t, valSub.Channel(), time.Second)

	if r, ok := request(t, conn, "poke", nil).(types.OKReply); !ok || !r.OK {
		t.Fatalf("poke reply: %+v", r)
	}
	// A mutating verb refreshes the value.
	if _, ok := recvWithin(t, valSub.Channel(), time.Second); !ok {
		t.Fatal("mutating verb did not refresh value")
	}

	cases := []struct {
		verb string
		want string
	}{
		{"fail", "out_of_range"},
		{"nope", "unsupported"},
	}
	for _, tc := range cases {
		er, ok := request(t, conn, tc.verb, nil).(types.ErrorReply)
		if !ok || er.OK || er.Error != tc.want {
			t.Errorf("%s: got %+v, want error %q", tc.verb, er, tc.want)
		}
	}

	// Unknown capability id.
	ctx, cancelReq := context.WithTimeout(context.Background(), time.Second)
	defer cancelReq()
	reply, err := conn.RequestWait(ctx, conn.NewMessage(
		bus.Topic{consts.TokHAL, consts.TokCapability, "temp", 9, consts.TokControl, "poke"}, nil, false))
	if err != nil {
		t.Fatal(err)
	}
	if er, _ := reply.Payload.(types.ErrorReply); er.Error != "unknown_capability" {
		t.Fatalf("got %+v", reply.Payload)
	}
}

func TestServiceBuildFailureReportsError(t *testing.T) {
	ensureRegistered(t, "svc_faildev", failBuilder{})
	conn, cancel := startService(t, "test4")
	defer cancel()

	conn.Publish(conn.NewMessage(bus.Topic{consts.TokConfig, consts.TokHAL},
		types.HALConfig{Devices: []types.HALDevice{{ID: "bad", Type: "svc_faildev"}}}, false))
	st := waitHALLevel(t, conn, "error")
	if st.Status != "apply_config_failed" || st.Error == "" {
		t.Fatalf("unexpected state %+v", st)
	}
	if st.Error != "bad: not_detected" {
		t.Fatalf("error = %q", st.Error)
	}
}

func TestServiceApplyConfigRemovesDevices(t *testing.T) {
	ensureRegistered(t, "svc_testdev2", svcBuilder{})
	conn, cancel := startService(t, "test2")
	defer cancel()

	stSub := conn.Subscribe(bus.Topic{consts.TokHAL, consts.TokCapability, "temp", "+", consts.TokState})
	defer conn.Unsubscribe(stSub)

	waitCapLink := func(want types.Link) (any, bool) {
		deadline := time.After(2 * time.Second)
		for {
			select {
			case msg := <-stSub.Channel():
				if st, ok := msg.Payload.(types.CapabilityState); ok && st.Link == want {
					return msg.Topic[3], true
				}
			case <-deadline:
				return nil, false
			}
		}
	}

	conn.Publish(conn.NewMessage(bus.Topic{consts.TokConfig, consts.TokHAL},
		types.HALConfig{Devices: []types.HALDevice{{ID: "dX", Type: "svc_testdev2"}}}, false))
	upID, ok := waitCapLink(types.LinkUp)
	if !ok {
		t.Fatal("timeout waiting for link=up")
	}
	ad := lastAdaptor.Load()

	conn.Publish(conn.NewMessage(bus.Topic{consts.TokConfig, consts.TokHAL}, types.HALConfig{}, false))
	downID, ok := waitCapLink(types.LinkDown)
	if !ok {
		t.Fatal("timeout waiting for link=down after removal")
	}
	if downID != upID {
		t.Fatalf("down for id %v, want %v", downID, upID)
	}
	if ad == nil || !ad.closed.Load() {
		t.Fatal("removed adaptor was not closed")
	}
}

func TestAsInt(t *testing.T) {
	for _, tc := range []struct {
		in   any
		want int
		ok   bool
	}{
		{3, 3, true},
		{uint32(7), 7, true},
		{"12", 12, true},
		{"", 0, false},
		{"1a", 0, false},
		{true, 0, false},
	} {
		got, ok := asInt(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("asInt(%v) = %d,%v", tc.in, got, ok)
		}
	}
}
