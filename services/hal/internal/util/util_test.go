package util

import (
	"testing"
	"time"
)

type params struct {
	A int    `json:"a"`
	B string `json:"b"`
}

func TestDecodeJSON(t *testing.T) {
	for name, in := range map[string]any{
		"bytes":  []byte(`{"a":1,"b":"x"}`),
		"string": `{"a":1,"b":"x"}`,
		"map":    map[string]any{"a": 1, "b": "x"},
	} {
		var p params
		if err := DecodeJSON(in, &p); err != nil {
			t.Fatalf("%s: decode failed: %v", name, err)
		}
		if p.A != 1 || p.B != "x" {
			t.Fatalf("%s: unexpected result: %+v", name, p)
		}
	}
}

func TestPayload(t *testing.T) {
	typed := params{A: 2, B: "y"}
	for name, in := range map[string]any{
		"typed":   typed,
		"pointer": &typed,
		"map":     map[string]any{"a": 2.0, "b": "y"},
	} {
		got, err := Payload[params](in)
		if err != nil || got != typed {
			t.Fatalf("%s: got %+v, %v", name, got, err)
		}
	}
	if got, err := Payload[params](nil); err != nil || got != (params{}) {
		t.Fatalf("nil: got %+v, %v", got, err)
	}
	if _, err := Payload[params]("not json"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestClampDuration(t *testing.T) {
	lo, hi := 200*time.Millisecond, time.Hour
	if ClampDuration(time.Millisecond, lo, hi) != lo {
		t.Fatal("clamp low failed")
	}
	if ClampDuration(2*time.Hour, lo, hi) != hi {
		t.Fatal("clamp high failed")
	}
	if ClampDuration(time.Second, lo, hi) != time.Second {
		t.Fatal("clamp mid failed")
	}
}

func TestResetAndDrainTimer(t *testing.T) {
	tm := time.NewTimer(time.Hour)
	if !tm.Stop() {
		DrainTimer(tm)
	}
	ResetTimer(tm, 1*time.Millisecond)
	select {
	case <-tm.C:
	case <-time.After(50 * time.Millisecond):
		t.Fatal("timer did not fire after ResetTimer")
	}
	// Negative reset clamps to zero and should fire immediately.
	ResetTimer(tm, -1)
	select {
	case <-tm.C:
	case <-time.After(50 * time.Millisecond):
		t.Fatal("timer did not fire after negative ResetTimer")
	}
}
