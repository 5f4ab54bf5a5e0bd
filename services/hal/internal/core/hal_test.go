package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"esp32-devkit-go/bus"
	"esp32-devkit-go/errcode"
	"esp32-devkit-go/types"
)

const fakeType = "test_fake"

type fakeParams struct {
	Name string `yaml:"name"`
}

type fakeDevice struct {
	id   string
	name string
	pub  EventEmitter

	mu    sync.Mutex
	verbs []string
}

func (d *fakeDevice) ID() string { return d.id }

func (d *fakeDevice) Capabilities() []CapabilitySpec {
	return []CapabilitySpec{{Kind: types.KindTemperature, Name: d.name, Info: types.Info{SchemaVersion: 1, Driver: fakeType}}}
}

func (d *fakeDevice) Init(context.Context) error { return nil }
func (d *fakeDevice) Close() error               { return nil }

func (d *fakeDevice) Control(a CapAddr, verb string, _ any) (EnqueueResult, error) {
	d.mu.Lock()
	d.verbs = append(d.verbs, verb)
	d.mu.Unlock()
	switch verb {
	case "read":
		d.pub.Emit(Event{Addr: a, Payload: types.TemperatureValue{DeciC: 215}})
		return EnqueueResult{OK: true}, nil
	case "fail":
		d.pub.Emit(Event{Addr: a, Err: string(errcode.ConnectionTimeout)})
		return EnqueueResult{OK: true}, nil
	case "busy":
		return EnqueueResult{OK: false}, nil
	}
	return EnqueueResult{OK: false, Error: errcode.Unsupported}, nil
}

func (d *fakeDevice) count(verb string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, v := range d.verbs {
		if v == verb {
			n++
		}
	}
	return n
}

var (
	builtMu sync.Mutex
	built   = map[string]*fakeDevice{}
)

type fakeBuilder struct{}

func (fakeBuilder) Build(_ context.Context, in BuilderInput) (Device, error) {
	var p fakeParams
	if err := DecodeParams(in.Params, &p); err != nil {
		return nil, err
	}
	d := &fakeDevice{id: in.ID, name: p.Name, pub: in.Res.Pub}
	builtMu.Lock()
	built[in.ID] = d
	builtMu.Unlock()
	return d, nil
}

func init() { RegisterBuilder(fakeType, fakeBuilder{}) }

func startHAL(t *testing.T) *bus.Connection {
	t.Helper()
	b := bus.NewBus(32)
	conn := b.NewConnection("test")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go NewHAL(b.NewConnection("hal"), Resources{}).Run(ctx)
	return conn
}

func applyFake(conn *bus.Connection, id string, pollers ...types.PollSpec) {
	conn.Publish(conn.NewMessage(topicConfigHAL(), types.HALConfig{
		Devices: []types.HALDevice{{ID: id, Type: fakeType, Params: map[string]any{"name": id}}},
		Pollers: pollers,
	}, true))
}

func waitFor(t *testing.T, sub *bus.Subscription, d time.Duration) *bus.Message {
	t.Helper()
	select {
	case m := <-sub.Channel():
		return m
	case <-time.After(d):
		t.Fatalf("timeout on %s", sub.Topic())
	}
	return nil
}

func waitState(t *testing.T, conn *bus.Connection, level string) {
	t.Helper()
	sub := conn.Subscribe(topicHALState())
	defer conn.Unsubscribe(sub)
	deadline := time.After(time.Second)
	for {
		select {
		case m := <-sub.Channel():
			if st, ok := m.Payload.(types.HALState); ok && st.Level == level {
				return
			}
		case <-deadline:
			t.Fatalf("HAL never reached %q", level)
		}
	}
}

func TestHAL_RejectsControlBeforeConfig(t *testing.T) {
	conn := startHAL(t)
	waitState(t, conn, "idle")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	a := CapAddr{Domain: "env", Kind: types.KindTemperature, Name: "t0"}
	reply, err := conn.RequestWait(ctx, conn.NewMessage(CapCtrl(a, "read"), nil, false))
	if err != nil {
		t.Fatal(err)
	}
	if r, ok := reply.Payload.(types.ErrorReply); !ok || r.Error != string(errcode.HALNotReady) {
		t.Fatalf("reply = %#v", reply.Payload)
	}
}

func TestHAL_PublishesInfoStatusAndValue(t *testing.T) {
	conn := startHAL(t)
	a := CapAddr{Domain: "env", Kind: types.KindTemperature, Name: "t1"}
	info := conn.Subscribe(capInfo(a))
	status := conn.Subscribe(capStatus(a))
	value := conn.Subscribe(capValue(a))

	applyFake(conn, "t1")
	waitState(t, conn, "ready")

	if m := waitFor(t, info, time.Second); m.Payload.(types.Info).Driver != fakeType {
		t.Fatalf("info = %#v", m.Payload)
	}
	if m := waitFor(t, status, time.Second); m.Payload.(types.CapabilityStatus).Link != types.LinkDown {
		t.Fatalf("initial status = %#v", m.Payload)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	reply, err := conn.RequestWait(ctx, conn.NewMessage(CapCtrl(a, "read"), nil, false))
	if err != nil {
		t.Fatal(err)
	}
	if r, ok := reply.Payload.(types.OKReply); !ok || !r.OK {
		t.Fatalf("reply = %#v", reply.Payload)
	}
	m := waitFor(t, value, time.Second)
	if !m.Retained || m.Payload.(types.TemperatureValue).DeciC != 215 {
		t.Fatalf("value = %#v retained=%v", m.Payload, m.Retained)
	}
	if m := waitFor(t, status, time.Second); m.Payload.(types.CapabilityStatus).Link != types.LinkUp {
		t.Fatalf("status after value = %#v", m.Payload)
	}
}

func TestHAL_ErrorEventDegradesStatusOnly(t *testing.T) {
	conn := startHAL(t)
	a := CapAddr{Domain: "env", Kind: types.KindTemperature, Name: "t2"}
	applyFake(conn, "t2")
	waitState(t, conn, "ready")

	status := conn.Subscribe(capStatus(a))
	waitFor(t, status, time.Second) // retained "down"
	value := conn.Subscribe(capValue(a))

	conn.Publish(conn.NewMessage(CapCtrl(a, "fail"), nil, false))
	m := waitFor(t, status, time.Second)
	st := m.Payload.(types.CapabilityStatus)
	if st.Link != types.LinkDegraded || st.Error != string(errcode.ConnectionTimeout) {
		t.Fatalf("status = %#v", st)
	}
	select {
	case m := <-value.Channel():
		t.Fatalf("unexpected value %#v", m.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHAL_ControlErrors(t *testing.T) {
	conn := startHAL(t)
	applyFake(conn, "t3")
	waitState(t, conn, "ready")

	cases := []struct {
		a    CapAddr
		verb string
		want errcode.Code
	}{
		{CapAddr{"env", types.KindTemperature, "nope"}, "read", errcode.UnknownCapability},
		{CapAddr{"env", types.KindTemperature, "t3"}, "dance", errcode.Unsupported},
		{CapAddr{"env", types.KindTemperature, "t3"}, "busy", errcode.Busy},
		{CapAddr{"env", types.KindTemperature, "t3"}, "poll_start", errcode.InvalidPayload},
	}
	for _, c := range cases {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		reply, err := conn.RequestWait(ctx, conn.NewMessage(CapCtrl(c.a, c.verb), nil, false))
		cancel()
		if err != nil {
			t.Fatal(err)
		}
		if r, ok := reply.Payload.(types.ErrorReply); !ok || r.Error != string(c.want) {
			t.Fatalf("%s: reply = %#v, want %s", c.verb, reply.Payload, c.want)
		}
	}
}

func TestHAL_ConfigPollerDrivesReads(t *testing.T) {
	conn := startHAL(t)
	a := CapAddr{Domain: "env", Kind: types.KindTemperature, Name: "t4"}
	value := conn.Subscribe(capValue(a))
	applyFake(conn, "t4", types.PollSpec{Kind: types.KindTemperature, Name: "t4", Verb: "read", IntervalMs: 10})

	for i := 0; i < 3; i++ {
		waitFor(t, value, time.Second)
	}
}

func TestHAL_PollStartStop(t *testing.T) {
	conn := startHAL(t)
	a := CapAddr{Domain: "env", Kind: types.KindTemperature, Name: "t5"}
	applyFake(conn, "t5")
	waitState(t, conn, "ready")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := conn.RequestWait(ctx, conn.NewMessage(CapCtrl(a, "poll_start"), types.PollStart{IntervalMs: 10}, false)); err != nil {
		t.Fatal(err)
	}
	value := conn.Subscribe(capValue(a))
	waitFor(t, value, time.Second)

	if _, err := conn.RequestWait(ctx, conn.NewMessage(CapCtrl(a, "poll_stop"), types.PollStop{}, false)); err != nil {
		t.Fatal(err)
	}
	builtMu.Lock()
	d := built["t5"]
	builtMu.Unlock()
	time.Sleep(30 * time.Millisecond)
	n := d.count("read")
	time.Sleep(60 * time.Millisecond)
	if d.count("read") != n {
		t.Fatalf("reads continued after poll_stop: %d -> %d", n, d.count("read"))
	}
}

func TestDecodeParams(t *testing.T) {
	var p fakeParams
	if err := DecodeParams(map[string]any{"name": "x"}, &p); err != nil || p.Name != "x" {
		t.Fatalf("map: %v %#v", err, p)
	}
	if err := DecodeParams(fakeParams{Name: "y"}, &p); err != nil || p.Name != "y" {
		t.Fatalf("typed: %v %#v", err, p)
	}
	if err := DecodeParams(nil, &p); errcode.Of(err) != errcode.InvalidParams {
		t.Fatalf("nil: %v", err)
	}
}

func TestAs(t *testing.T) {
	if v, code := As[types.LEDSet](types.LEDSet{Level: true}); code != "" || !v.Level {
		t.Fatal("typed payload rejected")
	}
	if _, code := As[types.LEDSet]("on"); code != errcode.InvalidPayload {
		t.Fatalf("code = %q", code)
	}
	if v, code := As[types.PollStop](nil); code != "" || v.Verb != "" {
		t.Fatal("nil payload should be the zero value")
	}
}
