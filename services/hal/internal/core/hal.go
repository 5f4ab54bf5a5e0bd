package core

import (
	"context"
	"time"

	"esp32-devkit-go/bus"
	"esp32-devkit-go/errcode"
	"esp32-devkit-go/types"
	"esp32-devkit-go/x/timex"
)

const (
	eventQueueLen = 16
	pollQueueLen  = 4
)

// HAL owns devices and the capability index. Everything it publishes comes
// from the Run goroutine.
type HAL struct {
	conn *bus.Connection
	res  Resources

	dev      map[string]Device  // devID -> device
	capIndex map[CapAddr]string // capability -> devID

	evCh   chan Event
	pollCh chan PollReq
	poller *Poller
}

func NewHAL(conn *bus.Connection, res Resources) *HAL {
	h := &HAL{
		conn:     conn,
		res:      res,
		dev:      map[string]Device{},
		capIndex: map[CapAddr]string{},
		evCh:     make(chan Event, eventQueueLen),
		pollCh:   make(chan PollReq, pollQueueLen),
	}
	h.poller = NewPoller(h.pollCh)
	h.res.Pub = h
	return h
}

func (h *HAL) Run(ctx context.Context) {
	cfgSub := h.conn.Subscribe(topicConfigHAL())
	ctrlSub := h.conn.Subscribe(ctrlWildcard())
	defer h.conn.Unsubscribe(cfgSub)
	defer h.conn.Unsubscribe(ctrlSub)

	go h.poller.Run(ctx)

	h.pubHALState("idle", "awaiting_config")
	ready := false
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.pubHALState("stopped", "context_cancelled")
			return
		case msg := <-cfgSub.Channel():
			cfg, ok := halConfigOf(msg.Payload)
			if !ok {
				println("[hal] ignoring config of unexpected type")
				continue
			}
			h.applyConfig(ctx, cfg)
			if !ready {
				ready = true
				h.pubHALState("ready", "")
			}
		case m := <-ctrlSub.Channel():
			if !ready {
				h.replyErr(m, errcode.HALNotReady)
				continue
			}
			h.handleControl(m)
		case req := <-h.pollCh:
			h.handlePoll(req)
		case ev := <-h.evCh:
			h.handleEvent(ev)
		}
	}
}

func halConfigOf(p any) (types.HALConfig, bool) {
	switch v := p.(type) {
	case types.HALConfig:
		return v, true
	case *types.HALConfig:
		if v != nil {
			return *v, true
		}
	}
	return types.HALConfig{}, false
}

// applyConfig is additive: devices already built are left alone.
func (h *HAL) applyConfig(ctx context.Context, cfg types.HALConfig) {
	for _, dc := range cfg.Devices {
		if _, exists := h.dev[dc.ID]; exists {
			continue
		}
		b, ok := lookupBuilder(dc.Type)
		if !ok {
			println("[hal] no builder for type:", dc.Type, "id:", dc.ID)
			continue
		}
		dev, err := b.Build(ctx, BuilderInput{ID: dc.ID, Type: dc.Type, Params: dc.Params, Res: h.res})
		if err != nil {
			println("[hal] build failed for:", dc.ID, "err:", err.Error())
			continue
		}
		if err := dev.Init(ctx); err != nil {
			println("[hal] init failed for:", dc.ID, "err:", err.Error())
			_ = dev.Close()
			continue
		}
		h.dev[dev.ID()] = dev

		for _, cs := range dev.Capabilities() {
			a := CapAddr{Domain: cs.Domain, Kind: cs.Kind, Name: cs.Name}
			if a.Domain == "" {
				a.Domain = defaultDomainFor(cs.Kind)
			}
			if a.Name == "" {
				a.Name = dev.ID()
			}
			h.capIndex[a] = dev.ID()

			h.conn.Publish(h.conn.NewMessage(capInfo(a), cs.Info, true))
			h.conn.Publish(h.conn.NewMessage(
				capStatus(a),
				types.CapabilityStatus{Link: types.LinkDown, TSms: timex.NowMs()},
				true,
			))
		}
	}

	for _, ps := range cfg.Pollers {
		a := CapAddr{Domain: ps.Domain, Kind: ps.Kind, Name: ps.Name}
		if a.Domain == "" {
			a.Domain = defaultDomainFor(ps.Kind)
		}
		if _, ok := h.capIndex[a]; !ok {
			println("[hal] poller for unknown capability:", capBase(a).String())
			continue
		}
		verb := ps.Verb
		if verb == "" {
			verb = "read"
		}
		h.poller.Upsert(a, verb, ms(ps.IntervalMs), ms(uint32(ps.JitterMs)))
	}
}

func (h *HAL) handleControl(msg *bus.Message) {
	// hal/cap/<domain>/<kind>/<name>/control/<verb>
	if msg.Topic.Len() != 7 {
		h.replyErr(msg, errcode.InvalidTopic)
		return
	}
	domain, _ := msg.Topic.At(2).(string)
	kind, _ := msg.Topic.At(3).(string)
	name, _ := msg.Topic.At(4).(string)
	verb, _ := msg.Topic.At(6).(string)
	a := CapAddr{Domain: domain, Kind: types.Kind(kind), Name: name}

	dev := h.owner(a)
	if dev == nil {
		h.replyErr(msg, errcode.UnknownCapability)
		return
	}

	switch verb {
	case "poll_start":
		h.pollStart(msg, a)
		return
	case "poll_stop":
		h.pollStop(msg, a)
		return
	}

	res, err := dev.Control(a, verb, msg.Payload)
	if err != nil {
		h.replyFromError(msg, err)
		return
	}
	if res.OK {
		h.replyOK(msg)
		return
	}
	code := res.Error
	if code == "" {
		code = errcode.Busy
	}
	h.replyErr(msg, code)
}

func (h *HAL) pollStart(msg *bus.Message, a CapAddr) {
	ps, code := As[types.PollStart](msg.Payload)
	if code != "" || ps.IntervalMs == 0 {
		h.replyErr(msg, errcode.InvalidPayload)
		return
	}
	if ps.Verb == "" {
		ps.Verb = "read"
	}
	h.poller.Upsert(a, ps.Verb, ms(ps.IntervalMs), ms(uint32(ps.JitterMs)))
	h.replyOK(msg)
}

func (h *HAL) pollStop(msg *bus.Message, a CapAddr) {
	ps, code := As[types.PollStop](msg.Payload)
	if code != "" {
		h.replyErr(msg, code)
		return
	}
	if ps.Verb == "" {
		ps.Verb = "read"
	}
	h.poller.Stop(a, ps.Verb)
	h.replyOK(msg)
}

// handlePoll issues a scheduled control. Busy is expected when a previous
// read is still running and is not logged.
func (h *HAL) handlePoll(req PollReq) {
	dev := h.owner(req.Addr)
	if dev == nil {
		h.poller.Stop(req.Addr, req.Verb)
		return
	}
	res, err := dev.Control(req.Addr, req.Verb, nil)
	if err != nil {
		println("[hal] poll", capBase(req.Addr).String(), req.Verb, "err:", err.Error())
		return
	}
	if !res.OK && res.Error != "" && res.Error != errcode.Busy {
		println("[hal] poll", capBase(req.Addr).String(), req.Verb, "rejected:", string(res.Error))
	}
}

func (h *HAL) handleEvent(ev Event) {
	a := ev.Addr
	if ev.TSms == 0 {
		ev.TSms = timex.NowMs()
	}

	// Errors only degrade the status; the last value stays retained.
	if ev.Err != "" {
		h.conn.Publish(h.conn.NewMessage(
			capStatus(a),
			types.CapabilityStatus{Link: types.LinkDegraded, TSms: ev.TSms, Error: ev.Err},
			true,
		))
		return
	}

	switch {
	case ev.EventTag != "":
		h.conn.Publish(h.conn.NewMessage(capEventTagged(a, ev.EventTag), ev.Payload, false))
	case ev.IsEvent:
		h.conn.Publish(h.conn.NewMessage(capEvent(a), ev.Payload, false))
	default:
		h.conn.Publish(h.conn.NewMessage(capValue(a), ev.Payload, true))
	}
	h.conn.Publish(h.conn.NewMessage(
		capStatus(a),
		types.CapabilityStatus{Link: types.LinkUp, TSms: ev.TSms},
		true,
	))
}

func (h *HAL) owner(a CapAddr) Device {
	id, ok := h.capIndex[a]
	if !ok {
		return nil
	}
	return h.dev[id]
}

func (h *HAL) closeAll() {
	for id, d := range h.dev {
		if err := d.Close(); err != nil {
			println("[hal] close failed for:", id, "err:", err.Error())
		}
	}
}

func (h *HAL) pubHALState(level, status string) {
	h.conn.Publish(h.conn.NewMessage(
		topicHALState(),
		types.HALState{Level: level, Status: status, TSms: timex.NowMs()},
		true,
	))
}

func defaultDomainFor(k types.Kind) string {
	switch k {
	case types.KindTemperature, types.KindHumidity:
		return "env"
	default:
		return "io"
	}
}

func ms(v uint32) time.Duration { return time.Duration(v) * time.Millisecond }

// Emit hands an event to the Run goroutine. It never blocks.
func (h *HAL) Emit(ev Event) bool {
	select {
	case h.evCh <- ev:
		return true
	default:
		return false
	}
}
