//go:build !tinygo

// Package bridge mirrors HAL capabilities onto an MQTT broker and routes
// control requests from the broker back onto the bus.
//
// Bus topic hal/cap/<domain>/<kind>/<name>/<leaf...> maps to
// <prefix>/<domain>/<kind>/<name>/<leaf...>. Control arrives on
// <prefix>/<domain>/<kind>/<name>/control/<verb> and its reply is published
// on the same topic with a trailing /reply.
package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"esp32-devkit-go/bus"
	"esp32-devkit-go/errcode"
	"esp32-devkit-go/types"
	"esp32-devkit-go/x/timex"
)

const requestTimeout = 2 * time.Second

var (
	topicConfigBridge = bus.T("config", "bridge")
	topicState        = bus.T("bridge", "state")
)

// Start runs the bridge until ctx is cancelled. It waits for a
// types.BridgeConfig on config/bridge and (re)connects on each new one.
func Start(ctx context.Context, conn *bus.Connection) {
	s := &Service{conn: conn, dial: Dial}
	s.run(ctx)
}

type Service struct {
	conn *bus.Connection
	dial func(ctx context.Context, cfg types.BridgeConfig) (Client, error)

	mu     sync.Mutex
	curRun context.CancelFunc
}

func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfigBridge)
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
			cfg, ok := msg.Payload.(types.BridgeConfig)
			if !ok || cfg.Broker == "" {
				s.publishState("error", "config_invalid", nil)
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

func (s *Service) reconfigure(parent context.Context, cfg types.BridgeConfig) {
	s.stopCurrent()
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.curRun = cancel
	s.mu.Unlock()
	go s.runLink(ctx, cfg)
}

// runLink dials with backoff and then pumps until the link drops.
func (s *Service) runLink(ctx context.Context, cfg types.BridgeConfig) {
	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		cl, err := s.dial(ctx, cfg)
		if err != nil {
			s.publishState("degraded", "dial_failed_retrying", err)
			if !sleep(ctx, backoff()) {
				return
			}
			continue
		}
		s.publishState("up", "link_established", nil)
		err = s.handleLink(ctx, cl, cfg)
		cl.Close()
		if err == nil {
			return
		}
		s.publishState("degraded", "link_lost_retrying", err)
		if !sleep(ctx, backoff()) {
			return
		}
	}
}

// handleLink forwards bus → broker and broker → bus until ctx ends or the
// client reports a lost connection.
func (s *Service) handleLink(ctx context.Context, cl Client, cfg types.BridgeConfig) error {
	m := mapper{prefix: cfg.Prefix}
	up := s.conn.Subscribe(bus.T("hal", "cap", bus.MultiLevel))
	defer s.conn.Unsubscribe(up)

	err := cl.Subscribe(m.controlFilter(), cfg.QoS, func(topic string, payload []byte) {
		go s.forwardControl(ctx, cl, cfg.QoS, m, topic, payload)
	})
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-cl.Lost():
			return errors.New("connection lost")
		case msg, ok := <-up.Channel():
			if !ok {
				return nil
			}
			topic, fwd := m.outbound(msg.Topic)
			if !fwd {
				continue
			}
			b, err := encode(msg.Payload)
			if err != nil {
				println("[bridge] encode", msg.Topic.String(), err.Error())
				continue
			}
			if err := cl.Publish(topic, cfg.QoS, msg.Retained, b); err != nil {
				return err
			}
		}
	}
}

// forwardControl turns one broker control message into a bus request and
// publishes the HAL's reply back to the broker.
func (s *Service) forwardControl(ctx context.Context, cl Client, qos byte, m mapper, topic string, raw []byte) {
	busTopic, kind, verb, ok := m.inbound(topic)
	if !ok {
		return
	}
	var reply any
	payload, err := decodeControl(types.Kind(kind), verb, raw)
	if err != nil {
		reply = types.ErrorReply{OK: false, Error: string(errcode.InvalidPayload)}
	} else {
		rctx, cancel := context.WithTimeout(ctx, requestTimeout)
		resp, err := s.conn.RequestWait(rctx, s.conn.NewMessage(busTopic, payload, false))
		cancel()
		if err != nil {
			reply = types.ErrorReply{OK: false, Error: string(errcode.Timeout)}
		} else {
			reply = resp.Payload
		}
	}
	b, err := encode(reply)
	if err != nil {
		return
	}
	if err := cl.Publish(topic+"/reply", qos, false, b); err != nil {
		println("[bridge] reply publish failed:", err.Error())
	}
}

func (s *Service) publishState(level, status string, err error) {
	st := types.LinkState{Level: level, Status: status, TSms: timex.NowMs()}
	if err != nil {
		st.Error = err.Error()
	}
	s.conn.Publish(s.conn.NewMessage(topicState, st, true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	cur := min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
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
