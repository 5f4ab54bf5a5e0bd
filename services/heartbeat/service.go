// Package heartbeat prints a liveness line on an interval and optionally
// toggles an LED capability on every beat.
package heartbeat

import (
	"context"
	"time"

	"esp32-devkit-go/bus"
	"esp32-devkit-go/types"
)

const defaultInterval = time.Second

var topicConfigHeartbeat = bus.T("config", "heartbeat")

type Service struct {
	interval time.Duration
	led      string
	beats    uint32
}

func (s *Service) applyConfig(cfg types.HeartbeatConfig, tick *time.Ticker) {
	if cfg.IntervalMs > 0 {
		s.interval = time.Duration(cfg.IntervalMs) * time.Millisecond
		tick.Reset(s.interval)
	}
	s.led = cfg.BlinkLED
	println("[heartbeat] interval", s.interval.String(), "led", s.led)
}

func (s *Service) beat(conn *bus.Connection, t time.Time) {
	s.beats++
	println("[heartbeat]", t.Format("15:04:05"), s.beats)
	if s.led == "" {
		return
	}
	conn.Publish(conn.NewMessage(bus.T("hal", "cap", "io", string(types.KindLED), s.led, "control", "toggle"), nil, false))
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)

	s.interval = defaultInterval
	tick := time.NewTicker(s.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			println("[heartbeat] stopping")
			return
		case t := <-tick.C:
			s.beat(conn, t)
		case msg := <-cfgSub.Channel():
			if cfg, ok := msg.Payload.(types.HeartbeatConfig); ok {
				s.applyConfig(cfg, tick)
			}
		}
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
