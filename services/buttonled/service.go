// Package buttonled mirrors a button capability onto an LED capability.
package buttonled

import (
	"context"

	"esp32-devkit-go/bus"
	"esp32-devkit-go/types"
)

var topicConfigButtonLED = bus.T("config", "buttonled")

type Service struct {
	cfg    types.ButtonLEDConfig
	btnSub *bus.Subscription
}

func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go s.run(ctx, conn)
}

func (s *Service) run(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigButtonLED)
	defer conn.Unsubscribe(cfgSub)
	defer s.unwatch(conn)

	for {
		var btn <-chan *bus.Message
		if s.btnSub != nil {
			btn = s.btnSub.Channel()
		}
		select {
		case <-ctx.Done():
			return
		case m := <-cfgSub.Channel():
			cfg, ok := m.Payload.(types.ButtonLEDConfig)
			if !ok || cfg.Button == "" || cfg.LED == "" {
				println("[buttonled] ignoring invalid config")
				continue
			}
			s.unwatch(conn)
			s.cfg = cfg
			s.btnSub = conn.Subscribe(bus.T("hal", "cap", "io", string(types.KindButton), cfg.Button, "value"))
		case m, ok := <-btn:
			if !ok {
				s.btnSub = nil
				continue
			}
			v, ok := m.Payload.(types.ButtonValue)
			if !ok {
				continue
			}
			on := v.Pressed != s.cfg.Invert
			conn.Publish(conn.NewMessage(
				bus.T("hal", "cap", "io", string(types.KindLED), s.cfg.LED, "control", "set"),
				types.LEDSet{Level: on},
				false,
			))
		}
	}
}

func (s *Service) unwatch(conn *bus.Connection) {
	if s.btnSub != nil {
		conn.Unsubscribe(s.btnSub)
		s.btnSub = nil
	}
}
