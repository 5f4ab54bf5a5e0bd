//go:build !tinygo

package bridge

import (
	"context"
	"errors"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"esp32-devkit-go/types"
)

const opTimeout = 5 * time.Second

// Client is the slice of an MQTT session the bridge needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(filter string, qos byte, cb func(topic string, payload []byte)) error
	// Lost is closed when the session drops.
	Lost() <-chan struct{}
	Close()
}

type pahoClient struct {
	c    mqtt.Client
	lost chan struct{}
}

// Dial connects to cfg.Broker. Paho's own reconnect is disabled; the bridge
// supervises the session.
func Dial(ctx context.Context, cfg types.BridgeConfig) (Client, error) {
	pc := &pahoClient{lost: make(chan struct{})}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(false).
		SetConnectTimeout(opTimeout).
		SetConnectionLostHandler(func(mqtt.Client, error) { close(pc.lost) })
	pc.c = mqtt.NewClient(opts)

	if err := connect(ctx, pc.c); err != nil {
		return nil, err
	}
	return pc, nil
}

// connect waits for c to connect. Cancelling ctx abandons the attempt and
// stops the client's connect goroutine.
func connect(ctx context.Context, c mqtt.Client) error {
	tok := c.Connect()
	select {
	case <-ctx.Done():
		c.Disconnect(0)
		return ctx.Err()
	case <-tok.Done():
	}
	return tok.Error()
}

func wait(tok mqtt.Token) error {
	if !tok.WaitTimeout(opTimeout) {
		return errors.New("mqtt: operation timed out")
	}
	return tok.Error()
}

func (p *pahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	return wait(p.c.Publish(topic, qos, retained, payload))
}

func (p *pahoClient) Subscribe(filter string, qos byte, cb func(string, []byte)) error {
	return wait(p.c.Subscribe(filter, qos, func(_ mqtt.Client, m mqtt.Message) {
		cb(m.Topic(), m.Payload())
	}))
}

func (p *pahoClient) Lost() <-chan struct{} { return p.lost }

func (p *pahoClient) Close() { p.c.Disconnect(250) }
