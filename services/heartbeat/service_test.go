package heartbeat

import (
	"context"
	"testing"
	"time"

	"esp32-devkit-go/bus"
	"esp32-devkit-go/types"
)

func TestHeartbeat_TogglesConfiguredLED(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("test")
	conn.Publish(conn.NewMessage(topicConfigHeartbeat, types.HeartbeatConfig{IntervalMs: 10, BlinkLED: "led0"}, true))

	sub := conn.Subscribe(bus.T("hal", "cap", "io", "led", "led0", "control", "toggle"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := (&Service{}).Start(ctx, conn); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-sub.Channel():
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("no toggle %d", i+1)
		}
	}
}
