package dht11_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"esp32-devkit-go/drivers/dht11"
	"esp32-devkit-go/drivers/dht11/dht11sim"
)

func TestPoll_EmitsOnlyOnSuccess(t *testing.T) {
	line := dht11sim.NewLine(dht11.Frame{30, 0, 21, 5, 56})
	s := dht11.NewSensor(dht11.New(line, line), 4)

	got := make(chan dht11.Sensor, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		dht11.Poll(ctx, s, 5*time.Millisecond, func(v dht11.Sensor) { got <- v })
	}()

	select {
	case v := <-got:
		assert.EqualValues(t, 215, v.DeciCelsius())
		assert.EqualValues(t, 300, v.DeciRelHumidity())
	case <-time.After(time.Second):
		t.Fatal("no reading emitted")
	}

	// A corrupt frame is dropped; the handle keeps the last good reading.
	line.SetFrame(dht11.Frame{1, 2, 3, 4, 0})
	drain := time.After(50 * time.Millisecond)
loop:
	for {
		select {
		case <-got:
		case <-drain:
			break loop
		}
	}
	select {
	case v := <-got:
		t.Fatalf("unexpected emit after corrupt frames: %+v", v.LastFrame())
	case <-time.After(30 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Poll did not return after cancel")
	}
	require.True(t, s.Valid())
	assert.EqualValues(t, 215, s.DeciCelsius())
}
