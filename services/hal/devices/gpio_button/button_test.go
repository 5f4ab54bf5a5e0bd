package button

import (
	"context"
	"sync"
	"testing"
	"time"

	"esp32-devkit-go/services/hal/internal/core"
	"esp32-devkit-go/services/hal/internal/platform/sim"
	"esp32-devkit-go/services/hal/internal/provider"
	"esp32-devkit-go/types"
)

type recorder struct {
	mu   sync.Mutex
	tags []string
	last types.ButtonValue
}

func (r *recorder) Emit(ev core.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.EventTag != "" {
		r.tags = append(r.tags, ev.EventTag)
	} else if v, ok := ev.Payload.(types.ButtonValue); ok {
		r.last = v
	}
	return true
}

func (r *recorder) snapshot() ([]string, types.ButtonValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.tags...), r.last
}

func TestButton_DebouncedEdges(t *testing.T) {
	board := sim.New(40)
	pin := board.GPIO(0)
	pub := &recorder{}
	d, err := builder{}.Build(context.Background(), core.BuilderInput{
		ID:     "btn0",
		Params: map[string]any{"pin": 0, "pull": "up", "invert": true, "scan_ms": 2, "debounce_ms": 6},
		Res:    core.Resources{Reg: provider.NewRegistry(board), Pub: pub},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	if _, v := pub.snapshot(); v.Pressed {
		t.Fatal("pulled-up inverted button should start released")
	}

	pin.Drive(false)
	waitTags(t, pub, []string{"pressed"})
	pin.Drive(true)
	waitTags(t, pub, []string{"pressed", "released"})

	if res, _ := d.Control(core.CapAddr{}, "read", nil); !res.OK {
		t.Fatal("read rejected")
	}
}

func waitTags(t *testing.T, r *recorder, want []string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		tags, _ := r.snapshot()
		if len(tags) == len(want) {
			for i := range want {
				if tags[i] != want[i] {
					t.Fatalf("tags = %v, want %v", tags, want)
				}
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("tags = %v, want %v", tags, want)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
