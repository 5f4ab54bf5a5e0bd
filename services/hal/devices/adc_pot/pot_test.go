package pot

import (
	"context"
	"errors"
	"testing"

	"esp32-devkit-go/services/hal/internal/core"
	"esp32-devkit-go/services/hal/internal/platform/sim"
	"esp32-devkit-go/services/hal/internal/provider"
	"esp32-devkit-go/types"
)

type lastEvent struct{ ev core.Event }

func (l *lastEvent) Emit(ev core.Event) bool { l.ev = ev; return true }

func TestScale(t *testing.T) {
	cases := []struct {
		raw  uint16
		want types.ADCValue
	}{
		{0, types.ADCValue{Raw: 0, MilliV: 0}},
		{4095, types.ADCValue{Raw: 4095, MilliV: 3300}},
		{2048, types.ADCValue{Raw: 2048, MilliV: 1650}},
		{9000, types.ADCValue{Raw: 4095, MilliV: 3300}},
	}
	for _, c := range cases {
		if got := Scale(c.raw, 12, 3300); got != c.want {
			t.Fatalf("Scale(%d) = %+v want %+v", c.raw, got, c.want)
		}
	}
}

func TestPot_Read(t *testing.T) {
	board := sim.New(40)
	pub := &lastEvent{}
	d, err := builder{}.Build(context.Background(), core.BuilderInput{
		ID: "pot0", Params: Params{Pin: 34}, Res: core.Resources{Reg: provider.NewRegistry(board), Pub: pub},
	})
	if err != nil {
		t.Fatal(err)
	}
	info := d.Capabilities()[0].Info.Detail.(types.ADCInfo)
	if info.Bits != 12 || info.RefMilliV != 3300 {
		t.Fatalf("info = %+v", info)
	}

	board.ADC(34).SetRaw(1024)
	d.Control(core.CapAddr{}, "read", nil)
	if v, ok := pub.ev.Payload.(types.ADCValue); !ok || v.Raw != 1024 || v.MilliV != 825 {
		t.Fatalf("value = %#v", pub.ev.Payload)
	}

	board.ADC(34).SetErr(errors.New("adc stuck"))
	d.Control(core.CapAddr{}, "read", nil)
	if pub.ev.Err != "error" {
		t.Fatalf("err event = %#v", pub.ev)
	}
}
