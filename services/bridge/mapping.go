//go:build !tinygo

package bridge

import (
	"encoding/json"
	"strings"

	"esp32-devkit-go/bus"
	"esp32-devkit-go/types"
)

// Leaves mirrored to the broker. Control topics stay local.
var outboundLeaves = map[string]bool{"info": true, "status": true, "value": true, "event": true}

type mapper struct{ prefix string }

func (m mapper) join(parts ...string) string {
	if m.prefix == "" {
		return strings.Join(parts, "/")
	}
	return m.prefix + "/" + strings.Join(parts, "/")
}

// outbound maps hal/cap/<d>/<k>/<n>/<leaf...> to a broker topic.
func (m mapper) outbound(t bus.Topic) (string, bool) {
	if t.Len() < 6 {
		return "", false
	}
	leaf, _ := t.At(5).(string)
	if !outboundLeaves[leaf] {
		return "", false
	}
	parts := make([]string, 0, t.Len()-2)
	for i := 2; i < t.Len(); i++ {
		s, ok := t.At(i).(string)
		if !ok {
			return "", false
		}
		parts = append(parts, s)
	}
	return m.join(parts...), true
}

func (m mapper) controlFilter() string { return m.join("+", "+", "+", "control", "+") }

// inbound maps <prefix>/<d>/<k>/<n>/control/<verb> to the bus control topic.
func (m mapper) inbound(topic string) (t bus.Topic, kind, verb string, ok bool) {
	if m.prefix != "" {
		rest, found := strings.CutPrefix(topic, m.prefix+"/")
		if !found {
			return nil, "", "", false
		}
		topic = rest
	}
	p := strings.Split(topic, "/")
	if len(p) != 5 || p[3] != "control" {
		return nil, "", "", false
	}
	for _, s := range p {
		if s == "" || s == bus.SingleLevel || s == bus.MultiLevel {
			return nil, "", "", false
		}
	}
	return bus.T("hal", "cap", p[0], p[1], p[2], "control", p[4]), p[1], p[4], true
}

// decodeControl builds the typed payload a HAL device expects for verb.
// Verbs without a body ignore raw.
func decodeControl(kind types.Kind, verb string, raw []byte) (any, error) {
	var v any
	switch {
	case verb == "poll_start":
		v = &types.PollStart{}
	case verb == "poll_stop":
		v = &types.PollStop{}
	case kind == types.KindLED && verb == "set":
		v = &types.LEDSet{}
	default:
		return nil, nil
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case *types.PollStart:
		return *x, nil
	case *types.PollStop:
		return *x, nil
	case *types.LEDSet:
		return *x, nil
	}
	return nil, nil
}

func encode(v any) ([]byte, error) {
	if b, ok := v.([]byte); ok {
		return b, nil
	}
	return json.Marshal(v)
}
