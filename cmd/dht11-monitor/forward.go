//go:build !tinygo

package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"esp32-devkit-go/services/console"
	"esp32-devkit-go/types"
)

// Sink receives every reading parsed from the console.
type Sink interface {
	Record(at time.Time, r console.Reading) error
}

// Publisher is the part of an MQTT session the MQTT sink uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// printPublisher stands in for a broker when none is configured.
type printPublisher struct{ w io.Writer }

func (p printPublisher) Publish(topic string, _ byte, _ bool, payload []byte) error {
	_, err := io.WriteString(p.w, topic+" "+string(payload)+"\n")
	return err
}

// mqttSink publishes readings retained, in the layout the bridge uses for
// HAL values: <prefix>/env/<kind>/<name>/value.
type mqttSink struct {
	pub  Publisher
	cfg  types.BridgeConfig
	name string
}

func (s mqttSink) Record(_ time.Time, r console.Reading) error {
	kind, v, ok := toValue(r)
	if !ok {
		return nil
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.pub.Publish(valueTopic(s.cfg.Prefix, kind, s.name), s.cfg.QoS, true, payload)
}

func valueTopic(prefix string, kind types.Kind, name string) string {
	t := strings.Join([]string{"env", string(kind), name, "value"}, "/")
	if prefix == "" {
		return t
	}
	return prefix + "/" + t
}

// toValue converts a console reading into the typed value the HAL would
// publish for it.
func toValue(r console.Reading) (types.Kind, any, bool) {
	switch r.Label {
	case console.LabelTemperature:
		return types.KindTemperature, types.TemperatureValue{DeciC: int16(r.Centi / 10)}, true
	case console.LabelHumidity:
		if r.Centi < 0 {
			return "", nil, false
		}
		return types.KindHumidity, types.HumidityValue{RHx100: uint16(r.Centi)}, true
	}
	return "", nil, false
}

// forward reads console lines from r until EOF and hands each temperature or
// humidity reading to every sink. Other lines are skipped. It stops at the
// first sink error and returns the number of readings forwarded.
func forward(r io.Reader, now func() time.Time, sinks ...Sink) (int, error) {
	n := 0
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		rd, err := console.ParseLine(sc.Text())
		if err != nil {
			if !errors.Is(err, console.ErrNotReading) {
				log.Printf("Skipping malformed line %q: %v", sc.Text(), err)
			}
			continue
		}
		if _, _, ok := toValue(rd); !ok {
			continue
		}
		at := now()
		for _, s := range sinks {
			if err := s.Record(at, rd); err != nil {
				return n, err
			}
		}
		n++
	}
	return n, sc.Err()
}
