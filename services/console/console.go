// Package console prints sensor readings as text lines:
//
//	[Temperature]> 21.50
//	[Humidity]> 30.00
//
// Values carry two decimals. ParseLine reads them back on the host side.
package console

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"esp32-devkit-go/bus"
	"esp32-devkit-go/types"
)

const (
	LabelTemperature = "Temperature"
	LabelHumidity    = "Humidity"
)

var (
	topicConfigConsole = bus.T("config", "console")
	topicEnvValues     = bus.T("hal", "cap", "env", bus.SingleLevel, bus.SingleLevel, "value")
)

var (
	// ErrNotReading is returned by ParseLine for lines that are not readings.
	ErrNotReading = errors.New("console: not a reading line")
	// ErrOutOfRange is returned for values that do not fit in Reading.Centi.
	ErrOutOfRange = errors.New("console: value out of range")
)

// Reading is one parsed line. Centi is the value in hundredths.
type Reading struct {
	Label string
	Centi int32
}

type Service struct {
	w       io.Writer
	enabled bool
}

// New prints to w; a nil w means stdout.
func New(w io.Writer) *Service {
	if w == nil {
		w = os.Stdout
	}
	return &Service{w: w, enabled: true}
}

func (s *Service) Start(ctx context.Context, conn *bus.Connection) {
	go s.run(ctx, conn)
}

func (s *Service) run(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigConsole)
	valSub := conn.Subscribe(topicEnvValues)
	defer conn.Unsubscribe(cfgSub)
	defer conn.Unsubscribe(valSub)

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-cfgSub.Channel():
			if c, ok := m.Payload.(types.ConsoleConfig); ok {
				s.enabled = c.Enabled
			}
		case m := <-valSub.Channel():
			if !s.enabled {
				continue
			}
			if line, ok := FormatValue(m.Payload); ok {
				_, _ = io.WriteString(s.w, line+"\n")
			}
		}
	}
}

// FormatValue renders a temperature or humidity value; other payloads are
// not printed.
func FormatValue(p any) (string, bool) {
	switch v := p.(type) {
	case types.TemperatureValue:
		return FormatLine(LabelTemperature, int32(v.DeciC)*10), true
	case types.HumidityValue:
		return FormatLine(LabelHumidity, int32(v.RHx100)), true
	}
	return "", false
}

// FormatLine renders "[label]> I.FF" from hundredths.
func FormatLine(label string, centi int32) string {
	out := make([]byte, 0, len(label)+16)
	out = append(out, '[')
	out = append(out, label...)
	out = append(out, "]> "...)
	if centi < 0 {
		out = append(out, '-')
		centi = -centi
	}
	out = strconv.AppendInt(out, int64(centi/100), 10)
	out = append(out, '.')
	if centi%100 < 10 {
		out = append(out, '0')
	}
	out = strconv.AppendInt(out, int64(centi%100), 10)
	return string(out)
}

// ParseLine decodes a line produced by FormatLine. Surrounding whitespace is
// ignored.
func ParseLine(line string) (Reading, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") {
		return Reading{}, ErrNotReading
	}
	label, rest, ok := strings.Cut(line[1:], "]> ")
	if !ok || label == "" {
		return Reading{}, ErrNotReading
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
	if err != nil {
		return Reading{}, err
	}
	if math.IsNaN(f) || math.Abs(f) > math.MaxInt32/100 {
		return Reading{}, ErrOutOfRange
	}
	c := f * 100
	if c < 0 {
		c -= 0.5
	} else {
		c += 0.5
	}
	return Reading{Label: label, Centi: int32(c)}, nil
}
