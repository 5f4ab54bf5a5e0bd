package dht11

import (
	"context"
	"time"
)

// DefaultPollInterval is the minimum spacing the DHT11 tolerates between reads.
const DefaultPollInterval = 2000 * time.Millisecond

// Poll reads s every interval until ctx is cancelled, calling emit after each
// successful read. Failures are already logged by the driver; s keeps its
// previous reading and the next attempt waits the full interval.
func Poll(ctx context.Context, s *Sensor, every time.Duration, emit func(Sensor)) {
	if every <= 0 {
		every = DefaultPollInterval
	}
	t := time.NewTimer(0)
	defer t.Stop()
	<-t.C

	for {
		if err := s.Read(); err == nil && emit != nil {
			emit(*s)
		}
		t.Reset(every)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
