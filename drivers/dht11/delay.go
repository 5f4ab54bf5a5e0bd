package dht11

import "time"

// BusyDelay spins on the monotonic clock. It never yields, which is what the
// bit timing needs; time.Sleep would hand the CPU to the scheduler.
type BusyDelay struct{}

func (BusyDelay) DelayMicroseconds(us uint32) {
	deadline := time.Now().Add(time.Duration(us) * time.Microsecond)
	for time.Now().Before(deadline) {
	}
}
