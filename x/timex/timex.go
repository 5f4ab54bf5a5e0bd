// Package timex holds the timestamp convention used on the bus.
package timex

import "time"

// NowMs returns Unix milliseconds, the unit of every ts_ms field.
func NowMs() int64 { return time.Now().UnixMilli() }
