// Package ratelimit caps chat requests per client in fixed windows.
// The memory backend suits a single long-running server; Redis and
// DynamoDB share counters across processes and Lambda instances.
package ratelimit

import (
	"strconv"
	"time"
)

// windowStart truncates now to the start of its fixed window.
func windowStart(now time.Time, window time.Duration) time.Time {
	return now.UTC().Truncate(window)
}

func windowID(now time.Time, window time.Duration) string {
	return strconv.FormatInt(windowStart(now, window).Unix(), 10)
}
