package storage

import "time"

// Durations cross the wire as integer columns: window lengths in seconds,
// runtimes in milliseconds.

func windowSeconds(w *time.Duration) *int64 {
	if w == nil {
		return nil
	}
	s := int64(w.Seconds())
	return &s
}

func secondsToDuration(s int64) time.Duration { return time.Duration(s) * time.Second }

func millisToDuration(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }
