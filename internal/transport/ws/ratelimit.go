package ws

import "time"

// rateWindow is a fixed-window request counter for one connection.
type rateWindow struct {
	start time.Time
	count int
}

// allow counts one request at now. When more than max requests land in the
// current window it reports false and the time until the window resets.
// A zero window or max disables the limit.
func (w *rateWindow) allow(now time.Time, window time.Duration, max int) (bool, time.Duration) {
	if w == nil || window <= 0 || max <= 0 {
		return true, 0
	}
	if w.start.IsZero() || now.Sub(w.start) >= window {
		w.start = now
		w.count = 0
	}
	w.count++
	if w.count <= max {
		return true, 0
	}
	return false, w.start.Add(window).Sub(now)
}
