//go:build rp2040 || rp2350

package rp2040

import "time"

// Ticker schedules the periodic execute_tick callback on TinyGo's
// runtime timer, the hardware-timer analogue of core/timer.go's
// GetTime/TimerFromUS tick bookkeeping: that file only ever read the
// free-running counter for timestamping, so the actual scheduling here
// is built directly against the 10 kHz rate spec.md §2 names rather
// than grafted from a teacher polling loop.
type Ticker struct {
	t *time.Ticker
}

// NewTicker creates a Ticker with nothing scheduled yet.
func NewTicker() *Ticker {
	return &Ticker{}
}

func (t *Ticker) Schedule(hz uint32, fn func()) {
	t.Stop()
	if hz == 0 {
		return
	}
	t.t = time.NewTicker(time.Second / time.Duration(hz))
	ticker := t.t
	go func() {
		for range ticker.C {
			fn()
		}
	}()
}

// Stop cancels the scheduled callback, if any.
func (t *Ticker) Stop() {
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
}
