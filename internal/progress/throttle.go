// Package progress turns transfer samples into throttled status message edits.
package progress

import (
	"math"
	"time"
)

// DefaultInterval is the emission period of the throttle.
const DefaultInterval = 5 * time.Second

// Phase of a transfer.
type Phase int

const (
	Downloading Phase = iota
	Finished
)

// Sample describes a transfer at one instant.
// Zero Total, Speed or ETA means the source did not report it.
type Sample struct {
	Transferred int64
	Total       int64
	Speed       float64 // bytes per second
	ETA         time.Duration
	Phase       Phase
}

// Complete reports whether the sample marks the end of the transfer.
func (s Sample) Complete() bool {
	return s.Phase == Finished || (s.Total > 0 && s.Transferred == s.Total)
}

// Throttle decides which samples produce a status update.
//
// It samples rather than schedules: an update goes out when a sample lands on
// an Interval boundary (elapsed mod Interval, rounded to whole seconds, is 0)
// or when the transfer completes. Bursty sources may skip a boundary.
type Throttle struct {
	Interval time.Duration
}

// ShouldEmit reports whether a sample taken elapsed after the start is shown.
// Nothing is emitted at elapsed == 0.
func (t Throttle) ShouldEmit(elapsed time.Duration, s Sample) bool {
	if elapsed <= 0 {
		return false
	}
	if s.Complete() {
		return true
	}
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	return math.Round(math.Mod(elapsed.Seconds(), interval.Seconds())) == 0
}

// Status holds the derived figures shown to the user.
type Status struct {
	Percent    float64
	HasPercent bool
	Speed      float64
	ETA        time.Duration
	Elapsed    time.Duration
}

// Compute derives percentage, speed and ETA for a sample.
// A supplied speed or ETA wins over the averaged one.
func Compute(elapsed time.Duration, s Sample) Status {
	st := Status{Elapsed: elapsed, Speed: s.Speed, ETA: s.ETA}

	if s.Total > 0 {
		st.Percent = float64(s.Transferred) * 100 / float64(s.Total)
		st.HasPercent = true
	}
	if st.Speed <= 0 && elapsed > 0 {
		st.Speed = float64(s.Transferred) / elapsed.Seconds()
	}
	if st.ETA <= 0 && s.Total > 0 && st.Speed > 0 {
		remaining := float64(s.Total - s.Transferred)
		if remaining > 0 {
			st.ETA = time.Duration(math.Round(remaining/st.Speed)) * time.Second
		}
	}
	return st
}
