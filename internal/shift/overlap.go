// Package shift decides whether two declared shift windows collide.
//
// Windows are minutes since midnight. A window whose end precedes its start
// spans midnight and is compared as [start, end+1440). Because entries are
// daily recurring schedules, comparison wraps around the 24h cycle: an
// overnight window's morning tail collides with an early window recorded for
// the same date.
package shift

import "fmt"

const (
	// DefaultToleranceSeconds pads the overlap boundary to absorb minor
	// clock-entry discrepancies (30 minutes).
	DefaultToleranceSeconds = 1800

	minutesPerDay = 1440
)

// Window is a time-of-day interval in minutes since midnight.
type Window struct {
	Start int
	End   int
}

// adjustedEnd returns the end used for comparison, +1440 for overnight windows.
func (w Window) adjustedEnd() int {
	if w.End < w.Start {
		return w.End + minutesPerDay
	}
	return w.End
}

// Clock renders a minutes-since-midnight value as H:MM.
func Clock(minutes int) string {
	minutes %= minutesPerDay
	if minutes < 0 {
		minutes += minutesPerDay
	}
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

// Result carries the verdict and the adjusted comparison values for logging.
type Result struct {
	Overlap bool `json:"overlap"`
	AdjEndA int  `json:"adj_end_a"`
	AdjEndB int  `json:"adj_end_b"`
}

// Overlaps reports whether two windows collide within the given tolerance.
// toleranceSeconds < 0 selects the default.
func Overlaps(a, b Window, toleranceSeconds int) Result {
	if toleranceSeconds < 0 {
		toleranceSeconds = DefaultToleranceSeconds
	}
	tolMin := toleranceSeconds / 60

	adjA := a.adjustedEnd()
	adjB := b.adjustedEnd()
	res := Result{AdjEndA: adjA, AdjEndB: adjB}

	// Direct comparison plus the two day-cycle shifts. The shift covers the
	// overnight case where one window's post-midnight tail lands on the other
	// window's morning.
	res.Overlap = separated(a.Start, adjA, b.Start, adjB, tolMin) &&
		separated(a.Start+minutesPerDay, adjA+minutesPerDay, b.Start, adjB, tolMin) &&
		separated(a.Start, adjA, b.Start+minutesPerDay, adjB+minutesPerDay, tolMin)
	res.Overlap = !res.Overlap
	return res
}

// separated reports that one window ends, tolerance included, strictly before
// the other begins.
func separated(startA, endA, startB, endB, tolMin int) bool {
	return endA < startB-tolMin || startA > endB+tolMin
}
