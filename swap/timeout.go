package swap

import (
	"fmt"
	"strings"
	"time"
)

const (
	// BeamBlockInterval is the target block interval of the BEAM
	// difficulty adjustment.
	BeamBlockInterval = time.Minute

	// EstimateQuantum is the granularity of height based time estimates.
	EstimateQuantum = 5 * time.Minute
)

// HeightDeltaToDuration converts a number of blocks into an estimated wall
// clock duration, rounded to the nearest EstimateQuantum. A non-positive
// delta has no estimate since the target height is already due.
func HeightDeltaToDuration(delta int64, interval time.Duration) (
	time.Duration, bool) {

	if delta <= 0 {
		return 0, false
	}

	d := time.Duration(delta) * interval
	d = (d + EstimateQuantum/2) / EstimateQuantum * EstimateQuantum

	return d, true
}

// TimeRemaining estimates the time until the chain reaches the target height.
func TimeRemaining(current, target uint64, interval time.Duration) (
	time.Duration, bool) {

	return HeightDeltaToDuration(int64(target)-int64(current), interval)
}

// DurationToBlocks returns the number of blocks a chain with the given block
// interval needs at least to span the duration.
func DurationToBlocks(d, interval time.Duration) uint64 {
	if d <= 0 || interval <= 0 {
		return 0
	}

	return uint64((d + interval - 1) / interval)
}

// DeadlineReached returns true once the chain height is at or past the
// deadline height.
func DeadlineReached(current, deadline uint64) bool {
	return current >= deadline
}

// DeadlinePassed returns true once the chain height is strictly past the
// deadline height.
func DeadlinePassed(current, deadline uint64) bool {
	return current > deadline
}

// ExpiresTime projects the wall clock time at which the chain reaches the
// expiry height. Expiry heights in the past yield a time in the past.
func ExpiresTime(now time.Time, current, expires uint64,
	interval time.Duration) time.Time {

	delta := time.Duration(int64(expires)-int64(current)) * interval

	return now.Add(delta)
}

// EstimateString renders an estimated duration in hours, minutes and seconds
// the way wallet users are shown the time left before a deadline.
func EstimateString(d time.Duration) string {
	const (
		secondsInMinute = 60
		secondsInHour   = 60 * secondsInMinute
	)

	estimate := int64(d / time.Second)

	switch {
	case estimate >= secondsInHour:
		var sb strings.Builder
		fmt.Fprintf(&sb, "%d h", estimate/secondsInHour)

		estimate %= secondsInHour
		minutes := estimate / secondsInMinute
		if estimate%secondsInMinute != 0 {
			minutes++
		}
		if minutes >= 1 {
			fmt.Fprintf(&sb, " %d min", minutes)
		}

		return sb.String()

	case estimate > 100:
		minutes := estimate / secondsInMinute
		if estimate%secondsInMinute != 0 {
			minutes++
		}

		return fmt.Sprintf("%d min", minutes)

	case estimate > secondsInMinute:
		return fmt.Sprintf("%d min %d sec", estimate/secondsInMinute,
			estimate-secondsInMinute)

	default:
		if estimate <= 0 {
			estimate = 1
		}

		return fmt.Sprintf("%d sec", estimate)
	}
}

// HeightDeltaString renders the estimated time for a number of BEAM blocks.
// Non-positive deltas render as the empty string.
func HeightDeltaString(delta int64) string {
	d, ok := HeightDeltaToDuration(delta, BeamBlockInterval)
	if !ok {
		return ""
	}

	return EstimateString(d)
}
