// Package conflict decides whether a candidate window collides with an
// organizer's existing bookings. Room occupancy is not checked here; the
// calendar provider is the system of record for rooms.
package conflict

import "github.com/roombook/roombook/pkg/interval"

// Check reports whether candidate overlaps any of the existing windows.
func Check(candidate interval.Window, existing []interval.Window) bool {
	return First(candidate, existing) >= 0
}

// First returns the index of the first existing window overlapping candidate,
// or -1 when there is none.
func First(candidate interval.Window, existing []interval.Window) int {
	for i, w := range existing {
		if interval.Overlaps(candidate, w) {
			return i
		}
	}
	return -1
}
