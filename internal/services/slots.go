package services

import (
	"fmt"
	"sort"
	"time"
)

const (
	// Each booked slot is one hour of session time.
	slotDuration = time.Hour
	// How long after the nominal end a scheduled session stays immune to
	// auto-expiry.
	gracePeriod = 15 * time.Minute

	slotRangeUnavailable = "Not available"
)

// Slot entries are persisted as hour-aligned timestamp strings. Rows written
// by older clients carry a bare wall time instead of a full timestamp.
var slotLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"15:04",
}

func parseSlot(raw string) (time.Time, error) {
	for _, layout := range slotLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable slot %q", raw)
}

// sortedSlotTimes parses and sorts the slot list. Any malformed entry fails
// the whole list so callers can fail open.
func sortedSlotTimes(slots []string) ([]time.Time, error) {
	times := make([]time.Time, 0, len(slots))
	for _, raw := range slots {
		t, err := parseSlot(raw)
		if err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times, nil
}

// SlotRange renders a session's booked hours as a display range, e.g.
// "2:00 PM - 4:00 PM" for two slots starting at 14:00. Empty or malformed
// input yields a sentinel rather than an error so a bad row never hides a
// session from its owner.
func SlotRange(slots []string) string {
	if len(slots) == 0 {
		return slotRangeUnavailable
	}
	times, err := sortedSlotTimes(slots)
	if err != nil {
		return slotRangeUnavailable
	}
	start := times[0]
	end := start.Add(time.Duration(len(times)) * slotDuration)
	return start.Format("3:04 PM") + " - " + end.Format("3:04 PM")
}

// SlotDurationHours is the session length in hours: one per booked slot.
func SlotDurationHours(slots []string) int {
	return len(slots)
}

// GracePeriodEnd computes the instant a scheduled session becomes eligible
// for auto-expiry: the last slot's wall time anchored to the session date,
// plus the slot duration, plus the grace period. The second return is false
// when the slot data cannot be parsed; callers treat that as "not yet
// expired" (fail open).
func GracePeriodEnd(date time.Time, slots []string) (time.Time, bool) {
	if len(slots) == 0 {
		return time.Time{}, false
	}
	times, err := sortedSlotTimes(slots)
	if err != nil {
		return time.Time{}, false
	}
	last := times[len(times)-1]
	end := time.Date(date.Year(), date.Month(), date.Day(), last.Hour(), last.Minute(), 0, 0, time.UTC)
	return end.Add(slotDuration + gracePeriod), true
}

// FirstSlotStart anchors the earliest slot's wall time to the session date.
// Used by the reminder window match.
func FirstSlotStart(date time.Time, slots []string) (time.Time, bool) {
	times, err := sortedSlotTimes(slots)
	if err != nil || len(times) == 0 {
		return time.Time{}, false
	}
	first := times[0]
	return time.Date(date.Year(), date.Month(), date.Day(), first.Hour(), first.Minute(), 0, 0, time.UTC), true
}

// storageClock converts a real instant to the storage convention: the
// database keeps business-local wall times labelled as UTC, so every
// comparison against stored dates, slots or windows goes through this one
// function instead of ad-hoc hour offsets.
func storageClock(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), lt.Hour(), lt.Minute(), lt.Second(), 0, time.UTC)
}
