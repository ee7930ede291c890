package model

import (
	"sort"
	"time"
)

// CalendarEvent is one upcoming event from the center's shared calendar.
type CalendarEvent struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	AllDay      bool      `json:"all_day"`
}

// MergeEvents deduplicates events (same title and start time), sorts them
// ascending by start time, and caps the result at max entries. A max of
// zero or less means no cap.
func MergeEvents(events []CalendarEvent, max int) []CalendarEvent {
	type key struct {
		title string
		start time.Time
	}

	seen := make(map[key]struct{}, len(events))
	merged := make([]CalendarEvent, 0, len(events))
	for _, ev := range events {
		k := key{title: ev.Title, start: ev.StartTime}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, ev)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].StartTime.Before(merged[j].StartTime)
	})

	if max > 0 && len(merged) > max {
		merged = merged[:max]
	}
	return merged
}

// NextEvent returns the first event starting at or after now, or nil.
// Assumes the list is already sorted ascending by start time.
func NextEvent(events []CalendarEvent, now time.Time) *CalendarEvent {
	for i := range events {
		if !events[i].StartTime.Before(now) {
			return &events[i]
		}
	}
	return nil
}
