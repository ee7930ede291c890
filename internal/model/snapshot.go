package model

import "time"

// Child identifies one child on the account. The list is derived from the
// account's user info and stays stable across refresh cycles.
type Child struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Summary holds the daily totals DailyConnect reports for one child.
// Counts are always non-negative; "last" times are nil when the upstream
// response omits them or reports an unparseable value.
type Summary struct {
	IsSleeping    bool       `json:"is_sleeping"`
	SleepCount    int        `json:"sleep_count"`
	SleepDuration int        `json:"sleep_duration_min"`
	LastSleep     *time.Time `json:"last_sleep,omitempty"`

	BottleCount  int        `json:"bottle_count"`
	BottleVolume float64    `json:"bottle_volume"`
	LastBottle   *time.Time `json:"last_bottle,omitempty"`
	LastFood     *time.Time `json:"last_food,omitempty"`

	DiaperCount    int        `json:"diaper_count"`
	WetDiaperCount int        `json:"wet_diaper_count"`
	BMDiaperCount  int        `json:"bm_diaper_count"`
	LastDiaper     *time.Time `json:"last_diaper,omitempty"`
}

// ChildSnapshot is one child's slice of a refresh cycle. Summary and
// Activities are nil when the corresponding fetch failed; the Unavailable
// flags say so explicitly so consumers can render "unknown" instead of zero.
type ChildSnapshot struct {
	Name                string     `json:"name"`
	Summary             *Summary   `json:"summary,omitempty"`
	Activities          []Activity `json:"activities,omitempty"`
	SummaryUnavailable  bool       `json:"summary_unavailable,omitempty"`
	ActivityUnavailable bool       `json:"activity_unavailable,omitempty"`
}

// Snapshot is the immutable result of one refresh cycle. A snapshot handed
// to consumers is always fully aggregated: individual sections may be marked
// unavailable, but the snapshot itself is never half-written.
type Snapshot struct {
	Taken    time.Time                 `json:"taken"`
	Children map[string]*ChildSnapshot `json:"children"`
	Calendar []CalendarEvent           `json:"calendar"`

	// Degraded is set when at least one resource fetch failed and its
	// fields were published as unavailable.
	Degraded            bool `json:"degraded"`
	CalendarUnavailable bool `json:"calendar_unavailable,omitempty"`
}

// Child returns the snapshot entry for the given child ID, or nil.
func (s *Snapshot) Child(id string) *ChildSnapshot {
	if s == nil {
		return nil
	}
	return s.Children[id]
}
