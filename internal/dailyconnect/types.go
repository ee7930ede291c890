package dailyconnect

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/calliepeck/cubby/internal/model"
)

// flexID tolerates the site's habit of sending identifiers as either JSON
// numbers or strings depending on the endpoint.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// Wire shapes for the undocumented JSON endpoints. Every field the bridge
// relies on is optional: the schemas are best-effort, not contractual.

type userInfoResponse struct {
	ID     flexID `json:"Id"`
	MyKids []struct {
		ID   flexID `json:"Id"`
		Name string `json:"Name"`
	} `json:"myKids"`
}

type kidSummaryResponse struct {
	Summary *struct {
		IsSleeping         bool     `json:"isSleeping"`
		NrOfSleep          *int     `json:"nrOfSleep"`
		TotalSleepDuration *int     `json:"totalSleepDuration"`
		TimeOfLastSleeping *string  `json:"timeOfLastSleeping"`
		NrOfBottle         *int     `json:"nrOfBottle"`
		TotalBottleSize    *float64 `json:"totalBottleSize"`
		TimeOfLastBottle   *string  `json:"timeOfLastBottle"`
		TimeOfLastFood     *string  `json:"timeOfLastFood"`
		NrOfDiapers        *int     `json:"nrOfDiapers"`
		NrOfWetDiapers     *int     `json:"nrOfWetDiapers"`
		NrOfBMDiapers      *int     `json:"nrOfBMDiapers"`
		TimeOfLastDiaper   *string  `json:"timeOfLastDiaper"`
	} `json:"summary"`
}

func (r *kidSummaryResponse) toModel() *model.Summary {
	if r.Summary == nil {
		return nil
	}
	src := r.Summary
	return &model.Summary{
		IsSleeping:     src.IsSleeping,
		SleepCount:     count(src.NrOfSleep),
		SleepDuration:  count(src.TotalSleepDuration),
		LastSleep:      parseTime(src.TimeOfLastSleeping),
		BottleCount:    count(src.NrOfBottle),
		BottleVolume:   volume(src.TotalBottleSize),
		LastBottle:     parseTime(src.TimeOfLastBottle),
		LastFood:       parseTime(src.TimeOfLastFood),
		DiaperCount:    count(src.NrOfDiapers),
		WetDiaperCount: count(src.NrOfWetDiapers),
		BMDiaperCount:  count(src.NrOfBMDiapers),
		LastDiaper:     parseTime(src.TimeOfLastDiaper),
	}
}

type statusListResponse struct {
	List []statusEntry `json:"list"`
}

type statusEntry struct {
	Utm   *string `json:"Utm"`
	Txt   string  `json:"Txt"`
	Cat   int     `json:"Cat"`
	Photo flexID  `json:"Photo"`
}

func (r *statusListResponse) toModel() []model.Activity {
	out := make([]model.Activity, 0, len(r.List))
	for _, e := range r.List {
		out = append(out, model.Activity{
			Time:     parseTime(e.Utm),
			Text:     e.Txt,
			Category: e.Cat,
			PhotoID:  string(e.Photo),
		})
	}
	return out
}

type calendarEntry struct {
	Start       *string `json:"start"`
	End         *string `json:"end"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
}

// toModel converts one wire event. Entries without a parseable start time
// are dropped; an event the bridge cannot place in time is useless to every
// consumer.
func (e *calendarEntry) toModel() (model.CalendarEvent, bool) {
	start, allDay := parseEventTime(e.Start, false)
	if start == nil {
		return model.CalendarEvent{}, false
	}
	end, _ := parseEventTime(e.End, true)
	if end == nil || end.Before(*start) {
		end = start
	}
	return model.CalendarEvent{
		Title:       e.Title,
		Description: e.Description,
		StartTime:   *start,
		EndTime:     *end,
		AllDay:      allDay,
	}, true
}

// count dereferences an optional wire count, clamping negatives to zero.
func count(v *int) int {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}

func volume(v *float64) float64 {
	if v == nil || *v < 0 {
		return 0
	}
	return *v
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTime converts an optional wire timestamp into *time.Time. Empty
// strings, nulls, and unparseable values all come back nil: "absent" is
// explicit, never a zero-time sentinel.
func parseTime(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, *s, time.Local); err == nil && !t.IsZero() {
			return &t
		}
	}
	return nil
}

// parseEventTime handles calendar fields, which may be a bare date
// ("2024-01-23") for all-day events or a full timestamp. For bare dates the
// end of an all-day event lands at end of day so range checks include it.
func parseEventTime(s *string, endOfDay bool) (*time.Time, bool) {
	if t := parseTime(s); t != nil {
		return t, false
	}
	if s == nil || *s == "" {
		return nil, false
	}
	d, err := time.ParseInLocation("2006-01-02", *s, time.Local)
	if err != nil {
		return nil, false
	}
	if endOfDay {
		d = d.Add(24*time.Hour - time.Second)
	}
	return &d, true
}
