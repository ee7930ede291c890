package model

import "time"

// DailyConnect activity category codes observed in StatusList responses.
const (
	CatPhoto      = 1000
	CatMedication = 1500
	CatPotty      = 2300
	CatNeed       = 3000
	CatSignIn     = 101
	CatSignOut    = 102
)

// Activity is one entry in a child's daily feed.
type Activity struct {
	Time     *time.Time `json:"time,omitempty"`
	Text     string     `json:"text"`
	Category int        `json:"category"`
	PhotoID  string     `json:"photo_id,omitempty"`
}

// CountByCategory returns how many activities carry the given category code.
func CountByCategory(activities []Activity, cat int) int {
	n := 0
	for _, a := range activities {
		if a.Category == cat {
			n++
		}
	}
	return n
}

// LastTimeByCategory returns the time of the most recent activity with the
// given category, or nil if none has one. The feed arrives oldest-first.
func LastTimeByCategory(activities []Activity, cat int) *time.Time {
	for i := len(activities) - 1; i >= 0; i-- {
		if activities[i].Category == cat && activities[i].Time != nil {
			return activities[i].Time
		}
	}
	return nil
}

// LatestPhotoID returns the photo ID of the most recent photo-bearing
// activity, skipping sign-in and sign-out entries whose photos are staff
// check-in shots rather than the child's feed.
func LatestPhotoID(activities []Activity) string {
	for i := len(activities) - 1; i >= 0; i-- {
		a := activities[i]
		if a.Category == CatSignIn || a.Category == CatSignOut {
			continue
		}
		if a.PhotoID != "" {
			return a.PhotoID
		}
	}
	return ""
}
