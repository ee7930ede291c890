package dailyconnect

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/calliepeck/cubby/internal/model"
)

// dateParam formats a date the way the site's endpoints expect (yymmdd).
func dateParam(t time.Time) string {
	return t.Format("060102")
}

// Account is the result of a user-info fetch: the account's own ID (needed
// for calendar queries) plus the children enrolled under it.
type Account struct {
	UserID   string
	Children []model.Child
}

// ListChildren fetches the account's user info and derives the child list.
func (c *Client) ListChildren(ctx context.Context, sess *Session) (*Account, error) {
	if !sess.Valid() {
		return nil, ErrNotAuthenticated
	}

	form := url.Values{
		"__srf_token__": {sess.Token},
		"cmd":           {"UserInfoW"},
	}
	p, err := c.do(ctx, "user info", func(ctx context.Context) (*http.Request, error) {
		return c.formRequest(ctx, "/CmdW?cmd=UserInfoW", form)
	})
	if err != nil {
		return nil, err
	}

	var ui userInfoResponse
	if err := decodeJSON("user info", p, &ui); err != nil {
		return nil, err
	}
	if len(ui.MyKids) == 0 {
		return nil, &ValidationError{Op: "user info", Reason: "no children in response"}
	}

	acct := &Account{UserID: string(ui.ID)}
	for _, k := range ui.MyKids {
		if k.ID == "" {
			continue
		}
		name := strings.TrimSpace(k.Name)
		if name == "" {
			name = string(k.ID)
		}
		acct.Children = append(acct.Children, model.Child{ID: string(k.ID), Name: name})
	}
	if len(acct.Children) == 0 {
		return nil, &ValidationError{Op: "user info", Reason: "children present but none had an ID"}
	}
	return acct, nil
}

// FetchSummary fetches one child's daily totals for the given date.
func (c *Client) FetchSummary(ctx context.Context, sess *Session, childID string, date time.Time) (*model.Summary, error) {
	if !sess.Valid() {
		return nil, ErrNotAuthenticated
	}

	form := url.Values{
		"__srf_token__": {sess.Token},
		"cmd":           {"KidGetSummary"},
		"Kid":           {childID},
		"pdt":           {dateParam(date)},
	}
	p, err := c.do(ctx, "kid summary", func(ctx context.Context) (*http.Request, error) {
		return c.formRequest(ctx, "/CmdW", form)
	})
	if err != nil {
		return nil, err
	}

	var ks kidSummaryResponse
	if err := decodeJSON("kid summary", p, &ks); err != nil {
		return nil, err
	}
	summary := ks.toModel()
	if summary == nil {
		return nil, &ValidationError{Op: "kid summary", Reason: "summary object missing"}
	}
	return summary, nil
}

// FetchStatus fetches one child's activity feed for the given date.
func (c *Client) FetchStatus(ctx context.Context, sess *Session, childID string, date time.Time) ([]model.Activity, error) {
	if !sess.Valid() {
		return nil, ErrNotAuthenticated
	}

	form := url.Values{
		"__srf_token__": {sess.Token},
		"cmd":           {"StatusList"},
		"Kid":           {childID},
		"pdt":           {dateParam(date)},
		"fmt":           {"long"},
	}
	p, err := c.do(ctx, "kid status", func(ctx context.Context) (*http.Request, error) {
		return c.formRequest(ctx, "/CmdListW", form)
	})
	if err != nil {
		return nil, err
	}

	var sl statusListResponse
	if err := decodeJSON("kid status", p, &sl); err != nil {
		return nil, err
	}
	// An empty list is a quiet day, not an error.
	return sl.toModel(), nil
}

// FetchCalendarEvents fetches the account's calendar for the next daysAhead
// days. Entries without a usable start time are skipped.
func (c *Client) FetchCalendarEvents(ctx context.Context, sess *Session, userID string, daysAhead int) ([]model.CalendarEvent, error) {
	if !sess.Valid() {
		return nil, ErrNotAuthenticated
	}
	if daysAhead <= 0 {
		daysAhead = 30
	}

	now := time.Now().UTC()
	form := url.Values{
		"command":       {"getEvents"},
		"start":         {dateParam(now)},
		"end":           {dateParam(now.AddDate(0, 0, daysAhead))},
		"parent":        {"true"},
		"uid":           {userID},
		"__srf_token__": {sess.Token},
	}
	p, err := c.do(ctx, "calendar", func(ctx context.Context) (*http.Request, error) {
		return c.formRequest(ctx, "/CmdW?cmd=CalendarCmd", form)
	})
	if err != nil {
		return nil, err
	}

	var entries []calendarEntry
	if err := decodeJSON("calendar", p, &entries); err != nil {
		return nil, err
	}

	events := make([]model.CalendarEvent, 0, len(entries))
	for i := range entries {
		if ev, ok := entries[i].toModel(); ok {
			events = append(events, ev)
		}
	}
	return events, nil
}

// PhotoSize selects which rendition of an activity photo to fetch. Full and
// thumbnail renditions are distinct cache entries downstream.
type PhotoSize string

const (
	PhotoFull  PhotoSize = "full"
	PhotoThumb PhotoSize = "thumb"
)

// Photo is binary image content plus its content type.
type Photo struct {
	ID          string
	ContentType string
	Data        []byte
}

// FetchPhoto fetches one activity photo by ID. Unknown IDs surface as
// ErrNotFound; an HTML body in place of image bytes (typically a login or
// error page) surfaces as a ValidationError.
func (c *Client) FetchPhoto(ctx context.Context, sess *Session, photoID string, size PhotoSize) (*Photo, error) {
	if !sess.Valid() {
		return nil, ErrNotAuthenticated
	}

	thumb := "0"
	if size == PhotoThumb {
		thumb = "1"
	}
	query := url.Values{
		"cmd":   {"PhotoGet"},
		"id":    {photoID},
		"thumb": {thumb},
	}
	p, err := c.do(ctx, "photo", func(ctx context.Context) (*http.Request, error) {
		return c.getRequest(ctx, "/GetCmd", query)
	})
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	ct := p.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, &ValidationError{Op: "photo", Reason: "unexpected content type " + ct}
	}
	return &Photo{ID: photoID, ContentType: ct, Data: p.Body}, nil
}
