package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/calliepeck/cubby/internal/dailyconnect"
	"github.com/calliepeck/cubby/internal/model"
)

// Config holds coordinator tuning.
type Config struct {
	Interval          time.Duration // between refresh cycles
	MaxConcurrent     int           // in-flight fetches per cycle
	CalendarMaxEvents int           // cap on the aggregated calendar list
	CalendarDaysAhead int           // calendar query window
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Minute
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	if c.CalendarMaxEvents <= 0 {
		c.CalendarMaxEvents = 10
	}
	if c.CalendarDaysAhead <= 0 {
		c.CalendarDaysAhead = 30
	}
	return c
}

// RefreshError is a cycle-level failure: authentication could not be
// established, or every resource fetch failed. Per-resource failures never
// surface as RefreshError; they degrade the snapshot instead.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string { return "refresh cycle failed: " + e.Err.Error() }
func (e *RefreshError) Unwrap() error { return e.Err }

// Coordinator drives refresh cycles against DailyConnect and owns the only
// mutable process-wide state: the latest published snapshot, the photo byte
// cache, and diagnostics counters. Mutation happens only at the end of a
// successful cycle, so readers never observe a half-written snapshot.
type Coordinator struct {
	client    *dailyconnect.Client
	cfg       Config
	logger    *slog.Logger
	onPublish func(*model.Snapshot)

	// authMu serializes (re)login so concurrent cycles cannot race on
	// session replacement. sessMu only guards the pointer swap.
	authMu sync.Mutex
	sessMu sync.RWMutex
	sess   *dailyconnect.Session

	mu       sync.RWMutex
	snapshot *model.Snapshot
	photos   map[photoKey]*dailyconnect.Photo
	diag     Diagnostics

	cancel context.CancelFunc
	done   chan struct{}
}

type photoKey struct {
	ID   string
	Size dailyconnect.PhotoSize
}

// New creates a Coordinator. onPublish, if non-nil, is invoked after every
// successfully published snapshot (used for WebSocket push).
func New(client *dailyconnect.Client, cfg Config, logger *slog.Logger, onPublish func(*model.Snapshot)) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		client:    client,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		onPublish: onPublish,
		photos:    make(map[photoKey]*dailyconnect.Photo),
	}
}

// Snapshot returns the latest published snapshot, or nil before the first
// successful cycle.
func (c *Coordinator) Snapshot() *model.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Refresh runs one full cycle: ensure an authenticated session, fan out the
// resource fetchers, aggregate, and publish. Safe to call repeatedly; each
// call performs an independent cycle. A failed cycle leaves the previously
// published snapshot untouched.
func (c *Coordinator) Refresh(ctx context.Context) (*model.Snapshot, error) {
	start := time.Now()
	stats := newCycleStats()

	snap, err := c.runCycle(ctx, stats)
	duration := time.Since(start)

	c.mu.Lock()
	c.diag.Cycles++
	c.diag.LastCycleStart = start
	c.diag.LastCycleDuration = duration
	stats.mergeInto(&c.diag)

	if err != nil {
		c.diag.FailedCycles++
		c.mu.Unlock()
		c.logger.Error("refresh cycle failed", "duration", duration, "error", err)
		return nil, err
	}

	if snap.Degraded {
		c.diag.DegradedCycles++
	}
	c.diag.LastSuccess = time.Now()
	c.snapshot = snap
	c.prunePhotosLocked(snap)
	c.mu.Unlock()

	c.logger.Info("snapshot published",
		"children", len(snap.Children),
		"events", len(snap.Calendar),
		"degraded", snap.Degraded,
		"duration", duration,
	)
	if c.onPublish != nil {
		c.onPublish(snap)
	}
	return snap, nil
}

func (c *Coordinator) runCycle(ctx context.Context, stats *cycleStats) (*model.Snapshot, error) {
	sess, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.fetchAll(ctx, sess, stats)
	if err != nil && errors.Is(err, dailyconnect.ErrSessionExpired) {
		// The whole fetch phase gets exactly one reauth-and-retry; a second
		// expiry in the same cycle is a real failure, not a loop.
		c.logger.Info("session expired mid-cycle, re-authenticating")
		sess, err = c.reauth(ctx, sess)
		if err != nil {
			return nil, err
		}
		res, err = c.fetchAll(ctx, sess, stats)
	}
	if err != nil {
		return nil, err
	}

	return c.aggregate(res), nil
}

// ensureSession returns the current session, logging in if none exists.
func (c *Coordinator) ensureSession(ctx context.Context) (*dailyconnect.Session, error) {
	c.sessMu.RLock()
	sess := c.sess
	c.sessMu.RUnlock()
	if sess.Valid() {
		return sess, nil
	}
	return c.reauth(ctx, sess)
}

// reauth logs in and replaces the stored session. Serialized: if another
// caller already replaced the session while this one waited for the lock,
// the fresh session is reused instead of logging in again.
func (c *Coordinator) reauth(ctx context.Context, stale *dailyconnect.Session) (*dailyconnect.Session, error) {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	c.sessMu.RLock()
	current := c.sess
	c.sessMu.RUnlock()
	if current.Valid() && current != stale {
		return current, nil
	}

	sess, err := c.client.Login(ctx)
	if err != nil {
		return nil, err
	}

	c.sessMu.Lock()
	c.sess = sess
	c.sessMu.Unlock()
	return sess, nil
}

// childResult collects one child's fetch outcomes. Each goroutine writes
// only its own slot, so no locking is needed beyond the group wait.
type childResult struct {
	child         model.Child
	summary       *model.Summary
	summaryErr    error
	activities    []model.Activity
	activitiesErr error
}

type cycleResult struct {
	children  []childResult
	events    []model.CalendarEvent
	eventsErr error
}

// fetchAll runs the fetch phase: children list first (it gates everything
// else), then per-child summary/status and the account calendar with bounded
// concurrency. One resource's failure never cancels its siblings. It returns
// an error only for cycle-fatal outcomes: the children list failed, or every
// dispatched fetch failed.
func (c *Coordinator) fetchAll(ctx context.Context, sess *dailyconnect.Session, stats *cycleStats) (*cycleResult, error) {
	acct, err := c.client.ListChildren(ctx, sess)
	if err != nil {
		stats.record(resChildren, err)
		return nil, fmt.Errorf("list children: %w", err)
	}
	stats.record(resChildren, nil)

	today := time.Now()
	res := &cycleResult{children: make([]childResult, len(acct.Children))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrent)

	for i := range acct.Children {
		i := i
		child := acct.Children[i]
		res.children[i].child = child

		g.Go(func() error {
			sum, err := c.client.FetchSummary(gctx, sess, child.ID, today)
			res.children[i].summary, res.children[i].summaryErr = sum, err
			stats.record(resSummary, err)
			return nil
		})
		g.Go(func() error {
			acts, err := c.client.FetchStatus(gctx, sess, child.ID, today)
			res.children[i].activities, res.children[i].activitiesErr = acts, err
			stats.record(resStatus, err)
			return nil
		})
	}

	calendarDispatched := acct.UserID != ""
	if calendarDispatched {
		g.Go(func() error {
			events, err := c.client.FetchCalendarEvents(gctx, sess, acct.UserID, c.cfg.CalendarDaysAhead)
			res.events, res.eventsErr = events, err
			stats.record(resCalendar, err)
			return nil
		})
	}

	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return res, c.classify(res, calendarDispatched)
}

// classify decides whether the fetch phase was cycle-fatal. All fetches
// failing with a session expiry propagates ErrSessionExpired so the caller
// can reauth; all fetches failing otherwise is a cycle failure.
func (c *Coordinator) classify(res *cycleResult, calendarDispatched bool) error {
	var errs []error
	total, expired := 0, 0

	note := func(err error) {
		total++
		if err == nil {
			return
		}
		errs = append(errs, err)
		if errors.Is(err, dailyconnect.ErrSessionExpired) {
			expired++
		}
	}

	for i := range res.children {
		note(res.children[i].summaryErr)
		note(res.children[i].activitiesErr)
	}
	if calendarDispatched {
		note(res.eventsErr)
	}

	if total == 0 || len(errs) < total {
		return nil
	}
	if expired == len(errs) {
		return fmt.Errorf("all fetches rejected: %w", dailyconnect.ErrSessionExpired)
	}
	return &RefreshError{Err: multierr.Combine(errs...)}
}

// aggregate merges the fetch phase into one immutable snapshot. Individual
// failures become per-section unavailable flags.
func (c *Coordinator) aggregate(res *cycleResult) *model.Snapshot {
	snap := &model.Snapshot{
		Taken:    time.Now(),
		Children: make(map[string]*model.ChildSnapshot, len(res.children)),
	}

	for i := range res.children {
		cr := &res.children[i]
		cs := &model.ChildSnapshot{Name: cr.child.Name}
		if cr.summaryErr != nil {
			cs.SummaryUnavailable = true
			snap.Degraded = true
			c.logger.Warn("summary unavailable", "child", cr.child.ID, "error", cr.summaryErr)
		} else {
			cs.Summary = cr.summary
		}
		if cr.activitiesErr != nil {
			cs.ActivityUnavailable = true
			snap.Degraded = true
			c.logger.Warn("activity feed unavailable", "child", cr.child.ID, "error", cr.activitiesErr)
		} else {
			cs.Activities = cr.activities
		}
		snap.Children[cr.child.ID] = cs
	}

	if res.eventsErr != nil {
		snap.CalendarUnavailable = true
		snap.Degraded = true
		c.logger.Warn("calendar unavailable", "error", res.eventsErr)
	} else {
		snap.Calendar = model.MergeEvents(res.events, c.cfg.CalendarMaxEvents)
	}

	return snap
}

// Photo returns one activity photo, serving repeated requests for the same
// ID and size from the byte cache. Cached entries live until a later
// successful cycle drops the photo from every child's feed.
func (c *Coordinator) Photo(ctx context.Context, photoID string, size dailyconnect.PhotoSize) (*dailyconnect.Photo, error) {
	key := photoKey{ID: photoID, Size: size}

	c.mu.RLock()
	cached, ok := c.photos[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	sess, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	photo, err := c.client.FetchPhoto(ctx, sess, photoID, size)
	if errors.Is(err, dailyconnect.ErrSessionExpired) {
		sess, err = c.reauth(ctx, sess)
		if err != nil {
			return nil, err
		}
		photo, err = c.client.FetchPhoto(ctx, sess, photoID, size)
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.photos[key] = photo
	c.mu.Unlock()
	return photo, nil
}

// prunePhotosLocked drops cached photo bytes no longer referenced by any
// activity in the just-published snapshot. Caller holds c.mu.
func (c *Coordinator) prunePhotosLocked(snap *model.Snapshot) {
	live := make(map[string]struct{})
	for _, cs := range snap.Children {
		for _, a := range cs.Activities {
			if a.PhotoID != "" {
				live[a.PhotoID] = struct{}{}
			}
		}
	}
	for key := range c.photos {
		if _, ok := live[key.ID]; !ok {
			delete(c.photos, key)
		}
	}
}

// Start begins the periodic refresh loop: one immediate cycle, then one per
// configured interval.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)

		if _, err := c.Refresh(ctx); err != nil {
			c.logger.Error("initial refresh failed", "error", err)
		}

		ticker := time.NewTicker(c.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := c.Refresh(ctx); err != nil {
					c.logger.Error("scheduled refresh failed", "error", err)
				}
			}
		}
	}()
}

// Stop cancels the refresh loop and waits for it to exit.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.done != nil {
		<-c.done
	}
}
