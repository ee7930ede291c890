package coordinator

import (
	"sync"
	"time"
)

// Resource names used in diagnostics counters.
const (
	resChildren = "children"
	resSummary  = "summary"
	resStatus   = "status"
	resCalendar = "calendar"
)

const maxDiagErrors = 10

// ResourceStat counts per-resource fetch outcomes across all cycles.
type ResourceStat struct {
	Success uint64 `json:"success"`
	Failure uint64 `json:"failure"`
}

// Diagnostics is the sanitized operational export: cycle timing and
// per-resource outcome counts, plus recent error summaries. Error strings
// never contain credentials or raw response bodies beyond the token
// extractor's sanitized preview.
type Diagnostics struct {
	Cycles            uint64                  `json:"cycles"`
	DegradedCycles    uint64                  `json:"degraded_cycles"`
	FailedCycles      uint64                  `json:"failed_cycles"`
	LastCycleStart    time.Time               `json:"last_cycle_start"`
	LastCycleDuration time.Duration           `json:"last_cycle_duration_ns"`
	LastSuccess       time.Time               `json:"last_success"`
	Resources         map[string]ResourceStat `json:"resources"`
	LastErrors        []string                `json:"last_errors,omitempty"`
}

// Diagnostics returns a copy of the current counters.
func (c *Coordinator) Diagnostics() Diagnostics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := c.diag
	out.Resources = make(map[string]ResourceStat, len(c.diag.Resources))
	for k, v := range c.diag.Resources {
		out.Resources[k] = v
	}
	out.LastErrors = append([]string(nil), c.diag.LastErrors...)
	return out
}

// cycleStats accumulates outcomes during one fetch phase. Fetch goroutines
// record concurrently, so it carries its own lock; the totals fold into the
// coordinator's Diagnostics once the cycle settles.
type cycleStats struct {
	mu        sync.Mutex
	resources map[string]ResourceStat
	errs      []string
}

func newCycleStats() *cycleStats {
	return &cycleStats{resources: make(map[string]ResourceStat)}
}

func (s *cycleStats) record(resource string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stat := s.resources[resource]
	if err == nil {
		stat.Success++
	} else {
		stat.Failure++
		if len(s.errs) < maxDiagErrors {
			s.errs = append(s.errs, resource+": "+err.Error())
		}
	}
	s.resources[resource] = stat
}

// mergeInto folds this cycle's counts into the long-lived diagnostics.
// Caller holds the coordinator's mu.
func (s *cycleStats) mergeInto(d *Diagnostics) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.Resources == nil {
		d.Resources = make(map[string]ResourceStat)
	}
	for k, v := range s.resources {
		agg := d.Resources[k]
		agg.Success += v.Success
		agg.Failure += v.Failure
		d.Resources[k] = agg
	}
	if len(s.errs) > 0 {
		d.LastErrors = append([]string(nil), s.errs...)
	}
}
