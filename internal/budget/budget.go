// Package budget tracks per-provider request quotas over hourly and daily
// windows. Exhaustion is reported by Allows returning false; windows roll over
// automatically, so a provider that went over budget mid-session becomes
// eligible again without any manual reset.
package budget

import (
	"sort"
	"sync"
	"time"
)

// Limits caps calls per window. Zero means unlimited for that window.
type Limits struct {
	Hourly int `json:"hourly"`
	Daily  int `json:"daily"`
}

// Usage is an inspectable snapshot of one provider's quota state.
type Usage struct {
	Provider    string    `json:"provider"`
	HourUsed    int       `json:"hour_used"`
	HourlyLimit int       `json:"hourly_limit"`
	DayUsed     int       `json:"day_used"`
	DailyLimit  int       `json:"daily_limit"`
	HourResetAt time.Time `json:"hour_reset_at"`
	DayResetAt  time.Time `json:"day_reset_at"`
	Exhausted   bool      `json:"exhausted"`
}

type state struct {
	hourStart time.Time
	dayStart  time.Time
	hourUsed  int
	dayUsed   int
}

// Tracker is safe for concurrent use. State is created lazily per provider on
// first use and kept for the life of the process.
type Tracker struct {
	mu     sync.Mutex
	limits map[string]Limits
	states map[string]*state
	now    func() time.Time
}

func New(limits map[string]Limits) *Tracker {
	l := make(map[string]Limits, len(limits))
	for k, v := range limits {
		l[k] = v
	}
	return &Tracker{limits: l, states: make(map[string]*state), now: time.Now}
}

// Allows reports whether one more call to provider stays within both windows.
// It never lets usage pass a ceiling: with hourly=50 the 51st call in the same
// hour is rejected.
func (t *Tracker) Allows(provider string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	lim := t.limits[provider]
	if lim.Hourly <= 0 && lim.Daily <= 0 {
		return true
	}
	s := t.state(provider)
	t.maybeReset(s)
	if lim.Hourly > 0 && s.hourUsed >= lim.Hourly {
		return false
	}
	if lim.Daily > 0 && s.dayUsed >= lim.Daily {
		return false
	}
	return true
}

// Record counts one completed call against both windows. A call that was
// cancelled after the provider was contacted stays recorded; there is no
// rollback.
func (t *Tracker) Record(provider string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.state(provider)
	t.maybeReset(s)
	s.hourUsed++
	s.dayUsed++
}

// Snapshot returns usage for every provider the tracker has seen or was
// configured with, sorted by provider id.
func (t *Tracker) Snapshot() []Usage {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make(map[string]struct{}, len(t.limits)+len(t.states))
	for id := range t.limits {
		ids[id] = struct{}{}
	}
	for id := range t.states {
		ids[id] = struct{}{}
	}

	out := make([]Usage, 0, len(ids))
	for id := range ids {
		lim := t.limits[id]
		s := t.state(id)
		t.maybeReset(s)
		u := Usage{
			Provider:    id,
			HourUsed:    s.hourUsed,
			HourlyLimit: lim.Hourly,
			DayUsed:     s.dayUsed,
			DailyLimit:  lim.Daily,
			HourResetAt: s.hourStart.Add(time.Hour),
			DayResetAt:  s.dayStart.Add(24 * time.Hour),
		}
		u.Exhausted = (lim.Hourly > 0 && s.hourUsed >= lim.Hourly) ||
			(lim.Daily > 0 && s.dayUsed >= lim.Daily)
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}

// state returns (creating lazily) the provider's counters. Caller holds mu.
func (t *Tracker) state(provider string) *state {
	s, ok := t.states[provider]
	if !ok {
		now := t.now()
		s = &state{hourStart: now, dayStart: now}
		t.states[provider] = s
	}
	return s
}

// maybeReset rolls each window over independently once its span has elapsed.
// Counters never reset mid-window. Caller holds mu.
func (t *Tracker) maybeReset(s *state) {
	now := t.now()
	if now.Sub(s.hourStart) >= time.Hour {
		s.hourStart = now
		s.hourUsed = 0
	}
	if now.Sub(s.dayStart) >= 24*time.Hour {
		s.dayStart = now
		s.dayUsed = 0
	}
}
