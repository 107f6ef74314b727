package budget

import (
	"testing"
	"time"
)

func newTestTracker(limits map[string]Limits) (*Tracker, *time.Time) {
	t := New(limits)
	now := time.Date(2025, 8, 22, 10, 0, 0, 0, time.UTC)
	t.now = func() time.Time { return now }
	return t, &now
}

func TestAllows_HourlyCeilingIsNeverExceeded(t *testing.T) {
	tr, _ := newTestTracker(map[string]Limits{"tiingo": {Hourly: 50, Daily: 1000}})

	for i := 0; i < 50; i++ {
		if !tr.Allows("tiingo") {
			t.Fatalf("call %d should be allowed", i+1)
		}
		tr.Record("tiingo")
	}
	// The 51st call in the same hour is rejected.
	if tr.Allows("tiingo") {
		t.Fatal("51st call must be rejected")
	}
}

func TestAllows_AutoRecoveryOnWindowRollover(t *testing.T) {
	tr, now := newTestTracker(map[string]Limits{"tiingo": {Hourly: 2}})

	tr.Record("tiingo")
	tr.Record("tiingo")
	if tr.Allows("tiingo") {
		t.Fatal("exhausted provider must be rejected")
	}

	// One hour later the window rolls over with no manual reset call.
	*now = now.Add(61 * time.Minute)
	if !tr.Allows("tiingo") {
		t.Fatal("provider must recover after window rollover")
	}
}

func TestAllows_DailyWindowIsIndependent(t *testing.T) {
	tr, now := newTestTracker(map[string]Limits{"p": {Hourly: 10, Daily: 15}})

	for i := 0; i < 10; i++ {
		tr.Record("p")
	}
	if tr.Allows("p") {
		t.Fatal("hourly ceiling reached")
	}

	// Hour rolls over but the day total (10) still counts toward daily=15.
	*now = now.Add(time.Hour)
	for i := 0; i < 5; i++ {
		if !tr.Allows("p") {
			t.Fatalf("call %d within fresh hour should pass", i+1)
		}
		tr.Record("p")
	}
	if tr.Allows("p") {
		t.Fatal("daily ceiling must reject even in a fresh hour")
	}

	// Full day rollover clears the daily count too.
	*now = now.Add(25 * time.Hour)
	if !tr.Allows("p") {
		t.Fatal("provider must recover after daily rollover")
	}
}

func TestAllows_UnlimitedWhenNoLimitsConfigured(t *testing.T) {
	tr, _ := newTestTracker(nil)
	for i := 0; i < 1000; i++ {
		tr.Record("yahoo")
	}
	if !tr.Allows("yahoo") {
		t.Fatal("provider without limits must always be allowed")
	}
}

func TestSnapshot_ReportsExhaustion(t *testing.T) {
	tr, _ := newTestTracker(map[string]Limits{"a": {Hourly: 1}, "b": {Hourly: 5}})
	tr.Record("a")

	snap := tr.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("want 2 providers, got %d", len(snap))
	}
	if snap[0].Provider != "a" || !snap[0].Exhausted || snap[0].HourUsed != 1 {
		t.Fatalf("unexpected snapshot for a: %+v", snap[0])
	}
	if snap[1].Provider != "b" || snap[1].Exhausted {
		t.Fatalf("unexpected snapshot for b: %+v", snap[1])
	}
}
