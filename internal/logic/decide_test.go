package logic

import (
	"errors"
	"testing"
	"time"
)

func TestDecideAutoFollowsWindow(t *testing.T) {
	s := testScheduler(t)
	rec := Override{Mode: ModeAuto, SetAt: local(t, s, 2025, 7, 1, 12, 0, 0)}

	tests := []struct {
		now  time.Time
		want bool
	}{
		{local(t, s, 2025, 7, 24, 12, 0, 0), false},
		{local(t, s, 2025, 7, 24, 19, 30, 0), true},
		{local(t, s, 2025, 7, 25, 0, 45, 0), true},
		{local(t, s, 2025, 7, 25, 1, 0, 0), false},
	}

	for _, tt := range tests {
		d, err := s.Decide(rec, tt.now)
		if err != nil {
			t.Fatalf("Decide(%v): %v", tt.now, err)
		}
		if d.On != tt.want {
			t.Errorf("Decide(%v).On = %v, want %v", tt.now, d.On, tt.want)
		}
		if d.Mode != ModeAuto {
			t.Errorf("Decide(%v).Mode = %q, want auto", tt.now, d.Mode)
		}
		if d.Window == nil {
			t.Errorf("Decide(%v): Window not set on auto path", tt.now)
		}
		if d.Persist {
			t.Errorf("Decide(%v): Persist set without a change", tt.now)
		}
		if d.Revert != nil {
			t.Errorf("Decide(%v): unexpected revert", tt.now)
		}
	}
}

func TestDecideForceModesIgnoreWindow(t *testing.T) {
	s := testScheduler(t)
	noon := local(t, s, 2025, 7, 24, 12, 0, 0)
	evening := local(t, s, 2025, 7, 24, 21, 0, 0)

	d, err := s.Decide(Override{Mode: ModeForceOn, SetAt: noon.Add(-time.Hour)}, noon)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !d.On || d.Mode != ModeForceOn || d.Window != nil {
		t.Errorf("force_on at noon: got On=%v Mode=%q Window=%v", d.On, d.Mode, d.Window)
	}

	d, err = s.Decide(Override{Mode: ModeForceOff, SetAt: evening.Add(-time.Minute)}, evening)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.On || d.Mode != ModeForceOff {
		t.Errorf("force_off in evening: got On=%v Mode=%q", d.On, d.Mode)
	}
}

// The Rochester example: force_on set at 02:45 holds through the evening and
// expires at 01:00 the next morning, when the automatic rule says OFF.
func TestDecideRochesterForceOnExample(t *testing.T) {
	loc := rochester(t)
	cfg := DefaultScheduleConfig()
	setAt := time.Date(2025, 7, 24, 2, 45, 0, 0, loc.TZ)
	rec := Override{Mode: ModeForceOn, SetAt: setAt}

	d, err := Decide(loc, cfg, rec, setAt)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !d.On || d.Mode != ModeForceOn {
		t.Errorf("at set time: On=%v Mode=%q, want ON force_on", d.On, d.Mode)
	}

	d, err = Decide(loc, cfg, rec, time.Date(2025, 7, 25, 0, 59, 59, 0, loc.TZ))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !d.On || d.Mode != ModeForceOn || d.Revert != nil {
		t.Errorf("before cutoff: On=%v Mode=%q Revert=%v", d.On, d.Mode, d.Revert)
	}

	cutoff := time.Date(2025, 7, 25, 1, 0, 0, 0, loc.TZ)
	d, err = Decide(loc, cfg, rec, cutoff)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Mode != ModeAuto {
		t.Errorf("at cutoff: Mode=%q, want auto", d.Mode)
	}
	if d.On {
		t.Error("at cutoff: expected OFF")
	}
	if d.Revert == nil {
		t.Fatal("at cutoff: expected revert event")
	}
	if !d.Revert.Cutoff.Equal(cutoff) {
		t.Errorf("cutoff: got %v, want %v", d.Revert.Cutoff, cutoff)
	}
	if want := "AUTO-REVERT: force_on ended at off-time (2025-07-25 01:00:00)"; d.Revert.Message != want {
		t.Errorf("message: got %q, want %q", d.Revert.Message, want)
	}
	if !d.Persist {
		t.Error("at cutoff: expected Persist")
	}
	if d.Record.Mode != ModeAuto || !d.Record.SetAt.Equal(cutoff) {
		t.Errorf("record: got %+v, want auto at %v", d.Record, cutoff)
	}
	if d.Window == nil {
		t.Fatal("at cutoff: expected window on auto path")
	}
	if d.Window.ReferenceDate != (Date{2025, time.July, 25}) {
		t.Errorf("reference date: got %s", d.Window.ReferenceDate)
	}
}

func TestDecideForceOffRevertTurnsLightOn(t *testing.T) {
	s := testScheduler(t)
	rec := Override{Mode: ModeForceOff, SetAt: local(t, s, 2025, 7, 24, 9, 0, 0)}

	d, err := s.Decide(rec, local(t, s, 2025, 7, 24, 19, 29, 0))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.On || d.Mode != ModeForceOff {
		t.Errorf("before cutoff: On=%v Mode=%q", d.On, d.Mode)
	}

	d, err = s.Decide(rec, local(t, s, 2025, 7, 24, 19, 30, 0))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !d.On || d.Mode != ModeAuto || d.Revert == nil {
		t.Errorf("at cutoff: On=%v Mode=%q Revert=%v, want ON auto with revert", d.On, d.Mode, d.Revert)
	}
}

func TestDecideRevertAcrossFallBack(t *testing.T) {
	s := testScheduler(t)
	rec := Override{Mode: ModeForceOn, SetAt: local(t, s, 2025, 11, 1, 22, 0, 0)}

	// First 01:30 (EDT) is before the later 01:00 (EST) cutoff.
	d, err := s.Decide(rec, time.Date(2025, 11, 2, 5, 30, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Mode != ModeForceOn || !d.On {
		t.Errorf("01:30 EDT: Mode=%q On=%v, want force_on ON", d.Mode, d.On)
	}

	d, err = s.Decide(rec, time.Date(2025, 11, 2, 6, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Mode != ModeAuto || d.Revert == nil {
		t.Errorf("01:00 EST: Mode=%q Revert=%v, want auto with revert", d.Mode, d.Revert)
	}
}

func TestDecideIsPure(t *testing.T) {
	s := testScheduler(t)
	rec := Override{Mode: ModeForceOn, SetAt: local(t, s, 2025, 7, 24, 2, 45, 0)}
	now := local(t, s, 2025, 7, 25, 3, 0, 0)

	a, errA := s.Decide(rec, now)
	b, errB := s.Decide(rec, now)
	if errA != nil || errB != nil {
		t.Fatalf("Decide: %v / %v", errA, errB)
	}
	if a.On != b.On || a.Mode != b.Mode || a.Persist != b.Persist {
		t.Errorf("outputs differ: %+v vs %+v", a, b)
	}
	if a.Record.Mode != b.Record.Mode || !a.Record.SetAt.Equal(b.Record.SetAt) {
		t.Errorf("records differ: %+v vs %+v", a.Record, b.Record)
	}
	if a.Revert == nil || b.Revert == nil || a.Revert.Message != b.Revert.Message {
		t.Errorf("revert events differ")
	}
	if rec.Mode != ModeForceOn {
		t.Errorf("input record mutated: %+v", rec)
	}
}

func TestDecideMissingAnchor(t *testing.T) {
	s := testScheduler(t)
	now := local(t, s, 2025, 7, 25, 1, 0, 0)

	d, err := s.Decide(Override{Mode: ModeForceOn}, now)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Revert != nil || d.Mode != ModeForceOn || !d.On {
		t.Errorf("got Mode=%q On=%v Revert=%v, want held force_on", d.Mode, d.On, d.Revert)
	}
	if d.Persist {
		t.Error("missing anchor should not be invented by Decide")
	}
}

func TestDecideBogusModeNormalized(t *testing.T) {
	s := testScheduler(t)

	d, err := s.Decide(Override{Mode: NormalizeMode("bogus")}, local(t, s, 2025, 7, 24, 21, 0, 0))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Mode != ModeAuto || !d.On {
		t.Errorf("got Mode=%q On=%v, want auto ON", d.Mode, d.On)
	}

	d, err = s.Decide(Override{Mode: "bogus"}, local(t, s, 2025, 7, 24, 21, 0, 0))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Mode != ModeAuto || !d.Persist {
		t.Errorf("raw bogus record: Mode=%q Persist=%v, want auto persisted", d.Mode, d.Persist)
	}
}

func TestDecideNoSunsetFails(t *testing.T) {
	s := NewSchedulerWithSun(rochester(t), DefaultScheduleConfig(), noSun{})

	_, err := s.Decide(Override{Mode: ModeAuto}, time.Date(2025, 7, 24, 21, 0, 0, 0, time.UTC))
	if !errors.Is(err, ErrNoSunset) {
		t.Errorf("expected ErrNoSunset, got %v", err)
	}
}
