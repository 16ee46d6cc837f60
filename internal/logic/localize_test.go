package logic

import (
	"testing"
	"time"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %q: %v", name, err)
	}
	return loc
}

func TestLocalizeUnambiguous(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	got := Localize(ny, Date{2025, time.July, 24}, 2, 45, 0)

	want := time.Date(2025, 7, 24, 6, 45, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if _, off := got.Zone(); off != -4*3600 {
		t.Errorf("offset: got %d, want %d", off, -4*3600)
	}
	if got.Location() != ny {
		t.Errorf("location: got %v, want %v", got.Location(), ny)
	}
}

func TestLocalizeFallBackPicksLaterOccurrence(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	// Clocks go back from 02:00 EDT to 01:00 EST on 2025-11-02,
	// so 01:30 happens at 05:30Z (EDT) and again at 06:30Z (EST).
	got := Localize(ny, Date{2025, time.November, 2}, 1, 30, 0)

	want := time.Date(2025, 11, 2, 6, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v (%s), want %v", got, got.UTC(), want)
	}
	if name, off := got.Zone(); off != -5*3600 || name != "EST" {
		t.Errorf("zone: got %s %d, want EST %d", name, off, -5*3600)
	}
	if got.Hour() != 1 || got.Minute() != 30 {
		t.Errorf("wall clock: got %02d:%02d, want 01:30", got.Hour(), got.Minute())
	}
}

func TestLocalizeSpringForwardGapShiftsOneHour(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	// 02:00-03:00 does not exist on 2025-03-09.
	got := Localize(ny, Date{2025, time.March, 9}, 2, 30, 0)

	want := time.Date(2025, 3, 9, 7, 30, 0, 0, time.UTC) // 03:30 EDT
	if !got.Equal(want) {
		t.Errorf("got %v (%s), want %v", got, got.UTC(), want)
	}
	if got.Hour() != 3 || got.Minute() != 30 {
		t.Errorf("wall clock: got %02d:%02d, want 03:30", got.Hour(), got.Minute())
	}
}

func TestLocalizeTransitionEdges(t *testing.T) {
	ny := mustLoad(t, "America/New_York")

	tests := []struct {
		name string
		date Date
		hour int
		min  int
		want time.Time
	}{
		{"fall-back 01:00 ambiguous", Date{2025, time.November, 2}, 1, 0, time.Date(2025, 11, 2, 6, 0, 0, 0, time.UTC)},
		{"fall-back 00:59 before window", Date{2025, time.November, 2}, 0, 59, time.Date(2025, 11, 2, 4, 59, 0, 0, time.UTC)},
		{"fall-back 02:00 after window", Date{2025, time.November, 2}, 2, 0, time.Date(2025, 11, 2, 7, 0, 0, 0, time.UTC)},
		{"spring-forward 02:00 missing", Date{2025, time.March, 9}, 2, 0, time.Date(2025, 3, 9, 7, 0, 0, 0, time.UTC)},
		{"spring-forward 01:59 exists", Date{2025, time.March, 9}, 1, 59, time.Date(2025, 3, 9, 6, 59, 0, 0, time.UTC)},
		{"spring-forward 03:00 exists", Date{2025, time.March, 9}, 3, 0, time.Date(2025, 3, 9, 7, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Localize(ny, tt.date, tt.hour, tt.min, 0)
			if !got.Equal(tt.want) {
				t.Errorf("got %v (%s), want %s", got, got.UTC(), tt.want)
			}
		})
	}
}

func TestLocalizeOtherZones(t *testing.T) {
	tests := []struct {
		zone string
		date Date
		hour int
		want time.Time
	}{
		// London falls back 02:00 BST -> 01:00 GMT; 01:30 resolves to GMT.
		{"Europe/London", Date{2025, time.October, 26}, 1, time.Date(2025, 10, 26, 1, 30, 0, 0, time.UTC)},
		// London springs forward 01:00 GMT -> 02:00 BST; 01:30 becomes 02:30 BST.
		{"Europe/London", Date{2025, time.March, 30}, 1, time.Date(2025, 3, 30, 1, 30, 0, 0, time.UTC)},
		// Sydney falls back 03:00 AEDT -> 02:00 AEST on 2025-04-06.
		{"Australia/Sydney", Date{2025, time.April, 6}, 2, time.Date(2025, 4, 5, 16, 30, 0, 0, time.UTC)},
		{"UTC", Date{2025, time.March, 9}, 2, time.Date(2025, 3, 9, 2, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.zone+" "+tt.date.String(), func(t *testing.T) {
			loc := mustLoad(t, tt.zone)
			got := Localize(loc, tt.date, tt.hour, 30, 0)
			if !got.Equal(tt.want) {
				t.Errorf("got %v (%s), want %s", got, got.UTC(), tt.want)
			}
		})
	}
}

func TestLocalizeDeterministicAndTotal(t *testing.T) {
	zones := []string{"America/New_York", "Europe/London", "Australia/Sydney", "Asia/Kolkata", "America/Phoenix", "UTC"}

	for _, zone := range zones {
		loc := mustLoad(t, zone)
		for day := 0; day < 366; day += 3 {
			date := Date{2025, time.January, 1}.AddDays(day)
			for hour := 0; hour < 24; hour++ {
				a := Localize(loc, date, hour, 30, 0)
				b := Localize(loc, date, hour, 30, 0)
				if !a.Equal(b) {
					t.Fatalf("%s %s %02d:30: not deterministic: %v vs %v", zone, date, hour, a, b)
				}
				// Wall clock is either as requested or pushed one hour by a gap.
				wall := a.Hour()
				if wall != hour && wall != (hour+1)%24 {
					t.Fatalf("%s %s %02d:30: wall hour %d", zone, date, hour, wall)
				}
				if a.Minute() != 30 {
					t.Fatalf("%s %s %02d:30: wall minute %d", zone, date, hour, a.Minute())
				}
			}
		}
	}
}
