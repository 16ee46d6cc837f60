package logic

import (
	"fmt"
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// SunCalculator computes sunset for a calendar date at a location.
type SunCalculator interface {
	// Sunset returns the sunset instant for date at loc.
	// Returns ErrNoSunset if the sun does not set that day.
	Sunset(loc Location, date Date) (time.Time, error)
}

// NOAASun computes sunset with the NOAA solar equations (standard 0.833°
// refraction-corrected horizon), matching common almanac values.
type NOAASun struct{}

// Sunset implements SunCalculator.
func (NOAASun) Sunset(loc Location, date Date) (time.Time, error) {
	_, set := sunrise.SunriseSunset(loc.Latitude, loc.Longitude, date.Year, date.Month, date.Day)
	if set.IsZero() {
		return time.Time{}, fmt.Errorf("%w: %s at %.4f,%.4f", ErrNoSunset, date, loc.Latitude, loc.Longitude)
	}
	return set.In(loc.TZ), nil
}
