//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealRelay drives the relay on actual hardware using the Linux GPIO
// character device.
type RealRelay struct {
	chipName  string
	pin       int
	activeLow bool

	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealRelay opens the GPIO chip. The output line is requested on the
// first Set so it starts at the requested level rather than glitching
// through a default.
func NewRealRelay(chipName string, pin int, activeLow bool) (*RealRelay, error) {
	if chipName == "" {
		chipName = "gpiochip0"
	}
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("light-timer"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealRelay{
		chipName:  chipName,
		pin:       pin,
		activeLow: activeLow,
		chip:      chip,
	}, nil
}

// Set drives the relay. Raw HIGH = light ON unless wired active-low.
func (r *RealRelay) Set(on bool) error {
	v := level(on, r.activeLow)

	if r.line == nil {
		line, err := r.chip.RequestLine(r.pin, gpiocdev.AsOutput(v))
		if err != nil {
			return fmt.Errorf("request relay pin %d: %w", r.pin, err)
		}
		r.line = line
		return nil
	}

	if err := r.line.SetValue(v); err != nil {
		return fmt.Errorf("set relay pin %d: %w", r.pin, err)
	}
	return nil
}

// Close releases the line and chip without reconfiguring the pin, so the
// relay keeps its last level after the process exits.
func (r *RealRelay) Close() error {
	var errs []error

	if r.line != nil {
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay pin: %w", err))
		}
		r.line = nil
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
