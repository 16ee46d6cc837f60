// Package remote reads the operator's override command from, and reports
// device status to, the cloud dashboard.
package remote

import (
	"context"
	"errors"

	"github.com/sweeney/light-timer/internal/logic"
	"github.com/sweeney/light-timer/internal/status"
)

var (
	// ErrUnauthorized is returned when the backend rejects the credentials.
	ErrUnauthorized = errors.New("remote: unauthorized")
	// ErrUnexpectedStatus is returned for any other non-2xx response.
	ErrUnexpectedStatus = errors.New("remote: unexpected status")
)

// Source provides the remotely requested override mode.
type Source interface {
	// FetchMode returns the raw mode text. found is false when no command
	// exists for this device, which callers treat as auto.
	FetchMode(ctx context.Context) (mode string, found bool, err error)

	// ResetMode writes auto back after an override expired locally.
	ResetMode(ctx context.Context) error
}

// Fake is an in-memory Source and status sink for tests.
type Fake struct {
	Mode  string
	Found bool

	// FetchError, if set, will be returned by FetchMode.
	FetchError error
	// ResetError, if set, will be returned by ResetMode.
	ResetError error
	// PublishError, if set, will be returned by PublishStatus.
	PublishError error

	Fetches int
	Resets  int
	Reports []status.Report
}

// NewFake creates a Fake holding mode.
func NewFake(mode string) *Fake {
	return &Fake{Mode: mode, Found: true}
}

// FetchMode returns the configured mode.
func (f *Fake) FetchMode(ctx context.Context) (string, bool, error) {
	f.Fetches++
	if f.FetchError != nil {
		return "", false, f.FetchError
	}
	return f.Mode, f.Found, nil
}

// ResetMode sets the stored mode to auto.
func (f *Fake) ResetMode(ctx context.Context) error {
	f.Resets++
	if f.ResetError != nil {
		return f.ResetError
	}
	f.Mode = string(logic.ModeAuto)
	f.Found = true
	return nil
}

// Set simulates the operator changing the command.
func (f *Fake) Set(mode string) {
	f.Mode = mode
	f.Found = true
}

// PublishStatus records the report.
func (f *Fake) PublishStatus(ctx context.Context, r status.Report) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Reports = append(f.Reports, r)
	return nil
}
