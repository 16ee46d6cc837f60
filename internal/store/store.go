// Package store persists the override record between invocations.
//
// The record is a small JSON document replaced atomically (temp file, fsync,
// rename), so a crash mid-write leaves either the old or the new record.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/sweeney/light-timer/internal/logic"
)

// naiveLayout matches timestamps written without a UTC offset
// (e.g. "2026-01-27T18:04:05.123456").
const naiveLayout = "2006-01-02T15:04:05.999999999"

// recordJSON is the on-disk form of the override record.
type recordJSON struct {
	Mode  string `json:"mode"`
	SetAt string `json:"set_at,omitempty"`
	// SetAtLocal is the key used by older state files. Read-only.
	SetAtLocal string `json:"set_at_local,omitempty"`
}

// File is an override record stored in a single JSON file.
type File struct {
	path string
	loc  *time.Location
}

// NewFile returns a store for the record at path. Timestamps written without
// a UTC offset are interpreted as wall time in loc.
func NewFile(path string, loc *time.Location) *File {
	if loc == nil {
		loc = time.Local
	}
	return &File{path: path, loc: loc}
}

// Path returns the file path.
func (f *File) Path() string {
	return f.path
}

// Load reads the stored record.
//
// A missing file yields the default record (auto, no anchor) with found=false.
// Unreadable content is recovered rather than reported: an unknown mode
// becomes auto and an unparseable timestamp becomes an absent anchor.
// Only I/O failures are returned as errors.
func (f *File) Load() (logic.Override, bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return logic.Override{Mode: logic.ModeAuto}, false, nil
	}
	if err != nil {
		return logic.Override{}, false, fmt.Errorf("read override record: %w", err)
	}

	var rj recordJSON
	if err := json.Unmarshal(data, &rj); err != nil {
		return logic.Override{Mode: logic.ModeAuto}, true, nil
	}

	raw := rj.SetAt
	if raw == "" {
		raw = rj.SetAtLocal
	}
	return logic.Override{
		Mode:  logic.NormalizeMode(rj.Mode),
		SetAt: ParseSetAt(raw, f.loc),
	}, true, nil
}

// Save replaces the stored record atomically.
func (f *File) Save(rec logic.Override) error {
	rj := recordJSON{Mode: string(logic.NormalizeMode(string(rec.Mode)))}
	if !rec.SetAt.IsZero() {
		rj.SetAt = rec.SetAt.In(f.loc).Format(time.RFC3339Nano)
	}

	data, err := json.Marshal(rj)
	if err != nil {
		return fmt.Errorf("encode override record: %w", err)
	}
	return WriteFileAtomic(f.path, append(data, '\n'))
}

// ParseSetAt parses a stored anchor timestamp.
// RFC 3339 timestamps keep their offset; naive timestamps are localized in loc
// with the DST-safe rules. Empty or unparseable input returns the zero time.
func ParseSetAt(s string, loc *time.Location) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc)
	}
	n, err := time.Parse(naiveLayout, s)
	if err != nil {
		return time.Time{}
	}
	t := logic.Localize(loc, logic.DateOf(n), n.Hour(), n.Minute(), n.Second())
	return t.Add(time.Duration(n.Nanosecond()))
}

// WriteFileAtomic writes data to path via a temp file in the same directory.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
