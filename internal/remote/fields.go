package remote

import (
	"strconv"
	"time"

	"github.com/sweeney/light-timer/internal/status"
)

// value is a Firestore REST typed value, e.g. {"stringValue": "auto"}.
type value map[string]any

// document is the body of a Firestore PATCH.
type document struct {
	Fields map[string]value `json:"fields"`
}

// readDocument is the subset of a fetched command document we use.
type readDocument struct {
	Name   string `json:"name"`
	Fields map[string]struct {
		StringValue *string `json:"stringValue"`
	} `json:"fields"`
}

// encodeValue converts a Go value to a Firestore typed value.
// Unsupported types are sent as strings.
func encodeValue(v any) value {
	switch x := v.(type) {
	case nil:
		return value{"nullValue": nil}
	case bool:
		return value{"booleanValue": x}
	case int:
		return value{"integerValue": strconv.Itoa(x)}
	case int64:
		return value{"integerValue": strconv.FormatInt(x, 10)}
	case float64:
		return value{"doubleValue": x}
	case string:
		return value{"stringValue": x}
	case []string:
		values := make([]value, 0, len(x))
		for _, s := range x {
			values = append(values, encodeValue(s))
		}
		return value{"arrayValue": map[string]any{"values": values}}
	case map[string]any:
		return value{"mapValue": map[string]any{"fields": encodeFields(x)}}
	default:
		return value{"stringValue": toString(x)}
	}
}

func encodeFields(m map[string]any) map[string]value {
	out := make(map[string]value, len(m))
	for k, v := range m {
		out[k] = encodeValue(v)
	}
	return out
}

func toString(v any) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return ""
}

// nullable maps an empty string to a Firestore null.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// reportFields lays out a status report as the devices/{id} document.
func reportFields(r status.Report, hostname string, uploadedAt time.Time) map[string]any {
	m := map[string]any{
		"device_id":             r.DeviceID,
		"reported_hostname":     hostname,
		"run_id":                r.RunID,
		"online":                r.Online,
		"timer_ok":              r.TimerOK,
		"return_code":           r.ReturnCode,
		"last_updated":          r.LastUpdated,
		"local_last_updated":    r.LastUpdated,
		"firestore_uploaded_at": uploadedAt.UTC().Format(time.RFC3339Nano),
		"script_output_lines":   r.ScriptOutputLines,
		"stderr_lines":          r.StderrLines,
		"error":                 nullable(r.Error),
		"override_mode":         r.OverrideMode,
		"relay":                 nullable(r.Relay),
		"light_on":              nullable(r.LightOn),
		"light_off":             nullable(r.LightOff),
		"sunset":                nullable(r.Sunset),
		"auto_revert":           nullable(r.AutoRevert),
	}
	if n := r.Network; n != nil {
		m["network"] = map[string]any{
			"type":        n.Type,
			"ip":          n.IP,
			"status":      n.Status,
			"gateway":     n.Gateway,
			"wifi_status": n.WifiStatus,
			"ssid":        n.SSID,
		}
	}
	return m
}
