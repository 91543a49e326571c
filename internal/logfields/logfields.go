package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyStage      = "stage"
	KeyPath       = "path"
	KeyOutput     = "output"
	KeyFormat     = "format"
	KeyProfile    = "profile"
	KeyResult     = "result"
	KeyKind       = "kind"
	KeyDurationMS = "duration_ms"
	KeyCount      = "count"
	KeyError      = "error"
	KeyTrigger    = "trigger"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Output(p string) slog.Attr        { return slog.String(KeyOutput, p) }
func Format(f string) slog.Attr        { return slog.String(KeyFormat, f) }
func Profile(name string) slog.Attr    { return slog.String(KeyProfile, name) }
func Result(r string) slog.Attr        { return slog.String(KeyResult, r) }
func Kind(k string) slog.Attr          { return slog.String(KeyKind, k) }
func Count(n int) slog.Attr            { return slog.Int(KeyCount, n) }
func Trigger(t string) slog.Attr       { return slog.String(KeyTrigger, t) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
