package service

import "context"

type contextKey string

// VerboseContextKey marks a context as carrying verbose-logging consent.
const VerboseContextKey contextKey = "verbose_logging"

// IsVerboseLogging reports whether verbose logging was enabled for this
// context. Verbose mode may log message text and unmasked identifiers.
func IsVerboseLogging(ctx context.Context) bool {
	if v, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return v
	}
	return false
}

// Standard field names used across logging calls.
const (
	LogFieldLoginID   = "login_id"
	LogFieldPhone     = "phone"
	LogFieldChannel   = "channel"
	LogFieldMessageID = "message_id"
	LogFieldCount     = "count"
	LogFieldAttempt   = "attempt"
	LogFieldDuration  = "duration_ms"
)
