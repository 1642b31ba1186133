package models

import "time"

// Session is the durable authentication credential for the provider account.
// At most one session is active per process; the persisted copy expires after
// the configured TTL.
type Session struct {
	SessionString string    `json:"sessionString"`
	PhoneNumber   string    `json:"phoneNumber"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Age returns how old the persisted session is.
func (s *Session) Age() time.Duration {
	return time.Since(s.CreatedAt)
}

// OtpResult is the outcome of an OTP submission. RequiresPassword signals the
// account has a second factor and the handshake stays open under LoginID.
type OtpResult struct {
	RequiresPassword bool   `json:"requiresPassword"`
	LoginID          string `json:"sessionId,omitempty"`
}

// ForwardingStatus is a point-in-time snapshot of the forwarding loop.
type ForwardingStatus struct {
	Running         bool       `json:"isRunning"`
	ForwardedCount  int64      `json:"forwardedCount"`
	LastForwardedAt *time.Time `json:"lastForwarded,omitempty"`
}
