package types

import "time"

// Message is one channel message returned by the MTProto gateway.
type Message struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Sender    string    `json:"sender"`
	Timestamp time.Time `json:"-"`
	Date      int64     `json:"date"` // unix seconds on the wire
}

// FetchOptions bounds a GetMessages call to a recent window.
type FetchOptions struct {
	Limit int
	Since time.Time
}

// ClientConfig configures a gateway-backed client.
type ClientConfig struct {
	GatewayURL    string
	APIID         int
	APIHash       string
	DeviceName    string
	SessionString string
}

// Login flow statuses reported by the gateway.
const (
	LoginStatusAuthorized       = "authorized"
	LoginStatusPasswordRequired = "password_required"
	LoginStatusPending          = "pending"
)

// Provider error identifiers surfaced in gateway error bodies.
const (
	ErrPhoneCodeInvalid    = "PHONE_CODE_INVALID"
	ErrPhoneCodeExpired    = "PHONE_CODE_EXPIRED"
	ErrPasswordInvalid     = "PASSWORD_HASH_INVALID"
	ErrAuthKeyUnregistered = "AUTH_KEY_UNREGISTERED"
	ErrSessionRevoked      = "SESSION_REVOKED"
)

type ConnectRequest struct {
	APIID         int    `json:"apiId"`
	APIHash       string `json:"apiHash"`
	DeviceName    string `json:"deviceName"`
	SessionString string `json:"sessionString,omitempty"`
}

type AuthStatusResponse struct {
	Authorized bool `json:"authorized"`
}

type MessagesResponse struct {
	Messages []Message `json:"messages"`
}

type ForwardRequest struct {
	Device      string `json:"device"`
	FromChannel string `json:"fromChannel"`
	ToChannel   string `json:"toChannel"`
	MessageID   int64  `json:"messageId"`
}

type LoginStartRequest struct {
	Device      string `json:"device"`
	PhoneNumber string `json:"phoneNumber"`
}

type LoginCodeRequest struct {
	Device string `json:"device"`
	Code   string `json:"code"`
}

type LoginPasswordRequest struct {
	Device   string `json:"device"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type SessionExportResponse struct {
	SessionString string `json:"sessionString"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
