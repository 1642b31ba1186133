package errors

import (
	"fmt"
	"net/http"
	"strings"
)

// Common error creators for frequent use cases

// NewValidationError creates a validation error with field context
func NewValidationError(field, message string) *AppError {
	return New(ErrCodeValidationFailed, message).
		WithContext("field", field).
		WithUserMessage(fmt.Sprintf("Invalid %s: %s", field, message))
}

// NewInvalidPhoneError rejects a malformed phone number before any state is touched.
func NewInvalidPhoneError() *AppError {
	return New(ErrCodeInvalidPhoneFormat, "phone number must be + followed by 10-15 digits").
		WithUserMessage("Invalid phone number format. Use format: +1234567890")
}

// NewLoginNotFoundError covers both unknown and already-expired login handshakes.
func NewLoginNotFoundError(loginID string) *AppError {
	return New(ErrCodeLoginNotFound, "login session not found or expired").
		WithContext("login_id", loginID).
		WithUserMessage("Login session not found. Please request a new code.")
}

// NewNotAuthenticatedError signals that no authorized client is available.
func NewNotAuthenticatedError() *AppError {
	return New(ErrCodeNotAuthenticated, "no authenticated Telegram session").
		WithUserMessage("Not authenticated. Please log in first.")
}

// NewConfigError creates a configuration error
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage("Configuration error")
}

// NewDatabaseError creates a database error with operation context
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage("Database operation failed")
}

// NewGatewayError creates an error for a failed provider gateway call.
func NewGatewayError(endpoint string, statusCode int, err error) *AppError {
	appErr := Wrap(err, ErrCodeTelegramAPI, "telegram gateway call failed").
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode)

	if statusCode >= 500 || statusCode == 429 || statusCode == 408 {
		appErr.Retryable = true
	}

	return appErr
}

// NewAuthorizationRevokedError marks a session that the provider no longer accepts.
func NewAuthorizationRevokedError(err error) *AppError {
	return Wrap(err, ErrCodeAuthorizationRevoked, "provider rejected the active session").
		WithUserMessage("Telegram session expired. Please log in again.")
}

// NewTimeoutError creates a timeout error with context
func NewTimeoutError(operation string, duration string) *AppError {
	return New(ErrCodeTimeout, fmt.Sprintf("%s timed out after %s", operation, duration)).
		WithContext("operation", operation).
		WithContext("timeout", duration).
		WithUserMessage("Operation timed out, please try again")
}

// IsAuthorizationRevoked reports whether an error from a poll or forward call
// means the session itself is dead, as opposed to a transient network failure.
// Provider gateways surface these as 401s or as explicit auth error strings.
func IsAuthorizationRevoked(err error) bool {
	if err == nil {
		return false
	}
	if IsCode(err, ErrCodeAuthorizationRevoked) {
		return true
	}
	if appErr, ok := err.(*AppError); ok {
		if sc, ok := appErr.Context["status_code"].(int); ok && (sc == http.StatusUnauthorized || sc == http.StatusForbidden) {
			return true
		}
	}
	msg := strings.ToUpper(err.Error())
	return strings.Contains(msg, "AUTH_KEY_UNREGISTERED") ||
		strings.Contains(msg, "SESSION_REVOKED") ||
		strings.Contains(msg, "SESSION_EXPIRED")
}

// HTTPStatusCode maps error codes to appropriate HTTP status codes
func HTTPStatusCode(err error) int {
	code := GetCode(err)

	switch code {
	case ErrCodeValidationFailed, ErrCodeInvalidInput, ErrCodeInvalidConfig,
		ErrCodeInvalidPhoneFormat, ErrCodeInvalidOtp, ErrCodeInvalidPassword:
		return http.StatusBadRequest
	case ErrCodeAuthentication, ErrCodeNotAuthenticated, ErrCodeAuthorizationRevoked:
		return http.StatusUnauthorized
	case ErrCodeAuthorization:
		return http.StatusForbidden
	case ErrCodeNotFound, ErrCodeLoginNotFound:
		return http.StatusNotFound
	case ErrCodeOtpExpired, ErrCodeLoginExpired:
		return http.StatusGone
	case ErrCodeTimeout:
		return http.StatusRequestTimeout
	case ErrCodeTelegramAPI:
		if IsRetryable(err) {
			return http.StatusBadGateway
		}
		return http.StatusInternalServerError
	case ErrCodeDatabaseConnection, ErrCodeDatabaseQuery:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
