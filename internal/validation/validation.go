package validation

import (
	"fmt"
	"net/http"
	"regexp"
	"unicode"

	"tgforward/internal/constants"
	"tgforward/internal/errors"
)

var phonePattern = regexp.MustCompile(fmt.Sprintf(`^\+\d{%d,%d}$`,
	constants.MinPhoneNumberDigits, constants.MaxPhoneNumberDigits))

// ValidatePhoneNumber enforces the provider login format: a literal + followed
// by 10 to 15 digits. Anything else is rejected before any login state exists.
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return errors.New(errors.ErrCodeInvalidPhoneFormat, "phone number cannot be empty").
			WithUserMessage("Phone number is required")
	}

	if !phonePattern.MatchString(phone) {
		return errors.NewInvalidPhoneError()
	}

	return nil
}

// ValidateOtpCode checks the OTP is a short all-digit code.
func ValidateOtpCode(code string) error {
	if code == "" {
		return errors.New(errors.ErrCodeInvalidInput, "OTP code cannot be empty").
			WithUserMessage("OTP code is required")
	}

	if len(code) > constants.MaxOtpCodeLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("OTP code too long (max %d characters)", constants.MaxOtpCodeLength))
	}

	for _, char := range code {
		if !unicode.IsDigit(char) {
			return errors.New(errors.ErrCodeInvalidInput, "OTP code must contain only digits")
		}
	}

	return nil
}

// ValidatePassword bounds the 2FA password without constraining its alphabet.
func ValidatePassword(password string) error {
	if password == "" {
		return errors.New(errors.ErrCodeInvalidInput, "password cannot be empty").
			WithUserMessage("Password is required")
	}

	if len(password) > constants.MaxPasswordLength {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("password too long (max %d characters)", constants.MaxPasswordLength))
	}

	return nil
}

// ValidateLoginID checks the correlation identifier returned by send-otp.
func ValidateLoginID(loginID string) error {
	if loginID == "" {
		return errors.New(errors.ErrCodeInvalidInput, "session ID cannot be empty").
			WithUserMessage("Session ID is required")
	}

	for _, char := range loginID {
		if !unicode.IsLetter(char) && !unicode.IsDigit(char) && char != '-' {
			return errors.New(errors.ErrCodeInvalidInput, "session ID contains invalid characters")
		}
	}

	return nil
}

// ValidateHTTPRequestSize validates incoming HTTP request size
func ValidateHTTPRequestSize(r *http.Request, maxSizeBytes int64) error {
	if r.ContentLength < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "invalid content length")
	}

	if r.ContentLength > maxSizeBytes {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("request too large: %d bytes (max %d bytes)", r.ContentLength, maxSizeBytes))
	}

	return nil
}
