package privacy

import (
	"strings"
)

// MaskPhoneNumber masks a phone number showing only the last 4 digits
// Example: "+1234567890" -> "+******7890"
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	if strings.HasPrefix(phone, "+") {
		if len(phone) == 1 {
			return phone
		}
		if len(phone) <= 5 {
			return "+" + strings.Repeat("*", len(phone)-1)
		}
		return "+" + strings.Repeat("*", len(phone)-5) + phone[len(phone)-4:]
	}

	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}

// MaskSessionString hides the serialized credential entirely except for a
// short suffix, enough to correlate log lines without leaking the secret.
func MaskSessionString(session string) string {
	if session == "" {
		return ""
	}
	return maskString(session, 6)
}

// MaskLoginID keeps the tail of a login correlation identifier for debugging.
func MaskLoginID(loginID string) string {
	if loginID == "" {
		return ""
	}
	return maskString(loginID, 4)
}

// MaskChannel masks a channel identifier; invite-link style identifiers keep
// their "+" prefix so the shape stays recognizable.
func MaskChannel(channel string) string {
	if channel == "" {
		return ""
	}
	if strings.HasPrefix(channel, "+") {
		return "+" + maskString(channel[1:], 4)
	}
	return maskString(channel, 4)
}

// maskString masks a string showing only the last n characters
func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}

	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}

	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}

// MaskSensitiveFields applies appropriate masking to common logging fields
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{})
	for k, v := range fields {
		switch k {
		case "phone", "phone_number":
			if s, ok := v.(string); ok {
				masked[k] = MaskPhoneNumber(s)
			} else {
				masked[k] = v
			}
		case "session_string":
			if s, ok := v.(string); ok {
				masked[k] = MaskSessionString(s)
			} else {
				masked[k] = v
			}
		case "login_id", "loginId":
			if s, ok := v.(string); ok {
				masked[k] = MaskLoginID(s)
			} else {
				masked[k] = v
			}
		case "channel", "source_channel", "target_channel":
			if s, ok := v.(string); ok {
				masked[k] = MaskChannel(s)
			} else {
				masked[k] = v
			}
		case "otp", "otp_code", "password", "api_hash", "admin_token":
			masked[k] = "[redacted]"
		default:
			masked[k] = v
		}
	}

	return masked
}
