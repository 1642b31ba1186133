package service

import (
	"strings"
)

// signalMarkers are the five section markers every forwardable trading signal
// carries. Matching is case-insensitive substring containment; a message
// missing any single marker is not a signal.
var signalMarkers = []string{
	"NEW SIGNAL",
	"TRADE",
	"TIMER",
	"ENTRY",
	"DIRECTION",
}

// SignalMatcher decides whether a channel message is a forwardable signal.
type SignalMatcher struct {
	posterUsername    string
	bypassSenderCheck bool
}

func NewSignalMatcher(posterUsername string, bypassSenderCheck bool) *SignalMatcher {
	return &SignalMatcher{
		posterUsername:    strings.TrimPrefix(posterUsername, "@"),
		bypassSenderCheck: bypassSenderCheck,
	}
}

// IsSignal returns true iff the text contains all section markers and the
// sender is the configured poster. The sender check is skipped only when the
// bypass flag is explicitly configured for the source channel.
func (m *SignalMatcher) IsSignal(text, sender string) bool {
	if !containsAllMarkers(text) {
		return false
	}

	if m.bypassSenderCheck {
		return true
	}

	return strings.EqualFold(strings.TrimPrefix(sender, "@"), m.posterUsername)
}

func containsAllMarkers(text string) bool {
	if text == "" {
		return false
	}

	upper := strings.ToUpper(text)
	for _, marker := range signalMarkers {
		if !strings.Contains(upper, marker) {
			return false
		}
	}
	return true
}
