package domain

import (
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// GreetingMode selects how a number greets inbound callers.
type GreetingMode string

const (
	GreetingModeAudio GreetingMode = "audio"
	GreetingModeText  GreetingMode = "text"
)

// NumberStatus tracks provisioning health of a purchased number.
// A number whose webhook configuration failed after purchase stays
// ProvisioningIncomplete until reconfigured; it still counts toward quota.
type NumberStatus string

const (
	NumberStatusActive                 NumberStatus = "active"
	NumberStatusProvisioningIncomplete NumberStatus = "provisioning_incomplete"
)

const (
	MinExtensions = 1
	MaxExtensions = 9
)

// Extension is a single IVR menu entry. Ordering is significant: digit d
// routes to Extensions[d-1].
type Extension struct {
	Title     string `json:"title"`
	ForwardTo string `json:"forward_to"`
}

// PhoneNumber is one purchased voice number. Records are never physically
// deleted; ReleasedAt marks retirement and excludes the row from live queries.
type PhoneNumber struct {
	ID               uuid.UUID    `json:"id"`
	AccountID        uuid.UUID    `json:"account_id"`
	ProviderSID      string       `json:"provider_sid"`
	Title            string       `json:"title"`
	Number           string       `json:"number"` // E.164
	FriendlyName     string       `json:"friendly_name"`
	Extensions       []Extension  `json:"extensions"`
	RecordCalls      bool         `json:"record_calls"`
	GreetingMode     GreetingMode `json:"greeting_mode"`
	GreetingAudioURL string       `json:"greeting_audio_url,omitempty"`
	GreetingText     string       `json:"greeting_text,omitempty"`
	Status           NumberStatus `json:"status"`
	CheckedAt        *time.Time   `json:"checked_at,omitempty"`
	ReleasedAt       *time.Time   `json:"released_at,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// Released reports whether the number has been retired.
func (n *PhoneNumber) Released() bool {
	return n.ReleasedAt != nil
}

// ExtensionForDigit resolves a pressed digit to an extension. Digit d in
// [1, len(Extensions)] maps to Extensions[d-1]; anything else (0, out of
// range, non-numeric, empty) falls back to Extensions[0].
func (n *PhoneNumber) ExtensionForDigit(digits string) Extension {
	d, err := strconv.Atoi(digits)
	if err != nil || d < 1 || d > len(n.Extensions) {
		return n.Extensions[0]
	}
	return n.Extensions[d-1]
}

var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// ValidE164 reports whether s is a well-formed E.164 phone number.
func ValidE164(s string) bool {
	return e164Pattern.MatchString(s)
}
