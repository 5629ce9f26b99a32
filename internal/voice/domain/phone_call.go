package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// PhoneCall is one completed inbound call. Created by the status webhook and
// later patched with a recording-file reference by the capture pipeline;
// immutable otherwise. RecordingFileID is a foreign key into the storage
// subsystem's File entity, never an owning pointer.
type PhoneCall struct {
	ID              uuid.UUID  `json:"id"`
	AccountID       uuid.UUID  `json:"account_id"`
	PhoneNumberID   uuid.UUID  `json:"phone_number_id"`
	ProviderCallSID string     `json:"provider_call_sid"`
	From            string     `json:"from"`
	FromFormatted   string     `json:"from_formatted"`
	To              string     `json:"to"`
	ToFormatted     string     `json:"to_formatted"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         time.Time  `json:"ended_at"`
	DurationSecs    int        `json:"duration_secs"`
	RecordingFileID *uuid.UUID `json:"recording_file_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// CallDuration computes whole-second call duration as the ceiling of
// end minus start. Negative spans clamp to zero.
func CallDuration(start, end time.Time) int {
	secs := end.Sub(start).Seconds()
	if secs <= 0 {
		return 0
	}
	return int(math.Ceil(secs))
}
