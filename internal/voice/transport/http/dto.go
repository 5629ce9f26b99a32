package http

import (
	"time"

	"github.com/google/uuid"

	"github.com/voxgate/voxgate/internal/voice/domain"
)

type ExtensionDTO struct {
	Title     string `json:"title" validate:"max=100"`
	ForwardTo string `json:"forward_to" validate:"required,e164"`
}

type NumberRequestDTO struct {
	Title            string         `json:"title" validate:"required,max=200"`
	Number           string         `json:"number" validate:"omitempty,e164"`
	Extensions       []ExtensionDTO `json:"extensions" validate:"required,min=1,max=9,dive"`
	RecordCalls      bool           `json:"record_calls"`
	GreetingMode     string         `json:"greeting_mode" validate:"omitempty,oneof=audio text"`
	GreetingAudioURL string         `json:"greeting_audio_url" validate:"omitempty,url"`
	GreetingText     string         `json:"greeting_text" validate:"max=2000"`
	PriceRef         string         `json:"price_ref"`
	PaymentMethodRef string         `json:"payment_method_ref"`
}

type NumberResponseDTO struct {
	ID           uuid.UUID      `json:"id"`
	Title        string         `json:"title"`
	Number       string         `json:"number"`
	FriendlyName string         `json:"friendly_name"`
	Extensions   []ExtensionDTO `json:"extensions"`
	RecordCalls  bool           `json:"record_calls"`
	GreetingMode string         `json:"greeting_mode"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
}

func toNumberResponse(n *domain.PhoneNumber) NumberResponseDTO {
	exts := make([]ExtensionDTO, 0, len(n.Extensions))
	for _, e := range n.Extensions {
		exts = append(exts, ExtensionDTO{Title: e.Title, ForwardTo: e.ForwardTo})
	}
	return NumberResponseDTO{
		ID:           n.ID,
		Title:        n.Title,
		Number:       n.Number,
		FriendlyName: n.FriendlyName,
		Extensions:   exts,
		RecordCalls:  n.RecordCalls,
		GreetingMode: string(n.GreetingMode),
		Status:       string(n.Status),
		CreatedAt:    n.CreatedAt,
	}
}

type CallResponseDTO struct {
	ID              uuid.UUID  `json:"id"`
	From            string     `json:"from"`
	To              string     `json:"to"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         time.Time  `json:"ended_at"`
	DurationSecs    int        `json:"duration_secs"`
	RecordingFileID *uuid.UUID `json:"recording_file_id,omitempty"`
}

func toCallResponse(c *domain.PhoneCall) CallResponseDTO {
	return CallResponseDTO{
		ID:              c.ID,
		From:            c.FromFormatted,
		To:              c.ToFormatted,
		StartedAt:       c.StartedAt,
		EndedAt:         c.EndedAt,
		DurationSecs:    c.DurationSecs,
		RecordingFileID: c.RecordingFileID,
	}
}
