package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"

	"github.com/voxgate/voxgate/internal/voice/app"
)

// WebhookHandler receives the telephony provider's voice, call-status, and
// recording callbacks. Status and recording endpoints always answer 200: an
// error response would only trigger an infinite redelivery loop, and every
// failure is already logged inside the pipeline.
type WebhookHandler struct {
	ivr    *app.IVRRouter
	events *app.CallEventService
	logger *slog.Logger
}

func NewWebhookHandler(ivr *app.IVRRouter, events *app.CallEventService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		ivr:    ivr,
		events: events,
		logger: logger.With("handler", "webhooks"),
	}
}

func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/voice", h.Voice)
	r.Post("/webhooks/voice/status", h.CallStatus)
	r.Post("/webhooks/voice/recording", h.Recording)
}

// Voice answers the live call webhook with a voice-markup document. The
// router performs a single read and no writes, so this stays well inside the
// provider's response timeout.
func (h *WebhookHandler) Voice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	if err := r.ParseForm(); err != nil {
		logger.WarnContext(ctx, "unparseable voice webhook", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	resp := h.ivr.Route(ctx, app.VoiceRequest{
		To:     r.PostFormValue("To"),
		Digits: r.PostFormValue("Digits"),
	})

	body, err := resp.Render()
	if err != nil {
		logger.ErrorContext(ctx, "failed to render voice markup", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logger.WarnContext(ctx, "failed to write voice response", "error", err)
	}
}

func (h *WebhookHandler) CallStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	if err := r.ParseForm(); err == nil {
		callSID := r.PostFormValue("CallSid")
		callStatus := r.PostFormValue("CallStatus")
		if err := h.events.HandleCallStatus(ctx, callSID, callStatus); err != nil {
			logger.WarnContext(ctx, "call status event dropped", "call_sid", callSID, "error", err)
		}
	} else {
		logger.WarnContext(ctx, "unparseable status webhook", "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) Recording(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	if err := r.ParseForm(); err == nil {
		callSID := r.PostFormValue("CallSid")
		recordingURL := r.PostFormValue("RecordingUrl")
		var recordedAt time.Time
		if raw := r.PostFormValue("RecordingStartTime"); raw != "" {
			if t, perr := time.Parse(time.RFC1123Z, raw); perr == nil {
				recordedAt = t
			}
		}
		if err := h.events.HandleRecording(ctx, callSID, recordingURL, recordedAt); err != nil {
			logger.WarnContext(ctx, "recording event dropped", "call_sid", callSID, "error", err)
		}
	} else {
		logger.WarnContext(ctx, "unparseable recording webhook", "error", err)
	}
	w.WriteHeader(http.StatusOK)
}
