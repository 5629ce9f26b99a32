package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/voxgate/voxgate/internal/voice/app"
	"github.com/voxgate/voxgate/internal/voice/domain"
	"github.com/voxgate/voxgate/internal/voice/transport/http/middleware"
)

const callListLimit = 100

// NumberHandler serves the interactive provisioning API.
type NumberHandler struct {
	provisioning *app.ProvisioningService
	calls        domain.PhoneCallRepository
	logger       *slog.Logger
	validate     *validator.Validate
}

func NewNumberHandler(provisioning *app.ProvisioningService, calls domain.PhoneCallRepository, logger *slog.Logger, validate *validator.Validate) *NumberHandler {
	return &NumberHandler{
		provisioning: provisioning,
		calls:        calls,
		logger:       logger.With("handler", "numbers"),
		validate:     validate,
	}
}

func (h *NumberHandler) RegisterRoutes(r chi.Router) {
	r.Get("/numbers/available", h.SearchAvailable)
	r.Post("/numbers", h.Acquire)
	r.Get("/numbers", h.List)
	r.Get("/numbers/{numberID}", h.Get)
	r.Put("/numbers/{numberID}", h.Update)
	r.Delete("/numbers/{numberID}", h.Release)
	r.Get("/numbers/{numberID}/calls", h.ListCalls)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			slog.Default().Error("failed to write JSON response", "error", err)
		}
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// mapDomainError converts the error taxonomy to HTTP status codes. Payment
// errors come back 402 with the provider's message so the UI can surface
// inline card entry instead of a hard failure.
func mapDomainError(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrQuotaExceeded), errors.Is(err, domain.ErrLifetimeCeiling):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrPayment), errors.Is(err, domain.ErrNoPaymentMethod):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *NumberHandler) accountID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "not authenticated")
	}
	return id, ok
}

func (h *NumberHandler) decodeSpec(w http.ResponseWriter, r *http.Request) (app.NumberSpec, bool) {
	var dto NumberRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload: "+err.Error())
		return app.NumberSpec{}, false
	}
	defer r.Body.Close()

	if err := h.validate.StructCtx(r.Context(), dto); err != nil {
		respondWithError(w, http.StatusBadRequest, "validation failed: "+err.Error())
		return app.NumberSpec{}, false
	}

	exts := make([]domain.Extension, 0, len(dto.Extensions))
	for _, e := range dto.Extensions {
		exts = append(exts, domain.Extension{Title: e.Title, ForwardTo: e.ForwardTo})
	}
	return app.NumberSpec{
		Title:            dto.Title,
		Number:           dto.Number,
		Extensions:       exts,
		RecordCalls:      dto.RecordCalls,
		GreetingMode:     domain.GreetingMode(dto.GreetingMode),
		GreetingAudioURL: dto.GreetingAudioURL,
		GreetingText:     dto.GreetingText,
		PriceRef:         dto.PriceRef,
		PaymentMethodRef: dto.PaymentMethodRef,
	}, true
}

func (h *NumberHandler) Acquire(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	spec, ok := h.decodeSpec(w, r)
	if !ok {
		return
	}

	n, err := h.provisioning.Acquire(r.Context(), accountID, spec)
	if err != nil {
		h.logger.WarnContext(r.Context(), "acquire failed", "account_id", accountID, "error", err)
		respondWithError(w, mapDomainError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusCreated, toNumberResponse(n))
}

func (h *NumberHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	numbers, err := h.provisioning.List(r.Context(), accountID)
	if err != nil {
		respondWithError(w, mapDomainError(err), err.Error())
		return
	}
	out := make([]NumberResponseDTO, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, toNumberResponse(n))
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (h *NumberHandler) numberID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "numberID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid number id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *NumberHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	id, ok := h.numberID(w, r)
	if !ok {
		return
	}
	n, err := h.provisioning.Get(r.Context(), accountID, id)
	if err != nil {
		respondWithError(w, mapDomainError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, toNumberResponse(n))
}

func (h *NumberHandler) Update(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	id, ok := h.numberID(w, r)
	if !ok {
		return
	}
	spec, ok := h.decodeSpec(w, r)
	if !ok {
		return
	}
	n, err := h.provisioning.Update(r.Context(), accountID, id, spec)
	if err != nil {
		respondWithError(w, mapDomainError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, toNumberResponse(n))
}

func (h *NumberHandler) Release(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	id, ok := h.numberID(w, r)
	if !ok {
		return
	}
	if err := h.provisioning.Release(r.Context(), accountID, id); err != nil {
		respondWithError(w, mapDomainError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NumberHandler) SearchAvailable(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.accountID(w, r); !ok {
		return
	}
	candidates, err := h.provisioning.SearchAvailable(r.Context(), r.URL.Query().Get("area_code"))
	if err != nil {
		respondWithError(w, mapDomainError(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, candidates)
}

func (h *NumberHandler) ListCalls(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}
	id, ok := h.numberID(w, r)
	if !ok {
		return
	}
	// Ownership check before listing calls for the number.
	if _, err := h.provisioning.Get(r.Context(), accountID, id); err != nil {
		respondWithError(w, mapDomainError(err), err.Error())
		return
	}
	calls, err := h.calls.ListByPhoneNumber(r.Context(), id, callListLimit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]CallResponseDTO, 0, len(calls))
	for _, c := range calls {
		out = append(out, toCallResponse(c))
	}
	respondWithJSON(w, http.StatusOK, out)
}
