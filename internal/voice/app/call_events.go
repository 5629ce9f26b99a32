package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voxgate/voxgate/internal/voice/domain"
)

// terminalCallStatuses is the provider's vocabulary for a finished call.
// Everything else is in-flight noise the pipeline ignores.
var terminalCallStatuses = map[string]bool{
	"completed": true,
	"busy":      true,
	"failed":    true,
	"no-answer": true,
	"canceled":  true,
}

const recordingsFolderName = "Call Recordings"

// CallEventService handles the call-status and recording webhooks. Both
// re-fetch the call's authoritative metadata from the telephony provider by
// its SID before acting, so a spoofed callback carries no weight. Failures
// are logged and the event dropped; the provider's own redelivery is the only
// retry mechanism, and the handlers always acknowledge.
type CallEventService struct {
	numbers   domain.PhoneNumberRepository
	calls     domain.PhoneCallRepository
	accounts  domain.AccountRepository
	telephony domain.TelephonyPort
	storage   domain.StoragePort
	logger    *slog.Logger
}

func NewCallEventService(
	numbers domain.PhoneNumberRepository,
	calls domain.PhoneCallRepository,
	accounts domain.AccountRepository,
	telephony domain.TelephonyPort,
	storage domain.StoragePort,
	logger *slog.Logger,
) *CallEventService {
	return &CallEventService{
		numbers:   numbers,
		calls:     calls,
		accounts:  accounts,
		telephony: telephony,
		storage:   storage,
		logger:    logger.With("component", "call_events"),
	}
}

// HandleCallStatus persists a PhoneCall once the provider reports a terminal
// status. The returned error is for logging only; callers acknowledge the
// webhook regardless.
func (s *CallEventService) HandleCallStatus(ctx context.Context, callSID, callStatus string) error {
	if !terminalCallStatuses[callStatus] {
		return nil
	}
	if callSID == "" {
		webhookEventsCounter.WithLabelValues("status", "dropped").Inc()
		return errors.New("call status webhook without CallSid")
	}

	info, err := s.telephony.GetCall(ctx, callSID)
	if err != nil {
		webhookEventsCounter.WithLabelValues("status", "dropped").Inc()
		s.logger.WarnContext(ctx, "dropping status event, call not verifiable with provider", "call_sid", callSID, "error", err)
		return err
	}

	n, err := s.numbers.FindActiveByNumber(ctx, info.To)
	if err != nil {
		webhookEventsCounter.WithLabelValues("status", "dropped").Inc()
		s.logger.WarnContext(ctx, "dropping status event, no active number for destination", "call_sid", callSID, "to", info.To)
		return err
	}

	call := &domain.PhoneCall{
		ID:              uuid.New(),
		AccountID:       n.AccountID,
		PhoneNumberID:   n.ID,
		ProviderCallSID: info.SID,
		From:            info.From,
		FromFormatted:   info.FromFormatted,
		To:              info.To,
		ToFormatted:     info.ToFormatted,
		StartedAt:       info.StartedAt,
		EndedAt:         info.EndedAt,
		DurationSecs:    domain.CallDuration(info.StartedAt, info.EndedAt),
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.calls.Create(ctx, call); err != nil {
		webhookEventsCounter.WithLabelValues("status", "dropped").Inc()
		s.logger.ErrorContext(ctx, "failed to persist phone call", "call_sid", callSID, "error", err)
		return err
	}

	webhookEventsCounter.WithLabelValues("status", "handled").Inc()
	s.logger.InfoContext(ctx, "phone call recorded",
		"call_id", call.ID, "call_sid", callSID, "duration_secs", call.DurationSecs)
	return nil
}

// HandleRecording streams a finished recording into the storage subsystem
// and links it to the matching PhoneCall. Capture is keyed by the call: a
// redelivered webhook for a call that already carries a recording reference
// is dropped before any streaming. The size patch is the commit point.
func (s *CallEventService) HandleRecording(ctx context.Context, callSID, recordingURL string, recordedAt time.Time) error {
	if callSID == "" || recordingURL == "" {
		return nil
	}

	info, err := s.telephony.GetCall(ctx, callSID)
	if err != nil {
		webhookEventsCounter.WithLabelValues("recording", "dropped").Inc()
		s.logger.WarnContext(ctx, "dropping recording event, call not verifiable with provider", "call_sid", callSID, "error", err)
		return err
	}

	n, err := s.numbers.FindActiveByNumber(ctx, info.To)
	if err != nil {
		webhookEventsCounter.WithLabelValues("recording", "dropped").Inc()
		s.logger.WarnContext(ctx, "dropping recording event, no active number for destination", "call_sid", callSID, "to", info.To)
		return err
	}

	call, err := s.calls.GetByProviderSID(ctx, callSID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		webhookEventsCounter.WithLabelValues("recording", "dropped").Inc()
		return err
	}
	if call != nil && call.RecordingFileID != nil {
		s.logger.InfoContext(ctx, "recording already captured for call, dropping redelivery", "call_sid", callSID)
		webhookEventsCounter.WithLabelValues("recording", "dropped").Inc()
		return nil
	}

	stream, err := s.telephony.OpenRecording(ctx, recordingURL)
	if err != nil {
		webhookEventsCounter.WithLabelValues("recording", "dropped").Inc()
		s.logger.ErrorContext(ctx, "failed to open recording stream", "call_sid", callSID, "error", err)
		return fmt.Errorf("%w: %v", domain.ErrProvider, err)
	}
	defer stream.Close()

	folderID, err := s.storage.EnsureFolder(ctx, n.AccountID, recordingsFolderName)
	if err != nil {
		webhookEventsCounter.WithLabelValues("recording", "dropped").Inc()
		return fmt.Errorf("%w: ensure folder: %v", domain.ErrStorage, err)
	}

	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}
	name := fmt.Sprintf("recording-%s.mp3", recordedAt.UTC().Format("2006-01-02-150405"))
	fileID, err := s.storage.CreateFile(ctx, n.AccountID, folderID, name)
	if err != nil {
		webhookEventsCounter.WithLabelValues("recording", "dropped").Inc()
		return fmt.Errorf("%w: create file: %v", domain.ErrStorage, err)
	}

	if err := s.storage.Upload(ctx, fileID, stream); err != nil {
		webhookEventsCounter.WithLabelValues("recording", "dropped").Inc()
		s.logger.ErrorContext(ctx, "recording upload failed", "call_sid", callSID, "file_id", fileID, "error", err)
		return fmt.Errorf("%w: upload: %v", domain.ErrStorage, err)
	}

	size, err := s.storage.Stat(ctx, fileID)
	if err != nil {
		webhookEventsCounter.WithLabelValues("recording", "dropped").Inc()
		return fmt.Errorf("%w: stat: %v", domain.ErrStorage, err)
	}
	if err := s.storage.PatchSize(ctx, fileID, size); err != nil {
		webhookEventsCounter.WithLabelValues("recording", "dropped").Inc()
		return fmt.Errorf("%w: patch size: %v", domain.ErrStorage, err)
	}
	if err := s.accounts.AddStorageUsage(ctx, n.AccountID, size); err != nil {
		s.logger.WarnContext(ctx, "failed to bump storage usage counter", "account_id", n.AccountID, "error", err)
	}

	if call != nil {
		if err := s.calls.SetRecordingFile(ctx, call.ID, fileID); err != nil {
			s.logger.ErrorContext(ctx, "failed to link recording to call", "call_id", call.ID, "file_id", fileID, "error", err)
			return err
		}
	} else {
		s.logger.WarnContext(ctx, "recording captured but no matching call record", "call_sid", callSID, "file_id", fileID)
	}

	webhookEventsCounter.WithLabelValues("recording", "handled").Inc()
	recordingBytesHist.Observe(float64(size))
	s.logger.InfoContext(ctx, "recording captured",
		"call_sid", callSID, "file_id", fileID, "bytes", size)
	return nil
}
