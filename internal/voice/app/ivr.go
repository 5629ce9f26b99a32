package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voxgate/voxgate/internal/voice/domain"
	"github.com/voxgate/voxgate/internal/voice/transport/twiml"
)

// VoiceRequest is the inbound voice webhook, reduced to the fields the state
// machine reads. All other call state lives in the PhoneNumber record.
type VoiceRequest struct {
	To     string // destination number, E.164
	Digits string // previously gathered DTMF digit, empty on first contact
}

// IVRConfig is the policy surface of the router.
type IVRConfig struct {
	// AllowedRoles is the platform's operating-role allowlist; owners
	// outside it have their calls rejected.
	AllowedRoles []string
	// VoicePath is the webhook path re-invoked by gather fallback.
	VoicePath string
	// RecordingCallbackPath receives provider-side recording completions.
	RecordingCallbackPath string
}

const recordingConsentNotice = " This call may be recorded."

// IVRRouter answers live voice webhooks with a per-request state machine:
// Entry, Greeting, AwaitingDigit, Transferring; terminals Rejected and
// Transferred. It performs exactly one read query and no writes, keeping the
// handler well inside the provider's voice-webhook timeout.
type IVRRouter struct {
	numbers domain.PhoneNumberRepository
	cfg     IVRConfig
	logger  *slog.Logger
}

func NewIVRRouter(numbers domain.PhoneNumberRepository, cfg IVRConfig, logger *slog.Logger) *IVRRouter {
	return &IVRRouter{
		numbers: numbers,
		cfg:     cfg,
		logger:  logger.With("component", "ivr_router"),
	}
}

// Route resolves the webhook to a voice-markup document. It never returns an
// error: every failure path is a Rejected terminal.
func (rt *IVRRouter) Route(ctx context.Context, req VoiceRequest) *twiml.Response {
	n, owner, err := rt.numbers.FindActiveByNumberWithOwner(ctx, req.To)
	if err != nil {
		rt.logger.InfoContext(ctx, "rejecting call for unknown number", "to", req.To, "error", err)
		webhookEventsCounter.WithLabelValues("voice", "dropped").Inc()
		return twiml.RejectResponse()
	}
	if len(n.Extensions) == 0 {
		rt.logger.WarnContext(ctx, "rejecting call, number has no extensions", "phone_number_id", n.ID)
		webhookEventsCounter.WithLabelValues("voice", "dropped").Inc()
		return twiml.RejectResponse()
	}
	if !owner.HasAnyRole(rt.cfg.AllowedRoles) {
		rt.logger.WarnContext(ctx, "rejecting call, owner outside operating roles", "account_id", owner.ID)
		webhookEventsCounter.WithLabelValues("voice", "dropped").Inc()
		return twiml.RejectResponse()
	}

	webhookEventsCounter.WithLabelValues("voice", "handled").Inc()
	if req.Digits != "" {
		return rt.transfer(n, req.Digits)
	}
	return rt.greet(n)
}

// transfer is the Transferring state: resolve the digit to an extension and
// emit the terminal dial.
func (rt *IVRRouter) transfer(n *domain.PhoneNumber, digits string) *twiml.Response {
	ext := n.ExtensionForDigit(digits)

	announcement := "Connecting your call."
	if ext.Title != "" {
		announcement = fmt.Sprintf("Connecting you to %s.", ext.Title)
	}
	if n.RecordCalls {
		announcement += recordingConsentNotice
	}

	dial := &twiml.Dial{Number: ext.ForwardTo}
	if n.RecordCalls {
		dial.Record = "record-from-answer"
		dial.RecordingStatusCallback = rt.cfg.RecordingCallbackPath
	}
	return &twiml.Response{
		Say:  &twiml.Say{Text: announcement},
		Dial: dial,
	}
}

// greet covers Greeting and AwaitingDigit: play or speak the greeting inside
// a one-digit gather with barge-in, and fall back to this same endpoint when
// no digit arrives.
func (rt *IVRRouter) greet(n *domain.PhoneNumber) *twiml.Response {
	gather := &twiml.Gather{
		NumDigits: 1,
		Action:    rt.cfg.VoicePath,
		Method:    "POST",
		Timeout:   10,
	}

	if n.GreetingMode == domain.GreetingModeAudio && n.GreetingAudioURL != "" {
		gather.Play = &twiml.Play{URL: n.GreetingAudioURL}
	} else if n.GreetingText != "" {
		gather.Say = &twiml.Say{Text: n.GreetingText}
	} else {
		gather.Say = &twiml.Say{Text: defaultGreeting(n)}
	}

	return &twiml.Response{
		Gather:   gather,
		Redirect: &twiml.Redirect{Method: "POST", URL: rt.cfg.VoicePath},
	}
}

func defaultGreeting(n *domain.PhoneNumber) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello and welcome to %s.", n.Title)
	for i, ext := range n.Extensions {
		if ext.Title == "" {
			continue
		}
		fmt.Fprintf(&b, " Press %d to be connected to %s.", i+1, ext.Title)
	}
	return b.String()
}
