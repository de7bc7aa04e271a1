// Package notify decides which notifications a call event produces and
// delivers them exactly once. Every caller-facing text and owner alert goes
// through the claim ledger first; webhook retries and out-of-order callbacks
// lose the claim and send nothing.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ringdesk/ringdesk/internal/ai"
	"github.com/ringdesk/ringdesk/internal/conversation"
	"github.com/ringdesk/ringdesk/internal/database"
	"github.com/ringdesk/ringdesk/internal/database/models"
	"github.com/ringdesk/ringdesk/internal/metrics"
)

// ShortRecordingSeconds is the threshold under which a voicemail recording
// is treated as the caller hanging up without leaving a message.
const ShortRecordingSeconds = 3

// CallFacts is everything the engine knows about a call at a decision point.
// Tenant is always set; Line may be nil when the called number resolved only
// to the default tenant.
type CallFacts struct {
	CallID        string
	Tenant        *models.Tenant
	Line          *models.PhoneLine
	CallerNumber  string
	LineNumber    string
	RecordingURL  string
	RecordingID   string
	DurationSecs  int
	Transcription string
}

func (f CallFacts) phoneLineID() int64 {
	if f.Line == nil {
		return 0
	}
	return f.Line.ID
}

// Engine applies the notification rules for call events.
type Engine struct {
	claims     database.ClaimLedger
	pushTokens database.PushTokenRepository
	sms        SMSSender
	push       PushSender // nil when push delivery is not configured
	replies    ai.ReplyGenerator
	syncer     *conversation.Syncer
	fetcher    *conversation.Fetcher
	links      *LinkSigner
	dispatcher *Dispatcher
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewEngine wires the decision engine.
func NewEngine(
	claims database.ClaimLedger,
	pushTokens database.PushTokenRepository,
	sms SMSSender,
	push PushSender,
	replies ai.ReplyGenerator,
	syncer *conversation.Syncer,
	fetcher *conversation.Fetcher,
	links *LinkSigner,
	dispatcher *Dispatcher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		claims:     claims,
		pushTokens: pushTokens,
		sms:        sms,
		push:       push,
		replies:    replies,
		syncer:     syncer,
		fetcher:    fetcher,
		links:      links,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger.With("component", "notify_engine"),
	}
}

func missedCallBody(tenantName string) string {
	return fmt.Sprintf("Hi, this is %s. Sorry we missed your call! Reply to this message and we'll text you right back.", tenantName)
}

func fallbackReplyBody(tenantName string) string {
	return fmt.Sprintf("Thanks for your message! This is %s, we got your voicemail and will get back to you shortly.", tenantName)
}

// claimAndSend attempts the claim for (callID, scope-of-smsType) and, if
// won, texts the recipient. Losing the claim is not an error.
func (e *Engine) claimAndSend(ctx context.Context, facts CallFacts, smsType, recipient, body string) error {
	if recipient == "" {
		e.logger.Warn("skipping notification, no recipient",
			"call_id", facts.CallID, "sms_type", smsType)
		return nil
	}

	won, err := e.claims.Claim(ctx, &models.NotificationClaim{
		CallID:         facts.CallID,
		TenantID:       facts.Tenant.ID,
		SMSType:        smsType,
		RecipientPhone: recipient,
	})
	if err != nil {
		return fmt.Errorf("claiming %s for call %s: %w", smsType, facts.CallID, err)
	}
	e.metrics.Claims.WithLabelValues(smsType, metrics.ClaimOutcome(won)).Inc()
	if !won {
		e.logger.Info("notification already claimed",
			"call_id", facts.CallID, "sms_type", smsType)
		return nil
	}

	sendErr := e.sms.Send(ctx, recipient, facts.Tenant.SMSSenderID, body)
	e.metrics.SMSSends.WithLabelValues(metrics.SendOutcome(sendErr)).Inc()
	if sendErr != nil {
		// The claim stands even though the send failed: retrying here would
		// reopen the double-text window the ledger exists to close.
		e.logger.Error("sms send failed after winning claim",
			"call_id", facts.CallID, "sms_type", smsType, "error", sendErr)
		return fmt.Errorf("sending %s for call %s: %w", smsType, facts.CallID, sendErr)
	}

	e.logger.Info("notification sent",
		"call_id", facts.CallID, "sms_type", smsType, "tenant_id", facts.Tenant.ID)
	return nil
}

// HandleRecordingComplete processes the recording-complete callback. The
// conversation entry is always synced; a recording shorter than
// ShortRecordingSeconds is treated as a hang-up and texts the caller, a
// real voicemail alerts the owner and mirrors the audio.
func (e *Engine) HandleRecordingComplete(ctx context.Context, facts CallFacts) error {
	conversationID, err := e.syncer.Upsert(ctx, conversation.UpsertParams{
		TenantID:      facts.Tenant.ID,
		CallerPhone:   facts.CallerNumber,
		LinePhone:     facts.LineNumber,
		PhoneLineID:   facts.phoneLineID(),
		Transcription: strings.TrimSpace(facts.Transcription), // some providers inline it here
		RecordingURL:  facts.RecordingURL,
		DurationSecs:  facts.DurationSecs,
	})
	if err != nil {
		// Notification decisions still run; the thread can catch up on the
		// transcription callback.
		e.logger.Error("conversation sync failed",
			"call_id", facts.CallID, "error", err)
	}

	if facts.DurationSecs < ShortRecordingSeconds {
		return e.claimAndSend(ctx, facts, models.SMSTypeMissedCall,
			facts.CallerNumber, missedCallBody(facts.Tenant.Name))
	}

	e.dispatchOwnerAlert(facts, conversationID)
	e.dispatchPush(facts, PushPayload{
		Type:     "voicemail",
		CallID:   facts.CallID,
		TenantID: facts.Tenant.ID,
		CallerID: facts.CallerNumber,
		Title:    "New voicemail",
		Body:     fmt.Sprintf("New voicemail from %s (%ds)", facts.CallerNumber, facts.DurationSecs),
	})
	if conversationID != "" && facts.RecordingURL != "" {
		e.dispatchMirror(facts, conversationID)
	}
	return nil
}

// HandleTranscription processes the transcription callback. An empty
// transcription means the caller stayed silent and gets the missed-call
// text; real text finalises the conversation entry and answers the caller
// with a generated reply.
func (e *Engine) HandleTranscription(ctx context.Context, facts CallFacts) error {
	facts.Transcription = strings.TrimSpace(facts.Transcription)
	if facts.Transcription == "" {
		return e.claimAndSend(ctx, facts, models.SMSTypeSilentVoicemail,
			facts.CallerNumber, missedCallBody(facts.Tenant.Name))
	}

	if _, err := e.syncer.Upsert(ctx, conversation.UpsertParams{
		TenantID:      facts.Tenant.ID,
		CallerPhone:   facts.CallerNumber,
		LinePhone:     facts.LineNumber,
		PhoneLineID:   facts.phoneLineID(),
		Transcription: facts.Transcription,
		RecordingURL:  facts.RecordingURL,
		DurationSecs:  facts.DurationSecs,
	}); err != nil {
		e.logger.Error("conversation sync failed",
			"call_id", facts.CallID, "error", err)
	}

	e.dispatchPush(facts, PushPayload{
		Type:     "transcription",
		CallID:   facts.CallID,
		TenantID: facts.Tenant.ID,
		CallerID: facts.CallerNumber,
		Title:    "Voicemail transcribed",
		Body:     truncate(facts.Transcription, 140),
	})

	body := fallbackReplyBody(facts.Tenant.Name)
	if e.replies != nil {
		reply, err := e.replies.GenerateReply(ctx, facts.Transcription, facts.CallerNumber, "sms")
		if err != nil {
			e.logger.Warn("reply generation failed, using fallback",
				"call_id", facts.CallID, "error", err)
		} else {
			body = reply
		}
	}

	return e.claimAndSend(ctx, facts, models.SMSTypeAIReply, facts.CallerNumber, body)
}

// NotifyMissedDial alerts the owner's devices that a forwarded call went
// unanswered. The caller is not texted here; they are about to hear the
// voicemail prompt and the recording callbacks decide the caller-facing
// message.
func (e *Engine) NotifyMissedDial(ctx context.Context, facts CallFacts) {
	e.dispatchPush(facts, PushPayload{
		Type:     "missed_call",
		CallID:   facts.CallID,
		TenantID: facts.Tenant.ID,
		CallerID: facts.CallerNumber,
		Title:    "Missed call",
		Body:     fmt.Sprintf("Missed call from %s", facts.CallerNumber),
	})
}

// DispatchInfoSMS queues a direct informational text requested from the
// voice menu. Info sends are immediate responses to a digit press, not
// missed-call fallbacks, so they bypass the claim ledger.
func (e *Engine) DispatchInfoSMS(facts CallFacts, body string) {
	if body == "" || facts.CallerNumber == "" {
		return
	}

	e.dispatcher.Submit("info_sms", func(ctx context.Context) error {
		err := e.sms.Send(ctx, facts.CallerNumber, facts.Tenant.SMSSenderID, body)
		e.metrics.SMSSends.WithLabelValues(metrics.SendOutcome(err)).Inc()
		if err != nil {
			return fmt.Errorf("sending info sms for call %s: %w", facts.CallID, err)
		}
		return nil
	})
}

// dispatchOwnerAlert queues the voicemail owner text, claimed under its own
// scope so webhook retries deliver it once.
func (e *Engine) dispatchOwnerAlert(facts CallFacts, conversationID string) {
	if facts.Tenant.OwnerPhone == "" {
		return
	}

	body := fmt.Sprintf("New voicemail from %s (%ds).", facts.CallerNumber, facts.DurationSecs)
	if e.links != nil && e.links.Configured() && conversationID != "" {
		if link, err := e.links.RecordingLink(conversationID); err == nil {
			body += " Listen: " + link
		} else {
			e.logger.Warn("playback link signing failed",
				"call_id", facts.CallID, "error", err)
		}
	}

	e.dispatcher.Submit("owner_alert", func(ctx context.Context) error {
		return e.claimAndSend(ctx, facts, models.SMSTypeOwnerAlert,
			facts.Tenant.OwnerPhone, body)
	})
}

// dispatchPush queues a push fanout to every registered device of the
// tenant, dropping tokens the platform reports as unregistered.
func (e *Engine) dispatchPush(facts CallFacts, payload PushPayload) {
	if e.push == nil {
		return
	}

	e.dispatcher.Submit("push_fanout", func(ctx context.Context) error {
		tokens, err := e.pushTokens.ListByTenant(ctx, facts.Tenant.ID)
		if err != nil {
			return fmt.Errorf("listing push tokens: %w", err)
		}

		for _, t := range tokens {
			err := e.push.Send(ctx, t.Token, payload)
			e.metrics.PushSends.WithLabelValues(metrics.SendOutcome(err)).Inc()
			if err == nil {
				continue
			}
			if errors.Is(err, ErrTokenUnregistered) {
				if delErr := e.pushTokens.DeleteByToken(ctx, t.Token); delErr != nil {
					e.logger.Warn("removing stale push token failed", "error", delErr)
				} else {
					e.logger.Info("removed unregistered push token",
						"tenant_id", facts.Tenant.ID, "device_id", t.DeviceID)
				}
				continue
			}
			e.logger.Warn("push send failed",
				"call_id", facts.CallID, "device_id", t.DeviceID, "error", err)
		}
		return nil
	})
}

// dispatchMirror queues the recording download into local storage.
func (e *Engine) dispatchMirror(facts CallFacts, conversationID string) {
	if e.fetcher == nil {
		return
	}

	e.dispatcher.Submit("recording_mirror", func(ctx context.Context) error {
		path, err := e.fetcher.Mirror(ctx, facts.RecordingURL, conversationID)
		if err != nil {
			return fmt.Errorf("mirroring recording for call %s: %w", facts.CallID, err)
		}
		return e.syncer.SetRecordingPath(ctx, conversationID, path)
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
