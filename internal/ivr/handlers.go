package ivr

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ringdesk/ringdesk/internal/menus"
	"github.com/ringdesk/ringdesk/internal/notify"
	"github.com/ringdesk/ringdesk/internal/telephony"
	"github.com/ringdesk/ringdesk/internal/tenant"
)

// maxMenuAttempts is the last prompt played before the call stops
// re-prompting and routes to voicemail.
const maxMenuAttempts = 3

// forcedVoicemail is the round-tripped query value that skips the menu and
// goes straight to recording, used after a failed forward dial.
const forcedVoicemail = "voicemail"

const dialTimeoutSeconds = 20

// callContext is the shared preamble result for one webhook: the parsed
// payload plus the resolved tenant and line.
type callContext struct {
	cb   telephony.Callback
	res  tenant.Resolution
	base string
}

func (c callContext) facts() notify.CallFacts {
	return notify.CallFacts{
		CallID:        c.cb.CallID,
		Tenant:        c.res.Tenant,
		Line:          c.res.Line,
		CallerNumber:  c.cb.From,
		LineNumber:    c.res.Number,
		RecordingURL:  c.cb.RecordingURL,
		RecordingID:   c.cb.RecordingID,
		DurationSecs:  c.cb.DurationSeconds(),
		Transcription: c.cb.TranscriptionText,
	}
}

// preamble runs the steps every webhook handler shares: parse the payload,
// resolve the dialed number to a tenant, and determine the callback base URL.
func (s *Server) preamble(r *http.Request, event string) callContext {
	s.metrics.WebhookEvents.WithLabelValues(event).Inc()

	cb := telephony.ParseCallback(r)
	ctx := r.Context()
	return callContext{
		cb:   cb,
		res:  s.resolver.Resolve(ctx, cb.To),
		base: s.baseURL.Resolve(ctx, r),
	}
}

// Callback URL builders. attempt and forced ride the query string because
// the provider is stateless between callbacks.

func selectionURL(base string, attempt int) string {
	return fmt.Sprintf("%s/webhooks/voice/ivr-selection?attempt=%d", base, attempt)
}

func forcedVoicemailURL(base string) string {
	return fmt.Sprintf("%s/webhooks/voice/ivr-selection?forced=%s", base, url.QueryEscape(forcedVoicemail))
}

func noInputURL(base string, attempt int) string {
	return fmt.Sprintf("%s/webhooks/voice/no-input?attempt=%d", base, attempt)
}

func dialStatusURL(base string) string {
	return base + "/webhooks/voice/dial-status"
}

func voicemailCompleteURL(base string) string {
	return base + "/webhooks/voice/voicemail-complete"
}

func recordingStatusURL(base string) string {
	return base + "/webhooks/voice/recording-status"
}

func transcribedURL(base string) string {
	return base + "/webhooks/voice/voicemail-transcribed"
}

// menuFor loads the tenant's menu, falling back to the legacy fixed mapping
// when the primary strategy fails. The legacy strategy cannot fail.
func (s *Server) menuFor(ctx context.Context, tenantID string) *menus.Definition {
	def, err := s.menus.Menu(ctx, tenantID)
	if err == nil {
		return def
	}
	s.logger.Error("menu lookup failed, using legacy menu",
		"tenant_id", tenantID, "error", err)

	def, _ = s.legacy.Menu(ctx, tenantID)
	return def
}

// promptDoc renders the play-and-gather menu prompt for the given attempt.
// A gather timeout falls through to the verb after it, so the document ends
// with a redirect to the no-input endpoint carrying the same attempt.
func (s *Server) promptDoc(c callContext, def *menus.Definition, attempt int) *telephony.Document {
	opts := make([]telephony.MenuOption, 0, len(def.Items))
	for _, item := range def.Items {
		opts = append(opts, telephony.MenuOption{Digit: item.Digit, Label: item.Label})
	}
	doc := telephony.MenuPrompt(telephony.MenuPromptParams{
		TenantName: c.res.Tenant.Name,
		Options:    opts,
		Attempt:    attempt,
		ActionURL:  selectionURL(c.base, attempt),
	})
	doc.Verbs = append(doc.Verbs, telephony.Redirect{Method: "POST", URL: noInputURL(c.base, attempt)})
	return doc
}

// voicemailDoc renders the record leg with the line's greeting override.
func (s *Server) voicemailDoc(c callContext) *telephony.Document {
	greeting := fmt.Sprintf("Please leave a message for %s after the beep.", c.res.Tenant.Name)
	if c.res.Line != nil && c.res.Line.VoicemailGreeting != "" {
		greeting = c.res.Line.VoicemailGreeting
	}
	return telephony.RecordVoicemail(telephony.RecordVoicemailParams{
		Greeting:           greeting,
		ActionURL:          voicemailCompleteURL(c.base),
		StatusCallbackURL:  recordingStatusURL(c.base),
		TranscribeCallback: transcribedURL(c.base),
	})
}

// exhaustedDoc is the terminal path after the re-prompt cap: apologize and
// route to voicemail instead of looping the caller forever.
func (s *Server) exhaustedDoc(c callContext) *telephony.Document {
	doc := s.voicemailDoc(c)
	doc.Verbs = append([]any{
		telephony.Say{Text: "Sorry, we didn't get a valid selection."},
	}, doc.Verbs...)
	return doc
}

// handleIVRSelection processes a digit press (or a forced-voicemail
// redirect). A failed menu lookup, an unknown digit, or an unknown action
// all degrade to a playable document; the caller never hears an error tone.
func (s *Server) handleIVRSelection(w http.ResponseWriter, r *http.Request) {
	c := s.preamble(r, "ivr_selection")
	attempt := telephony.AttemptFromRequest(r)

	if r.URL.Query().Get("forced") == forcedVoicemail {
		writeDocument(w, s.voicemailDoc(c))
		return
	}

	def := s.menuFor(r.Context(), c.res.Tenant.ID)

	item, ok := menus.FindItemByDigit(def, c.cb.Digits)
	if !ok {
		s.logger.Info("no menu item for digit",
			"call_id", c.cb.CallID, "digit", c.cb.Digits, "attempt", attempt)
		if attempt >= maxMenuAttempts {
			writeDocument(w, s.exhaustedDoc(c))
			return
		}
		writeDocument(w, s.promptDoc(c, def, attempt+1))
		return
	}

	s.logger.Info("menu selection",
		"call_id", c.cb.CallID,
		"tenant_id", c.res.Tenant.ID,
		"digit", c.cb.Digits,
		"action", item.Action,
	)
	writeDocument(w, s.actionDoc(c, def, item))
}

// actionDoc renders the control document for a matched menu item.
func (s *Server) actionDoc(c callContext, def *menus.Definition, item menus.Item) *telephony.Document {
	switch item.Action {
	case menus.ActionServicesInfo:
		text := item.Payload
		if text == "" {
			text = fmt.Sprintf("%s offers appointments during regular business hours. Visit our website or press a key to continue.", c.res.Tenant.Name)
		}
		// Speak the info, then gather again in the same document so the
		// caller lands back on the menu without a re-prompt apology.
		doc := s.promptDoc(c, def, 1)
		doc.Verbs = append([]any{telephony.Say{Text: text}}, doc.Verbs...)
		return doc

	case menus.ActionForwardToHuman:
		if c.res.Line == nil || c.res.Line.ForwardNumber == "" {
			// Nobody to forward to; take a message instead.
			return s.voicemailDoc(c)
		}
		return telephony.DialForward(
			c.res.Line.ForwardNumber,
			c.res.Number,
			dialTimeoutSeconds,
			dialStatusURL(c.base),
		)

	case menus.ActionVoicemail:
		return s.voicemailDoc(c)

	case menus.ActionSMSInfo:
		body := item.Payload
		if body == "" {
			body = fmt.Sprintf("Thanks for calling %s! Here's our info. Reply to this message with any questions.", c.res.Tenant.Name)
		}
		s.engine.DispatchInfoSMS(c.facts(), body)
		return telephony.SayAndHangup("We just sent you a text message with the details. Goodbye!")

	case menus.ActionEasterEgg:
		text := item.Payload
		if text == "" {
			text = "You found our secret menu option. Have a wonderful day!"
		}
		return telephony.SayAndHangup(text)
	}

	s.logger.Warn("unknown menu action",
		"call_id", c.cb.CallID, "action", item.Action)
	return s.voicemailDoc(c)
}

// handleNoInput replays the prompt with an incremented attempt counter, up
// to the same cap as invalid digits.
func (s *Server) handleNoInput(w http.ResponseWriter, r *http.Request) {
	c := s.preamble(r, "no_input")
	attempt := telephony.AttemptFromRequest(r)

	if attempt >= maxMenuAttempts {
		writeDocument(w, s.exhaustedDoc(c))
		return
	}

	def := s.menuFor(r.Context(), c.res.Tenant.ID)
	writeDocument(w, s.promptDoc(c, def, attempt+1))
}

// handleDialStatus receives the outcome of forwarding to a human. Any
// non-answered outcome alerts the owner's devices and redirects the caller
// to forced voicemail; the caller-facing SMS decision belongs to the
// voicemail callbacks, never here.
func (s *Server) handleDialStatus(w http.ResponseWriter, r *http.Request) {
	c := s.preamble(r, "dial_status")

	if telephony.DialAnsweredOutcome(c.cb.DialStatus) {
		writeDocument(w, &telephony.Document{Verbs: []any{telephony.Hangup{}}})
		return
	}

	s.logger.Info("forward dial not answered",
		"call_id", c.cb.CallID,
		"tenant_id", c.res.Tenant.ID,
		"dial_status", c.cb.DialStatus,
	)
	s.engine.NotifyMissedDial(r.Context(), c.facts())

	writeDocument(w, telephony.RedirectTo(forcedVoicemailURL(c.base)))
}

// handleVoicemailComplete acknowledges that the recording leg ended. The
// interesting facts arrive on recording-status and voicemail-transcribed;
// this handler only closes the call politely and tolerates missing fields.
func (s *Server) handleVoicemailComplete(w http.ResponseWriter, r *http.Request) {
	c := s.preamble(r, "voicemail_complete")

	if c.cb.CallID == "" || c.cb.RecordingURL == "" {
		s.logger.Warn("voicemail-complete with missing fields",
			"call_id", c.cb.CallID, "recording_url", c.cb.RecordingURL)
	}

	writeDocument(w, telephony.SayAndHangup("Thank you for your message. Goodbye."))
}

// handleRecordingStatus branches on the finished recording's duration: a
// very short recording is a hang-up without a message, anything longer is a
// real voicemail awaiting transcription.
func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	c := s.preamble(r, "recording_status")

	if c.cb.CallID == "" {
		s.logger.Warn("recording-status without call id, ignoring")
		writeAck(w)
		return
	}
	if c.cb.RecordingStatus != "" && c.cb.RecordingStatus != "completed" {
		writeAck(w)
		return
	}

	if err := s.engine.HandleRecordingComplete(r.Context(), c.facts()); err != nil {
		s.logger.Error("recording-status processing failed",
			"call_id", c.cb.CallID, "error", err)
	}
	writeAck(w)
}

// handleVoicemailTranscribed is the terminal decision point for the
// caller-facing message.
func (s *Server) handleVoicemailTranscribed(w http.ResponseWriter, r *http.Request) {
	c := s.preamble(r, "voicemail_transcribed")

	if c.cb.CallID == "" {
		s.logger.Warn("voicemail-transcribed without call id, ignoring")
		writeAck(w)
		return
	}

	if err := s.engine.HandleTranscription(r.Context(), c.facts()); err != nil {
		s.logger.Error("voicemail-transcribed processing failed",
			"call_id", c.cb.CallID, "error", err)
	}
	writeAck(w)
}
