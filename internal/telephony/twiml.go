// Package telephony renders call-control documents for the hosted telephony
// provider and parses its webhook payloads. The document builder is a pure
// function family: given an action and its context it produces the XML
// instruction set for the next call leg, with no provider SDK dependency.
package telephony

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// Document is the instruction set returned to the telephony provider.
type Document struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

// Render serializes the document with the XML header.
func (d *Document) Render() (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(d); err != nil {
		return "", fmt.Errorf("encoding call-control document: %w", err)
	}
	if err := enc.Flush(); err != nil {
		return "", fmt.Errorf("flushing call-control document: %w", err)
	}
	return buf.String(), nil
}

// Say speaks text to the caller.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

// Gather collects digit presses, optionally speaking a nested prompt.
type Gather struct {
	XMLName   xml.Name `xml:"Gather"`
	Action    string   `xml:"action,attr"`
	Method    string   `xml:"method,attr,omitempty"`
	NumDigits int      `xml:"numDigits,attr,omitempty"`
	Timeout   int      `xml:"timeout,attr,omitempty"`
	Say       *Say     `xml:"Say,omitempty"`
}

// Dial bridges the caller to another number.
type Dial struct {
	XMLName  xml.Name `xml:"Dial"`
	Action   string   `xml:"action,attr,omitempty"`
	Method   string   `xml:"method,attr,omitempty"`
	Timeout  int      `xml:"timeout,attr,omitempty"`
	CallerID string   `xml:"callerId,attr,omitempty"`
	Number   string   `xml:"Number,omitempty"`
}

// Record records the caller, reporting recording and transcription results
// to the given callbacks.
type Record struct {
	XMLName                 xml.Name `xml:"Record"`
	Action                  string   `xml:"action,attr,omitempty"`
	MaxLength               int      `xml:"maxLength,attr,omitempty"`
	PlayBeep                bool     `xml:"playBeep,attr"`
	RecordingStatusCallback string   `xml:"recordingStatusCallback,attr,omitempty"`
	Transcribe              bool     `xml:"transcribe,attr"`
	TranscribeCallback      string   `xml:"transcribeCallback,attr,omitempty"`
}

// Redirect transfers control to another webhook URL.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// MenuOption is one spoken menu choice.
type MenuOption struct {
	Digit string
	Label string
}

// MenuPromptParams carries the context for rendering the digit-gather prompt.
type MenuPromptParams struct {
	TenantName string
	Options    []MenuOption
	Attempt    int    // 1-based; wording changes on re-prompts
	ActionURL  string // digit-press callback, carries attempt/menu state
	Timeout    int    // seconds to wait for a digit, defaults to 5
}

// MenuPrompt renders the play-and-gather document for the voice menu. The
// callback URL round-trips attempt and menu identity because the provider is
// stateless between callbacks.
func MenuPrompt(p MenuPromptParams) *Document {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5
	}

	var sb strings.Builder
	switch {
	case p.Attempt <= 1:
		fmt.Fprintf(&sb, "Thank you for calling %s. ", p.TenantName)
	case p.Attempt == 2:
		sb.WriteString("Sorry, I didn't catch that. ")
	default:
		sb.WriteString("Let's try one more time. ")
	}
	for _, opt := range p.Options {
		fmt.Fprintf(&sb, "For %s, press %s. ", opt.Label, opt.Digit)
	}

	return &Document{Verbs: []any{
		Gather{
			Action:    p.ActionURL,
			Method:    "POST",
			NumDigits: 1,
			Timeout:   timeout,
			Say:       &Say{Text: strings.TrimSpace(sb.String())},
		},
	}}
}

// SayAndRedirect speaks text then transfers control to another webhook URL.
// Used for info playback that returns to the menu.
func SayAndRedirect(text, url string) *Document {
	return &Document{Verbs: []any{
		Say{Text: text},
		Redirect{Method: "POST", URL: url},
	}}
}

// SayAndHangup renders a terminal spoken message.
func SayAndHangup(text string) *Document {
	return &Document{Verbs: []any{
		Say{Text: text},
		Hangup{},
	}}
}

// DialForward bridges the caller to a human number, reporting the dial
// outcome to the action callback.
func DialForward(number, callerID string, timeout int, actionURL string) *Document {
	if timeout <= 0 {
		timeout = 20
	}
	return &Document{Verbs: []any{
		Say{Text: "Please hold while we connect you."},
		Dial{
			Action:   actionURL,
			Method:   "POST",
			Timeout:  timeout,
			CallerID: callerID,
			Number:   number,
		},
	}}
}

// RecordVoicemailParams carries the context for rendering the record leg.
type RecordVoicemailParams struct {
	Greeting           string // spoken before the beep
	MaxSeconds         int    // defaults to 120
	ActionURL          string // recording leg ended
	StatusCallbackURL  string // recording file ready
	TranscribeCallback string // transcription ready
}

// RecordVoicemail renders the voicemail recording document.
func RecordVoicemail(p RecordVoicemailParams) *Document {
	maxLen := p.MaxSeconds
	if maxLen <= 0 {
		maxLen = 120
	}
	return &Document{Verbs: []any{
		Say{Text: p.Greeting},
		Record{
			Action:                  p.ActionURL,
			MaxLength:               maxLen,
			PlayBeep:                true,
			RecordingStatusCallback: p.StatusCallbackURL,
			Transcribe:              true,
			TranscribeCallback:      p.TranscribeCallback,
		},
	}}
}

// RedirectTo renders a bare control transfer, used to force the voicemail
// path after a failed dial.
func RedirectTo(url string) *Document {
	return &Document{Verbs: []any{
		Redirect{Method: "POST", URL: url},
	}}
}
