package telephony

import (
	"net/http"
	"strconv"
	"strings"
)

// Callback captures the form fields the provider posts on voice webhooks.
// Every callback type shares one shape; absent fields are empty strings and
// handlers tolerate them.
type Callback struct {
	CallID            string
	From              string
	To                string
	Digits            string
	DialStatus        string
	RecordingID       string
	RecordingURL      string
	RecordingStatus   string
	RecordingDuration string // numeric string, seconds
	TranscriptionID   string
	TranscriptionText string
}

// ParseCallback reads the form-encoded webhook body. It never fails the
// request over malformed bodies; missing fields simply stay empty.
func ParseCallback(r *http.Request) Callback {
	// ParseForm errors leave r.PostForm empty, which the zero-value
	// Callback already represents.
	_ = r.ParseForm()

	return Callback{
		CallID:            r.PostFormValue("CallSid"),
		From:              strings.TrimSpace(r.PostFormValue("From")),
		To:                strings.TrimSpace(r.PostFormValue("To")),
		Digits:            r.PostFormValue("Digits"),
		DialStatus:        r.PostFormValue("DialCallStatus"),
		RecordingID:       r.PostFormValue("RecordingSid"),
		RecordingURL:      r.PostFormValue("RecordingUrl"),
		RecordingStatus:   r.PostFormValue("RecordingStatus"),
		RecordingDuration: r.PostFormValue("RecordingDuration"),
		TranscriptionID:   r.PostFormValue("TranscriptionSid"),
		TranscriptionText: r.PostFormValue("TranscriptionText"),
	}
}

// Dial outcome values reported on the dial-status callback.
const (
	DialAnswered  = "answered"
	DialCompleted = "completed"
	DialNoAnswer  = "no-answer"
	DialBusy      = "busy"
	DialFailed    = "failed"
	DialCanceled  = "canceled"
)

// DialAnsweredOutcome reports whether the dial outcome means a human picked up.
func DialAnsweredOutcome(status string) bool {
	return status == DialAnswered || status == DialCompleted
}

// DurationSeconds parses the recording duration field, defaulting to 0.
func (c Callback) DurationSeconds() int {
	n, err := strconv.Atoi(strings.TrimSpace(c.RecordingDuration))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// AttemptFromRequest reads the round-tripped attempt counter from the query
// string, defaulting to 1.
func AttemptFromRequest(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("attempt"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
