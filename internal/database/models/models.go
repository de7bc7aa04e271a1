package models

import "time"

// SystemConfig represents a key-value configuration entry.
type SystemConfig struct {
	ID        int64
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Tenant represents an isolated business account on the platform.
type Tenant struct {
	ID          string // stable slug, e.g. "root" or "acme-plumbing"
	Name        string
	OwnerPhone  string // where owner alerts are texted
	SMSSenderID string // outbound SMS "from" number for this tenant
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PhoneLine maps a provider phone number to its owning tenant and the
// line-level call handling configuration.
type PhoneLine struct {
	ID                int64
	Number            string // canonical +E.164
	TenantID          string
	Label             string
	ForwardNumber     string // human to dial on FORWARD_TO_HUMAN, may be empty
	VoicemailGreeting string // override greeting text, may be empty
	Enabled           bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Menu represents a tenant's voice menu configuration. Items is a JSON
// array of digit-to-action bindings; at most one menu per tenant is active.
type Menu struct {
	ID        int64
	TenantID  string
	Name      string
	Active    bool
	Items     string // JSON
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SMS notification types recorded in the claim ledger.
const (
	SMSTypeMissedCall      = "missed_call"
	SMSTypeSilentVoicemail = "missed_call_silent_voicemail"
	SMSTypeAIReply         = "ai_voicemail_reply"
	SMSTypeOwnerAlert      = "voicemail_owner_alert"
)

// ClaimScopeCaller is the shared claim scope for all caller-facing SMS
// types, making them mutually exclusive for a single call.
const ClaimScopeCaller = "caller"

// ClaimScope returns the uniqueness scope for an SMS type. Caller-facing
// types share one scope so a call never texts the caller twice even when
// two decision points fire; other types claim under their own name.
func ClaimScope(smsType string) string {
	switch smsType {
	case SMSTypeMissedCall, SMSTypeSilentVoicemail, SMSTypeAIReply:
		return ClaimScopeCaller
	}
	return smsType
}

// NotificationClaim is an append-only record of the right to send one
// notification for one call. Uniqueness is enforced on (call_id, scope).
type NotificationClaim struct {
	ID             int64
	CallID         string
	TenantID       string
	SMSType        string
	Scope          string
	RecipientPhone string
	ClaimedAt      time.Time
}

// Conversation is one customer conversation thread entry holding voicemail
// data for a caller/line pair. The matching key for upserts is
// (caller_phone, line_phone, phone_line_id), not the call id.
type Conversation struct {
	ID            string // uuid
	TenantID      string
	CallerPhone   string
	LinePhone     string
	PhoneLineID   int64
	Transcription string
	RecordingURL  string
	RecordingPath string // local mirror, may be empty
	DurationSecs  int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PushToken is a registered owner-device push token for a tenant.
type PushToken struct {
	ID        int64
	TenantID  string
	Token     string
	Platform  string // "fcm"
	DeviceID  string
	CreatedAt time.Time
	UpdatedAt time.Time
}
