package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// ErrTokenUnregistered marks a push token the platform reports as no longer
// valid; callers should drop the token.
var ErrTokenUnregistered = errors.New("push token no longer registered")

// PushPayload is the data carried on an owner push alert.
type PushPayload struct {
	Type     string // "missed_call", "voicemail", "transcription"
	CallID   string
	TenantID string
	CallerID string
	Title    string
	Body     string
}

// PushSender delivers one push notification to a device token.
type PushSender interface {
	Send(ctx context.Context, token string, payload PushPayload) error
}

// FCMSender sends push notifications via Firebase Cloud Messaging.
type FCMSender struct {
	client *messaging.Client
}

// NewFCMSender initialises a Firebase app from the service-account JSON
// file at credentialsFile and returns a ready-to-use FCMSender.
// If credentialsFile is empty, the SDK falls back to
// GOOGLE_APPLICATION_CREDENTIALS or the default service account.
func NewFCMSender(ctx context.Context, credentialsFile string) (*FCMSender, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialising firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtaining messaging client: %w", err)
	}

	slog.Info("fcm sender initialised")
	return &FCMSender{client: client}, nil
}

// Send delivers a push notification to the given FCM registration token.
func (f *FCMSender) Send(ctx context.Context, token string, payload PushPayload) error {
	ttl := 5 * time.Minute
	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data: map[string]string{
			"type":      payload.Type,
			"call_id":   payload.CallID,
			"tenant_id": payload.TenantID,
			"caller_id": payload.CallerID,
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			TTL:      &ttl,
		},
	}

	id, err := f.client.Send(ctx, msg)
	if err != nil {
		if messaging.IsUnregistered(err) {
			return fmt.Errorf("fcm: %w: %v", ErrTokenUnregistered, err)
		}
		return fmt.Errorf("fcm: send failed: %w", err)
	}

	slog.Debug("fcm message sent", "message_id", id, "call_id", payload.CallID)
	return nil
}

// Ensure FCMSender satisfies the PushSender interface.
var _ PushSender = (*FCMSender)(nil)
