package ivr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ringdesk/ringdesk/internal/database/models"
)

type fakeSysConfig struct {
	values map[string]string
	err    error
}

func (f *fakeSysConfig) Get(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.values[key], nil
}
func (f *fakeSysConfig) Set(context.Context, string, string) error { return nil }
func (f *fakeSysConfig) GetAll(context.Context) ([]models.SystemConfig, error) {
	return nil, nil
}

func plainRequest() *http.Request {
	return httptest.NewRequest(http.MethodPost, "http://calls.internal:8080/webhooks/voice/no-input", nil)
}

func TestResolveStaticWins(t *testing.T) {
	sys := &fakeSysConfig{values: map[string]string{PublicBaseURLKey: "https://cfg.example.com"}}
	b := NewBaseURLResolver("https://static.example.com", sys)

	if got := b.Resolve(context.Background(), plainRequest()); got != "https://static.example.com" {
		t.Errorf("Resolve() = %q, want static URL", got)
	}
}

func TestResolveSystemConfigSecond(t *testing.T) {
	sys := &fakeSysConfig{values: map[string]string{PublicBaseURLKey: "https://cfg.example.com"}}
	b := NewBaseURLResolver("", sys)

	if got := b.Resolve(context.Background(), plainRequest()); got != "https://cfg.example.com" {
		t.Errorf("Resolve() = %q, want system-config URL", got)
	}
}

func TestResolveFallsBackToRequest(t *testing.T) {
	b := NewBaseURLResolver("", &fakeSysConfig{err: errors.New("db down")})

	if got := b.Resolve(context.Background(), plainRequest()); got != "http://calls.internal:8080" {
		t.Errorf("Resolve() = %q, want request-derived URL", got)
	}
}

func TestResolveHonorsForwardedProto(t *testing.T) {
	b := NewBaseURLResolver("", nil)

	r := plainRequest()
	r.Header.Set("X-Forwarded-Proto", "https")
	if got := b.Resolve(context.Background(), r); got != "https://calls.internal:8080" {
		t.Errorf("Resolve() = %q, want https from forwarded proto", got)
	}
}

func TestResolveTrimsTrailingSlash(t *testing.T) {
	b := NewBaseURLResolver("https://static.example.com/", nil)

	if got := b.Resolve(context.Background(), plainRequest()); got != "https://static.example.com" {
		t.Errorf("Resolve() = %q, want trimmed URL", got)
	}
}
