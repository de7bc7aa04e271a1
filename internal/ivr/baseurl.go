package ivr

import (
	"context"
	"net/http"
	"strings"

	"github.com/ringdesk/ringdesk/internal/database"
)

// PublicBaseURLKey is the system-config key overriding the callback base URL.
const PublicBaseURLKey = "public_base_url"

// baseURLProvider is one named source of the public base URL. Providers are
// tried in order; the first to report found wins.
type baseURLProvider struct {
	name    string
	resolve func(ctx context.Context, r *http.Request) (string, bool)
}

// BaseURLResolver determines the externally reachable base URL used to build
// webhook callback URLs. Sources, in order:
//
//	static         the configured public base URL
//	system_config  the public_base_url system-config key
//	request        scheme and host of the incoming request
//
// The request source always resolves, so the chain never fails.
type BaseURLResolver struct {
	providers []baseURLProvider
}

// NewBaseURLResolver builds the provider chain. staticURL may be empty;
// sysConfig may be nil.
func NewBaseURLResolver(staticURL string, sysConfig database.SystemConfigRepository) *BaseURLResolver {
	providers := []baseURLProvider{
		{name: "static", resolve: func(context.Context, *http.Request) (string, bool) {
			return staticURL, staticURL != ""
		}},
	}

	if sysConfig != nil {
		providers = append(providers, baseURLProvider{
			name: "system_config",
			resolve: func(ctx context.Context, _ *http.Request) (string, bool) {
				v, err := sysConfig.Get(ctx, PublicBaseURLKey)
				return v, err == nil && v != ""
			},
		})
	}

	providers = append(providers, baseURLProvider{
		name: "request",
		resolve: func(_ context.Context, r *http.Request) (string, bool) {
			scheme := "http"
			if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
				scheme = proto
			} else if r.TLS != nil {
				scheme = "https"
			}
			return scheme + "://" + r.Host, r.Host != ""
		},
	})

	return &BaseURLResolver{providers: providers}
}

// Resolve returns the base URL without a trailing slash.
func (b *BaseURLResolver) Resolve(ctx context.Context, r *http.Request) string {
	for _, p := range b.providers {
		if url, ok := p.resolve(ctx, r); ok {
			return strings.TrimRight(url, "/")
		}
	}
	return ""
}
