package notify

import (
	"log/slog"
	"net/http"
	"strings"

	"recruit-comms/internal/config"
)

// Registry is the ordered provider set. Order is significant: it is the
// default-selection priority used by SelectDefault.
type Registry struct {
	providers []Provider
	byName    map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{byName: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if p == nil {
			continue
		}
		key := strings.ToLower(p.Name())
		if _, dup := r.byName[key]; dup {
			continue
		}
		r.providers = append(r.providers, p)
		r.byName[key] = p
	}
	return r
}

// Lookup finds a provider by name, case-insensitively.
func (r *Registry) Lookup(name string) (Provider, bool) {
	p, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

func (r *Registry) Providers() []Provider {
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

// SelectDefault returns the first configured provider in registry order.
func SelectDefault(providers []Provider) (Provider, bool) {
	for _, p := range providers {
		if p.IsConfigured() {
			return p, true
		}
	}
	return nil, false
}

// ProviderOptions carries shared transport settings for the built-in providers.
type ProviderOptions struct {
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// DefaultProviders builds the built-in providers in priority order:
// SMS primary, WhatsApp primary, SMS secondary, WhatsApp secondary.
func DefaultProviders(cfg config.Config, opts ProviderOptions) []Provider {
	return []Provider{
		NewTwilioSMSProvider(TwilioProviderConfig{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			From:       cfg.Twilio.PhoneNumber,
			BaseURL:    cfg.Twilio.APIBaseURL,
			HTTPClient: opts.HTTPClient,
			Logger:     opts.Logger,
		}),
		NewTwilioWhatsAppProvider(TwilioProviderConfig{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			From:       cfg.Twilio.WhatsAppNumber,
			BaseURL:    cfg.Twilio.APIBaseURL,
			HTTPClient: opts.HTTPClient,
			Logger:     opts.Logger,
		}),
		NewVonageProvider(VonageProviderConfig{
			APIKey:     cfg.Vonage.APIKey,
			APISecret:  cfg.Vonage.APISecret,
			From:       cfg.Vonage.From,
			HTTPClient: opts.HTTPClient,
			Logger:     opts.Logger,
		}),
		NewWhatsAppCloudProvider(WhatsAppCloudProviderConfig{
			AccessToken:   cfg.WhatsAppCloud.AccessToken,
			PhoneNumberID: cfg.WhatsAppCloud.PhoneNumberID,
			HTTPClient:    opts.HTTPClient,
			Logger:        opts.Logger,
		}),
	}
}
