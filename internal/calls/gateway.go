package calls

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"recruit-comms/internal/credentials"
	"recruit-comms/internal/telephony"
)

// Gateway is the slice of the telephony REST API the orchestrator uses.
// *telephony.Client satisfies it.
type Gateway interface {
	PlaceCall(ctx context.Context, req telephony.PlaceCallRequest) (telephony.PlaceCallResult, error)
	FetchAccount(ctx context.Context) (telephony.Account, error)
	RecordingURL(ctx context.Context, callSID string) (string, error)
}

type GatewayFactory func(creds telephony.Credentials) Gateway

// NewTwilioGatewayFactory builds REST clients against baseURL ("" means the public API).
func NewTwilioGatewayFactory(baseURL string, httpClient *http.Client) GatewayFactory {
	return func(creds telephony.Credentials) Gateway {
		return telephony.NewClient(creds, telephony.ClientOptions{BaseURL: baseURL, HTTPClient: httpClient})
	}
}

// SettingsSource is implemented by *credentials.Store.
type SettingsSource interface {
	GetTwilioSettings(ctx context.Context) (credentials.TwilioSettings, error)
	ClearCategoryCache(category string)
}

// resolvedGateway is an immutable snapshot; callers keep the one they loaded
// even if the handle is reset underneath them.
type resolvedGateway struct {
	gateway Gateway
	source  CredentialSource
	creds   telephony.Credentials
}

// gatewayHandle memoizes credential resolution.
type gatewayHandle struct {
	settings SettingsSource
	env      telephony.Credentials
	factory  GatewayFactory

	mu      sync.Mutex
	current atomic.Pointer[resolvedGateway]
}

func (h *gatewayHandle) load(ctx context.Context) (*resolvedGateway, error) {
	if rg := h.current.Load(); rg != nil {
		return rg, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if rg := h.current.Load(); rg != nil {
		return rg, nil
	}

	rg := &resolvedGateway{source: SourceNone}
	if h.settings != nil {
		s, err := h.settings.GetTwilioSettings(ctx)
		if err != nil {
			// Not memoized: a store outage must not pin the handle to "none".
			return nil, err
		}
		if s.IsConfigured {
			rg.source = SourceStore
			rg.creds = telephony.Credentials{AccountSID: s.AccountSID, AuthToken: s.AuthToken, PhoneNumber: s.PhoneNumber}
		}
	}
	if rg.source == SourceNone && h.env.Complete() {
		rg.source = SourceEnvironment
		rg.creds = h.env
	}
	if rg.source != SourceNone {
		rg.gateway = h.factory(rg.creds)
	}

	h.current.Store(rg)
	return rg, nil
}

func (h *gatewayHandle) reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.settings != nil {
		h.settings.ClearCategoryCache(credentials.CategoryTwilio)
	}
	h.current.Store(nil)
}
