package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"recruit-comms/internal/telephony"
)

// TwilioProvider sends through the Twilio Messages API, either as plain SMS
// or over WhatsApp (channel addresses prefixed with "whatsapp:").
type TwilioProvider struct {
	name     string
	whatsapp bool
	from     string
	client   *telephony.Client
	log      *slog.Logger
}

type TwilioProviderConfig struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewTwilioSMSProvider(cfg TwilioProviderConfig) *TwilioProvider {
	return newTwilioProvider("twilio-sms", false, cfg)
}

func NewTwilioWhatsAppProvider(cfg TwilioProviderConfig) *TwilioProvider {
	return newTwilioProvider("twilio-whatsapp", true, cfg)
}

func newTwilioProvider(name string, whatsapp bool, cfg TwilioProviderConfig) *TwilioProvider {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	p := &TwilioProvider{name: name, whatsapp: whatsapp, from: cfg.From, log: cfg.Logger}
	if cfg.AccountSID != "" && cfg.AuthToken != "" {
		p.client = telephony.NewClient(
			telephony.Credentials{AccountSID: cfg.AccountSID, AuthToken: cfg.AuthToken, PhoneNumber: cfg.From},
			telephony.ClientOptions{BaseURL: cfg.BaseURL, HTTPClient: cfg.HTTPClient},
		)
	}
	return p
}

func (p *TwilioProvider) Name() string { return p.name }

func (p *TwilioProvider) IsConfigured() bool {
	return p.client != nil && p.from != ""
}

func (p *TwilioProvider) Send(ctx context.Context, params Params) (Result, error) {
	if !p.IsConfigured() {
		return notConfigured(p.log, p.name), nil
	}
	to, from := params.To, p.from
	if p.whatsapp {
		to, from = whatsappAddress(to), whatsappAddress(from)
	}

	res, err := p.client.SendMessage(ctx, telephony.MessageRequest{To: to, From: from, Body: params.Message})
	if err != nil {
		var apiErr *telephony.APIError
		if errors.As(err, &apiErr) {
			return Result{Error: apiErr.Error()}, nil
		}
		return Result{}, err
	}
	return Result{Delivered: true, ExternalID: res.SID}, nil
}

func whatsappAddress(n string) string {
	if strings.HasPrefix(n, "whatsapp:") {
		return n
	}
	return "whatsapp:" + n
}
