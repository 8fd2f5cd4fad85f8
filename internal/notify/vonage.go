package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultVonageBaseURL = "https://rest.nexmo.com"

// VonageProvider sends SMS through the Vonage (Nexmo) SMS API.
type VonageProvider struct {
	apiKey    string
	apiSecret string
	from      string
	baseURL   string
	http      *http.Client
	log       *slog.Logger
}

type VonageProviderConfig struct {
	APIKey     string
	APISecret  string
	From       string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

func NewVonageProvider(cfg VonageProviderConfig) *VonageProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultVonageBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &VonageProvider{
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		from:      cfg.From,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		http:      cfg.HTTPClient,
		log:       cfg.Logger,
	}
}

func (p *VonageProvider) Name() string { return "vonage-sms" }

func (p *VonageProvider) IsConfigured() bool {
	return p.apiKey != "" && p.apiSecret != "" && p.from != ""
}

type vonageResponse struct {
	Messages []struct {
		MessageID string `json:"message-id"`
		Status    string `json:"status"`
		ErrorText string `json:"error-text"`
	} `json:"messages"`
}

func (p *VonageProvider) Send(ctx context.Context, params Params) (Result, error) {
	if !p.IsConfigured() {
		return notConfigured(p.log, p.Name()), nil
	}

	form := url.Values{}
	form.Set("api_key", p.apiKey)
	form.Set("api_secret", p.apiSecret)
	form.Set("from", p.from)
	form.Set("to", strings.TrimPrefix(params.To, "+"))
	form.Set("text", params.Message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/sms/json", strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{Error: fmt.Sprintf("vonage: http %d", resp.StatusCode)}, nil
	}
	var out vonageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("vonage: decode response: %w", err)
	}
	if len(out.Messages) == 0 {
		return Result{Error: "vonage: empty response"}, nil
	}
	m := out.Messages[0]
	if m.Status != "0" {
		return Result{Error: fmt.Sprintf("vonage: status %s: %s", m.Status, m.ErrorText)}, nil
	}
	return Result{Delivered: true, ExternalID: m.MessageID}, nil
}
