package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultWhatsAppCloudBaseURL = "https://graph.facebook.com/v19.0"

// WhatsAppCloudProvider sends text messages through the Meta WhatsApp Cloud API.
type WhatsAppCloudProvider struct {
	token         string
	phoneNumberID string
	baseURL       string
	http          *http.Client
	log           *slog.Logger
}

type WhatsAppCloudProviderConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

func NewWhatsAppCloudProvider(cfg WhatsAppCloudProviderConfig) *WhatsAppCloudProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultWhatsAppCloudBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &WhatsAppCloudProvider{
		token:         cfg.AccessToken,
		phoneNumberID: cfg.PhoneNumberID,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		http:          cfg.HTTPClient,
		log:           cfg.Logger,
	}
}

func (p *WhatsAppCloudProvider) Name() string { return "whatsapp-cloud" }

func (p *WhatsAppCloudProvider) IsConfigured() bool {
	return p.token != "" && p.phoneNumberID != ""
}

type whatsAppTextMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type whatsAppResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func (p *WhatsAppCloudProvider) Send(ctx context.Context, params Params) (Result, error) {
	if !p.IsConfigured() {
		return notConfigured(p.log, p.Name()), nil
	}

	msg := whatsAppTextMessage{MessagingProduct: "whatsapp", To: strings.TrimPrefix(params.To, "+"), Type: "text"}
	msg.Text.Body = params.Message
	body, err := json.Marshal(msg)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/"+p.phoneNumberID+"/messages", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	var out whatsAppResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("whatsapp-cloud: decode response: %w", err)
	}
	if out.Error != nil {
		return Result{Error: fmt.Sprintf("whatsapp-cloud: code %d: %s", out.Error.Code, out.Error.Message)}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || len(out.Messages) == 0 {
		return Result{Error: fmt.Sprintf("whatsapp-cloud: http %d", resp.StatusCode)}, nil
	}
	return Result{Delivered: true, ExternalID: out.Messages[0].ID}, nil
}
