package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"recruit-comms/internal/config"
)

func TestTwilioSMSProvider_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("To") != "+15551234567" || r.PostForm.Get("From") != "+15550001111" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		_, _ = w.Write([]byte(`{"sid":"SM123","status":"queued"}`))
	}))
	defer srv.Close()

	p := NewTwilioSMSProvider(TwilioProviderConfig{AccountSID: "AC1", AuthToken: "t", From: "+15550001111", BaseURL: srv.URL})
	res, err := p.Send(context.Background(), Params{To: "+15551234567", Message: "hi"})
	if err != nil || !res.Delivered || res.ExternalID != "SM123" {
		t.Fatalf("unexpected result %+v err=%v", res, err)
	}
}

func TestTwilioWhatsAppProvider_PrefixesAddresses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("To") != "whatsapp:+15551234567" || r.PostForm.Get("From") != "whatsapp:+15550001111" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		_, _ = w.Write([]byte(`{"sid":"SM9"}`))
	}))
	defer srv.Close()

	p := NewTwilioWhatsAppProvider(TwilioProviderConfig{AccountSID: "AC1", AuthToken: "t", From: "+15550001111", BaseURL: srv.URL})
	if res, err := p.Send(context.Background(), Params{To: "+15551234567", Message: "hi"}); err != nil || !res.Delivered {
		t.Fatalf("unexpected result %+v err=%v", res, err)
	}
}

func TestTwilioProvider_VendorRejectionIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21614,"message":"not a mobile number"}`))
	}))
	defer srv.Close()

	p := NewTwilioSMSProvider(TwilioProviderConfig{AccountSID: "AC1", AuthToken: "t", From: "+15550001111", BaseURL: srv.URL})
	res, err := p.Send(context.Background(), Params{To: "+15551234567", Message: "hi"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Delivered || res.Error == "" {
		t.Fatalf("expected undelivered result with error text, got %+v", res)
	}
}

func TestUnconfiguredProvidersReturnFalse(t *testing.T) {
	providers := []Provider{
		NewTwilioSMSProvider(TwilioProviderConfig{}),
		NewTwilioWhatsAppProvider(TwilioProviderConfig{AccountSID: "AC1", AuthToken: "t"}),
		NewVonageProvider(VonageProviderConfig{APIKey: "k"}),
		NewWhatsAppCloudProvider(WhatsAppCloudProviderConfig{}),
	}
	for _, p := range providers {
		if p.IsConfigured() {
			t.Fatalf("%s: expected unconfigured", p.Name())
		}
		res, err := p.Send(context.Background(), Params{To: "+15551234567", Message: "hi"})
		if err != nil || res.Delivered {
			t.Fatalf("%s: expected undelivered without error, got %+v %v", p.Name(), res, err)
		}
	}
}

func TestVonageProvider_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sms/json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = r.ParseForm()
		if r.PostForm.Get("to") != "15551234567" {
			t.Errorf("expected plus stripped, got %q", r.PostForm.Get("to"))
		}
		status := "0"
		if r.PostForm.Get("text") == "bad" {
			status = "4"
		}
		_, _ = w.Write([]byte(`{"message-count":"1","messages":[{"message-id":"V1","status":"` + status + `","error-text":"Invalid credentials"}]}`))
	}))
	defer srv.Close()

	p := NewVonageProvider(VonageProviderConfig{APIKey: "k", APISecret: "s", From: "Acme", BaseURL: srv.URL})
	res, err := p.Send(context.Background(), Params{To: "+15551234567", Message: "hi"})
	if err != nil || !res.Delivered || res.ExternalID != "V1" {
		t.Fatalf("unexpected result %+v err=%v", res, err)
	}
	res, err = p.Send(context.Background(), Params{To: "+15551234567", Message: "bad"})
	if err != nil || res.Delivered {
		t.Fatalf("expected rejection, got %+v err=%v", res, err)
	}
}

func TestWhatsAppCloudProvider_Send(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/PN1/messages" || r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("unexpected request %s auth=%q", r.URL.Path, r.Header.Get("Authorization"))
		}
		raw, _ := io.ReadAll(r.Body)
		var msg whatsAppTextMessage
		_ = json.Unmarshal(raw, &msg)
		if msg.MessagingProduct != "whatsapp" || msg.To != "15551234567" || msg.Text.Body != "hi" {
			t.Errorf("unexpected payload %s", raw)
		}
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	defer srv.Close()

	p := NewWhatsAppCloudProvider(WhatsAppCloudProviderConfig{AccessToken: "tok", PhoneNumberID: "PN1", BaseURL: srv.URL})
	res, err := p.Send(context.Background(), Params{To: "+15551234567", Message: "hi"})
	if err != nil || !res.Delivered || res.ExternalID != "wamid.1" {
		t.Fatalf("unexpected result %+v err=%v", res, err)
	}
}

func TestDefaultProviders_Order(t *testing.T) {
	cfg := config.Config{}
	cfg.Vonage = config.VonageConfig{APIKey: "k", APISecret: "s", From: "Acme"}

	providers := DefaultProviders(cfg, ProviderOptions{})
	want := []string{"twilio-sms", "twilio-whatsapp", "vonage-sms", "whatsapp-cloud"}
	for i, p := range providers {
		if p.Name() != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], p.Name())
		}
	}
	def, ok := SelectDefault(providers)
	if !ok || def.Name() != "vonage-sms" {
		t.Fatalf("expected vonage-sms as first configured, got %v", def)
	}
}
