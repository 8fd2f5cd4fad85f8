package telephony

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseTwilioStatusCallback(t *testing.T) {
	body := strings.NewReader("CallSid=CA123&CallStatus=Completed&CallDuration=61&From=%2B15550001111&To=%2B15551234567")
	r := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/call-status", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseTwilioStatusCallback(r)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if form.CallSid != "CA123" {
		t.Fatalf("expected CallSid")
	}
	if form.CallStatus != "completed" {
		t.Fatalf("expected lower-cased status, got %q", form.CallStatus)
	}
	if form.CallDuration == nil || *form.CallDuration != 61 {
		t.Fatalf("expected duration 61, got %v", form.CallDuration)
	}
	if form.To != "+15551234567" {
		t.Fatalf("unexpected to: %q", form.To)
	}
}

func TestParseTwilioStatusCallback_NoDuration(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("CallSid=CA1&CallStatus=ringing&CallDuration=abc"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseTwilioStatusCallback(r)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if form.CallDuration != nil {
		t.Fatalf("expected nil duration for malformed value")
	}
}
