package telephony

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Credentials{AccountSID: "AC1", AuthToken: "tok", PhoneNumber: "+15550001111"}, ClientOptions{BaseURL: srv.URL})
}

func TestClient_PlaceCall(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/2010-04-01/Accounts/AC1/Calls.json" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC1" || pass != "tok" {
			t.Errorf("expected basic auth")
		}
		_ = r.ParseForm()
		if r.PostForm.Get("Record") != "true" || len(r.PostForm["StatusCallbackEvent"]) != 2 {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"CA999","status":"queued"}`))
	})

	res, err := c.PlaceCall(context.Background(), PlaceCallRequest{
		To:                   "+15551234567",
		From:                 "+15550001111",
		TwiML:                "<Response/>",
		StatusCallback:       "https://x/cb",
		StatusCallbackEvents: []string{"ringing", "completed"},
		Record:               true,
	})
	if err != nil {
		t.Fatalf("place call: %v", err)
	}
	if res.SID != "CA999" {
		t.Fatalf("unexpected sid %q", res.SID)
	}
}

func TestClient_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"Invalid 'To' Phone Number","status":400}`))
	})

	_, err := c.PlaceCall(context.Background(), PlaceCallRequest{To: "+1", From: "+2"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 21211 || apiErr.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestClient_FetchAccountAndRecording(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/2010-04-01/Accounts/AC1.json":
			_, _ = w.Write([]byte(`{"sid":"AC1","friendly_name":"Main","status":"active"}`))
		case "/2010-04-01/Accounts/AC1/Calls/CA1/Recordings.json":
			_, _ = w.Write([]byte(`{"recordings":[{"sid":"RE1"}]}`))
		case "/2010-04-01/Accounts/AC1/Calls/CA2/Recordings.json":
			_, _ = w.Write([]byte(`{"recordings":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	acct, err := c.FetchAccount(context.Background())
	if err != nil || acct.Status != "active" {
		t.Fatalf("fetch account: %+v %v", acct, err)
	}

	u, err := c.RecordingURL(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("recording: %v", err)
	}
	if !strings.HasSuffix(u, "/2010-04-01/Accounts/AC1/Recordings/RE1.mp3") {
		t.Fatalf("unexpected recording url %q", u)
	}

	u, err = c.RecordingURL(context.Background(), "CA2")
	if err != nil || u != "" {
		t.Fatalf("expected no recording, got %q %v", u, err)
	}
}

func TestClient_SendMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("Body") != "hello" {
			t.Errorf("unexpected body %q", r.PostForm.Get("Body"))
		}
		_, _ = w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	})
	res, err := c.SendMessage(context.Background(), MessageRequest{To: "+15551234567", From: "+15550001111", Body: "hello"})
	if err != nil || res.SID != "SM1" {
		t.Fatalf("send: %+v %v", res, err)
	}
}
