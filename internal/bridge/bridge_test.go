package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"recruit-comms/internal/calls"
)

type fakeStore struct {
	mu     sync.Mutex
	calls  map[string]calls.Call
	events []string
}

func (s *fakeStore) GetCall(ctx context.Context, id string) (calls.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[id]
	if !ok {
		return calls.Call{}, calls.ErrNotFound
	}
	return c, nil
}

func (s *fakeStore) GetCallEvents(ctx context.Context, callID string) ([]calls.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]calls.Event, 0, len(s.events))
	for _, typ := range s.events {
		out = append(out, calls.Event{CallID: callID, Type: typ})
	}
	return out, nil
}

func (s *fakeStore) AppendCallEvent(ctx context.Context, callID, typ string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, typ)
	return nil
}

func (s *fakeStore) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

type realtimeRecorder struct {
	dials   atomic.Int32
	auth    chan string
	model   chan string
	msgs    chan map[string]any
	replies []string
}

func newRealtimeServer(t *testing.T, rec *realtimeRecorder, expect int) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.dials.Add(1)
		rec.auth <- r.Header.Get("Authorization") + "|" + r.Header.Get("OpenAI-Beta")
		rec.model <- r.URL.Query().Get("model")
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for i := 0; i < expect; i++ {
			var m map[string]any
			if err := c.ReadJSON(&m); err != nil {
				return
			}
			rec.msgs <- m
		}
		for _, reply := range rec.replies {
			if err := c.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return
			}
		}
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestBridge_RelaysAudioBothWays(t *testing.T) {
	rec := &realtimeRecorder{
		auth:  make(chan string, 1),
		model: make(chan string, 1),
		msgs:  make(chan map[string]any, 8),
		replies: []string{
			`{"type":"response.audio.delta","delta":"BBBB"}`,
			`{"type":"input_audio_buffer.speech_started"}`,
		},
	}
	ai := newRealtimeServer(t, rec, 3)

	store := &fakeStore{calls: map[string]calls.Call{
		"call-1": {ID: "call-1", Metadata: calls.CallMetadata{SystemPrompt: "Screen the candidate.", Greeting: "Hello Dana"}},
	}}
	h := NewHandler(Config{RealtimeURL: wsURL(ai.URL) + "/v1/realtime", Model: "gpt-4o-realtime-preview", APIKey: "sk-test", DefaultVoice: "alloy"}, store, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	gw, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
	if err != nil {
		t.Fatalf("dial bridge: %v", err)
	}
	defer gw.Close()

	frames := []string{
		`{"event":"connected","protocol":"Call","version":"1.0.0"}`,
		`{"event":"start","streamSid":"MZ1","start":{"streamSid":"MZ1","callSid":"CA1","customParameters":{"callId":"call-1"}}}`,
		`{"event":"media","streamSid":"MZ1","media":{"track":"inbound","payload":"AAAA"}}`,
	}
	for _, f := range frames {
		if err := gw.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	if got := <-rec.auth; got != "Bearer sk-test|realtime=v1" {
		t.Fatalf("headers = %q", got)
	}
	if got := <-rec.model; got != "gpt-4o-realtime-preview" {
		t.Fatalf("model = %q", got)
	}

	update := <-rec.msgs
	if update["type"] != "session.update" {
		t.Fatalf("first message = %v", update)
	}
	sess := update["session"].(map[string]any)
	if sess["instructions"] != "Screen the candidate." || sess["voice"] != "alloy" || sess["input_audio_format"] != "g711_ulaw" {
		t.Fatalf("unexpected session: %v", sess)
	}
	if greet := <-rec.msgs; greet["type"] != "response.create" {
		t.Fatalf("expected greeting response.create, got %v", greet)
	}
	if appendMsg := <-rec.msgs; appendMsg["type"] != "input_audio_buffer.append" || appendMsg["audio"] != "AAAA" {
		t.Fatalf("unexpected append: %v", appendMsg)
	}

	_ = gw.SetReadDeadline(time.Now().Add(5 * time.Second))
	var media, clr map[string]any
	if err := gw.ReadJSON(&media); err != nil {
		t.Fatalf("read media: %v", err)
	}
	if media["event"] != "media" || media["streamSid"] != "MZ1" || media["media"].(map[string]any)["payload"] != "BBBB" {
		t.Fatalf("unexpected media frame: %v", media)
	}
	if err := gw.ReadJSON(&clr); err != nil {
		t.Fatalf("read clear: %v", err)
	}
	if clr["event"] != "clear" || clr["streamSid"] != "MZ1" {
		t.Fatalf("unexpected clear frame: %v", clr)
	}

	if err := gw.WriteMessage(websocket.TextMessage, []byte(`{"event":"stop","streamSid":"MZ1","stop":{"callSid":"CA1"}}`)); err != nil {
		t.Fatalf("write stop: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if ev := store.eventTypes(); len(ev) == 2 {
			if ev[0] != calls.EventStreamStarted || ev[1] != calls.EventStreamStopped {
				t.Fatalf("events = %v", ev)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("stream events not recorded: %v", store.eventTypes())
}

func TestBridge_UnknownCallClosesStream(t *testing.T) {
	rec := &realtimeRecorder{auth: make(chan string, 1), model: make(chan string, 1), msgs: make(chan map[string]any, 1)}
	ai := newRealtimeServer(t, rec, 0)

	h := NewHandler(Config{RealtimeURL: wsURL(ai.URL), APIKey: "sk-test"}, &fakeStore{calls: map[string]calls.Call{}}, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	gw, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer gw.Close()
	start := `{"event":"start","start":{"streamSid":"MZ2","customParameters":{"callId":"missing"}}}`
	if err := gw.WriteMessage(websocket.TextMessage, []byte(start)); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = gw.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := gw.ReadMessage(); err == nil {
		t.Fatalf("expected the bridge to close the stream")
	}
	if rec.dials.Load() != 0 {
		t.Fatalf("realtime backend must not be dialed for unknown calls")
	}
}

func TestBridge_RejectsFinishedOrReplayedStreams(t *testing.T) {
	rec := &realtimeRecorder{auth: make(chan string, 1), model: make(chan string, 1), msgs: make(chan map[string]any, 1)}
	ai := newRealtimeServer(t, rec, 0)

	store := &fakeStore{
		calls: map[string]calls.Call{
			"done": {ID: "done", Status: calls.StatusCompleted},
			"live": {ID: "live", Status: calls.StatusInProgress},
		},
		events: []string{calls.EventStreamStarted},
	}
	h := NewHandler(Config{RealtimeURL: wsURL(ai.URL), APIKey: "sk-test"}, store, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	for _, callID := range []string{"done", "live"} {
		gw, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		start := `{"event":"start","start":{"streamSid":"MZ9","customParameters":{"callId":"` + callID + `"}}}`
		if err := gw.WriteMessage(websocket.TextMessage, []byte(start)); err != nil {
			t.Fatalf("write: %v", err)
		}
		_ = gw.SetReadDeadline(time.Now().Add(5 * time.Second))
		if _, _, err := gw.ReadMessage(); err == nil {
			t.Fatalf("%s: expected the bridge to close the stream", callID)
		}
		gw.Close()
	}
	if rec.dials.Load() != 0 {
		t.Fatalf("realtime backend dialed %d times for rejected streams", rec.dials.Load())
	}
	if ev := store.eventTypes(); len(ev) != 1 {
		t.Fatalf("rejected streams must not record events: %v", ev)
	}
}

func TestReadStart_RequiresCallID(t *testing.T) {
	store := &fakeStore{calls: map[string]calls.Call{}}
	h := NewHandler(Config{RealtimeURL: "ws://127.0.0.1:1"}, store, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	gw, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer gw.Close()
	b, _ := json.Marshal(gatewayFrame{Event: "start", Start: &startFrame{StreamSid: "MZ3"}})
	_ = gw.WriteMessage(websocket.TextMessage, b)

	_ = gw.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := gw.ReadMessage(); err == nil {
		t.Fatalf("expected close without callId")
	}
	if len(store.eventTypes()) != 0 {
		t.Fatalf("no events expected")
	}
}
