// Package bridge relays call audio between the telephony media stream and a
// realtime conversational AI backend.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"recruit-comms/internal/calls"
)

const (
	startTimeout  = 10 * time.Second
	dialTimeout   = 10 * time.Second
	writeTimeout  = 5 * time.Second
	defaultPrompt = "You are a friendly, concise recruiting assistant speaking with a candidate on the phone."
)

var (
	ErrNoCallID       = errors.New("bridge: start frame has no callId parameter")
	ErrCallFinished   = errors.New("bridge: call already reached a terminal status")
	ErrStreamReplayed = errors.New("bridge: call already had a media stream")
)

// CallStore is implemented by *calls.Orchestrator.
type CallStore interface {
	GetCall(ctx context.Context, callID string) (calls.Call, error)
	GetCallEvents(ctx context.Context, callID string) ([]calls.Event, error)
	AppendCallEvent(ctx context.Context, callID, typ string, payload any) error
}

type Config struct {
	RealtimeURL  string
	Model        string
	APIKey       string
	DefaultVoice string
}

// Handler serves the media stream websocket endpoint.
type Handler struct {
	cfg      Config
	calls    CallStore
	upgrader websocket.Upgrader
	dialer   *websocket.Dialer
	log      *slog.Logger

	// active holds call ids with a stream being bridged by this process.
	active sync.Map
}

func NewHandler(cfg Config, store CallStore, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		cfg:   cfg,
		calls: store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The gateway is not a browser and sends no Origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: dialTimeout,
		},
		log: log.With("component", "bridge"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	gw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("media stream upgrade failed", "err", err)
		return
	}
	defer gw.Close()

	ctx := context.WithoutCancel(r.Context())
	start, err := readStart(gw)
	if err != nil {
		h.log.Warn("media stream closed before start", "err", err)
		return
	}
	callID := start.CustomParameters["callId"]
	if callID == "" {
		h.log.Warn("media stream rejected", "err", ErrNoCallID, "stream_sid", start.StreamSid)
		return
	}
	log := h.log.With("call_id", callID, "stream_sid", start.StreamSid)

	call, err := h.calls.GetCall(ctx, callID)
	if err != nil {
		log.Warn("media stream for unknown call", "err", err)
		return
	}
	if _, dup := h.active.LoadOrStore(callID, struct{}{}); dup {
		log.Warn("media stream rejected", "err", ErrStreamReplayed)
		return
	}
	defer h.active.Delete(callID)
	if err := h.admit(ctx, call); err != nil {
		log.Warn("media stream rejected", "status", call.Status, "err", err)
		return
	}

	ai, err := h.dialAI(ctx)
	if err != nil {
		log.Error("realtime backend dial failed", "err", err)
		return
	}
	defer ai.Close()

	if err := h.configureSession(ai, call.Metadata); err != nil {
		log.Error("realtime session setup failed", "err", err)
		return
	}

	h.appendEvent(ctx, log, callID, calls.EventStreamStarted, map[string]any{"streamSid": start.StreamSid, "callSid": start.CallSid})
	log.Info("media stream bridged")

	s := &session{gateway: gw, ai: ai, streamSid: start.StreamSid, log: log}
	stats := s.run()

	h.appendEvent(ctx, log, callID, calls.EventStreamStopped, map[string]any{
		"streamSid":      start.StreamSid,
		"framesIn":       stats.framesIn,
		"framesOut":      stats.framesOut,
		"interruptions":  stats.interruptions,
		"durationMillis": stats.duration.Milliseconds(),
	})
	log.Info("media stream ended", "frames_in", stats.framesIn, "frames_out", stats.framesOut)
}

// admit allows one stream per live call; the AI session runs on the
// service's own API key.
func (h *Handler) admit(ctx context.Context, call calls.Call) error {
	if calls.IsTerminal(call.Status) {
		return ErrCallFinished
	}
	evs, err := h.calls.GetCallEvents(ctx, call.ID)
	if err != nil {
		return fmt.Errorf("load call events: %w", err)
	}
	for _, ev := range evs {
		if ev.Type == calls.EventStreamStarted {
			return ErrStreamReplayed
		}
	}
	return nil
}

func (h *Handler) appendEvent(ctx context.Context, log *slog.Logger, callID, typ string, payload any) {
	if err := h.calls.AppendCallEvent(ctx, callID, typ, payload); err != nil {
		log.Warn("stream event not saved", "event", typ, "err", err)
	}
}

func (h *Handler) dialAI(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(h.cfg.RealtimeURL)
	if err != nil {
		return nil, fmt.Errorf("realtime url: %w", err)
	}
	if h.cfg.Model != "" {
		q := u.Query()
		q.Set("model", h.cfg.Model)
		u.RawQuery = q.Encode()
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+h.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, resp, err := h.dialer.DialContext(dialCtx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w (http %d)", err, resp.StatusCode)
		}
		return nil, err
	}
	return conn, nil
}

func (h *Handler) configureSession(ai *websocket.Conn, meta calls.CallMetadata) error {
	prompt := meta.SystemPrompt
	if prompt == "" {
		prompt = defaultPrompt
	}
	voice := meta.Voice
	if voice == "" {
		voice = h.cfg.DefaultVoice
	}
	if err := writeJSON(ai, sessionUpdate{
		Type: eventSessionUpdate,
		Session: sessionConfig{
			Modalities:        []string{"text", "audio"},
			Instructions:      prompt,
			Voice:             voice,
			InputAudioFormat:  audioFormatULaw,
			OutputAudioFormat: audioFormatULaw,
			TurnDetection:     turnDetection{Type: "server_vad"},
		},
	}); err != nil {
		return err
	}
	if meta.Greeting == "" {
		return nil
	}
	return writeJSON(ai, responseCreate{
		Type: eventResponseCreate,
		Response: responseParams{
			Modalities:   []string{"text", "audio"},
			Instructions: "Greet the caller by saying: " + meta.Greeting,
		},
	})
}

func readStart(gw *websocket.Conn) (*startFrame, error) {
	_ = gw.SetReadDeadline(time.Now().Add(startTimeout))
	defer gw.SetReadDeadline(time.Time{})
	for {
		var f gatewayFrame
		if err := gw.ReadJSON(&f); err != nil {
			return nil, err
		}
		switch f.Event {
		case "start":
			if f.Start == nil {
				return nil, errors.New("bridge: start frame without body")
			}
			if f.Start.StreamSid == "" {
				f.Start.StreamSid = f.StreamSid
			}
			return f.Start, nil
		case "stop":
			return nil, errors.New("bridge: stream stopped before start")
		}
	}
}

func writeJSON(c *websocket.Conn, v any) error {
	_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.WriteJSON(v)
}

type sessionStats struct {
	framesIn      int64
	framesOut     int64
	interruptions int64
	duration      time.Duration
}

// session owns one bridged stream. Each direction has a single writer:
// gatewayToAI writes only to ai, aiToGateway writes only to gateway.
type session struct {
	gateway   *websocket.Conn
	ai        *websocket.Conn
	streamSid string
	log       *slog.Logger

	framesIn      atomic.Int64
	framesOut     atomic.Int64
	interruptions atomic.Int64
}

func (s *session) run() sessionStats {
	started := time.Now()
	var once sync.Once
	closeBoth := func() {
		once.Do(func() {
			_ = s.gateway.Close()
			_ = s.ai.Close()
		})
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer closeBoth()
		if err := s.gatewayToAI(); err != nil && !isClosed(err) {
			s.log.Warn("gateway stream error", "err", err)
		}
	}()
	go func() {
		defer wg.Done()
		defer closeBoth()
		if err := s.aiToGateway(); err != nil && !isClosed(err) {
			s.log.Warn("realtime stream error", "err", err)
		}
	}()
	wg.Wait()

	return sessionStats{
		framesIn:      s.framesIn.Load(),
		framesOut:     s.framesOut.Load(),
		interruptions: s.interruptions.Load(),
		duration:      time.Since(started),
	}
}

func (s *session) gatewayToAI() error {
	for {
		var f gatewayFrame
		if err := s.gateway.ReadJSON(&f); err != nil {
			return err
		}
		switch f.Event {
		case "media":
			if f.Media == nil || f.Media.Payload == "" {
				continue
			}
			s.framesIn.Add(1)
			if err := writeJSON(s.ai, audioAppend{Type: eventAudioAppend, Audio: f.Media.Payload}); err != nil {
				return err
			}
		case "stop":
			return nil
		}
	}
}

func (s *session) aiToGateway() error {
	for {
		var ev serverEvent
		if err := s.ai.ReadJSON(&ev); err != nil {
			return err
		}
		switch ev.Type {
		case eventAudioDelta:
			if ev.Delta == "" {
				continue
			}
			s.framesOut.Add(1)
			if err := writeJSON(s.gateway, gatewayFrame{
				Event:     "media",
				StreamSid: s.streamSid,
				Media:     &mediaFrame{Payload: ev.Delta},
			}); err != nil {
				return err
			}
		case eventSpeechStarted:
			// Caller barged in: drop audio the gateway has buffered.
			s.interruptions.Add(1)
			if err := writeJSON(s.gateway, gatewayFrame{Event: "clear", StreamSid: s.streamSid}); err != nil {
				return err
			}
		case eventError:
			if ev.Error != nil {
				s.log.Warn("realtime backend error", "type", ev.Error.Type, "message", ev.Error.Message)
			}
		}
	}
}

func isClosed(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
		errors.Is(err, net.ErrClosed)
}
