package telephony

import (
	"strings"
	"testing"
)

func TestRenderStreamTwiML(t *testing.T) {
	xml, err := RenderStreamTwiML("wss://comms.example.com/media-stream",
		StreamParameter{Name: "callId", Value: "c-1"},
		StreamParameter{Name: "empty", Value: ""},
	)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{
		"<Connect>",
		`<Stream url="wss://comms.example.com/media-stream">`,
		`<Parameter name="callId" value="c-1">`,
	} {
		if !strings.Contains(xml, want) {
			t.Fatalf("expected %q in xml: %s", want, xml)
		}
	}
	if strings.Contains(xml, `name="empty"`) {
		t.Fatalf("expected empty parameter to be dropped: %s", xml)
	}
}

func TestRenderStreamTwiMLRequiresWebsocketURL(t *testing.T) {
	if _, err := RenderStreamTwiML(""); err == nil {
		t.Fatalf("expected error for empty url")
	}
	if _, err := RenderStreamTwiML("https://comms.example.com/media-stream"); err == nil {
		t.Fatalf("expected error for non-websocket url")
	}
}

func TestRenderEmptyTwiML(t *testing.T) {
	if got := RenderEmptyTwiML(); !strings.Contains(got, "<Response></Response>") {
		t.Fatalf("unexpected empty twiml: %s", got)
	}
}
