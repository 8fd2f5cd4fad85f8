package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// twimlResponse is the <Response> root of a TwiML document.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlConnect struct {
	XMLName xml.Name    `xml:"Connect"`
	Stream  twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL        string           `xml:"url,attr"`
	Parameters []twimlParameter `xml:"Parameter"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// StreamParameter is passed to the media stream as a customParameters entry.
type StreamParameter struct {
	Name  string
	Value string
}

// RenderStreamTwiML connects the call audio to a bidirectional media stream at url.
func RenderStreamTwiML(url string, params ...StreamParameter) (string, error) {
	if strings.TrimSpace(url) == "" {
		return "", errors.New("telephony: stream url required")
	}
	if !strings.HasPrefix(url, "wss://") && !strings.HasPrefix(url, "ws://") {
		return "", errors.New("telephony: stream url must be a websocket url")
	}
	s := twimlStream{URL: url}
	for _, p := range params {
		if p.Name == "" || p.Value == "" {
			continue
		}
		s.Parameters = append(s.Parameters, twimlParameter{Name: p.Name, Value: p.Value})
	}
	return render(twimlResponse{Verbs: []any{twimlConnect{Stream: s}, twimlHangup{}}})
}

// RenderEmptyTwiML is the acknowledgement body for status callbacks.
func RenderEmptyTwiML() string {
	out, _ := render(twimlResponse{})
	return out
}

func render(r twimlResponse) (string, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
