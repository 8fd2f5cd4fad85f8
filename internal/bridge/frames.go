package bridge

// Gateway (Twilio Media Streams) frames.

type gatewayFrame struct {
	Event     string      `json:"event"`
	StreamSid string      `json:"streamSid,omitempty"`
	Start     *startFrame `json:"start,omitempty"`
	Media     *mediaFrame `json:"media,omitempty"`
	Mark      *markFrame  `json:"mark,omitempty"`
	Stop      *stopFrame  `json:"stop,omitempty"`
}

type startFrame struct {
	StreamSid        string            `json:"streamSid"`
	CallSid          string            `json:"callSid"`
	CustomParameters map[string]string `json:"customParameters"`
	MediaFormat      struct {
		Encoding   string `json:"encoding"`
		SampleRate int    `json:"sampleRate"`
		Channels   int    `json:"channels"`
	} `json:"mediaFormat"`
}

type mediaFrame struct {
	Track   string `json:"track,omitempty"`
	Payload string `json:"payload"`
}

type markFrame struct {
	Name string `json:"name"`
}

type stopFrame struct {
	CallSid string `json:"callSid"`
}

// Realtime AI backend events.

type sessionUpdate struct {
	Type    string        `json:"type"`
	Session sessionConfig `json:"session"`
}

type sessionConfig struct {
	Modalities        []string      `json:"modalities"`
	Instructions      string        `json:"instructions,omitempty"`
	Voice             string        `json:"voice,omitempty"`
	InputAudioFormat  string        `json:"input_audio_format"`
	OutputAudioFormat string        `json:"output_audio_format"`
	TurnDetection     turnDetection `json:"turn_detection"`
}

type turnDetection struct {
	Type string `json:"type"`
}

type responseCreate struct {
	Type     string         `json:"type"`
	Response responseParams `json:"response"`
}

type responseParams struct {
	Modalities   []string `json:"modalities"`
	Instructions string   `json:"instructions"`
}

type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type serverEvent struct {
	Type  string `json:"type"`
	Delta string `json:"delta,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const (
	audioFormatULaw = "g711_ulaw"

	eventSessionUpdate  = "session.update"
	eventResponseCreate = "response.create"
	eventAudioAppend    = "input_audio_buffer.append"
	eventAudioDelta     = "response.audio.delta"
	eventSpeechStarted  = "input_audio_buffer.speech_started"
	eventError          = "error"
)
