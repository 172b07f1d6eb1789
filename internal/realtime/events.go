// Package realtime implements a streaming transcription session over a
// websocket duplex connection. A session accepts audio chunks and a manual
// commit from a producer while one consumer blocks for the single final
// transcript.
package realtime

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Server event types. The set is closed: anything else is logged at debug
// level and ignored without failing the session.
const (
	evSessionCreated       = "session.created"
	evSessionUpdated       = "session.updated"
	evBufferCommitted      = "input_audio_buffer.committed"
	evTranscriptCompleted  = "conversation.item.input_audio_transcription.completed"
	evTranscriptDelta      = "response.audio_transcript.delta"
	evTranscriptDone       = "response.audio_transcript.done"
	evResponseDone         = "response.done"
	evError                = "error"
)

// clientEvent is an outbound protocol message. Only the fields relevant to
// the event type are populated.
type clientEvent struct {
	EventID string       `json:"event_id"`
	Type    string       `json:"type"`
	Session *sessionBody `json:"session,omitempty"`
	Audio   string       `json:"audio,omitempty"`
}

// sessionBody configures the recognition session. TurnDetection stays nil so
// it serializes as an explicit null: automatic voice-activity segmentation
// must be off because the hotkey release, not the backend, ends an utterance.
type sessionBody struct {
	Modalities              []string          `json:"modalities"`
	InputAudioFormat        string            `json:"input_audio_format"`
	SampleRate              int               `json:"sample_rate"`
	InputAudioTranscription transcriptionHint `json:"input_audio_transcription"`
	TurnDetection           *struct{}         `json:"turn_detection"`
}

type transcriptionHint struct {
	Language string `json:"language"`
}

// serverEvent is an inbound protocol message, decoded by its type tag.
type serverEvent struct {
	Type       string       `json:"type"`
	Transcript string       `json:"transcript"`
	Delta      string       `json:"delta"`
	Error      *serverError `json:"error"`
}

type serverError struct {
	Message string `json:"message"`
}

func newEventID() string {
	return "event_" + uuid.NewString()
}

func sessionUpdateEvent(language string) clientEvent {
	return clientEvent{
		EventID: newEventID(),
		Type:    "session.update",
		Session: &sessionBody{
			Modalities:              []string{"text"},
			InputAudioFormat:        "pcm",
			SampleRate:              16000,
			InputAudioTranscription: transcriptionHint{Language: language},
		},
	}
}

func appendEvent(audioBase64 string) clientEvent {
	return clientEvent{
		EventID: newEventID(),
		Type:    "input_audio_buffer.append",
		Audio:   audioBase64,
	}
}

func commitEvent() clientEvent {
	return clientEvent{
		EventID: newEventID(),
		Type:    "input_audio_buffer.commit",
	}
}

func decodeServerEvent(data []byte) (serverEvent, error) {
	var ev serverEvent
	err := json.Unmarshal(data, &ev)
	return ev, err
}
