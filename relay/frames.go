package relay

import (
	"encoding/json"
	"fmt"
)

// Speaker roles.
const (
	RoleCreator     = "creator"
	RoleParticipant = "participant"
)

// Session end reasons.
const (
	ReasonCreatorLeft      = "creator-left"
	ReasonParticipantLeft  = "participant-left"
	ReasonCreditsExhausted = "credits-exhausted"
)

// Inbound frame types.
const (
	frameJoin          = "join"
	frameTranscription = "transcription"
	framePing          = "ping"
)

// joinFrame is the client's request to enter a room.
type joinFrame struct {
	RoomID          string `json:"roomId"`
	Language        string `json:"language"`
	VoiceGender     string `json:"voiceGender"`
	Role            string `json:"role"`
	LastReceivedSeq uint64 `json:"lastReceivedSeq"`
}

// transcriptionFrame carries one speech-recognition result, either a live
// partial caption (interim) or a finalized utterance.
type transcriptionFrame struct {
	RoomID   string  `json:"roomId"`
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Interim  bool    `json:"interim"`
	Offset   float64 `json:"offset,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

// decodeFrame parses an inbound wire frame into its typed form, discriminated
// by the "type" field. Everything past the socket boundary works with these
// concrete types, never raw JSON.
func decodeFrame(data []byte) (interface{}, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch envelope.Type {
	case frameJoin:
		var f joinFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("malformed join frame: %w", err)
		}
		return f, nil
	case frameTranscription:
		var f transcriptionFrame
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("malformed transcription frame: %w", err)
		}
		return f, nil
	case framePing:
		return pingFrame{}, nil
	default:
		return nil, fmt.Errorf("unknown frame type %q", envelope.Type)
	}
}

type pingFrame struct{}

// Outbound frames. Each carries its own discriminator so clients can switch
// on "type" the same way the server does.

type participantJoinedFrame struct {
	Type        string `json:"type"`
	RoomID      string `json:"roomId"`
	Language    string `json:"language"`
	VoiceGender string `json:"voiceGender"`
}

type peerDisconnectedFrame struct {
	Type                string `json:"type"`
	WaitingForReconnect bool   `json:"waitingForReconnect"`
	GraceSeconds        int    `json:"graceSeconds"`
}

type peerReconnectedFrame struct {
	Type string `json:"type"`
}

type sessionStartedFrame struct {
	Type             string `json:"type"`
	CreditsRemaining int64  `json:"creditsRemaining"`
}

type sessionEndedFrame struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type creditUpdateFrame struct {
	Type             string `json:"type"`
	CreditsRemaining int64  `json:"creditsRemaining"`
	Exhausted        bool   `json:"exhausted"`
}

type interimTranscriptionFrame struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Speaker  string `json:"speaker"`
	Language string `json:"language"`
	Interim  bool   `json:"interim"`
}

type translationFrame struct {
	Type               string `json:"type"`
	Seq                uint64 `json:"seq"`
	MessageID          string `json:"messageId"`
	OriginalText       string `json:"originalText"`
	TranslatedText     string `json:"translatedText"`
	Speaker            string `json:"speaker"`
	OriginalLanguage   string `json:"originalLanguage"`
	TranslatedLanguage string `json:"translatedLanguage"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type pongFrame struct {
	Type string `json:"type"`
}

func newErrorFrame(message string) errorFrame {
	return errorFrame{Type: "error", Message: message}
}

func newTranslationFrame(m SequencedMessage) translationFrame {
	return translationFrame{
		Type:               "translation",
		Seq:                m.Seq,
		MessageID:          m.MessageID,
		OriginalText:       m.OriginalText,
		TranslatedText:     m.TranslatedText,
		Speaker:            m.Speaker,
		OriginalLanguage:   m.SourceLanguage,
		TranslatedLanguage: m.TargetLanguage,
	}
}
