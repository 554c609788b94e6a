package ws

import (
	"time"

	"kaiwa.live/speech"
)

// JoinRequest is the first frame a client sends after connecting: create
// a fresh room or join an existing one, speaking the given language.
type JoinRequest struct {
	Action   string          `json:"action"`
	RoomID   string          `json:"roomId,omitempty"`
	Language speech.Language `json:"language"`
}

const (
	ActionCreate = "create"
	ActionJoin   = "join"
)

// RoomCreated acknowledges a create action to the creator only.
type RoomCreated struct {
	RoomID string `json:"roomId"`
}

// TranscriptMessage is one recognized utterance, broadcast identically to
// both participants regardless of who spoke.
type TranscriptMessage struct {
	MessageJa string `json:"messageJa"`
	MessageEn string `json:"messageEn"`
	Datetime  string `json:"datetime"`
}

func newTranscriptMessage(t speech.Transcript) TranscriptMessage {
	return TranscriptMessage{
		MessageJa: t.MessageJa,
		MessageEn: t.MessageEn,
		Datetime:  t.Datetime.UTC().Format(time.RFC3339Nano),
	}
}

// EventMessage carries room lifecycle notices.
type EventMessage struct {
	Event string `json:"event"`
}

const (
	EventPeerLeft      = "peer_left"
	EventSessionFailed = "session_failed"
)

// Application close codes, in the websocket private range.
const (
	CloseRoomFull         = 4001
	CloseRoomNotFound     = 4002
	CloseMalformedRequest = 4003
	CloseSessionFailed    = 4005
)
