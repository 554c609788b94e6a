package speech

import (
	"context"
	"time"
)

// Language is one side of the ja/en pair a room can host.
type Language string

const (
	Japanese Language = "ja"
	English  Language = "en"
)

func (l Language) Valid() bool {
	return l == Japanese || l == English
}

// Counterpart returns the other half of the pair.
func (l Language) Counterpart() Language {
	if l == Japanese {
		return English
	}
	return Japanese
}

// Transcript is one recognized utterance rendered in both languages.
type Transcript struct {
	MessageJa string
	MessageEn string
	Datetime  time.Time
}

// Transcriber turns a continuous audio byte stream into bilingual
// transcripts. Implementations run recognition as a background task and
// publish results on the Transcripts channel, which is closed when the
// session ends for any reason.
//
// Start and Stop are idempotent. Write drops audio when the session is
// not running; it never fails for that reason.
type Transcriber interface {
	Start(ctx context.Context) error
	Stop() error
	Write(p []byte) error
	Transcripts() <-chan Transcript
}

// Factory builds a transcriber that recognizes speech in source and
// translates it into the counterpart language.
type Factory func(source Language) (Transcriber, error)
