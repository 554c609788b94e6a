package azure

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"kaiwa.live/speech"
)

// recognitionResponse is the JSON body of translation.hypothesis and
// translation.phrase frames.
type recognitionResponse struct {
	RecognitionStatus string `json:"RecognitionStatus"`
	Text              string `json:"Text"`
	Offset            int64  `json:"Offset"`
	Duration          int64  `json:"Duration"`
	Translation       struct {
		TranslationStatus string `json:"TranslationStatus"`
		Translations      []struct {
			Language string `json:"Language"`
			Text     string `json:"Text"`
		} `json:"Translations"`
	} `json:"Translation"`
}

// Transcriber adapts one realtime translation session to the
// speech.Transcriber contract. Recognition output for the source language
// pairs with the service's translation into the counterpart language.
type Transcriber struct {
	source speech.Language
	client *Client
	log    *log.Logger

	mu      sync.Mutex
	started bool
	stopped bool

	out      chan speech.Transcript
	closeOut sync.Once
}

// New builds a transcriber recognizing source speech. Missing credentials
// fail here, before any pipeline is wired up.
func New(cfg Config, source speech.Language, logger *log.Logger) (*Transcriber, error) {
	if cfg.Key == "" || (cfg.Region == "" && cfg.Endpoint == "") {
		return nil, fmt.Errorf("MICROSOFT_SPEECH_API_KEY and MICROSOFT_SPEECH_API_REGION must be set")
	}
	return &Transcriber{
		source: source,
		client: NewClient(cfg),
		log:    logger,
		out:    make(chan speech.Transcript, 16),
	}, nil
}

// Factory wraps New for the room registry.
func Factory(cfg Config, logger *log.Logger) speech.Factory {
	return func(source speech.Language) (speech.Transcriber, error) {
		return New(cfg, source, logger)
	}
}

// Start connects and launches the receive loop. Calling it on a running
// transcriber is a no-op.
func (t *Transcriber) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.stopped {
		return nil
	}

	if err := t.client.Connect(ctx, recognitionLocale(t.source), string(t.source.Counterpart())); err != nil {
		return err
	}
	t.started = true
	go t.readLoop()
	return nil
}

// Stop ends the session. The transcript channel closes once the receive
// loop winds down; Stop does not wait for it.
func (t *Transcriber) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return nil
	}
	t.stopped = true

	if !t.started {
		t.closeTranscripts()
		return nil
	}
	t.client.EndAudio()
	return t.client.Close()
}

// Write ships audio to the service. Audio arriving outside a running
// session is dropped, never an error.
func (t *Transcriber) Write(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started || t.stopped {
		return nil
	}
	return t.client.SendAudio(p)
}

func (t *Transcriber) Transcripts() <-chan speech.Transcript {
	return t.out
}

func (t *Transcriber) closeTranscripts() {
	t.closeOut.Do(func() { close(t.out) })
}

func (t *Transcriber) readLoop() {
	defer t.closeTranscripts()

	for {
		path, body, err := t.client.ReadMessage()
		if err != nil {
			t.mu.Lock()
			stopped := t.stopped
			t.mu.Unlock()
			if !stopped {
				t.log.Error("speech session ended", "error", err)
			}
			return
		}

		switch path {
		case pathTranslationHypothesis:
			var resp recognitionResponse
			if err := json.Unmarshal(body, &resp); err == nil {
				t.log.Debug("recognizing", "text", resp.Text)
			}

		case pathTranslationPhrase:
			t.handlePhrase(body)

		case pathSpeechEndDetected:
			t.log.Debug("speech end detected")

		case pathTurnStart, pathTurnEnd, pathSpeechStartDetected:
			// Turn bookkeeping, nothing to surface.

		default:
			t.log.Debug("unhandled message", "path", path)
		}
	}
}

func (t *Transcriber) handlePhrase(body []byte) {
	var resp recognitionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.log.Warn("bad phrase payload", "error", err)
		return
	}

	tr, ok := transcriptFromPhrase(t.source, resp)
	if !ok {
		// No speech matched, or the translation failed. Recoverable; the
		// stream continues.
		t.log.Info("no speech matched", "status", resp.RecognitionStatus)
		return
	}

	t.log.Info("recognized", "ja", tr.MessageJa, "en", tr.MessageEn)
	t.out <- tr
}

// transcriptFromPhrase pairs the recognized text with its translation.
// The recognized text fills the source-language slot; the translation
// fills the other.
func transcriptFromPhrase(source speech.Language, resp recognitionResponse) (speech.Transcript, bool) {
	if resp.RecognitionStatus != "Success" || resp.Translation.TranslationStatus != "Success" {
		return speech.Transcript{}, false
	}

	translated := ""
	for _, tr := range resp.Translation.Translations {
		if tr.Language == string(source.Counterpart()) {
			translated = tr.Text
			break
		}
	}
	if translated == "" && resp.Text == "" {
		return speech.Transcript{}, false
	}

	out := speech.Transcript{Datetime: time.Now().UTC()}
	if source == speech.Japanese {
		out.MessageJa = resp.Text
		out.MessageEn = translated
	} else {
		out.MessageJa = translated
		out.MessageEn = resp.Text
	}
	return out, true
}

// recognitionLocale maps a room language to the recognition locale the
// service expects.
func recognitionLocale(l speech.Language) string {
	if l == speech.Japanese {
		return "ja-JP"
	}
	return "en-US"
}
