// Package azure speaks the Microsoft speech translation realtime
// protocol: one websocket per recognition session, text frames for
// configuration and results, binary frames for audio.
package azure

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const endpointFormat = "wss://%s.stt.speech.microsoft.com/speech/universal/v2"

// writeWait bounds every outbound write so a wedged endpoint cannot
// stall the caller indefinitely.
const writeWait = 10 * time.Second

// Message paths used by the universal v2 endpoint.
const (
	pathSpeechConfig          = "speech.config"
	pathAudio                 = "audio"
	pathTurnStart             = "turn.start"
	pathTurnEnd               = "turn.end"
	pathSpeechStartDetected   = "speech.startdetected"
	pathSpeechEndDetected     = "speech.enddetected"
	pathTranslationHypothesis = "translation.hypothesis"
	pathTranslationPhrase     = "translation.phrase"
)

// Config locates and authorizes a speech translation session.
type Config struct {
	Key    string
	Region string

	// Endpoint overrides the region-derived URL; tests point it at a
	// local server.
	Endpoint string
}

// Client is one realtime connection. It is not safe for concurrent use;
// the owning transcriber serializes access.
type Client struct {
	cfg       Config
	conn      *websocket.Conn
	requestID string
}

func NewClient(cfg Config) *Client {
	return &Client{cfg: cfg}
}

// Connect dials the endpoint for a source locale and target language and
// sends the session configuration.
func (c *Client) Connect(ctx context.Context, fromLocale, toLanguage string) error {
	endpoint := c.cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf(endpointFormat, c.cfg.Region)
	}
	q := url.Values{}
	q.Set("from", fromLocale)
	q.Set("to", toLanguage)

	header := http.Header{}
	header.Set("Ocp-Apim-Subscription-Key", c.cfg.Key)
	header.Set("X-ConnectionId", freshRequestID())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint+"?"+q.Encode(), header)
	if err != nil {
		return fmt.Errorf("failed to connect to speech endpoint: %w", err)
	}

	c.conn = conn
	c.requestID = freshRequestID()

	configBody, err := json.Marshal(map[string]any{
		"context": map[string]any{
			"system": map[string]string{"name": "kaiwa", "version": "1.0.0"},
			"os":     map[string]string{"platform": runtime.GOOS, "name": runtime.GOOS},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal speech config: %w", err)
	}

	frame := encodeTextFrame(pathSpeechConfig, c.requestID, "application/json", configBody)
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to send speech config: %w", err)
	}

	return nil
}

// SendAudio ships one chunk of encoded audio.
func (c *Client) SendAudio(p []byte) error {
	if c.conn == nil {
		return fmt.Errorf("connection not established")
	}
	frame := encodeAudioFrame(c.requestID, p)
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	return nil
}

// EndAudio signals end of stream with an empty audio frame.
func (c *Client) EndAudio() error {
	return c.SendAudio(nil)
}

// ReadMessage returns the path and body of the next text frame from the
// service.
func (c *Client) ReadMessage() (string, []byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", nil, err
		}
		if messageType != websocket.TextMessage {
			continue
		}
		path, body, err := decodeTextFrame(data)
		if err != nil {
			return "", nil, fmt.Errorf("bad frame from service: %w", err)
		}
		return path, body, nil
	}
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait),
	)
	// The conn stays set: the receive loop may still be blocked reading
	// from it and unblocks with an error once it is closed.
	return c.conn.Close()
}

func freshRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// encodeTextFrame renders headers, a blank line and the body.
func encodeTextFrame(path, requestID, contentType string, body []byte) []byte {
	var b strings.Builder
	writeHeaders(&b, path, requestID, contentType)
	b.Write(body)
	return []byte(b.String())
}

// encodeAudioFrame prefixes the headers with their big-endian length, the
// way the service frames binary messages.
func encodeAudioFrame(requestID string, audio []byte) []byte {
	var b strings.Builder
	writeHeaders(&b, pathAudio, requestID, "audio/x-wav")
	headers := b.String()

	frame := make([]byte, 2+len(headers)+len(audio))
	binary.BigEndian.PutUint16(frame[:2], uint16(len(headers)))
	copy(frame[2:], headers)
	copy(frame[2+len(headers):], audio)
	return frame
}

func writeHeaders(b *strings.Builder, path, requestID, contentType string) {
	fmt.Fprintf(b, "Path: %s\r\n", path)
	fmt.Fprintf(b, "X-RequestId: %s\r\n", requestID)
	fmt.Fprintf(b, "X-Timestamp: %s\r\n", time.Now().UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(b, "Content-Type: %s\r\n", contentType)
	b.WriteString("\r\n")
}

// decodeTextFrame splits a downstream text frame into its path and body.
func decodeTextFrame(data []byte) (string, []byte, error) {
	raw := string(data)
	sep := strings.Index(raw, "\r\n\r\n")
	if sep < 0 {
		return "", nil, fmt.Errorf("missing header separator")
	}

	path := ""
	for _, line := range strings.Split(raw[:sep], "\r\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(key), "path") {
			path = strings.ToLower(strings.TrimSpace(value))
		}
	}
	if path == "" {
		return "", nil, fmt.Errorf("frame carries no path header")
	}

	return path, data[sep+4:], nil
}
