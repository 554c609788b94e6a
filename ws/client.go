package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"kaiwa.live/metrics"
	"kaiwa.live/room"
	"kaiwa.live/speech"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Time allowed for the join request after connecting.
	handshakeWait = 10 * time.Second

	// Maximum message size allowed from peer. Audio frames are small;
	// clients typically push a chunk every few hundred milliseconds.
	maxMessageSize = 64 * 1024

	sendQueueSize = 256
)

// outbound is one entry in a client's send queue: a JSON payload, a close
// frame, or a payload followed by a close frame.
type outbound struct {
	payload   any
	close     bool
	closeCode int
}

// Client binds one websocket connection to its room. It implements
// room.Peer; the room talks to it only through the non-blocking send
// queue.
type Client struct {
	conn *websocket.Conn
	room *room.Room
	send chan outbound
	log  *log.Logger

	leaveOnce sync.Once
}

// Deliver enqueues a transcript for the write pump.
func (c *Client) Deliver(t speech.Transcript) {
	c.enqueue(outbound{payload: newTranscriptMessage(t)})
}

// Notify enqueues a lifecycle notice.
func (c *Client) Notify(n room.Notice) {
	switch n {
	case room.NoticePeerLeft:
		c.enqueue(outbound{payload: EventMessage{Event: EventPeerLeft}})
	case room.NoticeSessionFailed:
		c.enqueue(outbound{payload: EventMessage{Event: EventSessionFailed}})
	}
}

// Kick asks the write pump to close the connection: normally when err is
// nil, with the session-failed code otherwise.
func (c *Client) Kick(err error) {
	code := websocket.CloseNormalClosure
	if errors.Is(err, room.ErrSessionFailed) {
		code = CloseSessionFailed
	}
	c.enqueue(outbound{close: true, closeCode: code})
}

// enqueue never blocks. A full queue means the peer has stopped reading;
// that is a transport failure, handled as an implicit leave.
func (c *Client) enqueue(o outbound) {
	select {
	case c.send <- o:
	default:
		c.log.Warn("outbound queue full, dropping connection")
		c.conn.Close()
	}
}

// leave detaches from the room exactly once, no matter how many of the
// close and error paths race here.
func (c *Client) leave() {
	c.leaveOnce.Do(func() {
		c.room.Leave(c)
	})
}

// readPump pumps frames from the websocket into the room. It is the only
// reader on the connection.
func (c *Client) readPump() {
	defer func() {
		c.leave()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn("read error", "room", c.room.ID, "error", err)
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			// Text frames after the handshake carry nothing we act on.
			continue
		}
		metrics.AudioBytesIngested.Add(float64(len(data)))
		c.room.IngestAudio(c, data)
	}
}

// writePump pumps queued messages to the websocket. It is the only writer
// on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case o := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if o.payload != nil {
				if err := c.conn.WriteJSON(o.payload); err != nil {
					c.log.Warn("write error", "room", c.room.ID, "error", err)
					return
				}
			}
			if o.close {
				c.conn.WriteMessage(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(o.closeCode, ""),
				)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
