package ws

import (
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"kaiwa.live/metrics"
	"kaiwa.live/room"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Join requests carry no credentials and rooms are capability-style
	// identifiers, so any origin may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades a request to a websocket, performs the join handshake
// and wires the connection into its room.
func Handler(reg *room.Registry, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("upgrade failed", "error", err)
			return
		}

		conn.SetReadLimit(maxMessageSize)
		conn.SetReadDeadline(time.Now().Add(handshakeWait))
		var req JoinRequest
		if err := conn.ReadJSON(&req); err != nil {
			metrics.JoinRejections.WithLabelValues("malformed").Inc()
			closeWith(conn, CloseMalformedRequest, "expected a join request")
			return
		}
		if !req.Language.Valid() || (req.Action != ActionCreate && req.Action != ActionJoin) ||
			(req.Action == ActionJoin && req.RoomID == "") {
			metrics.JoinRejections.WithLabelValues("malformed").Inc()
			closeWith(conn, CloseMalformedRequest, "bad action or language")
			return
		}

		var rm *room.Room
		created := false
		switch req.Action {
		case ActionCreate:
			rm = reg.Create()
			created = true
		case ActionJoin:
			var ok bool
			rm, ok = reg.Get(req.RoomID)
			if !ok {
				metrics.JoinRejections.WithLabelValues("room_not_found").Inc()
				closeWith(conn, CloseRoomNotFound, "room not found")
				return
			}
		}

		client := &Client{
			conn: conn,
			room: rm,
			send: make(chan outbound, sendQueueSize),
			log:  logger,
		}

		if err := rm.Join(client, req.Language); err != nil {
			rejectJoin(conn, logger, err)
			return
		}

		logger.Info("connection joined", "room", rm.ID, "language", req.Language, "created", created)

		if created {
			client.enqueue(outbound{payload: RoomCreated{RoomID: rm.ID}})
		}

		go client.writePump()
		go client.readPump()
	}
}

func rejectJoin(conn *websocket.Conn, logger *log.Logger, err error) {
	switch {
	case errors.Is(err, room.ErrRoomFull):
		metrics.JoinRejections.WithLabelValues("room_full").Inc()
		closeWith(conn, CloseRoomFull, "room is full")
	case errors.Is(err, room.ErrRoomNotFound):
		metrics.JoinRejections.WithLabelValues("room_not_found").Inc()
		closeWith(conn, CloseRoomNotFound, "room not found")
	case errors.Is(err, room.ErrSessionFailed):
		metrics.JoinRejections.WithLabelValues("session_failed").Inc()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteJSON(EventMessage{Event: EventSessionFailed})
		closeWith(conn, CloseSessionFailed, "transcription session failed")
	default:
		logger.Error("join failed", "error", err)
		closeWith(conn, CloseSessionFailed, "internal error")
	}
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait),
	)
	conn.Close()
}
