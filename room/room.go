package room

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"kaiwa.live/metrics"
	"kaiwa.live/speech"
)

// Notice is a lifecycle signal delivered to a participant outside the
// transcript stream.
type Notice int

const (
	// NoticePeerLeft tells the remaining participant that the other one
	// disconnected.
	NoticePeerLeft Notice = iota

	// NoticeSessionFailed tells a participant that the shared transcription
	// pipeline died and the room is closing.
	NoticeSessionFailed
)

// Peer is the outbound side of one connected participant. Implementations
// must not block: Deliver and Notify enqueue, Kick requests an
// asynchronous close of the transport (normal when err is nil).
type Peer interface {
	Deliver(t speech.Transcript)
	Notify(n Notice)
	Kick(err error)
}

// State is the lifecycle phase of a room's transcription pipeline.
type State int

const (
	StateEmpty State = iota
	StateAwaiting
	StateActive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAwaiting:
		return "awaiting"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type member struct {
	peer     Peer
	language speech.Language
}

// Room pairs up to two participants with one shared transcription
// pipeline. The pipeline starts when the second participant joins and is
// owned exclusively by the room.
type Room struct {
	ID        string
	CreatedAt time.Time

	newTranscriber speech.Factory
	keepAliveSolo  bool
	onEmpty        func(id string)
	log            *log.Logger

	mu          sync.Mutex
	state       State
	members     []member
	sourceLang  speech.Language
	tr          speech.Transcriber
	cancel      context.CancelFunc
	transcripts uint64
}

// Info is a monitoring snapshot of one room.
type Info struct {
	ID           string    `json:"roomId"`
	State        string    `json:"state"`
	Participants int       `json:"participants"`
	CreatedAt    time.Time `json:"createdAt"`
	Transcripts  uint64    `json:"transcripts"`
}

func (r *Room) Info() Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Info{
		ID:           r.ID,
		State:        r.state.String(),
		Participants: len(r.members),
		CreatedAt:    r.CreatedAt,
		Transcripts:  r.transcripts,
	}
}

// Join adds a participant. The first join records the language the
// pipeline will recognize; the second join builds and starts the
// transcriber for the now-known pair. A third join fails with ErrRoomFull
// and leaves the room untouched.
func (r *Room) Join(p Peer, language speech.Language) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateStopped {
		// The room emptied out and is being removed; a concurrent join
		// sees the same answer a later one would.
		return ErrRoomNotFound
	}
	if len(r.members) >= 2 {
		return ErrRoomFull
	}

	r.members = append(r.members, member{peer: p, language: language})
	metrics.ConnectedParticipants.Inc()

	if len(r.members) == 1 {
		r.sourceLang = language
		r.state = StateAwaiting
		r.log.Info("participant joined", "room", r.ID, "language", language, "state", r.state)
		return nil
	}

	tr, err := r.newTranscriber(r.sourceLang)
	if err == nil {
		var ctx context.Context
		ctx, r.cancel = context.WithCancel(context.Background())
		err = tr.Start(ctx)
	}
	if err != nil {
		r.log.Error("transcriber start failed", "room", r.ID, "error", err)
		// The caller surfaces the failure to the joiner itself; tear the
		// room down for everyone who was already in it.
		r.members = r.members[:len(r.members)-1]
		metrics.ConnectedParticipants.Dec()
		r.failLocked()
		return ErrSessionFailed
	}

	r.tr = tr
	r.state = StateActive
	go r.pump(tr)

	r.log.Info("participant joined", "room", r.ID, "language", language, "state", r.state)
	return nil
}

// Leave removes a participant. When the room empties (or, under the
// default policy, when one of two participants leaves) the pipeline stops
// and the room is withdrawn from its registry. Leave never waits for
// in-flight recognition results.
func (r *Room) Leave(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateStopped {
		return
	}

	found := false
	for i, m := range r.members {
		if m.peer == p {
			r.members = append(r.members[:i], r.members[i+1:]...)
			metrics.ConnectedParticipants.Dec()
			found = true
			break
		}
	}
	if !found {
		return
	}

	r.log.Info("participant left", "room", r.ID, "remaining", len(r.members))

	if len(r.members) == 0 {
		r.closeLocked()
		return
	}

	for _, m := range r.members {
		m.peer.Notify(NoticePeerLeft)
	}

	if r.keepAliveSolo {
		// The survivor waits for a replacement; the next pairing
		// recognizes the survivor's language.
		r.stopPipelineLocked()
		r.sourceLang = r.members[0].language
		r.state = StateAwaiting
		return
	}

	for _, m := range r.members {
		m.peer.Kick(nil)
		metrics.ConnectedParticipants.Dec()
	}
	r.members = nil
	r.closeLocked()
}

// IngestAudio forwards audio to the pipeline. Audio arriving before the
// second participant joins is dropped: there is nothing to translate into
// yet.
func (r *Room) IngestAudio(_ Peer, p []byte) {
	r.mu.Lock()
	tr := r.tr
	active := r.state == StateActive
	r.mu.Unlock()

	if !active {
		metrics.AudioFramesDropped.Inc()
		return
	}
	if err := tr.Write(p); err != nil {
		r.log.Warn("audio write failed", "room", r.ID, "error", err)
	}
}

// pump fans transcripts out to every current member, preserving the order
// the transcriber produced them. It keeps draining after teardown so late
// events are discarded instead of delivered to a half-closed room.
func (r *Room) pump(tr speech.Transcriber) {
	for t := range tr.Transcripts() {
		r.mu.Lock()
		peers := make([]Peer, 0, len(r.members))
		if r.state == StateActive && r.tr == tr {
			for _, m := range r.members {
				peers = append(peers, m.peer)
			}
			r.transcripts++
		}
		r.mu.Unlock()

		if len(peers) > 0 {
			metrics.TranscriptsBroadcast.Inc()
		}
		for _, p := range peers {
			p.Deliver(t)
		}
	}

	// The channel closed underneath us. If the room still considers this
	// pipeline active, the backend died and the session is unrecoverable.
	// A superseded pipeline (keep-alive replacement already started a new
	// one) exits quietly instead.
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateActive || r.tr != tr {
		return
	}
	r.log.Error("transcription session ended unexpectedly", "room", r.ID)
	r.failLocked()
}

// failLocked tears the room down after a pipeline failure, notifying
// everyone still joined.
func (r *Room) failLocked() {
	for _, m := range r.members {
		m.peer.Notify(NoticeSessionFailed)
		m.peer.Kick(ErrSessionFailed)
		metrics.ConnectedParticipants.Dec()
	}
	r.members = nil
	r.closeLocked()
}

// closeLocked stops the pipeline, marks the room terminal and withdraws
// it from the registry. Safe to call at most once per room; callers guard
// on state.
func (r *Room) closeLocked() {
	r.stopPipelineLocked()
	r.state = StateStopped
	r.log.Info("room closed", "room", r.ID)
	if r.onEmpty != nil {
		r.onEmpty(r.ID)
	}
}

func (r *Room) stopPipelineLocked() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if r.tr == nil {
		return
	}
	if err := r.tr.Stop(); err != nil {
		r.log.Warn("transcriber stop failed", "room", r.ID, "error", err)
	}
	r.tr = nil
}
