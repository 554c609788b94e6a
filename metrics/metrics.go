// Package metrics exposes Prometheus collectors for the room layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveRooms tracks the number of live rooms in the registry.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kaiwa_active_rooms",
		Help: "Number of live rooms.",
	})

	// ConnectedParticipants tracks participants currently joined to a room.
	ConnectedParticipants = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kaiwa_connected_participants",
		Help: "Number of participants currently joined to a room.",
	})

	// TranscriptsBroadcast counts transcripts fanned out to room members.
	TranscriptsBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kaiwa_transcripts_broadcast_total",
		Help: "Transcript events broadcast to room participants.",
	})

	// AudioBytesIngested counts audio payload bytes received over websockets.
	AudioBytesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kaiwa_audio_bytes_ingested_total",
		Help: "Raw audio bytes received from participants.",
	})

	// AudioFramesDropped counts audio frames discarded because the room's
	// transcription pipeline was not running yet.
	AudioFramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kaiwa_audio_frames_dropped_total",
		Help: "Audio frames dropped before the transcription pipeline started.",
	})

	// JoinRejections counts refused join attempts by reason.
	JoinRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kaiwa_join_rejections_total",
		Help: "Join attempts refused, labeled by reason.",
	}, []string{"reason"})
)
