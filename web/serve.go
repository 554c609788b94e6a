package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kaiwa.live/room"
	"kaiwa.live/ws"
)

// NewRouter builds the full HTTP surface: the websocket endpoint, health,
// metrics and the rooms index for operators.
func NewRouter(reg *room.Registry, logger *log.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ws", ws.Handler(reg, logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/rooms", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(reg.Rooms()); err != nil {
			logger.Error("encode rooms", "error", err)
		}
	})

	return r
}

func Serve(port int, reg *room.Registry, logger *log.Logger) error {
	logger.Info("http", "url", fmt.Sprintf("http://localhost:%d", port))
	return http.ListenAndServe(fmt.Sprintf(":%d", port), NewRouter(reg, logger))
}
