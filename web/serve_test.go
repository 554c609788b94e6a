package web_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"kaiwa.live/room"
	"kaiwa.live/speech"
	"kaiwa.live/web"
)

func newServer(t *testing.T) (*httptest.Server, *room.Registry) {
	t.Helper()
	reg := room.NewRegistry(room.RegistryConfig{
		NewTranscriber: func(speech.Language) (speech.Transcriber, error) {
			return speech.NewFake(), nil
		},
		Logger: log.New(io.Discard),
	})
	srv := httptest.NewServer(web.NewRouter(reg, log.New(io.Discard)))
	t.Cleanup(srv.Close)
	return srv, reg
}

func TestHealthz(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Fatalf("body = %q, want ok", body)
	}
}

func TestRoomsIndex(t *testing.T) {
	srv, reg := newServer(t)

	reg.GetOrCreate("R1")
	reg.GetOrCreate("R2")

	resp, err := http.Get(srv.URL + "/api/rooms")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	var infos []room.Info
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d rooms, want 2", len(infos))
	}
	for _, info := range infos {
		if info.State != "empty" || info.Participants != 0 {
			t.Fatalf("unexpected room snapshot: %+v", info)
		}
	}
}

func TestMetricsExposed(t *testing.T) {
	srv, _ := newServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "kaiwa_active_rooms") {
		t.Fatal("metrics endpoint does not expose room gauges")
	}
}
