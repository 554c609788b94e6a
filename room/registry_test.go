package room_test

import (
	"sync"
	"testing"

	"kaiwa.live/room"
	"kaiwa.live/speech"
)

func TestGetOrCreateRaceYieldsOneRoom(t *testing.T) {
	f := &countingFactory{}
	reg := newTestRegistry(t, room.RegistryConfig{NewTranscriber: f.factory})

	const workers = 32
	rooms := make(chan *room.Room, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rooms <- reg.GetOrCreate("R1")
		}()
	}
	wg.Wait()
	close(rooms)

	first := <-rooms
	for r := range rooms {
		if r != first {
			t.Fatal("concurrent GetOrCreate produced distinct rooms")
		}
	}
	if got := len(reg.Rooms()); got != 1 {
		t.Fatalf("registry holds %d rooms, want 1", got)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	f := &countingFactory{}
	reg := newTestRegistry(t, room.RegistryConfig{NewTranscriber: f.factory})

	r := reg.GetOrCreate("R1")
	reg.Remove(r.ID)
	reg.Remove(r.ID)
	reg.Remove("never-existed")

	if _, ok := reg.Get("R1"); ok {
		t.Fatal("room still present after removal")
	}
}

func TestCreateGeneratesFreshIDs(t *testing.T) {
	f := &countingFactory{}
	reg := newTestRegistry(t, room.RegistryConfig{NewTranscriber: f.factory})

	a := reg.Create()
	b := reg.Create()
	if a.ID == b.ID {
		t.Fatalf("two created rooms share id %q", a.ID)
	}
	for _, r := range []*room.Room{a, b} {
		if got, ok := reg.Get(r.ID); !ok || got != r {
			t.Fatalf("created room %q not retrievable", r.ID)
		}
	}
}

func TestRoomsSnapshot(t *testing.T) {
	f := &countingFactory{}
	reg := newTestRegistry(t, room.RegistryConfig{NewTranscriber: f.factory})

	r := reg.GetOrCreate("R1")
	r.Join(&fakePeer{}, speech.Japanese)

	infos := reg.Rooms()
	if len(infos) != 1 {
		t.Fatalf("got %d rooms, want 1", len(infos))
	}
	info := infos[0]
	if info.ID != "R1" || info.State != "awaiting" || info.Participants != 1 {
		t.Fatalf("unexpected snapshot: %+v", info)
	}
}
