package speech

import (
	"context"
	"sync"
)

// Fake is an in-memory Transcriber for tests and for running the server
// without speech credentials. It records the audio it receives and emits
// only the transcripts a caller feeds it through Emit.
type Fake struct {
	mu      sync.Mutex
	started bool
	stopped bool
	starts  int
	stops   int
	written [][]byte
	out     chan Transcript
}

func NewFake() *Fake {
	return &Fake{out: make(chan Transcript, 16)}
}

func (f *Fake) Start(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started || f.stopped {
		return nil
	}
	f.started = true
	f.starts++
	return nil
}

func (f *Fake) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return nil
	}
	f.stopped = true
	f.stops++
	close(f.out)
	return nil
}

// Write records audio while the session is running and silently drops it
// otherwise.
func (f *Fake) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started || f.stopped {
		return nil
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	f.written = append(f.written, buf)
	return nil
}

func (f *Fake) Transcripts() <-chan Transcript {
	return f.out
}

// Emit publishes a transcript as if it had been recognized. It is a no-op
// once the fake is stopped.
func (f *Fake) Emit(t Transcript) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started || f.stopped {
		return
	}
	f.out <- t
}

// Fail ends the session from the backend side, the way a fatal
// recognition error would: the transcript channel closes without Stop
// having been called.
func (f *Fake) Fail() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	f.stopped = true
	close(f.out)
}

func (f *Fake) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *Fake) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// Written returns the audio payloads received while running.
func (f *Fake) Written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.written))
	copy(out, f.written)
	return out
}
