// Package hotkey turns a global key combination into recording triggers.
// It supports "hold" mode (press starts an utterance, release ends it) and
// "toggle" mode (press starts, press again ends).
package hotkey

import (
	"sync"

	hook "github.com/robotn/gohook"
)

// EventType indicates whether an utterance should start or stop.
type EventType int

const (
	// EventStart signals that capture should begin.
	EventStart EventType = iota
	// EventStop signals that capture should end and transcription begin.
	EventStop
)

// Event is emitted on the channel returned by Events.
type Event struct {
	Type EventType
}

// Listener manages a global hotkey and emits start/stop events.
type Listener struct {
	keys []string
	mode string // "hold" or "toggle"
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewListener creates a Listener for the given key combo and mode.
// keys should be lowercase key names (e.g., ["ctrl", "shift", "d"]).
func NewListener(keys []string, mode string) *Listener {
	return &Listener{
		keys: keys,
		mode: mode,
		ch:   make(chan Event, 16),
		done: make(chan struct{}),
	}
}

// Events returns the channel that receives hotkey events.
// The channel is closed when Stop is called.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// Start begins listening for the global hotkey.
// This function blocks until Stop is called. Run it in a goroutine.
func (l *Listener) Start() {
	switch l.mode {
	case "toggle":
		l.startToggle()
	default: // "hold"
		l.startHold()
	}
}

// startHold maps KeyDown to EventStart and KeyUp to EventStop.
func (l *Listener) startHold() {
	hook.Register(hook.KeyDown, l.keys, func(e hook.Event) {
		l.emit(EventStart)
	})
	hook.Register(hook.KeyUp, l.keys, func(e hook.Event) {
		l.emit(EventStop)
	})

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// startToggle alternates EventStart and EventStop on successive presses.
func (l *Listener) startToggle() {
	var mu sync.Mutex
	recording := false

	hook.Register(hook.KeyDown, l.keys, func(e hook.Event) {
		mu.Lock()
		defer mu.Unlock()
		if recording {
			l.emit(EventStop)
		} else {
			l.emit(EventStart)
		}
		recording = !recording
	})

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// emit delivers an event without ever blocking the hook callback.
func (l *Listener) emit(t EventType) {
	select {
	case l.ch <- Event{Type: t}:
	default: // drop if the consumer is behind
	}
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}
