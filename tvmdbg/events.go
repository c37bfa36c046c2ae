// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tvmdbg

import "github.com/rs/zerolog/log"

// EventKind names one of the asynchronous notifications a Session can
// raise.
type EventKind int

const (
	// StopOnEntry fires only when the host calls Session.StopOnEntry, at
	// the next Statement marker; no stepping verb emits it on its own.
	StopOnEntry EventKind = iota
	// StopOnBreakpoint fires when continue halts at a verified
	// breakpoint line.
	StopOnBreakpoint
	// StopOnStep fires when stepIn/stepOver/stepOut satisfies its stop
	// condition.
	StopOnStep
	// Output carries a line of text the emulator logged, when
	// Config.ForwardEmulatorLog is set.
	Output
	// End fires exactly once, when the VM terminates.
	End
)

func (k EventKind) String() string {
	switch k {
	case StopOnEntry:
		return "stopOnEntry"
	case StopOnBreakpoint:
		return "stopOnBreakpoint"
	case StopOnStep:
		return "stopOnStep"
	case Output:
		return "output"
	case End:
		return "end"
	default:
		return "unknown"
	}
}

// Event is a single notification delivered to a Session's event channel.
// Only the fields relevant to Kind are populated; the rest are zero.
type Event struct {
	Kind EventKind

	// Frames is a snapshot of the call stack at the moment of a stop
	// event. Nil for Output and End.
	Frames []StackFrame

	// Line carries Output's text.
	Line string

	// Result carries End's kind-specific final payload.
	Result any
}

// protectedEventReserve is extra room on top of the caller-configured
// queue capacity, reserved exclusively for stop/end events. Ordinary
// backpressure (an Output-heavy trace, a slow host) is absorbed by
// evicting the oldest pending Output event; the reserve exists only so
// that, on the rare occasion every event already queued happens to be a
// stop/end event (e.g. a host that calls several stepping verbs in a
// row without draining in between), send still has somewhere to put a
// new stop/end event instead of being forced to drop it or block the
// stepping loop. It is a bounded safety margin, not unbounded growth:
// if even the reserve is exhausted, the newest event is dropped and
// logged at a higher severity, favoring finite memory over an
// unqualified "never".
const protectedEventReserve = 8

// eventBus is the bounded, asynchronous delivery mechanism a Session uses
// to notify a host. Stop and output events must never be observable
// before the verb that caused them has synchronously returned; every
// send happens in the calling goroutine's own call stack (there is no
// background dispatcher), so an event reaches the channel's buffer, and
// is visible to a non-blocking receive, by the time the stepping verb
// that produced it returns.
//
// The channel has bounded capacity. A host that stops draining — say, a
// disconnected UI — must not be able to stall the stepping engine
// indefinitely. Once the non-reserved part of the buffer is full, send
// evicts the oldest pending Output event to make room for the new one;
// stop and end events are never evicted by this policy, since losing
// one means a host silently stops hearing that stepping paused or ended
// even though the verb call already returned. Every drop is logged so
// the loss is at least observable.
type eventBus struct {
	ch chan Event
}

func newEventBus(capacity int) *eventBus {
	if capacity <= 0 {
		capacity = 1
	}
	return &eventBus{ch: make(chan Event, capacity+protectedEventReserve)}
}

// Events returns the channel a host should range over to receive events.
func (b *eventBus) Events() <-chan Event {
	return b.ch
}

// isProtected reports whether an event must never be silently evicted
// to make room for another. Output is the only kind that may be
// dropped; every stop kind and End carry information a host cannot
// recover by any other means.
func isProtected(k EventKind) bool {
	return k != Output
}

func (b *eventBus) send(e Event) {
	capacity := cap(b.ch) - protectedEventReserve
	if len(b.ch) >= capacity {
		b.evictOldestDroppable()
		if !isProtected(e.Kind) && len(b.ch) >= capacity {
			log.Warn().
				Str("kind", e.Kind.String()).
				Msg("tvmdbg: event queue full of undroppable events, discarding output event")
			return
		}
	}

	select {
	case b.ch <- e:
	default:
		log.Error().
			Str("kind", e.Kind.String()).
			Msg("tvmdbg: event queue full of undroppable events, discarding event")
	}
}

// evictOldestDroppable makes one slot of room by removing the oldest
// pending Output event, preserving the relative order of everything
// else. It never blocks: it only ever receives non-blockingly, so a
// host concurrently draining the same channel just means there is less
// left to look at, never a reason to wait.
func (b *eventBus) evictOldestDroppable() {
	var held []Event
	dropped := false

	for {
		select {
		case e := <-b.ch:
			if !dropped && !isProtected(e.Kind) {
				log.Warn().
					Str("kind", e.Kind.String()).
					Msg("tvmdbg: event queue full, dropping oldest pending event")
				dropped = true
				continue
			}
			held = append(held, e)
		default:
			for _, e := range held {
				b.ch <- e
			}
			return
		}
	}
}

func (b *eventBus) close() {
	close(b.ch)
}
