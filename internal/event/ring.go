package event

import (
	"time"
)

// Ring is a fixed-capacity buffer of interaction events. Once full, the
// oldest event is overwritten; raw events never outlive the buffer.
type Ring struct {
	buf   []InteractionEvent
	start int
	size  int
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 256
	}
	return &Ring{buf: make([]InteractionEvent, capacity)}
}

func (r *Ring) Append(ev InteractionEvent) {
	idx := (r.start + r.size) % len(r.buf)
	r.buf[idx] = ev
	if r.size < len(r.buf) {
		r.size++
	} else {
		r.start = (r.start + 1) % len(r.buf)
	}
}

func (r *Ring) Len() int {
	return r.size
}

// Events returns the buffered events oldest-first. The returned slice is a
// copy; callers may hold it across further appends.
func (r *Ring) Events() []InteractionEvent {
	out := make([]InteractionEvent, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Since returns the buffered events with Timestamp >= t, oldest-first.
func (r *Ring) Since(t time.Time) []InteractionEvent {
	all := r.Events()
	for i, ev := range all {
		if !ev.Timestamp.Before(t) {
			return all[i:]
		}
	}
	return nil
}

// Last returns up to n of the most recent events, oldest-first.
func (r *Ring) Last(n int) []InteractionEvent {
	all := r.Events()
	if len(all) > n {
		return all[len(all)-n:]
	}
	return all
}
