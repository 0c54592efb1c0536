package evidence

import (
	"sync"
	"time"
)

// Kind labels an evidence item for the remote tracker.
type Kind string

const (
	// KindImage is a JPEG still.
	KindImage Kind = "IMAGE"
	// KindAudio is a WAV clip.
	KindAudio Kind = "AUDIO"
)

// Budget enforces the per-incident upload policy: at most maxImages image
// uploads and maxAudio audio uploads per incident, with at least interval
// between successive successful sends. The motion and audio loops both
// capture evidence, so every mutation happens under the lock.
//
// Callers reserve a slot before the network call and roll the reservation
// back on failure; the counters therefore never overshoot the caps even
// when both loops upload concurrently, and a failed upload leaves the
// budget exactly as it was.
type Budget struct {
	mu           sync.Mutex
	incidentID   int
	open         bool
	imagesSent   int
	audioSent    int
	lastSendTime time.Time

	maxImages int
	maxAudio  int
	interval  time.Duration
	now       func() time.Time
}

// NewBudget creates a closed budget; nothing uploads until an incident is
// opened.
func NewBudget(maxImages, maxAudio int, interval time.Duration) *Budget {
	return &Budget{
		maxImages: maxImages,
		maxAudio:  maxAudio,
		interval:  interval,
		now:       time.Now,
	}
}

// Open resets all counters for a newly created incident.
func (b *Budget) Open(incidentID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.incidentID = incidentID
	b.open = true
	b.imagesSent = 0
	b.audioSent = 0
	b.lastSendTime = time.Time{}
}

// Close clears the active incident. Subsequent reservations fail until the
// next Open; local evidence capture is unaffected.
func (b *Budget) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = false
	b.incidentID = 0
}

// IncidentID returns the active remote incident id, or false when no
// incident is open.
func (b *Budget) IncidentID() (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.incidentID, b.open
}

// Reservation holds a tentatively claimed upload slot.
type Reservation struct {
	incident int
	kind     Kind
	prevSend time.Time
	budget   *Budget
}

// Reserve claims an upload slot for one evidence item, atomically checking
// that an incident is open, the per-kind cap has headroom, and the minimum
// send interval has elapsed. The slot counts against the budget immediately;
// the caller must Rollback if the upload fails.
func (b *Budget) Reserve(kind Kind) (*Reservation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil, false
	}
	now := b.now()
	if !b.lastSendTime.IsZero() && now.Sub(b.lastSendTime) < b.interval {
		return nil, false
	}
	switch kind {
	case KindImage:
		if b.imagesSent >= b.maxImages {
			return nil, false
		}
		b.imagesSent++
	case KindAudio:
		if b.audioSent >= b.maxAudio {
			return nil, false
		}
		b.audioSent++
	default:
		return nil, false
	}

	r := &Reservation{
		incident: b.incidentID,
		kind:     kind,
		prevSend: b.lastSendTime,
		budget:   b,
	}
	b.lastSendTime = now
	return r, true
}

// Incident returns the incident id the reservation was made against.
func (r *Reservation) Incident() int { return r.incident }

// Rollback releases a reservation after a failed upload, restoring both the
// per-kind counter and the previous last-send time.
func (r *Reservation) Rollback() {
	b := r.budget
	b.mu.Lock()
	defer b.mu.Unlock()

	switch r.kind {
	case KindImage:
		b.imagesSent--
	case KindAudio:
		b.audioSent--
	}
	b.lastSendTime = r.prevSend
}

// Sent returns the per-kind upload counters, for status reporting.
func (b *Budget) Sent() (images, audio int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.imagesSent, b.audioSent
}
