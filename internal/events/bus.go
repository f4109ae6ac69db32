package events

import (
	"sync"
	"time"
)

// Name is one of the bounded set of event names the engine controller
// publishes across a cycle's lifecycle.
type Name string

const (
	Started             Name = "started"
	Stopped              Name = "stopped"
	CycleStart           Name = "cycleStart"
	CoinSelected         Name = "coinSelected"
	SpecialistAnalysis   Name = "specialistAnalysis"
	TournamentComplete   Name = "tournamentComplete"
	ChampionSelected     Name = "championSelected"
	RiskCouncilDecision  Name = "riskCouncilDecision"
	TradeExecuted        Name = "tradeExecuted"
	CycleComplete        Name = "cycleComplete"
	EmergencyClose       Name = "emergencyClose"
	DebatesComplete      Name = "debatesComplete"
)

// Event is one published occurrence: a name plus an arbitrary JSON-friendly
// payload (cycle number, selected symbol, decision, etc).
type Event struct {
	Name      Name
	Payload   interface{}
	Timestamp time.Time
}

// Listener receives every event published after it subscribes.
type Listener func(Event)

// maxListeners is set high enough to accommodate every active SSE stream
// plus the optional NATS mirror (spec §4.I: "listener cap ... ≥20").
const maxListeners = 256

// Bus is a bounded, in-process typed publisher. Removal is idempotent:
// removing a listener twice, or one that was never added, is a no-op
// rather than an error. Subscribe does not deduplicate: every call adds a
// new entry, so a function subscribed twice receives each event twice.
type Bus struct {
	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
	mirror    Mirror
}

// Mirror is an optional secondary sink (e.g. NATS) that every published
// event is also forwarded to, best-effort.
type Mirror interface {
	Publish(Event)
}

// New constructs an empty Bus. Pass a nil mirror to skip the NATS mirror.
func New(mirror Mirror) *Bus {
	return &Bus{listeners: make(map[int]Listener), mirror: mirror}
}

// Subscription identifies a registered listener for idempotent removal.
type Subscription int

// Subscribe registers a listener and returns a handle for Unsubscribe.
// Returns -1 if the bus is already at capacity.
func (b *Bus) Subscribe(fn Listener) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.listeners) >= maxListeners {
		return -1
	}

	id := b.nextID
	b.nextID++
	b.listeners[id] = fn
	return Subscription(id)
}

// Unsubscribe removes a listener. Safe to call twice or with an unknown id.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, int(sub))
}

// UnsubscribeAll removes every registered listener, used by SSE disconnect
// handling and by the engine controller's cleanup().
func (b *Bus) UnsubscribeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = make(map[int]Listener)
}

// Publish fans an event out to every current listener and, if configured,
// the mirror. Listener callbacks run synchronously on the publishing
// goroutine; a slow listener (e.g. a blocked SSE writer) should buffer
// internally rather than block here.
func (b *Bus) Publish(name Name, payload interface{}) {
	ev := Event{Name: name, Payload: payload, Timestamp: time.Now()}

	b.mu.RLock()
	fns := make([]Listener, 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	mirror := b.mirror
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
	if mirror != nil {
		mirror.Publish(ev)
	}
}

// ListenerCount reports the number of currently registered listeners.
func (b *Bus) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}
