package events

import (
	"strings"
	"sync"
	"time"

	"github.com/atriumweb/atrium/kernel/utils"
)

// Type names an event variant. The set is closed: subsystems publish
// only the types declared here.
type Type string

const (
	LevelChanged  Type = "perf.level_changed"
	BoostStarted  Type = "perf.boost_started"
	BoostEnded    Type = "perf.boost_ended"
	VoiceActivity Type = "voice.activity"
	NetState      Type = "net.state"
)

// Event is a published occurrence with its typed payload. Exactly one
// payload field is set, matching the Type.
type Event struct {
	ID        string
	Type      Type
	Timestamp int64

	Perf  *PerfPayload
	Voice *VoicePayload
	Net   *NetPayload
}

// PerfPayload accompanies perf.* events
type PerfPayload struct {
	Level    string
	Previous string
	Duration time.Duration // boost events only
}

// VoicePayload accompanies voice.activity
type VoicePayload struct {
	Speaking bool
	Energy   float64
}

// NetPayload accompanies net.state
type NetPayload struct {
	Connected bool
	Endpoint  string
}

// Handler receives events synchronously on the publisher's goroutine
type Handler func(Event)

type subscription struct {
	id      string
	topics  map[string]struct{}
	handler Handler
}

// Bus is a synchronous, order-preserving publish/subscribe hub. A
// panicking handler is isolated and logged; remaining handlers still
// run.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]*subscription
	order  []string
	logger *utils.Logger
}

func NewBus(logger *utils.Logger) *Bus {
	if logger == nil {
		logger = utils.DefaultLogger("events")
	}
	return &Bus{
		subs:   make(map[string]*subscription),
		logger: logger,
	}
}

// Subscribe registers a handler for the given topic patterns and
// returns the subscription id. Patterns follow the mesh convention:
// exact type, "*", or "prefix.*". No patterns means all events.
func (b *Bus) Subscribe(handler Handler, topics ...string) string {
	sub := &subscription{
		id:      "sub_" + utils.GenerateID(),
		topics:  make(map[string]struct{}, len(topics)),
		handler: handler,
	}
	for _, topic := range topics {
		trimmed := strings.TrimSpace(topic)
		if trimmed == "" {
			continue
		}
		sub.topics[trimmed] = struct{}{}
	}

	b.mu.Lock()
	b.subs[sub.id] = sub
	b.order = append(b.order, sub.id)
	b.mu.Unlock()

	return sub.id
}

// Unsubscribe removes a subscription; returns false for unknown ids
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[id]; !ok {
		return false
	}
	delete(b.subs, id)
	for i, sid := range b.order {
		if sid == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return true
}

// Publish dispatches the event to matching handlers in subscription
// order, on the caller's goroutine.
func (b *Bus) Publish(evt Event) {
	if evt.ID == "" {
		evt.ID = "evt_" + utils.GenerateID()
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixNano()
	}

	b.mu.RLock()
	matched := make([]*subscription, 0, len(b.order))
	for _, id := range b.order {
		sub := b.subs[id]
		if sub != nil && topicMatches(sub.topics, string(evt.Type)) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matched {
		b.dispatch(sub, evt)
	}
}

func (b *Bus) dispatch(sub *subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				utils.String("subscription", sub.id),
				utils.String("event", string(evt.Type)),
				utils.Any("panic", r),
			)
		}
	}()
	sub.handler(evt)
}

func topicMatches(topics map[string]struct{}, topic string) bool {
	if len(topics) == 0 {
		return true
	}
	if _, ok := topics["*"]; ok {
		return true
	}
	if _, ok := topics[topic]; ok {
		return true
	}
	for t := range topics {
		if strings.HasSuffix(t, ".*") {
			prefix := strings.TrimSuffix(t, ".*")
			if strings.HasPrefix(topic, prefix+".") {
				return true
			}
		}
	}
	return false
}
