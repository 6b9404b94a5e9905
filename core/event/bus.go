package event

import (
	"fmt"
	"sync"
	"time"

	"github.com/edusuite/presence/core"
)

// Event types published by the core.
const (
	TypeSessionStarted   = "session_started"
	TypeSessionEnded     = "session_ended"
	TypeAttendanceMarked = "attendance_marked"
)

// SessionTopic and PresenterTopic name the channels dashboards listen on.
func SessionTopic(sessionID string) string { return "session:" + sessionID }

func PresenterTopic(presenterID string) string { return "presenter:" + presenterID }

type (
	// Event is the envelope delivered to subscribers.
	Event struct {
		Topic     string      `json:"topic"`
		Type      string      `json:"type"`
		Timestamp time.Time   `json:"timestamp"`
		Payload   interface{} `json:"payload,omitempty"`
	}

	// Subscriber receives events for the topics it registered with.
	// The channel is buffered; events are dropped when the subscriber
	// falls behind.
	Subscriber struct {
		topics []string
		ch     chan Event
	}

	// Bus is an in-process topic fanout. Delivery is best-effort: no
	// retry, no persistence, and Publish never blocks or fails the
	// calling operation.
	Bus struct {
		mu   sync.RWMutex
		subs map[string]map[*Subscriber]struct{} // topic -> subscribers
		log  core.Logger
	}
)

const subscriberBuffer = 16

func NewBus(log core.Logger) *Bus {
	return &Bus{
		subs: make(map[string]map[*Subscriber]struct{}),
		log:  log,
	}
}

func (s *Subscriber) C() <-chan Event {
	return s.ch
}

// Subscribe registers a new subscriber on the given topics.
func (b *Bus) Subscribe(topics ...string) *Subscriber {
	sub := &Subscriber{
		topics: topics,
		ch:     make(chan Event, subscriberBuffer),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range topics {
		if b.subs[topic] == nil {
			b.subs[topic] = make(map[*Subscriber]struct{})
		}
		b.subs[topic][sub] = struct{}{}
	}
	return sub
}

// Unsubscribe removes sub from all its topics and closes its channel.
// Safe to call once per subscriber.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range sub.topics {
		if set, ok := b.subs[topic]; ok {
			if _, ok := set[sub]; !ok {
				continue
			}
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subs, topic)
			}
		}
	}
	close(sub.ch)
}

// Publish delivers the event to current subscribers of topic. A missed
// event only affects a live dashboard's freshness, never stored data.
func (b *Bus) Publish(topic, typ string, payload interface{}) {
	evt := Event{
		Topic:     topic,
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs[topic] {
		select {
		case sub.ch <- evt:
		default:
			// subscriber is not keeping up; drop
			if b.log != nil {
				b.log.Debug(fmt.Sprintf("event dropped: topic=%s type=%s", topic, typ))
			}
		}
	}
}
