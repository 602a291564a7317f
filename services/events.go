package services

import (
	"sync"
	"time"
)

type EventType string

const (
	EventSent      EventType = "sent"
	EventOpened    EventType = "opened"
	EventClicked   EventType = "clicked"
	EventSubmitted EventType = "submitted"
	EventLaunched  EventType = "launched"
	EventCompleted EventType = "completed"
)

// TrackingEvent is broadcast to live dashboards. It never carries captured credentials.
type TrackingEvent struct {
	Type       EventType `json:"type"`
	CampaignID uint      `json:"campaign_id"`
	ResultID   uint      `json:"result_id,omitempty"`
	TargetID   uint      `json:"target_id,omitempty"`
	First      bool      `json:"first"`
	At         time.Time `json:"at"`
}

// EventPublisher receives tracking events as they are recorded
type EventPublisher interface {
	Publish(event TrackingEvent)
}

// EventHub fans events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type EventHub struct {
	mu     sync.RWMutex
	subs   map[chan TrackingEvent]struct{}
	buffer int
}

func NewEventHub(buffer int) *EventHub {
	if buffer <= 0 {
		buffer = 16
	}
	return &EventHub{
		subs:   make(map[chan TrackingEvent]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a new listener. The returned func unregisters it and closes the channel.
func (h *EventHub) Subscribe() (<-chan TrackingEvent, func()) {
	ch := make(chan TrackingEvent, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *EventHub) Publish(event TrackingEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribers returns the number of registered listeners
func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
