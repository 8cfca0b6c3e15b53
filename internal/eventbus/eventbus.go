// Copyright 2026 dotandev
// SPDX-License-Identifier: Apache-2.0

package eventbus

import (
	"sync"
)

// Topic names a notification stream.
type Topic string

// Topics published by the daemon.
const (
	// TopicPluginsChanged fires once after any change to the loaded plugin set.
	TopicPluginsChanged Topic = "plugins.changed"
	// TopicTabletsChanged carries the detected []*tablet.Configuration.
	TopicTabletsChanged Topic = "tablets.changed"
	// TopicDeviceReport carries tablet.DebugReport values while debugging.
	TopicDeviceReport Topic = "device.report"
	// TopicHubChanged carries hub.Event values.
	TopicHubChanged Topic = "hub.changed"
	// TopicSettingsApplied fires after every completed settings application.
	TopicSettingsApplied Topic = "settings.applied"
)

// HandlerID uniquely identifies a registered listener.
type HandlerID uint64

// Handler receives an event payload.
type Handler func(payload any)

// EventBus is a concurrency-safe publish/subscribe bus. Handlers run
// synchronously on the emitting goroutine, outside the bus lock.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[Topic]map[HandlerID]Handler
	order    map[Topic][]HandlerID
	nextID   HandlerID
}

// New returns a ready-to-use EventBus.
func New() *EventBus {
	return &EventBus{
		handlers: make(map[Topic]map[HandlerID]Handler),
		order:    make(map[Topic][]HandlerID),
	}
}

// Subscribe registers handler for topic.
func (b *EventBus) Subscribe(topic Topic, handler Handler) HandlerID {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[HandlerID]Handler)
	}
	b.handlers[topic][id] = handler
	b.order[topic] = append(b.order[topic], id)

	return id
}

// On is Subscribe returning a cancel func.
func (b *EventBus) On(topic Topic, handler Handler) (cancel func()) {
	id := b.Subscribe(topic, handler)
	var once sync.Once
	return func() {
		once.Do(func() { b.Unsubscribe(topic, id) })
	}
}

// Unsubscribe removes the listener identified by id. It is safe to call
// from within a handler.
func (b *EventBus) Unsubscribe(topic Topic, id HandlerID) {
	b.mu.Lock()
	defer b.mu.Unlock()

	listeners, ok := b.handlers[topic]
	if !ok {
		return
	}
	delete(listeners, id)

	ids := b.order[topic]
	for i, v := range ids {
		if v == id {
			b.order[topic] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}

	if len(listeners) == 0 {
		delete(b.handlers, topic)
		delete(b.order, topic)
	}
}

// Emit delivers payload to every handler subscribed to topic, in
// subscription order.
func (b *EventBus) Emit(topic Topic, payload any) {
	b.mu.RLock()
	ids := b.order[topic]
	snapshot := make([]Handler, 0, len(ids))
	for _, id := range ids {
		snapshot = append(snapshot, b.handlers[topic][id])
	}
	b.mu.RUnlock()

	for _, h := range snapshot {
		h(payload)
	}
}

// SubscriberCount returns the number of active subscribers for a topic.
func (b *EventBus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}
