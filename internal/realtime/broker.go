package realtime

import (
	"context"
	"fmt"
)

// Broker publishes progress changes on a bus and feeds hints arriving from
// the bus into a local hub. It satisfies progress.Publisher.
type Broker struct {
	hub *Hub
	bus Bus
}

// NewBroker creates a broker. A nil bus uses an in-process MemoryBus.
func NewBroker(hub *Hub, bus Bus) *Broker {
	if bus == nil {
		bus = NewMemoryBus()
	}
	return &Broker{hub: hub, bus: bus}
}

// Start begins forwarding bus hints into the hub.
func (b *Broker) Start(ctx context.Context) error {
	if err := b.bus.StartForwarder(ctx, b.hub.Broadcast); err != nil {
		return fmt.Errorf("start hint forwarder: %w", err)
	}
	return nil
}

// PublishChange announces that studentID's progress on topicID changed.
func (b *Broker) PublishChange(ctx context.Context, studentID int64, topicID int) error {
	return b.bus.Publish(ctx, Hint{
		Type:      HintProgressUpdated,
		StudentID: studentID,
		TopicID:   topicID,
	})
}

// Hub returns the local hub.
func (b *Broker) Hub() *Hub {
	return b.hub
}

// Close closes the bus and disconnects local subscribers.
func (b *Broker) Close() error {
	b.hub.Close()
	return b.bus.Close()
}
