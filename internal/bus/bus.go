package bus

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/charmbracelet/log"
)

// Topic names for every pipeline stage.
const (
	TopicCycleScheduled  = "cycle.scheduled"
	TopicSourceObtained  = "source.url.obtained"
	TopicPlaylistParsed  = "playlist.parsed"
	TopicPlaylistCreated = "playlist.created"
	TopicPlaylistUpdated = "playlist.updated"
	TopicCoverGenerated  = "cover.generated"
)

// Bus bundles the publisher and subscriber halves of the in-process transport.
type Bus struct {
	pubsub *gochannel.GoChannel
}

// NewBus creates an in-process gochannel pub/sub.
//
// The output buffer keeps slow consumers from blocking publishers during a
// fan-out; messages are not persisted, a missed cycle is simply re-run by the
// scheduler.
func NewBus(logger *log.Logger) *Bus {
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		NewLoggerAdapter(logger),
	)
	return &Bus{pubsub: pubsub}
}

// Publisher returns the publishing half.
func (b *Bus) Publisher() message.Publisher { return b.pubsub }

// Subscriber returns the subscribing half.
func (b *Bus) Subscriber() message.Subscriber { return b.pubsub }

// Close shuts the transport down, releasing all subscriptions.
func (b *Bus) Close() error { return b.pubsub.Close() }

// NewMessage wraps a payload in a watermill message with a fresh UUID.
func NewMessage(payload []byte) *message.Message {
	return message.NewMessage(watermill.NewUUID(), payload)
}
