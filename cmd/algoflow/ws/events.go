package ws

import (
	"context"
	"encoding/json"

	"github.com/algoflow/algoflow/common/logger"
	"github.com/algoflow/algoflow/common/models"
	rediscommon "github.com/algoflow/algoflow/common/redis"
)

// EventsChannel carries execution progress events between the executor
// and the WebSocket fanout. Routing through Redis keeps the executor
// decoupled from connection state and works across replicas.
const EventsChannel = "workflow:events"

// Publisher pushes progress events onto the events channel. It satisfies
// the executor's broadcaster contract.
type Publisher struct {
	redis *rediscommon.Client
	log   *logger.Logger
}

// NewPublisher creates an event publisher
func NewPublisher(redis *rediscommon.Client, log *logger.Logger) *Publisher {
	return &Publisher{redis: redis, log: log}
}

// Broadcast serializes the event and publishes it. Publish failures are
// logged and swallowed; live progress is best effort and must never fail
// an execution.
func (p *Publisher) Broadcast(event models.ProgressEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error("failed to marshal progress event", "error", err)
		return
	}
	if err := p.redis.PublishEvent(context.Background(), EventsChannel, string(payload)); err != nil {
		p.log.Warn("failed to publish progress event", "error", err)
	}
}

// Subscriber listens to the events channel and forwards messages to the hub
type Subscriber struct {
	redis *rediscommon.Client
	hub   *Hub
	log   *logger.Logger
}

// NewSubscriber creates a new Subscriber instance
func NewSubscriber(redis *rediscommon.Client, hub *Hub, log *logger.Logger) *Subscriber {
	return &Subscriber{redis: redis, hub: hub, log: log}
}

// Start blocks consuming the events channel until the context is
// cancelled. Run it in its own goroutine.
func (s *Subscriber) Start(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, EventsChannel)
	defer pubsub.Close()

	// Wait for confirmation that the subscription was established
	if _, err := pubsub.Receive(ctx); err != nil {
		s.log.Error("failed to subscribe to events channel", "error", err, "channel", EventsChannel)
		return
	}

	s.log.Info("event subscriber started", "channel", EventsChannel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("event subscriber stopping")
			return

		case msg := <-ch:
			if msg == nil {
				continue
			}
			s.hub.Broadcast([]byte(msg.Payload))
		}
	}
}
