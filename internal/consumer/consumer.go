// Package consumer bridges broker events back into the local hub, so
// frames produced by other instances reach this instance's connections.
package consumer

import (
	"context"
	"encoding/json"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/forumhub/chatcore/internal/ws"
	"github.com/forumhub/chatcore/pkg/mq"
)

type EventConsumer struct {
	hub    *ws.Hub
	logger *zap.Logger
}

func NewEventConsumer(hub *ws.Hub, logger *zap.Logger) *EventConsumer {
	return &EventConsumer{hub: hub, logger: logger}
}

func (c *EventConsumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *EventConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim decodes events and re-broadcasts them on the hub topic the
// producer addressed. Undecodable events are logged and skipped.
func (c *EventConsumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var event mq.Event
		if err := json.Unmarshal(message.Value, &event); err != nil {
			c.logger.Warn("failed to decode broker event",
				zap.String("topic", message.Topic),
				zap.Int64("offset", message.Offset),
				zap.Error(err))
			session.MarkMessage(message, "")
			continue
		}
		c.hub.Broadcast(event.Topic, event.Type, json.RawMessage(event.Payload))
		session.MarkMessage(message, "")
	}
	return nil
}

// Start runs the consumer group loop until ctx is cancelled.
func Start(ctx context.Context, brokers []string, groupID, topic string, consumer *EventConsumer, logger *zap.Logger) error {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetNewest

	client, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return err
	}

	go func() {
		defer client.Close()
		for {
			if err := client.Consume(ctx, []string{topic}, consumer); err != nil {
				logger.Error("consumer group error", zap.Error(err))
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	return nil
}
