// Package mq publishes chat events to Kafka so every gateway instance can
// fan them out to its own connections.
package mq

import (
	"encoding/json"
	"fmt"
	"hash"

	"github.com/IBM/sarama"
	"github.com/twmb/murmur3"
	"go.uber.org/zap"

	"github.com/forumhub/chatcore/internal/metrics"
)

// Event is the envelope carried on the chat topic. Topic is the hub topic
// the payload should be re-broadcast on; the partition key is the room, so
// one room's events stay ordered.
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

func NewProducer(brokers []string, topic string, logger *zap.Logger) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	// Murmur3 keying matches what the other platform clients use, so a
	// room lands on the same partition regardless of producer.
	config.Producer.Partitioner = sarama.NewCustomHashPartitioner(func() hash.Hash32 {
		return murmur3.New32()
	})

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to start kafka producer: %w", err)
	}
	return &Producer{producer: producer, topic: topic, logger: logger}, nil
}

// Publish sends one event keyed by roomKey.
func (p *Producer) Publish(roomKey string, event *Event) error {
	bytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(roomKey),
		Value: sarama.ByteEncoder(bytes),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		metrics.KafkaPublishErrors.Inc()
		return fmt.Errorf("failed to publish event: %w", err)
	}
	p.logger.Debug("event published",
		zap.String("topic", p.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("event_type", event.Type))
	return nil
}

func (p *Producer) Close() error {
	return p.producer.Close()
}
