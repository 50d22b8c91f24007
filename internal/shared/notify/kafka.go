package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// NewSyncProducer builds a producer that waits for all in-sync replicas.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("notify: create kafka producer: %w", err)
	}
	return producer, nil
}

// KafkaPublisher emits settlement events keyed by auction id, so events of one auction stay ordered.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

type sendResult struct {
	partition int32
	offset    int64
	err       error
}

// AuctionSettled returns once the broker acknowledges the event or ctx is done. sarama's sync
// producer cannot be cancelled, so a send abandoned on ctx may still land later.
func (k *KafkaPublisher) AuctionSettled(ctx context.Context, ev AuctionSettled) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("notify: publish settled event: %w", err)
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: encode settled event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(ev.AuctionID.String()),
		Value: sarama.ByteEncoder(value),
	}

	done := make(chan sendResult, 1)
	go func() {
		partition, offset, err := k.producer.SendMessage(msg)
		done <- sendResult{partition: partition, offset: offset, err: err}
	}()

	select {
	case <-ctx.Done():
		log.Warn("Settled event publish abandoned",
			zap.String("auctionID", ev.AuctionID.String()),
			zap.Error(ctx.Err()),
		)
		return fmt.Errorf("notify: publish settled event: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("notify: publish settled event: %w", res.err)
		}
		log.Debug("Settled event published",
			zap.String("auctionID", ev.AuctionID.String()),
			zap.Int32("partition", res.partition),
			zap.Int64("offset", res.offset),
		)
		return nil
	}
}

func (k *KafkaPublisher) Close() error {
	return k.producer.Close()
}
