// Package kafka wires franz-go for the audit outbox relay.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"coinledger/internal/platform/config"
	"coinledger/pkg/platform/audit/outbox"
	"coinledger/pkg/platform/sentinel"
)

// Producer publishes outbox batches to a single topic.
type Producer struct {
	client *kgo.Client
	topic  string
}

// NewProducer creates an idempotent producer bound to cfg.AuditTopic.
func NewProducer(cfg config.KafkaConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.AuditTopic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProducerLinger(10 * time.Millisecond),
		kgo.RecordPartitioner(kgo.StickyKeyPartitioner(nil)),
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &Producer{client: client, topic: cfg.AuditTopic}, nil
}

// Produce sends msgs and waits for every acknowledgement. Records sharing a
// key land on one partition, so per-target order is kept.
func (p *Producer) Produce(ctx context.Context, msgs []outbox.Message) error {
	records := make([]*kgo.Record, 0, len(msgs))
	for _, m := range msgs {
		r := &kgo.Record{Topic: p.topic, Key: m.Key, Value: m.Value}
		for k, v := range m.Headers {
			r.Headers = append(r.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
		}
		records = append(records, r)
	}

	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce audit batch: %w", err)
	}
	return nil
}

// Health pings the cluster. Failures wrap sentinel.ErrUnavailable.
func (p *Producer) Health(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("kafka %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (p *Producer) Close() {
	p.client.Close()
}

// EnsureTopic creates the audit topic if it does not exist.
func (p *Producer) EnsureTopic(ctx context.Context, partitions int32, replicationFactor int16) error {
	admin := kadm.NewClient(p.client)
	resp, err := admin.CreateTopic(ctx, partitions, replicationFactor, map[string]*string{
		"cleanup.policy": kadm.StringPtr("delete"),
	}, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", p.topic, resp.Err)
	}
	return nil
}
