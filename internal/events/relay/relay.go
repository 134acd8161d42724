// Package relay drains the lifecycle outbox into Kafka.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"docket/internal/events"
	"docket/internal/events/metrics"
)

const (
	defaultInterval  = time.Second
	defaultBatchSize = 100
)

// Producer is the slice of the Kafka client the relay needs. *kgo.Client
// satisfies it.
type Producer interface {
	ProduceSync(ctx context.Context, records ...*kgo.Record) kgo.ProduceResults
}

// Relay periodically moves pending outbox envelopes to a Kafka topic.
// Delivery is at-least-once: a batch is marked published only after every
// record in it was acknowledged, so a partial failure replays the whole
// batch next tick. Consumers deduplicate on the envelope ID.
type Relay struct {
	outbox   events.Outbox
	producer Producer
	topic    string
	interval time.Duration
	batch    int
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Relay)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) { r.metrics = m }
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) { r.interval = d }
}

func WithBatchSize(n int) Option {
	return func(r *Relay) { r.batch = n }
}

func New(outbox events.Outbox, producer Producer, topic string, opts ...Option) *Relay {
	r := &Relay{
		outbox:   outbox,
		producer: producer,
		topic:    topic,
		interval: defaultInterval,
		batch:    defaultBatchSize,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drains the outbox on every tick until ctx is cancelled. Drain errors
// are logged and retried on the next tick rather than stopping the relay.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil {
				if r.metrics != nil {
					r.metrics.IncrementRelayFailure()
				}
				r.logger.Error("outbox drain failed", "error", err)
			}
		}
	}
}

// Drain publishes a single batch of pending envelopes.
func (r *Relay) Drain(ctx context.Context) error {
	pending, err := r.outbox.Pending(ctx, r.batch)
	if err != nil {
		return fmt.Errorf("list pending envelopes: %w", err)
	}
	if r.metrics != nil {
		r.metrics.SetPending(len(pending))
	}
	if len(pending) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(pending))
	for _, env := range pending {
		rec, err := record(r.topic, env)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	results := r.producer.ProduceSync(ctx, records...)
	if err := results.FirstErr(); err != nil {
		return fmt.Errorf("produce lifecycle events: %w", err)
	}

	ids := make([]uuid.UUID, len(pending))
	for i, env := range pending {
		ids[i] = env.ID
	}
	if err := r.outbox.MarkPublished(ctx, ids...); err != nil {
		return fmt.Errorf("mark envelopes published: %w", err)
	}
	if r.metrics != nil {
		r.metrics.AddPublished(len(pending))
	}
	return nil
}

// message is the wire shape of an envelope on the lifecycle topic.
type message struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	AggregateID string          `json:"aggregate_id"`
	Actor       string          `json:"actor,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Payload     json.RawMessage `json:"payload"`
}

func record(topic string, env events.Envelope) (*kgo.Record, error) {
	value, err := json.Marshal(message{
		ID:          env.ID.String(),
		Kind:        string(env.Kind),
		AggregateID: env.AggregateID,
		Actor:       env.Actor.String(),
		OccurredAt:  env.OccurredAt,
		Payload:     env.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope %s: %w", env.ID, err)
	}
	// Keying by aggregate keeps events for one card or source in partition
	// order.
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(env.AggregateID),
		Value: value,
	}, nil
}

// EnsureTopic creates the lifecycle topic if it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopics(ctx, 1, 1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", res.Topic, res.Err)
		}
	}
	return nil
}
