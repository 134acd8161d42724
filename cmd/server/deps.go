package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"docket/internal/events"
	eventsmetrics "docket/internal/events/metrics"
	"docket/internal/events/relay"
	"docket/internal/objectstore"
	"docket/internal/objectstore/urlsigner"
	"docket/internal/platform/config"
	"docket/internal/platform/postgres"
	"docket/internal/platform/redis"
)

// deps holds everything the server process drives: the database behind the
// outbox and readiness probe, the object store behind the delivery edge, and
// the relay pumping lifecycle envelopes to Kafka.
type deps struct {
	db       *sql.DB
	redis    *redis.Client
	producer *kgo.Client
	relay    *relay.Relay

	objects objectstore.Store
	grants  *urlsigner.Signer
}

func buildDeps(ctx context.Context, cfg config.Server, log *slog.Logger) (*deps, error) {
	d := &deps{}

	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if err := postgres.Apply(ctx, db); err != nil {
			d.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
		d.db = db
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	d.redis = redisClient

	d.grants = urlsigner.New(cfg.URLSigningKey, "docket")
	objects, err := objectstore.FromConfig(ctx, cfg.ObjectStore, d.grants, cfg.PublicBaseURL)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("build object store: %w", err)
	}
	d.objects = objects

	if len(cfg.Kafka.Brokers) > 0 {
		// The relay drains the durable outbox; without Postgres there is no
		// shared outbox for other processes to write, so the relay stays off.
		if d.db == nil {
			log.Warn("kafka brokers configured without postgres, outbox relay disabled")
			return d, nil
		}
		producer, err := kgo.NewClient(kgo.SeedBrokers(cfg.Kafka.Brokers...))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("connect kafka: %w", err)
		}
		d.producer = producer
		if err := relay.EnsureTopic(ctx, producer, cfg.Kafka.Topic); err != nil {
			d.Close()
			return nil, fmt.Errorf("ensure lifecycle topic: %w", err)
		}
		d.relay = relay.New(events.NewPostgresOutbox(d.db), producer, cfg.Kafka.Topic,
			relay.WithLogger(log),
			relay.WithMetrics(eventsmetrics.New()),
		)
	}

	return d, nil
}

func (d *deps) Close() {
	if d.producer != nil {
		d.producer.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.db != nil {
		_ = d.db.Close()
	}
}
