package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	// t.Setenv with an empty value still isolates the test from the
	// ambient environment.
	for _, key := range []string{
		"DOCKET_ADDR", "DOCKET_POSTGRES_DSN", "DOCKET_REDIS_URL",
		"DOCKET_KAFKA_BROKERS", "DOCKET_EVENTS_TOPIC", "DOCKET_OBJECT_STORE",
		"DOCKET_SIGNING_SECRET", "DOCKET_SIGNING_KEY_ID",
		"DOCKET_URL_SIGNING_KEY", "DOCKET_PUBLIC_BASE_URL",
		"DOCKET_REDIS_POOL_SIZE", "DOCKET_REDIS_DIAL_TIMEOUT",
	} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.PostgresDSN)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
	assert.Nil(t, cfg.Kafka.Brokers)
	assert.Equal(t, "docket.lifecycle", cfg.Kafka.Topic)
	assert.Equal(t, "memory", cfg.ObjectStore.Backend)
	assert.Equal(t, "docket-manifest-1", cfg.Signing.KeyID)
	assert.Equal(t, "http://localhost:8080", cfg.PublicBaseURL)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DOCKET_ADDR", ":9090")
	t.Setenv("DOCKET_POSTGRES_DSN", "postgres://docket:docket@db:5432/docket")
	t.Setenv("DOCKET_REDIS_URL", "redis://cache:6379/0")
	t.Setenv("DOCKET_REDIS_POOL_SIZE", "32")
	t.Setenv("DOCKET_REDIS_DIAL_TIMEOUT", "250ms")
	t.Setenv("DOCKET_EVENTS_TOPIC", "docket.staging")
	t.Setenv("DOCKET_OBJECT_STORE", "s3")
	t.Setenv("DOCKET_S3_BUCKET", "docket-objects")
	t.Setenv("DOCKET_S3_PATH_STYLE", "true")
	t.Setenv("DOCKET_PUBLIC_BASE_URL", "https://docket.example.org")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, "postgres://docket:docket@db:5432/docket", cfg.PostgresDSN)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
	assert.Equal(t, 32, cfg.Redis.PoolSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Redis.DialTimeout)
	assert.Equal(t, "docket.staging", cfg.Kafka.Topic)
	assert.Equal(t, "s3", cfg.ObjectStore.Backend)
	assert.Equal(t, "docket-objects", cfg.ObjectStore.Bucket)
	assert.True(t, cfg.ObjectStore.PathStyle)
	assert.Equal(t, "https://docket.example.org", cfg.PublicBaseURL)
}

func TestFromEnvMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("DOCKET_REDIS_POOL_SIZE", "not-a-number")
	t.Setenv("DOCKET_REDIS_DIAL_TIMEOUT", "soon")

	cfg := FromEnv()

	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
}

func TestBrokerListParsing(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []string
	}{
		{
			name:     "empty yields nil",
			raw:      "",
			expected: nil,
		},
		{
			name:     "spaces and trailing comma",
			raw:      "kafka-1:9092, kafka-2:9092,",
			expected: []string{"kafka-1:9092", "kafka-2:9092"},
		},
		{
			name:     "repeated address collapses",
			raw:      "kafka-1:9092,kafka-1:9092",
			expected: []string{"kafka-1:9092"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DOCKET_KAFKA_BROKERS", tt.raw)
			assert.Equal(t, tt.expected, FromEnv().Kafka.Brokers)
		})
	}
}
