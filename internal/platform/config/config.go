package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "docket/pkg/platform/strings"
)

// Server captures process-level configuration.
type Server struct {
	Addr string

	PostgresDSN string

	Redis RedisConfig

	Kafka KafkaConfig

	ObjectStore ObjectStoreConfig

	Signing SigningConfig

	// URLSigningKey signs download/upload grants for the non-S3 object store
	// backends. The delivery edge verifies grants with the same key.
	URLSigningKey string

	// PublicBaseURL is the externally reachable base of this process. Grant
	// URLs minted by the memory and file backends point here.
	PublicBaseURL string
}

// RedisConfig captures connection settings for the gate decision cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig captures broker settings for the outbox relay.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// ObjectStoreConfig selects and parameterizes the object store backend.
// Backend is one of "s3", "file", "memory".
type ObjectStoreConfig struct {
	Backend   string
	Bucket    string
	Region    string
	Endpoint  string // non-empty for MinIO/LocalStack style deployments
	PathStyle bool
	FileDir   string // root directory for the "file" backend
}

// SigningConfig parameterizes the manifest signer.
type SigningConfig struct {
	MasterSecret string
	KeyID        string
}

// VerificationTTL bounds how long presigned upload and download URLs stay valid.
var VerificationTTL = 15 * time.Minute

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("DOCKET_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	keyID := os.Getenv("DOCKET_SIGNING_KEY_ID")
	if keyID == "" {
		keyID = "docket-manifest-1"
	}

	signingSecret := os.Getenv("DOCKET_SIGNING_SECRET")
	if signingSecret == "" {
		// Development fallback - must be overridden in production
		signingSecret = "dev-signing-secret-change-in-production"
	}

	urlKey := os.Getenv("DOCKET_URL_SIGNING_KEY")
	if urlKey == "" {
		urlKey = "dev-url-key-change-in-production"
	}

	topic := os.Getenv("DOCKET_EVENTS_TOPIC")
	if topic == "" {
		topic = "docket.lifecycle"
	}

	backend := os.Getenv("DOCKET_OBJECT_STORE")
	if backend == "" {
		backend = "memory"
	}

	baseURL := os.Getenv("DOCKET_PUBLIC_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	return Server{
		Addr:        addr,
		PostgresDSN: os.Getenv("DOCKET_POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("DOCKET_REDIS_URL"),
			PoolSize:     envInt("DOCKET_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("DOCKET_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("DOCKET_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("DOCKET_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("DOCKET_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("DOCKET_KAFKA_BROKERS")),
			Topic:   topic,
		},
		ObjectStore: ObjectStoreConfig{
			Backend:   backend,
			Bucket:    os.Getenv("DOCKET_S3_BUCKET"),
			Region:    os.Getenv("DOCKET_S3_REGION"),
			Endpoint:  os.Getenv("DOCKET_S3_ENDPOINT"),
			PathStyle: os.Getenv("DOCKET_S3_PATH_STYLE") == "true",
			FileDir:   os.Getenv("DOCKET_FILE_STORE_DIR"),
		},
		Signing: SigningConfig{
			MasterSecret: signingSecret,
			KeyID:        keyID,
		},
		URLSigningKey: urlKey,
		PublicBaseURL: baseURL,
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}

// splitList parses a comma-separated env value. Repeating a broker address
// must not produce a duplicate seed.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	return pstrings.DedupeAndTrim(strings.Split(raw, ","))
}
