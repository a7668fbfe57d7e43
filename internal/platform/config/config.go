package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// RequestServiceHost is the stable Verified ID request service API root. The
// beta variant is derived from it when a payload needs beta-only features.
const RequestServiceHost = "https://verifiedid.did.msidentity.com/v1.0/"

// Config captures everything the relay needs at startup. It is built once in
// main and passed by reference into handlers and services; nothing reads the
// environment after FromEnv returns.
type Config struct {
	Addr string

	// Entra tenant used for client-credential token acquisition.
	TenantID     string
	ClientID     string
	ClientSecret string

	// CredentialManifest is the URL of the credential definition in the
	// Verified ID portal. Issuer/Verifier authorities default to the
	// manifest issuer DID when left empty.
	CredentialManifest string
	IssuerAuthority    string
	VerifierAuthority  string

	// Request payload templates, one per flow.
	IssuanceTemplate     string
	PresentationTemplate string

	// APIKey is the shared secret echoed back by the request service on
	// every callback. Generated fresh per process start.
	APIKey string

	// FaceCheck defaults applied when a presentation request opts in.
	FaceCheckSourceClaim string
	FaceCheckThreshold   int

	SessionTTL      time.Duration
	UpstreamTimeout time.Duration

	PublicDir string

	Redis       RedisConfig
	PostgresDSN string

	KafkaBrokers string
	KafkaTopic   string
}

// RedisConfig holds connection tuning for the optional Redis-backed
// correlation store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:                 getenv("VCRELAY_ADDR", ":8080"),
		TenantID:             os.Getenv("AZ_TENANT_ID"),
		ClientID:             os.Getenv("AZ_CLIENT_ID"),
		ClientSecret:         os.Getenv("AZ_CLIENT_SECRET"),
		CredentialManifest:   os.Getenv("CREDENTIAL_MANIFEST"),
		IssuerAuthority:      os.Getenv("ISSUER_AUTHORITY"),
		VerifierAuthority:    os.Getenv("VERIFIER_AUTHORITY"),
		IssuanceTemplate:     getenv("ISSUANCE_TEMPLATE", "./issuance_request_config.json"),
		PresentationTemplate: getenv("PRESENTATION_TEMPLATE", "./presentation_request_config.json"),
		APIKey:               uuid.NewString(),
		FaceCheckSourceClaim: getenv("FACECHECK_SOURCE_CLAIM", "photo"),
		FaceCheckThreshold:   getint("FACECHECK_THRESHOLD", 70),
		SessionTTL:           getduration("SESSION_TTL", 15*time.Minute),
		UpstreamTimeout:      getduration("UPSTREAM_TIMEOUT", 30*time.Second),
		PublicDir:            getenv("PUBLIC_DIR", "./public"),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		KafkaBrokers:         os.Getenv("KAFKA_BROKERS"),
		KafkaTopic:           getenv("KAFKA_TOPIC", "vcrelay.callback-events"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getint("REDIS_POOL_SIZE", 10),
			MinIdleConns: getint("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getduration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getduration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getduration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}

	if cfg.TenantID == "" {
		return Config{}, fmt.Errorf("AZ_TENANT_ID is required")
	}
	if cfg.ClientID == "" {
		return Config{}, fmt.Errorf("AZ_CLIENT_ID is required")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
