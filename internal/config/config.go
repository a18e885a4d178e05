// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Audit stores selectable with AUDIT_STORE.
const (
	AuditStoreMongo    = "mongo"
	AuditStorePostgres = "postgres"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address of the audit query API (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health service (e.g. :9090).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`

	// MongoURI is the connection string of the audited document database.
	MongoURI string `mapstructure:"MONGO_URI"`
	// MongoDatabase is the database holding audited collections and, for the mongo store, the audits.
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`
	// AuditCollection is the collection audit records are written to by the mongo store.
	AuditCollection string `mapstructure:"AUDIT_COLLECTION"`
	// AuditStore selects where audit records are persisted: "mongo" (default) or "postgres".
	AuditStore string `mapstructure:"AUDIT_STORE"`
	// DatabaseURL is the Postgres DSN of the audit archive. Required for AUDIT_STORE=postgres and the worker.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// DefaultAuditUser is the acting user recorded when neither the call nor the request names one.
	DefaultAuditUser string `mapstructure:"DEFAULT_AUDIT_USER"`

	// JWTPublicKey is the PEM-encoded public key (RSA or ECDSA) or path to file. Empty disables API auth.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the expected iss claim.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the expected aud claim.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`

	// OTLPEndpoint is the OpenTelemetry collector (e.g. localhost:4317). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext gRPC to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is reported as service.name.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// KafkaBrokers is a comma-separated list of broker addresses. When set, persisted audits are published.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// AuditKafkaTopic is the topic audits are published to and the worker consumes.
	AuditKafkaTopic string `mapstructure:"AUDIT_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group of the archive worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	// Every key needs a default so Unmarshal picks up its env var.
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", ":9090")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "docaudit")
	v.SetDefault("AUDIT_COLLECTION", "audits")
	v.SetDefault("AUDIT_STORE", AuditStoreMongo)
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DEFAULT_AUDIT_USER", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "docaudit-auth")
	v.SetDefault("JWT_AUDIENCE", "docaudit-api")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "docaudit")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("AUDIT_KAFKA_TOPIC", "docaudit-audits")
	v.SetDefault("KAFKA_GROUP_ID", "docaudit-archive-worker")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.MongoDatabase == "" {
		return errors.New("config: MONGO_DATABASE must be set")
	}
	c.AuditStore = strings.ToLower(strings.TrimSpace(c.AuditStore))
	switch c.AuditStore {
	case AuditStoreMongo:
		if c.AuditCollection == "" {
			return errors.New("config: AUDIT_COLLECTION must be set when AUDIT_STORE=mongo")
		}
	case AuditStorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL must be set when AUDIT_STORE=postgres")
		}
	default:
		return fmt.Errorf("config: AUDIT_STORE must be %q or %q, got %q", AuditStoreMongo, AuditStorePostgres, c.AuditStore)
	}
	if c.Env == "production" && c.JWTPublicKey == "" {
		return errors.New("config: JWT_PUBLIC_KEY must be set when APP_ENV=production")
	}
	return nil
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables publishing.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
