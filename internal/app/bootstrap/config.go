package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the trust engine.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	DatabaseURL string
	RedisURL    string

	KafkaBrokers []string
	KafkaTopic   string

	JWTPrivateKeyPEM  string
	JWTPublicKeyPEM   string
	JWTKeyID          string
	AllowEphemeralJWT bool

	BcryptCost int

	BlacklistTrustThreshold   int
	VerificationThreshold     int
	BiometricTimeout          time.Duration
	RecoverySessionTTL        time.Duration
	VerificationFailThreshold int
	VerificationLockWindow    time.Duration
	BacktraceBaseTrust        int
	BacktraceStrictnessStep   int
	LedgerAppendRetries       int
	LedgerRetryBackoff        time.Duration

	MaxDBConns         int32
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID string `yaml:"id"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
		KafkaTopic   string   `yaml:"kafka_topic"`
	} `yaml:"dependencies"`
	Trust struct {
		BlacklistThreshold    int `yaml:"blacklist_threshold"`
		VerificationThreshold int `yaml:"verification_threshold"`
	} `yaml:"trust"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                 "trust-engine",
		JWTKeyID:                  "trust-recovery-key-1",
		AllowEphemeralJWT:         true,
		BcryptCost:                12,
		BlacklistTrustThreshold:   30,
		VerificationThreshold:     80,
		BiometricTimeout:          10 * time.Second,
		RecoverySessionTTL:        15 * time.Minute,
		VerificationFailThreshold: 5,
		VerificationLockWindow:    30 * time.Minute,
		BacktraceBaseTrust:        10,
		BacktraceStrictnessStep:   5,
		LedgerAppendRetries:       3,
		LedgerRetryBackoff:        100 * time.Millisecond,
		MaxDBConns:                20,
		OutboxPollInterval:        2 * time.Second,
		OutboxBatchSize:           100,
		OutboxClaimTTL:            30 * time.Second,
		OutboxMaxRetries:          5,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if len(f.Dependencies.KafkaBrokers) > 0 {
			cfg.KafkaBrokers = f.Dependencies.KafkaBrokers
		}
		if f.Dependencies.KafkaTopic != "" {
			cfg.KafkaTopic = f.Dependencies.KafkaTopic
		}
		if f.Trust.BlacklistThreshold > 0 {
			cfg.BlacklistTrustThreshold = f.Trust.BlacklistThreshold
		}
		if f.Trust.VerificationThreshold > 0 {
			cfg.VerificationThreshold = f.Trust.VerificationThreshold
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = envOrDefault("KAFKA_LEDGER_TOPIC", cfg.KafkaTopic)
	cfg.JWTPrivateKeyPEM = envOrDefault("JWT_PRIVATE_KEY_PEM", cfg.JWTPrivateKeyPEM)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTKeyID = envOrDefault("JWT_KEY_ID", cfg.JWTKeyID)
	cfg.AllowEphemeralJWT = envBool("JWT_ALLOW_EPHEMERAL", cfg.AllowEphemeralJWT)

	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.BlacklistTrustThreshold = envInt("BLACKLIST_TRUST_THRESHOLD", cfg.BlacklistTrustThreshold)
	cfg.VerificationThreshold = envInt("VERIFICATION_THRESHOLD", cfg.VerificationThreshold)
	cfg.VerificationFailThreshold = envInt("VERIFICATION_FAIL_THRESHOLD", cfg.VerificationFailThreshold)
	cfg.BacktraceBaseTrust = envInt("BACKTRACE_BASE_TRUST", cfg.BacktraceBaseTrust)
	cfg.BacktraceStrictnessStep = envInt("BACKTRACE_STRICTNESS_STEP", cfg.BacktraceStrictnessStep)
	cfg.LedgerAppendRetries = envInt("LEDGER_APPEND_RETRIES", cfg.LedgerAppendRetries)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.BiometricTimeout = time.Duration(envInt("BIOMETRIC_TIMEOUT_SECONDS", int(cfg.BiometricTimeout.Seconds()))) * time.Second
	cfg.RecoverySessionTTL = time.Duration(envInt("RECOVERY_SESSION_TTL_MINUTES", int(cfg.RecoverySessionTTL.Minutes()))) * time.Minute
	cfg.VerificationLockWindow = time.Duration(envInt("VERIFICATION_LOCK_MINUTES", int(cfg.VerificationLockWindow.Minutes()))) * time.Minute
	cfg.LedgerRetryBackoff = time.Duration(envInt("LEDGER_RETRY_BACKOFF_MS", int(cfg.LedgerRetryBackoff.Milliseconds()))) * time.Millisecond
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if (cfg.JWTPrivateKeyPEM == "" || cfg.JWTPublicKeyPEM == "") && !cfg.AllowEphemeralJWT {
		return Config{}, fmt.Errorf("missing JWT_PRIVATE_KEY_PEM or JWT_PUBLIC_KEY_PEM")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
