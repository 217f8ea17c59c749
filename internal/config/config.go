package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection for the remote document store
	StoreBackend string

	// Firestore
	FirestoreProjectID    string
	FirestoreDatabaseID   string
	SettlementCollection  string
	SettlementDocID       string
	RecordsCollection     string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string

	// SQLite mirror
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Sync behaviour
	DebounceInterval time.Duration
	RetryAttempts    int
	RetryBaseDelay   time.Duration
	SnapshotTimeout  time.Duration
	HistoryLimit     int

	// Worker
	ReconcileInterval time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		StoreBackend: getEnv("STORE_BACKEND", "memory"),

		FirestoreProjectID:    getEnv("FIRESTORE_PROJECT_ID", ""),
		FirestoreDatabaseID:   getEnv("FIRESTORE_DATABASE_ID", "(default)"),
		SettlementCollection:  getEnv("SETTLEMENT_COLLECTION", "settlements"),
		SettlementDocID:       getEnv("SETTLEMENT_DOC_ID", "default"),
		RecordsCollection:     getEnv("RECORDS_COLLECTION", "monthly-records"),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/jeongsan.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "jeongsan"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "mirror_events"),

		DebounceInterval: getEnvDuration("DEBOUNCE_INTERVAL", 1500*time.Millisecond),
		RetryAttempts:    getEnvInt("RETRY_ATTEMPTS", 3),
		RetryBaseDelay:   getEnvDuration("RETRY_BASE_DELAY", 500*time.Millisecond),
		SnapshotTimeout:  getEnvDuration("SNAPSHOT_TIMEOUT", 10*time.Second),
		HistoryLimit:     getEnvInt("HISTORY_LIMIT", 12),

		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 5*time.Minute),
	}

	return cfg
}

// Validate checks the configuration and returns one combined error
// listing everything that is wrong.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "firestore"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.StoreBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errs = append(errs, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.StoreBackend, validBackends))
	}

	if c.StoreBackend == "firestore" {
		if c.FirestoreProjectID == "" {
			errs = append(errs, "Firestore project ID is required when using firestore backend")
		}
		if c.SettlementCollection == "" {
			errs = append(errs, "settlement collection name cannot be empty")
		}
		if c.RecordsCollection == "" {
			errs = append(errs, "records collection name cannot be empty")
		}
		if c.GoogleCredentialsFile != "" {
			if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
			}
		}
	}

	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.DebounceInterval < 100*time.Millisecond {
		errs = append(errs, fmt.Sprintf("invalid debounce interval %v: must be at least 100ms", c.DebounceInterval))
	} else if c.DebounceInterval > time.Minute {
		errs = append(errs, fmt.Sprintf("invalid debounce interval %v: must be at most 1 minute", c.DebounceInterval))
	}

	if c.RetryAttempts < 1 {
		errs = append(errs, fmt.Sprintf("invalid retry attempts %d: must be at least 1", c.RetryAttempts))
	} else if c.RetryAttempts > 10 {
		errs = append(errs, fmt.Sprintf("invalid retry attempts %d: must be at most 10", c.RetryAttempts))
	}

	if c.RetryBaseDelay < 10*time.Millisecond {
		errs = append(errs, fmt.Sprintf("invalid retry base delay %v: must be at least 10ms", c.RetryBaseDelay))
	}

	if c.SnapshotTimeout < time.Second {
		errs = append(errs, fmt.Sprintf("invalid snapshot timeout %v: must be at least 1 second", c.SnapshotTimeout))
	}

	if c.HistoryLimit < 1 {
		errs = append(errs, fmt.Sprintf("invalid history limit %d: must be at least 1", c.HistoryLimit))
	}

	if c.ReconcileInterval < 10*time.Second {
		errs = append(errs, fmt.Sprintf("invalid reconcile interval %v: must be at least 10 seconds", c.ReconcileInterval))
	} else if c.ReconcileInterval > 24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid reconcile interval %v: must be at most 24 hours", c.ReconcileInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
