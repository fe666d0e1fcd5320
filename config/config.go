// Package config defines the adapter configuration model: identity,
// tag persistence, history backend, hub and worker tuning. Configuration
// loads from JSON with environment variable expansion, so files can
// reference secrets as ${PG_PASSWORD} instead of embedding them.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"
)

// Storage mode constants for tag definition persistence.
const (
	StorageModeMemory = "memory" // in-memory only, definitions lost on restart
	StorageModeNATS   = "nats"   // NATS JetStream key-value bucket
)

// Config is the complete adapter configuration.
type Config struct {
	Adapter AdapterConfig `json:"adapter"`
	NATS    NATSConfig    `json:"nats,omitempty"`
	Storage StorageConfig `json:"storage"`
	History HistoryConfig `json:"history,omitempty"`
	Hub     HubConfig     `json:"hub,omitempty"`
	Query   QueryConfig   `json:"query,omitempty"`
	Worker  WorkerConfig  `json:"worker,omitempty"`
}

// AdapterConfig identifies the adapter instance.
type AdapterConfig struct {
	// ID names the adapter instance, used in NATS subjects and KV
	// bucket names. Alphanumeric plus dots, dashes and underscores.
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// NATSConfig defines the NATS connection used for tag persistence and
// change notifications.
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
}

// StorageConfig selects where tag definitions persist.
type StorageConfig struct {
	Mode   string `json:"mode"` // memory | nats
	Bucket string `json:"bucket,omitempty"`
}

// HistoryConfig points the query engine's raw-sample provider at a
// TimescaleDB instance. Empty ConnString disables the history backend;
// adapters then supply their own provider or none.
type HistoryConfig struct {
	ConnString       string `json:"conn_string,omitempty"`
	Table            string `json:"table,omitempty"`
	MaxSamplesPerTag int    `json:"max_samples_per_tag,omitempty"`
}

// HubConfig tunes the subscription hub.
type HubConfig struct {
	QueueCapacity int `json:"queue_capacity,omitempty"`
	// OverflowPolicy is drop_oldest, drop_newest or block.
	OverflowPolicy string `json:"overflow_policy,omitempty"`
	// SnapshotTTL ages last-known values out of the snapshot store.
	// Zero keeps them until overwritten.
	SnapshotTTL time.Duration `json:"snapshot_ttl,omitempty"`
}

// QueryConfig tunes the derived query engine.
type QueryConfig struct {
	MaxSamplesPerTag int `json:"max_samples_per_tag,omitempty"`
	// RateLimit caps provider reads per second; zero disables the cap.
	RateLimit float64 `json:"rate_limit,omitempty"`
	RateBurst int     `json:"rate_burst,omitempty"`
}

// WorkerConfig tunes the background task pool.
type WorkerConfig struct {
	Workers   int `json:"workers,omitempty"`
	QueueSize int `json:"queue_size,omitempty"`
}

// Default returns a configuration with working defaults: in-memory tag
// storage, a 1024-value drop-oldest hub queue and a small worker pool.
func Default() *Config {
	return &Config{
		Adapter: AdapterConfig{ID: "adapter"},
		Storage: StorageConfig{Mode: StorageModeMemory},
		Hub: HubConfig{
			QueueCapacity:  1024,
			OverflowPolicy: "drop_oldest",
		},
		Worker: WorkerConfig{
			Workers:   4,
			QueueSize: 256,
		},
		NATS: NATSConfig{
			MaxReconnects: 10,
			ReconnectWait: 2 * time.Second,
		},
	}
}

// Load reads a JSON configuration file, expanding ${VAR} environment
// references, and validates the result. Fields absent from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes JSON configuration bytes with environment expansion and
// validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	decoder := json.NewDecoder(strings.NewReader(expanded))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration and normalizes the adapter ID to
// lowercase.
func (c *Config) Validate() error {
	if c.Adapter.ID == "" {
		return errors.New("config: adapter.id is required")
	}
	c.Adapter.ID = strings.ToLower(c.Adapter.ID)
	if !isValidSubjectPart(c.Adapter.ID) {
		return fmt.Errorf(
			"config: adapter.id %q is not valid for NATS subjects (alphanumeric with dots, dashes, underscores)",
			c.Adapter.ID)
	}

	switch c.Storage.Mode {
	case StorageModeMemory:
	case StorageModeNATS:
		if len(c.NATS.URLs) == 0 {
			return errors.New("config: nats.urls is required when storage.mode is nats")
		}
	default:
		return fmt.Errorf("config: unknown storage.mode %q", c.Storage.Mode)
	}

	switch c.Hub.OverflowPolicy {
	case "", "drop_oldest", "drop_newest", "block":
	default:
		return fmt.Errorf("config: unknown hub.overflow_policy %q", c.Hub.OverflowPolicy)
	}
	if c.Hub.QueueCapacity < 0 {
		return errors.New("config: hub.queue_capacity cannot be negative")
	}

	if c.Worker.Workers < 0 || c.Worker.QueueSize < 0 {
		return errors.New("config: worker settings cannot be negative")
	}
	if c.Query.MaxSamplesPerTag < 0 {
		return errors.New("config: query.max_samples_per_tag cannot be negative")
	}
	if c.Query.RateLimit < 0 || c.Query.RateBurst < 0 {
		return errors.New("config: query rate limit settings cannot be negative")
	}

	return nil
}

// Bucket returns the KV bucket name for tag persistence, derived from
// the adapter ID when not set explicitly.
func (c *Config) Bucket() string {
	if c.Storage.Bucket != "" {
		return c.Storage.Bucket
	}
	return "tagkit-" + strings.ReplaceAll(c.Adapter.ID, ".", "-") + "-tags"
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return Default()
	}
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// isValidSubjectPart reports whether s can appear as one token of a NATS
// subject.
func isValidSubjectPart(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}
