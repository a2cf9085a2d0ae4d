package model

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DuplicatePolicy decides what happens when a catalog contains an id twice.
type DuplicatePolicy string

const (
	// DuplicatePolicyLastWins keeps all rows, the later row wins in lookups and in the store.
	DuplicatePolicyLastWins DuplicatePolicy = "last_wins"
	// DuplicatePolicyReject fails the run with an input error.
	DuplicatePolicyReject DuplicatePolicy = "reject"
)

// RetryConfig controls how a failed batch is retried before it is reported.
type RetryConfig struct {
	MaxAttempts    int           `json:"max_attempts" yaml:"max_attempts"`         // attempts per batch, 1 means no retry
	Backoff        time.Duration `json:"backoff" yaml:"backoff"`                   // wait before each further attempt, doubled every time
	SplitOnFailure bool          `json:"split_on_failure" yaml:"split_on_failure"` // retry a failed batch as two halves
	MinBatchSize   int           `json:"min_batch_size" yaml:"min_batch_size"`     // halves are not split below this size
}

// MappingConfig represents the configuration of one mapping run
type MappingConfig struct {
	BatchSize       int             `json:"batch_size" yaml:"batch_size"`
	ExtraContext    string          `json:"extra_context,omitempty" yaml:"extra_context"`
	GenerateTimeout time.Duration   `json:"generate_timeout" yaml:"generate_timeout"`
	Concurrency     int             `json:"concurrency" yaml:"concurrency"`
	DuplicatePolicy DuplicatePolicy `json:"duplicate_policy" yaml:"duplicate_policy"`
	ShortlistSize   int             `json:"shortlist_size,omitempty" yaml:"shortlist_size"` // 0 sends the full target catalog
	Retry           RetryConfig     `json:"retry" yaml:"retry"`
}

// DefaultMappingConfig returns a sensible default configuration
func DefaultMappingConfig() MappingConfig {
	return MappingConfig{
		BatchSize:       10,
		GenerateTimeout: 2 * time.Minute,
		Concurrency:     1,
		DuplicatePolicy: DuplicatePolicyLastWins,
		ShortlistSize:   0,
		Retry: RetryConfig{
			MaxAttempts:    1,
			Backoff:        2 * time.Second,
			SplitOnFailure: false,
			MinBatchSize:   1,
		},
	}
}

// Validate checks the configuration and returns an input error describing the first problem.
func (c MappingConfig) Validate() error {
	if c.BatchSize <= 0 {
		return NewInputError("batch size must be a positive integer, got %d", c.BatchSize)
	}
	if c.Concurrency < 1 {
		return NewInputError("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.GenerateTimeout < 0 {
		return NewInputError("generate timeout must not be negative")
	}
	if c.ShortlistSize < 0 {
		return NewInputError("shortlist size must not be negative, got %d", c.ShortlistSize)
	}
	switch c.DuplicatePolicy {
	case DuplicatePolicyLastWins, DuplicatePolicyReject:
	default:
		return NewInputError("unknown duplicate policy %q", c.DuplicatePolicy)
	}
	if c.Retry.MaxAttempts < 1 {
		return NewInputError("retry max attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.MinBatchSize < 1 {
		return NewInputError("retry min batch size must be at least 1, got %d", c.Retry.MinBatchSize)
	}
	if c.Retry.Backoff < 0 {
		return NewInputError("retry backoff must not be negative")
	}
	return nil
}

// LoadMappingConfig reads a YAML file on top of DefaultMappingConfig.
func LoadMappingConfig(path string) (MappingConfig, error) {
	config := DefaultMappingConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return config, err
	}

	return config, nil
}
