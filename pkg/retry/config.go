package retry

import (
	"time"

	"github.com/jzx17/gohttp/internal/validation"
	"github.com/jzx17/gohttp/pkg/types"
)

// Default retry settings
const (
	DefaultMaxRetries       = 3
	DefaultBaseInterval     = time.Second
	DefaultMaxTotalWaitTime = 120 * time.Second
	DefaultBackoffFactor    = 2.0
)

// DefaultStatusCodes are the response statuses that warrant a retry
var DefaultStatusCodes = []int{408, 413, 429, 500, 502, 503, 504, 521, 522, 524}

// DefaultMethods are the methods retried under UseGlobalSettings
var DefaultMethods = []string{types.MethodGet, types.MethodPut}

// Config contains the retry settings of a client. It is read-only once the
// client is built.
type Config struct {
	// Enabled turns retries on globally
	Enabled bool `koanf:"enabled"`

	// MaxRetries is the number of retries after the first attempt
	MaxRetries int `koanf:"max_retries" validate:"gte=0"`

	// RetryOnTimeout retries requests that failed with an operation timeout
	RetryOnTimeout bool `koanf:"retry_on_timeout"`

	// BaseInterval is the first backoff interval
	BaseInterval time.Duration `koanf:"base_interval" validate:"gt=0"`

	// MaxTotalWaitTime caps the sum of all waits of one request
	MaxTotalWaitTime time.Duration `koanf:"max_total_wait_time" validate:"gte=0"`

	// BackoffFactor multiplies the interval on every retry
	BackoffFactor float64 `koanf:"backoff_factor" validate:"gte=1"`

	// StatusCodes are the statuses that warrant a retry
	StatusCodes []int `koanf:"status_codes" validate:"dive,http_status"`

	// Methods are the methods retried under UseGlobalSettings
	Methods []string `koanf:"methods"`
}

// DefaultConfig returns the default retry configuration. Retries are disabled.
func DefaultConfig() Config {
	return Config{
		Enabled:          false,
		MaxRetries:       DefaultMaxRetries,
		RetryOnTimeout:   false,
		BaseInterval:     DefaultBaseInterval,
		MaxTotalWaitTime: DefaultMaxTotalWaitTime,
		BackoffFactor:    DefaultBackoffFactor,
		StatusCodes:      append([]int(nil), DefaultStatusCodes...),
		Methods:          append([]string(nil), DefaultMethods...),
	}
}

// Validate checks the configuration constraints
func (c Config) Validate() error {
	return validation.Struct(c)
}

// Clone returns a deep copy of c
func (c Config) Clone() Config {
	out := c
	out.StatusCodes = append([]int(nil), c.StatusCodes...)
	out.Methods = append([]string(nil), c.Methods...)
	return out
}
