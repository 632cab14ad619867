// Package config loads client configuration from YAML with koanf
package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/jzx17/gohttp/internal/validation"
	"github.com/jzx17/gohttp/pkg/httpclient"
	"github.com/jzx17/gohttp/pkg/response"
	"github.com/jzx17/gohttp/pkg/retry"
	"github.com/jzx17/gohttp/pkg/types"
)

// File is the configuration file layout
type File struct {
	Timeout         time.Duration          `koanf:"timeout" validate:"gte=0"`
	Retry           retry.Config           `koanf:"retry"`
	Decode          response.DecodeOptions `koanf:"decode"`
	TLS             TLS                    `koanf:"tls"`
	Headers         map[string]string      `koanf:"headers"`
	Transport       map[string]any         `koanf:"transport"`
	Cookie          string                 `koanf:"cookie"`
	CookieFile      string                 `koanf:"cookie_file"`
	Auth            types.Credentials      `koanf:"auth"`
	Proxy           types.Proxy            `koanf:"proxy"`
	UserAgent       string                 `koanf:"user_agent"`
	RequestIDHeader string                 `koanf:"request_id_header"`
	Log             Log                    `koanf:"log"`
}

// TLS holds the certificate verification flags
type TLS struct {
	VerifyPeer bool `koanf:"verify_peer"`
	VerifyHost bool `koanf:"verify_host"`
}

// Log configures the logger of the command line tool
type Log struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Pretty bool   `koanf:"pretty"`
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults.
func Load(path string) (*File, error) {
	k, err := defaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	return unmarshal(k)
}

// LoadBytes reads YAML data over the defaults
func LoadBytes(data []byte) (*File, error) {
	k, err := defaults()
	if err != nil {
		return nil, err
	}

	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return unmarshal(k)
}

func defaults() (*koanf.Koanf, error) {
	k := koanf.New(".")

	rc := retry.DefaultConfig()
	values := map[string]any{
		"timeout":                   "0s",
		"retry.enabled":             rc.Enabled,
		"retry.max_retries":         rc.MaxRetries,
		"retry.retry_on_timeout":    rc.RetryOnTimeout,
		"retry.base_interval":       rc.BaseInterval.String(),
		"retry.max_total_wait_time": rc.MaxTotalWaitTime.String(),
		"retry.backoff_factor":      rc.BackoffFactor,
		"retry.status_codes":        rc.StatusCodes,
		"retry.methods":             rc.Methods,
		"decode.use_number":         false,
		"decode.max_depth":          response.DefaultMaxDepth,
		"decode.lenient":            false,
		"tls.verify_peer":           true,
		"tls.verify_host":           true,
		"log.level":                 "info",
		"log.pretty":                false,
	}

	if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	return k, nil
}

func unmarshal(k *koanf.Koanf) (*File, error) {
	var f File
	if err := k.Unmarshal("", &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validation.Struct(f); err != nil {
		return nil, err
	}
	return &f, nil
}

// ClientConfig converts the file into a client configuration
func (f *File) ClientConfig() httpclient.Config {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = f.Timeout
	cfg.Retry = f.Retry.Clone()
	cfg.Decode = f.Decode
	cfg.VerifyPeer = f.TLS.VerifyPeer
	cfg.VerifyHost = f.TLS.VerifyHost
	for name, value := range f.Headers {
		cfg.DefaultHeaders[name] = value
	}
	for key, value := range f.Transport {
		cfg.TransportOptions[key] = value
	}
	cfg.Cookie = f.Cookie
	cfg.CookieFile = f.CookieFile
	cfg.Auth = f.Auth
	cfg.Proxy = f.Proxy
	cfg.UserAgent = f.UserAgent
	cfg.RequestIDHeader = f.RequestIDHeader
	return cfg
}

// Options returns the client options described by the file
func (f *File) Options() []httpclient.Option {
	return []httpclient.Option{httpclient.WithConfig(f.ClientConfig())}
}
