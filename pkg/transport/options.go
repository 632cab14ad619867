package transport

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Raw option keys understood by the HTTP transport
const (
	// OptFollowLocation toggles redirect following (bool)
	OptFollowLocation = "follow_location"
	// OptMaxRedirects caps followed redirects (int)
	OptMaxRedirects = "max_redirects"
	// OptTimeout overrides the per-attempt timeout (duration, or seconds as a number)
	OptTimeout = "timeout"
	// OptDisableCompression turns off transparent gzip (bool)
	OptDisableCompression = "disable_compression"
	// OptDisableKeepAlives closes connections after every call (bool)
	OptDisableKeepAlives = "disable_keep_alives"
)

// DefaultMaxRedirects is the redirect limit when OptMaxRedirects is not set
const DefaultMaxRedirects = 10

// settings are the low-level options of one call after merging raw options
// over the computed defaults
type settings struct {
	followLocation     bool
	maxRedirects       int
	timeout            time.Duration
	disableCompression bool
	disableKeepAlives  bool
}

// handleKey identifies the connection handle settings
type handleKey struct {
	verifyPeer         bool
	verifyHost         bool
	proxy              string
	disableCompression bool
	disableKeepAlives  bool
}

func resolveSettings(timeout time.Duration, raw map[string]any) (settings, error) {
	s := settings{
		followLocation: true,
		maxRedirects:   DefaultMaxRedirects,
		timeout:        timeout,
	}

	for key, value := range raw {
		var err error
		switch strings.ToLower(key) {
		case OptFollowLocation:
			s.followLocation, err = toBool(value)
		case OptMaxRedirects:
			s.maxRedirects, err = toInt(value)
		case OptTimeout:
			s.timeout, err = toDuration(value)
		case OptDisableCompression:
			s.disableCompression, err = toBool(value)
		case OptDisableKeepAlives:
			s.disableKeepAlives, err = toBool(value)
		default:
			continue
		}
		if err != nil {
			return s, fmt.Errorf("transport option %q: %w", key, err)
		}
	}

	return s, nil
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case int:
		return b != 0, nil
	case int64:
		return b != 0, nil
	case float64:
		return b != 0, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(b))
	default:
		return false, fmt.Errorf("unsupported bool value %T", v)
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("unsupported int value %T", v)
	}
}

// toDuration accepts a time.Duration, a duration string or a number of seconds
func toDuration(v any) (time.Duration, error) {
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case int:
		return time.Duration(d) * time.Second, nil
	case int64:
		return time.Duration(d) * time.Second, nil
	case float64:
		return time.Duration(d * float64(time.Second)), nil
	case string:
		s := strings.TrimSpace(d)
		if secs, err := strconv.ParseFloat(s, 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		return time.ParseDuration(s)
	default:
		return 0, fmt.Errorf("unsupported duration value %T", v)
	}
}
