package retry

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// retryAfterLayouts are the accepted HTTP-date layouts
var retryAfterLayouts = []string{
	time.RFC1123,
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

// maxSeconds is the largest whole number of seconds a Duration can hold
const maxSeconds = math.MaxInt64 / int64(time.Second)

// ParseRetryAfter converts a Retry-After value into a wait relative to now.
// A number is taken as seconds, an HTTP date as the time left until that
// date (possibly negative). Anything else yields zero. Values beyond the
// range of time.Duration saturate at its bounds.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if math.IsNaN(secs) {
			return 0
		}
		secs = math.Trunc(secs)
		switch {
		case secs > float64(maxSeconds):
			return time.Duration(math.MaxInt64)
		case secs < -float64(maxSeconds):
			return time.Duration(math.MinInt64)
		}
		return secondsDuration(int64(secs))
	}

	for _, layout := range retryAfterLayouts {
		if date, err := time.Parse(layout, value); err == nil {
			return secondsDuration(date.Unix() - now.Unix())
		}
	}

	return 0
}

func secondsDuration(secs int64) time.Duration {
	switch {
	case secs > maxSeconds:
		return time.Duration(math.MaxInt64)
	case secs < -maxSeconds:
		return time.Duration(math.MinInt64)
	}
	return time.Duration(secs) * time.Second
}
