package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HeaderRetryAfter is the header servers use to hint when to retry (RFC 9110).
const HeaderRetryAfter = "Retry-After"

// ParseRetryAfter reads a Retry-After value, which is either a number of
// seconds or an HTTP-date. Dates in the past yield zero. The second return
// value is false when the header is absent or unparseable.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}

	when, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}

	return max(when.Sub(now), 0), true
}
