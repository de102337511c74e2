package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// RetryAfterSeconds rounds d up to whole seconds, with a floor of one.
func RetryAfterSeconds(d time.Duration) int64 {
	return max(1, int64(math.Ceil(d.Seconds())))
}

// Headers returns the X-RateLimit-* headers for d, plus Retry-After when it
// is a reject.
func (d Decision) Headers() http.Header {
	reset := strconv.FormatInt(RetryAfterSeconds(d.ResetAfter), 10)

	h := http.Header{}
	h.Set(HeaderLimit, strconv.FormatInt(d.Limit, 10))
	h.Set(HeaderRemaining, strconv.FormatInt(d.Remaining, 10))
	h.Set(HeaderReset, reset)

	if !d.Allowed {
		h.Set(HeaderRetryAfter, reset)
	}

	return h
}
