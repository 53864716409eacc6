package archive

import (
	"errors"
	"fmt"
)

// ErrNotFound means the archive has no file for the requested period.
// Periods the exchange has not published yet (today, very recent days) come
// back as plain 404s, so callers treat this as an expected gap, not a
// failure.
var ErrNotFound = errors.New("archive file not found")

// FetchError is a non-success HTTP response from the archive. RateLimited is
// decided here at the transport boundary so callers never have to sniff
// error text for rate-limit hints.
type FetchError struct {
	StatusCode  int
	URL         string
	RateLimited bool
}

func (e *FetchError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("archive rate limited request (status=%d): %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("archive request failed (status=%d): %s", e.StatusCode, e.URL)
}

// IsRateLimit reports whether err is a rate-limited archive response.
func IsRateLimit(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.RateLimited
}
