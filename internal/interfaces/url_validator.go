package interfaces

import "context"

// HeadResult carries the outcome of a URL liveness probe.
type HeadResult struct {
	// StatusCode is the final HTTP status after following redirects.
	StatusCode int

	// FinalURL is the URL after redirects. Equal to the probed URL when no
	// redirect occurred.
	FinalURL string
}

// URLValidator probes URLs for liveness during citation validation.
// Implementations issue HEAD requests with a bounded timeout.
type URLValidator interface {
	// Head probes the given URL. A non-nil error means the probe itself
	// failed (network, DNS, timeout); HTTP error statuses are returned in
	// the result, not as errors.
	Head(ctx context.Context, url string) (*HeadResult, error)
}
