package httpclient

import (
	"net/http"
	"time"
)

// UserAgent identifies scriptor's outbound HTTP requests (sitemap fetches,
// link validation probes).
const UserAgent = "scriptor/1.0 (+https://github.com/ternarybob/scriptor)"

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// NewBoundedRedirectClient creates an HTTP client that follows at most
// maxRedirects redirects before giving up. Used by the URL validator so a
// redirect loop cannot stall a probe.
func NewBoundedRedirectClient(timeout time.Duration, maxRedirects int) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}
