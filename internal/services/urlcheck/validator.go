// -----------------------------------------------------------------------
// URL Validator - HEAD probe for citation link checking
// -----------------------------------------------------------------------

package urlcheck

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/scriptor/internal/httpclient"
	"github.com/ternarybob/scriptor/internal/interfaces"
)

const (
	defaultTimeout = 10 * time.Second
	maxRedirects   = 5
)

// Validator implements URLValidator with HEAD probes. Redirects are followed
// and the final URL is reported alongside the terminal status code. Transport
// failures (DNS, TLS, timeout) come back as errors; HTTP statuses are data.
type Validator struct {
	client *http.Client
	logger arbor.ILogger
}

// NewValidator creates a HEAD-probe URL validator.
func NewValidator(timeout time.Duration, logger arbor.ILogger) interfaces.URLValidator {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Validator{
		client: httpclient.NewBoundedRedirectClient(timeout, maxRedirects),
		logger: logger,
	}
}

// Head probes the URL. Servers that reject HEAD outright (405/501) are
// retried once with GET, since many origins serve articles but not HEAD.
func (v *Validator) Head(ctx context.Context, rawURL string) (*interfaces.HeadResult, error) {
	result, err := v.probe(ctx, http.MethodHead, rawURL)
	if err != nil {
		return nil, err
	}

	if result.StatusCode == http.StatusMethodNotAllowed || result.StatusCode == http.StatusNotImplemented {
		if getResult, getErr := v.probe(ctx, http.MethodGet, rawURL); getErr == nil {
			return getResult, nil
		}
	}

	return result, nil
}

func (v *Validator) probe(ctx context.Context, method, rawURL string) (*interfaces.HeadResult, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	req.Header.Set("User-Agent", httpclient.UserAgent)

	start := time.Now()
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	v.logger.Debug().
		Str("url", rawURL).
		Str("method", method).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Probed citation URL")

	return &interfaces.HeadResult{
		StatusCode: resp.StatusCode,
		FinalURL:   finalURL,
	}, nil
}
