package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/m3rciful/tunebot/core/telegram/netutil"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultClientTimeout     = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultRetryAttempts     = 3
	defaultRetryBackoff      = time.Second
)

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls.
// timeout bounds a whole request including the upload body; audio files
// need more than the default, so callers pass the configured upload timeout.
func BuildHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ExpectContinueTimeout: time.Second,
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &retryTransport{
			base:       transport,
			maxRetries: defaultRetryAttempts,
			backoff:    defaultRetryBackoff,
		},
	}
}

// retryTransport repeats requests that failed before a response arrived.
// Requests whose body cannot be rewound are attempted once.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if req.Body != nil && req.GetBody == nil {
		return base.RoundTrip(req)
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = t.backoff

	attempt := 0
	return backoff.Retry(req.Context(), func() (*http.Response, error) {
		attempt++
		curr := req
		if attempt > 1 {
			curr = req.Clone(req.Context())
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, backoff.Permanent(err)
				}
				curr.Body = body
			}
		}
		resp, err := base.RoundTrip(curr)
		if err != nil && !netutil.ShouldRetry(err) {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(t.maxRetries+1)),
	)
}
