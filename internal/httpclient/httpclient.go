// Package httpclient builds bounded-timeout HTTP clients shared by the
// processes that poll each other's control-plane endpoints (Station polling
// Tower's /tower/buffer; either side's operator tooling hitting /status).
package httpclient

import (
	"net/http"
	"time"
)

// ForTelemetryPoll returns a client suited to Station's PID buffer-telemetry
// poll: a single non-blocking request bounded by timeout, never retried
// in-band. ResponseHeaderTimeout
// is capped to the same budget so a stalled Tower can't hold the decode thread.
func ForTelemetryPoll(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			ResponseHeaderTimeout: timeout,
			ExpectContinueTimeout: 0,
			IdleConnTimeout:       30 * time.Second,
			DisableKeepAlives:     false,
		},
	}
}

// Default returns a general-purpose client for operator-facing HTTP calls
// (event emission, control-plane requests) that should not hang indefinitely
// but are not on the audio hot path.
func Default() *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			ResponseHeaderTimeout: 3 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			IdleConnTimeout:       30 * time.Second,
		},
	}
}
