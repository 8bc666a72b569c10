// Package httpx holds the shared client for outbound calls to the
// datasheet API and LLM providers.
package httpx

import (
	"net/http"
	"time"
)

const defaultExternalHTTPTimeout = 30 * time.Second

var externalHTTPClient = &http.Client{
	Timeout: defaultExternalHTTPTimeout,
}

// ConfigureExternalHTTPClient sets the timeout for every outbound request.
// Non-positive values restore the default.
func ConfigureExternalHTTPClient(timeoutSeconds int) time.Duration {
	timeout := defaultExternalHTTPTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	externalHTTPClient.Timeout = timeout
	return timeout
}

func ExternalHTTPClient() *http.Client {
	return externalHTTPClient
}
