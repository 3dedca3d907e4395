// Package httpservice implements collaborator.ServiceClient over net/http,
// propagating the caller's bearer token unchanged (P8) and instrumenting
// every downstream call with otelhttp for distributed tracing.
//
// Grounded on telemetry.NewTracedHTTPClient's otelhttp-wrapped transport
// idiom: one shared client that resolves each downstream service name to its
// configured base URL.
package httpservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/intentgw/gateway/plan"
)

// Client invokes downstream service functions over HTTP: POST
// {baseURL}/{serviceName}/{functionName} with a JSON body of the resolved
// parameters.
type Client struct {
	http        *http.Client
	serviceURLs map[string]string
}

// New builds a Client. serviceURLs maps a serviceName to its base URL
// (config.ServiceDiscoveryConfig.ServiceURLs).
func New(serviceURLs map[string]string) *Client {
	return &Client{
		http: &http.Client{
			Timeout:   60 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		serviceURLs: serviceURLs,
	}
}

// errorResponse is decoded from a non-2xx downstream response body, best
// effort; its Message, if present, becomes the returned error's text.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Call implements collaborator.ServiceClient.
func (c *Client) Call(ctx context.Context, serviceName, functionName string, params map[string]plan.Value, bearerToken string) (plan.Value, *int, error) {
	baseURL, ok := c.serviceURLs[serviceName]
	if !ok {
		return nil, nil, fmt.Errorf("httpservice: unknown service %q", serviceName)
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, nil, fmt.Errorf("httpservice: marshaling parameters: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s", baseURL, serviceName, functionName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("httpservice: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearerToken != "" {
		req.Header.Set("Authorization", bearerToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("httpservice: connection error calling %s.%s: %w", serviceName, functionName, err)
	}
	defer resp.Body.Close()

	status := resp.StatusCode
	var payload plan.Value
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()

	if status >= 200 && status < 300 {
		if err := dec.Decode(&payload); err != nil && err.Error() != "EOF" {
			return nil, &status, fmt.Errorf("httpservice: decoding response from %s.%s: %w", serviceName, functionName, err)
		}
		return payload, &status, nil
	}

	var errBody errorResponse
	_ = dec.Decode(&errBody)
	msg := errBody.Message
	if msg == "" {
		msg = errBody.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("downstream returned status %d", status)
	}
	return nil, &status, fmt.Errorf("httpservice: %s.%s: %s", serviceName, functionName, msg)
}
