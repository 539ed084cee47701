package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultSendTimeout = 5 * time.Second

// sendResponse is the wire contract a transport endpoint answers with.
type sendResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HTTPChannel posts the send request to an HTTP mail endpoint: the local
// relay service or the remote function endpoint, which share the contract.
type HTTPChannel struct {
	name     string
	client   *resty.Client
	endpoint string
}

// NewRelayChannel builds the primary channel talking to the local mail
// relay service.
func NewRelayChannel(endpoint string) (*HTTPChannel, error) {
	return newHTTPChannel("relay", endpoint, nil)
}

// NewFunctionChannel builds the secondary fallback channel talking to the
// remote mail function endpoint.
func NewFunctionChannel(endpoint string) (*HTTPChannel, error) {
	return newHTTPChannel("function", endpoint, nil)
}

// NewHTTPChannelWithClient is the test seam for injecting a tuned client.
func NewHTTPChannelWithClient(name, endpoint string, client *resty.Client) (*HTTPChannel, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	return newHTTPChannel(name, endpoint, client)
}

func newHTTPChannel(name, endpoint string, client *resty.Client) (*HTTPChannel, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("channel endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid channel endpoint: %w", err)
	}

	if client == nil {
		client = resty.New()
		client.SetTimeout(defaultSendTimeout)
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSendTimeout)
	}
	// Retry-over-time belongs to the orchestrator, never the transport.
	client.SetRetryCount(0)

	return &HTTPChannel{
		name:     name,
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (c *HTTPChannel) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

func (c *HTTPChannel) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("channel is not initialized")
	}
	if strings.TrimSpace(req.To) == "" {
		return nil, &ChannelError{
			Channel:   c.name,
			Message:   "recipient address is required",
			Transient: false,
		}
	}

	response, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post(c.endpoint)
	if err != nil {
		return nil, &ChannelError{
			Channel:   c.name,
			Message:   "send request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &ChannelError{
			Channel:   c.name,
			Message:   "endpoint returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	body := response.Body()

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, &ChannelError{
			Channel:    c.name,
			StatusCode: statusCode,
			Message:    endpointErrorMessage(statusCode, strings.TrimSpace(string(body))),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	var parsed sendResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ChannelError{
			Channel:    c.name,
			StatusCode: statusCode,
			Message:    "endpoint returned malformed response",
			Transient:  true,
			Cause:      err,
		}
	}

	if !parsed.Success {
		message := strings.TrimSpace(parsed.Error)
		if message == "" {
			message = "endpoint reported failure"
		}
		return nil, &ChannelError{
			Channel:    c.name,
			StatusCode: statusCode,
			Message:    message,
			Transient:  true,
		}
	}

	return &SendResult{
		Method:    c.name,
		MessageID: strings.TrimSpace(parsed.MessageID),
	}, nil
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		(statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func endpointErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("endpoint returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
