// Package provider builds the OpenAI client shared by the enhancement and
// transcription bridges and maps its failures onto the service error kinds.
package provider

import (
	"errors"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/webforge-dev/webforge/config"
	"github.com/webforge-dev/webforge/model"
)

// ErrMissingKey is what every call fails with when no API key was deployed.
var ErrMissingKey = &model.ProviderError{Status: http.StatusUnauthorized, Message: "OpenAI API key is not configured"}

type Client struct {
	api    *openai.Client
	hasKey bool
}

func New(cfg config.ProviderConfig) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Minute
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		api:    openai.NewClientWithConfig(clientCfg),
		hasKey: cfg.APIKey != "",
	}
}

func (c *Client) HasKey() bool {
	return c.hasKey
}

// API returns the underlying client after checking a key is configured.
func (c *Client) API() (*openai.Client, error) {
	if !c.hasKey {
		return nil, ErrMissingKey
	}
	return c.api, nil
}

// Classify turns a go-openai error into ProviderError or NetworkError.
// fallback is used when the provider rejected the call without a message.
func Classify(err error, fallback string) error {
	if err == nil {
		return nil
	}

	var perr *model.ProviderError
	if errors.As(err, &perr) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if msg == "" {
			msg = fallback
		}
		return &model.ProviderError{Status: apiErr.HTTPStatusCode, Message: msg}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &model.ProviderError{Status: reqErr.HTTPStatusCode, Message: fallback}
	}

	// Transport failures, timeouts and cancellation all land here.
	return &model.NetworkError{Err: err}
}

// Outcome labels an error for metrics.
func Outcome(err error) string {
	var (
		verr *model.ValidationError
		perr *model.ProviderError
		nerr *model.NetworkError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verr):
		return "validation_error"
	case errors.As(err, &perr):
		return "provider_error"
	case errors.As(err, &nerr):
		return "network_error"
	default:
		return "error"
	}
}
