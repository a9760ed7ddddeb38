package cli

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/webforge-dev/webforge/model"
	"github.com/webforge-dev/webforge/proxy"
)

// apiClient talks to a running server's proxy endpoints. It satisfies the
// workflow's Enhancer and Transcriber so the interactive command drives the
// same controller the site does.
type apiClient struct {
	baseURL string
	timeout time.Duration
}

func newAPIClient(baseURL string, timeout time.Duration) *apiClient {
	return &apiClient{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

func (c *apiClient) Enhance(ctx context.Context, text string) (string, error) {
	var resp proxy.EnhanceResponse
	if err := c.post(ctx, "/api/enhance-description", proxy.EnhanceRequest{Description: text}, &resp); err != nil {
		return "", err
	}
	return resp.EnhancedDescription, nil
}

func (c *apiClient) Transcribe(ctx context.Context, blob model.Blob) (string, error) {
	if blob.Empty() {
		return "", model.ErrEmptyAudio
	}
	req := proxy.TranscribeRequest{
		AudioData: base64.StdEncoding.EncodeToString(blob.Data),
		MimeType:  blob.MimeType,
	}
	var resp proxy.TranscribeResponse
	if err := c.post(ctx, "/api/transcribe-audio", req, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (c *apiClient) post(ctx context.Context, path string, body, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	agent := fiber.Post(c.baseURL + path).JSON(body)
	if c.timeout > 0 {
		agent.Timeout(c.timeout)
	}
	code, raw, errs := agent.Bytes()
	if len(errs) > 0 {
		return &model.NetworkError{Err: errors.Join(errs...)}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if code != http.StatusOK {
		var eb struct {
			Error string `json:"error"`
		}
		msg := http.StatusText(code)
		if json.Unmarshal(raw, &eb) == nil && eb.Error != "" {
			msg = eb.Error
		}
		if code >= 400 && code < 500 {
			return &model.ValidationError{Message: msg, Status: code}
		}
		return &model.ProviderError{Status: code, Message: msg}
	}
	return json.Unmarshal(raw, out)
}
