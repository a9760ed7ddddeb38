package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"github.com/webforge-dev/webforge/model"
)

type fakeStreamer struct {
	sentences []string
	err       error
	got       string
}

func (f *fakeStreamer) StreamEnhance(_ context.Context, text string, emit func(string) error) error {
	f.got = text
	for _, s := range f.sentences {
		if err := emit(s); err != nil {
			return err
		}
	}
	return f.err
}

func stream(t *testing.T, s StreamEnhancer, body string) (*http.Response, string) {
	t.Helper()
	return streamAs(t, s, fiber.MIMEApplicationJSON, body)
}

func streamAs(t *testing.T, s StreamEnhancer, contentType, body string) (*http.Response, string) {
	t.Helper()

	app := fiber.New()
	app.All("/", StreamHandler(s, nil, nil))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(fiber.HeaderContentType, contentType)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestStreamEmitsSentencesThenDone(t *testing.T) {
	t.Parallel()

	s := &fakeStreamer{sentences: []string{"First sentence.", "Second one!"}}
	resp, body := stream(t, s, `{"description":"uh a blog"}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get(fiber.HeaderContentType))
	require.Equal(t, "a blog", s.got)
	require.Equal(t,
		"data: {\"text\":\"First sentence.\"}\n\n"+
			"data: {\"text\":\"Second one!\"}\n\n"+
			"event: done\ndata: {}\n\n",
		body)
}

func TestStreamReportsProviderFailure(t *testing.T) {
	t.Parallel()

	s := &fakeStreamer{
		sentences: []string{"Partial."},
		err:       &model.ProviderError{Status: 500, Message: "Failed to generate enhanced description"},
	}
	_, body := stream(t, s, `{"description":"a blog"}`)

	require.True(t, strings.HasPrefix(body, "data: {\"text\":\"Partial.\"}\n\n"))
	require.True(t, strings.HasSuffix(body, "event: error\ndata: {\"error\":\"Failed to generate enhanced description\"}\n\n"))
}

func TestStreamValidatesBeforeOpening(t *testing.T) {
	t.Parallel()

	s := &fakeStreamer{err: errors.New("must not be called")}
	resp, body := stream(t, s, `{}`)

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.JSONEq(t, `{"error":"Description is required"}`, body)
	require.Empty(t, s.got)
}

func TestStreamAcceptsPlainTextJSON(t *testing.T) {
	t.Parallel()

	s := &fakeStreamer{sentences: []string{"Done."}}
	resp, body := streamAs(t, s, "text/plain;charset=UTF-8", `{"description":"a blog"}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "a blog", s.got)
	require.True(t, strings.HasSuffix(body, "event: done\ndata: {}\n\n"))
}
