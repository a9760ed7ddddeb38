package proxy

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"github.com/webforge-dev/webforge/metrics"
	"github.com/webforge-dev/webforge/model"
	"github.com/webforge-dev/webforge/provider"
	"go.uber.org/zap"
)

// StreamEnhancer emits the enhanced description sentence by sentence.
type StreamEnhancer interface {
	StreamEnhance(ctx context.Context, text string, emit func(string) error) error
}

type streamChunk struct {
	Text string `json:"text"`
}

// StreamHandler serves the enhancement as server-sent events. Each finished
// sentence is one data event; the stream ends with a done or error event.
// Validation failures are answered as plain JSON before the stream opens.
func StreamHandler(e StreamEnhancer, m *metrics.Recorder, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("endpoint", "enhance_stream"))

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return respondError(c, errMethodNotAllowed)
		}
		var req EnhanceRequest
		if err := parseBody(c, &req); err != nil {
			return respondError(c, errInvalidBody)
		}
		if err := prepareEnhance(&req); err != nil {
			m.ObserveRequest("enhance_stream", provider.Outcome(err), 0)
			return respondError(c, err)
		}

		c.Set(fiber.HeaderContentType, "text/event-stream")
		c.Set(fiber.HeaderCacheControl, "no-cache")
		c.Set(fiber.HeaderConnection, "keep-alive")
		c.Set("X-Accel-Buffering", "no")

		// The body writer runs after the handler returns, so it cannot use the
		// request context.
		ctx, cancel := context.WithCancel(context.Background())
		id := requestID(c)
		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer cancel()
			start := time.Now()
			err := e.StreamEnhance(ctx, req.Description, func(sentence string) error {
				if err := writeEvent(w, "", streamChunk{Text: sentence}); err != nil {
					return err
				}
				// A flush error means the client went away.
				return w.Flush()
			})
			m.ObserveRequest("enhance_stream", provider.Outcome(err), time.Since(start))
			if err != nil {
				logger.Error("stream failed", zap.Error(err), zap.String("request_id", id))
				_ = writeEvent(w, "error", errorBody{Error: model.PublicMessage(err)})
			} else {
				_ = writeEvent(w, "done", struct{}{})
			}
			_ = w.Flush()
		}))
		return nil
	}
}

func writeEvent(w *bufio.Writer, event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if event != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
