// Package proxy exposes the provider bridges as JSON endpoints. Every
// endpoint goes through one generic handler so method checks, body parsing,
// error mapping and metrics behave the same everywhere.
package proxy

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/webforge-dev/webforge/metrics"
	"github.com/webforge-dev/webforge/model"
	"github.com/webforge-dev/webforge/provider"
	"go.uber.org/zap"
)

// Endpoint describes one proxied call. Prepare validates and normalizes the
// parsed request; Call performs the outbound request.
type Endpoint[Req any, Resp any] struct {
	Name    string
	Prepare func(req *Req) error
	Call    func(ctx context.Context, req Req) (Resp, error)
}

// RequestIDKey is the fiber local holding the request ID.
const RequestIDKey = "requestid"

type errorBody struct {
	Error string `json:"error"`
}

var (
	errMethodNotAllowed = &model.ValidationError{Message: "Method not allowed", Status: fiber.StatusMethodNotAllowed}
	errInvalidBody      = &model.ValidationError{Message: "Invalid request body"}
)

// Handler serves ep. Mount it with app.All so wrong methods get the JSON 405.
func Handler[Req any, Resp any](ep Endpoint[Req, Resp], m *metrics.Recorder, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("endpoint", ep.Name))

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return respondError(c, errMethodNotAllowed)
		}

		var req Req
		if err := parseBody(c, &req); err != nil {
			logger.Debug("unparseable request body", zap.Error(err))
			return respondError(c, errInvalidBody)
		}
		if ep.Prepare != nil {
			if err := ep.Prepare(&req); err != nil {
				m.ObserveRequest(ep.Name, provider.Outcome(err), 0)
				return respondError(c, err)
			}
		}

		start := time.Now()
		resp, err := ep.Call(c.UserContext(), req)
		m.ObserveRequest(ep.Name, provider.Outcome(err), time.Since(start))
		if err != nil {
			logger.Error("proxied call failed", zap.Error(err), zap.String("request_id", requestID(c)))
			return respondError(c, err)
		}
		return c.JSON(resp)
	}
}

// parseBody decodes form bodies through fiber and everything else as JSON.
// Browsers posting JSON.stringify output without a header send text/plain,
// and the old functions parsed the body regardless of content type.
func parseBody(c *fiber.Ctx, out interface{}) error {
	body := c.Body()
	if len(body) == 0 {
		return nil
	}
	ctype := strings.ToLower(c.Get(fiber.HeaderContentType))
	if strings.HasPrefix(ctype, fiber.MIMEApplicationForm) || strings.HasPrefix(ctype, fiber.MIMEMultipartForm) {
		return c.BodyParser(out)
	}
	return c.App().Config().JSONDecoder(body, out)
}

func respondError(c *fiber.Ctx, err error) error {
	return c.Status(model.StatusCode(err)).JSON(errorBody{Error: model.PublicMessage(err)})
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
