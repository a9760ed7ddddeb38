// Package server assembles the HTTP application: middleware, the provider
// proxy routes, the recording socket and the operational endpoints.
package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/webforge-dev/webforge/capture"
	"github.com/webforge-dev/webforge/config"
	"github.com/webforge-dev/webforge/handoff"
	"github.com/webforge-dev/webforge/llm"
	"github.com/webforge-dev/webforge/logging"
	"github.com/webforge-dev/webforge/metrics"
	"github.com/webforge-dev/webforge/model"
	"github.com/webforge-dev/webforge/proxy"
	"github.com/webforge-dev/webforge/stt"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Deps are the collaborators the routes call into.
type Deps struct {
	Enhancer    llm.Enhancer
	Streamer    proxy.StreamEnhancer
	Transcriber stt.Transcriber
	Composer    handoff.Composer
	Notifier    handoff.Notifier
	Metrics     *metrics.Recorder
	Logger      *zap.Logger
}

type Server struct {
	app    *fiber.App
	addr   string
	logger *zap.Logger

	// base is cancelled on shutdown so open recording sockets stop.
	base   context.Context
	cancel context.CancelFunc
}

func New(cfg config.HTTPConfig, deps Deps) *Server {
	logger := logging.Component(deps.Logger, "server")

	base, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:   cfg.Addr,
		logger: logger,
		base:   base,
		cancel: cancel,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "webforge",
		BodyLimit:             cfg.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New(requestid.Config{
		Header:     fiber.HeaderXRequestID,
		Generator:  uuid.NewString,
		ContextKey: proxy.RequestIDKey,
	}))
	s.app.Use(accessLog(logger))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.CORSOrigins, ","),
		AllowMethods: "POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))

	s.routes(deps)

	if cfg.StaticDir != "" {
		s.app.Static("/", cfg.StaticDir, fiber.Static{Index: "index.html"})
	}
	return s
}

func (s *Server) routes(d Deps) {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))

	enhance := proxy.Handler(proxy.Enhance(d.Enhancer), d.Metrics, d.Logger)
	transcribe := proxy.Handler(proxy.Transcribe(d.Transcriber), d.Metrics, d.Logger)

	s.app.All("/api/enhance-description", enhance)
	s.app.All("/.netlify/functions/enhance-description", enhance)
	s.app.All("/api/transcribe-audio", transcribe)
	s.app.All("/.netlify/functions/transcribe-audio", transcribe)
	s.app.All("/api/handoff", proxy.Handler(proxy.Handoff(d.Composer, d.Notifier, d.Logger), d.Metrics, d.Logger))
	if d.Streamer != nil {
		s.app.All("/api/enhance-description/stream", proxy.StreamHandler(d.Streamer, d.Metrics, d.Logger))
	}

	s.app.Use("/api/record", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/api/record", websocket.New(func(conn *websocket.Conn) {
		defer conn.Close()
		capture.NewSession(conn, d.Transcriber, d.Metrics, d.Logger).Run(s.base)
	}))
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Listen(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.addr))
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		s.cancel()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	s.cancel()
	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return err
	}
	return <-errCh
}

// errorHandler keeps every error response JSON, including fiber's own 404s
// and body-limit rejections.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		return c.Status(ferr.Code).JSON(fiber.Map{"error": ferr.Message})
	}
	s.logger.Error("unhandled error", zap.Error(err), zap.String("path", c.Path()))
	return c.Status(model.StatusCode(err)).JSON(fiber.Map{"error": model.PublicMessage(err)})
}

func accessLog(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			var ferr *fiber.Error
			if errors.As(err, &ferr) {
				status = ferr.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		logger.Debug("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("elapsed", time.Since(start)),
			zap.Any("request_id", c.Locals(proxy.RequestIDKey)),
		)
		return err
	}
}
