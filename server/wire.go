package server

import (
	"github.com/webforge-dev/webforge/config"
	"github.com/webforge-dev/webforge/handoff"
	"github.com/webforge-dev/webforge/llm"
	"github.com/webforge-dev/webforge/metrics"
	"github.com/webforge-dev/webforge/provider"
	"github.com/webforge-dev/webforge/stt"
	"go.uber.org/zap"
)

// FromConfig wires the OpenAI bridges and the optional Twilio notifier
// behind a new Server.
func FromConfig(cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	p := provider.New(cfg.Provider)
	if !p.HasKey() {
		logger.Warn("OPENAI_API_KEY is not set; provider calls will fail")
	}
	enhancer := llm.NewOpenAIClient(p, cfg.Provider, logger)

	var notifier handoff.Notifier = handoff.NopNotifier{}
	if cfg.Notify.Enabled() {
		notifier = handoff.NewTwilioNotifier(cfg.Notify.AccountSID, cfg.Notify.AuthToken, cfg.Notify.From, cfg.Notify.To, logger)
	}

	return New(cfg.HTTP, Deps{
		Enhancer:    enhancer,
		Streamer:    enhancer,
		Transcriber: stt.NewOpenAITranscriber(p, cfg.Provider.TranscriptionModel, logger),
		Composer:    handoff.Composer{To: cfg.Handoff.MailTo, Subject: cfg.Handoff.Subject},
		Notifier:    notifier,
		Metrics:     metrics.New(),
		Logger:      logger,
	})
}
