package handoff

import (
	"context"
	"fmt"
	"unicode/utf8"

	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/webforge-dev/webforge/logging"
	"go.uber.org/zap"
)

// Notifier tells the studio a request was handed off.
type Notifier interface {
	Notify(ctx context.Context, h Handoff) error
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Handoff) error { return nil }

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioNotifier sends a short SMS summary of each handoff.
type TwilioNotifier struct {
	api    messageCreator
	from   string
	to     string
	logger *zap.Logger
}

const smsPreviewRunes = 120

func NewTwilioNotifier(accountSID, authToken, from, to string, logger *zap.Logger) *TwilioNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return newTwilioNotifier(client.Api, from, to, logger)
}

func newTwilioNotifier(api messageCreator, from, to string, logger *zap.Logger) *TwilioNotifier {
	return &TwilioNotifier{api: api, from: from, to: to, logger: logging.Component(logger, "notifier")}
}

func (n *TwilioNotifier) Notify(_ context.Context, h Handoff) error {
	params := &openapi.CreateMessageParams{}
	params.SetTo(n.to)
	params.SetFrom(n.from)
	params.SetBody(smsBody(h))

	resp, err := n.api.CreateMessage(params)
	if err != nil {
		n.logger.Warn("twilio message failed", zap.Error(err))
		return fmt.Errorf("send handoff notification: %w", err)
	}
	if resp != nil && resp.Sid != nil {
		n.logger.Debug("handoff notification sent", zap.String("sid", *resp.Sid))
	}
	return nil
}

func smsBody(h Handoff) string {
	preview := h.Body
	if utf8.RuneCountInString(preview) > smsPreviewRunes {
		preview = string([]rune(preview)[:smsPreviewRunes]) + "..."
	}
	return fmt.Sprintf("New Webforge request %s (%s): %s", h.RequestID, h.Version, preview)
}
