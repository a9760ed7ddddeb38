package proxy

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/webforge-dev/webforge/handoff"
	"github.com/webforge-dev/webforge/llm"
	"github.com/webforge-dev/webforge/model"
	"github.com/webforge-dev/webforge/stt"
	"go.uber.org/zap"
)

type EnhanceRequest struct {
	Description string `json:"description" form:"description"`
}

type EnhanceResponse struct {
	EnhancedDescription string `json:"enhancedDescription"`
}

type TranscribeRequest struct {
	AudioData string `json:"audioData" form:"audioData"`
	MimeType  string `json:"mimeType" form:"mimeType"`

	audio []byte
}

type TranscribeResponse struct {
	Text string `json:"text"`
}

type HandoffRequest struct {
	Description         string `json:"description" form:"description"`
	EnhancedDescription string `json:"enhancedDescription" form:"enhancedDescription"`
	Version             string `json:"version" form:"version"`

	version model.Version
}

type HandoffResponse struct {
	RequestID  string `json:"requestId"`
	Version    string `json:"version"`
	MailtoURL  string `json:"mailto"`
	WebmailURL string `json:"webmail"`
}

// Enhance cleans the description of filler words and asks the provider for a
// project specification.
func Enhance(e llm.Enhancer) Endpoint[EnhanceRequest, EnhanceResponse] {
	return Endpoint[EnhanceRequest, EnhanceResponse]{
		Name:    "enhance",
		Prepare: prepareEnhance,
		Call: func(ctx context.Context, req EnhanceRequest) (EnhanceResponse, error) {
			out, err := e.Enhance(ctx, req.Description)
			if err != nil {
				return EnhanceResponse{}, err
			}
			return EnhanceResponse{EnhancedDescription: out}, nil
		},
	}
}

func prepareEnhance(req *EnhanceRequest) error {
	if strings.TrimSpace(req.Description) == "" {
		return &model.ValidationError{Message: "Description is required"}
	}
	cleaned, err := llm.Prepare(req.Description)
	if err != nil {
		return err
	}
	req.Description = cleaned
	return nil
}

// Transcribe decodes base64 audio and forwards it to the speech-to-text provider.
func Transcribe(t stt.Transcriber) Endpoint[TranscribeRequest, TranscribeResponse] {
	return Endpoint[TranscribeRequest, TranscribeResponse]{
		Name:    "transcribe",
		Prepare: prepareTranscribe,
		Call: func(ctx context.Context, req TranscribeRequest) (TranscribeResponse, error) {
			text, err := t.Transcribe(ctx, model.Blob{Data: req.audio, MimeType: req.MimeType})
			if err != nil {
				return TranscribeResponse{}, err
			}
			return TranscribeResponse{Text: text}, nil
		},
	}
}

func prepareTranscribe(req *TranscribeRequest) error {
	if req.AudioData == "" || req.MimeType == "" {
		return &model.ValidationError{Message: "Audio data and MIME type are required"}
	}
	audio, err := decodeAudio(req.AudioData)
	if err != nil {
		return &model.ValidationError{Message: "Audio data must be base64 encoded"}
	}
	if len(audio) == 0 {
		return model.ErrEmptyAudio
	}
	req.audio = audio
	return nil
}

// decodeAudio accepts plain base64 or a data URL as produced by FileReader.
func decodeAudio(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if strings.HasPrefix(data, "data:") {
		if i := strings.Index(data, ","); i >= 0 {
			data = data[i+1:]
		}
	}
	if audio, err := base64.StdEncoding.DecodeString(data); err == nil {
		return audio, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
}

// Handoff composes the mail links for a finished request and notifies the
// studio.
func Handoff(composer handoff.Composer, notifier handoff.Notifier, logger *zap.Logger) Endpoint[HandoffRequest, HandoffResponse] {
	if notifier == nil {
		notifier = handoff.NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return Endpoint[HandoffRequest, HandoffResponse]{
		Name:    "handoff",
		Prepare: prepareHandoff,
		Call: func(ctx context.Context, req HandoffRequest) (HandoffResponse, error) {
			pr := model.NewProjectRequest()
			pr.RawText = req.Description
			pr.EnhancedText = req.EnhancedDescription

			h := composer.Compose(pr, req.version)
			// A failed notification must not cost the visitor their handoff.
			if err := notifier.Notify(ctx, h); err != nil {
				logger.Warn("handoff notification failed", zap.Error(err), zap.String("request_id", h.RequestID.String()))
			}

			return HandoffResponse{
				RequestID:  h.RequestID.String(),
				Version:    h.Version.String(),
				MailtoURL:  h.MailtoURL,
				WebmailURL: h.WebmailURL,
			}, nil
		},
	}
}

func prepareHandoff(req *HandoffRequest) error {
	if strings.TrimSpace(req.Description) == "" {
		return &model.ValidationError{Message: "Description is required"}
	}
	switch strings.ToLower(strings.TrimSpace(req.Version)) {
	case "", "original":
		req.version = model.Original
	case "enhanced":
		if strings.TrimSpace(req.EnhancedDescription) == "" {
			return &model.ValidationError{Message: "Enhanced description is required for the enhanced version"}
		}
		req.version = model.Enhanced
	default:
		return &model.ValidationError{Message: "Version must be original or enhanced"}
	}
	return nil
}
