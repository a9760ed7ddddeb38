package stt

import (
	"bytes"
	"context"
	"mime"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"github.com/webforge-dev/webforge/logging"
	"github.com/webforge-dev/webforge/model"
	"github.com/webforge-dev/webforge/provider"
	"go.uber.org/zap"
)

const failedMessage = "Transcription failed"

// Transcriber converts a finished recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, blob model.Blob) (string, error)
}

var extensions = map[string]string{
	"audio/webm":  "webm",
	"video/webm":  "webm",
	"audio/ogg":   "ogg",
	"audio/mp4":   "m4a",
	"audio/m4a":   "m4a",
	"audio/x-m4a": "m4a",
	"audio/mpeg":  "mp3",
	"audio/mp3":   "mp3",
	"audio/wav":   "wav",
	"audio/wave":  "wav",
	"audio/x-wav": "wav",
	"audio/flac":  "flac",
}

// ExtensionFor picks the upload filename extension for a codec tag. Codec
// parameters are ignored and unknown types fall back to webm, which is what
// browsers record by default.
func ExtensionFor(mimeType string) string {
	base := strings.TrimSpace(mimeType)
	if mt, _, err := mime.ParseMediaType(base); err == nil {
		base = mt
	} else if i := strings.IndexByte(base, ';'); i >= 0 {
		base = base[:i]
	}
	if ext, ok := extensions[strings.ToLower(base)]; ok {
		return ext
	}
	return "webm"
}

type OpenAITranscriber struct {
	provider *provider.Client
	model    string
	logger   *zap.Logger
}

func NewOpenAITranscriber(p *provider.Client, modelName string, logger *zap.Logger) *OpenAITranscriber {
	if modelName == "" {
		modelName = openai.Whisper1
	}
	return &OpenAITranscriber{
		provider: p,
		model:    modelName,
		logger:   logging.Component(logger, "transcriber"),
	}
}

// Transcribe makes a single multipart upload. Empty audio is rejected before
// anything is sent.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, blob model.Blob) (string, error) {
	if blob.Empty() {
		return "", model.ErrEmptyAudio
	}
	api, err := t.provider.API()
	if err != nil {
		return "", err
	}

	filename := "audio." + ExtensionFor(blob.MimeType)
	t.logger.Debug("uploading audio", zap.String("file", filename), zap.Int("bytes", len(blob.Data)))

	resp, err := api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: filename,
		Reader:   bytes.NewReader(blob.Data),
	})
	if err != nil {
		t.logger.Warn("transcription request failed", zap.Error(err))
		return "", provider.Classify(errors.Wrapf(err, "transcribe %s", filename), failedMessage)
	}
	return resp.Text, nil
}
