package workflow

//go:generate mockgen -source=deps.go -destination=mock_deps_test.go -package=workflow

import (
	"context"

	"github.com/webforge-dev/webforge/model"
)

// Enhancer is the enhancement bridge as seen by the controller.
type Enhancer interface {
	Enhance(ctx context.Context, text string) (string, error)
}

// Transcriber is the transcription bridge as seen by the controller.
type Transcriber interface {
	Transcribe(ctx context.Context, blob model.Blob) (string, error)
}

// Recorder is the audio capture adapter as seen by the controller.
type Recorder interface {
	Start(ctx context.Context, mimeType string) error
	Stop() (model.Blob, bool, error)
	Active() bool
}
