package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/webforge-dev/webforge/logging"
	"github.com/webforge-dev/webforge/metrics"
	"github.com/webforge-dev/webforge/model"
	"github.com/webforge-dev/webforge/queue"
	"go.uber.org/zap"
)

// Device is an audio source that must be opened before it yields chunks.
type Device interface {
	Open(ctx context.Context, mimeType string) (Stream, error)
}

// Stream yields chunks until it returns io.EOF. Close releases the device and
// must unblock a pending Read; chunks the stream already buffered may still
// be returned before io.EOF.
type Stream interface {
	Read() ([]byte, error)
	Close() error
}

// Recorder buffers one recording session at a time.
type Recorder struct {
	device  Device
	metrics *metrics.Recorder
	logger  *zap.Logger

	mu        sync.Mutex
	active    bool
	mimeType  string
	stream    Stream
	chunks    *queue.Queue[model.AudioChunk]
	done      chan struct{}
	pumpErr   error
	stopWatch func() bool
}

func NewRecorder(device Device, m *metrics.Recorder, logger *zap.Logger) *Recorder {
	return &Recorder{
		device:  device,
		metrics: m,
		logger:  logging.Component(logger, "recorder"),
		chunks:  queue.New[model.AudioChunk](),
	}
}

// Active reports whether a session currently holds the device.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Start opens the device and begins buffering. Calling it while a session is
// active does nothing. If ctx ends first the device is released and the
// buffered audio stays available to Stop.
func (r *Recorder) Start(ctx context.Context, mimeType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return nil
	}

	stream, err := r.device.Open(ctx, mimeType)
	if err != nil {
		r.logger.Warn("failed to open audio device", zap.Error(err))
		return deviceError(err)
	}

	r.active = true
	r.mimeType = mimeType
	r.stream = stream
	r.pumpErr = nil
	r.chunks.Clear()
	r.done = make(chan struct{})
	r.stopWatch = context.AfterFunc(ctx, func() {
		_ = stream.Close()
	})
	r.metrics.RecordingStarted()

	go r.pump(stream, r.done)
	r.logger.Debug("recording started", zap.String("mime_type", mimeType))
	return nil
}

func (r *Recorder) pump(stream Stream, done chan struct{}) {
	defer close(done)
	for {
		chunk, err := stream.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.mu.Lock()
				r.pumpErr = err
				r.mu.Unlock()
				_ = stream.Close()
			}
			return
		}
		if len(chunk) > 0 {
			r.chunks.Enqueue(chunk)
		}
	}
}

// Stop releases the device and returns every buffered chunk joined into one
// blob. Without an active session it returns ok=false and no error.
func (r *Recorder) Stop() (blob model.Blob, ok bool, err error) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return model.Blob{}, false, nil
	}
	r.active = false
	stream, done, stopWatch, mimeType := r.stream, r.done, r.stopWatch, r.mimeType
	r.stream, r.stopWatch = nil, nil
	r.mu.Unlock()

	stopWatch()
	closeErr := stream.Close()
	<-done
	r.metrics.RecordingStopped()

	r.mu.Lock()
	pumpErr := r.pumpErr
	r.pumpErr = nil
	r.mu.Unlock()

	chunks := r.chunks.Drain()
	var buf bytes.Buffer
	for _, c := range chunks {
		buf.Write(c)
	}
	r.logger.Debug("recording stopped", zap.Int("chunks", len(chunks)), zap.Int("bytes", buf.Len()))

	if pumpErr != nil {
		return model.Blob{}, true, &model.DeviceError{Err: fmt.Errorf("%w: %v", model.ErrDeviceUnavailable, pumpErr)}
	}
	if closeErr != nil {
		r.logger.Warn("failed to release audio device", zap.Error(closeErr))
	}
	return model.Blob{Data: buf.Bytes(), MimeType: mimeType}, true, nil
}

func deviceError(err error) error {
	if errors.Is(err, model.ErrPermissionDenied) || errors.Is(err, model.ErrDeviceUnavailable) {
		return &model.DeviceError{Err: err}
	}
	return &model.DeviceError{Err: fmt.Errorf("%w: %v", model.ErrDeviceUnavailable, err)}
}
