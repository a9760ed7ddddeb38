// Package workflow drives one project request from the open form to the
// email handoff. Every transition is checked against the current state, and
// each provider call carries an attempt token so a result arriving after the
// form was closed is dropped instead of applied.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/webforge-dev/webforge/cleanup"
	"github.com/webforge-dev/webforge/handoff"
	"github.com/webforge-dev/webforge/logging"
	"github.com/webforge-dev/webforge/model"
	"go.uber.org/zap"
)

type State int

const (
	Idle State = iota
	Editing
	Submitting
	Reviewing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	case Submitting:
		return "submitting"
	case Reviewing:
		return "reviewing"
	default:
		return "unknown"
	}
}

var (
	ErrInvalidTransition = errors.New("invalid workflow transition")
	// ErrDiscarded is returned to the caller of an attempt whose result
	// arrived after the request was closed.
	ErrDiscarded = errors.New("result discarded")
	ErrBusy      = errors.New("a request to the provider is already in flight")
	ErrNoDevice  = &model.DeviceError{Err: model.ErrDeviceUnavailable}
)

// Snapshot is a read-only copy of the controller for display.
type Snapshot struct {
	State     State
	Selected  model.Version
	Request   model.ProjectRequest
	Recording bool
	Busy      bool
	LastError error
}

type Options struct {
	Enhancer    Enhancer
	Transcriber Transcriber
	// Recorder may be nil when no capture device is available.
	Recorder Recorder
	Composer handoff.Composer
	Notifier handoff.Notifier
	Logger   *zap.Logger
}

type Controller struct {
	enhancer    Enhancer
	transcriber Transcriber
	recorder    Recorder
	composer    handoff.Composer
	notifier    handoff.Notifier
	logger      *zap.Logger

	mu       sync.Mutex
	state    State
	req      *model.ProjectRequest
	selected model.Version
	attempt  uint64
	cancel   context.CancelFunc
	lastErr  error
}

func NewController(opts Options) *Controller {
	notifier := opts.Notifier
	if notifier == nil {
		notifier = handoff.NopNotifier{}
	}
	return &Controller{
		enhancer:    opts.Enhancer,
		transcriber: opts.Transcriber,
		recorder:    opts.Recorder,
		composer:    opts.Composer,
		notifier:    notifier,
		logger:      logging.Component(opts.Logger, "workflow"),
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:     c.state,
		Selected:  c.selected,
		Busy:      c.cancel != nil,
		LastError: c.lastErr,
	}
	if c.req != nil {
		s.Request = *c.req
	}
	if c.recorder != nil {
		s.Recording = c.recorder.Active()
	}
	return s
}

func (c *Controller) invalid(op string) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, c.state)
}

// Open starts a fresh request. Idle -> Editing.
func (c *Controller) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		return c.invalid("open")
	}
	c.req = model.NewProjectRequest()
	c.selected = model.Original
	c.lastErr = nil
	c.state = Editing
	c.logger.Debug("request opened", zap.String("request_id", c.req.ID.String()))
	return nil
}

// SetText replaces the raw description. The displayed text is never cleaned.
func (c *Controller) SetText(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Editing {
		return c.invalid("edit")
	}
	c.req.RawText = text
	return nil
}

// AppendTranscript adds dictated text to the end of the raw description.
func (c *Controller) AppendTranscript(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Editing {
		return c.invalid("append transcript")
	}
	c.appendLocked(text)
	return nil
}

func (c *Controller) appendLocked(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if strings.TrimSpace(c.req.RawText) == "" {
		c.req.RawText = text
		return
	}
	c.req.RawText = strings.TrimRight(c.req.RawText, " \t") + " " + text
}

// StartRecording acquires the capture device. It does nothing when a
// recording is already running.
func (c *Controller) StartRecording(ctx context.Context, mimeType string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Editing {
		return c.invalid("start recording")
	}
	if c.recorder == nil {
		return ErrNoDevice
	}
	if c.recorder.Active() {
		return nil
	}
	if err := c.recorder.Start(ctx, mimeType); err != nil {
		c.lastErr = err
		return err
	}
	return nil
}

// StopRecording releases the device, transcribes what was captured and
// appends it to the description. It returns the transcript.
func (c *Controller) StopRecording(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state != Editing {
		err := c.invalid("stop recording")
		c.mu.Unlock()
		return "", err
	}
	if c.recorder == nil {
		c.mu.Unlock()
		return "", nil
	}
	if c.cancel != nil {
		c.mu.Unlock()
		return "", ErrBusy
	}
	blob, ok, err := c.recorder.Stop()
	if !ok {
		c.mu.Unlock()
		return "", nil
	}
	if err != nil {
		c.lastErr = err
		c.mu.Unlock()
		return "", err
	}
	id, attemptCtx := c.beginAttemptLocked(ctx)
	c.mu.Unlock()

	text, err := c.transcriber.Transcribe(attemptCtx, blob)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finishAttemptLocked(id) {
		c.logger.Debug("dropping late transcript")
		return "", ErrDiscarded
	}
	if err != nil {
		c.lastErr = err
		c.logger.Warn("transcription failed", zap.Error(err))
		return "", err
	}
	c.appendLocked(text)
	return text, nil
}

// Enhance sends the cleaned description to the provider.
// Editing -> Submitting -> Reviewing(Original), or back to Editing on failure.
func (c *Controller) Enhance(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state != Editing {
		err := c.invalid("enhance")
		c.mu.Unlock()
		return "", err
	}
	if c.cancel != nil {
		c.mu.Unlock()
		return "", ErrBusy
	}
	cleaned := cleanup.Clean(c.req.RawText)
	if cleaned == "" {
		c.mu.Unlock()
		return "", &model.ValidationError{Message: "Description is required"}
	}
	c.req.CleanedText = cleaned
	c.state = Submitting
	c.lastErr = nil
	id, attemptCtx := c.beginAttemptLocked(ctx)
	c.mu.Unlock()

	enhanced, err := c.enhancer.Enhance(attemptCtx, cleaned)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finishAttemptLocked(id) {
		c.logger.Debug("dropping late enhancement")
		return "", ErrDiscarded
	}
	if err != nil {
		c.state = Editing
		c.lastErr = err
		c.logger.Warn("enhancement failed", zap.Error(err))
		return "", err
	}
	c.req.EnhancedText = enhanced
	c.selected = model.Original
	c.state = Reviewing
	return enhanced, nil
}

// Select picks the version that Submit hands off.
func (c *Controller) Select(v model.Version) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Reviewing {
		return c.invalid("select")
	}
	if v != model.Original && v != model.Enhanced {
		return &model.ValidationError{Message: fmt.Sprintf("unknown version %d", v)}
	}
	c.selected = v
	return nil
}

// Refine re-enables editing. Reviewing -> Editing.
func (c *Controller) Refine() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Reviewing {
		return c.invalid("refine")
	}
	c.state = Editing
	return nil
}

// Submit hands the selected version to the email composer and ends the
// request. Reviewing -> Idle.
func (c *Controller) Submit(ctx context.Context) (handoff.Handoff, error) {
	c.mu.Lock()
	if c.state != Reviewing {
		err := c.invalid("submit")
		c.mu.Unlock()
		return handoff.Handoff{}, err
	}
	h := c.composer.Compose(c.req, c.selected)
	c.resetLocked()
	c.mu.Unlock()

	if err := c.notifier.Notify(ctx, h); err != nil {
		c.logger.Warn("handoff notification failed", zap.Error(err))
	}
	c.logger.Info("request handed off", zap.String("request_id", h.RequestID.String()), zap.Stringer("version", h.Version))
	return h, nil
}

// Close discards the request from any state. An in-flight provider call is
// cancelled and its result will be dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetLocked()
}

func (c *Controller) resetLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.attempt++
	if c.recorder != nil {
		if _, ok, err := c.recorder.Stop(); ok && err != nil {
			c.logger.Warn("recording stopped with error", zap.Error(err))
		}
	}
	c.req = nil
	c.selected = model.Original
	c.lastErr = nil
	c.state = Idle
}

func (c *Controller) beginAttemptLocked(parent context.Context) (uint64, context.Context) {
	c.attempt++
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	return c.attempt, ctx
}

// finishAttemptLocked reports whether id is still the current attempt and
// releases its context.
func (c *Controller) finishAttemptLocked(id uint64) bool {
	if id != c.attempt {
		return false
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return true
}
