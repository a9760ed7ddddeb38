package capture

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"

	"github.com/gofiber/websocket/v2"
	"github.com/webforge-dev/webforge/logging"
	"github.com/webforge-dev/webforge/metrics"
	"github.com/webforge-dev/webforge/model"
	"github.com/webforge-dev/webforge/stt"
	"go.uber.org/zap"
)

// Conn is the part of a websocket connection a session needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
}

// Event is a client message on the recording socket.
type Event struct {
	Event string `json:"event"` // "start", "media", "stop"
	Start struct {
		MimeType string `json:"mimeType"`
	} `json:"start"`
	Media struct {
		Payload string `json:"payload"` // base64 audio
	} `json:"media"`
}

// Reply is a server message on the recording socket.
type Reply struct {
	Event string `json:"event"` // "started", "transcript", "idle", "error"
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

const defaultMimeType = "audio/webm"

// Session serves one recording socket: chunks pushed by the client are
// buffered by a Recorder and transcribed when the client stops.
type Session struct {
	conn        Conn
	device      *ChannelDevice
	recorder    *Recorder
	transcriber stt.Transcriber
	logger      *zap.Logger
}

func NewSession(conn Conn, transcriber stt.Transcriber, m *metrics.Recorder, logger *zap.Logger) *Session {
	device := NewChannelDevice(0)
	return &Session{
		conn:        conn,
		device:      device,
		recorder:    NewRecorder(device, m, logger),
		transcriber: transcriber,
		logger:      logging.Component(logger, "record-session"),
	}
}

// Run reads events until the socket closes. Any recording still active on
// exit is stopped so the device is released.
func (s *Session) Run(ctx context.Context) {
	defer func() {
		if _, ok, _ := s.recorder.Stop(); ok {
			s.logger.Debug("discarded unfinished recording")
		}
	}()

	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("recording socket closed", zap.Error(err))
			} else {
				s.logger.Warn("recording socket read error", zap.Error(err))
			}
			return
		}

		if msgType == websocket.BinaryMessage {
			s.push(msg)
			continue
		}

		var ev Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			s.logger.Warn("invalid recording event", zap.Error(err))
			s.reply(Reply{Event: "error", Error: "invalid event"})
			continue
		}

		switch ev.Event {
		case "start":
			mimeType := ev.Start.MimeType
			if mimeType == "" {
				mimeType = defaultMimeType
			}
			if err := s.recorder.Start(ctx, mimeType); err != nil {
				s.reply(Reply{Event: "error", Error: model.PublicMessage(err)})
				continue
			}
			s.reply(Reply{Event: "started"})

		case "media":
			chunk, err := base64.StdEncoding.DecodeString(ev.Media.Payload)
			if err != nil {
				s.reply(Reply{Event: "error", Error: "invalid base64 payload"})
				continue
			}
			s.push(chunk)

		case "stop":
			s.finish(ctx)

		default:
			s.logger.Debug("unknown recording event", zap.String("event", ev.Event))
			s.reply(Reply{Event: "error", Error: "unknown event"})
		}
	}
}

func (s *Session) push(chunk []byte) {
	if err := s.device.Push(chunk); err != nil {
		if errors.Is(err, ErrNotRecording) {
			s.reply(Reply{Event: "error", Error: "recording not started"})
			return
		}
		s.logger.Warn("failed to buffer chunk", zap.Error(err))
	}
}

func (s *Session) finish(ctx context.Context) {
	blob, ok, err := s.recorder.Stop()
	if !ok {
		s.reply(Reply{Event: "idle"})
		return
	}
	if err != nil {
		s.reply(Reply{Event: "error", Error: model.PublicMessage(err)})
		return
	}

	text, err := s.transcriber.Transcribe(ctx, blob)
	if err != nil {
		s.logger.Warn("transcription failed", zap.Error(err))
		s.reply(Reply{Event: "error", Error: model.PublicMessage(err)})
		return
	}
	s.reply(Reply{Event: "transcript", Text: text})
}

func (s *Session) reply(r Reply) {
	if err := s.conn.WriteJSON(r); err != nil {
		s.logger.Warn("failed to write reply", zap.Error(err))
	}
}
