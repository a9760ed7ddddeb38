package cli

import (
	"errors"
	"io"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/webforge-dev/webforge/model"
)

type scriptedStream struct {
	chunks [][]byte
	err    error
	closed bool
}

func (s *scriptedStream) Read() ([]byte, error) {
	if len(s.chunks) > 0 {
		chunk := s.chunks[0]
		s.chunks = s.chunks[1:]
		return chunk, nil
	}
	return nil, s.err
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

type frameRecorder struct {
	frames [][]byte
	err    error
}

func (f *frameRecorder) WriteMessage(messageType int, data []byte) error {
	if f.err != nil {
		return f.err
	}
	if messageType != websocket.BinaryMessage {
		return errors.New("expected a binary frame")
	}
	f.frames = append(f.frames, data)
	return nil
}

func TestSendChunksStopsAtEOF(t *testing.T) {
	t.Parallel()

	s := &scriptedStream{chunks: [][]byte{[]byte("abc"), {}, []byte("de")}, err: io.EOF}
	w := &frameRecorder{}

	sent, err := sendChunks(w, s)
	require.NoError(t, err)
	require.Equal(t, 5, sent)
	require.Equal(t, [][]byte{[]byte("abc"), []byte("de")}, w.frames)
}

func TestSendChunksReturnsReadFailures(t *testing.T) {
	t.Parallel()

	readErr := errors.New("input/output error")
	s := &scriptedStream{chunks: [][]byte{[]byte("abc")}, err: readErr}
	w := &frameRecorder{}

	sent, err := sendChunks(w, s)
	require.ErrorIs(t, err, readErr)
	require.EqualError(t, err, "read audio: input/output error")
	require.Equal(t, 3, sent)
	require.Len(t, w.frames, 1)
}

func TestSendChunksReportsWriteFailures(t *testing.T) {
	t.Parallel()

	s := &scriptedStream{chunks: [][]byte{[]byte("abc")}, err: io.EOF}
	w := &frameRecorder{err: errors.New("broken pipe")}

	sent, err := sendChunks(w, s)
	var nerr *model.NetworkError
	require.ErrorAs(t, err, &nerr)
	require.Zero(t, sent)
}
