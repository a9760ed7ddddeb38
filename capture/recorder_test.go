package capture

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/webforge-dev/webforge/metrics"
	"github.com/webforge-dev/webforge/model"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubDevice struct {
	openErr error
	stream  *stubStream
	opens   int
}

func (d *stubDevice) Open(context.Context, string) (Stream, error) {
	d.opens++
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.stream, nil
}

// stubStream yields its chunks, then fails with readErr or blocks until closed.
type stubStream struct {
	mu      sync.Mutex
	chunks  [][]byte
	readErr error
	closed  chan struct{}
	once    sync.Once
	closes  int
}

func newStubStream(chunks ...[]byte) *stubStream {
	return &stubStream{chunks: chunks, closed: make(chan struct{})}
}

func (s *stubStream) Read() ([]byte, error) {
	s.mu.Lock()
	if len(s.chunks) > 0 {
		c := s.chunks[0]
		s.chunks = s.chunks[1:]
		s.mu.Unlock()
		return c, nil
	}
	readErr := s.readErr
	s.mu.Unlock()
	if readErr != nil {
		return nil, readErr
	}
	<-s.closed
	return nil, io.EOF
}

func (s *stubStream) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *stubStream) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func TestStopWithoutStartIsNoop(t *testing.T) {
	t.Parallel()

	r := NewRecorder(&stubDevice{stream: newStubStream()}, nil, nil)
	blob, ok, err := r.Stop()
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, blob.Empty())
	require.False(t, r.Active())
}

func TestRecorderJoinsChunksInOrder(t *testing.T) {
	t.Parallel()

	stream := newStubStream([]byte("ab"), []byte("cd"), []byte("ef"))
	r := NewRecorder(&stubDevice{stream: stream}, metrics.New(), nil)

	require.NoError(t, r.Start(context.Background(), "audio/webm"))
	require.True(t, r.Active())
	require.Eventually(t, func() bool { return r.chunks.Len() == 3 }, time.Second, time.Millisecond)

	blob, ok, err := r.Stop()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("abcdef"), blob.Data)
	require.Equal(t, "audio/webm", blob.MimeType)
	require.True(t, stream.isClosed())
	require.False(t, r.Active())
}

func TestStartWhileActiveIsNoop(t *testing.T) {
	t.Parallel()

	device := &stubDevice{stream: newStubStream()}
	r := NewRecorder(device, nil, nil)

	require.NoError(t, r.Start(context.Background(), "audio/webm"))
	require.NoError(t, r.Start(context.Background(), "audio/ogg"))
	require.Equal(t, 1, device.opens)

	blob, ok, err := r.Stop()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "audio/webm", blob.MimeType)
}

func TestStartClassifiesDeviceErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		openErr error
		want    error
	}{
		{name: "permission", openErr: model.ErrPermissionDenied, want: model.ErrPermissionDenied},
		{name: "unavailable", openErr: model.ErrDeviceUnavailable, want: model.ErrDeviceUnavailable},
		{name: "other", openErr: errors.New("no such device"), want: model.ErrDeviceUnavailable},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewRecorder(&stubDevice{openErr: tt.openErr}, nil, nil)
			err := r.Start(context.Background(), "audio/webm")
			var derr *model.DeviceError
			require.ErrorAs(t, err, &derr)
			require.ErrorIs(t, err, tt.want)
			require.False(t, r.Active())
		})
	}
}

func TestPumpFailureReleasesDevice(t *testing.T) {
	t.Parallel()

	stream := newStubStream([]byte("ab"))
	stream.readErr = errors.New("device unplugged")
	r := NewRecorder(&stubDevice{stream: stream}, nil, nil)

	require.NoError(t, r.Start(context.Background(), "audio/webm"))
	require.Eventually(t, stream.isClosed, time.Second, time.Millisecond)

	_, ok, err := r.Stop()
	require.True(t, ok)
	require.ErrorIs(t, err, model.ErrDeviceUnavailable)
	require.False(t, r.Active())
}

func TestContextCancelReleasesDevice(t *testing.T) {
	t.Parallel()

	stream := newStubStream([]byte("ab"))
	r := NewRecorder(&stubDevice{stream: stream}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx, "audio/webm"))
	cancel()
	require.Eventually(t, stream.isClosed, time.Second, time.Millisecond)

	blob, ok, err := r.Stop()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("ab"), blob.Data)
}

func TestChannelDeviceDeliversPushedChunksAfterClose(t *testing.T) {
	t.Parallel()

	device := NewChannelDevice(4)
	require.ErrorIs(t, device.Push([]byte("x")), ErrNotRecording)

	r := NewRecorder(device, nil, nil)
	require.NoError(t, r.Start(context.Background(), "audio/ogg"))
	require.NoError(t, device.Push([]byte("1")))
	require.NoError(t, device.Push([]byte("2")))
	require.NoError(t, device.Push([]byte("3")))

	blob, ok, err := r.Stop()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("123"), blob.Data)
	require.ErrorIs(t, device.Push([]byte("4")), ErrNotRecording)
}
