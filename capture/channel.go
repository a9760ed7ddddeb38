package capture

import (
	"context"
	"errors"
	"io"
	"sync"
)

var ErrNotRecording = errors.New("no active recording")

// ChannelDevice is fed by its owner with Push, for sources that arrive over
// the network rather than from local hardware.
type ChannelDevice struct {
	buffer int

	mu      sync.Mutex
	current *channelStream
}

func NewChannelDevice(buffer int) *ChannelDevice {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelDevice{buffer: buffer}
}

func (d *ChannelDevice) Open(context.Context, string) (Stream, error) {
	s := &channelStream{
		data:   make(chan []byte, d.buffer),
		closed: make(chan struct{}),
	}
	d.mu.Lock()
	d.current = s
	d.mu.Unlock()
	return s, nil
}

// Push hands a chunk to the open stream. It blocks while the buffer is full.
func (d *ChannelDevice) Push(chunk []byte) error {
	d.mu.Lock()
	s := d.current
	d.mu.Unlock()
	if s == nil {
		return ErrNotRecording
	}

	select {
	case <-s.closed:
		return ErrNotRecording
	default:
	}
	select {
	case s.data <- chunk:
		return nil
	case <-s.closed:
		return ErrNotRecording
	}
}

type channelStream struct {
	data      chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

// Read returns chunks already pushed before Close, then io.EOF.
func (s *channelStream) Read() ([]byte, error) {
	select {
	case c := <-s.data:
		return c, nil
	case <-s.closed:
		select {
		case c := <-s.data:
			return c, nil
		default:
			return nil, io.EOF
		}
	}
}

func (s *channelStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}
