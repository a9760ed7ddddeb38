package capture

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/webforge-dev/webforge/model"
)

const defaultChunkSize = 32 * 1024

// FileDevice plays back a recorded file as if it were a microphone, one
// chunk per read. It backs the command line, which has no audio hardware of
// its own. The file is read whole when the stream opens, so the handle is
// never held for the length of a session.
type FileDevice struct {
	Path      string
	ChunkSize int
}

func (d FileDevice) Open(_ context.Context, _ string) (Stream, error) {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, errors.Wrap(model.ErrPermissionDenied, err.Error())
		}
		return nil, errors.Wrapf(model.ErrDeviceUnavailable, "open %s: %v", d.Path, err)
	}
	size := d.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	return &fileStream{data: data, size: size}, nil
}

type fileStream struct {
	mu   sync.Mutex
	data []byte
	size int
}

func (s *fileStream) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.data) == 0 {
		return nil, io.EOF
	}
	n := min(s.size, len(s.data))
	chunk := s.data[:n:n]
	s.data = s.data[n:]
	return chunk, nil
}

// Close has nothing to release. Audio already read from disk still drains,
// the same as a closed ChannelDevice stream.
func (s *fileStream) Close() error {
	return nil
}
