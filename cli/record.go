package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/webforge-dev/webforge/capture"
	"github.com/webforge-dev/webforge/model"
	"go.uber.org/zap"
)

type recordOptions struct {
	path      string
	mimeType  string
	chunkSize int
}

func newRecordCmd(app *appState) *cobra.Command {
	opts := recordOptions{chunkSize: 16 * 1024}

	cmd := &cobra.Command{
		Use:   "record <audio-file>",
		Short: "Stream an audio file over the recording socket and print the transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.path = args[0]
			opts.mimeType = mimeFor(opts.path, opts.mimeType)

			text, err := app.streamRecording(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(app.outWriter(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.mimeType, "mime-type", "", "MIME type of the audio; guessed from the extension when empty")
	cmd.Flags().IntVar(&opts.chunkSize, "chunk-size", opts.chunkSize, "Bytes per binary frame")
	return cmd
}

func recordURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/record"
	return u.String(), nil
}

// streamRecording replays the file through the same Stream the local
// recorder uses, sending each chunk as a binary frame between start and stop.
func (a *appState) streamRecording(ctx context.Context, opts recordOptions) (string, error) {
	wsURL, err := recordURL(a.serverURL)
	if err != nil {
		return "", err
	}

	stream, err := capture.FileDevice{Path: opts.path, ChunkSize: opts.chunkSize}.Open(ctx, opts.mimeType)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return "", &model.NetworkError{Err: err}
	}
	defer conn.Close()

	if a.timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(a.timeout))
	}

	start := capture.Event{Event: "start"}
	start.Start.MimeType = opts.mimeType
	if err := conn.WriteJSON(start); err != nil {
		return "", &model.NetworkError{Err: err}
	}
	if _, err := expectReply(conn, "started"); err != nil {
		return "", err
	}

	sent, err := sendChunks(conn, stream)
	if err != nil {
		return "", err
	}
	a.log().Debug("audio streamed", zap.Int("bytes", sent))

	if err := conn.WriteJSON(capture.Event{Event: "stop"}); err != nil {
		return "", &model.NetworkError{Err: err}
	}
	reply, err := expectReply(conn, "transcript")
	if err != nil {
		return "", err
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return reply.Text, nil
}

type frameWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// sendChunks forwards every chunk as a binary frame until the stream ends.
// A failed read aborts the upload rather than sending a truncated recording.
func sendChunks(w frameWriter, stream capture.Stream) (int, error) {
	sent := 0
	for {
		chunk, err := stream.Read()
		if errors.Is(err, io.EOF) {
			return sent, nil
		}
		if err != nil {
			return sent, fmt.Errorf("read audio: %w", err)
		}
		if len(chunk) == 0 {
			continue
		}
		if err := w.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return sent, &model.NetworkError{Err: err}
		}
		sent += len(chunk)
	}
}

func expectReply(conn *websocket.Conn, want string) (capture.Reply, error) {
	var reply capture.Reply
	if err := conn.ReadJSON(&reply); err != nil {
		return capture.Reply{}, &model.NetworkError{Err: err}
	}
	switch reply.Event {
	case want:
		return reply, nil
	case "error":
		return capture.Reply{}, &model.ProviderError{Message: reply.Error}
	default:
		return capture.Reply{}, fmt.Errorf("unexpected %q reply while waiting for %q", reply.Event, want)
	}
}
