package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/webforge-dev/webforge/config"
	"github.com/webforge-dev/webforge/handoff"
	"github.com/webforge-dev/webforge/model"
	"github.com/webforge-dev/webforge/server"
)

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()
	return runCommandWithInput(t, args, strings.NewReader(""))
}

func runCommandWithInput(t *testing.T, args []string, in io.Reader) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := NewRootCmd()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetIn(in)
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

type echoEnhancer struct{}

func (echoEnhancer) Enhance(_ context.Context, text string) (string, error) {
	return "Enhanced: " + text, nil
}

type echoTranscriber struct{}

func (echoTranscriber) Transcribe(_ context.Context, blob model.Blob) (string, error) {
	return fmt.Sprintf("%d bytes of %s", len(blob.Data), blob.MimeType), nil
}

// startBackend runs a real server on a loopback port with stub providers and
// returns its base URL.
func startBackend(t *testing.T) string {
	t.Helper()

	s := server.New(config.Default().HTTP, server.Deps{
		Enhancer:    echoEnhancer{},
		Transcriber: echoTranscriber{},
		Composer:    handoff.Composer{To: "hello@webforge.dev", Subject: "Project Request"},
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.App().Listener(ln) }()
	t.Cleanup(func() { _ = s.App().ShutdownWithTimeout(time.Second) })

	return "http://" + ln.Addr().String()
}
