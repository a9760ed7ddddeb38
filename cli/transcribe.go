package cli

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/webforge-dev/webforge/model"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	var mimeType string

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file through a running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read audio: %w", err)
			}
			blob := model.Blob{Data: data, MimeType: mimeFor(args[0], mimeType)}

			text, err := app.client().Transcribe(cmd.Context(), blob)
			if err != nil {
				return err
			}
			fmt.Fprintln(app.outWriter(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime-type", "", "MIME type of the audio; guessed from the extension when empty")
	return cmd
}

// mimeFor prefers an explicit type, then the file extension, then webm.
func mimeFor(path, explicit string) string {
	if explicit != "" {
		return explicit
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".webm":
		return "audio/webm"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".wav":
		return "audio/wav"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".mp3":
		return "audio/mpeg"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "audio/webm"
}
