package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/webforge-dev/webforge/capture"
	"github.com/webforge-dev/webforge/handoff"
	"github.com/webforge-dev/webforge/model"
	"github.com/webforge-dev/webforge/workflow"
)

type requestOptions struct {
	text      string
	audioPath string
	mimeType  string
	choice    string
}

func newRequestCmd(app *appState) *cobra.Command {
	var opts requestOptions

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Write, enhance and hand off a project request interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.config()
			if err != nil {
				return err
			}
			client := app.client()

			wopts := workflow.Options{
				Enhancer:    client,
				Transcriber: client,
				Composer:    handoff.Composer{To: cfg.Handoff.MailTo, Subject: cfg.Handoff.Subject},
				Logger:      app.log(),
			}
			if opts.audioPath != "" {
				wopts.Recorder = capture.NewRecorder(capture.FileDevice{Path: opts.audioPath}, nil, app.log())
			}

			h, err := app.runRequest(cmd.Context(), workflow.NewController(wopts), opts)
			if err != nil {
				return err
			}
			if h == nil {
				fmt.Fprintln(app.outWriter(), "Request discarded.")
				return nil
			}
			fmt.Fprintf(app.outWriter(), "\nRequest %s (%s)\n", h.RequestID, h.Version)
			fmt.Fprintf(app.outWriter(), "Email: %s\n", h.MailtoURL)
			fmt.Fprintf(app.outWriter(), "Webmail: %s\n", h.WebmailURL)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.text, "text", "", "Project description; read from stdin when empty")
	cmd.Flags().StringVar(&opts.audioPath, "audio", "", "Audio file to dictate and append to the description")
	cmd.Flags().StringVar(&opts.mimeType, "mime-type", "", "MIME type of --audio; guessed from the extension when empty")
	cmd.Flags().StringVar(&opts.choice, "send", "", "Send without prompting: original|enhanced")
	return cmd
}

// runRequest walks one request through the controller. A nil handoff means
// the user quit.
func (a *appState) runRequest(ctx context.Context, c *workflow.Controller, opts requestOptions) (*handoff.Handoff, error) {
	switch strings.ToLower(opts.choice) {
	case "", "o", "original", "e", "enhanced":
	default:
		return nil, fmt.Errorf("--send must be original or enhanced, got %q", opts.choice)
	}

	in := bufio.NewReader(a.inReader())
	out := a.outWriter()

	if err := c.Open(); err != nil {
		return nil, err
	}
	defer c.Close()

	text := opts.text
	if text == "" && opts.audioPath == "" {
		fmt.Fprintln(out, "Describe your project (finish with an empty line):")
		var err error
		if text, err = readParagraph(in); err != nil {
			return nil, err
		}
	}
	if err := c.SetText(text); err != nil {
		return nil, err
	}

	if opts.audioPath != "" {
		if err := c.StartRecording(ctx, mimeFor(opts.audioPath, opts.mimeType)); err != nil {
			return nil, err
		}
		transcript, err := c.StopRecording(ctx)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "Dictated: %s\n", transcript)
	}

	for {
		enhanced, err := c.Enhance(ctx)
		if err != nil {
			return nil, err
		}
		snap := c.Snapshot()
		fmt.Fprintf(out, "\nOriginal:\n%s\n\nEnhanced:\n%s\n\n", snap.Request.RawText, enhanced)

		choice := opts.choice
		if choice == "" {
			fmt.Fprint(out, "Send [o]riginal or [e]nhanced, [r]efine, or [q]uit? ")
			line, err := in.ReadString('\n')
			if err != nil && (err != io.EOF || line == "") {
				return nil, nil
			}
			choice = line
		}

		switch strings.ToLower(strings.TrimSpace(choice)) {
		case "o", "original":
			return submit(ctx, c, model.Original)
		case "e", "enhanced":
			return submit(ctx, c, model.Enhanced)
		case "r", "refine":
			if err := c.Refine(); err != nil {
				return nil, err
			}
			fmt.Fprintln(out, "Revised description (finish with an empty line):")
			revised, err := readParagraph(in)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(revised) != "" {
				if err := c.SetText(revised); err != nil {
					return nil, err
				}
			}
		case "q", "quit":
			return nil, nil
		default:
			return nil, fmt.Errorf("unknown choice %q", strings.TrimSpace(choice))
		}
	}
}

func submit(ctx context.Context, c *workflow.Controller, v model.Version) (*handoff.Handoff, error) {
	if err := c.Select(v); err != nil {
		return nil, err
	}
	h, err := c.Submit(ctx)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// readParagraph reads lines until an empty line or EOF.
func readParagraph(in *bufio.Reader) (string, error) {
	var lines []string
	for {
		line, err := in.ReadString('\n')
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" && err == nil {
			break
		}
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read description: %w", err)
		}
	}
	return strings.Join(lines, "\n"), nil
}
