package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newEnhanceCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "enhance [text...]",
		Short: "Enhance a project description through a running server",
		Long:  "Enhance a project description through a running server. Without arguments the description is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				data, err := io.ReadAll(app.inReader())
				if err != nil {
					return fmt.Errorf("read description: %w", err)
				}
				text = string(data)
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("description is required")
			}

			enhanced, err := app.client().Enhance(cmd.Context(), text)
			if err != nil {
				return err
			}
			fmt.Fprintln(app.outWriter(), enhanced)
			return nil
		},
	}
}
