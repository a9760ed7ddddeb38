package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/webforge-dev/webforge/config"
	"github.com/webforge-dev/webforge/logging"
	"go.uber.org/zap"
)

const defaultServerURL = "http://localhost:3000"

type appState struct {
	verbose    bool
	jsonLogs   bool
	configPath string
	serverURL  string
	timeout    time.Duration

	logger *zap.Logger
	in     io.Reader
	out    io.Writer

	loadConfig func(path string) (config.Config, error)
}

func NewRootCmd() *cobra.Command {
	app := &appState{
		serverURL:  envOr("WEBFORGE_SERVER", defaultServerURL),
		timeout:    90 * time.Second,
		loadConfig: config.Load,
	}

	cmd := &cobra.Command{
		Use:           "webforge",
		Short:         "Serve and drive the Webforge project request workflow",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger
			app.in = cmd.InOrStdin()
			app.out = cmd.OutOrStdout()
			return nil
		},
	}
	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&app.verbose, "verbose", false, "Enable verbose logs")
	cmd.PersistentFlags().BoolVar(&app.jsonLogs, "json", false, "Enable JSON logging")
	cmd.PersistentFlags().StringVar(&app.configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&app.serverURL, "server", app.serverURL, "Base URL of a running webforge server")
	cmd.PersistentFlags().DurationVar(&app.timeout, "timeout", app.timeout, "Timeout for calls to the server")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newEnhanceCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newRecordCmd(app))
	cmd.AddCommand(newRequestCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) outWriter() io.Writer {
	if a.out == nil {
		return os.Stdout
	}
	return a.out
}

func (a *appState) inReader() io.Reader {
	if a.in == nil {
		return os.Stdin
	}
	return a.in
}

func (a *appState) config() (config.Config, error) {
	load := a.loadConfig
	if load == nil {
		load = config.Load
	}
	cfg, err := load(a.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func (a *appState) client() *apiClient {
	return newAPIClient(a.serverURL, a.timeout)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
