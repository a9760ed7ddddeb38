package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSystemPrompt = "You are a professional project manager and technical writer. Your task is to take a project description and enhance it into a clear, professional, and comprehensive project specification. Focus on technical details, key features, and business value. Keep the tone professional and concise."
	DefaultUserPrompt   = "Please enhance this project description into a professional project specification: "
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Provider ProviderConfig `yaml:"provider"`
	Handoff  HandoffConfig  `yaml:"handoff"`
	Notify   NotifyConfig   `yaml:"notify"`
}

type HTTPConfig struct {
	Addr        string   `yaml:"addr"`
	StaticDir   string   `yaml:"static_dir"`
	CORSOrigins []string `yaml:"cors_origins"`
	BodyLimitMB int      `yaml:"body_limit_mb"`
}

type ProviderConfig struct {
	APIKey             string  `yaml:"-"`
	BaseURL            string  `yaml:"base_url"`
	CompletionModel    string  `yaml:"completion_model"`
	TranscriptionModel string  `yaml:"transcription_model"`
	Temperature        float32 `yaml:"temperature"`
	MaxTokens          int     `yaml:"max_tokens"`
	SystemPrompt       string  `yaml:"system_prompt"`
	UserPrompt         string  `yaml:"user_prompt"`
	TimeoutSeconds     int     `yaml:"timeout_seconds"`
}

type HandoffConfig struct {
	MailTo  string `yaml:"mail_to"`
	Subject string `yaml:"subject"`
}

type NotifyConfig struct {
	AccountSID string `yaml:"-"`
	AuthToken  string `yaml:"-"`
	From       string `yaml:"from"`
	To         string `yaml:"to"`
}

// Enabled reports whether every Twilio setting is present.
func (n NotifyConfig) Enabled() bool {
	return n.AccountSID != "" && n.AuthToken != "" && n.From != "" && n.To != ""
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:        ":3000",
			CORSOrigins: []string{"*"},
			BodyLimitMB: 25,
		},
		Provider: ProviderConfig{
			CompletionModel:    "gpt-3.5-turbo",
			TranscriptionModel: "whisper-1",
			Temperature:        0.7,
			MaxTokens:          500,
			SystemPrompt:       DefaultSystemPrompt,
			UserPrompt:         DefaultUserPrompt,
			TimeoutSeconds:     60,
		},
		Handoff: HandoffConfig{
			MailTo:  "hello@webforge.dev",
			Subject: "Project Request",
		},
	}
}

// Load reads .env (when present), overlays the optional YAML file on the
// defaults, then applies environment overrides.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	setString(&cfg.Provider.APIKey, "OPENAI_API_KEY")
	setString(&cfg.Provider.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.HTTP.Addr, "WEBFORGE_ADDR")
	setString(&cfg.HTTP.StaticDir, "WEBFORGE_STATIC_DIR")
	setString(&cfg.Handoff.MailTo, "WEBFORGE_MAIL_TO")
	setString(&cfg.Notify.AccountSID, "TWILIO_ACCOUNT_SID")
	setString(&cfg.Notify.AuthToken, "TWILIO_AUTH_TOKEN")
	setString(&cfg.Notify.From, "TWILIO_FROM_NUMBER")
	setString(&cfg.Notify.To, "WEBFORGE_NOTIFY_TO")

	if v := strings.TrimSpace(os.Getenv("WEBFORGE_CORS_ORIGINS")); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.HTTP.CORSOrigins = origins
	}
	if v := strings.TrimSpace(os.Getenv("WEBFORGE_MAX_TOKENS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WEBFORGE_MAX_TOKENS: %w", err)
		}
		cfg.Provider.MaxTokens = n
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.HTTP.BodyLimitMB <= 0 {
		errs = append(errs, errors.New("http.body_limit_mb must be positive"))
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		errs = append(errs, fmt.Errorf("provider.temperature %.2f out of range 0..2", c.Provider.Temperature))
	}
	if c.Provider.MaxTokens <= 0 {
		errs = append(errs, errors.New("provider.max_tokens must be positive"))
	}
	if c.Provider.CompletionModel == "" || c.Provider.TranscriptionModel == "" {
		errs = append(errs, errors.New("provider models are required"))
	}
	if c.Provider.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("provider.timeout_seconds must be positive"))
	}
	if c.Handoff.MailTo == "" {
		errs = append(errs, errors.New("handoff.mail_to is required"))
	}
	return errors.Join(errs...)
}
