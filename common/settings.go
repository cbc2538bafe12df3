package common

import (
	"fmt"
	"os"
	"time"

	"github.com/birmacher/capoeira-portal/logger"
	"gopkg.in/yaml.v3"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Environment variables read on top of the settings file
const (
	EnvAPIKey   = "LLM_API_KEY"
	EnvProvider = "LLM_PROVIDER"
	EnvModel    = "LLM_MODEL"
)

// SettingsFileNames are looked up in the working directory, in order
var SettingsFileNames = []string{"capoeira.yml", "capoeira.yaml"}

type Generation struct {
	Provider string `yaml:"provider"`
	// Empty selects the provider's default model
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	// Maximum number of attempts per request; only rate-limited attempts are repeated
	MaxRetries int `yaml:"max_retries"`
	// Backoff base; attempt i waits RetryBaseDelay * 2^i
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	// Zero means no deadline on the call
	APITimeout time.Duration `yaml:"api_timeout"`
	MaxTokens  int           `yaml:"max_tokens"`
}

type Output struct {
	WrapWidth   int  `yaml:"wrap_width"`
	Concurrency int  `yaml:"concurrency"`
	NoColor     bool `yaml:"no_color"`
}

type Settings struct {
	Language   string     `yaml:"language"`
	Generation Generation `yaml:"generation"`
	Output     Output     `yaml:"output"`
	// Never read from the file; only populated from EnvAPIKey
	APIKey string `yaml:"-"`
}

func WithDefaultSettings() Settings {
	return Settings{
		Language: "en-US",
		Generation: Generation{
			Provider:       ProviderGemini,
			MaxRetries:     3,
			RetryBaseDelay: time.Second,
			MaxTokens:      2048,
		},
		Output: Output{
			WrapWidth:   80,
			Concurrency: 4,
		},
	}
}

// WithYamlFile returns the default settings overlaid with the first settings
// file found in the working directory and then with environment overrides.
func WithYamlFile() Settings {
	var filePath string
	for _, name := range SettingsFileNames {
		if _, err := os.Stat(name); err == nil {
			filePath = name
			break
		}
	}

	if filePath == "" {
		logger.Infof("No settings file found in the current directory. Using default settings.")
		settings := WithDefaultSettings()
		ApplyEnv(&settings)
		return settings
	}

	settings, err := LoadSettings(filePath)
	if err != nil {
		logger.Warnf("Failed to load settings file %s: %v", filePath, err)
		settings = WithDefaultSettings()
		ApplyEnv(&settings)
	}
	return settings
}

// LoadSettings reads settings from an explicit path. Unlike WithYamlFile a
// missing or malformed file is an error.
func LoadSettings(path string) (Settings, error) {
	settings := WithDefaultSettings()

	data, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("failed to read settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	logger.Infof("Using settings from YAML file: %s", path)

	ApplyEnv(&settings)
	return settings, nil
}

// ApplyEnv overlays environment variables on settings
func ApplyEnv(settings *Settings) {
	settings.APIKey = os.Getenv(EnvAPIKey)
	if provider := os.Getenv(EnvProvider); provider != "" {
		settings.Generation.Provider = provider
	}
	if model := os.Getenv(EnvModel); model != "" {
		settings.Generation.Model = model
	}
}

// Validate reports settings that would make every invocation fail
func (s Settings) Validate() error {
	switch s.Generation.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unsupported provider: %s", s.Generation.Provider)
	}
	if s.APIKey == "" {
		return fmt.Errorf("%s environment variable is not set", EnvAPIKey)
	}
	if s.Generation.RetryBaseDelay < 0 {
		return fmt.Errorf("retry_base_delay cannot be negative: %s", s.Generation.RetryBaseDelay)
	}
	return nil
}
