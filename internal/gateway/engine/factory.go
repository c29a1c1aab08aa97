package engine

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"tradewatch/internal/inference"
	"tradewatch/internal/logger"
)

const (
	KindCLI    = "cli"
	KindOpenAI = "openai"
)

// Settings selects and configures an engine implementation.
type Settings struct {
	Kind        string
	Command     string
	Args        []string
	WorkDir     string
	APIKeyEnv   string
	APIURL      string
	Model       string
	Temperature float64
	MaxRetries  int
	Headers     map[string]string
	PromptPath  string
	SystemPath  string
	HTTPTimeout time.Duration
}

// New builds the engine named by s.Kind. The API key is always read from the
// environment variable named by s.APIKeyEnv.
func New(s Settings) (inference.Engine, error) {
	prompts, err := LoadPrompts(s.PromptPath, s.SystemPath)
	if err != nil {
		return nil, err
	}
	if prompts.User == "" && prompts.System == "" {
		logger.Warnf("engine: no prompt configured, the engine only receives the context header")
	}
	apiKey := ""
	if name := strings.TrimSpace(s.APIKeyEnv); name != "" {
		apiKey = os.Getenv(name)
	}

	switch strings.ToLower(strings.TrimSpace(s.Kind)) {
	case "", KindCLI:
		if strings.TrimSpace(s.Command) == "" {
			return nil, fmt.Errorf("engine.command is required for the cli engine")
		}
		return &CLIEngine{
			Command:   s.Command,
			Args:      append([]string(nil), s.Args...),
			Dir:       s.WorkDir,
			APIKeyEnv: s.APIKeyEnv,
			APIKey:    apiKey,
			Prompts:   prompts,
		}, nil
	case KindOpenAI:
		if strings.TrimSpace(s.Model) == "" {
			return nil, fmt.Errorf("engine.model is required for the openai engine")
		}
		timeout := s.HTTPTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		return &OpenAIEngine{
			BaseURL:      s.APIURL,
			APIKey:       apiKey,
			Model:        s.Model,
			Temperature:  s.Temperature,
			MaxRetries:   s.MaxRetries,
			ExtraHeaders: s.Headers,
			Prompts:      prompts,
			HTTPClient:   &http.Client{Timeout: timeout},
		}, nil
	default:
		return nil, fmt.Errorf("unknown engine kind %q", s.Kind)
	}
}
