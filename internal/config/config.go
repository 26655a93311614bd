package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// SupportedModels enumerates the model identifiers accepted per LLM provider.
var SupportedModels = map[string][]string{
	"groq": {
		"llama3-70b-8192",
		"llama3-8b-8192",
		"mixtral-8x7b-32768",
		"gemma-7b-it",
		"llama-3.3-70b-versatile",
		"llama-3.1-8b-instant",
	},
	"openai": {
		"gpt-4o-mini",
		"gpt-4o",
		"gpt-4.1-mini",
	},
}

// SearchProviders lists the supported search backends.
var SearchProviders = []string{"serpapi", "newsapi", "googlenews"}

type Config struct {
	LLM      LLM      `yaml:"llm"`
	Search   Search   `yaml:"search"`
	Fetch    Fetch    `yaml:"fetch"`
	Analysis Analysis `yaml:"analysis"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
}

type LLM struct {
	Provider          string  `yaml:"provider"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Temperature       float64 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	MaxInputChars     int     `yaml:"max_input_chars"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerMinute int     `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

type Search struct {
	Provider          string `yaml:"provider"`
	APIKeyEnv         string `yaml:"api_key_env"`
	Language          string `yaml:"language"`
	Country           string `yaml:"country"`
	LatestQuery       string `yaml:"latest_query"`
	NewsQuery         string `yaml:"news_query"`
	NewsCount         int    `yaml:"news_count"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	Burst             int    `yaml:"burst"`
}

type Fetch struct {
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	UserAgent           string `yaml:"user_agent"`
	ReadabilityFallback bool   `yaml:"readability_fallback"`
}

type Analysis struct {
	DrugWorkers           int `yaml:"drug_workers"`
	NewsWorkers           int `yaml:"news_workers"`
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
}

type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConfigDir returns the XDG config directory for pharmabrief.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "pharmabrief")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/pharmabrief/config.yaml > ./config.yaml
// An empty path with a nil error means no file was found and defaults apply.
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", nil
}

// Load reads and parses a config YAML file. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return parse(DefaultConfigYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		LLM: LLM{
			Provider:          "groq",
			BaseURL:           "https://api.groq.com/openai/v1",
			Model:             "llama3-70b-8192",
			APIKeyEnv:         "GROQ_API_KEY",
			Temperature:       0.1,
			MaxTokens:         1024,
			MaxInputChars:     12000,
			TimeoutSeconds:    60,
			RequestsPerMinute: 30,
			Burst:             5,
		},
		Search: Search{
			Provider:          "serpapi",
			APIKeyEnv:         "SERPAPI_API_KEY",
			Language:          "en",
			Country:           "us",
			LatestQuery:       "{drug} latest drug developments {year}",
			NewsQuery:         "{drug} pharmaceutical news",
			NewsCount:         5,
			TimeoutSeconds:    30,
			RequestsPerMinute: 60,
			Burst:             5,
		},
		Fetch: Fetch{
			TimeoutSeconds:      15,
			ReadabilityFallback: true,
		},
		Analysis: Analysis{
			DrugWorkers:           4,
			NewsWorkers:           5,
			RequestTimeoutSeconds: 300,
		},
		Server:  Server{Host: "0.0.0.0", Port: 8000},
		Logging: Logging{Level: "info"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Validate checks provider and model selection and numeric bounds.
func (c *Config) Validate() error {
	var errs []error

	models, ok := SupportedModels[strings.ToLower(c.LLM.Provider)]
	if !ok {
		errs = append(errs, fmt.Errorf("unsupported llm provider %q", c.LLM.Provider))
	} else if !slices.Contains(models, c.LLM.Model) {
		errs = append(errs, fmt.Errorf("unsupported model %q for provider %s (supported: %s)",
			c.LLM.Model, c.LLM.Provider, strings.Join(models, ", ")))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, errors.New("llm.max_tokens must be positive"))
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, fmt.Errorf("llm.temperature %.2f out of range 0..2", c.LLM.Temperature))
	}
	if c.LLM.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("llm.timeout_seconds must be positive"))
	}

	if !slices.Contains(SearchProviders, strings.ToLower(c.Search.Provider)) {
		errs = append(errs, fmt.Errorf("unsupported search provider %q", c.Search.Provider))
	}
	if c.Search.NewsCount < 1 || c.Search.NewsCount > 10 {
		errs = append(errs, fmt.Errorf("search.news_count %d out of range 1..10", c.Search.NewsCount))
	}
	if c.Search.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("search.timeout_seconds must be positive"))
	}
	if !strings.Contains(c.Search.LatestQuery, "{drug}") || !strings.Contains(c.Search.NewsQuery, "{drug}") {
		errs = append(errs, errors.New("search queries must contain the {drug} placeholder"))
	}

	if c.Fetch.TimeoutSeconds <= 0 {
		errs = append(errs, errors.New("fetch.timeout_seconds must be positive"))
	}
	if c.Analysis.DrugWorkers <= 0 || c.Analysis.NewsWorkers <= 0 {
		errs = append(errs, errors.New("analysis worker counts must be positive"))
	}
	if c.Analysis.RequestTimeoutSeconds <= 0 {
		errs = append(errs, errors.New("analysis.request_timeout_seconds must be positive"))
	}

	return errors.Join(errs...)
}

// LLMTimeout returns the per-call model timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// SearchTimeout returns the per-call search timeout.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.Search.TimeoutSeconds) * time.Second
}

// FetchTimeout returns the per-page fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// RequestTimeout returns the overall timeout for one analysis request.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Analysis.RequestTimeoutSeconds) * time.Second
}

// LoadEnvFiles loads .env files in priority order: ENV_FILE if set,
// otherwise .env.local then .env. Missing files are ignored.
func LoadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	for _, name := range []string{".env.local", ".env"} {
		if err := godotenv.Load(name); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
