package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"voxrag/internal/domain"
)

// OpenAIConfig holds connection details for an OpenAI-compatible endpoint (OpenAI, Ollama /v1, vLLM).
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type              string        `yaml:"type"`
	Dimension         int           `yaml:"dimension"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	OpenAI            *OpenAIConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how pages are split into retrievable blocks.
type ChunkerConfig struct {
	Type             string `yaml:"type"`
	MaxChars         int    `yaml:"max_chars"`
	OverlapSentences int    `yaml:"overlap_sentences"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type          string `yaml:"type"`
	URL           string `yaml:"url"`
	APIKey        string `yaml:"api_key"`
	LogLevel      string `yaml:"log_level"`
	ReindexPolicy string `yaml:"reindex_policy"`
	TimeoutSecs   int    `yaml:"timeout_secs"`
}

// ContextConfig describes one named document collection.
type ContextConfig struct {
	FolderPath  string   `yaml:"folder_path"`
	Formats     []string `yaml:"formats,omitempty"`
	WorkerCount int      `yaml:"worker_count,omitempty"`
	Recursive   *bool    `yaml:"recursive,omitempty"`
	IndexName   string   `yaml:"index_name,omitempty"`
}

// ContextsConfig holds group-level defaults and the named collections.
type ContextsConfig struct {
	Formats     []string                 `yaml:"formats"`
	WorkerCount int                      `yaml:"worker_count"`
	Recursive   bool                     `yaml:"recursive"`
	Data        map[string]ContextConfig `yaml:"data"`
}

// LLMConfig configures the answer generator.
type LLMConfig struct {
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float32 `yaml:"temperature"`
	Stream      bool    `yaml:"stream"`
	TimeoutSecs int     `yaml:"timeout_secs"`
}

// TranscriberConfig configures speech-to-text.
type TranscriberConfig struct {
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Language  string `yaml:"language"`
}

// AudioConfig configures microphone capture.
type AudioConfig struct {
	SampleRate int `yaml:"sample_rate"`
	// Channels requested from the recorder; the decoder still infers mono/stereo from buffer length.
	Channels          int    `yaml:"channels"`
	Recorder          string `yaml:"recorder"`
	DeviceListCommand string `yaml:"device_list_command"`
}

// RetrievalConfig configures query-time lookups.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// LogConfig configures the application log.
type LogConfig struct {
	Level string `yaml:"level"`
}

// TelemetryConfig configures trace export.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	VectorStore     VectorStoreConfig `yaml:"vectorstore"`
	Embedder        EmbedderConfig    `yaml:"embedder"`
	Chunker         ChunkerConfig     `yaml:"chunker"`
	Contexts        ContextsConfig    `yaml:"contexts"`
	Template        string            `yaml:"template"`
	LLM             LLMConfig         `yaml:"llm"`
	Transcriber     TranscriberConfig `yaml:"transcriber"`
	Audio           AudioConfig       `yaml:"audio"`
	Retrieval       RetrievalConfig   `yaml:"retrieval"`
	FilenamePattern string            `yaml:"filename_pattern"`
	Log             LogConfig         `yaml:"log"`
	Telemetry       TelemetryConfig   `yaml:"telemetry"`
}

// DefaultTemplate is used when the config has no template.
const DefaultTemplate = `You are a helpful assistant. Answer the question using only the context below.
If the context does not contain the answer, say you don't know.

Context:
{context}

Question: {input}
Assistant:`

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// ${VAR} references are expanded from the environment before parsing.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML config bytes and fills defaults.
func Parse(data []byte) (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config: %v", domain.ErrConfiguration, err)
	}
	applyConfigDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/voxrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/voxrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks option values that would otherwise fail late.
func Validate(cfg *AppConfig) error {
	switch cfg.VectorStore.Type {
	case "memory", "qdrant", "elasticsearch":
	default:
		return fmt.Errorf("%w: unknown vector store %q", domain.ErrConfiguration, cfg.VectorStore.Type)
	}
	switch cfg.VectorStore.ReindexPolicy {
	case "append", "replace":
	default:
		return fmt.Errorf("%w: unknown reindex policy %q", domain.ErrConfiguration, cfg.VectorStore.ReindexPolicy)
	}
	switch cfg.Embedder.Type {
	case "hashing":
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			return fmt.Errorf("%w: openai embedder config missing", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown embedder %q", domain.ErrConfiguration, cfg.Embedder.Type)
	}
	if cfg.Chunker.Type != "sentence" {
		return fmt.Errorf("%w: unknown chunker %q", domain.ErrConfiguration, cfg.Chunker.Type)
	}
	if !strings.Contains(cfg.Template, "{context}") || !strings.Contains(cfg.Template, "{input}") {
		return fmt.Errorf("%w: template must contain {context} and {input}", domain.ErrConfiguration)
	}
	for name, c := range cfg.Contexts.Data {
		if strings.TrimSpace(c.FolderPath) == "" {
			return fmt.Errorf("%w: context %q has no folder_path", domain.ErrConfiguration, name)
		}
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "voxrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.VectorStore.LogLevel == "" {
		cfg.VectorStore.LogLevel = "warn"
	}
	if cfg.VectorStore.ReindexPolicy == "" {
		cfg.VectorStore.ReindexPolicy = "append"
	}
	if cfg.VectorStore.TimeoutSecs == 0 {
		cfg.VectorStore.TimeoutSecs = 30
	}
	if cfg.VectorStore.URL == "" {
		switch cfg.VectorStore.Type {
		case "elasticsearch":
			cfg.VectorStore.URL = "http://localhost:9200"
		case "qdrant":
			cfg.VectorStore.URL = "http://localhost:6334"
		}
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.Type == "hashing" && cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = 384
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		applyOpenAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small")
	}

	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "sentence"
	}
	if cfg.Chunker.MaxChars == 0 {
		cfg.Chunker.MaxChars = 4000
	}

	if len(cfg.Contexts.Formats) == 0 {
		cfg.Contexts.Formats = []string{"pdf"}
	}
	if cfg.Contexts.WorkerCount <= 0 {
		cfg.Contexts.WorkerCount = 4
	}
	if cfg.Contexts.Data == nil {
		cfg.Contexts.Data = map[string]ContextConfig{}
	}

	if cfg.Template == "" {
		cfg.Template = DefaultTemplate
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3"
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 120
	}

	if cfg.Transcriber.Model == "" {
		cfg.Transcriber.Model = "whisper-1"
	}
	if cfg.Transcriber.BaseURL == "" {
		cfg.Transcriber.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Transcriber.APIKeyEnv == "" {
		cfg.Transcriber.APIKeyEnv = "OPENAI_API_KEY"
	}

	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels == 0 {
		cfg.Audio.Channels = 2
	}
	if cfg.Audio.Recorder == "" {
		cfg.Audio.Recorder = "arecord"
	}
	if cfg.Audio.DeviceListCommand == "" {
		cfg.Audio.DeviceListCommand = "arecord -L"
	}

	if cfg.Retrieval.TopK <= 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.FilenamePattern == "" {
		cfg.FilenamePattern = "logs/assistant_%Y-%m-%d_%H-%M-%S.log"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "voxrag"
	}
}

func applyOpenAIDefaults(c *OpenAIConfig, model string) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 30
	}
}
