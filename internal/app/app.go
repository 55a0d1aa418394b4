// Package app assembles the configured components shared by the commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/joho/godotenv"

	"voxrag/internal/audio"
	"voxrag/internal/chunker"
	"voxrag/internal/collection"
	"voxrag/internal/config"
	"voxrag/internal/domain"
	"voxrag/internal/embedding"
	"voxrag/internal/index"
	"voxrag/internal/ingest"
	"voxrag/internal/llm"
	"voxrag/internal/loader"
	"voxrag/internal/logging"
	"voxrag/internal/retriever"
	"voxrag/internal/service"
	"voxrag/internal/telemetry"
	"voxrag/internal/vectorstore"
	"voxrag/internal/vectorstore/elasticsearch"
	"voxrag/internal/vectorstore/memory"
	"voxrag/internal/vectorstore/qdrant"
)

// LoadConfig reads .env (if present) and then the config at path, or the
// default locations when path is empty.
func LoadConfig(path string) (*config.AppConfig, string, error) {
	_ = godotenv.Load()
	if path == "" {
		return config.LoadDefault()
	}
	cfg, err := config.Load(path)
	return cfg, path, err
}

// Runtime holds process-wide logging and tracing state.
type Runtime struct {
	Logger      *slog.Logger
	StoreLogger *slog.Logger
	LogFile     *logging.RotatingFile

	shutdown telemetry.ShutdownFunc
}

// Setup opens the log file and starts tracing.
func Setup(ctx context.Context, cfg *config.AppConfig, now time.Time) (*Runtime, error) {
	logger, file, err := logging.Setup(cfg.Log.Level, cfg.FilenamePattern, now)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}
	storeLevel, err := logging.ParseLevel(cfg.VectorStore.LogLevel)
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	slog.SetDefault(logger)

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
	})
	if err != nil {
		logger.Warn("Failed to initialize tracing", "error", err)
		shutdown = func(context.Context) error { return nil }
	}
	return &Runtime{
		Logger:      logger,
		StoreLogger: logging.New(file, storeLevel).With("component", "vectorstore"),
		LogFile:     file,
		shutdown:    shutdown,
	}, nil
}

// Close flushes spans and closes the log file.
func (r *Runtime) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(r.shutdown(ctx), r.LogFile.Close())
}

// NewStorage opens the configured vector store backend.
func NewStorage(cfg config.VectorStoreConfig, logger *slog.Logger) (vectorstore.Storage, error) {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	switch cfg.Type {
	case "memory", "":
		return memory.NewStorage(), nil
	case "qdrant":
		return qdrant.NewStorage(qdrant.Config{URL: cfg.URL, APIKey: cfg.APIKey, Timeout: timeout, Logger: logger})
	case "elasticsearch":
		return elasticsearch.NewStorage(elasticsearch.Config{URL: cfg.URL, APIKey: cfg.APIKey, Timeout: timeout, Logger: logger})
	}
	return nil, fmt.Errorf("%w: unknown vector store %q", domain.ErrConfiguration, cfg.Type)
}

// Options adjust Build.
type Options struct {
	// Stream receives answer tokens as they arrive when llm.stream is set.
	Stream io.Writer
	// Readers overrides document readers by format.
	Readers map[string]loader.PageReader
}

// Components is the assembled retrieval stack.
type Components struct {
	Config   *config.AppConfig
	Store    vectorstore.Storage
	Registry *collection.Registry
	Service  *service.RAGServiceImpl
	// Streaming reports whether answers are written to Options.Stream while generated.
	Streaming bool
}

// Build wires the store, embedder, loader, index writer, coordinator,
// retriever, generator and service from cfg.
func Build(cfg *config.AppConfig, rt *Runtime, opts Options) (*Components, error) {
	store, err := NewStorage(cfg.VectorStore, rt.StoreLogger)
	if err != nil {
		return nil, err
	}
	c, err := build(cfg, rt.Logger, store, opts)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return c, nil
}

func build(cfg *config.AppConfig, logger *slog.Logger, store vectorstore.Storage, opts Options) (*Components, error) {
	emb, err := embedding.New(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	policy, err := index.ParsePolicy(cfg.VectorStore.ReindexPolicy)
	if err != nil {
		return nil, err
	}
	tpl, err := llm.ParseTemplate(cfg.Template)
	if err != nil {
		return nil, err
	}

	loaderOpts := []loader.Option{loader.WithLogger(logger)}
	for format, r := range opts.Readers {
		loaderOpts = append(loaderOpts, loader.WithReader(format, r))
	}
	ld := loader.New(chunker.NewSentenceChunker(cfg.Chunker.MaxChars, cfg.Chunker.OverlapSentences), loaderOpts...)
	coord := ingest.NewCoordinator(ld, emb, index.NewWriter(store, policy, logger), logger)

	genCfg := llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKeyEnv:   cfg.LLM.APIKeyEnv,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	}
	streaming := cfg.LLM.Stream && opts.Stream != nil
	if streaming {
		genCfg.Stream = opts.Stream
	}
	gen, err := llm.NewClient(genCfg)
	if err != nil {
		return nil, err
	}

	registry := collection.NewRegistry(cfg.Contexts)
	svc := service.NewRAGService(registry, coord, emb, retriever.New(store), gen, tpl, cfg.Retrieval.TopK, logger)
	return &Components{Config: cfg, Store: store, Registry: registry, Service: svc, Streaming: streaming}, nil
}

// Ephemeral reports whether the store keeps nothing between processes, in
// which case the assistant indexes the selected context itself.
func (c *Components) Ephemeral() bool {
	_, ok := c.Store.(*memory.Storage)
	return ok
}

// Close releases the store connection.
func (c *Components) Close() error { return c.Store.Close() }

// NewTranscriber builds the chunking Whisper transcriber.
func NewTranscriber(cfg config.TranscriberConfig) (domain.Transcriber, error) {
	client, err := audio.NewWhisperClient(audio.WhisperConfig{
		BaseURL:   cfg.BaseURL,
		APIKeyEnv: cfg.APIKeyEnv,
		Model:     cfg.Model,
		Language:  cfg.Language,
	})
	if err != nil {
		return nil, err
	}
	return audio.NewTranscriber(client), nil
}

// NewCapturer builds the recorder-backed capturer and its device lister.
func NewCapturer(cfg config.AudioConfig) (*audio.CommandCapturer, func(ctx context.Context) ([]string, error)) {
	c := &audio.CommandCapturer{Command: cfg.Recorder, SampleRate: cfg.SampleRate, Channels: cfg.Channels}
	list := func(ctx context.Context) ([]string, error) {
		return audio.ListDevices(ctx, audio.ExecRunner{}, cfg.DeviceListCommand)
	}
	return c, list
}
