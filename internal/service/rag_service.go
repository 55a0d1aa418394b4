package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"voxrag/internal/collection"
	"voxrag/internal/domain"
	"voxrag/internal/ingest"
	"voxrag/internal/llm"
	"voxrag/internal/retriever"
	"voxrag/internal/telemetry"
)

// RAGServiceImpl ingests collections and answers questions against them.
type RAGServiceImpl struct {
	registry  *collection.Registry
	ingestor  *ingest.Coordinator
	embedder  domain.Embedder
	retriever *retriever.Retriever
	generator domain.Generator
	template  llm.Template
	topK      int
	logger    *slog.Logger
	tracer    trace.Tracer
}

func NewRAGService(
	registry *collection.Registry,
	ingestor *ingest.Coordinator,
	embedder domain.Embedder,
	retriever *retriever.Retriever,
	generator domain.Generator,
	template llm.Template,
	topK int,
	logger *slog.Logger,
) *RAGServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &RAGServiceImpl{
		registry:  registry,
		ingestor:  ingestor,
		embedder:  embedder,
		retriever: retriever,
		generator: generator,
		template:  template,
		topK:      topK,
		logger:    logger,
		tracer:    otel.Tracer("voxrag/service"),
	}
}

// Collections lists the configured collection names.
func (s *RAGServiceImpl) Collections() []string { return s.registry.Names() }

// IngestCollection resolves name and indexes its documents. Resolution
// failures are returned before any file is touched.
func (s *RAGServiceImpl) IngestCollection(ctx context.Context, name string, progress ingest.ProgressFunc) (*ingest.Report, error) {
	col, err := s.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	return s.ingestor.Run(ctx, col, progress)
}

// Query embeds question and returns the top k units of the collection.
func (s *RAGServiceImpl) Query(ctx context.Context, name, question string, k int) ([]domain.SearchResult, error) {
	col, err := s.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = s.topK
	}
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if isZero(vec) {
		// Nothing to compare against; the question had no indexable terms.
		return []domain.SearchResult{}, nil
	}
	return s.retriever.Search(ctx, col, vec, k)
}

// Response is an answer together with the units it was grounded on.
type Response struct {
	Answer  string
	Sources []domain.SearchResult
}

// Answer retrieves context for question from the collection and asks the model.
func (s *RAGServiceImpl) Answer(ctx context.Context, name, question string) (string, error) {
	resp, err := s.Respond(ctx, name, question)
	if err != nil {
		return "", err
	}
	return resp.Answer, nil
}

// Respond is Answer that also returns the retrieved units.
func (s *RAGServiceImpl) Respond(ctx context.Context, name, question string) (Response, error) {
	ctx, span := s.tracer.Start(ctx, "assistant.answer", trace.WithAttributes(attribute.String("collection", name)))
	defer span.End()

	results, err := s.Query(ctx, name, question, s.topK)
	if err != nil {
		telemetry.RecordError(span, err)
		return Response{}, err
	}
	sources := make([]string, 0, len(results))
	for _, r := range results {
		sources = append(sources, fmt.Sprintf("%s#%d", r.Unit.Source, r.Unit.Page))
	}
	s.logger.Debug("Retrieved context", "collection", name, "units", len(results), "sources", strings.Join(sources, ","))

	prompt := s.template.Render(llm.JoinContext(results), question)
	raw, err := s.generator.Generate(ctx, prompt, nil)
	if err != nil {
		telemetry.RecordError(span, err)
		return Response{}, err
	}
	span.SetAttributes(attribute.Int("context_units", len(results)))
	answer := llm.StripRole(raw)
	s.logger.Info("Answered question", "collection", name, "question", question, "answer", answer)
	return Response{Answer: answer, Sources: results}, nil
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
