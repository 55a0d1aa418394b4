package domain

import "context"

// Collection is a named logical document set ("context") resolved from configuration.
type Collection struct {
	Name        string
	FolderPath  string
	Formats     []string
	WorkerCount int
	Recursive   bool
	// Index is the store namespace the collection is written to and searched in.
	Index string
}

// SourceDocument is a file discovered under a collection folder.
type SourceDocument struct {
	Path   string
	Format string
}

// TextUnit is a non-empty span of extracted text belonging to one document.
type TextUnit struct {
	Source  string
	Page    int
	Index   int
	Content string
}

// EmbeddedUnit pairs a TextUnit with its vector and owning collection.
type EmbeddedUnit struct {
	Collection string
	Unit       TextUnit
	Vector     []float32
}

// SearchResult is a retrieved unit with its similarity score.
type SearchResult struct {
	Unit  TextUnit
	Score float64
}

// Embedder converts text into a fixed-length vector.
// Implementations must be safe for concurrent use.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Splitter breaks a page of text into retrievable blocks.
type Splitter interface {
	Split(text string) []string
}

// Generator produces text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []Message) (string, error)
}

// Message is one prior turn of a conversation.
type Message struct {
	Role    string
	Content string
}

// Transcriber converts a mono float PCM buffer to text.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}
