package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to classify.
var (
	// ErrConfiguration indicates invalid or incomplete configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrUnknownCollection indicates a collection name that is not configured
	// or has never been indexed.
	ErrUnknownCollection = fmt.Errorf("%w: unknown collection", ErrConfiguration)

	// ErrNoContent indicates a document that loaded but produced no non-empty units.
	ErrNoContent = errors.New("no valid content found in document")

	// ErrUnsupportedFormat indicates a file extension with no registered reader.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrNoAudioCaptured indicates capture produced zero bytes.
	ErrNoAudioCaptured = errors.New("no audio recorded")
)

// DocumentLoadError reports an unreadable or malformed source document.
type DocumentLoadError struct {
	Path string
	Err  error
}

func (e *DocumentLoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *DocumentLoadError) Unwrap() error { return e.Err }

// IndexWriteError reports a store write or refresh that failed for one document.
type IndexWriteError struct {
	Namespace string
	Source    string
	Err       error
}

func (e *IndexWriteError) Error() string {
	return fmt.Sprintf("index %s: write %s: %v", e.Namespace, e.Source, e.Err)
}

func (e *IndexWriteError) Unwrap() error { return e.Err }

// AudioProcessingError reports a captured buffer that could not be decoded or transcribed.
type AudioProcessingError struct {
	Err error
}

func (e *AudioProcessingError) Error() string {
	return "audio processing error: " + e.Err.Error()
}

func (e *AudioProcessingError) Unwrap() error { return e.Err }

// UnknownCollection returns an error wrapping ErrUnknownCollection for name.
func UnknownCollection(name string) error {
	return fmt.Errorf("%w %q", ErrUnknownCollection, name)
}
