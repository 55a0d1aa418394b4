// Package session runs the interactive question loop over a text or audio input mode.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"voxrag/internal/domain"
	"voxrag/internal/service"
)

// UI is the console surface the session talks to.
type UI interface {
	Input(ctx context.Context, prompt string) (string, error)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	Answer(text string)
	Sources(results []domain.SearchResult, question string)
}

// Responder answers a question against a named context.
type Responder interface {
	Respond(ctx context.Context, collection, question string) (service.Response, error)
}

// InputMode produces questions for the session loop.
type InputMode interface {
	Name() string
	// Prepare runs once before the first question.
	Prepare(ctx context.Context) error
	// Next returns the next question. An empty string means nothing usable
	// was entered and the loop prompts again.
	Next(ctx context.Context) (string, error)
}

const (
	msgLoopStart    = "Please enter your question: Press Ctrl+C to exit."
	msgExiting      = "Exiting..."
	msgSessionEnded = "Session ended."
	msgMissing      = "Question is missing!"
	msgNoAudio      = "No audio recorded. Please ensure your microphone is working."
)

// Options tune a Session.
type Options struct {
	// Streamed means the generator already wrote the answer to the console.
	Streamed    bool
	ShowSources bool
	Logger      *slog.Logger
}

type Session struct {
	ui         UI
	mode       InputMode
	responder  Responder
	collection string
	opts       Options
	logger     *slog.Logger
}

func New(ui UI, mode InputMode, responder Responder, collection string, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{ui: ui, mode: mode, responder: responder, collection: collection, opts: opts, logger: logger}
}

// Run prepares the input mode and answers questions until ctx is cancelled
// or input ends. Errors from a single turn are reported and the loop continues.
func (s *Session) Run(ctx context.Context) error {
	defer s.ui.Info(msgSessionEnded)
	if err := s.mode.Prepare(ctx); err != nil {
		if ctx.Err() != nil {
			s.ui.Error(msgExiting)
			return nil
		}
		return err
	}
	s.logger.Info("Session started", "mode", s.mode.Name(), "context", s.collection)

	for {
		s.ui.Info(msgLoopStart)
		question, err := s.mode.Next(ctx)
		switch {
		case ctx.Err() != nil:
			s.ui.Error(msgExiting)
			return nil
		case errors.Is(err, io.EOF):
			s.logger.Info("Input closed")
			return nil
		case err != nil:
			s.report(err)
			continue
		}

		question = strings.TrimSpace(question)
		if question == "" {
			s.ui.Error(msgMissing)
			continue
		}
		s.answer(ctx, question)
	}
}

func (s *Session) answer(ctx context.Context, question string) {
	s.logger.Info("Question", "context", s.collection, "question", question)
	resp, err := s.responder.Respond(ctx, s.collection, question)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.report(err)
		return
	}
	if s.opts.Streamed {
		// Tokens are already on screen; end the streamed line.
		s.ui.Answer("")
	} else {
		s.ui.Answer(resp.Answer)
	}
	if s.opts.ShowSources {
		s.ui.Sources(resp.Sources, question)
	}
}

// report logs err at a severity matching its kind and echoes it to the console.
func (s *Session) report(err error) {
	var procErr *domain.AudioProcessingError
	switch {
	case errors.Is(err, domain.ErrNoAudioCaptured):
		s.logger.Error(msgNoAudio)
		s.ui.Error(msgNoAudio)
	case errors.As(err, &procErr):
		s.logger.Error("Audio processing error", "error", procErr.Err)
		s.ui.Error("Audio processing error: %v", procErr.Err)
	default:
		s.logger.Error("Failed to answer question", "error", err)
		s.ui.Error("Error: %v", err)
	}
}
