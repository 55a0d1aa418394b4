package session

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"voxrag/internal/domain"
	"voxrag/internal/service"
)

// scriptedUI replays input lines and records everything printed. When the
// script runs out, Input returns io.EOF, or blocks until ctx ends when block is set.
type scriptedUI struct {
	mu      sync.Mutex
	inputs  []string
	block   bool
	out     []string
	answers []string
	sources int
}

func (u *scriptedUI) Input(ctx context.Context, prompt string) (string, error) {
	u.mu.Lock()
	if prompt != "" {
		u.out = append(u.out, prompt)
	}
	if len(u.inputs) == 0 {
		block := u.block
		u.mu.Unlock()
		if block {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "", io.EOF
	}
	line := u.inputs[0]
	u.inputs = u.inputs[1:]
	u.mu.Unlock()
	return line, nil
}

func (u *scriptedUI) print(format string, args ...any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.out = append(u.out, fmt.Sprintf(format, args...))
}

func (u *scriptedUI) Info(format string, args ...any)  { u.print(format, args...) }
func (u *scriptedUI) Warn(format string, args ...any)  { u.print(format, args...) }
func (u *scriptedUI) Error(format string, args ...any) { u.print(format, args...) }

func (u *scriptedUI) Answer(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.answers = append(u.answers, text)
}

func (u *scriptedUI) Sources(results []domain.SearchResult, _ string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sources += len(results)
}

func (u *scriptedUI) text() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return strings.Join(u.out, "\n")
}

type fakeResponder struct {
	questions []string
	err       error
}

func (r *fakeResponder) Respond(_ context.Context, _ string, question string) (service.Response, error) {
	r.questions = append(r.questions, question)
	if r.err != nil {
		return service.Response{}, r.err
	}
	return service.Response{
		Answer:  "answer to " + question,
		Sources: []domain.SearchResult{{Unit: domain.TextUnit{Source: "a.pdf", Page: 1, Content: "x"}}},
	}, nil
}

// fakeCapturer returns one scripted recording per Start/Stop pair.
type fakeCapturer struct {
	recordings [][]byte
	device     string
	starts     int
	startErr   error
}

func (c *fakeCapturer) SetDevice(device string) { c.device = device }

func (c *fakeCapturer) Start(context.Context) error {
	if c.startErr != nil {
		return c.startErr
	}
	c.starts++
	return nil
}

func (c *fakeCapturer) Stop() ([]byte, error) {
	if len(c.recordings) == 0 {
		return nil, nil
	}
	rec := c.recordings[0]
	c.recordings = c.recordings[1:]
	return rec, nil
}

type fakeTranscriber struct {
	text    string
	err     error
	samples []int
	rate    int
}

func (t *fakeTranscriber) Transcribe(_ context.Context, samples []float32, rate int) (string, error) {
	t.samples = append(t.samples, len(samples))
	t.rate = rate
	return t.text, t.err
}
