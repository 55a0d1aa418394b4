package session

import "context"

// TextInput reads typed questions, one per line.
type TextInput struct {
	ui UI
}

func NewTextInput(ui UI) *TextInput { return &TextInput{ui: ui} }

func (*TextInput) Name() string { return "text" }

func (*TextInput) Prepare(context.Context) error { return nil }

func (t *TextInput) Next(ctx context.Context) (string, error) {
	return t.ui.Input(ctx, "")
}
