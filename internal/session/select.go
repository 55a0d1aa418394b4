package session

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidSelection is returned by Select for input that is not a listed number.
var ErrInvalidSelection = errors.New("invalid selection")

const msgInvalidSelection = "Invalid selection. Please enter a valid number."

// Select lists options numbered from 1 under title and returns the one the
// user picks.
func Select(ctx context.Context, ui UI, title, prompt string, options []string) (string, error) {
	if len(options) == 0 {
		return "", errors.New("nothing to select from")
	}
	ui.Info(title)
	for i, opt := range options {
		ui.Warn("%d: %s", i+1, opt)
	}
	line, err := ui.Input(ctx, prompt)
	if err != nil {
		return "", err
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 1 || n > len(options) {
		ui.Error(msgInvalidSelection)
		return "", ErrInvalidSelection
	}
	return options[n-1], nil
}
