package session

import (
	"context"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pcmBytes(n int) []byte {
	b := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(int16(i*10)))
	}
	return b
}

func devices(list ...string) DeviceLister {
	return func(context.Context) ([]string, error) { return list, nil }
}

func TestAudioSessionRepromptsAfterEmptyCapture(t *testing.T) {
	t.Parallel()
	// "1" picks the device; then two Enter pairs per turn.
	ui := &scriptedUI{inputs: []string{"1", "", "", "", ""}}
	capt := &fakeCapturer{recordings: [][]byte{nil, pcmBytes(8)}}
	tr := &fakeTranscriber{text: "how do I reset the pump"}
	resp := &fakeResponder{}
	mode := NewAudioInput(ui, capt, devices("default", "hw:1"), tr, 16000, nil)

	require.NoError(t, New(ui, mode, resp, "manuals", Options{}).Run(context.Background()))

	assert.Equal(t, "default", capt.device)
	assert.Equal(t, 2, capt.starts)
	assert.Equal(t, []string{"Speaker: how do I reset the pump"}, resp.questions)
	assert.Equal(t, []int{4}, tr.samples, "8 samples read as stereo")
	assert.Equal(t, 16000, tr.rate)

	out := ui.text()
	assert.Contains(t, out, "Assistant started! Press Ctrl+C to exit.")
	assert.Contains(t, out, "No audio recorded. Please ensure your microphone is working.")
	assert.Less(t, strings.Index(out, "No audio recorded"), strings.Index(out, "Speaker:"))
}

func TestAudioMonoAndEmptyTranscript(t *testing.T) {
	t.Parallel()
	ui := &scriptedUI{inputs: []string{"", ""}}
	tr := &fakeTranscriber{}
	resp := &fakeResponder{}
	mode := NewAudioInput(ui, &fakeCapturer{recordings: [][]byte{pcmBytes(5)}}, devices(), tr, 0, nil)

	require.NoError(t, New(ui, mode, resp, "manuals", Options{}).Run(context.Background()))
	assert.Empty(t, resp.questions)
	assert.Equal(t, []int{5}, tr.samples)
	assert.Contains(t, ui.text(), "Data is not stereo, processing as mono")
	assert.Contains(t, ui.text(), "Question is missing!")
}

func TestAudioProcessingErrors(t *testing.T) {
	t.Parallel()
	ui := &scriptedUI{inputs: []string{"", "", "", ""}}
	capt := &fakeCapturer{recordings: [][]byte{{1, 2, 3}, pcmBytes(4)}}
	tr := &fakeTranscriber{err: errors.New("whisper unavailable")}
	mode := NewAudioInput(ui, capt, devices(), tr, 16000, nil)

	require.NoError(t, New(ui, mode, &fakeResponder{}, "manuals", Options{}).Run(context.Background()))
	out := ui.text()
	assert.Contains(t, out, "Audio processing error: truncated int16 buffer of 3 bytes")
	assert.Contains(t, out, "Audio processing error: whisper unavailable")
}

func TestAudioPrepare(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ui := &scriptedUI{}
	capt := &fakeCapturer{}
	failing := func(context.Context) ([]string, error) { return nil, errors.New("arecord: not found") }
	require.NoError(t, NewAudioInput(ui, capt, failing, &fakeTranscriber{}, 0, nil).Prepare(ctx))
	assert.Empty(t, capt.device)
	assert.Contains(t, ui.text(), "using the default device")

	ui = &scriptedUI{inputs: []string{"9"}}
	err := NewAudioInput(ui, capt, devices("default"), &fakeTranscriber{}, 0, nil).Prepare(ctx)
	assert.ErrorIs(t, err, ErrInvalidSelection)
}

func TestAudioStartFailure(t *testing.T) {
	t.Parallel()
	ui := &scriptedUI{inputs: []string{""}}
	mode := NewAudioInput(ui, &fakeCapturer{startErr: errors.New("device busy")}, devices(), &fakeTranscriber{}, 0, nil)
	_, err := mode.Next(context.Background())
	assert.ErrorContains(t, err, "device busy")
}
