package session

import (
	"context"
	"log/slog"

	"voxrag/internal/audio"
	"voxrag/internal/domain"
)

// DeviceCapturer is a Capturer whose input device can be chosen.
type DeviceCapturer interface {
	audio.Capturer
	SetDevice(device string)
}

// DeviceLister returns the capture devices available on this machine.
type DeviceLister func(ctx context.Context) ([]string, error)

// AudioInput records a spoken question between two presses of Enter and
// transcribes it.
type AudioInput struct {
	ui          UI
	capturer    DeviceCapturer
	devices     DeviceLister
	transcriber domain.Transcriber
	sampleRate  int
	logger      *slog.Logger
}

func NewAudioInput(ui UI, capturer DeviceCapturer, devices DeviceLister, transcriber domain.Transcriber, sampleRate int, logger *slog.Logger) *AudioInput {
	if logger == nil {
		logger = slog.Default()
	}
	if sampleRate <= 0 {
		sampleRate = audio.SampleRate
	}
	return &AudioInput{ui: ui, capturer: capturer, devices: devices, transcriber: transcriber, sampleRate: sampleRate, logger: logger}
}

func (*AudioInput) Name() string { return "audio" }

// Prepare lets the user pick a capture device. When devices cannot be listed
// the recorder's default device is used.
func (a *AudioInput) Prepare(ctx context.Context) error {
	devices, err := a.devices(ctx)
	switch {
	case err != nil:
		a.logger.Warn("Could not list audio devices", "error", err)
		a.ui.Warn("Could not list audio devices, using the default device.")
	case len(devices) > 0:
		device, err := Select(ctx, a.ui, "Available audio devices:", "Please select audio device by number: ", devices)
		if err != nil {
			return err
		}
		a.capturer.SetDevice(device)
		a.logger.Info("Audio device selected", "device", device)
	}
	a.ui.Info("Press Enter to start recording, then press Enter again to stop.")
	a.ui.Info("Assistant started! Press Ctrl+C to exit.")
	return nil
}

// Next waits for Enter, records until the next Enter and returns the
// transcript as "Speaker: <text>". It returns "" when nothing was said.
func (a *AudioInput) Next(ctx context.Context) (string, error) {
	if _, err := a.ui.Input(ctx, ""); err != nil {
		return "", err
	}
	if err := a.capturer.Start(ctx); err != nil {
		return "", &domain.AudioProcessingError{Err: err}
	}
	a.ui.Warn("Recording... press Enter to stop.")
	_, inputErr := a.ui.Input(ctx, "")
	raw, stopErr := a.capturer.Stop()
	if inputErr != nil {
		return "", inputErr
	}
	if stopErr != nil {
		return "", &domain.AudioProcessingError{Err: stopErr}
	}
	a.logger.Debug("Audio captured", "bytes", len(raw))

	samples, mono, err := audio.Prepare(raw)
	if err != nil {
		return "", err
	}
	if mono {
		a.ui.Error("Data is not stereo, processing as mono")
	}
	a.ui.Info("Transcribing...")
	text, err := a.transcriber.Transcribe(ctx, samples, a.sampleRate)
	if err != nil {
		return "", &domain.AudioProcessingError{Err: err}
	}
	if text == "" {
		return "", nil
	}
	a.logger.Info("Speaker", "text", text)
	a.ui.Error("Speaker:")
	a.ui.Info("%s", text)
	return "Speaker: " + text, nil
}
