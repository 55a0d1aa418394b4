package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Capturer records raw PCM between Start and Stop.
type Capturer interface {
	Start(ctx context.Context) error
	// Stop ends the recording, waits for the capture goroutine and returns
	// everything captured as one buffer.
	Stop() ([]byte, error)
}

// CommandCapturer records by running an external recorder (arecord by default)
// that writes raw S16_LE PCM to stdout.
type CommandCapturer struct {
	Command    string
	Device     string
	SampleRate int
	Channels   int

	mu       sync.Mutex
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	done     chan error
	queue    [][]byte
	captured atomic.Int64
}

// SetDevice selects the capture device used by the next Start.
func (c *CommandCapturer) SetDevice(device string) {
	c.mu.Lock()
	c.Device = device
	c.mu.Unlock()
}

// Args returns the recorder arguments for the configured format.
func (c *CommandCapturer) Args() []string {
	rate := c.SampleRate
	if rate <= 0 {
		rate = SampleRate
	}
	channels := c.Channels
	if channels <= 0 {
		channels = 2
	}
	args := []string{"-q", "-t", "raw", "-f", "S16_LE", "-r", strconv.Itoa(rate), "-c", strconv.Itoa(channels)}
	if c.Device != "" {
		args = append(args, "-D", c.Device)
	}
	return args
}

func (c *CommandCapturer) Start(ctx context.Context) error {
	name := c.Command
	if name == "" {
		name = "arecord"
	}
	c.mu.Lock()
	args := c.Args()
	c.mu.Unlock()
	fields := strings.Fields(name)
	return c.start(ctx, fields[0], append(fields[1:], args...)...)
}

func (c *CommandCapturer) start(ctx context.Context, name string, args ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil {
		return errors.New("capture already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start recorder %s: %w", name, err)
	}
	c.cmd = cmd
	c.cancel = cancel
	c.queue = nil
	c.captured.Store(0)
	c.done = make(chan error, 1)
	go c.drain(stdout)
	return nil
}

func (c *CommandCapturer) drain(r io.Reader) {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			c.mu.Lock()
			c.queue = append(c.queue, chunk)
			c.mu.Unlock()
			c.captured.Add(int64(n))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = nil
			}
			c.done <- err
			return
		}
	}
}

// Captured returns the number of bytes recorded so far.
func (c *CommandCapturer) Captured() int64 { return c.captured.Load() }

func (c *CommandCapturer) Stop() ([]byte, error) {
	c.mu.Lock()
	cmd, cancel, done := c.cmd, c.cancel, c.done
	c.mu.Unlock()
	if cmd == nil {
		return nil, errors.New("capture not running")
	}

	cancel()
	readErr := <-done
	_ = cmd.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	var out []byte
	for _, chunk := range c.queue {
		out = append(out, chunk...)
	}
	c.cmd, c.cancel, c.done, c.queue = nil, nil, nil, nil
	if readErr != nil && !errors.Is(readErr, io.ErrClosedPipe) {
		return out, fmt.Errorf("read recorder output: %w", readErr)
	}
	return out, nil
}

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// ListDevices runs the device listing command (e.g. "arecord -L") and returns
// the device names it prints. Description lines are indented and skipped.
func ListDevices(ctx context.Context, runner CommandRunner, command string) ([]string, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, errors.New("empty device list command")
	}
	out, err := runner.Run(ctx, fields[0], fields[1:]...)
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	var devices []string
	sc := bufio.NewScanner(strings.NewReader(string(out)))
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		devices = append(devices, strings.TrimSpace(line))
	}
	return devices, sc.Err()
}
