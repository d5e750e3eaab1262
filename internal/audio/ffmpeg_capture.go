package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-shellwords"

	"voicescribe/internal/domain"
	"voicescribe/internal/ports"
)

const (
	defaultStartupWindow = 250 * time.Millisecond
	defaultStopGrace     = 1200 * time.Millisecond
)

// FFMPEGCapture streams microphone PCM audio from an ffmpeg child process.
// The command may carry extra leading arguments, e.g. "ffmpeg -thread_queue_size 512".
type FFMPEGCapture struct {
	binary    string
	extraArgs []string

	startupWindow time.Duration
	stopGrace     time.Duration
}

func NewFFMPEGCapture(command string) (*FFMPEGCapture, error) {
	if strings.TrimSpace(command) == "" {
		command = "ffmpeg"
	}
	argv, err := shellwords.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("invalid recorder command %q: %w", command, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("invalid recorder command %q", command)
	}
	return &FFMPEGCapture{
		binary:        argv[0],
		extraArgs:     argv[1:],
		startupWindow: defaultStartupWindow,
		stopGrace:     defaultStopGrace,
	}, nil
}

// Available reports whether the recorder binary can be resolved.
func (c *FFMPEGCapture) Available() error {
	if _, err := exec.LookPath(c.binary); err != nil {
		return fmt.Errorf("recorder %q not found: %w", c.binary, err)
	}
	return nil
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}

	args := append([]string{}, c.extraArgs...)
	args = append(args,
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	)

	cmd := exec.CommandContext(ctx, c.binary, args...)
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, captureError(fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err))
	}
	if err := cmd.Start(); err != nil {
		return nil, captureError(fmt.Errorf("failed to start ffmpeg: %w", err))
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		if err != nil {
			return nil, captureError(fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, stderr.trimmed()))
		}
		return nil, captureError(errors.New("ffmpeg exited before capture started"))
	case <-time.After(c.startupWindow):
	}

	return &ffmpegSession{
		stdout:    stdout,
		stderr:    stderr,
		process:   cmd.Process,
		waitErr:   waitErr,
		stopGrace: c.stopGrace,
	}, nil
}

func captureError(err error) error {
	return domain.NewRecognitionError(domain.RecognitionErrorAudioCapture, err)
}

type ffmpegSession struct {
	stdout io.ReadCloser
	stderr *lockedBuffer

	process   *os.Process
	waitErr   <-chan error
	stopGrace time.Duration

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if err != nil && errors.Is(err, os.ErrClosed) {
		return n, io.EOF
	}
	return n, err
}

func (s *ffmpegSession) Close() error {
	return s.Stop()
}

// Stop interrupts ffmpeg so it flushes, and kills it after the grace period.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(s.stopGrace):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr != nil {
			if detail := s.stderr.trimmed(); detail != "" {
				s.stopErr = fmt.Errorf("%w: %s", s.stopErr, detail)
			}
		}
	})

	return s.stopErr
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// lockedBuffer collects stderr written by the exec copier goroutine.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) trimmed() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(bytes.TrimSpace(b.buf.Bytes()))
}
