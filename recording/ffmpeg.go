package recording

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type ffmpegEncoding struct {
	codec  string
	muxer  string
	extras []string
}

var ffmpegEncodings = map[string]ffmpegEncoding{
	"audio/webm;codecs=opus": {codec: "libopus", muxer: "webm"},
	"audio/webm":             {codec: "libopus", muxer: "webm"},
	"audio/ogg;codecs=opus":  {codec: "libopus", muxer: "ogg"},
	"audio/mp4":              {codec: "aac", muxer: "mp4", extras: []string{"-movflags", "frag_keyframe+empty_moov"}},
}

// FFmpegMicrophone records from a local input device through ffmpeg,
// e.g. InputFormat "pulse" with Device "default", or "avfoundation" with ":default".
type FFmpegMicrophone struct {
	InputFormat string
	Device      string

	encodersOnce sync.Once
	encoders     string
}

func (m *FFmpegMicrophone) Open(ctx context.Context) (Capture, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, &CapabilityError{Err: fmt.Errorf("%w: ffmpeg not found", ErrNoDevice)}
	}
	if m.InputFormat == "" || m.Device == "" {
		return nil, &CapabilityError{Err: fmt.Errorf("%w: capture device not configured", ErrNoDevice)}
	}
	return &ffmpegCapture{ctx: ctx, inputFormat: m.InputFormat, device: m.Device}, nil
}

// Supports reports whether the local ffmpeg build has an encoder for mimeType.
func (m *FFmpegMicrophone) Supports(mimeType string) bool {
	enc, ok := ffmpegEncodings[mimeType]
	if !ok {
		return false
	}
	m.encodersOnce.Do(func() {
		out, err := exec.Command("ffmpeg", "-hide_banner", "-encoders").Output()
		if err == nil {
			m.encoders = string(out)
		}
	})
	return strings.Contains(m.encoders, " "+enc.codec+" ")
}

func captureArgs(inputFormat, device, mimeType string) []string {
	enc, ok := ffmpegEncodings[mimeType]
	if !ok {
		enc = ffmpegEncodings[DefaultEncoding]
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", inputFormat,
		"-i", device,
		"-ac", "1",
		"-c:a", enc.codec,
	}
	args = append(args, enc.extras...)
	return append(args, "-f", enc.muxer, "pipe:1")
}

// startupGrace is how long Start waits for the first captured bytes before
// assuming the device is open and merely silent.
var startupGrace = 2 * time.Second

type ffmpegCapture struct {
	ctx         context.Context
	inputFormat string
	device      string

	cmd       *exec.Cmd
	stderr    *tailBuffer
	onData    func([]byte)
	mu        sync.Mutex
	pending   []byte
	firstData chan struct{}
	readDone  chan struct{}
	quit      chan struct{}
	tickDone  chan struct{}
}

// Start spawns ffmpeg and waits until it either produces audio or exits. An
// exit during startup is reported as a CapabilityError classified from stderr.
func (c *ffmpegCapture) Start(mimeType string, timeslice time.Duration, onData func([]byte)) error {
	args := captureArgs(c.inputFormat, c.device, mimeType)
	cmd := exec.Command("ffmpeg", args...)
	stderr := &tailBuffer{}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return &CapabilityError{Err: fmt.Errorf("%w: %w", ErrNoDevice, err)}
	}
	zerolog.Ctx(c.ctx).Debug().Strs("ffmpeg_args", args).Msg("capture process started")

	c.onData = onData
	c.stderr = stderr
	c.firstData = make(chan struct{})
	c.readDone = make(chan struct{})
	go c.read(stdout)

	select {
	case <-c.firstData:
	case <-time.After(startupGrace):
	case <-c.readDone:
		waitErr := cmd.Wait()
		c.pending = nil
		return captureFailure(stderr.String(), waitErr)
	}

	c.cmd = cmd
	c.quit = make(chan struct{})
	c.tickDone = make(chan struct{})
	go c.flushEvery(timeslice)
	return nil
}

// captureFailure maps an ffmpeg that quit during startup to a capability error.
func captureFailure(stderr string, waitErr error) error {
	detail := lastLine(stderr)
	if detail == "" && waitErr != nil {
		detail = waitErr.Error()
	}
	if detail == "" {
		detail = "ffmpeg exited before capturing"
	}
	if strings.Contains(strings.ToLower(stderr), "permission denied") {
		return &CapabilityError{Err: fmt.Errorf("%w: %s", ErrPermissionDenied, detail)}
	}
	return &CapabilityError{Err: fmt.Errorf("%w: %s", ErrNoDevice, detail)}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// tailBuffer keeps the last few KB written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
}

const tailBufferSize = 4 * 1024

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if len(b.buf) > tailBufferSize {
		b.buf = b.buf[len(b.buf)-tailBufferSize:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func (c *ffmpegCapture) read(r io.Reader) {
	defer close(c.readDone)
	var once sync.Once
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			c.mu.Lock()
			c.pending = append(c.pending, buf[:n]...)
			c.mu.Unlock()
			once.Do(func() { close(c.firstData) })
		}
		if err != nil {
			return
		}
	}
}

func (c *ffmpegCapture) flushEvery(timeslice time.Duration) {
	defer close(c.tickDone)
	ticker := time.NewTicker(timeslice)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.quit:
			return
		}
	}
}

func (c *ffmpegCapture) flush() {
	c.mu.Lock()
	p := c.pending
	c.pending = nil
	c.mu.Unlock()
	if len(p) > 0 {
		c.onData(p)
	}
}

// Stop asks ffmpeg to finalize the container and delivers the remaining bytes.
func (c *ffmpegCapture) Stop() error {
	if c.cmd == nil {
		return nil
	}
	if err := c.cmd.Process.Signal(os.Interrupt); err != nil {
		_ = c.cmd.Process.Kill()
	}
	select {
	case <-c.readDone:
	case <-time.After(5 * time.Second):
		_ = c.cmd.Process.Kill()
		<-c.readDone
	}
	err := c.cmd.Wait()
	close(c.quit)
	<-c.tickDone
	c.flush()
	c.cmd = nil

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// ffmpeg exits non-zero when interrupted
		zerolog.Ctx(c.ctx).Debug().Int("exit_code", exitErr.ExitCode()).Str("stderr", lastLine(c.stderr.String())).Msg("capture process exited")
		return nil
	}
	return err
}

func (c *ffmpegCapture) Close() error {
	if c.cmd == nil {
		return nil
	}
	_ = c.cmd.Process.Kill()
	<-c.readDone
	_ = c.cmd.Wait()
	close(c.quit)
	<-c.tickDone
	c.cmd = nil
	return nil
}
