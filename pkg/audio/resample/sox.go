package resample

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/tommyd2377/voice-ai-system/pkg/audio/pcm"
)

// DefaultSoxTimeout bounds one external resample invocation. A hung
// subprocess must never stall a call; on expiry the caller falls back to
// the in-process kernel.
const DefaultSoxTimeout = 2 * time.Second

var (
	soxProbeOnce sync.Once
	soxProbePath string
)

// SoxPath returns the absolute path of the sox binary, or "" when the host
// has none. The probe runs once per process; the result is read-only after.
func SoxPath() string {
	soxProbeOnce.Do(func() {
		if p, err := exec.LookPath("sox"); err == nil {
			soxProbePath = p
		}
	})
	return soxProbePath
}

// Sox resamples by piping raw signed 16-bit mono PCM through the host sox
// binary. Higher quality than the in-process kernel, at the cost of a
// subprocess per block.
type Sox struct {
	// Path is the sox binary. Defaults to the probed host binary.
	Path string

	// Timeout bounds a single invocation. Defaults to DefaultSoxTimeout.
	Timeout time.Duration
}

// Resample implements Resampler.
func (s *Sox) Resample(ctx context.Context, in pcm.Buffer, toRate int) (pcm.Buffer, error) {
	if in.Rate == toRate || len(in.Samples) == 0 {
		return pcm.New(toRate, append([]int16(nil), in.Samples...)), nil
	}

	path := s.Path
	if path == "" {
		path = SoxPath()
	}
	if path == "" {
		return pcm.Buffer{}, fmt.Errorf("resample: sox binary not available")
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultSoxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := []string{
		"-t", "raw", "-r", strconv.Itoa(in.Rate), "-e", "signed", "-b", "16", "-c", "1", "-",
		"-t", "raw", "-r", strconv.Itoa(toRate), "-e", "signed", "-b", "16", "-c", "1", "-",
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdin = bytes.NewReader(in.Bytes())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return pcm.Buffer{}, fmt.Errorf("resample: sox timed out: %w", ctx.Err())
		}
		return pcm.Buffer{}, fmt.Errorf("resample: sox failed: %w (%s)", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return pcm.FromBytes(toRate, stdout.Bytes()), nil
}
