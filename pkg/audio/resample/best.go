package resample

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tommyd2377/voice-ai-system/pkg/audio/pcm"
)

// Best selects the highest-quality strategy available: the external sox
// process when the host has one, the in-process windowed sinc otherwise.
// External failures and timeouts degrade silently to Sinc; Best never
// surfaces an error to the caller.
type Best struct {
	// Timeout bounds each external invocation.
	Timeout time.Duration

	warnOnce sync.Once
}

// Resample converts in to toRate. Equal rates pass the samples through.
func (b *Best) Resample(ctx context.Context, in pcm.Buffer, toRate int) pcm.Buffer {
	if in.Rate == toRate || len(in.Samples) == 0 {
		return pcm.New(toRate, in.Samples)
	}

	if SoxPath() != "" {
		sox := Sox{Timeout: b.Timeout}
		out, err := sox.Resample(ctx, in, toRate)
		if err == nil {
			return out
		}
		b.warnOnce.Do(func() {
			slog.Warn("external resampler failed, using in-process sinc", "err", err)
		})
	}
	return Sinc(in, toRate)
}
