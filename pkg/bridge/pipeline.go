package bridge

import (
	"context"
	"encoding/base64"

	"github.com/tommyd2377/voice-ai-system/pkg/audio/g711"
	"github.com/tommyd2377/voice-ai-system/pkg/audio/pcm"
)

// forwardCallerAudio runs one inbound media payload through
// decode → resample → condition and hands it to the engine. Block-level
// failures are absorbed here; the stream continues.
func (c *Call) forwardCallerAudio(ctx context.Context, payload string) {
	companded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		c.log.Warn("dropping undecodable media payload", "err", err)
		return
	}
	if len(companded) == 0 {
		return
	}

	buf := g711.Decode(companded)
	buf = c.resampler.Resample(ctx, buf, c.cfg.EngineRate)
	buf = c.condIn.Process(buf)

	if err := c.engine.AppendAudio(buf.Bytes()); err != nil {
		c.log.Warn("audio append failed", "err", err)
	}
}

// forwardEngineAudio runs one engine audio delta through
// condition → resample → encode and queues it on the telephony leg.
func (c *Call) forwardEngineAudio(ctx context.Context, audio []byte) {
	if len(audio) == 0 {
		return
	}

	buf := pcm.FromBytes(c.cfg.EngineRate, audio)
	buf = c.condOut.Process(buf)
	buf = c.resampler.Resample(ctx, buf, g711.SampleRate)

	if err := c.stream.SendMedia(g711.Encode(buf.Samples)); err != nil {
		c.log.Warn("media send failed", "err", err)
	}
}
