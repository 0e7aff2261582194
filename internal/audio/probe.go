package audio

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

// Info describes the audio attributes the pipeline cares about.
type Info struct {
	Duration   time.Duration
	Channels   int
	SampleRate int
	Size       int64
}

type probeResult struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Probe reads duration, channel count and sample rate via ffprobe.
func (p *Processor) Probe(ctx context.Context, path string) (*Info, error) {
	output, err := p.run.CombinedOutput(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, &UnreadableAudioError{Path: path, Err: err}
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, &UnreadableAudioError{Path: path, Err: err}
	}

	info := &Info{}
	if secs, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil {
		info.Duration = time.Duration(secs * float64(time.Second))
	}
	if size, err := strconv.ParseInt(result.Format.Size, 10, 64); err == nil {
		info.Size = size
	}
	for _, s := range result.Streams {
		if s.CodecType != "audio" {
			continue
		}
		info.Channels = s.Channels
		if rate, err := strconv.Atoi(s.SampleRate); err == nil {
			info.SampleRate = rate
		}
		break
	}

	return info, nil
}

// Duration is a convenience wrapper around Probe.
func (p *Processor) Duration(ctx context.Context, path string) (time.Duration, error) {
	info, err := p.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}
