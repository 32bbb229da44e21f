package audio

import (
	"errors"
	"fmt"
	"time"
)

// All decoded audio is interleaved signed 16-bit PCM at this format.
const (
	SampleRate   = 48000
	Channels     = 2
	BitDepth     = 16
	SamplesPerMs = SampleRate / 1000 * Channels // interleaved samples per millisecond
)

var (
	// ErrOutOfRange is returned when clip bounds fall outside the decoded source.
	ErrOutOfRange = errors.New("clip bounds out of range")
	// ErrEmpty is returned when there is nothing to assemble.
	ErrEmpty = errors.New("no segments to assemble")
	// ErrTooShort is returned when a segment is shorter than the crossfade joining it.
	ErrTooShort = errors.New("segment shorter than crossfade")
)

// Duration returns the playback length of interleaved samples.
func Duration(samples []int16) time.Duration {
	frames := len(samples) / Channels
	return time.Duration(frames) * time.Second / SampleRate
}

// Slice returns the samples in [startMs, endMs). The result shares no memory with samples.
func Slice(samples []int16, startMs, endMs int64) ([]int16, error) {
	if startMs < 0 || endMs <= startMs {
		return nil, fmt.Errorf("%w: start %dms end %dms", ErrOutOfRange, startMs, endMs)
	}
	// compare in milliseconds first so the sample offsets below fit in an int
	if endMs > int64(len(samples))/SamplesPerMs {
		return nil, fmt.Errorf("%w: end %dms beyond source length %s", ErrOutOfRange, endMs, Duration(samples))
	}
	start := msToSamples(startMs)
	end := msToSamples(endMs)

	out := make([]int16, end-start)
	copy(out, samples[start:end])
	return out, nil
}

func msToSamples(ms int64) int {
	return int(ms * SamplesPerMs)
}

func durationToSamples(d time.Duration) int {
	frames := int(d * SampleRate / time.Second)
	return frames * Channels
}
