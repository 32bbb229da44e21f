package audio

import (
	"fmt"
	"time"
)

// Smoothstep returns 3t^2 - 2t^3 clamped to [0,1].
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// CrossfadeFrames blends outgoing with incoming at the given progress
// (0 = all outgoing, 1 = all incoming). Both slices must have the same length.
func CrossfadeFrames(outgoing, incoming []int16, progress float64) []int16 {
	gain := Smoothstep(progress)
	result := make([]int16, len(outgoing))

	for i := range outgoing {
		mixed := float64(outgoing[i])*(1-gain) + float64(incoming[i])*gain
		result[i] = clip16(mixed)
	}
	return result
}

// Crossfade joins a and b, overlapping the last d of a with the first d of b.
func Crossfade(a, b []int16, d time.Duration) ([]int16, error) {
	return Assemble([][]int16{a, b}, d)
}

// Assemble concatenates segments in order, crossfading each join by exactly d,
// so the result is d shorter per join than the plain concatenation.
// A single segment is returned unchanged. With more than one segment, every
// segment must be at least d long.
func Assemble(segments [][]int16, d time.Duration) ([]int16, error) {
	if len(segments) == 0 {
		return nil, ErrEmpty
	}

	n := overlapSamples(d)
	total := 0
	for i, s := range segments {
		if len(segments) > 1 && len(s) < n {
			return nil, fmt.Errorf("%w: segment %d is %s, crossfade is %s", ErrTooShort, i, Duration(s), d)
		}
		total += len(s)
	}

	out := make([]int16, 0, total)
	out = append(out, segments[0]...)
	for _, next := range segments[1:] {
		tail := make([]int16, n)
		copy(tail, out[len(out)-n:])
		out = out[:len(out)-n]
		out = appendBlend(out, tail, next[:n])
		out = append(out, next[n:]...)
	}
	return out, nil
}

// appendBlend writes the crossfade of outgoing into incoming, one frame at a time.
func appendBlend(dst, outgoing, incoming []int16) []int16 {
	frames := len(outgoing) / Channels
	for f := 0; f < frames; f++ {
		progress := float64(f) / float64(frames)
		i := f * Channels
		dst = append(dst, CrossfadeFrames(outgoing[i:i+Channels], incoming[i:i+Channels], progress)...)
	}
	return dst
}

func overlapSamples(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return durationToSamples(d)
}

func clip16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
