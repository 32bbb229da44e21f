package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// FFmpeg decodes sources to PCM and encodes PCM to MP3 by shelling out to ffmpeg.
type FFmpeg struct {
	Path    string
	Bitrate string
}

// NewFFmpeg returns an FFmpeg using path (default "ffmpeg") and a 192k MP3 bitrate.
func NewFFmpeg(path string) *FFmpeg {
	if strings.TrimSpace(path) == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{Path: path, Bitrate: "192k"}
}

// Decode converts any ffmpeg-readable file to interleaved stereo PCM at SampleRate.
func (f *FFmpeg) Decode(ctx context.Context, path string) ([]int16, error) {
	cmd := exec.CommandContext(ctx, f.Path, decodeArgs(path)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode %s: %w - %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return BytesToSamples(out), nil
}

// Encode writes samples to dst as MP3.
func (f *FFmpeg) Encode(ctx context.Context, samples []int16, dst string) error {
	cmd := exec.CommandContext(ctx, f.Path, encodeArgs(dst, f.Bitrate)...)
	cmd.Stdin = bytes.NewReader(SamplesToBytes(samples))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg encode %s: %w - %s", dst, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func decodeArgs(path string) []string {
	return []string{
		"-nostdin",
		"-i", path,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-loglevel", "error",
		"pipe:1",
	}
}

func encodeArgs(dst, bitrate string) []string {
	return []string{
		"-y",
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", bitrate,
		"-loglevel", "error",
		dst,
	}
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// BytesToSamples decodes little-endian s16 PCM, dropping a trailing odd byte.
func BytesToSamples(buf []byte) []int16 {
	samples := make([]int16, len(buf)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
	}
	return samples
}
