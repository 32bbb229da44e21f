// Package youtube finds songs on YouTube and downloads them as MP3 audio.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a search yields no playable result.
var ErrNotFound = errors.New("song not found")

// Resolver maps a free-text song reference to a playable source URL.
type Resolver interface {
	Resolve(ctx context.Context, song string) (string, error)
}

// Fetcher downloads a source URL into dir and returns the local audio file path.
type Fetcher interface {
	Fetch(ctx context.Context, url, dir string) (string, error)
}

// Transcoding target for every download.
const (
	AudioFormat  = "mp3"
	AudioQuality = "192K"
)

// YTDLP resolves and fetches through the yt-dlp CLI.
type YTDLP struct {
	path   string
	runner commandRunner
	logger *slog.Logger
}

func NewYTDLP(path string, logger *slog.Logger) *YTDLP {
	if strings.TrimSpace(path) == "" {
		path = "yt-dlp"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &YTDLP{path: path, runner: &execRunner{}, logger: logger}
}

// Resolve returns the watch URL of the first search hit for song.
func (y *YTDLP) Resolve(ctx context.Context, song string) (string, error) {
	song = strings.TrimSpace(song)
	if song == "" {
		return "", ErrNotFound
	}

	y.logger.Info("searching youtube", "song", song)
	res, err := y.runner.Run(ctx, y.path, searchArgs(song)...)
	if err != nil {
		return "", fmt.Errorf("yt-dlp search %q: %w - %s", song, err, strings.TrimSpace(res.Stderr))
	}

	url := lastLine(res.Stdout)
	if url == "" {
		return "", fmt.Errorf("%w: %q", ErrNotFound, song)
	}
	y.logger.Info("found video", "song", song, "url", url)
	return url, nil
}

// Fetch downloads url as MP3 into dir. Files are named by video id so concurrent
// jobs never share a path as long as they use distinct directories.
func (y *YTDLP) Fetch(ctx context.Context, url, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	res, err := y.runner.Run(ctx, y.path, downloadArgs(url, dir)...)
	if err != nil {
		return "", fmt.Errorf("yt-dlp download %s: %w - %s", url, err, strings.TrimSpace(res.Stderr))
	}

	path := lastLine(res.Stdout)
	if path == "" {
		return "", fmt.Errorf("yt-dlp download %s: no output file reported", url)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("yt-dlp download %s: output missing: %w", url, err)
	}
	y.logger.Info("downloaded audio", "url", url, "path", path)
	return path, nil
}

func searchArgs(song string) []string {
	return []string{
		"--no-warnings",
		"--skip-download",
		"--no-playlist",
		"--print", "webpage_url",
		"ytsearch1:" + song,
	}
}

func downloadArgs(url, dir string) []string {
	return []string{
		"--no-warnings",
		"--no-playlist",
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", AudioFormat,
		"--audio-quality", AudioQuality,
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		"--print", "after_move:filepath",
		url,
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
