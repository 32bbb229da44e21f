// Package pipeline turns a prompt into a published mashup and runs jobs on a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/imalyk/go-audio-mashup/pkg/audio"
	"github.com/imalyk/go-audio-mashup/pkg/job"
	"github.com/imalyk/go-audio-mashup/pkg/prompt"
	"github.com/imalyk/go-audio-mashup/pkg/storage"
	"github.com/imalyk/go-audio-mashup/pkg/timecode"
	"github.com/imalyk/go-audio-mashup/pkg/youtube"
)

// Codec decodes sources to PCM and encodes the final mix.
type Codec interface {
	Decode(ctx context.Context, path string) ([]int16, error)
	Encode(ctx context.Context, samples []int16, dst string) error
}

type Config struct {
	OutputDir string
	WorkDir   string
	Crossfade time.Duration
	Timeout   time.Duration
}

type Processor struct {
	store       job.Store
	interpreter prompt.Interpreter
	resolver    youtube.Resolver
	fetcher     youtube.Fetcher
	codec       Codec
	publisher   storage.Publisher
	cfg         Config
	logger      *slog.Logger
}

type Deps struct {
	Store       job.Store
	Interpreter prompt.Interpreter
	Resolver    youtube.Resolver
	Fetcher     youtube.Fetcher
	Codec       Codec
	Publisher   storage.Publisher
}

func NewProcessor(d Deps, cfg Config, logger *slog.Logger) *Processor {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "mashup")
	}
	if cfg.Crossfade < 0 {
		cfg.Crossfade = 0
	}
	return &Processor{
		store:       d.Store,
		interpreter: d.Interpreter,
		resolver:    d.Resolver,
		fetcher:     d.Fetcher,
		codec:       d.Codec,
		publisher:   d.Publisher,
		cfg:         cfg,
		logger:      logger,
	}
}

// OutputPath is where the export for id is written.
func (p *Processor) OutputPath(id string) string {
	return filepath.Join(p.cfg.OutputDir, id+".mp3")
}

// Process runs one job to completion and records the outcome in the store.
func (p *Processor) Process(ctx context.Context, id, text string) error {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	logger := p.logger.With("job_id", id)
	started := time.Now()

	ref, err := p.run(ctx, logger, id, text)
	if err != nil {
		p.markFailure(ctx, logger, id, err)
		return err
	}

	// Store writes must land even when the job context has expired.
	sctx := context.WithoutCancel(ctx)
	if err := p.store.SetOutput(sctx, id, ref); err != nil {
		err = stageErr(job.StageInternal, fmt.Errorf("record output: %w", err))
		p.markFailure(ctx, logger, id, err)
		return err
	}
	if err := p.store.SetStatus(sctx, id, job.StatusComplete); err != nil {
		err = stageErr(job.StageInternal, fmt.Errorf("mark complete: %w", err))
		p.markFailure(ctx, logger, id, err)
		return err
	}

	logger.Info("job completed", "output", ref, "elapsed", time.Since(started).String())
	return nil
}

func (p *Processor) run(ctx context.Context, logger *slog.Logger, id, text string) (string, error) {
	dir := filepath.Join(p.cfg.WorkDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", stageErr(job.StageInternal, fmt.Errorf("create work dir: %w", err))
	}

	sources := make(map[string]string)
	defer p.cleanup(logger, dir, sources)

	if err := p.setStatus(ctx, id, job.StatusParsing); err != nil {
		return "", err
	}
	plan, err := p.interpreter.Interpret(ctx, text)
	if err != nil {
		return "", stageErr(job.StageInterpretation, err)
	}
	logger.Info("prompt interpreted", "clips", len(plan.Clips), "sequence", len(plan.Sequence))

	for _, c := range plan.Clips {
		if _, ok := sources[c.Song]; ok {
			logger.Debug("reusing source", "song", c.Song)
			continue
		}

		if err := p.setStatus(ctx, id, job.StatusSearching); err != nil {
			return "", err
		}
		url, err := p.resolver.Resolve(ctx, c.Song)
		if err != nil {
			return "", stageErr(job.StageResolution, fmt.Errorf("resolve %q: %w", c.Song, err))
		}

		if err := p.setStatus(ctx, id, job.StatusDownloading); err != nil {
			return "", err
		}
		path, err := p.fetcher.Fetch(ctx, url, dir)
		if err != nil {
			return "", stageErr(job.StageFetch, fmt.Errorf("download %q: %w", c.Song, err))
		}
		sources[c.Song] = path
		logger.Info("source downloaded", "song", c.Song, "url", url)
	}

	if err := p.setStatus(ctx, id, job.StatusProcessing); err != nil {
		return "", err
	}
	segments, err := p.slice(ctx, logger, plan, sources)
	if err != nil {
		return "", stageErr(job.StageAssembly, err)
	}

	ordered := make([][]int16, 0, len(plan.Sequence))
	for _, name := range plan.Sequence {
		seg, ok := segments[name]
		if !ok {
			logger.Warn("skipping unknown clip in sequence", "clip", name)
			continue
		}
		ordered = append(ordered, seg)
	}
	if len(ordered) == 0 {
		return "", stageErr(job.StageAssembly, ErrEmptySequence)
	}

	mix, err := audio.Assemble(ordered, p.cfg.Crossfade)
	if err != nil {
		return "", stageErr(job.StageAssembly, err)
	}

	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return "", stageErr(job.StageInternal, fmt.Errorf("create output dir: %w", err))
	}
	out := p.OutputPath(id)
	if err := p.codec.Encode(ctx, mix, out); err != nil {
		return "", stageErr(job.StageAssembly, fmt.Errorf("export: %w", err))
	}
	logger.Info("mashup exported", "path", out, "duration", audio.Duration(mix).String(), "clips", len(ordered))

	ref, err := p.publisher.Publish(ctx, id, out)
	if err != nil {
		return "", stageErr(job.StageInternal, fmt.Errorf("publish: %w", err))
	}
	return ref, nil
}

// slice decodes each distinct source once and cuts every clip out of it.
func (p *Processor) slice(ctx context.Context, logger *slog.Logger, plan job.Plan, sources map[string]string) (map[string][]int16, error) {
	decoded := make(map[string][]int16, len(sources))
	for _, song := range plan.Songs() {
		samples, err := p.codec.Decode(ctx, sources[song])
		if err != nil {
			return nil, fmt.Errorf("decode %q: %w", song, err)
		}
		decoded[song] = samples
	}

	segments := make(map[string][]int16, len(plan.Clips))
	for _, c := range plan.Clips {
		start, err := timecode.ToMillis(c.Start)
		if err != nil {
			return nil, fmt.Errorf("clip %q start: %w", c.Name, err)
		}
		end, err := timecode.ToMillis(c.End)
		if err != nil {
			return nil, fmt.Errorf("clip %q end: %w", c.Name, err)
		}
		seg, err := audio.Slice(decoded[c.Song], start, end)
		if err != nil {
			return nil, fmt.Errorf("clip %q: %w", c.Name, err)
		}
		segments[c.Name] = seg
		logger.Debug("clip sliced", "clip", c.Name, "song", c.Song,
			"start", timecode.FromMillis(start), "end", timecode.FromMillis(end))
	}
	return segments, nil
}

func (p *Processor) setStatus(ctx context.Context, id string, status job.Status) error {
	if err := p.store.SetStatus(ctx, id, status); err != nil {
		return stageErr(job.StageInternal, fmt.Errorf("mark %s: %w", status, err))
	}
	return nil
}

func (p *Processor) markFailure(ctx context.Context, logger *slog.Logger, id string, cause error) {
	stage := StageOf(cause)
	if errors.Is(cause, context.DeadlineExceeded) {
		logger.Error("job timed out", "stage", stage, "timeout", p.cfg.Timeout.String())
	}
	logger.Error("job failed", "stage", stage, "error", cause)
	if err := p.store.SetFailure(context.WithoutCancel(ctx), id, stage, cause.Error()); err != nil {
		logger.Error("failed to mark job failure", "error", err)
	}
}

func (p *Processor) cleanup(logger *slog.Logger, dir string, sources map[string]string) {
	for song, path := range sources {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("failed to remove source", "song", song, "path", path, "error", err)
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("failed to remove work dir", "path", dir, "error", err)
	}
}
