// Package storage publishes finished mashups and returns the reference clients fetch them from.
package storage

import (
	"context"
	"path"
	"path/filepath"
	"strings"
)

// Publisher makes an exported file reachable and returns its reference.
type Publisher interface {
	Publish(ctx context.Context, jobID, localPath string) (string, error)
}

const contentType = "audio/mpeg"

// LocalPublisher serves exports from the statically mounted output directory.
type LocalPublisher struct {
	URLPrefix string
}

func NewLocalPublisher(urlPrefix string) *LocalPublisher {
	if strings.TrimSpace(urlPrefix) == "" {
		urlPrefix = "/output"
	}
	return &LocalPublisher{URLPrefix: strings.TrimRight(urlPrefix, "/")}
}

func (p *LocalPublisher) Publish(ctx context.Context, jobID, localPath string) (string, error) {
	return p.URLPrefix + "/" + filepath.Base(localPath), nil
}

func objectKey(prefix, localPath string) string {
	return path.Join(strings.Trim(prefix, "/"), filepath.Base(localPath))
}
