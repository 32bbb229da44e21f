// Package prompt turns a free-text mashup request into a structured job.Plan
// by asking a language model for JSON.
package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/imalyk/go-audio-mashup/pkg/job"
)

// ErrNoClips is returned when the model's answer has no "clips" field.
var ErrNoClips = errors.New("could not parse prompt: no clips in response")

// Interpreter converts a user prompt into a plan with one external call.
type Interpreter interface {
	Interpret(ctx context.Context, prompt string) (job.Plan, error)
}

const systemPrompt = `You are an intelligent assistant that parses user requests for audio editing.
Your task is to extract this information and return ONLY a valid JSON object.
The JSON structure should be:
{
  "clips": [
    {"name": "a_unique_clip_name", "song_name": "The song for this clip", "start": "MM:SS", "end": "MM:SS"}
  ],
  "sequence": ["an", "ordered", "list", "of", "clip", "names"]
}
Infer clip names and song titles accurately from the user's prompt.
Ensure start/end times are always in "MM:SS" format.`

// decodePlan parses the model output into a plan.
func decodePlan(content string) (job.Plan, error) {
	content = cleanContent(content)

	var raw struct {
		Clips    *[]job.Clip `json:"clips"`
		Sequence []string    `json:"sequence"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return job.Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	if raw.Clips == nil {
		return job.Plan{}, ErrNoClips
	}

	return job.Plan{Clips: *raw.Clips, Sequence: raw.Sequence}, nil
}

// cleanContent strips reasoning blocks and markdown fences some models wrap JSON in.
func cleanContent(s string) string {
	s = strings.TrimSpace(s)

	if idx := strings.Index(s, "</think>"); idx >= 0 {
		s = strings.TrimSpace(s[idx+len("</think>"):])
	}

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
