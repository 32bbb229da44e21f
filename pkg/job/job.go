package job

import "time"

type Status string

const (
	StatusPending     Status = "pending"
	StatusParsing     Status = "parsing_prompt"
	StatusSearching   Status = "searching_youtube"
	StatusDownloading Status = "downloading_audio"
	StatusProcessing  Status = "processing_audio"
	StatusComplete    Status = "complete"
	StatusFailed      Status = "failed"
)

// Terminal reports whether no further transitions happen after s.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Stage tags where in the pipeline a job failed.
type Stage string

const (
	StageInterpretation Stage = "interpretation"
	StageResolution     Stage = "resolution"
	StageFetch          Stage = "fetch"
	StageAssembly       Stage = "assembly"
	StageInternal       Stage = "internal"
)

type Job struct {
	ID        string    `json:"job_id"`
	Status    Status    `json:"status"`
	FileURL   string    `json:"file_url,omitempty"`
	Stage     Stage     `json:"stage,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clip is one named excerpt of a song. Start and End use "M:SS" notation.
type Clip struct {
	Name  string `json:"name"`
	Song  string `json:"song_name"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// Plan is the interpreted form of a prompt: clip definitions plus assembly order.
type Plan struct {
	Clips    []Clip   `json:"clips"`
	Sequence []string `json:"sequence"`
}

// Songs returns the distinct song references in clip order.
func (p Plan) Songs() []string {
	seen := make(map[string]struct{}, len(p.Clips))
	songs := make([]string, 0, len(p.Clips))
	for _, c := range p.Clips {
		if _, ok := seen[c.Song]; ok {
			continue
		}
		seen[c.Song] = struct{}{}
		songs = append(songs, c.Song)
	}
	return songs
}
