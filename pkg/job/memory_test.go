package job

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"
)

func TestMemoryStoreCreateIsPending(t *testing.T) {
	s := NewMemoryStore()
	j, err := s.Create(context.Background())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if j.ID == "" {
		t.Fatal("expected non-empty id")
	}
	if j.Status != StatusPending {
		t.Fatalf("status = %s, want pending", j.Status)
	}

	got, err := s.Get(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusPending || got.FileURL != "" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestMemoryStoreUnknownID(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get err = %v, want ErrNotFound", err)
	}
	if err := s.SetStatus(context.Background(), "nope", StatusComplete); !errors.Is(err, ErrNotFound) {
		t.Fatalf("set status err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreFailureClearsOutput(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	j, _ := s.Create(ctx)

	if err := s.SetOutput(ctx, j.ID, "/output/x.mp3"); err != nil {
		t.Fatalf("set output: %v", err)
	}
	if err := s.SetFailure(ctx, j.ID, StageFetch, strings.Repeat("x", 2000)); err != nil {
		t.Fatalf("set failure: %v", err)
	}

	got, _ := s.Get(ctx, j.ID)
	if got.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.Stage != StageFetch {
		t.Fatalf("stage = %s, want fetch", got.Stage)
	}
	if got.FileURL != "" {
		t.Fatalf("file url = %q, want empty on failure", got.FileURL)
	}
	if len(got.Error) != maxReasonLen {
		t.Fatalf("error len = %d, want %d", len(got.Error), maxReasonLen)
	}
}

func TestTruncateReasonKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		name    string
		reason  string
		wantLen int
	}{
		{"short", "no result", 9},
		{"ascii over limit", strings.Repeat("x", 2000), maxReasonLen},
		{"two-byte rune across limit", strings.Repeat("a", 1023) + "é", 1023},
		{"three-byte runes", strings.Repeat("夜", 400), 1023},
	}
	for _, tt := range tests {
		got := truncateReason(tt.reason)
		if !utf8.ValidString(got) {
			t.Errorf("%s: result is not valid UTF-8", tt.name)
		}
		if len(got) != tt.wantLen {
			t.Errorf("%s: len = %d, want %d", tt.name, len(got), tt.wantLen)
		}
	}
}

func TestMemoryStoreConcurrentDisjointWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	ids := make([]string, 32)
	for i := range ids {
		j, _ := s.Create(ctx)
		ids[i] = j.ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			for _, st := range []Status{StatusParsing, StatusSearching, StatusDownloading, StatusProcessing, StatusComplete} {
				_ = s.SetStatus(ctx, id, st)
			}
		}(id)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, _ = s.Get(ctx, id)
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		got, _ := s.Get(ctx, id)
		if got.Status != StatusComplete {
			t.Fatalf("job %s status = %s, want complete", id, got.Status)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusParsing, false},
		{StatusSearching, false},
		{StatusDownloading, false},
		{StatusProcessing, false},
		{StatusComplete, true},
		{StatusFailed, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestPlanSongs(t *testing.T) {
	p := Plan{
		Clips: []Clip{
			{Name: "a", Song: "Song One", Start: "0:10", End: "0:20"},
			{Name: "b", Song: "Song Two", Start: "1:00", End: "1:10"},
			{Name: "c", Song: "Song One", Start: "2:00", End: "2:05"},
		},
		Sequence: []string{"a", "b", "c"},
	}

	songs := p.Songs()
	if len(songs) != 2 || songs[0] != "Song One" || songs[1] != "Song Two" {
		t.Fatalf("songs = %v", songs)
	}
}
