package job

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps jobs for the lifetime of the process.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context) (Job, error) {
	now := s.now().UTC()
	j := &Job{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()
	return *j, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *j, nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, id string, status Status) error {
	return s.update(id, func(j *Job) {
		j.Status = status
	})
}

func (s *MemoryStore) SetOutput(ctx context.Context, id string, ref string) error {
	return s.update(id, func(j *Job) {
		j.FileURL = ref
	})
}

func (s *MemoryStore) SetFailure(ctx context.Context, id string, stage Stage, reason string) error {
	return s.update(id, func(j *Job) {
		j.Status = StatusFailed
		j.Stage = stage
		j.Error = truncateReason(reason)
		j.FileURL = ""
	})
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *MemoryStore) update(id string, fn func(j *Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	fn(j)
	j.UpdatedAt = s.now().UTC()
	return nil
}
