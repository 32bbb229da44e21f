package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS mashup_jobs (
	id          UUID PRIMARY KEY,
	status      TEXT NOT NULL,
	file_url    TEXT NOT NULL DEFAULT '',
	stage       TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore persists jobs in the mashup_jobs table.
type PostgresStore struct {
	DB *pgxpool.Pool
}

// NewPostgresStore connects to dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db schema: %w", err)
	}
	return &PostgresStore{DB: pool}, nil
}

func (s *PostgresStore) Close() {
	s.DB.Close()
}

func (s *PostgresStore) Create(ctx context.Context) (Job, error) {
	j := Job{ID: uuid.New().String(), Status: StatusPending}
	err := s.DB.QueryRow(ctx,
		`INSERT INTO mashup_jobs (id, status) VALUES ($1, $2) RETURNING created_at, updated_at`,
		j.ID, string(j.Status),
	).Scan(&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return Job{}, fmt.Errorf("insert job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Job{}, ErrNotFound
	}

	var (
		j             Job
		status, stage string
		created, upd  time.Time
	)
	err := s.DB.QueryRow(ctx,
		`SELECT id, status, file_url, stage, error, created_at, updated_at
		   FROM mashup_jobs WHERE id=$1`,
		id,
	).Scan(&j.ID, &status, &j.FileURL, &stage, &j.Error, &created, &upd)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, fmt.Errorf("select job %s: %w", id, err)
	}
	j.Status = Status(status)
	j.Stage = Stage(stage)
	j.CreatedAt = created.UTC()
	j.UpdatedAt = upd.UTC()
	return j, nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, id string, status Status) error {
	return s.exec(ctx, id,
		`UPDATE mashup_jobs SET status=$2, updated_at=now() WHERE id=$1`,
		string(status))
}

func (s *PostgresStore) SetOutput(ctx context.Context, id string, ref string) error {
	return s.exec(ctx, id,
		`UPDATE mashup_jobs SET file_url=$2, updated_at=now() WHERE id=$1`,
		ref)
}

func (s *PostgresStore) SetFailure(ctx context.Context, id string, stage Stage, reason string) error {
	return s.exec(ctx, id,
		`UPDATE mashup_jobs SET status=$2, stage=$3, error=$4, file_url='', updated_at=now() WHERE id=$1`,
		string(StatusFailed), string(stage), truncateReason(reason))
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

func (s *PostgresStore) exec(ctx context.Context, id, query string, args ...any) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := s.DB.Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
