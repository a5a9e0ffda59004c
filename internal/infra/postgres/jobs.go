package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mu6m/better-datafy/internal/core/rag"
)

// JobRepository は rag.JobRepository を実装する PostgreSQL リポジトリです
type JobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository は新しい JobRepository を作成します
func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

// コンパイル時の型チェック
var _ rag.JobRepository = (*JobRepository)(nil)

const jobColumns = `id, name, sources, status, answer, error, created_at`

func (r *JobRepository) CreateJob(ctx context.Context, name string, sources []string) (*rag.Job, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx,
		`INSERT INTO jobs (id, name, sources, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+jobColumns,
		UUIDToPgtype(id), name, JSONBFromStringSlice(sources), string(rag.JobStatusRunning),
	)

	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	return job, nil
}

func (r *JobRepository) GetJob(ctx context.Context, id uuid.UUID) (*rag.Job, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`,
		UUIDToPgtype(id),
	)

	job, err := scanJob(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", rag.ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (r *JobRepository) ListJobs(ctx context.Context) ([]*rag.Job, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*rag.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

func (r *JobRepository) SaveStatus(ctx context.Context, id uuid.UUID, status rag.JobStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, updated_at = now() WHERE id = $1`,
		UUIDToPgtype(id), string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to save job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", rag.ErrJobNotFound, id)
	}
	return nil
}

func (r *JobRepository) SaveAnswer(ctx context.Context, id uuid.UUID, answer string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE jobs SET answer = $2, updated_at = now() WHERE id = $1`,
		UUIDToPgtype(id), answer,
	)
	if err != nil {
		return fmt.Errorf("failed to save answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", rag.ErrJobNotFound, id)
	}
	return nil
}

func (r *JobRepository) SaveErrorNote(ctx context.Context, id uuid.UUID, note string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE jobs SET error = $2, updated_at = now() WHERE id = $1`,
		UUIDToPgtype(id), note,
	)
	if err != nil {
		return fmt.Errorf("failed to save error note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", rag.ErrJobNotFound, id)
	}
	return nil
}

// scanJob は1行をスキャンして rag.Job へ変換します
func scanJob(row pgx.Row) (*rag.Job, error) {
	var (
		id        pgtype.UUID
		name      string
		sources   []byte
		status    string
		answer    pgtype.Text
		errNote   string
		createdAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &name, &sources, &status, &answer, &errNote, &createdAt); err != nil {
		return nil, err
	}

	return &rag.Job{
		ID:        PgtypeToUUID(id),
		Name:      name,
		Sources:   StringSliceFromJSONB(sources),
		Status:    rag.JobStatus(status),
		Answer:    PgtextToStringPtr(answer),
		Error:     errNote,
		CreatedAt: PgtypeToTime(createdAt),
	}, nil
}
