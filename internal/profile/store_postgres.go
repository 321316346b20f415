package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed profile store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Fetch(ctx context.Context, uid string) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var (
		p         Profile
		email     *string
		name      *string
		role      *string
		completed []string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT uid, email, name, role, completed_topics, enrolled_courses
		 FROM profiles
		 WHERE uid = $1`,
		uid,
	).Scan(&p.UID, &email, &name, &role, &completed, &p.EnrolledCourses)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	if email != nil {
		p.Email = *email
	}
	if name != nil {
		p.Name = *name
	}
	var rawRole string
	if role != nil {
		rawRole = *role
	}
	p.Role = NormalizeRole(rawRole)
	p.CompletedTopics = NewTopicSet(completed...)
	if p.EnrolledCourses == nil {
		p.EnrolledCourses = []string{}
	}
	return &p, nil
}

func (s *PostgresStore) Create(ctx context.Context, p Profile) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if p.UID == "" {
		return fmt.Errorf("uid is required")
	}
	enrolled := p.EnrolledCourses
	if enrolled == nil {
		enrolled = []string{}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (uid, email, name, role, completed_topics, enrolled_courses)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (uid) DO NOTHING`,
		p.UID,
		p.Email,
		p.Name,
		string(p.Role),
		p.CompletedTopics.Sorted(),
		enrolled,
	)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// MergeCompletedTopic appends topicID in a single statement so concurrent merges
// for the same uid cannot overwrite each other.
func (s *PostgresStore) MergeCompletedTopic(ctx context.Context, uid, topicID string) error {
	return s.appendUnique(ctx, "completed_topics", uid, topicID)
}

func (s *PostgresStore) AddEnrolledCourse(ctx context.Context, uid, courseID string) error {
	return s.appendUnique(ctx, "enrolled_courses", uid, courseID)
}

func (s *PostgresStore) SetRole(ctx context.Context, uid string, role Role) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `UPDATE profiles SET role = $2 WHERE uid = $1`, uid, string(role))
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// column is always one of the two array columns named above.
func (s *PostgresStore) appendUnique(ctx context.Context, column, uid, value string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		`UPDATE profiles
		 SET `+column+` = array_append(`+column+`, $2)
		 WHERE uid = $1 AND NOT ($2 = ANY(`+column+`))`,
		uid, value,
	)
	if err != nil {
		return fmt.Errorf("append %s: %w", column, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing updated: either the value was already present or the profile is missing.
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM profiles WHERE uid = $1)`, uid,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check profile: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}
