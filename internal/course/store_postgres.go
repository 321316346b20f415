package course

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planea/portal/internal/curriculum"
)

const dbTimeout = 5 * time.Second

// foreignKeyViolation is the SQLSTATE raised when a referenced template is missing.
const foreignKeyViolation = "23503"

// PostgresStore is a PostgreSQL-backed Store. Nested collections live in JSONB
// columns and are appended in place.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a PostgreSQL-backed course store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{pool: pool}, nil
}

const templateColumns = `id, title, description, modules, default_resources, created_by, created_at`

func scanTemplate(row pgx.Row) (Template, error) {
	var (
		t         Template
		modules   []byte
		resources []byte
	)
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &modules, &resources, &t.CreatedBy, &t.CreatedAt); err != nil {
		return Template{}, err
	}
	if err := json.Unmarshal(modules, &t.Modules); err != nil {
		return Template{}, fmt.Errorf("decode modules: %w", err)
	}
	if err := json.Unmarshal(resources, &t.DefaultResources); err != nil {
		return Template{}, fmt.Errorf("decode resources: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListTemplates(ctx context.Context) ([]Template, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT `+templateColumns+` FROM course_templates`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetTemplate(ctx context.Context, id string) (*Template, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	t, err := scanTemplate(s.pool.QueryRow(ctx,
		`SELECT `+templateColumns+` FROM course_templates WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) PutTemplate(ctx context.Context, t Template) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	modules, err := json.Marshal(nonNil(t.Modules))
	if err != nil {
		return fmt.Errorf("encode modules: %w", err)
	}
	resources, err := json.Marshal(nonNil(t.DefaultResources))
	if err != nil {
		return fmt.Errorf("encode resources: %w", err)
	}
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO course_templates (id, title, description, modules, default_resources, created_by, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE
		 SET title = EXCLUDED.title,
		     description = EXCLUDED.description,
		     modules = EXCLUDED.modules`,
		t.ID, t.Title, t.Description, modules, resources, t.CreatedBy, createdAt,
	)
	if err != nil {
		return fmt.Errorf("put template: %w", err)
	}
	return nil
}

// AppendTemplateModule assigns the id inside the UPDATE so concurrent appends
// never reuse a number.
func (s *PostgresStore) AppendTemplateModule(ctx context.Context, templateID string, m curriculum.Module) (curriculum.Module, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	m.Topics = nonNil(m.Topics)
	raw, err := json.Marshal(m)
	if err != nil {
		return curriculum.Module{}, fmt.Errorf("encode module: %w", err)
	}

	var id int
	err = s.pool.QueryRow(ctx,
		`UPDATE course_templates
		 SET modules = modules || jsonb_build_array(
		     jsonb_set($2::jsonb, '{id}', to_jsonb(jsonb_array_length(modules) + 1)))
		 WHERE id = $1
		 RETURNING jsonb_array_length(modules)`,
		templateID, raw,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return curriculum.Module{}, ErrNotFound
	}
	if err != nil {
		return curriculum.Module{}, fmt.Errorf("append module: %w", err)
	}
	m.ID = id
	return m, nil
}

func (s *PostgresStore) AppendTemplateResource(ctx context.Context, templateID string, r Resource) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode resource: %w", err)
	}
	return s.appendJSON(ctx, "course_templates", "default_resources", templateID, raw)
}

func (s *PostgresStore) PutTemplateContent(ctx context.Context, templateID string, content []curriculum.TopicContent) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	batch := &pgx.Batch{}
	for _, c := range content {
		raw, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode content %s: %w", c.TopicID, err)
		}
		batch.Queue(
			`INSERT INTO template_content (template_id, topic_id, content)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (template_id, topic_id) DO UPDATE SET content = EXCLUDED.content`,
			templateID, c.TopicID, raw,
		)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("put template content: %w", err)
	}
	return nil
}

func (s *PostgresStore) TemplateContent(ctx context.Context, templateID, topicID string) (*curriculum.TopicContent, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT content FROM template_content WHERE template_id = $1 AND topic_id = $2`,
		templateID, topicID,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template content: %w", err)
	}
	var c curriculum.TopicContent
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode template content: %w", err)
	}
	return &c, nil
}

const instanceColumns = `id, template_id, professor_id, title, section, is_published, students, announcements, created_at`

func scanInstance(row pgx.Row) (Instance, error) {
	var (
		inst          Instance
		announcements []byte
	)
	err := row.Scan(&inst.ID, &inst.TemplateID, &inst.ProfessorID, &inst.Title, &inst.Section,
		&inst.IsPublished, &inst.Students, &announcements, &inst.CreatedAt)
	if err != nil {
		return Instance{}, err
	}
	if err := json.Unmarshal(announcements, &inst.Announcements); err != nil {
		return Instance{}, fmt.Errorf("decode announcements: %w", err)
	}
	if inst.Students == nil {
		inst.Students = []string{}
	}
	return inst, nil
}

func (s *PostgresStore) queryInstances(ctx context.Context, where string, arg any) ([]Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.pool.Query(ctx, `SELECT `+instanceColumns+` FROM courses WHERE `+where, arg)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	defer rows.Close()

	var out []Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateInstance(ctx context.Context, inst Instance) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	announcements, err := json.Marshal(nonNil(inst.Announcements))
	if err != nil {
		return fmt.Errorf("encode announcements: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO courses (`+instanceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		inst.ID, inst.TemplateID, inst.ProfessorID, inst.Title, inst.Section,
		inst.IsPublished, nonNil(inst.Students), announcements, inst.CreatedAt,
	)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetInstance(ctx context.Context, id string) (*Instance, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	inst, err := scanInstance(s.pool.QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM courses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get course: %w", err)
	}
	return &inst, nil
}

func (s *PostgresStore) InstancesByProfessor(ctx context.Context, professorID string) ([]Instance, error) {
	return s.queryInstances(ctx, `professor_id = $1`, professorID)
}

func (s *PostgresStore) InstancesByIDs(ctx context.Context, ids []string) ([]Instance, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryInstances(ctx, `id = ANY($1)`, ids)
}

func (s *PostgresStore) AppendAnnouncement(ctx context.Context, courseID string, a Announcement) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode announcement: %w", err)
	}
	return s.appendJSON(ctx, "courses", "announcements", courseID, raw)
}

func (s *PostgresStore) SetPublished(ctx context.Context, courseID string, published bool) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `UPDATE courses SET is_published = $2 WHERE id = $1`, courseID, published)
	if err != nil {
		return fmt.Errorf("set published: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TogglePublished(ctx context.Context, courseID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var published bool
	err := s.pool.QueryRow(ctx,
		`UPDATE courses SET is_published = NOT is_published WHERE id = $1 RETURNING is_published`,
		courseID,
	).Scan(&published)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggle published: %w", err)
	}
	return published, nil
}

func (s *PostgresStore) AddStudent(ctx context.Context, courseID, uid string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		`UPDATE courses
		 SET students = array_append(students, $2)
		 WHERE id = $1 AND NOT ($2 = ANY(students))`,
		courseID, uid,
	)
	if err != nil {
		return fmt.Errorf("add student: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1)`, courseID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check course: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// table and column are always constants from this file.
func (s *PostgresStore) appendJSON(ctx context.Context, table, column, id string, raw []byte) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+table+` SET `+column+` = `+column+` || jsonb_build_array($2::jsonb) WHERE id = $1`,
		id, raw,
	)
	if err != nil {
		return fmt.Errorf("append %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
