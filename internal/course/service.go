package course

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/planea/portal/internal/curriculum"
	"github.com/planea/portal/internal/profile"
)

// idBatchSize bounds how many ids go into a single InstancesByIDs lookup.
const idBatchSize = 50

// Service implements the template and course workflows used by admins,
// professors and students.
type Service struct {
	store    Store
	profiles profile.Store
	now      func() time.Time
	newID    func() string
}

// NewService creates a course service.
func NewService(store Store, profiles profile.Store) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("course store is required")
	}
	if profiles == nil {
		return nil, fmt.Errorf("profile store is required")
	}
	return &Service{
		store:    store,
		profiles: profiles,
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// ListTemplates returns every template ordered by title using Spanish collation.
func (s *Service) ListTemplates(ctx context.Context) ([]Template, error) {
	templates, err := s.store.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	col := collate.New(language.Spanish, collate.IgnoreCase)
	slices.SortStableFunc(templates, func(a, b Template) int {
		if c := col.CompareString(a.Title, b.Title); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return templates, nil
}

func (s *Service) GetTemplate(ctx context.Context, id string) (*Template, error) {
	return s.store.GetTemplate(ctx, id)
}

// CreateTemplate stores a new empty template authored by createdBy.
func (s *Service) CreateTemplate(ctx context.Context, title, description, createdBy string) (*Template, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	t := Template{
		ID:               s.newID(),
		Title:            title,
		Description:      strings.TrimSpace(description),
		Modules:          []curriculum.Module{},
		DefaultResources: []Resource{},
		CreatedBy:        createdBy,
		CreatedAt:        s.now(),
	}
	if err := s.store.PutTemplate(ctx, t); err != nil {
		return nil, err
	}
	slog.Debug("template created", "template_id", t.ID, "created_by", createdBy)
	return &t, nil
}

// AddModuleToTemplate appends an empty module. Its id is the module count after the append.
func (s *Service) AddModuleToTemplate(ctx context.Context, templateID, title string) (curriculum.Module, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return curriculum.Module{}, fmt.Errorf("%w: module title is required", ErrInvalid)
	}
	return s.store.AppendTemplateModule(ctx, templateID, curriculum.Module{
		Title:  title,
		Topics: []curriculum.Topic{},
	})
}

func (s *Service) AddResourceToTemplate(ctx context.Context, templateID, title, rawURL string, typ ResourceType) (*Resource, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: resource title is required", ErrInvalid)
	}
	if typ != ResourcePDF && typ != ResourceLink {
		return nil, fmt.Errorf("%w: resource type %q", ErrInvalid, typ)
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: resource url %q", ErrInvalid, rawURL)
	}
	r := Resource{ID: s.newID(), Title: title, URL: u.String(), Type: typ}
	if err := s.store.AppendTemplateResource(ctx, templateID, r); err != nil {
		return nil, err
	}
	return &r, nil
}

// InstantiateCourse creates an unpublished course section from an existing template.
func (s *Service) InstantiateCourse(ctx context.Context, templateID, professorID, title, section string) (*Instance, error) {
	title = strings.TrimSpace(title)
	section = strings.TrimSpace(section)
	if title == "" || section == "" {
		return nil, fmt.Errorf("%w: title and section are required", ErrInvalid)
	}
	if professorID == "" {
		return nil, fmt.Errorf("%w: professor is required", ErrInvalid)
	}
	if _, err := s.store.GetTemplate(ctx, templateID); err != nil {
		return nil, err
	}

	inst := Instance{
		ID:            s.newID(),
		TemplateID:    templateID,
		ProfessorID:   professorID,
		Title:         title,
		Section:       section,
		Students:      []string{},
		Announcements: []Announcement{},
		CreatedAt:     s.now(),
	}
	if err := s.store.CreateInstance(ctx, inst); err != nil {
		return nil, err
	}
	slog.Info("course instantiated", "course_id", inst.ID, "template_id", templateID, "professor_id", professorID)
	return &inst, nil
}

func (s *Service) GetCourse(ctx context.Context, id string) (*Instance, error) {
	return s.store.GetInstance(ctx, id)
}

// CoursesByProfessor returns a professor's courses, newest first.
func (s *Service) CoursesByProfessor(ctx context.Context, professorID string) ([]Instance, error) {
	out, err := s.store.InstancesByProfessor(ctx, professorID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(out, func(a, b Instance) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// CoursesByIDs looks ids up in batches and returns the courses found, in the
// order of their first occurrence in ids.
func (s *Service) CoursesByIDs(ctx context.Context, ids []string) ([]Instance, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	found := make(map[string]Instance, len(unique))
	for batch := range slices.Chunk(unique, idBatchSize) {
		got, err := s.store.InstancesByIDs(ctx, batch)
		if err != nil {
			return nil, err
		}
		for _, inst := range got {
			found[inst.ID] = inst
		}
	}

	out := make([]Instance, 0, len(found))
	for _, id := range unique {
		if inst, ok := found[id]; ok {
			out = append(out, inst)
		}
	}
	return out, nil
}

// StudentCourses returns the published courses the student is enrolled in.
func (s *Service) StudentCourses(ctx context.Context, uid string) ([]Instance, error) {
	p, err := s.profiles.Fetch(ctx, uid)
	if errors.Is(err, profile.ErrNotFound) {
		return []Instance{}, nil
	}
	if err != nil {
		return nil, err
	}
	all, err := s.CoursesByIDs(ctx, p.EnrolledCourses)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(inst Instance) bool { return !inst.IsPublished }), nil
}

func (s *Service) AddAnnouncement(ctx context.Context, courseID, title, content string) (*Announcement, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return nil, fmt.Errorf("%w: announcement title and content are required", ErrInvalid)
	}
	a := Announcement{ID: s.newID(), Title: title, Content: content, Date: s.now()}
	if err := s.store.AppendAnnouncement(ctx, courseID, a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Service) SetPublished(ctx context.Context, courseID string, published bool) error {
	return s.store.SetPublished(ctx, courseID, published)
}

func (s *Service) TogglePublished(ctx context.Context, courseID string) (bool, error) {
	return s.store.TogglePublished(ctx, courseID)
}

// EnrollStudent adds uid to the course roster and the course to the student's
// enrollments. Both updates are add-unique, so repeating it is harmless.
func (s *Service) EnrollStudent(ctx context.Context, courseID, uid string) error {
	if uid == "" {
		return fmt.Errorf("%w: student is required", ErrInvalid)
	}
	if _, err := s.profiles.Fetch(ctx, uid); err != nil {
		return err
	}
	if err := s.store.AddStudent(ctx, courseID, uid); err != nil {
		return err
	}
	if err := s.profiles.AddEnrolledCourse(ctx, uid, courseID); err != nil {
		return fmt.Errorf("record enrollment: %w", err)
	}
	slog.Info("student enrolled", "course_id", courseID, "uid", uid)
	return nil
}

// TemplateContent returns authored content stored with the template for topicID.
func (s *Service) TemplateContent(ctx context.Context, templateID, topicID string) (*curriculum.TopicContent, error) {
	return s.store.TemplateContent(ctx, templateID, topicID)
}
