package course_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/planea/portal/internal/course"
	"github.com/planea/portal/internal/curriculum"
	"github.com/planea/portal/internal/platform/database/dbtest"
)

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) course.Store {
		return course.NewMemoryStore()
	})
}

func TestPostgresStore(t *testing.T) {
	pool := dbtest.NewPool(t)
	runStoreTests(t, func(t *testing.T) course.Store {
		s, err := course.NewPostgresStore(pool)
		if err != nil {
			t.Fatalf("NewPostgresStore() error = %v", err)
		}
		if _, err := pool.Exec(context.Background(),
			`TRUNCATE template_content, courses, course_templates`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return s
	})
}

func TestNewPostgresStore_NilPool(t *testing.T) {
	if _, err := course.NewPostgresStore(nil); err == nil {
		t.Error("NewPostgresStore(nil) should error")
	}
}

func sampleTemplate(id string) course.Template {
	return course.Template{
		ID:    id,
		Title: "Plantilla " + id,
		Modules: []curriculum.Module{
			{ID: 1, Title: "Planificación", Topics: []curriculum.Topic{
				{ID: "1.1", Title: "Proyecto"}, {ID: "1.2", Title: "Ciclo de vida"},
			}},
		},
		DefaultResources: []course.Resource{},
		CreatedBy:        "admin",
		CreatedAt:        time.Now().UTC().Truncate(time.Second),
	}
}

func sampleInstance(id, templateID, professor string) course.Instance {
	return course.Instance{
		ID:            id,
		TemplateID:    templateID,
		ProfessorID:   professor,
		Title:         "Curso " + id,
		Section:       "A",
		Students:      []string{},
		Announcements: []course.Announcement{},
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	}
}

func runStoreTests(t *testing.T, newStore func(t *testing.T) course.Store) {
	ctx := context.Background()

	t.Run("template round trip", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.GetTemplate(ctx, "missing"); !errors.Is(err, course.ErrNotFound) {
			t.Errorf("GetTemplate(missing) error = %v, want ErrNotFound", err)
		}
		if err := s.PutTemplate(ctx, sampleTemplate("t1")); err != nil {
			t.Fatalf("PutTemplate() error = %v", err)
		}
		got, err := s.GetTemplate(ctx, "t1")
		if err != nil {
			t.Fatalf("GetTemplate() error = %v", err)
		}
		if got.Title != "Plantilla t1" || len(got.Modules) != 1 || len(got.Modules[0].Topics) != 2 {
			t.Errorf("GetTemplate() = %+v", got)
		}
		if got.Modules[0].Topics[1].ID != "1.2" {
			t.Errorf("topic order lost: %+v", got.Modules[0].Topics)
		}

		list, err := s.ListTemplates(ctx)
		if err != nil || len(list) != 1 {
			t.Errorf("ListTemplates() = %d templates, %v", len(list), err)
		}
	})

	t.Run("put template replaces modules keeps resources", func(t *testing.T) {
		s := newStore(t)
		tmpl := sampleTemplate("t1")
		_ = s.PutTemplate(ctx, tmpl)
		_ = s.AppendTemplateResource(ctx, "t1", course.Resource{ID: "r1", Title: "Guía", URL: "https://example.com/g.pdf", Type: course.ResourcePDF})

		tmpl.Title = "Renombrada"
		tmpl.Modules = tmpl.Modules[:0]
		if err := s.PutTemplate(ctx, tmpl); err != nil {
			t.Fatalf("PutTemplate() error = %v", err)
		}
		got, _ := s.GetTemplate(ctx, "t1")
		if got.Title != "Renombrada" || len(got.Modules) != 0 {
			t.Errorf("template not replaced: %+v", got)
		}
		if len(got.DefaultResources) != 1 || got.DefaultResources[0].ID != "r1" {
			t.Errorf("resources = %+v, want r1 kept", got.DefaultResources)
		}
	})

	t.Run("append module numbers sequentially", func(t *testing.T) {
		s := newStore(t)
		_ = s.PutTemplate(ctx, sampleTemplate("t1"))

		m, err := s.AppendTemplateModule(ctx, "t1", curriculum.Module{Title: "Diagnósticos"})
		if err != nil {
			t.Fatalf("AppendTemplateModule() error = %v", err)
		}
		if m.ID != 2 {
			t.Errorf("module id = %d, want 2", m.ID)
		}
		if _, err := s.AppendTemplateModule(ctx, "missing", curriculum.Module{Title: "x"}); !errors.Is(err, course.ErrNotFound) {
			t.Errorf("AppendTemplateModule(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("concurrent module appends get distinct ids", func(t *testing.T) {
		s := newStore(t)
		tmpl := sampleTemplate("t1")
		tmpl.Modules = nil
		_ = s.PutTemplate(ctx, tmpl)

		const n = 6
		var wg sync.WaitGroup
		ids := make([]int, n)
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				m, err := s.AppendTemplateModule(ctx, "t1", curriculum.Module{Title: fmt.Sprintf("M%d", i)})
				if err != nil {
					t.Errorf("AppendTemplateModule() error = %v", err)
					return
				}
				ids[i] = m.ID
			}()
		}
		wg.Wait()

		seen := map[int]bool{}
		for _, id := range ids {
			if id < 1 || id > n || seen[id] {
				t.Errorf("ids = %v, want a permutation of 1..%d", ids, n)
				break
			}
			seen[id] = true
		}
		got, _ := s.GetTemplate(ctx, "t1")
		if len(got.Modules) != n {
			t.Errorf("modules = %d, want %d", len(got.Modules), n)
		}
	})

	t.Run("template content", func(t *testing.T) {
		s := newStore(t)
		_ = s.PutTemplate(ctx, sampleTemplate("t1"))
		content := []curriculum.TopicContent{{TopicID: "1.1", Summary: "Resumen"}}
		if err := s.PutTemplateContent(ctx, "t1", content); err != nil {
			t.Fatalf("PutTemplateContent() error = %v", err)
		}
		content[0].Summary = "Actualizado"
		if err := s.PutTemplateContent(ctx, "t1", content); err != nil {
			t.Fatalf("PutTemplateContent() second error = %v", err)
		}
		got, err := s.TemplateContent(ctx, "t1", "1.1")
		if err != nil || got.Summary != "Actualizado" {
			t.Errorf("TemplateContent() = %+v, %v", got, err)
		}
		if _, err := s.TemplateContent(ctx, "t1", "1.2"); !errors.Is(err, course.ErrNotFound) {
			t.Errorf("TemplateContent(1.2) error = %v, want ErrNotFound", err)
		}
		if err := s.PutTemplateContent(ctx, "missing", content); !errors.Is(err, course.ErrNotFound) {
			t.Errorf("PutTemplateContent(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("instances", func(t *testing.T) {
		s := newStore(t)
		_ = s.PutTemplate(ctx, sampleTemplate("t1"))

		if err := s.CreateInstance(ctx, sampleInstance("c1", "missing", "p1")); !errors.Is(err, course.ErrNotFound) {
			t.Errorf("CreateInstance(missing template) error = %v, want ErrNotFound", err)
		}
		for _, inst := range []course.Instance{
			sampleInstance("c1", "t1", "p1"),
			sampleInstance("c2", "t1", "p1"),
			sampleInstance("c3", "t1", "p2"),
		} {
			if err := s.CreateInstance(ctx, inst); err != nil {
				t.Fatalf("CreateInstance(%s) error = %v", inst.ID, err)
			}
		}

		mine, err := s.InstancesByProfessor(ctx, "p1")
		if err != nil || len(mine) != 2 {
			t.Errorf("InstancesByProfessor(p1) = %d, %v", len(mine), err)
		}
		byID, err := s.InstancesByIDs(ctx, []string{"c3", "nope", "c1"})
		if err != nil || len(byID) != 2 {
			t.Errorf("InstancesByIDs() = %d, %v", len(byID), err)
		}
		if _, err := s.GetInstance(ctx, "nope"); !errors.Is(err, course.ErrNotFound) {
			t.Errorf("GetInstance(nope) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("announcements and publication", func(t *testing.T) {
		s := newStore(t)
		_ = s.PutTemplate(ctx, sampleTemplate("t1"))
		_ = s.CreateInstance(ctx, sampleInstance("c1", "t1", "p1"))

		a := course.Announcement{ID: "a1", Title: "Bienvenida", Content: "Hola", Date: time.Now().UTC().Truncate(time.Second)}
		if err := s.AppendAnnouncement(ctx, "c1", a); err != nil {
			t.Fatalf("AppendAnnouncement() error = %v", err)
		}
		if err := s.AppendAnnouncement(ctx, "nope", a); !errors.Is(err, course.ErrNotFound) {
			t.Errorf("AppendAnnouncement(nope) error = %v, want ErrNotFound", err)
		}

		published, err := s.TogglePublished(ctx, "c1")
		if err != nil || !published {
			t.Errorf("TogglePublished() = %v, %v; want true", published, err)
		}
		if err := s.SetPublished(ctx, "c1", false); err != nil {
			t.Fatalf("SetPublished() error = %v", err)
		}
		got, _ := s.GetInstance(ctx, "c1")
		if got.IsPublished || len(got.Announcements) != 1 || got.Announcements[0].Title != "Bienvenida" {
			t.Errorf("GetInstance() = %+v", got)
		}
		if err := s.SetPublished(ctx, "nope", true); !errors.Is(err, course.ErrNotFound) {
			t.Errorf("SetPublished(nope) error = %v, want ErrNotFound", err)
		}
		if _, err := s.TogglePublished(ctx, "nope"); !errors.Is(err, course.ErrNotFound) {
			t.Errorf("TogglePublished(nope) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("add student is add-unique", func(t *testing.T) {
		s := newStore(t)
		_ = s.PutTemplate(ctx, sampleTemplate("t1"))
		_ = s.CreateInstance(ctx, sampleInstance("c1", "t1", "p1"))

		for _, uid := range []string{"s1", "s2", "s1"} {
			if err := s.AddStudent(ctx, "c1", uid); err != nil {
				t.Fatalf("AddStudent(%s) error = %v", uid, err)
			}
		}
		got, _ := s.GetInstance(ctx, "c1")
		if len(got.Students) != 2 || got.Students[0] != "s1" || got.Students[1] != "s2" {
			t.Errorf("Students = %v, want [s1 s2]", got.Students)
		}
		if err := s.AddStudent(ctx, "nope", "s1"); !errors.Is(err, course.ErrNotFound) {
			t.Errorf("AddStudent(nope) error = %v, want ErrNotFound", err)
		}
	})
}
