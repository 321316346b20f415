// Package course manages admin-authored course templates and the course sections
// professors instantiate from them.
package course

import (
	"errors"
	"time"

	"github.com/planea/portal/internal/curriculum"
)

var (
	// ErrNotFound is returned when a template or course id does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalid is returned when required fields are missing or malformed.
	ErrInvalid = errors.New("invalid input")
)

// ResourceType is the kind of a template resource.
type ResourceType string

const (
	ResourcePDF  ResourceType = "pdf"
	ResourceLink ResourceType = "link"
)

// Resource is a document or link attached to a template.
type Resource struct {
	ID    string       `json:"id"`
	Title string       `json:"title"`
	URL   string       `json:"url"`
	Type  ResourceType `json:"type"`
}

// Template is a reusable course skeleton.
type Template struct {
	ID               string              `json:"id"`
	Title            string              `json:"title"`
	Description      string              `json:"description"`
	Modules          []curriculum.Module `json:"modules"`
	DefaultResources []Resource          `json:"default_resources"`
	CreatedBy        string              `json:"created_by"`
	CreatedAt        time.Time           `json:"created_at"`
}

// TopicCount returns the number of topics across the template's modules.
func (t Template) TopicCount() int {
	n := 0
	for _, m := range t.Modules {
		n += len(m.Topics)
	}
	return n
}

// Announcement is a message a professor posts to a course.
type Announcement struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Date    time.Time `json:"date"`
}

// Instance is a professor's concrete course section derived from a template.
type Instance struct {
	ID            string         `json:"id"`
	TemplateID    string         `json:"template_id"`
	ProfessorID   string         `json:"professor_id"`
	Title         string         `json:"title"`
	Section       string         `json:"section"`
	IsPublished   bool           `json:"is_published"`
	Students      []string       `json:"students"`
	Announcements []Announcement `json:"announcements"`
	CreatedAt     time.Time      `json:"created_at"`
}

func (i Instance) clone() Instance {
	out := i
	out.Students = append([]string{}, i.Students...)
	out.Announcements = append([]Announcement{}, i.Announcements...)
	return out
}

func (t Template) clone() Template {
	out := t
	out.Modules = make([]curriculum.Module, len(t.Modules))
	for i, m := range t.Modules {
		m.Topics = append([]curriculum.Topic{}, m.Topics...)
		out.Modules[i] = m
	}
	out.DefaultResources = append([]Resource{}, t.DefaultResources...)
	return out
}
