package course

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/planea/portal/internal/curriculum"
)

const (
	MasterTemplateID          = "ingenieria-proyectos-master"
	masterTemplateTitle       = "Planificación de Proyectos de Ingeniería"
	masterTemplateDescription = "Curso fundamental sobre gestión y planificación de proyectos de ingeniería, cubriendo desde la conceptualización hasta la implementación y cierre."
)

// CurriculumSource is the on-disk curriculum the master template is built from.
type CurriculumSource interface {
	Modules() []curriculum.Module
	AllContent() map[string]curriculum.TopicContent
}

// SeedResult reports what SeedTemplate wrote.
type SeedResult struct {
	TemplateID string
	Modules    int
	Topics     int
	Content    int
}

// SeedTemplate writes the curriculum as the master template. Running it again
// refreshes the modules and authored content in place.
func SeedTemplate(ctx context.Context, store Store, src CurriculumSource) (SeedResult, error) {
	modules := src.Modules()
	if len(modules) == 0 {
		return SeedResult{}, fmt.Errorf("%w: curriculum has no modules", ErrInvalid)
	}

	t := Template{
		ID:               MasterTemplateID,
		Title:            masterTemplateTitle,
		Description:      masterTemplateDescription,
		Modules:          modules,
		DefaultResources: []Resource{},
		CreatedBy:        "admin",
	}
	if err := store.PutTemplate(ctx, t); err != nil {
		return SeedResult{}, fmt.Errorf("write master template: %w", err)
	}

	all := src.AllContent()
	ids := make([]string, 0, len(all))
	for id, c := range all {
		if !c.Placeholder {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	authored := make([]curriculum.TopicContent, 0, len(ids))
	for _, id := range ids {
		authored = append(authored, all[id])
	}
	if err := store.PutTemplateContent(ctx, MasterTemplateID, authored); err != nil {
		return SeedResult{}, fmt.Errorf("write template content: %w", err)
	}

	res := SeedResult{
		TemplateID: MasterTemplateID,
		Modules:    len(modules),
		Topics:     t.TopicCount(),
		Content:    len(authored),
	}
	slog.Info("master template seeded",
		"template_id", res.TemplateID,
		"modules", res.Modules,
		"topics", res.Topics,
		"content", res.Content,
	)
	return res, nil
}
