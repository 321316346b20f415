package course

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/planea/portal/internal/profile"
)

const rosterSheet = "Alumnos"

var rosterHeader = []any{"UID", "Nombre", "Correo", "Temas completados", "Avance %"}

// RosterRow is one student line of a course roster.
type RosterRow struct {
	UID       string
	Name      string
	Email     string
	Completed int
	Percent   int
}

// BuildRoster computes roster rows for the given students against the
// template's topics. Completed topics outside the template are not counted.
func BuildRoster(t Template, students []profile.Profile) []RosterRow {
	total := t.TopicCount()
	rows := make([]RosterRow, 0, len(students))
	for _, p := range students {
		done := 0
		for _, m := range t.Modules {
			for _, topic := range m.Topics {
				if p.HasCompleted(topic.ID) {
					done++
				}
			}
		}
		pct := 0
		if total > 0 {
			pct = done * 100 / total
		}
		rows = append(rows, RosterRow{
			UID:       p.UID,
			Name:      profile.DisplayName(p.Name, p.Email),
			Email:     p.Email,
			Completed: done,
			Percent:   pct,
		})
	}
	return rows
}

// ExportRoster writes rows as an xlsx workbook with a single sheet.
func ExportRoster(w io.Writer, rows []RosterRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rosterSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetSheetRow(rosterSheet, "A1", &rosterHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(rosterSheet, "A1", "E1", header); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(rosterSheet, "A", "E", 22); err != nil {
		return fmt.Errorf("column width: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{r.UID, r.Name, r.Email, r.Completed, r.Percent}
		if err := f.SetSheetRow(rosterSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Roster loads a course, its template and its students' profiles and returns
// the roster rows. Students without a profile are skipped.
func (s *Service) Roster(ctx context.Context, courseID string) (*Instance, []RosterRow, error) {
	inst, err := s.store.GetInstance(ctx, courseID)
	if err != nil {
		return nil, nil, err
	}
	t, err := s.store.GetTemplate(ctx, inst.TemplateID)
	if err != nil {
		return nil, nil, fmt.Errorf("load template %s: %w", inst.TemplateID, err)
	}
	students, err := profile.FetchMany(ctx, s.profiles, inst.Students)
	if err != nil {
		return nil, nil, fmt.Errorf("load students: %w", err)
	}
	return inst, BuildRoster(*t, students), nil
}
