package curriculum_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/planea/portal/internal/curriculum"
)

func TestLoader_LoadModules(t *testing.T) {
	dir := setupTestCurriculum(t)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	modules := loader.Modules()
	if len(modules) != 2 {
		t.Fatalf("Modules() = %d modules, want 2", len(modules))
	}
	if modules[0].ID != 1 || modules[1].ID != 2 {
		t.Errorf("Modules() not ordered by id: %d, %d", modules[0].ID, modules[1].ID)
	}
	if loader.TopicCount() != 4 {
		t.Errorf("TopicCount() = %d, want 4", loader.TopicCount())
	}
}

func TestLoader_Module(t *testing.T) {
	dir := setupTestCurriculum(t)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	m, found := loader.Module(2)
	if !found {
		t.Fatal("Module(2) not found")
	}
	if _, ok := m.FindTopic("2.1"); !ok {
		t.Error("module 2 should contain topic 2.1")
	}
	if _, ok := m.FindTopic("1.1"); ok {
		t.Error("module 2 should not contain topic 1.1")
	}

	if _, found := loader.Module(9); found {
		t.Error("Module(9) should not be found")
	}
}

func TestLoader_Content(t *testing.T) {
	dir := setupTestCurriculum(t)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	c, found := loader.Content("1.1")
	if !found {
		t.Fatal("Content(1.1) not found")
	}
	if c.Placeholder {
		t.Error("Content(1.1) should be authored, not placeholder")
	}
	if len(c.Quiz) != 2 {
		t.Errorf("len(Quiz) = %d, want 2", len(c.Quiz))
	}
	if len(c.Flashcards) != 1 {
		t.Errorf("len(Flashcards) = %d, want 1", len(c.Flashcards))
	}
}

func TestLoader_Content_Placeholder(t *testing.T) {
	dir := setupTestCurriculum(t)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	c, found := loader.Content("2.2")
	if !found {
		t.Fatal("Content(2.2) should fall back to placeholder")
	}
	if !c.Placeholder {
		t.Error("Content(2.2) should be a placeholder")
	}
	if c.TopicID != "2.2" {
		t.Errorf("TopicID = %q, want 2.2", c.TopicID)
	}

	if _, found := loader.Content("9.9"); found {
		t.Error("Content(9.9) should not be found")
	}
}

func TestLoader_SkipsInvalidContent(t *testing.T) {
	dir := setupTestCurriculum(t)
	topics := filepath.Join(dir, "topics")

	// Missing summary fails the schema.
	os.WriteFile(filepath.Join(topics, "1.2.yaml"), []byte(`
topic_id: "1.2"
key_points: ["a"]
`), 0o644)

	// Answer index past the last option.
	os.WriteFile(filepath.Join(topics, "2.1.yaml"), []byte(`
topic_id: "2.1"
summary: "Diagnósticos"
quiz:
  - question: "¿?"
    options: ["a", "b"]
    correct_answer_index: 5
`), 0o644)

	// Content for a topic no module declares.
	os.WriteFile(filepath.Join(topics, "7.1.yaml"), []byte(`
topic_id: "7.1"
summary: "Públicas"
`), 0o644)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	for _, id := range []string{"1.2", "2.1"} {
		c, found := loader.Content(id)
		if !found {
			t.Fatalf("Content(%s) should fall back to placeholder", id)
		}
		if !c.Placeholder {
			t.Errorf("Content(%s) should be placeholder after invalid file was skipped", id)
		}
	}
	if _, found := loader.Content("7.1"); found {
		t.Error("Content(7.1) should not be found")
	}
}

func TestLoader_AllContent(t *testing.T) {
	dir := setupTestCurriculum(t)

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	all := loader.AllContent()
	if len(all) != 4 {
		t.Errorf("AllContent() = %d entries, want 4", len(all))
	}
}

func TestLoader_EmptyDir(t *testing.T) {
	dir := t.TempDir()

	loader, err := curriculum.NewLoader(dir)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	if len(loader.Modules()) != 0 {
		t.Errorf("Modules() = %d, want 0 for empty dir", len(loader.Modules()))
	}
}

func TestLoader_TopicInWrongModule(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "modules.yaml"), []byte(`
modules:
  - id: 1
    title: "Uno"
    topics:
      - id: "2.1"
        title: "Fuera de lugar"
`), 0o644)

	if _, err := curriculum.NewLoader(dir); err == nil {
		t.Fatal("NewLoader() should reject a topic filed under the wrong module")
	}
}

func TestLoader_ShippedContent(t *testing.T) {
	loader, err := curriculum.NewLoader(filepath.Join("..", "..", "content"))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	if len(loader.Modules()) != 7 {
		t.Errorf("Modules() = %d, want 7", len(loader.Modules()))
	}
	c, found := loader.Content("1.1")
	if !found || c.Placeholder {
		t.Error("shipped curriculum should carry authored content for 1.1")
	}
}

func setupTestCurriculum(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	os.WriteFile(filepath.Join(dir, "modules.yaml"), []byte(`
modules:
  - id: 2
    title: "Diagnósticos"
    topics:
      - id: "2.1"
        title: "Tipos e instrumentos (Línea base, FODA)"
      - id: "2.2"
        title: "Niveles (Micro y Macrodiagnósticos)"
  - id: 1
    title: "Planificación de proyectos y prácticas de la ingeniería"
    topics:
      - id: "1.1"
        title: "Proyecto y prácticas"
      - id: "1.2"
        title: "Importancia de la planificación"
`), 0o644)

	topics := filepath.Join(dir, "topics")
	os.MkdirAll(topics, 0o755)
	os.WriteFile(filepath.Join(topics, "1.1.yaml"), []byte(`
topic_id: "1.1"
summary: "Un proyecto es un esfuerzo temporal para crear un resultado único."
key_points:
  - "Temporalidad y unicidad."
quiz:
  - question: "¿Qué diferencia un proyecto de una operación?"
    options: ["El costo", "La temporalidad y unicidad"]
    correct_answer_index: 1
  - question: "¿Cuál NO es una restricción clásica?"
    options: ["Tiempo", "Costo", "Alcance", "Suerte"]
    correct_answer_index: 3
flashcards:
  - term: "Proyecto"
    definition: "Esfuerzo temporal llevado a cabo para crear un producto, servicio o resultado único."
`), 0o644)

	return dir
}
