package curriculum

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

const (
	modulesFile = "modules.yaml"
	topicsDir   = "topics"
)

// Loader loads and caches curriculum modules and topic content from the filesystem.
//
// Layout under the root directory:
//
//	modules.yaml        list of modules and their topics
//	topics/<id>.yaml    content for one topic (validated against the content schema)
type Loader struct {
	rootDir string
	schema  *gojsonschema.Schema
	modules []Module
	byID    map[int]Module
	content map[string]TopicContent
	mu      sync.RWMutex
}

// NewLoader creates a new curriculum loader and loads all content.
func NewLoader(rootDir string) (*Loader, error) {
	schema, err := compileContentSchema()
	if err != nil {
		return nil, err
	}

	l := &Loader{
		rootDir: rootDir,
		schema:  schema,
		byID:    make(map[int]Module),
		content: make(map[string]TopicContent),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading curriculum: %w", err)
	}

	slog.Info("curriculum loaded", "modules", len(l.modules), "topic_content", len(l.content))
	return l, nil
}

// Modules returns all modules ordered by id.
func (l *Loader) Modules() []Module {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Module(nil), l.modules...)
}

// Module returns a module by id.
func (l *Loader) Module(id int) (Module, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.byID[id]
	return m, ok
}

// TopicCount returns the number of topics across all modules.
func (l *Loader) TopicCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, m := range l.modules {
		n += len(m.Topics)
	}
	return n
}

// Content returns the study material for a topic. Topics that exist in a module but
// have no content file get placeholder material. Unknown topics return false.
func (l *Loader) Content(topicID string) (TopicContent, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if c, ok := l.content[topicID]; ok {
		return c, true
	}
	topic, ok := l.findTopic(topicID)
	if !ok {
		return TopicContent{}, false
	}
	return Placeholder(topic), true
}

// AllContent returns loaded and placeholder content for every topic, keyed by topic id.
func (l *Loader) AllContent() map[string]TopicContent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]TopicContent)
	for _, m := range l.modules {
		for _, t := range m.Topics {
			if c, ok := l.content[t.ID]; ok {
				out[t.ID] = c
			} else {
				out[t.ID] = Placeholder(t)
			}
		}
	}
	return out
}

func (l *Loader) findTopic(id string) (Topic, bool) {
	moduleID, _, err := ParseTopicID(id)
	if err != nil {
		return Topic{}, false
	}
	m, ok := l.byID[moduleID]
	if !ok {
		return Topic{}, false
	}
	return m.FindTopic(id)
}

func (l *Loader) loadAll() error {
	if err := l.loadModules(filepath.Join(l.rootDir, modulesFile)); err != nil {
		return err
	}

	dir := filepath.Join(l.rootDir, topicsDir)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			return l.loadContent(path)
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Loader) loadModules(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("curriculum has no modules file", "path", path)
		return nil
	}
	if err != nil {
		return err
	}

	var doc struct {
		Modules []Module `yaml:"modules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	sort.Slice(doc.Modules, func(i, j int) bool { return doc.Modules[i].ID < doc.Modules[j].ID })

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range doc.Modules {
		if _, dup := l.byID[m.ID]; dup {
			return fmt.Errorf("module %d declared twice", m.ID)
		}
		for _, t := range m.Topics {
			moduleID, _, err := ParseTopicID(t.ID)
			if err != nil {
				return fmt.Errorf("module %d: %w", m.ID, err)
			}
			if moduleID != m.ID {
				return fmt.Errorf("module %d: topic %q belongs to module %d", m.ID, t.ID, moduleID)
			}
		}
		l.byID[m.ID] = m
		l.modules = append(l.modules, m)
	}
	return nil
}

func (l *Loader) loadContent(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		slog.Warn("skipping invalid topic YAML", "path", path, "error", err)
		return nil
	}
	if err := validateContent(l.schema, raw); err != nil {
		slog.Warn("skipping topic content", "path", path, "error", err)
		return nil
	}

	var content TopicContent
	if err := yaml.Unmarshal(data, &content); err != nil {
		slog.Warn("skipping invalid topic YAML", "path", path, "error", err)
		return nil
	}
	if err := checkAnswerBounds(content); err != nil {
		slog.Warn("skipping topic content", "path", path, "error", err)
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.findTopic(content.TopicID); !ok {
		slog.Warn("skipping content for unknown topic", "path", path, "topic_id", content.TopicID)
		return nil
	}
	l.content[content.TopicID] = content
	return nil
}
