package curriculum

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic is a leaf content unit identified by a dotted id ("<module>.<topic>").
type Topic struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
}

// Module is a numbered group of topics forming a curriculum unit.
type Module struct {
	ID     int     `yaml:"id" json:"id"`
	Title  string  `yaml:"title" json:"title"`
	Topics []Topic `yaml:"topics" json:"topics"`
}

// FindTopic looks up a topic by id inside this module only.
func (m Module) FindTopic(id string) (Topic, bool) {
	for _, t := range m.Topics {
		if t.ID == id {
			return t, true
		}
	}
	return Topic{}, false
}

// TopicIDs returns the ids of the module's topics in display order.
func (m Module) TopicIDs() []string {
	ids := make([]string, 0, len(m.Topics))
	for _, t := range m.Topics {
		ids = append(ids, t.ID)
	}
	return ids
}

// QuizQuestion is a single multiple-choice question.
type QuizQuestion struct {
	Question           string   `yaml:"question" json:"question"`
	Options            []string `yaml:"options" json:"options"`
	CorrectAnswerIndex int      `yaml:"correct_answer_index" json:"correct_answer_index"`
}

// Flashcard pairs a term with its definition.
type Flashcard struct {
	Term       string `yaml:"term" json:"term"`
	Definition string `yaml:"definition" json:"definition"`
}

// TopicContent is the study material attached to a topic.
type TopicContent struct {
	TopicID          string         `yaml:"topic_id" json:"topic_id"`
	Summary          string         `yaml:"summary" json:"summary"`
	KeyPoints        []string       `yaml:"key_points" json:"key_points"`
	RealWorldExample string         `yaml:"real_world_example" json:"real_world_example"`
	Quiz             []QuizQuestion `yaml:"quiz" json:"quiz"`
	Flashcards       []Flashcard    `yaml:"flashcards" json:"flashcards"`
	MindMapURL       string         `yaml:"mind_map_url" json:"mind_map_url"`
	InfographicURL   string         `yaml:"infographic_url" json:"infographic_url"`
	PresentationURL  string         `yaml:"presentation_url" json:"presentation_url"`
	Placeholder      bool           `yaml:"-" json:"placeholder,omitempty"`
}

// TopicID builds the dotted id for topic t of module m.
func TopicID(module, topic int) string {
	return strconv.Itoa(module) + "." + strconv.Itoa(topic)
}

// ParseTopicID splits a dotted topic id into its module and topic numbers.
func ParseTopicID(id string) (module, topic int, err error) {
	m, t, ok := strings.Cut(id, ".")
	if !ok {
		return 0, 0, fmt.Errorf("topic id %q: missing '.'", id)
	}
	if module, err = strconv.Atoi(m); err != nil || module < 1 {
		return 0, 0, fmt.Errorf("topic id %q: invalid module number", id)
	}
	if topic, err = strconv.Atoi(t); err != nil || topic < 1 {
		return 0, 0, fmt.Errorf("topic id %q: invalid topic number", id)
	}
	return module, topic, nil
}
