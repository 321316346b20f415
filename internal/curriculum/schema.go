package curriculum

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed topic_content.schema.json
var topicContentSchema string

func compileContentSchema() (*gojsonschema.Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(topicContentSchema))
	if err != nil {
		return nil, fmt.Errorf("compiling topic content schema: %w", err)
	}
	return schema, nil
}

// validateContent checks a decoded YAML document against the topic content schema
// and the option-index bounds the schema cannot express.
func validateContent(schema *gojsonschema.Schema, doc any) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validating topic content: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid topic content: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func checkAnswerBounds(c TopicContent) error {
	for i, q := range c.Quiz {
		if q.CorrectAnswerIndex >= len(q.Options) {
			return fmt.Errorf("quiz question %d: correct_answer_index %d out of range (%d options)",
				i+1, q.CorrectAnswerIndex, len(q.Options))
		}
	}
	return nil
}
