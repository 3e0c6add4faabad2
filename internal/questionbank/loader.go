// Package questionbank loads the subject → questions mapping that feeds the
// quiz engine. Files are JSON (the mcq.json shape) or YAML with the same shape.
package questionbank

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const questionSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "array",
    "items": {
      "type": "object",
      "required": ["question", "options", "answer"],
      "properties": {
        "question": {"type": "string"},
        "options": {"type": "array", "minItems": 2, "items": {"type": "string"}},
        "answer": {"type": "string"}
      }
    }
  }
}`

var schema = mustSchema(questionSchema)

func mustSchema(s string) *gojsonschema.Schema {
	sch, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("questionbank: invalid schema: %v", err))
	}
	return sch
}

// Set is one subject's questions as they appear in a document.
type Set struct {
	Subject   string
	Questions []Question
}

// Bank is an immutable set of question lists keyed by subject. Subjects keep
// the order in which the question files define them.
type Bank struct {
	subjects []string
	sets     map[string][]Question
}

// Empty returns a bank with no subjects.
func Empty() *Bank {
	return &Bank{sets: map[string][]Question{}}
}

// New builds a bank from an in-memory mapping. The slices are copied and,
// since a map has no order, subjects are sorted by English collation.
func New(sets map[string][]Question) *Bank {
	b := Empty()
	for subject, qs := range sets {
		b.sets[subject] = append([]Question(nil), qs...)
	}
	b.sortSubjects()
	return b
}

// Load reads a question file, or every .json/.yaml/.yml file under a
// directory in lexical order. Later files override the questions of subjects
// defined by earlier ones; the subject keeps its first position.
func Load(path string) (*Bank, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("loading questions: %w", err)
	}

	b := Empty()
	if !info.IsDir() {
		if err := b.loadFile(path); err != nil {
			return nil, err
		}
	} else {
		err := filepath.Walk(path, func(p string, fi os.FileInfo, err error) error {
			if err != nil || fi.IsDir() || formatOf(p) == "" {
				return nil
			}
			return b.loadFile(p)
		})
		if err != nil {
			return nil, err
		}
	}

	return b, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	}
	return ""
}

func (b *Bank) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	sets, err := Parse(data, formatOf(path))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	for _, set := range sets {
		if _, dup := b.sets[set.Subject]; dup {
			slog.Warn("subject defined twice, keeping the later file", "subject", set.Subject, "path", path)
		} else {
			b.subjects = append(b.subjects, set.Subject)
		}
		b.sets[set.Subject] = set.Questions
	}
	return nil
}

// Parse decodes and validates a question document. format is "json" or "yaml".
// Subjects are returned in document order; a subject repeated within the
// document keeps its first position and its last questions.
func Parse(data []byte, format string) ([]Set, error) {
	var doc gojsonschema.JSONLoader
	switch format {
	case "json":
		doc = gojsonschema.NewBytesLoader(data)
	case "yaml":
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		doc = gojsonschema.NewGoLoader(generic)
	default:
		return nil, fmt.Errorf("unsupported question format %q", format)
	}

	result, err := schema.Validate(doc)
	if err != nil {
		return nil, fmt.Errorf("invalid question document: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("question document does not match schema: %s", strings.Join(msgs, "; "))
	}

	var sets []Set
	if format == "json" {
		sets, err = decodeJSON(data)
	} else {
		sets, err = decodeYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding questions: %w", err)
	}

	for _, set := range sets {
		for i, q := range set.Questions {
			if !q.AnswerListed() {
				slog.Warn("answer is not one of the options; question can never be answered correctly",
					"subject", set.Subject,
					"question_index", i,
				)
			}
		}
	}
	return sets, nil
}

// decodeJSON walks the top-level object token by token so key order survives.
func decodeJSON(data []byte) ([]Set, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("top level must be an object")
	}

	var sets []Set
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		subject, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key %v", tok)
		}
		var qs []Question
		if err := dec.Decode(&qs); err != nil {
			return nil, fmt.Errorf("subject %q: %w", subject, err)
		}
		sets = addSet(sets, Set{Subject: subject, Questions: qs})
	}
	return sets, nil
}

// decodeYAML reads the top-level mapping through yaml.Node, which keeps key
// order.
func decodeYAML(data []byte) ([]Set, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	m := root.Content[0]
	if m.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("top level must be a mapping")
	}

	var sets []Set
	for i := 0; i+1 < len(m.Content); i += 2 {
		subject := m.Content[i].Value
		var qs []Question
		if err := m.Content[i+1].Decode(&qs); err != nil {
			return nil, fmt.Errorf("subject %q: %w", subject, err)
		}
		sets = addSet(sets, Set{Subject: subject, Questions: qs})
	}
	return sets, nil
}

func addSet(sets []Set, set Set) []Set {
	for i := range sets {
		if sets[i].Subject == set.Subject {
			sets[i].Questions = set.Questions
			return sets
		}
	}
	return append(sets, set)
}

func (b *Bank) sortSubjects() {
	b.subjects = b.subjects[:0]
	for subject := range b.sets {
		b.subjects = append(b.subjects, subject)
	}
	collate.New(language.English).SortStrings(b.subjects)
}

// Questions returns the subject's questions. The slice is shared and must not
// be modified.
func (b *Bank) Questions(subject string) ([]Question, bool) {
	qs, ok := b.sets[subject]
	return qs, ok
}

// Subjects returns all subject names in bank order.
func (b *Bank) Subjects() []string {
	return append([]string(nil), b.subjects...)
}

// Search returns the subjects whose name contains filter, ignoring case.
// A blank filter matches everything.
func (b *Bank) Search(filter string) []string {
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(filter))
	if needle == "" {
		return b.Subjects()
	}

	var out []string
	for _, subject := range b.subjects {
		if strings.Contains(fold.String(subject), needle) {
			out = append(out, subject)
		}
	}
	return out
}
