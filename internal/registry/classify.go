package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultLabel is the affiliation assigned when no classification source
// knows the subject.
const DefaultLabel = "resident"

// Classifier assigns an affiliation label to a subject at first
// registration. The label sticks for the subject's lifetime.
type Classifier interface {
	Classify(id, name string) string
}

// Static classifies every subject with the same label.
type Static struct {
	label string
}

// NewStatic returns a constant classifier. An empty label falls back to
// [DefaultLabel].
func NewStatic(label string) Static {
	if label == "" {
		label = DefaultLabel
	}
	return Static{label: label}
}

func (s Static) Classify(string, string) string {
	return s.label
}

// Table classifies subjects from an id-to-label table with a default for
// everyone else.
type Table struct {
	Default  string            `yaml:"default"`
	Subjects map[string]string `yaml:"subjects"`
}

// LoadTable reads a classification table from a YAML file:
//
//	default: resident
//	subjects:
//	  "4e5dc8a3-...": staff
//	  "91af22b0-...": scout
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classification table %s: %w", path, err)
	}
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse classification table %s: %w", path, err)
	}
	if t.Default == "" {
		t.Default = DefaultLabel
	}
	return &t, nil
}

func (t *Table) Classify(id, _ string) string {
	if label, ok := t.Subjects[id]; ok && label != "" {
		return label
	}
	return t.Default
}
