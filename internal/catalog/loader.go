package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalogs/iso42001.yaml
var defaultCatalogYAML []byte

// CatalogFile represents the YAML structure of a catalog document
type CatalogFile struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Sections    []SectionFile `yaml:"sections"`
}

// SectionFile represents one section in a catalog document
type SectionFile struct {
	Title       string         `yaml:"title"`
	Description string         `yaml:"description"`
	Questions   []QuestionFile `yaml:"questions"`
}

// QuestionFile represents one question in a catalog document
type QuestionFile struct {
	ID             string `yaml:"id"`
	Text           string `yaml:"text"`
	Recommendation string `yaml:"recommendation"`
}

// Default returns the embedded ISO/IEC 42001 catalog
func Default() (*Catalog, error) {
	return Parse(defaultCatalogYAML)
}

// DefaultYAML returns the raw embedded catalog document
func DefaultYAML() []byte {
	out := make([]byte, len(defaultCatalogYAML))
	copy(out, defaultCatalogYAML)
	return out
}

// Load reads and validates a catalog from a YAML file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return Parse(data)
}

// Resolve loads the catalog at path, or the embedded default when path is empty
func Resolve(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	return Load(path)
}

// Parse validates a YAML catalog document against the catalog schema and
// builds the catalog from it.
func Parse(data []byte) (*Catalog, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("%w: %w", ErrInvalidDocument, err)}
	}
	if err := validateDocument(raw); err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("%w: %w", ErrInvalidDocument, err)}
	}

	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("%w: %w", ErrInvalidDocument, err)}
	}

	sections := make([]Section, len(file.Sections))
	for i, sf := range file.Sections {
		sec := Section{
			Title:       sf.Title,
			Description: sf.Description,
			Questions:   make([]Question, len(sf.Questions)),
		}
		for j, qf := range sf.Questions {
			sec.Questions[j] = Question{
				ID:             qf.ID,
				Text:           qf.Text,
				Recommendation: qf.Recommendation,
			}
		}
		sections[i] = sec
	}

	return New(file.Name, file.Description, sections)
}
