package catalog

// Question is a single assessable requirement
type Question struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	Recommendation string `json:"recommendation"`
}

// Section groups questions that are answered on one page
type Section struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// Catalog is the ordered, immutable set of sections for an assessment.
// Section order defines both display order and the navigable index space.
type Catalog struct {
	name        string
	description string
	sections    []Section
	index       map[string]int // question id -> position in flattened order
	questions   []Question
}

// New validates the sections and builds a catalog. An empty catalog, a blank
// question id or a duplicated question id is a *ConfigurationError.
func New(name, description string, sections []Section) (*Catalog, error) {
	if len(sections) == 0 {
		return nil, &ConfigurationError{Catalog: name, Err: ErrEmptyCatalog}
	}

	c := &Catalog{
		name:        name,
		description: description,
		sections:    make([]Section, len(sections)),
		index:       make(map[string]int),
	}

	for i, sec := range sections {
		qs := make([]Question, len(sec.Questions))
		copy(qs, sec.Questions)
		c.sections[i] = Section{
			Title:       sec.Title,
			Description: sec.Description,
			Questions:   qs,
		}

		for _, q := range qs {
			if q.ID == "" {
				return nil, &ConfigurationError{Catalog: name, Section: i, Err: ErrBlankQuestionID}
			}
			if _, dup := c.index[q.ID]; dup {
				return nil, &ConfigurationError{Catalog: name, Section: i, QuestionID: q.ID, Err: ErrDuplicateQuestion}
			}
			c.index[q.ID] = len(c.questions)
			c.questions = append(c.questions, q)
		}
	}

	if len(c.questions) == 0 {
		return nil, &ConfigurationError{Catalog: name, Err: ErrEmptyCatalog}
	}

	return c, nil
}

// Name returns the catalog's display name
func (c *Catalog) Name() string {
	return c.name
}

// Description returns the catalog's description
func (c *Catalog) Description() string {
	return c.description
}

// SectionCount returns the number of sections
func (c *Catalog) SectionCount() int {
	return len(c.sections)
}

// SectionAt returns the section at index. The returned section shares no
// storage with the catalog.
func (c *Catalog) SectionAt(index int) (Section, bool) {
	if index < 0 || index >= len(c.sections) {
		return Section{}, false
	}
	sec := c.sections[index]
	qs := make([]Question, len(sec.Questions))
	copy(qs, sec.Questions)
	sec.Questions = qs
	return sec, true
}

// Sections returns a copy of all sections in catalog order
func (c *Catalog) Sections() []Section {
	out := make([]Section, len(c.sections))
	for i := range c.sections {
		out[i], _ = c.SectionAt(i)
	}
	return out
}

// AllQuestions returns every question flattened in catalog order
func (c *Catalog) AllQuestions() []Question {
	out := make([]Question, len(c.questions))
	copy(out, c.questions)
	return out
}

// QuestionCount returns the total number of questions
func (c *Catalog) QuestionCount() int {
	return len(c.questions)
}

// Question looks up a question by id
func (c *Catalog) Question(id string) (Question, bool) {
	i, ok := c.index[id]
	if !ok {
		return Question{}, false
	}
	return c.questions[i], true
}

// Has reports whether id is a question of this catalog
func (c *Catalog) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}
