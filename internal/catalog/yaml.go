package catalog

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/paulexconde/camperportal/internal/models"
	"gopkg.in/yaml.v3"
)

// Namespace for ids derived from non-UUID keys in catalog files.
var idNamespace = uuid.MustParse("6f1c2d44-8b0e-4c5a-9a43-1f0b6f7f2a10")

type fileCatalog struct {
	Sections []fileSection `yaml:"sections"`
}

type fileSection struct {
	ID                      string         `yaml:"id"`
	Title                   string         `yaml:"title"`
	Description             string         `yaml:"description"`
	OrderIndex              int            `yaml:"order_index"`
	IsActive                *bool          `yaml:"is_active"`
	VisibleBeforeAcceptance *bool          `yaml:"visible_before_acceptance"`
	ShowWhenStatus          string         `yaml:"show_when_status"`
	Questions               []fileQuestion `yaml:"questions"`
}

type fileQuestion struct {
	ID              string                  `yaml:"id"`
	Text            string                  `yaml:"text"`
	Type            string                  `yaml:"type"`
	Options         []string                `yaml:"options"`
	Required        bool                    `yaml:"required"`
	IsActive        *bool                   `yaml:"is_active"`
	OrderIndex      *int                    `yaml:"order_index"`
	HelpText        string                  `yaml:"help_text"`
	Placeholder     string                  `yaml:"placeholder"`
	ValidationRules []models.ValidationRule `yaml:"validation_rules"`
	ShowIfQuestion  string                  `yaml:"show_if_question"`
	ShowIfAnswer    *string                 `yaml:"show_if_answer"`
	ShowWhenStatus  string                  `yaml:"show_when_status"`
}

// LoadFile reads a catalog YAML file.
func LoadFile(path string) ([]models.Section, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a catalog document. Ids may be UUIDs or arbitrary keys; keys are
// turned into stable UUIDs so triggers can refer to them by name. Sections and
// questions are active unless stated otherwise, and a question without an
// order_index takes its position in the list.
func Parse(raw []byte) ([]models.Section, error) {
	var doc fileCatalog
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	sections := make([]models.Section, 0, len(doc.Sections))
	for i, fs := range doc.Sections {
		if fs.ID == "" {
			return nil, fmt.Errorf("section %d has no id", i+1)
		}

		section := models.Section{
			ID:                      ParseID(fs.ID),
			Title:                   fs.Title,
			Description:             fs.Description,
			OrderIndex:              fs.OrderIndex,
			IsActive:                orTrue(fs.IsActive),
			VisibleBeforeAcceptance: orTrue(fs.VisibleBeforeAcceptance),
			Questions:               make([]models.Question, 0, len(fs.Questions)),
		}
		status, err := parseStatus(fs.ShowWhenStatus)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", fs.ID, err)
		}
		section.ShowWhenStatus = status

		for j, fq := range fs.Questions {
			q, err := parseQuestion(section.ID, j, fq)
			if err != nil {
				return nil, fmt.Errorf("section %s: %w", fs.ID, err)
			}
			section.Questions = append(section.Questions, q)
		}
		sections = append(sections, section)
	}
	return sections, nil
}

func parseQuestion(sectionID uuid.UUID, position int, fq fileQuestion) (models.Question, error) {
	if fq.ID == "" {
		return models.Question{}, fmt.Errorf("question %d has no id", position+1)
	}

	q := models.Question{
		ID:              ParseID(fq.ID),
		SectionID:       sectionID,
		Text:            fq.Text,
		Type:            models.QuestionType(fq.Type),
		Options:         fq.Options,
		IsRequired:      fq.Required,
		IsActive:        orTrue(fq.IsActive),
		OrderIndex:      position,
		HelpText:        fq.HelpText,
		Placeholder:     fq.Placeholder,
		ValidationRules: fq.ValidationRules,
		ShowIfAnswer:    fq.ShowIfAnswer,
	}
	if fq.OrderIndex != nil {
		q.OrderIndex = *fq.OrderIndex
	}
	if fq.ShowIfQuestion != "" {
		id := ParseID(fq.ShowIfQuestion)
		q.ShowIfQuestion = &id
	}

	status, err := parseStatus(fq.ShowWhenStatus)
	if err != nil {
		return models.Question{}, fmt.Errorf("question %s: %w", fq.ID, err)
	}
	q.ShowWhenStatus = status
	return q, nil
}

// ParseID returns key itself when it is a UUID, otherwise a UUID derived from it.
func ParseID(key string) uuid.UUID {
	if id, err := uuid.Parse(key); err == nil {
		return id
	}
	return uuid.NewSHA1(idNamespace, []byte(key))
}

func parseStatus(s string) (*models.ApplicationStatus, error) {
	if s == "" {
		return nil, nil
	}
	status, ok := models.ParseStatus(s)
	if !ok {
		return nil, fmt.Errorf("unknown status %q", s)
	}
	return &status, nil
}

func orTrue(b *bool) bool {
	return b == nil || *b
}
