package catalog

import (
	"context"
	"slices"

	"github.com/paulexconde/camperportal/internal/models"
)

// StaticProvider serves a catalog fixed at construction, e.g. loaded from YAML.
type StaticProvider struct {
	sections []models.Section
}

func NewStaticProvider(sections []models.Section) *StaticProvider {
	return &StaticProvider{sections: cloneSections(sections)}
}

func (p *StaticProvider) Sections(ctx context.Context) ([]models.Section, error) {
	return cloneSections(p.sections), nil
}

func cloneSections(sections []models.Section) []models.Section {
	out := slices.Clone(sections)
	for i := range out {
		out[i].Questions = slices.Clone(out[i].Questions)
	}
	return out
}
