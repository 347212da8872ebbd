package venue

import (
	"fmt"

	"github.com/aretw0/venueflow/pkg/domain"
)

// Names are the configurable group and prefix names used to derive identifiers.
type Names struct {
	ProgramChairs    string `yaml:"program_chairs" env:"PROGRAM_CHAIRS"`
	SeniorAreaChairs string `yaml:"senior_area_chairs" env:"SENIOR_AREA_CHAIRS"`
	AreaChairs       string `yaml:"area_chairs" env:"AREA_CHAIRS"`
	Reviewers        string `yaml:"reviewers" env:"REVIEWERS"`
	EthicsReviewers  string `yaml:"ethics_reviewers" env:"ETHICS_REVIEWERS"`
	EthicsChairs     string `yaml:"ethics_chairs" env:"ETHICS_CHAIRS"`
	Authors          string `yaml:"authors" env:"AUTHORS"`
	EntityPrefix     string `yaml:"entity_prefix" env:"ENTITY_PREFIX"`
	RequestPrefix    string `yaml:"request_prefix" env:"REQUEST_PREFIX"`
}

// DefaultNames returns the standard names.
func DefaultNames() Names {
	return Names{
		ProgramChairs:    "Program_Chairs",
		SeniorAreaChairs: "Senior_Area_Chairs",
		AreaChairs:       "Area_Chairs",
		Reviewers:        "Reviewers",
		EthicsReviewers:  "Ethics_Reviewers",
		EthicsChairs:     "Ethics_Chairs",
		Authors:          "Authors",
		EntityPrefix:     "Paper",
		RequestPrefix:    "Request",
	}
}

// withDefaults fills empty names from DefaultNames.
func (n Names) withDefaults() Names {
	d := DefaultNames()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&n.ProgramChairs, d.ProgramChairs)
	fill(&n.SeniorAreaChairs, d.SeniorAreaChairs)
	fill(&n.AreaChairs, d.AreaChairs)
	fill(&n.Reviewers, d.Reviewers)
	fill(&n.EthicsReviewers, d.EthicsReviewers)
	fill(&n.EthicsChairs, d.EthicsChairs)
	fill(&n.Authors, d.Authors)
	fill(&n.EntityPrefix, d.EntityPrefix)
	fill(&n.RequestPrefix, d.RequestPrefix)
	return n
}

// Naming derives identifiers for one request form.
type Naming struct {
	VenueID string
	Request int
	Names   Names
}

// NewNaming binds names to a form. Settings may override group names per venue.
func NewNaming(form *domain.RequestForm, names Names, s *Settings) Naming {
	names = names.withDefaults()
	if s != nil {
		if s.ReviewerName != "" {
			names.Reviewers = s.ReviewerName
		}
		if s.AreaChairName != "" {
			names.AreaChairs = s.AreaChairName
		}
		if s.SubmissionName != "" {
			names.EntityPrefix = s.SubmissionName
		}
	}
	return Naming{VenueID: form.VenueID, Request: form.Number, Names: names}
}

// Stage returns the venue-level definition id "{venue}/-/Request{n}/{name}".
func (n Naming) Stage(name string) string {
	return fmt.Sprintf("%s/-/%s%d/%s", n.VenueID, n.Names.RequestPrefix, n.Request, name)
}

// Child returns the per-entity definition id "{venue}/Paper{k}/-/{name}".
func (n Naming) Child(number int, name string) string {
	return fmt.Sprintf("%s/%s%d/-/%s", n.VenueID, n.Names.EntityPrefix, number, name)
}

// Group returns a venue-level group id.
func (n Naming) Group(name string) string {
	return n.VenueID + "/" + name
}

// EntityGroup returns a per-entity group id such as "{venue}/Paper7/Reviewers".
func (n Naming) EntityGroup(number int, name string) string {
	return fmt.Sprintf("%s/%s%d/%s", n.VenueID, n.Names.EntityPrefix, number, name)
}

// EntityGroupPrefix returns the prefix shared by every group of one entity.
func (n Naming) EntityGroupPrefix(number int) string {
	return fmt.Sprintf("%s/%s%d/", n.VenueID, n.Names.EntityPrefix, number)
}

// ProgramChairs returns the program chairs group id.
func (n Naming) ProgramChairs() string { return n.Group(n.Names.ProgramChairs) }
