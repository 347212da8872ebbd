package venue

import (
	"fmt"
	"time"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/schema"
)

// Flags consulted by stage requirements.
const (
	FlagAreaChairs       = "area_chairs"
	FlagSeniorAreaChairs = "senior_area_chairs"
	FlagEthicsReviewers  = "ethics_reviewers"
	FlagSecondDeadline   = "second_deadline"
	FlagPublicComments   = "public_comments"
)

// Settings is the typed view of a request form's current content.
type Settings struct {
	Title            string   `mapstructure:"title"`
	Abbreviation     string   `mapstructure:"abbreviated_venue_name"`
	ContactEmail     string   `mapstructure:"contact_email"`
	ProgramChairs    []string `mapstructure:"program_chair_emails"`
	AreaChairs       bool     `mapstructure:"area_chairs"`
	SeniorAreaChairs bool     `mapstructure:"senior_area_chairs"`
	EthicsReviewers  bool     `mapstructure:"ethics_reviewers"`
	PublicComments   bool     `mapstructure:"public_comments"`

	SubmissionDeadline     *time.Time `mapstructure:"submission_deadline"`
	FullSubmissionDeadline *time.Time `mapstructure:"full_submission_deadline"`

	SubmissionName string `mapstructure:"submission_name"`
	ReviewerName   string `mapstructure:"reviewer_name"`
	AreaChairName  string `mapstructure:"area_chair_name"`
}

// settingsFields constrains the keys Settings reads. Other keys are ignored.
var settingsFields = schema.Fields{
	"title":                    {Type: schema.String()},
	"abbreviated_venue_name":   {Type: schema.String(), Optional: true},
	"contact_email":            {Type: schema.String(), Regex: `[^@\s]+@[^@\s]+`, Optional: true},
	"program_chair_emails":     {Optional: true},
	"area_chairs":              {Optional: true},
	"senior_area_chairs":       {Optional: true},
	"ethics_reviewers":         {Optional: true},
	"public_comments":          {Optional: true},
	"submission_deadline":      {Optional: true},
	"full_submission_deadline": {Optional: true},
	"submission_name":          {Type: schema.String(), Regex: `[A-Za-z][A-Za-z0-9_]*`, Optional: true},
	"reviewer_name":            {Type: schema.String(), Regex: `[A-Za-z][A-Za-z0-9_]*`, Optional: true},
	"area_chair_name":          {Type: schema.String(), Regex: `[A-Za-z][A-Za-z0-9_]*`, Optional: true},
}

// Load decodes and validates the current settings of a form.
func Load(form *domain.RequestForm) (*Settings, error) {
	content := form.Current()
	known := make(map[string]any, len(settingsFields))
	for k := range settingsFields {
		if v, ok := content[k]; ok {
			known[k] = v
		}
	}
	if err := schema.CheckFields(settingsFields, known); err != nil {
		return nil, fmt.Errorf("venue settings of %s: %w", form.ID, err)
	}

	var s Settings
	if err := Decode(content, &s); err != nil {
		return nil, fmt.Errorf("venue settings of %s: %w", form.ID, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("venue settings of %s: %w", form.ID, err)
	}
	return &s, nil
}

// Validate checks cross-field constraints.
func (s *Settings) Validate() error {
	var errs []error
	if s.SeniorAreaChairs && !s.AreaChairs {
		errs = append(errs, &schema.ValidationError{Key: "senior_area_chairs", Reason: "requires area_chairs"})
	}
	if s.FullSubmissionDeadline != nil && s.SubmissionDeadline != nil &&
		s.FullSubmissionDeadline.Before(*s.SubmissionDeadline) {
		errs = append(errs, &schema.ValidationError{
			Key:    "full_submission_deadline",
			Reason: "must not precede submission_deadline",
			Value:  *s.FullSubmissionDeadline,
		})
	}
	if len(errs) > 0 {
		return &schema.AggregateError{Errors: errs}
	}
	return nil
}

// Flag reports a venue-level switch by name.
func (s *Settings) Flag(name string) bool {
	switch name {
	case FlagAreaChairs:
		return s.AreaChairs
	case FlagSeniorAreaChairs:
		return s.SeniorAreaChairs
	case FlagEthicsReviewers:
		return s.EthicsReviewers
	case FlagSecondDeadline:
		return s.FullSubmissionDeadline != nil
	case FlagPublicComments:
		return s.PublicComments
	default:
		return false
	}
}
