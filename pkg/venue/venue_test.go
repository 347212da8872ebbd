package venue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newForm(content map[string]any) *domain.RequestForm {
	return domain.NewRequestForm("form-1", "Conf/2025", 3, content, time.Time{})
}

func TestLoad(t *testing.T) {
	form := newForm(map[string]any{
		"title":                    "Conference 2025",
		"contact_email":            "pc@conf.org",
		"program_chair_emails":     "a@conf.org, b@conf.org",
		"area_chairs":              "Yes, our venue has Area Chairs",
		"ethics_reviewers":         true,
		"submission_deadline":      "2025-03-01 23:59",
		"full_submission_deadline": "2025-03-08T23:59:00Z",
		"unrelated":                []any{1, 2},
	})

	s, err := Load(form)
	require.NoError(t, err)
	assert.Equal(t, "Conference 2025", s.Title)
	assert.Equal(t, []string{"a@conf.org", "b@conf.org"}, s.ProgramChairs)
	assert.True(t, s.AreaChairs)
	assert.True(t, s.Flag(FlagEthicsReviewers))
	assert.True(t, s.Flag(FlagSecondDeadline))
	assert.False(t, s.Flag(FlagSeniorAreaChairs))
	assert.False(t, s.Flag("unknown"))
	assert.Equal(t, time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC), *s.SubmissionDeadline)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(newForm(map[string]any{"contact_email": "nobody"}))
	require.Error(t, err)
	errs := schema.ValidationErrors(unwrapAggregate(err))
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "contact_email")
	assert.Contains(t, errs[1].Error(), "title")

	_, err = Load(newForm(map[string]any{"title": "T", "senior_area_chairs": "Yes", "area_chairs": "No"}))
	assert.ErrorContains(t, err, "requires area_chairs")

	_, err = Load(newForm(map[string]any{
		"title":                    "T",
		"submission_deadline":      "2025-03-08",
		"full_submission_deadline": "2025-03-01",
	}))
	assert.ErrorContains(t, err, "must not precede")

	_, err = Load(newForm(map[string]any{"title": "T", "submission_deadline": "soon"}))
	assert.ErrorContains(t, err, "invalid date")
}

func unwrapAggregate(err error) error {
	for err != nil {
		if _, ok := err.(*schema.AggregateError); ok {
			return err
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		err = u.Unwrap()
	}
	return nil
}

func TestDecode_PatchKeepsAbsentFields(t *testing.T) {
	type config struct {
		Options  []string   `mapstructure:"decision_options"`
		Deadline *time.Time `mapstructure:"decision_deadline"`
		Count    *int       `mapstructure:"count"`
	}
	var cfg config
	require.NoError(t, Decode(map[string]any{
		"decision_options": "Accept, Revise, Reject",
		"count":            json.Number("3"),
	}, &cfg))
	assert.Equal(t, []string{"Accept", "Revise", "Reject"}, cfg.Options)
	assert.Nil(t, cfg.Deadline)
	require.NotNil(t, cfg.Count)
	assert.Equal(t, 3, *cfg.Count)

	require.NoError(t, Decode(map[string]any{"decision_deadline": json.Number("1748736000000")}, &cfg))
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), *cfg.Deadline)
	assert.Len(t, cfg.Options, 3)
}

func TestNaming(t *testing.T) {
	form := newForm(map[string]any{"title": "T"})
	n := NewNaming(form, Names{}, nil)

	assert.Equal(t, "Conf/2025/-/Request3/Decision", n.Stage("Decision"))
	assert.Equal(t, "Conf/2025/Paper7/-/Official_Review", n.Child(7, "Official_Review"))
	assert.Equal(t, "Conf/2025/Paper7/Reviewers", n.EntityGroup(7, n.Names.Reviewers))
	assert.Equal(t, "Conf/2025/Paper7/", n.EntityGroupPrefix(7))
	assert.Equal(t, "Conf/2025/Program_Chairs", n.ProgramChairs())

	custom := NewNaming(form, Names{Reviewers: "PC"}, &Settings{SubmissionName: "Submission", AreaChairName: "Action_Editors"})
	assert.Equal(t, "Conf/2025/Submission7/-/Official_Review", custom.Child(7, "Official_Review"))
	assert.Equal(t, "PC", custom.Names.Reviewers)
	assert.Equal(t, "Action_Editors", custom.Names.AreaChairs)
}
