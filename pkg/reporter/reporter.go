package reporter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/aretw0/venueflow/internal/logging"
	"github.com/aretw0/venueflow/pkg/domain"
	"github.com/aretw0/venueflow/pkg/ports"
)

// DefaultMaxErrorLength bounds the serialized error stored on a record, in characters.
const DefaultMaxErrorLength = 200000

// Reporter builds and posts activity records.
type Reporter struct {
	log       ports.ActivityLog
	baseURL   string
	maxErrLen int
	logger    *slog.Logger
	clock     ports.Clock
}

// Option configures the Reporter.
type Option func(*Reporter)

// WithBaseURL sets the prefix of deep links.
func WithBaseURL(url string) Option {
	return func(r *Reporter) {
		r.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithMaxErrorLength overrides DefaultMaxErrorLength.
func WithMaxErrorLength(n int) Option {
	return func(r *Reporter) {
		if n > 0 {
			r.maxErrLen = n
		}
	}
}

// WithLogger configures a logger for posting failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reporter) {
		r.logger = logger
	}
}

// WithClock sets the clock stamping records.
func WithClock(clock ports.Clock) Option {
	return func(r *Reporter) {
		r.clock = clock
	}
}

// New creates a Reporter posting to log.
func New(log ports.ActivityLog, opts ...Option) *Reporter {
	r := &Reporter{
		log:       log,
		maxErrLen: DefaultMaxErrorLength,
		logger:    logging.NewNop(),
		clock:     ports.SystemClock,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record builds the activity record of an outcome without posting it.
func (r *Reporter) Record(form *domain.RequestForm, event domain.StageEvent, outcome *domain.Outcome) domain.ActivityRecord {
	label := event.StageType.Label()
	var kind domain.ErrorKind
	if !outcome.Success {
		kind = domain.KindInternal
		if outcome.Err != nil && outcome.Err.Kind != "" {
			kind = outcome.Err.Kind
		}
	}
	rec := domain.ActivityRecord{
		ID:        domain.ActivityRecordID(event.RequestFormID, event.Sequence, kind),
		FormID:    event.RequestFormID,
		EventID:   event.ID(),
		Stage:     event.StageType,
		CreatedAt: r.clock.Now(),
	}

	if outcome.Success {
		rec.Title = fmt.Sprintf("%s stage applied", label)
		rec.Comment = successComment(label, outcome)
		rec.ReferenceURL = r.link(form, outcome)
		return rec
	}

	rec.Title = fmt.Sprintf("Error: %s", label)
	rec.Error = Truncate(serialize(outcome.Err), r.maxErrLen)
	rec.Comment = fmt.Sprintf("The %s stage could not be applied.\n\nStage: %s\nEvent: %s\n\n```\n%s\n```",
		label, event.StageType, event.ID(), rec.Error)
	return rec
}

// Report posts the record of outcome and attaches it.
// A posting failure is logged and stored on outcome.ReportError, never returned.
func (r *Reporter) Report(ctx context.Context, form *domain.RequestForm, event domain.StageEvent, outcome *domain.Outcome) {
	rec := r.Record(form, event, outcome)
	outcome.Record = &rec

	if err := r.log.Post(ctx, rec); err != nil {
		r.logger.Error("failed to post activity record",
			"form", event.RequestFormID,
			"stage", event.StageType,
			"record", rec.ID,
			"err", err,
		)
		outcome.ReportError = err.Error()
	}
}

func (r *Reporter) link(form *domain.RequestForm, outcome *domain.Outcome) string {
	if r.baseURL == "" {
		return ""
	}
	if form != nil && form.VenueID != "" {
		return fmt.Sprintf("%s/group?id=%s", r.baseURL, form.VenueID)
	}
	if len(outcome.Definitions) > 0 {
		return fmt.Sprintf("%s/invitation?id=%s", r.baseURL, outcome.Definitions[0])
	}
	return ""
}

func successComment(label string, outcome *domain.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The %s stage has been applied.", label)
	if outcome.Skipped {
		b.WriteString(" The event was already applied; nothing changed.")
	}
	if len(outcome.Summary) > 0 {
		b.WriteString("\n")
		for _, line := range outcome.Summary {
			fmt.Fprintf(&b, "\n- %s", line)
		}
	}
	if len(outcome.Definitions) > 0 {
		fmt.Fprintf(&b, "\n\n%d workflow definition(s) updated.", len(outcome.Definitions))
	}
	return b.String()
}

func serialize(err *domain.StageError) string {
	if err == nil {
		return "unknown error"
	}
	data, mErr := json.Marshal(err)
	if mErr != nil {
		return err.Error()
	}
	return string(data)
}

// Truncate shortens s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
