package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"jobscout/internal/store"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

// Summary is the account of one run
type Summary struct {
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Cancelled  bool      `json:"cancelled"`

	Companies      int `json:"companies"`
	Processed      int `json:"processed"`
	Fetched        int `json:"fetched"`
	Listings       int `json:"listings"`
	Dropped        int `json:"dropped"`
	Duplicates     int `json:"duplicates"`
	Scored         int `json:"scored"`
	Fallbacks      int `json:"fallbacks"`
	BelowThreshold int `json:"below_threshold"`
	Inserted       int `json:"inserted"`
	Updated        int `json:"updated"`
	Spooled        int `json:"spooled"`

	// Failures lists the identifiers skipped under each error kind
	Failures map[utils.ErrorKind][]string `json:"failures"`

	NewJobs []models.Job `json:"-"`
}

func newSummary(runID, trigger string, started time.Time) *Summary {
	return &Summary{
		RunID:     runID,
		Trigger:   trigger,
		StartedAt: started,
		Failures:  make(map[utils.ErrorKind][]string),
	}
}

func (s *Summary) fail(kind utils.ErrorKind, identifier string) {
	s.Failures[kind] = append(s.Failures[kind], identifier)
}

// FailureCount is the number of skipped items across all kinds
func (s *Summary) FailureCount() int {
	n := 0
	for _, ids := range s.Failures {
		n += len(ids)
	}
	return n
}

// Duration is the wall time of the run
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Record converts the summary into a search history row
func (s *Summary) Record() *store.RunRecord {
	return &store.RunRecord{
		ID:         s.RunID,
		Trigger:    s.Trigger,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
		Companies:  s.Processed,
		Listings:   s.Listings,
		Inserted:   s.Inserted,
		Updated:    s.Updated,
		Spooled:    s.Spooled,
		Failures:   s.FailureCount(),
		Cancelled:  s.Cancelled,
	}
}

// Report renders the end-of-run text: counters, then every skipped
// identifier grouped by error kind.
func (s *Summary) Report() string {
	var b strings.Builder

	status := "completed"
	if s.Cancelled {
		status = "cancelled"
	}
	fmt.Fprintf(&b, "Run %s %s in %s\n", s.RunID, status, utils.FormatDuration(s.Duration()))
	fmt.Fprintf(&b, "  companies:       %d of %d processed, %d pages fetched\n", s.Processed, s.Companies, s.Fetched)
	fmt.Fprintf(&b, "  listings:        %d extracted, %d dropped, %d already known\n", s.Listings, s.Dropped, s.Duplicates)
	fmt.Fprintf(&b, "  scoring:         %d scored, %d by fallback, %d below threshold\n", s.Scored, s.Fallbacks, s.BelowThreshold)
	fmt.Fprintf(&b, "  persistence:     %d new, %d updated, %d spooled for recovery\n", s.Inserted, s.Updated, s.Spooled)

	if len(s.Failures) == 0 {
		b.WriteString("  failures:        none\n")
		return b.String()
	}

	kinds := make([]string, 0, len(s.Failures))
	for k := range s.Failures {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	fmt.Fprintf(&b, "  failures:        %d\n", s.FailureCount())
	for _, k := range kinds {
		ids := s.Failures[utils.ErrorKind(k)]
		fmt.Fprintf(&b, "    %s (%d)\n", k, len(ids))
		for _, id := range ids {
			fmt.Fprintf(&b, "      - %s\n", id)
		}
	}
	return b.String()
}
