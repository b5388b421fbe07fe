package fix

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/tildaslashalef/sonarfix/internal/ulid"
	"github.com/tildaslashalef/sonarfix/internal/utils"
)

// Outcome is what happened to one (file, rule) bucket
type Outcome string

const (
	// OutcomeFixed means the file was rewritten with the model's answer
	OutcomeFixed Outcome = "fixed"
	// OutcomePlanned means a dry run would have requested a fix
	OutcomePlanned Outcome = "planned"
	// OutcomeSkipped means the file was left alone on purpose
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means an error stopped this bucket
	OutcomeFailed Outcome = "failed"
)

// reasonWidth caps the reason column so long API errors keep the table readable
const reasonWidth = 60

// Result records the outcome of one (file, rule) bucket
type Result struct {
	File     string
	Rule     string
	Issues   int
	Language string
	Outcome  Outcome
	Reason   string
}

// Summary is the in-memory report of a run
type Summary struct {
	RunID   string
	Project string
	Branch  string
	DryRun  bool
	Results []Result
}

func (s *Summary) record(r Result) {
	s.Results = append(s.Results, r)
}

// Started returns the start time encoded in the run ID
func (s *Summary) Started() (time.Time, error) {
	return ulid.Time(s.RunID)
}

// Count returns how many buckets ended with the given outcome
func (s *Summary) Count(outcome Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == outcome {
			n++
		}
	}
	return n
}

// Print renders the summary as a table followed by a totals line
func (s *Summary) Print(w io.Writer, colored bool) {
	if len(s.Results) == 0 {
		fmt.Fprintln(w, "no unresolved issues")
		return
	}

	headers := []string{"File", "Rule", "Issues", "Language", "Outcome", "Reason"}
	rows := make([][]string, 0, len(s.Results))
	for _, r := range s.Results {
		rows = append(rows, []string{
			r.File,
			r.Rule,
			strconv.Itoa(r.Issues),
			r.Language,
			string(r.Outcome),
			utils.Truncate(r.Reason, reasonWidth, "..."),
		})
	}

	opts := utils.DefaultTableOptions()
	opts.Title = s.title()
	opts.Colored = colored
	opts.ColumnColors = map[int]func(string) text.Colors{
		4: outcomeColors,
	}
	utils.PrintTable(w, headers, rows, opts)

	fmt.Fprintf(w, "%d fixed, %d planned, %d skipped, %d failed\n",
		s.Count(OutcomeFixed),
		s.Count(OutcomePlanned),
		s.Count(OutcomeSkipped),
		s.Count(OutcomeFailed))
}

func (s *Summary) title() string {
	title := "sonarfix"
	if s.Project != "" {
		title += " " + s.Project
	}
	if s.Branch != "" {
		title += " @ " + s.Branch
	}
	if s.DryRun {
		title += " (dry run)"
	}
	return title
}

func outcomeColors(cell string) text.Colors {
	switch Outcome(cell) {
	case OutcomeFixed:
		return utils.Theme.Success
	case OutcomeFailed:
		return utils.Theme.Error
	case OutcomeSkipped:
		return utils.Theme.Warning
	default:
		return utils.Theme.Subtle
	}
}
