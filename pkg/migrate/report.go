package migrate

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Status : terminal outcome of a table pair
type Status string

const (
	StatusCompleted                 Status = "completed"
	StatusFailed                    Status = "failed"
	StatusSkippedMissingSource      Status = "skipped-missing-source"
	StatusSkippedMissingDestination Status = "skipped-missing-destination"
)

// Result : outcome of one table pair
type Result struct {
	Index    int
	Pair     Pair
	Status   Status
	Count    int // records written to the destination
	Pages    int
	Batches  int
	Err      error
	Duration time.Duration
}

func (r Result) String() string {
	line := fmt.Sprintf("%s -> %s : %s", r.Pair.Source, r.Pair.Destination, r.Status)
	switch r.Status {
	case StatusCompleted:
		line += fmt.Sprintf(" (%d items)", r.Count)
	case StatusFailed:
		line += fmt.Sprintf(" after %d items : %v", r.Count, r.Err)
	}
	return line
}

// Summary : counts per status
type Summary struct {
	Completed                 int
	Failed                    int
	SkippedMissingSource      int
	SkippedMissingDestination int
	Items                     int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d completed (%d items), %d failed, %d skipped (missing source), %d skipped (missing destination)",
		s.Completed, s.Items, s.Failed, s.SkippedMissingSource, s.SkippedMissingDestination)
}

// Report : everything a run did, Results in mapping order
type Report struct {
	RunID    string
	Results  []Result
	Duration time.Duration
}

func (r *Report) Summary() Summary {
	var s Summary
	for _, res := range r.Results {
		switch res.Status {
		case StatusCompleted:
			s.Completed++
			s.Items += res.Count
		case StatusFailed:
			s.Failed++
		case StatusSkippedMissingSource:
			s.SkippedMissingSource++
		case StatusSkippedMissingDestination:
			s.SkippedMissingDestination++
		}
	}
	return s
}

// Err : every failed pair's error, nil when none failed
func (r *Report) Err() error {
	var errs *multierror.Error
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			errs = multierror.Append(errs, fmt.Errorf("%s -> %s : %w", res.Pair.Source, res.Pair.Destination, res.Err))
		}
	}
	return errs.ErrorOrNil()
}

// String : one line per pair then the summary
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n", r.RunID)
	for _, res := range r.Results {
		fmt.Fprintf(&b, "  %s\n", res)
	}
	fmt.Fprintf(&b, "summary: %s", r.Summary())
	return b.String()
}
