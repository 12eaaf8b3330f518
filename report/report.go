// Package report keeps the per-run tally every hanloc command ends with:
// how many fragments were processed, applied, skipped and failed, plus the
// recovered issues behind the skips so an operator can triage them.
package report

import (
	"fmt"

	"go.uber.org/multierr"
)

// Summary counts fragment outcomes for one run.
type Summary struct {
	// Op names the operation, e.g. "markup extract".
	Op string

	Processed int
	Applied   int
	Skipped   int
	Failed    int

	issues error
}

// New starts a summary for op.
func New(op string) *Summary {
	return &Summary{Op: op}
}

// Apply records a fragment that was extracted or written back.
func (s *Summary) Apply() {
	s.Processed++
	s.Applied++
}

// Skip records a recovered per-fragment problem.
func (s *Summary) Skip(err error) {
	s.Processed++
	s.Skipped++
	if err != nil {
		s.issues = multierr.Append(s.issues, err)
	}
}

// Fail records a fragment that could not be handled at all.
func (s *Summary) Fail(err error) {
	s.Processed++
	s.Failed++
	if err != nil {
		s.issues = multierr.Append(s.issues, err)
	}
}

// Issues returns the recovered problems in the order they were recorded.
func (s *Summary) Issues() []error {
	return multierr.Errors(s.issues)
}

// Err returns all recorded problems combined, or nil.
func (s *Summary) Err() error {
	return s.issues
}

// Clean reports whether nothing was skipped or failed.
func (s *Summary) Clean() bool {
	return s.Skipped == 0 && s.Failed == 0
}

func (s *Summary) String() string {
	return fmt.Sprintf("%s: %d processed, %d applied, %d skipped, %d failed",
		s.Op, s.Processed, s.Applied, s.Skipped, s.Failed)
}
