package datapub

import (
	"github.com/hashicorp/go-multierror"
)

// Outcome is the result of a single unit of work.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Result records what happened to one operation on one target.
type Result struct {
	Stage   Stage
	Op      string
	Target  string
	Outcome Outcome
	Err     error
}

// KeyResult records the fetch of one query key. A skipped key's Err is the
// fetch error, or wraps ErrSchemaMismatch when the fetch succeeded but its
// records did not fit the fields of the keys before it.
type KeyResult struct {
	Key     string
	Records int
	Outcome Outcome
	Err     error
}

// Summary aggregates everything a run did.
type Summary struct {
	Records   int
	Keys      []KeyResult
	Artifacts []Artifact
	Results   []Result
	Listing   []string
}

func (s *Summary) record(stage Stage, op, target string, err error) {
	r := Result{Stage: stage, Op: op, Target: target, Outcome: OutcomeOK}
	if err != nil {
		r.Outcome = OutcomeFailed
		r.Err = &StageError{Stage: stage, Op: op, Target: target, Err: err}
	}
	s.Results = append(s.Results, r)
}

func (s *Summary) skip(stage Stage, op, target string) {
	s.Results = append(s.Results, Result{Stage: stage, Op: op, Target: target, Outcome: OutcomeSkipped})
}

// Failed returns the results with OutcomeFailed in the given stage, or in
// every stage if none is given.
func (s *Summary) Failed(stages ...Stage) []Result {
	var ret []Result
	for _, r := range s.Results {
		if r.Outcome != OutcomeFailed {
			continue
		}
		if len(stages) == 0 {
			ret = append(ret, r)
			continue
		}
		for _, st := range stages {
			if r.Stage == st {
				ret = append(ret, r)
				break
			}
		}
	}
	return ret
}

// Err returns every fatal failure of the run as a single error, or nil.
func (s *Summary) Err() error {
	var merr *multierror.Error
	for _, r := range s.Results {
		if r.Outcome == OutcomeFailed && r.Stage.Fatal() {
			merr = multierror.Append(merr, r.Err)
		}
	}
	return merr.ErrorOrNil()
}
