package pipeline

// Outcome is the per-step and per-release result of pipeline execution.
//
// The zero value is OutcomeNotRun. The constants are ordered by merge
// precedence so that merging two outcomes is simply taking the maximum:
//
//	Failed > Success > UpToDate > NotRun
//
// A release counts as freshly built if any sub-step actually did new work,
// fully cached only if nothing did new work but something existed, skipped
// only if nothing ran at all, and one failed sub-step is never masked by a
// sibling's success.
type Outcome int

const (
	// OutcomeNotRun means the step was skipped: its optional data does not
	// exist, or a prerequisite was not produced. Soft, never an error.
	OutcomeNotRun Outcome = iota

	// OutcomeUpToDate means a valid cached output already existed and the
	// step performed no work.
	OutcomeUpToDate

	// OutcomeSuccess means the step produced new output.
	OutcomeSuccess

	// OutcomeFailed means the step failed; it absorbs every other outcome.
	OutcomeFailed
)

// Merge combines two outcomes under the associative, commutative merge law.
func (o Outcome) Merge(other Outcome) Outcome {
	if other > o {
		return other
	}
	return o
}

// MergeOutcomes folds the merge law over any number of outcomes.
// Merging nothing yields OutcomeNotRun, the law's identity.
func MergeOutcomes(outcomes ...Outcome) Outcome {
	merged := OutcomeNotRun
	for _, o := range outcomes {
		merged = merged.Merge(o)
	}
	return merged
}

func (o Outcome) String() string {
	switch o {
	case OutcomeNotRun:
		return "not_run"
	case OutcomeUpToDate:
		return "up_to_date"
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// ParseOutcome is the inverse of String. Unknown strings map to
// OutcomeNotRun with ok=false.
func ParseOutcome(s string) (Outcome, bool) {
	switch s {
	case "not_run":
		return OutcomeNotRun, true
	case "up_to_date":
		return OutcomeUpToDate, true
	case "success":
		return OutcomeSuccess, true
	case "failed":
		return OutcomeFailed, true
	}
	return OutcomeNotRun, false
}

// MarshalText implements encoding.TextMarshaler for JSON/YAML output.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}
