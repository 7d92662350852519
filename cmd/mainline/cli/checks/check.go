// Package checks implements the pre-flight and post-flight validation
// framework: named, side-effect-free checks composed into ordered sets, plus
// the branch-reuse and pull-request validators that gate launch and ship.
package checks

import "context"

// Severity classifies a check result. Only error blocks an operation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Details carries optional expected/actual context and a remediation
// suggestion for a failing check.
type Details struct {
	Expected   string `json:"expected,omitempty"`
	Actual     string `json:"actual,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Result is the outcome of a single check.
type Result struct {
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Details  *Details `json:"details,omitempty"`
}

// Check is a named validation. Run may read Git, forge, and session state but
// must not mutate anything durable.
type Check struct {
	Name string
	Run  func(ctx context.Context) Result
}

// Outcome aggregates a check set run.
type Outcome struct {
	Results  []Result
	Passed   int
	Failed   int
	Warnings int

	// Blocked is true when an error-severity failure stopped the set.
	Blocked bool

	// Suggestions collects the remediation hints of every failure, in order.
	Suggestions []string
}

// FirstFailure returns the first non-passing result, or nil.
func (o *Outcome) FirstFailure() *Result {
	for i := range o.Results {
		if !o.Results[i].Passed {
			return &o.Results[i]
		}
	}
	return nil
}

// RunSet executes checks in order. Execution stops after the first
// error-severity failure unless force is set, in which case errors are
// demoted to warnings in the aggregate but still reported. Checks never
// retry; that is the caller's call.
func RunSet(ctx context.Context, set []Check, force bool) *Outcome {
	out := &Outcome{}
	for _, c := range set {
		r := c.Run(ctx)
		if r.Name == "" {
			r.Name = c.Name
		}

		if !r.Passed && r.Severity == SeverityError && force {
			r.Severity = SeverityWarning
		}

		out.Results = append(out.Results, r)
		switch {
		case r.Passed:
			out.Passed++
		case r.Severity == SeverityError:
			out.Failed++
		default:
			out.Warnings++
		}
		if !r.Passed && r.Details != nil && r.Details.Suggestion != "" {
			out.Suggestions = append(out.Suggestions, r.Details.Suggestion)
		}

		if !r.Passed && r.Severity == SeverityError {
			out.Blocked = true
			return out
		}
	}
	return out
}

// pass builds a passing result.
func pass(name, message string) Result {
	return Result{Name: name, Passed: true, Severity: SeverityInfo, Message: message}
}

// fail builds a failing result.
func fail(name string, sev Severity, message string, details *Details) Result {
	return Result{Name: name, Passed: false, Severity: sev, Message: message, Details: details}
}
