package predictor

import (
	"github.com/shopspring/decimal"
)

// FailureKind classifies a failed prediction.
type FailureKind string

const (
	// FailureService means the backend answered with an "error" field.
	FailureService FailureKind = "service_error"
	// FailureTransport covers unreachable backends, cancellations and
	// malformed response bodies.
	FailureTransport FailureKind = "transport_error"
	// FailureInvalidInput means the feature vector was rejected before
	// submission.
	FailureInvalidInput FailureKind = "invalid_input"
)

// Outcome label used for successful predictions in metrics and logs.
const OutcomeSuccess = "success"

// Estimate is a successful prediction.
type Estimate struct {
	// Thousands is the raw model output, in thousands of currency units.
	Thousands float64
	// Amount is Thousands scaled by 1000 and rounded to whole units.
	Amount  decimal.Decimal
	Display string
}

// Failure is a failed prediction. Message is shown to the user verbatim.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return string(f.Kind) + ": " + f.Message + ": " + f.Err.Error()
	}
	return string(f.Kind) + ": " + f.Message
}

func (f *Failure) Unwrap() error { return f.Err }

// Result holds exactly one of Estimate or Failure.
type Result struct {
	Estimate *Estimate
	Failure  *Failure
}

func success(e Estimate) Result { return Result{Estimate: &e} }

func failure(kind FailureKind, msg string, err error) Result {
	return Result{Failure: &Failure{Kind: kind, Message: msg, Err: err}}
}

// OK reports whether the result is an estimate.
func (r Result) OK() bool { return r.Estimate != nil }

// Message returns the user-visible text: the formatted amount on success,
// the failure message otherwise.
func (r Result) Message() string {
	switch {
	case r.Estimate != nil:
		return r.Estimate.Display
	case r.Failure != nil:
		return r.Failure.Message
	default:
		return ""
	}
}

// Outcome returns the metrics label for the result.
func (r Result) Outcome() string {
	if r.Failure != nil {
		return string(r.Failure.Kind)
	}
	return OutcomeSuccess
}
