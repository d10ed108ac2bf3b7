package predictor

import (
	"context"
	"errors"
	"sync"

	"github.com/fyrsmithlabs/pricecast/internal/features"
)

// ErrPending is returned when a submission is attempted while another one
// is still outstanding.
var ErrPending = errors.New("prediction already pending")

// State is the form's submission state.
type State int

const (
	StateIdle State = iota
	StatePending
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	default:
		return "idle"
	}
}

// MarshalText renders the state as "idle" or "pending".
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Predictor is the subset of Client that Form needs.
type Predictor interface {
	Predict(ctx context.Context, v features.FeatureVector) Result
}

// Snapshot is a point-in-time view of a Form for renderers.
type Snapshot struct {
	State State
	// Last is the most recent terminal result. It is cleared when the next
	// submission starts.
	Last *Result
}

// Form drives one prediction form through idle -> pending -> idle. At most
// one submission is outstanding at a time.
type Form struct {
	predictor Predictor
	policy    features.Policy

	mu    sync.Mutex
	state State
	last  *Result
}

// NewForm creates an idle form that parses input under policy.
func NewForm(p Predictor, policy features.Policy) *Form {
	if policy == "" {
		policy = features.PolicyCoerce
	}
	return &Form{predictor: p, policy: policy}
}

// Snapshot returns the current state and last result.
func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{State: f.state, Last: f.last}
}

// Start begins a submission of raw field values and returns a channel that
// yields exactly one Result. It returns ErrPending if a submission is
// already outstanding. The form returns to idle before the result is
// delivered, including when ctx is cancelled.
func (f *Form) Start(ctx context.Context, raw map[string]string) (<-chan Result, error) {
	if err := f.begin(); err != nil {
		return nil, err
	}

	out := make(chan Result, 1)
	go func() {
		defer close(out)
		res := f.run(ctx, raw)
		f.finish(res)
		out <- res
	}()
	return out, nil
}

// Submit is the synchronous form of Start.
func (f *Form) Submit(ctx context.Context, raw map[string]string) (Result, error) {
	ch, err := f.Start(ctx, raw)
	if err != nil {
		return Result{}, err
	}
	return <-ch, nil
}

func (f *Form) begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StatePending {
		return ErrPending
	}
	f.state = StatePending
	f.last = nil
	PendingSubmissions.Inc()
	return nil
}

func (f *Form) finish(res Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateIdle
	f.last = &res
	PendingSubmissions.Dec()
}

func (f *Form) run(ctx context.Context, raw map[string]string) Result {
	v, err := features.Parse(raw, f.policy)
	if err != nil {
		res := failure(FailureInvalidInput, err.Error(), err)
		recordOutcome(res)
		return res
	}
	return f.predictor.Predict(ctx, v)
}
