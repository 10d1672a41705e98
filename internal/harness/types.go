package harness

// TraceEvent records one executed step.
type TraceEvent struct {
	Step   int    `json:"step"`
	Op     string `json:"op"`
	As     string `json:"as,omitempty"`
	Entity string `json:"entity,omitempty"`
	Date   string `json:"date,omitempty"`

	// InstanceID and RequestID are the rows the step touched, if any.
	InstanceID string `json:"instance_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`

	// Status is the resulting instance or request status.
	Status string `json:"status,omitempty"`

	// Error is the error code when the step failed.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace lists the executed steps in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step record.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
