package hook

// Decision is the outcome of evaluating an event.
type Decision string

const (
	// DecisionAllow permits the event. Allow never halts a chain.
	DecisionAllow Decision = "allow"

	// DecisionDeny blocks the event.
	DecisionDeny Decision = "deny"

	// DecisionAsk defers the event to the user for confirmation.
	DecisionAsk Decision = "ask"
)

// Blocks returns true for decisions that halt a chain when emitted by a
// terminal handler.
func (d Decision) Blocks() bool {
	return d == DecisionDeny || d == DecisionAsk
}

// String returns the wire representation of the decision.
func (d Decision) String() string {
	return string(d)
}

// ChainResult is the canonical outcome of one dispatch: the final decision,
// the reason from the terminal handler that produced it (empty for allow),
// and every context string accumulated by matching non-terminal handlers in
// chain order.
type ChainResult struct {
	Decision Decision
	Reason   string
	Context  []string
}

// Allowed returns true when the dispatch did not block.
func (r ChainResult) Allowed() bool {
	return r.Decision == DecisionAllow
}
