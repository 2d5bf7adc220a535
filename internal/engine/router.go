package engine

import (
	"context"

	"github.com/smykla-labs/hookd/pkg/hook"
	"github.com/smykla-labs/hookd/pkg/logger"
)

// Router selects the chain for an event type and dispatches to it.
// The chain map is fixed at startup; concurrent dispatches share it
// read-only and keep no state between requests.
type Router struct {
	chains map[hook.EventType]*Chain
	log    logger.Logger
}

// NewRouter creates a Router over the given chains.
func NewRouter(chains map[hook.EventType]*Chain, log logger.Logger) *Router {
	return &Router{
		chains: chains,
		log:    log,
	}
}

// Dispatch routes the event to its chain and returns the canonical result.
// An event type with no registered chain allows by default.
func (r *Router) Dispatch(ctx context.Context, event *hook.Event) hook.ChainResult {
	chain, ok := r.chains[event.Type]
	if !ok || len(chain.Handlers()) == 0 {
		r.log.Debug("no chain for event type, allowing",
			"event", event.Type,
		)

		return hook.ChainResult{Decision: hook.DecisionAllow}
	}

	r.log.Info("dispatching",
		"event", event.Type,
		"tool", event.ToolName,
		"handlers", len(chain.Handlers()),
	)

	return chain.Dispatch(ctx, event)
}

// Chains returns the chain map, used by status reporting.
func (r *Router) Chains() map[hook.EventType]*Chain {
	return r.chains
}
