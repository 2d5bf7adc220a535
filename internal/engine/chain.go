// Package engine implements the dispatch engine: priority-ordered handler
// chains with short-circuit semantics, and the router that selects a chain
// by event type.
package engine

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/smykla-labs/hookd/pkg/handler"
	"github.com/smykla-labs/hookd/pkg/hook"
	"github.com/smykla-labs/hookd/pkg/logger"
)

var (
	// ErrHandlerPanic wraps a panic recovered from a handler.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrHandlerTimeout is returned when a handler outlives its budget.
	ErrHandlerTimeout = errors.New("handler timed out")
)

// Chain is the ordered sequence of live handler instances for one event
// type. Built once at registry build, immutable afterwards, and safe for
// concurrent use by simultaneously in-flight dispatches.
type Chain struct {
	event          hook.EventType
	handlers       []handler.Handler
	handlerTimeout time.Duration
	log            logger.Logger
}

// NewChain creates a chain from an already-sorted handler sequence.
// Sorting by (priority, key) is the registry's responsibility.
func NewChain(
	event hook.EventType,
	handlers []handler.Handler,
	handlerTimeout time.Duration,
	log logger.Logger,
) *Chain {
	return &Chain{
		event:          event,
		handlers:       handlers,
		handlerTimeout: handlerTimeout,
		log:            log,
	}
}

// EventType returns the event type this chain serves.
func (c *Chain) EventType() hook.EventType {
	return c.event
}

// Handlers returns the chain's handlers in execution order.
func (c *Chain) Handlers() []handler.Handler {
	return c.handlers
}

// Dispatch executes the chain protocol for one event:
//
//   - handlers run strictly in chain order, sequentially;
//   - a handler whose Matches returns false is skipped with no result;
//   - context strings from matched handlers accumulate, never truncate;
//   - a non-terminal handler's decision is ignored — it only contributes
//     advisory context;
//   - the first terminal handler returning a blocking decision stops the
//     chain; a terminal handler that allows does not;
//   - a handler that errors or panics is logged and treated as a no-op for
//     this dispatch only (fail-open per request, unlike startup faults).
func (c *Chain) Dispatch(ctx context.Context, event *hook.Event) hook.ChainResult {
	var accumulated []string

	for _, h := range c.handlers {
		desc := h.Descriptor()

		matched, err := c.safeMatches(h, event)
		if err != nil {
			c.log.Error("handler match failed, skipping",
				"handler", desc.Key,
				"event", c.event,
				"error", err,
			)

			continue
		}

		if !matched {
			continue
		}

		result, err := c.safeHandle(ctx, h, event)
		if err != nil || result == nil {
			c.log.Error("handler failed, treating as no-op",
				"handler", desc.Key,
				"event", c.event,
				"error", err,
			)

			continue
		}

		accumulated = append(accumulated, result.Context...)

		if desc.Terminal && result.Decision.Blocks() {
			c.log.Info("chain short-circuited",
				"handler", desc.Key,
				"event", c.event,
				"decision", result.Decision,
			)

			return hook.ChainResult{
				Decision: result.Decision,
				Reason:   result.Reason,
				Context:  accumulated,
			}
		}
	}

	return hook.ChainResult{
		Decision: hook.DecisionAllow,
		Context:  accumulated,
	}
}

// safeMatches calls Matches with panic recovery.
func (c *Chain) safeMatches(h handler.Handler, event *hook.Event) (matched bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(ErrHandlerPanic, "in Matches: %v", r)
		}
	}()

	return h.Matches(event), nil
}

type handleOutcome struct {
	result *handler.Result
	err    error
}

// safeHandle calls Handle under the per-handler timeout with panic
// recovery. The timeout is enforced, not just offered: Handle runs in its
// own goroutine and is abandoned when the deadline passes, so a handler
// that ignores ctx cannot pin the dispatch.
func (c *Chain) safeHandle(
	ctx context.Context,
	h handler.Handler,
	event *hook.Event,
) (*handler.Result, error) {
	if c.handlerTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.handlerTimeout)
		defer cancel()
	}

	done := make(chan handleOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- handleOutcome{err: errors.Wrapf(ErrHandlerPanic, "in Handle: %v", r)}
			}
		}()

		result, err := h.Handle(ctx, event)
		done <- handleOutcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, errors.Wrapf(ErrHandlerTimeout, "after %s", c.handlerTimeout)
		}

		return nil, errors.Wrap(ctx.Err(), "dispatch cancelled")
	}
}
