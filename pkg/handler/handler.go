// Package handler defines the contract every policy handler satisfies.
package handler

import (
	"context"

	"github.com/smykla-labs/hookd/pkg/hook"
	"github.com/smykla-labs/hookd/pkg/logger"
)

// Handler is the abstract unit of policy. One instance is built per handler
// per daemon lifetime at registry build; instances must be safe for
// concurrent read-only use across in-flight dispatches.
type Handler interface {
	// Descriptor returns the handler's immutable registration metadata.
	Descriptor() Descriptor

	// Matches reports whether the handler applies to the event. A false
	// return skips the handler without recording a result.
	Matches(event *hook.Event) bool

	// Handle evaluates the event. The context carries the per-handler
	// timeout; implementations doing I/O must honor it.
	Handle(ctx context.Context, event *hook.Event) (*Result, error)

	// TestCases returns the handler's self-declared acceptance cases.
	// A handler with no declared tests is not registrable.
	TestCases() []TestCase
}

// Descriptor is the registration metadata for a handler. Created once at
// registry build time and immutable thereafter.
type Descriptor struct {
	// Key is the stable identity; it maps 1:1 to a configuration entry.
	Key string

	// Priority orders the chain; lower runs earlier. Ties are broken by
	// Key so duplicate priorities still produce a reproducible order.
	Priority int

	// Terminal marks a handler whose non-allow decision halts the chain.
	// Non-terminal handlers only ever contribute advisory context.
	Terminal bool

	// Tags group handlers for filtering and reporting.
	Tags []string

	// SharesOptionsWith names a parent handler whose options this handler
	// inherits unless overridden by its own configuration entry.
	SharesOptionsWith string
}

// Result is what a handler returns from Handle.
type Result struct {
	// Decision is the handler's verdict. Ignored for non-terminal handlers.
	Decision hook.Decision

	// Reason explains a non-allow decision. Required when a terminal
	// handler blocks.
	Reason string

	// Context carries advisory strings accumulated across the chain.
	Context []string
}

// Allow creates an allowing result.
func Allow() *Result {
	return &Result{Decision: hook.DecisionAllow}
}

// Deny creates a blocking result with a reason.
func Deny(reason string) *Result {
	return &Result{Decision: hook.DecisionDeny, Reason: reason}
}

// Ask creates a confirmation-required result with a reason.
func Ask(reason string) *Result {
	return &Result{Decision: hook.DecisionAsk, Reason: reason}
}

// Advise creates an allowing result that contributes context strings.
func Advise(context ...string) *Result {
	return &Result{Decision: hook.DecisionAllow, Context: context}
}

// AddContext appends a context string to the result.
func (r *Result) AddContext(s string) *Result {
	r.Context = append(r.Context, s)

	return r
}

// TestCase is a self-declared acceptance case. Every handler publishes at
// least one; the registry rejects handlers that declare none.
type TestCase struct {
	// Name describes the scenario.
	Name string

	// Event is the input event for the case.
	Event *hook.Event

	// WantMatch is the expected Matches outcome.
	WantMatch bool

	// WantDecision is the expected decision when the event matches.
	WantDecision hook.Decision
}

// Base provides common handler plumbing. Concrete handlers embed it and
// implement Matches, Handle and TestCases.
type Base struct {
	desc Descriptor
	log  logger.Logger
}

// NewBase creates a Base with the given descriptor and logger.
func NewBase(desc Descriptor, log logger.Logger) Base {
	return Base{desc: desc, log: log}
}

// Descriptor returns the handler's registration metadata.
func (b *Base) Descriptor() Descriptor {
	return b.desc
}

// Logger returns the handler's logger.
//
//nolint:ireturn // interface for polymorphism
func (b *Base) Logger() logger.Logger {
	return b.log
}
