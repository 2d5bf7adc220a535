// Package plugin provides the public API for hookd plugin authors.
//
// A plugin is a Go plugin (.so file) exporting a symbol that implements
// Handler. The symbol name is derived from the plugin's configured name:
// "secrets_scan" resolves to SecretsScan, falling back to
// SecretsScanHandler. The configuration entry binds the plugin to exactly
// one event type; there is no directory-convention inference.
//
// Example:
//
//	package main
//
//	import (
//		"context"
//
//		"github.com/smykla-labs/hookd/pkg/handler"
//		"github.com/smykla-labs/hookd/pkg/hook"
//		"github.com/smykla-labs/hookd/pkg/plugin"
//	)
//
//	type secretsScan struct{}
//
//	func (secretsScan) Info() plugin.Info {
//		return plugin.Info{Name: "secrets_scan", Version: "1.0.0", APIVersion: plugin.APIVersion}
//	}
//
//	func (secretsScan) Descriptor() handler.Descriptor {
//		return handler.Descriptor{Key: "secrets_scan", Priority: 50, Terminal: true}
//	}
//
//	func (secretsScan) Matches(*hook.Event) bool { return true }
//
//	func (secretsScan) Handle(context.Context, *hook.Event) (*handler.Result, error) {
//		return handler.Allow(), nil
//	}
//
//	func (secretsScan) TestCases() []handler.TestCase {
//		return []handler.TestCase{{Name: "allows by default", Event: &hook.Event{}, WantMatch: true, WantDecision: hook.DecisionAllow}}
//	}
//
//	var SecretsScan secretsScan
package plugin

import (
	"github.com/smykla-labs/hookd/pkg/handler"
)

// APIVersion is the plugin API version this daemon build speaks. Plugins
// report the version they were built against in Info; the loader rejects
// plugins from an incompatible major version.
const APIVersion = "1.0.0"

// Handler is the contract a plugin's exported symbol must satisfy. It is
// the ordinary handler contract plus plugin metadata; the declared test
// cases must be non-empty or the loader refuses the plugin.
type Handler interface {
	handler.Handler

	// Info returns metadata about the plugin.
	Info() Info
}

// Configurable is optionally implemented by plugin handlers that accept
// options from their configuration entry. Configure is called once at
// registry build, before the first dispatch.
type Configurable interface {
	Configure(options map[string]any) error
}

// Info contains plugin metadata.
type Info struct {
	// Name is the unique plugin identifier.
	Name string `json:"name"`

	// Version is the plugin version (semver recommended).
	Version string `json:"version"`

	// APIVersion is the plugin API version the plugin was built against.
	APIVersion string `json:"api_version"`

	// Description is a human-readable description of what the plugin does.
	Description string `json:"description,omitempty"`

	// Author is the plugin author or organization.
	Author string `json:"author,omitempty"`
}
