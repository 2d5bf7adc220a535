// Package config provides the configuration document types for hookd.
//
// The document is a hierarchical mapping: event type → handler key →
// {enabled, priority, options}, plus daemon settings and plugin entries.
// Strict schema validation lives in internal/config; these types are the
// already-typed view a validated document unmarshals into.
package config

import (
	"time"

	"github.com/cockroachdb/errors"
)

// CurrentConfigVersion is the latest config schema version.
const CurrentConfigVersion = 1

// ErrNegativeDuration is returned when a negative duration is provided.
var ErrNegativeDuration = errors.New("duration must be non-negative")

// Duration wraps time.Duration for TOML parsing.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrap(err, "invalid duration")
	}

	if dur < 0 {
		return errors.Wrapf(ErrNegativeDuration, "got %s", dur)
	}

	*d = Duration(dur)

	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML serialization.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Document is the root configuration for hookd. It is read once at daemon
// startup (or restart); there is no hot reload.
type Document struct {
	// Version is the config schema version. Defaults to 1 when omitted.
	Version int `json:"version,omitempty" koanf:"version" toml:"version,omitempty"`

	// Daemon holds process-level settings.
	Daemon *DaemonConfig `json:"daemon,omitempty" koanf:"daemon" toml:"daemon,omitempty"`

	// Handlers maps event type → handler key → entry.
	Handlers map[string]map[string]*HandlerEntry `json:"handlers,omitempty" koanf:"handlers" toml:"handlers,omitempty"`

	// Plugins lists externally supplied handler units.
	Plugins []*PluginEntry `json:"plugins,omitempty" koanf:"plugins" toml:"plugins,omitempty"`
}

// DaemonConfig holds process-level daemon settings.
type DaemonConfig struct {
	// SocketPath overrides the resolved Unix socket path.
	// Default: resolved by ProcessContext with length-aware fallback.
	SocketPath string `json:"socket_path,omitempty" koanf:"socket_path" toml:"socket_path,omitempty"`

	// Debug enables debug logging.
	// Default: false
	Debug *bool `json:"debug,omitempty" koanf:"debug" toml:"debug,omitempty"`

	// HandlerTimeout bounds a single handler's Handle call.
	// Default: "10s"
	HandlerTimeout Duration `json:"handler_timeout,omitempty" koanf:"handler_timeout" toml:"handler_timeout,omitempty"`

	// ShutdownGrace bounds how long in-flight connections may drain on stop.
	// Default: "5s"
	ShutdownGrace Duration `json:"shutdown_grace,omitempty" koanf:"shutdown_grace" toml:"shutdown_grace,omitempty"`

	// MaxConnections caps concurrently handled connections.
	// Default: 64
	MaxConnections *int `json:"max_connections,omitempty" koanf:"max_connections" toml:"max_connections,omitempty"`
}

const (
	defaultHandlerTimeout = 10 * time.Second
	defaultShutdownGrace  = 5 * time.Second
	defaultMaxConnections = 64
)

// GetHandlerTimeout returns the per-handler timeout with default fallback.
func (d *DaemonConfig) GetHandlerTimeout() time.Duration {
	if d == nil || d.HandlerTimeout == 0 {
		return defaultHandlerTimeout
	}

	return time.Duration(d.HandlerTimeout)
}

// GetShutdownGrace returns the shutdown grace period with default fallback.
func (d *DaemonConfig) GetShutdownGrace() time.Duration {
	if d == nil || d.ShutdownGrace == 0 {
		return defaultShutdownGrace
	}

	return time.Duration(d.ShutdownGrace)
}

// GetMaxConnections returns the connection cap with default fallback.
func (d *DaemonConfig) GetMaxConnections() int {
	if d == nil || d.MaxConnections == nil || *d.MaxConnections <= 0 {
		return defaultMaxConnections
	}

	return *d.MaxConnections
}

// IsDebug returns whether debug logging is enabled.
func (d *DaemonConfig) IsDebug() bool {
	if d == nil || d.Debug == nil {
		return false
	}

	return *d.Debug
}

// HandlerEntry configures one handler under one event type.
type HandlerEntry struct {
	// Enabled controls whether the handler is instantiated.
	// Default: true
	Enabled *bool `json:"enabled,omitempty" koanf:"enabled" toml:"enabled,omitempty"`

	// Priority overrides the handler's default priority; lower runs
	// earlier. Key absent means "use the handler's default"; a key that
	// is present but empty or non-integral is a schema error, never
	// silently treated as unset.
	Priority *int `json:"priority,omitempty" koanf:"priority" toml:"priority,omitempty"`

	// Options is the handler-specific option map.
	Options map[string]any `json:"options,omitempty" koanf:"options" toml:"options,omitempty"`
}

// IsEnabled returns whether the entry is enabled (default true).
func (e *HandlerEntry) IsEnabled() bool {
	if e == nil || e.Enabled == nil {
		return true
	}

	return *e.Enabled
}

// HasPriorityOverride returns whether a usable priority override is present.
func (e *HandlerEntry) HasPriorityOverride() bool {
	return e != nil && e.Priority != nil
}

// PluginEntry configures one externally supplied handler unit. The event
// type is always explicit; there is no directory-convention inference.
type PluginEntry struct {
	// Name is the handler key the plugin binds to. The loader resolves
	// the exported symbol from this name.
	Name string `json:"name" koanf:"name" toml:"name"`

	// Event is the event type the plugin's handler is bound to. Required.
	Event string `json:"event" koanf:"event" toml:"event"`

	// Path is the filesystem path of the plugin object. Required.
	Path string `json:"path" koanf:"path" toml:"path"`

	// Enabled controls whether the plugin is loaded.
	// Default: true
	Enabled *bool `json:"enabled,omitempty" koanf:"enabled" toml:"enabled,omitempty"`

	// Options is passed to the plugin's handler constructor.
	Options map[string]any `json:"options,omitempty" koanf:"options" toml:"options,omitempty"`
}

// IsEnabled returns whether the plugin entry is enabled (default true).
func (p *PluginEntry) IsEnabled() bool {
	if p == nil || p.Enabled == nil {
		return true
	}

	return *p.Enabled
}

// EntryFor returns the handler entry for (eventType, key), or nil.
func (d *Document) EntryFor(eventType, key string) *HandlerEntry {
	if d == nil || d.Handlers == nil {
		return nil
	}

	byKey, ok := d.Handlers[eventType]
	if !ok {
		return nil
	}

	return byKey[key]
}

// GetDaemon returns the daemon config, creating it if absent.
func (d *Document) GetDaemon() *DaemonConfig {
	if d.Daemon == nil {
		d.Daemon = &DaemonConfig{}
	}

	return d.Daemon
}
