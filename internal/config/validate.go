package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/smykla-labs/hookd/pkg/config"
	"github.com/smykla-labs/hookd/pkg/hook"
)

// ErrInvalidConfig is the sentinel wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigError describes one schema violation at a document path.
type ConfigError struct {
	// Path is the document path of the offending value.
	Path string

	// Message describes the violation and the required fix.
	Message string
}

// Error implements the error interface.
func (e ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Result is the outcome of validating a document.
type Result struct {
	// Errors are fatal schema violations; any entry aborts startup.
	Errors []ConfigError

	// Warnings are suspicious but safe conditions, logged at startup.
	Warnings []string
}

// Err combines all errors into one, or returns nil when the document is
// valid. Every violation is surfaced, not just the first.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}

	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}

	return errors.Wrapf(
		ErrInvalidConfig,
		"%d error(s):\n  %s",
		len(r.Errors),
		strings.Join(msgs, "\n  "),
	)
}

// Validator validates a configuration document against the strict schema.
type Validator struct{}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the document. The raw merged map is consulted for the
// checks that need to distinguish "key absent" from "key present but null
// or mistyped" — the typed document cannot express that difference.
func (v *Validator) Validate(doc *config.Document, raw map[string]any) Result {
	var res Result

	if doc == nil {
		res.Errors = append(res.Errors, ConfigError{
			Path:    "",
			Message: "document is nil",
		})

		return res
	}

	v.validateHandlers(raw, &res)
	v.validatePlugins(doc, &res)
	v.validateDaemon(doc, &res)

	return res
}

// validateHandlers checks every handlers.<event>.<key> entry in the raw map.
func (v *Validator) validateHandlers(raw map[string]any, res *Result) {
	handlersRaw, ok := raw["handlers"].(map[string]any)
	if !ok {
		return
	}

	events := sortedKeys(handlersRaw)

	for _, event := range events {
		if _, err := hook.ParseEventType(event); err != nil || event == string(hook.EventTypeStatus) {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"handlers.%s: unknown event type, section ignored", event,
			))

			continue
		}

		byKey, ok := handlersRaw[event].(map[string]any)
		if !ok {
			res.Errors = append(res.Errors, ConfigError{
				Path:    "handlers." + event,
				Message: "must be a table of handler entries",
			})

			continue
		}

		v.validateEventSection(event, byKey, res)
	}
}

// validateEventSection checks the entries of one event type and reports
// duplicate priorities across them.
func (v *Validator) validateEventSection(event string, byKey map[string]any, res *Result) {
	priorities := make(map[int][]string)

	for _, key := range sortedKeys(byKey) {
		entry, ok := byKey[key].(map[string]any)
		if !ok {
			res.Errors = append(res.Errors, ConfigError{
				Path:    fmt.Sprintf("handlers.%s.%s", event, key),
				Message: "must be a table with enabled/priority/options",
			})

			continue
		}

		path := fmt.Sprintf("handlers.%s.%s.priority", event, key)

		rawPriority, present := entry["priority"]
		if !present {
			continue
		}

		p, perr := intValue(rawPriority)
		if perr != nil {
			res.Errors = append(res.Errors, ConfigError{Path: path, Message: perr.Error()})

			continue
		}

		priorities[p] = append(priorities[p], key)
	}

	for _, p := range sortedIntKeys(priorities) {
		keys := priorities[p]
		if len(keys) > 1 {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"handlers.%s: handlers %s share priority %d; order falls back to key name",
				event, strings.Join(keys, ", "), p,
			))
		}
	}
}

// intValue coerces a raw config value into an integer priority. A present
// key must hold an integral value: explicit null or an empty value is a
// schema error, never treated as "unset".
func intValue(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, errors.New(
			"priority is null; remove the key to use the handler default or set an integer",
		)
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, errors.Newf("priority must be an integer, got %v", n)
		}

		return int(n), nil
	case string:
		// Environment overrides arrive as strings.
		if strings.TrimSpace(n) == "" {
			return 0, errors.New(
				"priority is empty; remove the key to use the handler default or set an integer",
			)
		}

		p, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, errors.Newf("priority must be an integer, got %q", n)
		}

		return p, nil
	default:
		return 0, errors.Newf("priority must be an integer, got %T", v)
	}
}

// validatePlugins checks the plugin entries of the typed document.
func (v *Validator) validatePlugins(doc *config.Document, res *Result) {
	seen := make(map[string]bool)

	for i, p := range doc.Plugins {
		path := fmt.Sprintf("plugins[%d]", i)

		if p == nil {
			res.Errors = append(res.Errors, ConfigError{Path: path, Message: "entry is empty"})

			continue
		}

		if p.Name == "" {
			res.Errors = append(res.Errors, ConfigError{
				Path:    path + ".name",
				Message: "plugin name is required",
			})
		} else if seen[p.Name] {
			res.Errors = append(res.Errors, ConfigError{
				Path:    path + ".name",
				Message: fmt.Sprintf("duplicate plugin name %q", p.Name),
			})
		} else {
			seen[p.Name] = true
		}

		if p.Path == "" {
			res.Errors = append(res.Errors, ConfigError{
				Path:    path + ".path",
				Message: "plugin path is required",
			})
		}

		// The event binding is always explicit; nothing is inferred
		// from the plugin's location on disk.
		if p.Event == "" {
			res.Errors = append(res.Errors, ConfigError{
				Path:    path + ".event",
				Message: "plugin event type is required (no directory-based inference)",
			})
		} else if _, err := hook.ParseEventType(p.Event); err != nil || p.Event == string(hook.EventTypeStatus) {
			res.Errors = append(res.Errors, ConfigError{
				Path:    path + ".event",
				Message: fmt.Sprintf("unknown event type %q", p.Event),
			})
		}
	}
}

// validateDaemon checks daemon settings.
func (v *Validator) validateDaemon(doc *config.Document, res *Result) {
	d := doc.Daemon
	if d == nil {
		return
	}

	if d.MaxConnections != nil && *d.MaxConnections <= 0 {
		res.Errors = append(res.Errors, ConfigError{
			Path:    "daemon.max_connections",
			Message: fmt.Sprintf("must be positive, got %d", *d.MaxConnections),
		})
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

func sortedIntKeys(m map[int][]string) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Ints(keys)

	return keys
}
