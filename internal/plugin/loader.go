// Package plugin loads externally supplied handler units from Go plugin
// object files. Every binding is explicit in configuration: name, path,
// and event type. A plugin that fails any part of the contract is a fatal
// startup error, never a silent skip.
package plugin

import (
	goplugin "plugin"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"

	"github.com/smykla-labs/hookd/internal/registry"
	"github.com/smykla-labs/hookd/pkg/config"
	"github.com/smykla-labs/hookd/pkg/hook"
	"github.com/smykla-labs/hookd/pkg/logger"
	pluginapi "github.com/smykla-labs/hookd/pkg/plugin"
)

var (
	// ErrSymbolNotFound is returned when neither candidate symbol exists.
	ErrSymbolNotFound = errors.New("plugin exports no handler symbol")

	// ErrBadSymbolType is returned when the exported symbol does not
	// implement the plugin handler contract.
	ErrBadSymbolType = errors.New("plugin symbol does not implement plugin.Handler")

	// ErrNoTestCases is returned when a plugin handler declares no tests.
	ErrNoTestCases = errors.New("plugin handler declares no test cases")

	// ErrIncompatibleAPI is returned when the plugin was built against an
	// incompatible API version.
	ErrIncompatibleAPI = errors.New("incompatible plugin API version")
)

// symbolSource is the subset of *plugin.Plugin the loader uses. Tests
// substitute an in-memory implementation because plugin objects cannot be
// built inside the test binary.
type symbolSource interface {
	Lookup(name string) (goplugin.Symbol, error)
}

// openPlugin opens a plugin object file. Variable for test substitution.
var openPlugin = func(path string) (symbolSource, error) {
	return goplugin.Open(path)
}

// Loader resolves plugin entries into handler classes for the registry.
type Loader struct {
	projectRoot string
	log         logger.Logger
}

// NewLoader creates a Loader.
func NewLoader(projectRoot string, log logger.Logger) *Loader {
	return &Loader{
		projectRoot: projectRoot,
		log:         log,
	}
}

// LoadAll loads every enabled plugin entry. Any failure aborts the whole
// load; a partially loaded plugin set never serves traffic.
func (l *Loader) LoadAll(entries []*config.PluginEntry) ([]*registry.PluginClass, error) {
	classes := make([]*registry.PluginClass, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsEnabled() {
			l.log.Debug("skipping disabled plugin", "plugin", entry.Name)

			continue
		}

		class, err := l.load(entry)
		if err != nil {
			return nil, err
		}

		classes = append(classes, class)
	}

	return classes, nil
}

// load loads and verifies one plugin entry.
func (l *Loader) load(entry *config.PluginEntry) (*registry.PluginClass, error) {
	event, err := hook.ParseEventType(entry.Event)
	if err != nil {
		return nil, errors.Wrapf(err, "plugin %s", entry.Name)
	}

	if err := ValidateExtension(entry.Path, []string{".so"}); err != nil {
		return nil, errors.Wrapf(err, "plugin %s", entry.Name)
	}

	if err := ValidatePath(entry.Path, AllowedDirs(l.projectRoot)); err != nil {
		return nil, errors.Wrapf(err, "plugin %s", entry.Name)
	}

	p, err := openPlugin(entry.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open plugin %s from %s", entry.Name, entry.Path)
	}

	impl, err := resolveHandler(p, entry.Name)
	if err != nil {
		return nil, err
	}

	class, err := verify(impl, entry, event)
	if err != nil {
		return nil, err
	}

	info := impl.Info()
	l.log.Info("loaded plugin",
		"plugin", entry.Name,
		"version", info.Version,
		"event", event,
		"path", entry.Path,
	)

	return class, nil
}

// resolveHandler looks up the handler symbol: the exported CamelCase form
// of the configured name, falling back to the same with a Handler suffix.
func resolveHandler(p symbolSource, name string) (pluginapi.Handler, error) {
	candidates := []string{exportedName(name), exportedName(name) + "Handler"}

	var lastErr error

	for _, symName := range candidates {
		sym, err := p.Lookup(symName)
		if err != nil {
			lastErr = err

			continue
		}

		impl, ok := sym.(pluginapi.Handler)
		if !ok {
			// Exported variables surface as pointers to their type.
			if ptr, isPtr := sym.(*pluginapi.Handler); isPtr {
				return *ptr, nil
			}

			return nil, errors.Wrapf(ErrBadSymbolType, "plugin %s symbol %s", name, symName)
		}

		return impl, nil
	}

	return nil, errors.Wrapf(ErrSymbolNotFound,
		"plugin %s: tried %s and %s: %v",
		name, candidates[0], candidates[1], lastErr)
}

// verify checks the loaded handler against the plugin contract and wraps
// it as a registry class.
func verify(
	impl pluginapi.Handler,
	entry *config.PluginEntry,
	event hook.EventType,
) (*registry.PluginClass, error) {
	if err := checkAPIVersion(impl.Info()); err != nil {
		return nil, errors.Wrapf(err, "plugin %s", entry.Name)
	}

	if len(impl.TestCases()) == 0 {
		// Untested policy code is not allowed near the decision path.
		return nil, errors.Wrapf(ErrNoTestCases, "plugin %s", entry.Name)
	}

	desc := impl.Descriptor()
	if desc.Key != entry.Name && desc.Key != entry.Name+"-handler" {
		return nil, errors.Newf(
			"plugin %s: declared handler key %q matches neither %q nor %q",
			entry.Name, desc.Key, entry.Name, entry.Name+"-handler")
	}

	class := &registry.PluginClass{
		Key:     entry.Name,
		Event:   event,
		Options: entry.Options,
		Handler: impl,
	}

	if configurable, ok := impl.(pluginapi.Configurable); ok {
		class.Configure = configurable.Configure
	}

	return class, nil
}

// checkAPIVersion verifies the plugin was built against a compatible API
// major version.
func checkAPIVersion(info pluginapi.Info) error {
	reported, err := semver.NewVersion(info.APIVersion)
	if err != nil {
		return errors.Wrapf(err, "invalid api_version %q", info.APIVersion)
	}

	current := semver.MustParse(pluginapi.APIVersion)

	if reported.Major() != current.Major() {
		return errors.Wrapf(ErrIncompatibleAPI,
			"plugin built against %s, daemon speaks %s",
			info.APIVersion, pluginapi.APIVersion)
	}

	return nil
}

// exportedName converts a configured plugin name to its exported Go symbol
// form: "secrets_scan" and "secrets-scan" both become "SecretsScan".
func exportedName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var b strings.Builder

	for _, part := range parts {
		if part == "" {
			continue
		}

		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}

	return b.String()
}

// NewClassForTesting builds a registry class from an in-memory handler,
// bypassing the object-file load but keeping the contract checks.
func NewClassForTesting(
	impl pluginapi.Handler,
	entry *config.PluginEntry,
	event hook.EventType,
) (*registry.PluginClass, error) {
	return verify(impl, entry, event)
}
