// Package registry merges built-in and plugin-provided handler classes with
// the configuration document into the live set of chains. Everything here
// runs once at startup; any fault is fatal before the socket is bound.
package registry

import (
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/smykla-labs/hookd/internal/engine"
	"github.com/smykla-labs/hookd/internal/procctx"
	"github.com/smykla-labs/hookd/pkg/config"
	"github.com/smykla-labs/hookd/pkg/handler"
	"github.com/smykla-labs/hookd/pkg/hook"
	"github.com/smykla-labs/hookd/pkg/logger"
)

var (
	// ErrUnresolvedHandler is returned when an enabled configuration entry
	// matches no loaded class. Never a silent skip.
	ErrUnresolvedHandler = errors.New("no handler class for enabled configuration entry")

	// ErrDisabledParent is returned when a handler inherits options from a
	// parent that is not enabled.
	ErrDisabledParent = errors.New("options parent is not enabled")

	// ErrNoTestCases is returned when a handler declares no self-tests.
	ErrNoTestCases = errors.New("handler declares no test cases")
)

// Deps is what a handler factory receives at instantiation.
type Deps struct {
	// Options is the resolved option map for the handler, with shared
	// options already merged (own keys win).
	Options map[string]any

	// ProcCtx is the read-only process context.
	ProcCtx *procctx.Context

	// Log is the daemon logger.
	Log logger.Logger
}

// Factory constructs one handler instance.
type Factory func(deps Deps) (handler.Handler, error)

// Builtin describes a compile-time handler class: the event type it binds
// to, the options parent it inherits from (if any), and its constructor.
type Builtin struct {
	Event             hook.EventType
	SharesOptionsWith string
	New               Factory
}

// PluginClass is a loaded plugin handler ready for instantiation. The
// loader has already verified the contract (symbol, test cases, API
// version) and the explicit event binding.
type PluginClass struct {
	Key     string
	Event   hook.EventType
	Options map[string]any
	Handler handler.Handler

	// Configure is invoked with the resolved options before the handler
	// joins a chain; nil when the plugin takes no options.
	Configure func(options map[string]any) error
}

// Builder builds the chain map.
type Builder struct {
	builtins map[string]Builtin
	plugins  []*PluginClass
	pctx     *procctx.Context
	log      logger.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(
	builtins map[string]Builtin,
	plugins []*PluginClass,
	pctx *procctx.Context,
	log logger.Logger,
) *Builder {
	return &Builder{
		builtins: builtins,
		plugins:  plugins,
		pctx:     pctx,
		log:      log,
	}
}

// Build produces one chain per event type. Two passes: the first records
// every entry's resolved options keyed by (event, key) so shared-options
// inheritance sees parents regardless of map order; the second
// instantiates enabled handlers, applies priority overrides, and sorts.
// Identical configuration always yields identical chain order.
func (b *Builder) Build(doc *config.Document) (map[hook.EventType]*engine.Chain, error) {
	options := b.collectOptions(doc)

	instances := make(map[hook.EventType][]handler.Handler)

	for _, event := range hook.DispatchableEventTypes() {
		built, err := b.buildEvent(event, doc, options)
		if err != nil {
			return nil, err
		}

		if len(built) > 0 {
			instances[event] = built
		}
	}

	chains := make(map[hook.EventType]*engine.Chain, len(instances))

	timeout := doc.GetDaemon().GetHandlerTimeout()

	for event, hs := range instances {
		sortHandlers(hs)
		chains[event] = engine.NewChain(event, hs, timeout, b.log)
	}

	return chains, nil
}

type optionKey struct {
	event string
	key   string
}

// collectOptions is pass one: record every configured option map.
func (b *Builder) collectOptions(doc *config.Document) map[optionKey]map[string]any {
	out := make(map[optionKey]map[string]any)

	for event, byKey := range doc.Handlers {
		for key, entry := range byKey {
			if entry != nil && entry.Options != nil {
				out[optionKey{event, key}] = entry.Options
			}
		}
	}

	for _, p := range b.plugins {
		k := optionKey{string(p.Event), p.Key}
		if _, configured := out[k]; !configured && p.Options != nil {
			out[k] = p.Options
		}
	}

	return out
}

// buildEvent is pass two for one event type.
func (b *Builder) buildEvent(
	event hook.EventType,
	doc *config.Document,
	options map[optionKey]map[string]any,
) ([]handler.Handler, error) {
	var built []handler.Handler

	byKey := doc.Handlers[string(event)]

	// Deterministic iteration: sorted keys, not map order.
	keys := make([]string, 0, len(byKey))
	for key := range byKey {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	seen := make(map[string]bool)

	for _, key := range keys {
		entry := byKey[key]
		seen[key] = true

		h, err := b.buildEntry(event, key, entry, doc, options)
		if err != nil {
			return nil, err
		}

		if h != nil {
			built = append(built, h)
		}
	}

	// Plugins bound to this event with no explicit handlers entry are
	// enabled by default.
	for _, p := range b.plugins {
		if p.Event != event || seen[p.Key] {
			continue
		}

		h, err := b.instantiatePlugin(
			p, nil, options[optionKey{string(event), p.Key}], doc, options)
		if err != nil {
			return nil, err
		}

		built = append(built, h)
	}

	return built, nil
}

// buildEntry resolves one configuration entry to a handler instance, or to
// nil when the entry is disabled or references no loadable class while
// disabled.
func (b *Builder) buildEntry(
	event hook.EventType,
	key string,
	entry *config.HandlerEntry,
	doc *config.Document,
	options map[optionKey]map[string]any,
) (handler.Handler, error) {
	builtin, isBuiltin := b.builtins[key]
	isBuiltin = isBuiltin && builtin.Event == event

	pluginClass := b.pluginFor(event, key)

	if !entry.IsEnabled() {
		if !isBuiltin && pluginClass == nil {
			b.log.Info("configuration entry has no loaded class, ignoring (disabled)",
				"event", event,
				"handler", key,
			)
		}

		return nil, nil
	}

	if !isBuiltin && pluginClass == nil {
		// An enabled entry that resolves to nothing is a startup fault:
		// the operator asked for protection the daemon cannot provide.
		return nil, errors.Wrapf(
			ErrUnresolvedHandler,
			"handlers.%s.%s: no built-in or plugin class named %q (or %q); "+
				"remove the entry or install the plugin",
			event, key, key, key+"-handler",
		)
	}

	var (
		h   handler.Handler
		err error
	)

	if isBuiltin {
		h, err = b.instantiateBuiltin(event, key, builtin, doc, options)
	} else {
		own := options[optionKey{string(event), key}]
		h, err = b.instantiatePlugin(pluginClass, entry, own, doc, options)
	}

	if err != nil {
		return nil, err
	}

	return applyPriorityOverride(h, entry), nil
}

// instantiateBuiltin constructs a built-in handler with merged options.
func (b *Builder) instantiateBuiltin(
	event hook.EventType,
	key string,
	builtin Builtin,
	doc *config.Document,
	options map[optionKey]map[string]any,
) (handler.Handler, error) {
	own := options[optionKey{string(event), key}]

	merged := own

	if parent := builtin.SharesOptionsWith; parent != "" {
		parentEntry := doc.EntryFor(string(event), parent)
		if parentEntry == nil || !parentEntry.IsEnabled() {
			return nil, errors.Wrapf(
				ErrDisabledParent,
				"handlers.%s.%s shares options with %q which is not enabled; "+
					"enable %q or disable %q",
				event, key, parent, parent, key,
			)
		}

		merged = mergeOptions(options[optionKey{string(event), parent}], own)
	}

	h, err := builtin.New(Deps{
		Options: merged,
		ProcCtx: b.pctx,
		Log:     b.log,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to construct handler %s", key)
	}

	if len(h.TestCases()) == 0 {
		return nil, errors.Wrapf(ErrNoTestCases, "handler %s", key)
	}

	return h, nil
}

// instantiatePlugin configures a plugin class instance. Plugin descriptors
// may declare an options parent just like builtins do; the same merge and
// dependency rules apply.
func (b *Builder) instantiatePlugin(
	p *PluginClass,
	entry *config.HandlerEntry,
	own map[string]any,
	doc *config.Document,
	options map[optionKey]map[string]any,
) (handler.Handler, error) {
	if own == nil {
		own = p.Options
	}

	merged := own

	if parent := p.Handler.Descriptor().SharesOptionsWith; parent != "" {
		if !b.parentEnabled(p.Event, parent, doc) {
			return nil, errors.Wrapf(
				ErrDisabledParent,
				"handlers.%s.%s shares options with %q which is not enabled; "+
					"enable %q or disable %q",
				p.Event, p.Key, parent, parent, p.Key,
			)
		}

		merged = mergeOptions(b.parentOptions(p.Event, parent, options), own)
	}

	if p.Configure != nil && len(merged) > 0 {
		if err := p.Configure(merged); err != nil {
			return nil, errors.Wrapf(err, "failed to configure plugin handler %s", p.Key)
		}
	}

	if len(p.Handler.TestCases()) == 0 {
		return nil, errors.Wrapf(ErrNoTestCases, "plugin handler %s", p.Key)
	}

	return applyPriorityOverride(p.Handler, entry), nil
}

// parentEnabled reports whether the named options parent is enabled for
// the event: through its configuration entry when one exists, or by
// default when it is a loaded plugin without an entry.
func (b *Builder) parentEnabled(
	event hook.EventType,
	parent string,
	doc *config.Document,
) bool {
	if entry := doc.EntryFor(string(event), parent); entry != nil {
		return entry.IsEnabled()
	}

	return b.pluginFor(event, parent) != nil
}

// parentOptions resolves the parent's effective options: the configured
// map recorded in pass one, else a parent plugin's declared defaults.
func (b *Builder) parentOptions(
	event hook.EventType,
	parent string,
	options map[optionKey]map[string]any,
) map[string]any {
	if opts := options[optionKey{string(event), parent}]; opts != nil {
		return opts
	}

	if p := b.pluginFor(event, parent); p != nil {
		return p.Options
	}

	return nil
}

// pluginFor finds the plugin class matching (event, key), accepting the
// bare key or the conventional "-handler" suffix.
func (b *Builder) pluginFor(event hook.EventType, key string) *PluginClass {
	for _, p := range b.plugins {
		if p.Event != event {
			continue
		}

		if p.Key == key || p.Key == key+"-handler" || key == p.Key+"-handler" {
			return p
		}
	}

	return nil
}

// applyPriorityOverride wraps the handler when the entry carries a usable
// priority. A present-but-null priority never reaches here — the typed
// document collapses it to absent and the validator has already rejected
// it — so this stays defensive rather than load-bearing.
//
//nolint:ireturn // wrapping preserves the handler interface
func applyPriorityOverride(h handler.Handler, entry *config.HandlerEntry) handler.Handler {
	if entry == nil || !entry.HasPriorityOverride() {
		return h
	}

	return &priorityOverride{Handler: h, priority: *entry.Priority}
}

// priorityOverride substitutes the configured priority in the descriptor.
type priorityOverride struct {
	handler.Handler
	priority int
}

func (o *priorityOverride) Descriptor() handler.Descriptor {
	d := o.Handler.Descriptor()
	d.Priority = o.priority

	return d
}

// mergeOptions merges parent options under own options; own keys win.
func mergeOptions(parent, own map[string]any) map[string]any {
	if len(parent) == 0 {
		return own
	}

	merged := make(map[string]any, len(parent)+len(own))

	for k, v := range parent {
		merged[k] = v
	}

	for k, v := range own {
		merged[k] = v
	}

	return merged
}

// sortHandlers orders a chain by (priority ascending, key lexicographic).
// The key tie-break keeps duplicate priorities deterministic across
// restarts.
func sortHandlers(hs []handler.Handler) {
	sort.SliceStable(hs, func(i, j int) bool {
		di, dj := hs[i].Descriptor(), hs[j].Descriptor()
		if di.Priority != dj.Priority {
			return di.Priority < dj.Priority
		}

		return di.Key < dj.Key
	})
}
