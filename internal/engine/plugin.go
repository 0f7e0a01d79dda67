package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/bianoble/template-cleanup/internal/config"
	"github.com/bianoble/template-cleanup/internal/expr"
	"github.com/bianoble/template-cleanup/internal/fsys"
	"github.com/bianoble/template-cleanup/internal/report"
)

// CustomRuleHandler implements a custom rule. Handlers write through
// PluginContext.FS, which is an in-memory overlay during a dry run, so the
// same code serves both modes.
type CustomRuleHandler interface {
	Execute(ctx context.Context, rule config.Rule, pc *PluginContext) ([]report.Action, error)
}

// CustomRuleFunc adapts a function to CustomRuleHandler.
type CustomRuleFunc func(ctx context.Context, rule config.Rule, pc *PluginContext) ([]report.Action, error)

func (f CustomRuleFunc) Execute(ctx context.Context, rule config.Rule, pc *PluginContext) ([]report.Action, error) {
	return f(ctx, rule, pc)
}

// PluginContext is what a custom handler may use from the running engine.
type PluginContext struct {
	FS       fsys.FileSystem
	DryRun   bool
	Features expr.FeatureSet
	Logger   *slog.Logger

	files func(config.Rule) ([]string, error)
}

// Files returns the text files rule applies to, after includes, excludes and
// kept files, exactly as the built-in marker rules see them.
func (pc *PluginContext) Files(rule config.Rule) ([]string, error) {
	if pc.files == nil {
		return nil, nil
	}
	return pc.files(rule)
}

// PluginRegistry maps module identifiers to statically registered handlers.
type PluginRegistry struct {
	mu       sync.RWMutex
	handlers map[string]CustomRuleHandler
}

// NewPluginRegistry creates an empty registry.
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{handlers: make(map[string]CustomRuleHandler)}
}

// normalizeModule makes "./scripts/x" and "scripts/x" the same identifier.
func normalizeModule(module string) string {
	return fsys.Clean(strings.TrimSpace(module))
}

// Register adds a handler under module. Duplicate modules are an error.
func (p *PluginRegistry) Register(module string, h CustomRuleHandler) error {
	key := normalizeModule(module)
	if key == "." || h == nil {
		return fmt.Errorf("registering plugin '%s': module and handler are required", module)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.handlers[key]; exists {
		return fmt.Errorf("plugin '%s' already registered", key)
	}
	p.handlers[key] = h
	return nil
}

// MustRegister is Register that panics on error. For static registration.
func (p *PluginRegistry) MustRegister(module string, h CustomRuleHandler) {
	if err := p.Register(module, h); err != nil {
		panic(err)
	}
}

// Lookup returns the handler for module.
func (p *PluginRegistry) Lookup(module string) (CustomRuleHandler, error) {
	key := normalizeModule(module)

	p.mu.RLock()
	defer p.mu.RUnlock()
	h, ok := p.handlers[key]
	if !ok {
		known := "none"
		if names := p.namesLocked(); len(names) > 0 {
			known = strings.Join(names, ", ")
		}
		return nil, fmt.Errorf("%w '%s' (registered: %s)", ErrUnknownPlugin, module, known)
	}
	return h, nil
}

// Names returns every registered module, sorted.
func (p *PluginRegistry) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.namesLocked()
}

func (p *PluginRegistry) namesLocked() []string {
	names := make([]string, 0, len(p.handlers))
	for name := range p.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
