package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/bianoble/template-cleanup/internal/cache"
	"github.com/bianoble/template-cleanup/internal/expr"
	"github.com/bianoble/template-cleanup/internal/fsys"
)

// cacheScope is bumped whenever the Config layout changes so stale on-disk
// entries are ignored.
const cacheScope = "config/v2"

// Loader reads configuration files, memoizing parsed results by absolute
// path and content hash.
type Loader struct {
	// Cache is the process-scoped cache. Nil disables memoization.
	Cache cache.Cache

	// Store, when set, persists parsed configs across invocations.
	Store *cache.Store

	Logger *slog.Logger
}

// Load reads and validates a configuration file without caching.
func Load(path string) (*Config, error) {
	return (&Loader{}).Load(path)
}

// Load reads and validates the configuration file at path. The returned
// Config may be shared with other callers and must not be modified.
func (l *Loader) Load(path string) (*Config, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("reading: %w", err)}
	}

	key := cache.Key{Scope: cacheScope, Path: abs, Hash: cache.ComputeHash(data)}

	if l.Cache != nil {
		if v, ok := l.Cache.Get(key); ok {
			if cfg, ok := v.(*Config); ok {
				logger.Debug("config cache hit", slog.String("path", abs))
				return cfg, nil
			}
		}
	}

	if l.Store != nil {
		if cfg := l.fromStore(key, logger); cfg != nil {
			if l.Cache != nil {
				l.Cache.Set(key, cfg)
			}
			return cfg, nil
		}
	}

	cfg, err := Parse(data)
	if err != nil {
		if ce, ok := err.(*ConfigError); ok {
			ce.Path = path
		}
		return nil, err
	}

	if l.Cache != nil {
		l.Cache.Set(key, cfg)
	}
	if l.Store != nil {
		payload, err := marshalStored(cfg)
		if err == nil {
			err = l.Store.Put(key, payload)
		}
		if err != nil {
			logger.Warn("could not persist parsed config", slog.String("path", abs), slog.Any("error", err))
		}
	}

	return cfg, nil
}

func (l *Loader) fromStore(key cache.Key, logger *slog.Logger) *Config {
	payload, ok, err := l.Store.Get(key)
	if err != nil {
		logger.Debug("config store read failed", slog.String("path", key.Path), slog.Any("error", err))
		return nil
	}
	if !ok {
		return nil
	}

	cfg, err := unmarshalStored(payload)
	if err != nil {
		return nil
	}

	logger.Debug("config store hit", slog.String("path", key.Path))
	return cfg
}

// Parse decodes and validates configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("parsing: %w", err)}
	}

	if problems := Validate(&cfg); len(problems) > 0 {
		return nil, &ConfigError{Err: ErrInvalidConfig, Problems: problems}
	}

	return &cfg, nil
}

var validator = expr.MustNewEvaluator()

// Validate checks a Config for semantic correctness.
// Returns a list of problems (empty if valid).
func Validate(cfg *Config) []string {
	var errs []string

	if len(cfg.Profiles) == 0 && len(cfg.ConditionalRules) == 0 {
		errs = append(errs, "at least one profile or conditional rule set is required")
	}

	for _, name := range cfg.ProfileNames() {
		p := cfg.Profiles[name]
		if p.Extends != "" {
			if _, ok := cfg.Profiles[p.Extends]; !ok {
				errs = append(errs, fmt.Sprintf("profile '%s': extends undefined profile '%s'", name, p.Extends))
			}
		}
		for i, r := range p.Rules {
			errs = append(errs, validateRule(r, rulePrefix(fmt.Sprintf("profile '%s'", name), i, r))...)
		}
	}

	for _, feature := range cfg.FeatureNames() {
		for i, r := range cfg.ConditionalRules[feature] {
			errs = append(errs, validateRule(r, rulePrefix(fmt.Sprintf("conditional_rules '%s'", feature), i, r))...)
		}
	}

	for name, pair := range cfg.Markers.Blocks {
		if pair.Start == "" || pair.End == "" {
			errs = append(errs, fmt.Sprintf("markers '%s': both 'start' and 'end' are required", name))
		}
	}

	for ext, cs := range cfg.CommentSyntax {
		if cs.IsBlock() && (cs.Start == "" || cs.End == "") {
			errs = append(errs, fmt.Sprintf("comment_syntax '%s': block syntax needs both start and end", ext))
		}
		if !cs.IsBlock() && cs.Line == "" {
			errs = append(errs, fmt.Sprintf("comment_syntax '%s': empty comment token", ext))
		}
	}

	return errs
}

func rulePrefix(owner string, i int, r Rule) string {
	if r.ID != "" {
		return fmt.Sprintf("%s rule '%s'", owner, r.ID)
	}
	return fmt.Sprintf("%s rule[%d]", owner, i)
}

func validateRule(r Rule, prefix string) []string {
	var errs []string

	for _, p := range append(append(r.Patterns(), r.Include...), r.Exclude...) {
		if !fsys.ValidPattern(p) {
			errs = append(errs, fmt.Sprintf("%s: invalid glob pattern '%s'", prefix, p))
		}
	}

	if r.Condition != "" {
		if err := validator.Validate(r.Condition); err != nil {
			errs = append(errs, fmt.Sprintf("%s: invalid condition: %v", prefix, err))
		}
	}

	switch r.Type {
	case TypeFileGlobDelete:
		if len(r.Patterns()) == 0 {
			errs = append(errs, fmt.Sprintf("%s: type '%s' requires 'glob' or 'globs'", prefix, r.Type))
		}
	case TypeBlockMarkers, TypeLineTag, TypeConditionalBlock, TypePruneEmpty:
		// include/exclude are optional
	case TypePackagePrune:
		if len(r.RemoveDeps) == 0 && len(r.RemoveDevDeps) == 0 {
			errs = append(errs, fmt.Sprintf("%s: type '%s' requires 'remove_deps' or 'remove_dev_deps'", prefix, r.Type))
		}
	case TypeCustom:
		if r.Module == "" {
			errs = append(errs, fmt.Sprintf("%s: type '%s' requires 'module'", prefix, r.Type))
		}
	case "":
		errs = append(errs, fmt.Sprintf("%s: 'type' is required", prefix))
	default:
		errs = append(errs, fmt.Sprintf("%s: unknown rule type '%s'", prefix, r.Type))
	}

	return errs
}
