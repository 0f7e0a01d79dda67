// Package cleanup provides the public Go library API for template-cleanup.
//
// template-cleanup turns a project generated from a template into a clean
// project: it deletes template-only files, strips marked blocks and tagged
// lines, drops unwanted dependencies from package manifests and removes what
// is left empty. Everything it would do or did is returned as a report.
//
// # Basic Usage
//
//	client, err := cleanup.New(cleanup.Options{
//	    WorkingDir: "/path/to/project",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Preview what the default profile would change
//	rep, err := client.Run(ctx, cleanup.RunOptions{DryRun: true})
//
//	// Apply the "minimal" profile with the docker feature disabled
//	rep, err = client.Run(ctx, cleanup.RunOptions{
//	    Profile:  "minimal",
//	    Features: []string{"!docker"},
//	})
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bianoble/template-cleanup/internal/cache"
	"github.com/bianoble/template-cleanup/internal/config"
	"github.com/bianoble/template-cleanup/internal/engine"
	"github.com/bianoble/template-cleanup/internal/expr"
	"github.com/bianoble/template-cleanup/internal/fsys"
	"github.com/bianoble/template-cleanup/internal/markers"
	"github.com/bianoble/template-cleanup/internal/perf"
	"github.com/bianoble/template-cleanup/internal/pkgmgr"
	"github.com/bianoble/template-cleanup/internal/plugins"
	"github.com/bianoble/template-cleanup/internal/report"
)

// MetricsNamespace prefixes every exported Prometheus metric.
const MetricsNamespace = "template_cleanup"

// Options configures a template-cleanup client.
type Options struct {
	// WorkingDir is the project tree rules operate on. Default: the current
	// directory.
	WorkingDir string

	// ConfigPath is the path to the config file. If empty, the file is
	// discovered in WorkingDir.
	ConfigPath string

	// CacheDir is the persistent cache directory. If empty, uses the default
	// (~/.cache/template-cleanup).
	CacheDir string

	// NoCache disables both the in-memory and on-disk caches. The
	// TEMPLATE_CLEANUP_NO_CACHE environment variable has the same effect.
	NoCache bool

	// Performance enables run tracking; reports then carry a performance
	// section and Metrics returns the collected counters.
	Performance bool

	// Managers are added to the built-in package manager adapters.
	Managers []pkgmgr.Adapter

	// Plugins are custom rule handlers keyed by module identifier, added to
	// the built-in ones.
	Plugins map[string]engine.CustomRuleHandler

	Logger *slog.Logger
}

// RunOptions configures a single run.
type RunOptions struct {
	// Profile selects the rule set. Default: "default".
	Profile string

	// Features override the configured defaults: "name" enables a feature,
	// "!name" disables it.
	Features []string

	DryRun bool

	Only         []string // rule ids to run; empty = all
	Exclude      []string // rule ids to skip
	ExcludeGlobs []string // paths no rule may touch
	Keep         []string // paths that are never the subject of an action

	Parallel    bool
	Concurrency int

	OnProgress func(rule string, completed, total int)
}

// Runner executes a cleanup run.
type Runner interface {
	Run(ctx context.Context, opts RunOptions) (*report.Report, error)
}

// Client is the main entry point for the template-cleanup library.
// It implements Runner.
type Client struct {
	workingDir string
	configPath string

	cache    cache.Cache
	store    *cache.Store
	loader   *config.Loader
	managers *pkgmgr.Registry
	plugins  *engine.PluginRegistry
	eval     *expr.Evaluator
	metrics  *perf.Metrics
	logger   *slog.Logger
}

// New creates a new template-cleanup Client.
func New(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dir := opts.WorkingDir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("working directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("working directory %s is not a directory", abs)
	}

	c := &Client{
		workingDir: abs,
		configPath: opts.ConfigPath,
		managers:   pkgmgr.NewRegistry(opts.Managers...),
		plugins:    engine.NewPluginRegistry(),
		logger:     logger,
	}

	if err := plugins.Register(c.plugins); err != nil {
		return nil, fmt.Errorf("registering built-in plugins: %w", err)
	}
	for module, h := range opts.Plugins {
		if err := c.plugins.Register(module, h); err != nil {
			return nil, fmt.Errorf("registering plugin: %w", err)
		}
	}

	c.eval, err = expr.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("initializing condition evaluator: %w", err)
	}

	if opts.NoCache || config.EnvNoCache() {
		c.cache = cache.NewNoop()
	} else {
		c.cache = cache.NewMemory(0, 0)

		cacheDir := opts.CacheDir
		if cacheDir == "" {
			cacheDir = cache.DefaultDir()
		}
		store, err := cache.NewStore(cacheDir, cache.DefaultTTL)
		if err != nil {
			// The in-memory cache still works without a writable directory.
			logger.Warn("persistent cache disabled", slog.Any("error", err))
		} else {
			c.store = store
		}
	}

	c.loader = &config.Loader{Cache: c.cache, Store: c.store, Logger: logger}

	if opts.Performance {
		c.metrics = perf.InitPrometheusMetrics(MetricsNamespace, nil)
	}

	return c, nil
}

// WorkingDir returns the absolute project directory.
func (c *Client) WorkingDir() string {
	return c.workingDir
}

// ConfigPath returns the configuration file the client uses, discovering it
// on first use.
func (c *Client) ConfigPath() (string, error) {
	if c.configPath != "" {
		return c.configPath, nil
	}
	p, err := config.Discover(c.workingDir, "")
	if err != nil {
		return "", err
	}
	c.configPath = p
	return p, nil
}

// Config loads and validates the configuration.
func (c *Client) Config() (*config.Config, error) {
	p, err := c.ConfigPath()
	if err != nil {
		return nil, err
	}
	return c.loader.Load(p)
}

// Rules returns the rules profile resolves to, inherited ones first.
func (c *Client) Rules(profile string) ([]config.Rule, error) {
	cfg, err := c.Config()
	if err != nil {
		return nil, err
	}
	return cfg.ResolveRules(profile)
}

// Managers returns the names of the registered package manager adapters.
func (c *Client) Managers() []string {
	return c.managers.Names()
}

// Plugins returns the registered custom rule modules.
func (c *Client) Plugins() []string {
	return c.plugins.Names()
}

// CacheEnabled reports whether results are memoized.
func (c *Client) CacheEnabled() bool {
	_, noop := c.cache.(*cache.Noop)
	return !noop
}

// CacheStats returns the in-memory cache counters.
func (c *Client) CacheStats() cache.Stats {
	return c.cache.Stats()
}

// CacheDir returns the persistent cache directory, or "" when there is none.
func (c *Client) CacheDir() string {
	if c.store == nil {
		return ""
	}
	return c.store.Path()
}

// CacheSize returns the on-disk cache size in bytes.
func (c *Client) CacheSize() (int64, error) {
	if c.store == nil {
		return 0, nil
	}
	return c.store.Size()
}

// ClearCache removes every persisted cache entry.
func (c *Client) ClearCache() error {
	if m, ok := c.cache.(*cache.Memory); ok {
		m.Purge()
	}
	if c.store == nil {
		return nil
	}
	return c.store.Clear()
}

// Metrics returns the Prometheus collectors, or nil when performance
// tracking is off.
func (c *Client) Metrics() *perf.Metrics {
	return c.metrics
}

// Run loads the configuration, resolves the profile and executes its rules.
// An error is returned only when the run could not start; rule failures are
// recorded in the report.
func (c *Client) Run(ctx context.Context, opts RunOptions) (*report.Report, error) {
	fs, err := fsys.NewOS(c.workingDir)
	if err != nil {
		return nil, err
	}
	return c.run(ctx, fs, opts)
}

func (c *Client) run(ctx context.Context, fs fsys.FileSystem, opts RunOptions) (*report.Report, error) {
	cfg, err := c.Config()
	if err != nil {
		return nil, err
	}

	profile := opts.Profile
	if profile == "" {
		profile = config.DefaultProfile
	}
	rules, err := cfg.ResolveRules(profile)
	if err != nil {
		return nil, err
	}

	features := expr.ResolveFeatures(cfg.Features, opts.Features)
	c.warnUnknownFeatures(cfg, opts.Features)

	var tracker *perf.Tracker
	if c.metrics != nil {
		tracker = perf.New(c.metrics)
		tracker.SetCache(c.CacheEnabled(), c.cache.Stats)
	}

	eng := engine.Engine{
		FS:        fs,
		Parser:    NewParser(cfg),
		Cache:     c.cache,
		Managers:  c.managers,
		Plugins:   c.plugins,
		Evaluator: c.eval,
		Tracker:   tracker,
		Logger:    c.logger,
	}

	c.logger.Debug("starting run",
		slog.String("profile", profile),
		slog.Int("rules", len(rules)),
		slog.Any("features", features.Names()),
		slog.Bool("dry_run", opts.DryRun),
	)

	return eng.Execute(ctx, rules, engine.RunConfig{
		Profile:      profile,
		Features:     features,
		DryRun:       opts.DryRun,
		Only:         opts.Only,
		Exclude:      opts.Exclude,
		ExcludeGlobs: opts.ExcludeGlobs,
		KeepFiles:    opts.Keep,
		Parallel:     opts.Parallel,
		Concurrency:  opts.Concurrency,
		OnProgress:   opts.OnProgress,
	})
}

// warnUnknownFeatures logs overrides that no condition can observe.
func (c *Client) warnUnknownFeatures(cfg *config.Config, overrides []string) {
	known := make(map[string]bool)
	for _, name := range cfg.Features {
		known[name] = true
	}
	for _, name := range cfg.FeatureNames() {
		known[name] = true
	}
	if len(known) == 0 {
		return
	}
	for _, o := range overrides {
		name := o
		if len(name) > 0 && name[0] == '!' {
			name = name[1:]
		}
		if name != "" && !known[name] {
			c.logger.Warn("feature is not declared in the configuration", slog.String("feature", name))
		}
	}
}

// NewParser builds a marker parser from the configuration's markers and
// comment syntax overrides.
func NewParser(cfg *config.Config) *markers.Parser {
	opts := markers.Options{LineTag: cfg.Markers.LineTag}
	if len(cfg.Markers.Blocks) > 0 {
		opts.Pairs = make(map[string]markers.Pair, len(cfg.Markers.Blocks))
		for name, p := range cfg.Markers.Blocks {
			opts.Pairs[name] = markers.Pair{Start: p.Start, End: p.End}
		}
	}
	if len(cfg.CommentSyntax) > 0 {
		opts.Syntax = make(map[string]markers.Syntax, len(cfg.CommentSyntax))
		for ext, s := range cfg.CommentSyntax {
			opts.Syntax[ext] = markers.Syntax{Line: s.Line, BlockStart: s.Start, BlockEnd: s.End}
		}
	}
	return markers.NewParser(opts)
}
