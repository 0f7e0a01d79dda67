// Package perf collects timing, memory and cache observations for a cleanup
// run and derives a report with recommendations. It never changes what a
// run does. A nil *Tracker is valid and records nothing.
package perf

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bianoble/template-cleanup/internal/cache"
)

const (
	// DominantShare flags a rule taking more than this share of rule time.
	DominantShare = 0.5

	// MinCacheEfficiency flags cache hit rates below this percentage.
	MinCacheEfficiency = 50.0

	// HeapWarning flags peak heap above this many bytes.
	HeapWarning = 512 << 20

	// ParallelHint suggests --parallel above this many sequential files.
	ParallelHint = 200

	topN = 5
)

// RuleStat aggregates executions of one rule.
type RuleStat struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	Count    int           `json:"count"`
	Errors   int           `json:"errors"`
	Duration time.Duration `json:"durationNs"`
}

// FileStat records one file visit.
type FileStat struct {
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Duration time.Duration `json:"durationNs"`
	CacheHit bool          `json:"cacheHit"`
}

// MemorySnapshot is a point-in-time memory reading.
type MemorySnapshot struct {
	Label     string    `json:"label"`
	At        time.Time `json:"at"`
	HeapAlloc uint64    `json:"heapAlloc"`
	Sys       uint64    `json:"sys"`
}

// Tracker accumulates observations. Safe for concurrent use.
type Tracker struct {
	mu sync.Mutex

	start, end time.Time
	parallel   bool

	rules     map[string]*RuleStat
	ruleOrder []string
	files     []FileStat
	snapshots []MemorySnapshot
	peakHeap  uint64
	peakSys   uint64

	cacheEnabled bool
	cacheStats   func() cache.Stats

	metrics *Metrics
	now     func() time.Time
	readMem func() (heap, sys uint64)
}

// New creates a Tracker. metrics may be nil.
func New(metrics *Metrics) *Tracker {
	return &Tracker{
		rules:   make(map[string]*RuleStat),
		metrics: metrics,
		now:     time.Now,
		readMem: readMemStats,
	}
}

func readMemStats() (uint64, uint64) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc, ms.Sys
}

// Metrics returns the Prometheus mirror, if any.
func (t *Tracker) Metrics() *Metrics {
	if t == nil {
		return nil
	}
	return t.metrics
}

// Start marks the beginning of a run.
func (t *Tracker) Start(parallel bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.start = t.now()
	t.parallel = parallel
	t.mu.Unlock()
	t.Snapshot("start")
}

// Stop marks the end of a run.
func (t *Tracker) Stop() {
	if t == nil {
		return
	}
	t.Snapshot("end")
	t.mu.Lock()
	defer t.mu.Unlock()
	t.end = t.now()
	if t.metrics != nil {
		t.metrics.runDuration.Set(t.end.Sub(t.start).Seconds())
		t.metrics.peakHeap.Set(float64(t.peakHeap))
	}
}

// SetCache tells the tracker whether caching is on and where to read stats.
func (t *Tracker) SetCache(enabled bool, stats func() cache.Stats) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cacheEnabled = enabled
	t.cacheStats = stats
}

// RuleDone records one rule execution.
func (t *Tracker) RuleDone(id, ruleType string, d time.Duration, failed bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	rs, ok := t.rules[id]
	if !ok {
		rs = &RuleStat{ID: id, Type: ruleType}
		t.rules[id] = rs
		t.ruleOrder = append(t.ruleOrder, id)
	}
	rs.Count++
	rs.Duration += d
	if failed {
		rs.Errors++
	}
	if t.metrics != nil {
		t.metrics.recordRule(ruleType, d, failed)
	}
}

// FileDone records one file visit.
func (t *Tracker) FileDone(path string, size int64, d time.Duration, cacheHit bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.files = append(t.files, FileStat{Path: path, Size: size, Duration: d, CacheHit: cacheHit})
	if t.metrics != nil {
		t.metrics.recordFile(size, cacheHit)
	}
}

// Snapshot records current memory usage under label.
func (t *Tracker) Snapshot(label string) {
	if t == nil {
		return
	}
	heap, sys := t.readMem()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshots = append(t.snapshots, MemorySnapshot{Label: label, At: t.now(), HeapAlloc: heap, Sys: sys})
	t.peakHeap = max(t.peakHeap, heap)
	t.peakSys = max(t.peakSys, sys)
}

// Report is the derived view of a run.
type Report struct {
	Duration        time.Duration    `json:"durationNs"`
	Parallel        bool             `json:"parallel"`
	FilesProcessed  int              `json:"filesProcessed"`
	BytesProcessed  int64            `json:"bytesProcessed"`
	RulesExecuted   int              `json:"rulesExecuted"`
	Throughput      float64          `json:"filesPerSecond"`
	CacheEnabled    bool             `json:"cacheEnabled"`
	CacheHits       uint64           `json:"cacheHits"`
	CacheMisses     uint64           `json:"cacheMisses"`
	CacheEfficiency float64          `json:"cacheEfficiency"`
	PeakHeapBytes   uint64           `json:"peakHeapBytes"`
	PeakSysBytes    uint64           `json:"peakSysBytes"`
	Rules           []RuleStat       `json:"rules"`
	SlowestFiles    []FileStat       `json:"slowestFiles"`
	SlowestRules    []RuleStat       `json:"slowestRules"`
	Snapshots       []MemorySnapshot `json:"snapshots"`
	Recommendations []string         `json:"recommendations"`
}

// Report derives the run report. Safe to call before Stop, in which case the
// duration runs up to now.
func (t *Tracker) Report() *Report {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	end := t.end
	if end.IsZero() {
		end = t.now()
	}

	r := &Report{
		Duration:       end.Sub(t.start),
		Parallel:       t.parallel,
		FilesProcessed: len(t.files),
		CacheEnabled:   t.cacheEnabled,
		PeakHeapBytes:  t.peakHeap,
		PeakSysBytes:   t.peakSys,
		Snapshots:      append([]MemorySnapshot(nil), t.snapshots...),
	}

	for _, f := range t.files {
		r.BytesProcessed += f.Size
	}
	if secs := r.Duration.Seconds(); secs > 0 {
		r.Throughput = float64(len(t.files)) / secs
	}

	var ruleTotal time.Duration
	for _, id := range t.ruleOrder {
		rs := *t.rules[id]
		r.Rules = append(r.Rules, rs)
		r.RulesExecuted += rs.Count
		ruleTotal += rs.Duration
	}

	if t.cacheStats != nil {
		s := t.cacheStats()
		r.CacheHits, r.CacheMisses, r.CacheEfficiency = s.Hits, s.Misses, s.Efficiency()
	}

	files := append([]FileStat(nil), t.files...)
	sort.SliceStable(files, func(i, j int) bool { return files[i].Duration > files[j].Duration })
	r.SlowestFiles = files[:min(topN, len(files))]

	rules := append([]RuleStat(nil), r.Rules...)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Duration > rules[j].Duration })
	r.SlowestRules = rules[:min(topN, len(rules))]

	r.Recommendations = recommend(r, ruleTotal)
	return r
}

func recommend(r *Report, ruleTotal time.Duration) []string {
	var out []string

	if len(r.SlowestRules) > 1 && ruleTotal > 0 {
		top := r.SlowestRules[0]
		if share := float64(top.Duration) / float64(ruleTotal); share > DominantShare {
			out = append(out, fmt.Sprintf("rule '%s' (%s) took %.0f%% of rule time; narrow its globs or split it", top.ID, top.Type, share*100))
		}
	}

	if r.CacheEnabled && r.CacheHits+r.CacheMisses > 0 && r.CacheEfficiency < MinCacheEfficiency {
		out = append(out, fmt.Sprintf("cache efficiency is %.1f%%; repeated runs over unchanged files benefit most from the cache", r.CacheEfficiency))
	}

	if r.PeakHeapBytes > HeapWarning {
		out = append(out, fmt.Sprintf("peak heap reached %s; lower --concurrency to reduce memory", humanize.IBytes(r.PeakHeapBytes)))
	}

	if !r.Parallel && r.FilesProcessed > ParallelHint {
		out = append(out, fmt.Sprintf("%d files processed sequentially; try --parallel", r.FilesProcessed))
	}

	return out
}

// Summary renders the report for humans.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Performance:\n")
	fmt.Fprintf(&b, "  duration:    %s (parallel: %t)\n", r.Duration.Round(time.Millisecond), r.Parallel)
	fmt.Fprintf(&b, "  files:       %s (%s, %.1f files/s)\n", humanize.Comma(int64(r.FilesProcessed)), humanize.IBytes(uint64(max(r.BytesProcessed, 0))), r.Throughput)
	fmt.Fprintf(&b, "  rules:       %d executions\n", r.RulesExecuted)
	if r.CacheEnabled {
		fmt.Fprintf(&b, "  cache:       %.1f%% hits (%d/%d)\n", r.CacheEfficiency, r.CacheHits, r.CacheHits+r.CacheMisses)
	} else {
		fmt.Fprintf(&b, "  cache:       disabled\n")
	}
	fmt.Fprintf(&b, "  peak heap:   %s\n", humanize.IBytes(r.PeakHeapBytes))

	for _, rs := range r.SlowestRules {
		fmt.Fprintf(&b, "  slow rule:   %s %s\n", rs.ID, rs.Duration.Round(time.Microsecond))
	}
	for _, f := range r.SlowestFiles {
		fmt.Fprintf(&b, "  slow file:   %s %s\n", f.Path, f.Duration.Round(time.Microsecond))
	}
	for _, rec := range r.Recommendations {
		fmt.Fprintf(&b, "  hint:        %s\n", rec)
	}
	return b.String()
}
