package perf

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bianoble/template-cleanup/internal/cache"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestTracker(metrics *Metrics, heap uint64) (*Tracker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	t := New(metrics)
	t.now = clock.Now
	t.readMem = func() (uint64, uint64) { return heap, heap * 2 }
	return t, clock
}

func TestNilTrackerIsNoop(t *testing.T) {
	t.Parallel()

	var tr *Tracker
	tr.Start(true)
	tr.RuleDone("r", "line_tag", time.Second, false)
	tr.FileDone("a", 1, time.Second, true)
	tr.Snapshot("x")
	tr.SetCache(true, nil)
	tr.Stop()

	assert.Nil(t, tr.Report())
	assert.Nil(t, tr.Metrics())
}

func TestReportAggregates(t *testing.T) {
	t.Parallel()

	tr, clock := newTestTracker(nil, 1<<20)
	tr.Start(true)

	tr.RuleDone("strip", "block_markers", 30*time.Millisecond, false)
	tr.RuleDone("tags", "line_tag", 10*time.Millisecond, true)
	tr.RuleDone("strip", "block_markers", 20*time.Millisecond, false)
	tr.FileDone("a.go", 100, 5*time.Millisecond, false)
	tr.FileDone("b.go", 300, 9*time.Millisecond, true)

	clock.Advance(2 * time.Second)
	tr.Stop()

	r := tr.Report()
	require.NotNil(t, r)

	assert.Equal(t, 2*time.Second, r.Duration)
	assert.True(t, r.Parallel)
	assert.Equal(t, 2, r.FilesProcessed)
	assert.Equal(t, int64(400), r.BytesProcessed)
	assert.Equal(t, 3, r.RulesExecuted)
	assert.InDelta(t, 1.0, r.Throughput, 0.0001)
	assert.Equal(t, uint64(1<<20), r.PeakHeapBytes)
	assert.Equal(t, uint64(2<<20), r.PeakSysBytes)

	require.Len(t, r.Rules, 2)
	assert.Equal(t, RuleStat{ID: "strip", Type: "block_markers", Count: 2, Duration: 50 * time.Millisecond}, r.Rules[0])
	assert.Equal(t, RuleStat{ID: "tags", Type: "line_tag", Count: 1, Errors: 1, Duration: 10 * time.Millisecond}, r.Rules[1])

	require.Len(t, r.SlowestFiles, 2)
	assert.Equal(t, "b.go", r.SlowestFiles[0].Path)
	assert.Equal(t, "strip", r.SlowestRules[0].ID)

	require.Len(t, r.Snapshots, 2)
	assert.Equal(t, "start", r.Snapshots[0].Label)
	assert.Equal(t, "end", r.Snapshots[1].Label)
}

func TestSlowestListsAreCapped(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTracker(nil, 0)
	tr.Start(false)
	for i := range 12 {
		tr.FileDone(filepath.Join("dir", string(rune('a'+i))), 1, time.Duration(i)*time.Millisecond, false)
	}
	tr.Stop()

	r := tr.Report()
	require.Len(t, r.SlowestFiles, topN)
	assert.Equal(t, "dir/l", r.SlowestFiles[0].Path)
}

func TestRecommendations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		heap  uint64
		setup func(tr *Tracker)
		want  []string
	}{
		{
			name: "quiet run",
			setup: func(tr *Tracker) {
				tr.RuleDone("a", "line_tag", 10*time.Millisecond, false)
				tr.RuleDone("b", "line_tag", 10*time.Millisecond, false)
			},
		},
		{
			name: "dominant rule",
			setup: func(tr *Tracker) {
				tr.RuleDone("slow", "block_markers", 90*time.Millisecond, false)
				tr.RuleDone("fast", "line_tag", 10*time.Millisecond, false)
			},
			want: []string{"rule 'slow' (block_markers) took 90%"},
		},
		{
			name: "low cache efficiency",
			setup: func(tr *Tracker) {
				tr.SetCache(true, func() cache.Stats { return cache.Stats{Hits: 1, Misses: 9} })
			},
			want: []string{"cache efficiency is 10.0%"},
		},
		{
			name: "disabled cache is not flagged",
			setup: func(tr *Tracker) {
				tr.SetCache(false, func() cache.Stats { return cache.Stats{Misses: 9} })
			},
		},
		{
			name: "high heap",
			heap: HeapWarning + 1,
			setup: func(tr *Tracker) {},
			want:  []string{"peak heap reached"},
		},
		{
			name: "many sequential files",
			setup: func(tr *Tracker) {
				for range ParallelHint + 1 {
					tr.FileDone("f", 1, time.Microsecond, false)
				}
			},
			want: []string{"try --parallel"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr, _ := newTestTracker(nil, tt.heap)
			tr.Start(false)
			tt.setup(tr)
			tr.Stop()

			recs := tr.Report().Recommendations
			require.Len(t, recs, len(tt.want))
			for i, want := range tt.want {
				assert.Contains(t, recs[i], want)
			}
		})
	}
}

func TestConcurrentRecording(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTracker(nil, 0)
	tr.Start(true)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				tr.RuleDone("r", "line_tag", time.Microsecond, false)
				tr.FileDone("f", 10, time.Microsecond, true)
			}
		}()
	}
	wg.Wait()
	tr.Stop()

	r := tr.Report()
	assert.Equal(t, 800, r.RulesExecuted)
	assert.Equal(t, 800, r.FilesProcessed)
}

func TestMetricsMirrorTracker(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := InitPrometheusMetrics("template_cleanup", reg)
	tr, _ := newTestTracker(m, 4096)

	tr.Start(false)
	tr.RuleDone("r", "line_tag", time.Millisecond, true)
	tr.FileDone("a", 10, time.Millisecond, true)
	tr.FileDone("b", 20, time.Millisecond, false)
	tr.Stop()

	path := filepath.Join(t.TempDir(), "cleanup.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	for _, want := range []string{
		"template_cleanup_files_processed_total 2",
		"template_cleanup_bytes_processed_total 30",
		`template_cleanup_cache_lookups_total{result="hit"} 1`,
		`template_cleanup_cache_lookups_total{result="miss"} 1`,
		`template_cleanup_rule_errors_total{type="line_tag"} 1`,
		`template_cleanup_rule_duration_seconds_count{type="line_tag"} 1`,
		"template_cleanup_peak_heap_bytes 4096",
	} {
		assert.Contains(t, out, want)
	}
}

func TestWriteTextfileUnwritable(t *testing.T) {
	t.Parallel()

	m := InitPrometheusMetrics("template_cleanup", nil)
	err := m.WriteTextfile(filepath.Join(t.TempDir(), "missing", "cleanup.prom"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "writing metrics")
}

func TestSummary(t *testing.T) {
	t.Parallel()

	tr, clock := newTestTracker(nil, 2048)
	tr.SetCache(true, func() cache.Stats { return cache.Stats{Hits: 3, Misses: 1} })
	tr.Start(true)
	tr.RuleDone("strip", "block_markers", time.Millisecond, false)
	tr.FileDone("main.go", 1500, time.Millisecond, true)
	clock.Advance(time.Second)
	tr.Stop()

	s := tr.Report().Summary()
	assert.True(t, strings.HasPrefix(s, "Performance:\n"))
	assert.Contains(t, s, "75.0% hits (3/4)")
	assert.Contains(t, s, "1.5 KiB")
	assert.Contains(t, s, "slow rule:   strip")
	assert.Contains(t, s, "slow file:   main.go")
}
