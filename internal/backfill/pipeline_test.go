package backfill

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/riskmatch/internal/models"
	"github.com/formbricks/riskmatch/pkg/limiter"
)

func ptr(s string) *string { return &s }

func idFor(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("00000000-0000-7000-8000-%012d", n))
}

// memoryStore keeps records ordered by id and pages them like the repository does.
type memoryStore struct {
	mu        sync.Mutex
	records   []models.Record
	afterIDs  []*uuid.UUID
	updateErr func(id uuid.UUID) error
	updates   int
}

func newMemoryStore(kind models.RecordKind, n int) *memoryStore {
	s := &memoryStore{}
	for i := 1; i <= n; i++ {
		s.records = append(s.records, models.Record{
			ID:          idFor(i),
			Kind:        kind,
			Title:       fmt.Sprintf("Risk %d", i),
			Description: ptr("description"),
		})
	}

	return s
}

func (s *memoryStore) page(afterID *uuid.UUID, limit int, include func(models.Record) bool) []models.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.afterIDs = append(s.afterIDs, afterID)

	var out []models.Record
	for _, r := range s.records {
		if afterID != nil && bytes.Compare(r.ID[:], afterID[:]) <= 0 {
			continue
		}

		if !include(r) {
			continue
		}

		out = append(out, r)
		if len(out) == limit {
			break
		}
	}

	return out
}

func (s *memoryStore) FindMissingEmbeddingsPage(_ context.Context, _ models.RecordKind, afterID *uuid.UUID, limit int) ([]models.Record, error) {
	return s.page(afterID, limit, func(r models.Record) bool { return !r.HasEmbedding() }), nil
}

func (s *memoryStore) FindRecordsPage(_ context.Context, _ models.RecordKind, afterID *uuid.UUID, limit int) ([]models.Record, error) {
	return s.page(afterID, limit, func(models.Record) bool { return true }), nil
}

func (s *memoryStore) UpdateEmbedding(_ context.Context, _ models.RecordKind, id uuid.UUID, embedding []float32) error {
	if s.updateErr != nil {
		if err := s.updateErr(id); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.updates++

	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Embedding = embedding
		}
	}

	return nil
}

type mockEmbedder struct {
	calls atomic.Int32
	fail  func(text string) bool
}

func (m *mockEmbedder) Generate(_ context.Context, text string) ([]float32, bool) {
	m.calls.Add(1)

	if m.fail != nil && m.fail(text) {
		return nil, false
	}

	return []float32{1, 0}, true
}

// countingExecutor wraps a limiter and counts Execute calls.
type countingExecutor struct {
	inner *limiter.Limiter
	calls atomic.Int32
}

func (c *countingExecutor) Execute(ctx context.Context, task func(context.Context) error) error {
	c.calls.Add(1)

	return c.inner.Execute(ctx, task)
}

type recordingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *recordingMetrics) RecordRecords(_ context.Context, _, status string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.counts == nil {
		r.counts = map[string]int{}
	}

	r.counts[status] += count
}

func (r *recordingMetrics) SetQueueDepth(context.Context, int) {}

func TestPipeline_Run_ProcessesAllPages(t *testing.T) {
	store := newMemoryStore(models.RecordKindRisk, 3)
	embedder := &mockEmbedder{}
	metrics := &recordingMetrics{}
	p := NewPipeline(PipelineParams{Store: store, Embedder: embedder, Metrics: metrics})

	progress, err := p.Run(context.Background(), Options{Kind: models.RecordKindRisk, BatchSize: 2, Concurrency: 2})
	require.NoError(t, err)

	assert.Equal(t, 3, progress.Processed)
	assert.Equal(t, 3, progress.Succeeded)
	assert.Equal(t, 0, progress.Failed)
	assert.Equal(t, 2, progress.Pages)
	require.NotNil(t, progress.LastID)
	assert.Equal(t, idFor(3), *progress.LastID)

	// two data pages plus the terminating empty page
	assert.GreaterOrEqual(t, len(store.afterIDs), 2)
	assert.Equal(t, 3, store.updates)
	assert.Equal(t, int32(3), embedder.calls.Load())
	assert.Equal(t, 3, metrics.counts["succeeded"])

	for _, r := range store.records {
		assert.True(t, r.HasEmbedding())
	}
}

func TestPipeline_Run_CursorIsStrictlyAfterLastID(t *testing.T) {
	store := newMemoryStore(models.RecordKindRisk, 5)
	p := NewPipeline(PipelineParams{Store: store, Embedder: &mockEmbedder{fail: func(string) bool { return true }}})

	progress, err := p.Run(context.Background(), Options{Kind: models.RecordKindRisk, BatchSize: 2})
	require.NoError(t, err)

	// every record fails so the missing-only filter keeps returning them; only the cursor advances
	assert.Equal(t, 5, progress.Processed)
	assert.Equal(t, 5, progress.Failed)

	require.Len(t, store.afterIDs, 4)
	assert.Nil(t, store.afterIDs[0])
	assert.Equal(t, idFor(2), *store.afterIDs[1])
	assert.Equal(t, idFor(4), *store.afterIDs[2])
	assert.Equal(t, idFor(5), *store.afterIDs[3])
}

func TestPipeline_Run_Empty(t *testing.T) {
	store := newMemoryStore(models.RecordKindControl, 0)
	exec := &countingExecutor{inner: limiter.New(2)}
	p := NewPipeline(PipelineParams{Store: store, Embedder: &mockEmbedder{}, Limiter: exec})

	progress, err := p.Run(context.Background(), Options{Kind: models.RecordKindControl})
	require.NoError(t, err)

	assert.Equal(t, 0, progress.Processed)
	assert.Equal(t, 0, progress.Succeeded)
	assert.Equal(t, 0, progress.Failed)
	assert.Nil(t, progress.LastID)
	assert.Equal(t, int32(0), exec.calls.Load())
	assert.Len(t, store.afterIDs, 1)
}

func TestPipeline_Run_DryRun(t *testing.T) {
	store := newMemoryStore(models.RecordKindRisk, 3)
	embedder := &mockEmbedder{}
	metrics := &recordingMetrics{}
	p := NewPipeline(PipelineParams{Store: store, Embedder: embedder, Metrics: metrics})

	progress, err := p.Run(context.Background(), Options{Kind: models.RecordKindRisk, BatchSize: 2, DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 3, progress.Processed)
	assert.Equal(t, 0, progress.Succeeded)
	assert.Equal(t, 0, progress.Failed)
	assert.Equal(t, int32(0), embedder.calls.Load())
	assert.Equal(t, 0, store.updates)
	assert.Equal(t, 3, metrics.counts["dry_run"])
}

func TestPipeline_Run_CountsFailures(t *testing.T) {
	store := newMemoryStore(models.RecordKindRisk, 4)
	store.records[3].Title = ""
	store.records[3].Description = nil
	store.updateErr = func(id uuid.UUID) error {
		if id == idFor(2) {
			return errors.New("connection reset")
		}

		return nil
	}

	embedder := &mockEmbedder{fail: func(text string) bool { return strings.Contains(text, "risk 3") }}
	metrics := &recordingMetrics{}
	p := NewPipeline(PipelineParams{Store: store, Embedder: embedder, Metrics: metrics})

	progress, err := p.Run(context.Background(), Options{Kind: models.RecordKindRisk, BatchSize: 10})
	require.NoError(t, err)

	assert.Equal(t, 4, progress.Processed)
	assert.Equal(t, 1, progress.Succeeded)
	assert.Equal(t, 3, progress.Failed)
	assert.Equal(t, 1, metrics.counts["succeeded"])
	assert.Equal(t, 3, metrics.counts["failed"])
	// the blank record never reaches the provider
	assert.Equal(t, int32(3), embedder.calls.Load())
}

func TestPipeline_Run_ForceRecomputesExisting(t *testing.T) {
	store := newMemoryStore(models.RecordKindRisk, 3)
	store.records[0].Embedding = []float32{0, 1}
	store.records[1].Embedding = []float32{0, 1}

	p := NewPipeline(PipelineParams{Store: store, Embedder: &mockEmbedder{}})

	progress, err := p.Run(context.Background(), Options{Kind: models.RecordKindRisk})
	require.NoError(t, err)
	assert.Equal(t, 1, progress.Processed)

	progress, err = p.Run(context.Background(), Options{Kind: models.RecordKindRisk, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 3, progress.Succeeded)

	for _, r := range store.records {
		assert.Equal(t, []float32{1, 0}, r.Embedding)
	}
}

// trackPeak makes every embedding write briefly hold a slot and returns the highest number of
// writes seen in flight at once.
func trackPeak(store *memoryStore) *atomic.Int32 {
	var current, peak atomic.Int32

	store.updateErr = func(uuid.UUID) error {
		n := current.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}

		time.Sleep(5 * time.Millisecond)
		current.Add(-1)

		return nil
	}

	return &peak
}

func TestPipeline_Run_BoundedConcurrency(t *testing.T) {
	store := newMemoryStore(models.RecordKindRisk, 12)
	exec := &countingExecutor{inner: limiter.New(3)}
	peak := trackPeak(store)

	p := NewPipeline(PipelineParams{Store: store, Embedder: &mockEmbedder{}, Limiter: exec})

	progress, err := p.Run(context.Background(), Options{Kind: models.RecordKindRisk, BatchSize: 6, Concurrency: 3})
	require.NoError(t, err)

	assert.Equal(t, 12, progress.Succeeded)
	assert.Equal(t, int32(12), exec.calls.Load())
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestPipeline_Run_SharedLimiterAndRunConcurrency(t *testing.T) {
	t.Run("shared limiter is tighter", func(t *testing.T) {
		store := newMemoryStore(models.RecordKindRisk, 8)
		peak := trackPeak(store)

		p := NewPipeline(PipelineParams{Store: store, Embedder: &mockEmbedder{}, Limiter: limiter.New(1)})

		progress, err := p.Run(context.Background(), Options{Kind: models.RecordKindRisk, BatchSize: 8, Concurrency: 4})
		require.NoError(t, err)

		assert.Equal(t, 8, progress.Succeeded)
		assert.Equal(t, 4, progress.Options.Concurrency)
		assert.Equal(t, int32(1), peak.Load())
	})

	t.Run("run concurrency is tighter", func(t *testing.T) {
		store := newMemoryStore(models.RecordKindRisk, 8)
		peak := trackPeak(store)
		shared := limiter.New(8)

		p := NewPipeline(PipelineParams{Store: store, Embedder: &mockEmbedder{}, Limiter: shared})

		progress, err := p.Run(context.Background(), Options{Kind: models.RecordKindRisk, BatchSize: 8, Concurrency: 2})
		require.NoError(t, err)

		assert.Equal(t, 8, progress.Succeeded)
		assert.LessOrEqual(t, peak.Load(), int32(2))
		assert.Equal(t, 0, shared.InFlight())
	})
}

func TestPipeline_Run_PageError(t *testing.T) {
	store := &failingStore{memoryStore: newMemoryStore(models.RecordKindRisk, 3), failAfter: 1}
	p := NewPipeline(PipelineParams{Store: store, Embedder: &mockEmbedder{}})

	progress, err := p.Run(context.Background(), Options{Kind: models.RecordKindRisk, BatchSize: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch page")
	assert.Equal(t, 2, progress.Processed)
}

func TestPipeline_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newMemoryStore(models.RecordKindRisk, 3)
	p := NewPipeline(PipelineParams{Store: store, Embedder: &mockEmbedder{}})

	_, err := p.Run(ctx, Options{Kind: models.RecordKindRisk})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.afterIDs)
}

func TestPipeline_Run_InvalidKind(t *testing.T) {
	p := NewPipeline(PipelineParams{Store: newMemoryStore(models.RecordKindRisk, 1), Embedder: &mockEmbedder{}})

	_, err := p.Run(context.Background(), Options{Kind: "vendor"})
	require.Error(t, err)
}

func TestPipeline_RunAll(t *testing.T) {
	store := newMemoryStore(models.RecordKindRisk, 2)
	p := NewPipeline(PipelineParams{Store: store, Embedder: &mockEmbedder{}})

	results, err := p.RunAll(context.Background(), Options{BatchSize: 5})
	require.NoError(t, err)
	require.Len(t, results, len(models.RecordKinds()))

	assert.Equal(t, models.RecordKindRisk, results[0].Options.Kind)
	assert.Equal(t, 2, results[0].Succeeded)
	assert.Equal(t, models.RecordKindControl, results[1].Options.Kind)
	assert.Equal(t, 0, results[1].Processed)
}

// failingStore fails every page request after failAfter successful ones.
type failingStore struct {
	*memoryStore
	failAfter int
	calls     int
}

func (f *failingStore) FindMissingEmbeddingsPage(ctx context.Context, kind models.RecordKind, afterID *uuid.UUID, limit int) ([]models.Record, error) {
	f.calls++
	if f.calls > f.failAfter {
		return nil, errors.New("database unavailable")
	}

	return f.memoryStore.FindMissingEmbeddingsPage(ctx, kind, afterID, limit)
}
