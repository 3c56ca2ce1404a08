package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherweaver/weatherweaver/internal/dataset"
	"github.com/weatherweaver/weatherweaver/internal/geo"
	"github.com/weatherweaver/weatherweaver/internal/metrics"
	"github.com/weatherweaver/weatherweaver/internal/request"
	"github.com/weatherweaver/weatherweaver/internal/storage"
)

type fakeRequest struct {
	id string
}

func (r fakeRequest) Identity() string   { return r.id }
func (r fakeRequest) RunDate() time.Time { return time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC) }
func (r fakeRequest) Source() string     { return "fake" }
func (r fakeRequest) String() string     { return r.id }

type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool // identities whose fetch comes back empty
}

func (f *fakeFetcher) DownloadRawFile(ctx context.Context, req request.Request) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail[req.Identity()] {
		return "", false
	}
	return "/raw/" + req.Identity(), true
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTransformer struct {
	mu    sync.Mutex
	calls int
	fail  map[string]bool
}

func (t *fakeTransformer) Transform(ctx context.Context, rawPath string, req request.Request, filter *geo.Filter) (*dataset.Dataset, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.fail[req.Identity()] {
		return nil, errors.New("decode error")
	}
	return dataset.New([]dataset.Row{{Parameter: "2t", Value: 275.4}}), nil
}

// fakeStore keeps artifacts in memory.
type fakeStore struct {
	mu         sync.Mutex
	valid      map[string]bool
	stored     map[string]int
	storeFail  map[string]bool
	storeCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		valid:     make(map[string]bool),
		stored:    make(map[string]int),
		storeFail: make(map[string]bool),
	}
}

func (s *fakeStore) IsValid(ctx context.Context, path string, minBytes int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid[path]
}

func (s *fakeStore) Exists(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid[path], nil
}

func (s *fakeStore) Store(ctx context.Context, ds *dataset.Dataset, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeCalls++
	if s.storeFail[path] {
		return "", errors.New("disk full")
	}
	s.stored[path]++
	s.valid[path] = true
	return "sha256:fake", nil
}

func (s *fakeStore) Delete(ctx context.Context, path string) error { return nil }
func (s *fakeStore) URI(key string) string                         { return "mem://" + key }
func (s *fakeStore) Close() error                                  { return nil }

var _ storage.ArtifactStore = (*fakeStore)(nil)

func testFilter(t *testing.T) *geo.Filter {
	t.Helper()
	f, err := geo.FromBoundingBox(geo.BoundingBox{North: 73.5, West: -27, South: 33, East: 45})
	require.NoError(t, err)
	return f
}

type fixture struct {
	fetcher     *fakeFetcher
	transformer *fakeTransformer
	store       *fakeStore
	orch        *Orchestrator
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		fetcher:     &fakeFetcher{fail: map[string]bool{}},
		transformer: &fakeTransformer{fail: map[string]bool{}},
		store:       newFakeStore(),
	}
	m := metrics.NewWith(prometheus.NewRegistry(), "test")
	f.orch = New(cfg, f.fetcher, f.transformer, f.store, testFilter(t), m, clockwork.NewFakeClock())
	return f
}

func requests(n int) []request.Request {
	out := make([]request.Request, n)
	for i := range out {
		out[i] = fakeRequest{id: fmt.Sprintf("req-%d", i)}
	}
	return out
}

func TestRunSingleRequest(t *testing.T) {
	fx := newFixture(t, Config{Workers: 2})

	produced, err := fx.orch.Run(context.Background(), requests(1))
	require.NoError(t, err)
	require.Equal(t, []string{"req-0.parquet"}, produced)
	assert.Equal(t, 1, fx.store.storeCalls, "store called exactly once")
	assert.Equal(t, 1, fx.fetcher.callCount())
}

func TestRunIdempotentRerun(t *testing.T) {
	fx := newFixture(t, Config{Workers: 2})
	reqs := requests(3)

	first, err := fx.orch.Run(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, first, 3)

	// All artifacts valid now: the rerun calls no collaborator at all.
	fetchesBefore := fx.fetcher.callCount()
	second, err := fx.orch.Run(context.Background(), reqs)
	require.NoError(t, err)
	assert.Empty(t, second)
	assert.Equal(t, fetchesBefore, fx.fetcher.callCount())
	assert.Equal(t, 3, fx.store.storeCalls)
}

func TestRunFetchMissDropsSilently(t *testing.T) {
	fx := newFixture(t, Config{Workers: 2})
	fx.fetcher.fail["req-1"] = true

	produced, err := fx.orch.Run(context.Background(), requests(3))
	require.NoError(t, err, "a fetch miss is not a run error")
	assert.Len(t, produced, 2)
	assert.NotContains(t, produced, "req-1.parquet")
}

func TestRunTransformFailureIsolated(t *testing.T) {
	fx := newFixture(t, Config{Workers: 2})
	fx.transformer.fail["req-0"] = true

	produced, err := fx.orch.Run(context.Background(), requests(3))
	require.NoError(t, err, "a task failure is not a run error")
	assert.Len(t, produced, 2)
}

func TestRunStoreFailureIsolated(t *testing.T) {
	fx := newFixture(t, Config{Workers: 1})
	fx.store.storeFail["req-2.parquet"] = true

	produced, err := fx.orch.Run(context.Background(), requests(3))
	require.NoError(t, err)
	assert.Len(t, produced, 2)
}

func TestRunWorkersBoundedByPending(t *testing.T) {
	fx := newFixture(t, Config{Workers: 16})

	produced, err := fx.orch.Run(context.Background(), requests(2))
	require.NoError(t, err)
	assert.Len(t, produced, 2)
}

func TestRunEmptyBatch(t *testing.T) {
	fx := newFixture(t, Config{Workers: 2})

	produced, err := fx.orch.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, produced)
	assert.Zero(t, fx.fetcher.callCount())
}

func TestRunCancelledContext(t *testing.T) {
	fx := newFixture(t, Config{Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.orch.Run(ctx, requests(8))
	assert.ErrorIs(t, err, context.Canceled)
}
