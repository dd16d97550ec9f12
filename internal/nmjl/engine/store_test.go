package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/NMJL-Companion/internal/cache"
)

// mockStore is a mock implementation of cache.Store.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, bool) {
	args := m.Called(ctx, key)
	data, _ := args.Get(0).([]byte)
	return data, args.Bool(1)
}

func (m *mockStore) Set(ctx context.Context, key string, value []byte) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *mockStore) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockStore) Stats() cache.Stats {
	args := m.Called()
	return args.Get(0).(cache.Stats)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

func TestAnalyze_StoreWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	store.On("Get", ctx, mock.AnythingOfType("string")).Return(nil, false)
	store.On("Set", ctx, mock.AnythingOfType("string"), mock.MatchedBy(func(b []byte) bool { return len(b) > 0 })).
		Return(errors.New("redis down"))

	e, _ := newEngine(t, Options{Store: store})
	report, err := e.Analyze(ctx, Request{Hand: scenarioHand})
	require.NoError(t, err)
	assert.False(t, report.CacheHit)
	assert.Nil(t, report.Failure)

	store.AssertNumberOfCalls(t, "Get", 1)
	store.AssertNumberOfCalls(t, "Set", 1)
	assert.Equal(t, uint64(1), e.Metrics().GetStats().CacheMisses)
}

func TestAnalyze_UndecodableEntry(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	store.On("Get", ctx, mock.AnythingOfType("string")).Return([]byte("{not json"), true)
	store.On("Set", ctx, mock.AnythingOfType("string"), mock.Anything).Return(nil)

	e, _ := newEngine(t, Options{Store: store})
	report, err := e.Analyze(ctx, Request{Hand: scenarioHand})
	require.NoError(t, err)
	assert.False(t, report.CacheHit)
	top, ok := report.Top()
	require.True(t, ok)
	assert.Equal(t, "scenario", top.PatternID)

	stats := e.Metrics().GetStats()
	assert.Equal(t, uint64(0), stats.CacheHits)
	assert.Equal(t, uint64(1), stats.CacheMisses)
	store.AssertExpectations(t)
}

func TestFailedReportsAreNotCached(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	store.On("Get", ctx, mock.Anything).Return(nil, false)

	e, _ := newEngine(t, Options{Store: store})
	report, err := e.Analyze(ctx, Request{Hand: nil})
	require.NoError(t, err)
	require.True(t, report.Failed())

	store.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
}

func TestPolicyChangeClearsStore(t *testing.T) {
	ctx := context.Background()
	store := new(mockStore)
	store.On("Clear", ctx).Return(errors.New("flush failed")).Once()
	store.On("Stats").Return(cache.Stats{Hits: 2, Misses: 1})

	e, _ := newEngine(t, Options{Store: store})
	p := DefaultPolicies()
	p.Ranking.TopN = 2
	require.NoError(t, e.SetPolicies(ctx, p, "test"))

	stats, ok := e.CacheStats()
	require.True(t, ok)
	assert.Equal(t, uint64(2), stats.Hits)
	store.AssertExpectations(t)
}
