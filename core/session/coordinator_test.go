package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/tunebot/core/jobs"
	"github.com/m3rciful/tunebot/core/metrics"
	"github.com/m3rciful/tunebot/core/pagination"
	"github.com/m3rciful/tunebot/core/ratelimit"
	"github.com/m3rciful/tunebot/core/state"
)

func items(n int) []pagination.ResultItem {
	out := make([]pagination.ResultItem, n)
	for i := range out {
		out[i] = pagination.ResultItem{
			Title:      fmt.Sprintf("track %d", i),
			ExternalID: fmt.Sprintf("id%02d", i),
			Kind:       pagination.KindSong,
		}
	}
	return out
}

func newCoordinator(t *testing.T, opts Options) *Coordinator {
	t.Helper()
	c, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestStartSearchQuota(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t, Options{MaxRequests: 5, Metrics: metrics.New()})
	key := state.Private(42)

	for i := 0; i < 5; i++ {
		require.NoError(t, c.StartSearch(ctx, key, "test query"))
	}
	assert.Equal(t, 5, c.Limiter().CurrentCount(42))

	err := c.StartSearch(ctx, key, "test query")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, 5, c.Limiter().CurrentCount(42))
}

func TestStartSearchQuotaWindowRolls(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	c := newCoordinator(t, Options{
		MaxRequests: 1,
		Limiter:     ratelimit.New(ratelimit.WithClock(clock)),
	})
	key := state.Private(1)

	require.NoError(t, c.StartSearch(context.Background(), key, "abc"))
	require.ErrorIs(t, c.StartSearch(context.Background(), key, "abc"), ErrQuotaExceeded)

	mu.Lock()
	now = now.Add(time.Hour + time.Second)
	mu.Unlock()
	assert.NoError(t, c.StartSearch(context.Background(), key, "abc"))
}

func TestStartSearchQueryTooShort(t *testing.T) {
	c := newCoordinator(t, Options{MaxRequests: 5})
	key := state.InChat(7, -100, 3)
	c.PromptQuery(key)

	for _, q := range []string{"", "ab", "  ab  ", "ж"} {
		err := c.StartSearch(context.Background(), key, q)
		assert.ErrorIs(t, err, ErrQueryTooShort, "query %q", q)
	}
	assert.Equal(t, 0, c.Limiter().CurrentCount(7))
	assert.True(t, c.States().IsWaitingForQuery(key), "rejection must not touch state")

	// three runes, six bytes
	assert.NoError(t, c.StartSearch(context.Background(), key, "жжж"))
}

func TestQuotaCheckedBeforeLength(t *testing.T) {
	c := newCoordinator(t, Options{MaxRequests: 1})
	key := state.Private(9)
	require.NoError(t, c.StartSearch(context.Background(), key, "long enough"))
	assert.ErrorIs(t, c.StartSearch(context.Background(), key, "x"), ErrQuotaExceeded)
}

func TestStartSearchClearsBrowsing(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t, Options{})
	key := state.Private(5)

	c.RecordResults(ctx, key, 5, 0, items(12), "old")
	c.States().Set(key, "lang", "en")
	require.True(t, c.States().IsBrowsingResults(key))

	require.NoError(t, c.StartSearch(ctx, key, "new query"))
	assert.False(t, c.States().IsBrowsingResults(key))
	_, ok := c.States().SearchResults(key)
	assert.False(t, ok)
	assert.Equal(t, "en", c.States().Get(key, "lang", ""))
}

func TestUnlimitedQuota(t *testing.T) {
	c := newCoordinator(t, Options{MaxRequests: 0})
	for i := 0; i < 20; i++ {
		require.NoError(t, c.StartSearch(context.Background(), state.Private(1), "abc"))
		require.NoError(t, c.AdmitRequest(context.Background(), 1))
	}
}

func TestAdmitRequestSharesQuota(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t, Options{MaxRequests: 2})
	require.NoError(t, c.AdmitRequest(ctx, 3))
	require.NoError(t, c.StartSearch(ctx, state.Private(3), "abc"))
	assert.ErrorIs(t, c.AdmitRequest(ctx, 3), ErrQuotaExceeded)
	assert.ErrorIs(t, c.StartSearch(ctx, state.Private(3), "abc"), ErrQuotaExceeded)
}

func TestRecordResultsWritesBothStores(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t, Options{PerPage: 10})
	key := state.InChat(1, 100, 0)

	snap := c.RecordResults(ctx, key, 100, 55, items(25), "test query")
	assert.Equal(t, 0, snap.Page)
	assert.Equal(t, 3, snap.TotalPages())

	fromMsg, ok := c.Results().Get(100, 55)
	require.True(t, ok)
	assert.Equal(t, snap, fromMsg)

	fromState, ok := c.States().SearchResults(key)
	require.True(t, ok)
	assert.Equal(t, snap, fromState)
	assert.True(t, c.States().IsBrowsingResults(key))
}

func TestRecordResultsWithoutMessage(t *testing.T) {
	c := newCoordinator(t, Options{})
	c.RecordResults(context.Background(), state.Private(1), 1, 0, items(3), "q")
	assert.Equal(t, 0, c.Results().Len())
}

func TestNavigateMessageBound(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t, Options{})
	owner := state.InChat(1, 100, 0)
	other := state.InChat(2, 100, 0)
	c.RecordResults(ctx, owner, 100, 55, items(25), "q")

	// another participant pages the shared message
	nav, err := c.Navigate(ctx, 100, 55, Next, other)
	require.NoError(t, err)
	assert.False(t, nav.AtEdge)
	assert.Equal(t, SourceMessage, nav.Source)
	assert.Equal(t, 1, nav.Snapshot.Page)

	stored, _ := c.Results().Get(100, 55)
	assert.Equal(t, 1, stored.Page)

	// the owner's own snapshot is untouched
	own, _ := c.States().SearchResults(owner)
	assert.Equal(t, 0, own.Page)
}

func TestNavigateFallsBackToIdentity(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t, Options{})
	key := state.Private(8)
	c.RecordResults(ctx, key, 8, 0, items(15), "q")

	nav, err := c.Navigate(ctx, 8, 999, Next, key)
	require.NoError(t, err)
	assert.Equal(t, SourceIdentity, nav.Source)
	assert.Equal(t, 1, nav.Snapshot.Page)

	stored, ok := c.States().SearchResults(key)
	require.True(t, ok)
	assert.Equal(t, 1, stored.Page)
	assert.Equal(t, 0, c.Results().Len(), "fallback must not create a message entry")
}

func TestNavigateEdges(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t, Options{})
	key := state.Private(1)
	c.RecordResults(ctx, key, 1, 10, items(15), "q")

	nav, err := c.Navigate(ctx, 1, 10, Prev, key)
	require.NoError(t, err)
	assert.True(t, nav.AtEdge)
	assert.Equal(t, 0, nav.Snapshot.Page)

	_, err = c.Navigate(ctx, 1, 10, Next, key)
	require.NoError(t, err)
	nav, err = c.Navigate(ctx, 1, 10, Next, key)
	require.NoError(t, err)
	assert.True(t, nav.AtEdge)
	assert.Equal(t, 1, nav.Snapshot.Page)
}

func TestNavigateEmptyResultsIsEdge(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t, Options{})
	key := state.Private(1)
	c.RecordResults(ctx, key, 1, 10, nil, "q")

	nav, err := c.Navigate(ctx, 1, 10, Next, key)
	require.NoError(t, err)
	assert.True(t, nav.AtEdge)
}

func TestNavigateNotFound(t *testing.T) {
	c := newCoordinator(t, Options{})
	_, err := c.Navigate(context.Background(), 1, 2, Next, state.Private(3))
	assert.ErrorIs(t, err, ErrPaginationNotFound)
	assert.True(t, IsRejection(err))
}

func TestJump(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t, Options{})
	key := state.Private(1)
	c.RecordResults(ctx, key, 1, 10, items(25), "q")

	nav, err := c.Jump(ctx, 1, 10, 2, key)
	require.NoError(t, err)
	assert.Equal(t, 2, nav.Snapshot.Page)

	_, err = c.Jump(ctx, 1, 10, 3, key)
	assert.ErrorIs(t, err, pagination.ErrOutOfRange)
	stored, _ := c.Results().Get(1, 10)
	assert.Equal(t, 2, stored.Page)

	nav, err = c.Jump(ctx, 1, 10, 0, key)
	require.NoError(t, err)
	assert.Equal(t, 0, nav.Snapshot.Page)
}

func TestConcurrentNavigateLastWriteWins(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t, Options{})
	c.RecordResults(ctx, state.InChat(1, 100, 0), 100, 55, items(25), "q")

	var wg sync.WaitGroup
	for _, user := range []int64{1, 2} {
		wg.Add(1)
		go func(u int64) {
			defer wg.Done()
			_, err := c.Navigate(ctx, 100, 55, Next, state.InChat(u, 100, 0))
			assert.NoError(t, err)
		}(user)
	}
	wg.Wait()

	got, ok := c.Results().Get(100, 55)
	require.True(t, ok)
	assert.Contains(t, []int{1, 2}, got.Page)
	assert.Len(t, got.Results, 25)
	assert.Equal(t, 10, got.PerPage)
	assert.Equal(t, "q", got.Query)
}

func TestBeginDownloadDuplicate(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t, Options{})

	g1, err := c.BeginDownload(ctx, 1, 9, "abc")
	require.NoError(t, err)
	require.NotNil(t, g1)

	g2, err := c.BeginDownload(ctx, 1, 9, "abc")
	assert.Nil(t, g2)
	assert.True(t, errors.Is(err, ErrDuplicateJob))

	g1.Release()
	g3, err := c.BeginDownload(ctx, 1, 9, "abc")
	require.NoError(t, err)
	defer g3.Release()

	other, err := c.BeginDownload(ctx, 1, 10, "abc")
	require.NoError(t, err)
	other.Release()
}

func TestPrompts(t *testing.T) {
	c := newCoordinator(t, Options{})
	key := state.InChat(1, 2, 3)

	c.PromptQuery(key)
	c.PromptLink(key)
	assert.False(t, c.ConsumeQueryPrompt(key), "link prompt replaces query prompt")
	assert.True(t, c.ConsumeLinkPrompt(key))
	assert.False(t, c.ConsumeLinkPrompt(key))

	c.PromptQuery(key)
	assert.False(t, c.ConsumeQueryPrompt(state.InChat(1, 2, 4)), "topics are independent")
	assert.True(t, c.ConsumeQueryPrompt(key))
}

func TestDescribe(t *testing.T) {
	ctx := context.Background()
	c := newCoordinator(t, Options{MaxRequests: 10, Jobs: jobs.New()})
	key := state.Private(77)

	require.NoError(t, c.StartSearch(ctx, key, "lofi beats"))
	c.RecordResults(ctx, key, 77, 0, items(21), "lofi beats")
	g, err := c.BeginDownload(ctx, 77, 77, "vid")
	require.NoError(t, err)
	defer g.Release()

	sum := c.Describe(key)
	assert.True(t, sum.Browsing)
	assert.Equal(t, "lofi beats", sum.Query)
	assert.Equal(t, 3, sum.Pages)
	assert.Equal(t, 21, sum.Results)
	assert.Equal(t, 1, sum.Used)
	assert.Equal(t, 10, sum.Max)
	assert.Equal(t, 1, sum.ActiveJobs)

	c.Reset(ctx, key)
	sum = c.Describe(key)
	assert.False(t, sum.Browsing)
	assert.Empty(t, sum.Query)
}

func TestErrorCodes(t *testing.T) {
	assert.Equal(t, "quota_exceeded", ErrQuotaExceeded.Code())
	assert.Equal(t, "duplicate_job", ErrDuplicateJob.Code())
	assert.False(t, IsRejection(errors.New("boom")))
	assert.True(t, IsRejection(fmt.Errorf("wrap: %w", ErrQueryTooShort)))
}
