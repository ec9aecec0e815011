package pagination

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(n int) []ResultItem {
	out := make([]ResultItem, n)
	for i := range out {
		out[i] = ResultItem{Title: fmt.Sprintf("track %d", i), ExternalID: fmt.Sprintf("id%d", i), Kind: KindSong}
	}
	return out
}

func TestTwentyFiveResultsInPagesOfTen(t *testing.T) {
	s := New(items(25), "test query", 10)

	assert.Equal(t, 3, s.TotalPages())
	assert.Equal(t, 25, s.TotalResults())
	assert.Len(t, s.PageSlice(), 10)
	assert.False(t, s.HasPrev())

	s = s.Advance().Advance()
	assert.Equal(t, 2, s.Page)
	page := s.PageSlice()
	require.Len(t, page, 5)
	assert.Equal(t, "id20", page[0].ExternalID)
	assert.False(t, s.HasNext())
	assert.True(t, s.HasPrev())
}

func TestDefaultPerPage(t *testing.T) {
	s := New(items(11), "q", 0)
	assert.Equal(t, DefaultPerPage, s.PerPage)
	assert.Equal(t, 2, s.TotalPages())
}

func TestEmptyResults(t *testing.T) {
	s := New(nil, "nothing", 10)
	assert.Equal(t, 1, s.TotalPages())
	assert.Empty(t, s.PageSlice())
	assert.False(t, s.HasNext())
	assert.False(t, s.HasPrev())
}

func TestHasNextFalseOnlyOnLastPage(t *testing.T) {
	for _, n := range []int{1, 9, 10, 11, 20, 21, 37} {
		s := New(items(n), "q", 10)
		for {
			last := s.Page == s.TotalPages()-1
			assert.Equal(t, !last, s.HasNext(), "n=%d page=%d", n, s.Page)
			if !s.HasNext() {
				break
			}
			s = s.Advance()
		}
	}
}

func TestAdvanceMatchesGoto(t *testing.T) {
	s := New(items(25), "q", 10)
	next := s.Advance()
	jumped, err := s.Goto(next.Page)
	require.NoError(t, err)
	assert.Equal(t, next, jumped)
}

func TestRetreat(t *testing.T) {
	s := New(items(25), "q", 10).Advance()
	back := s.Retreat()
	assert.Equal(t, 0, back.Page)
	assert.Equal(t, 1, s.Page, "receiver is not modified")
}

func TestGotoOutOfRange(t *testing.T) {
	s := New(items(25), "q", 10)
	for _, p := range []int{-1, 3, 100} {
		got, err := s.Goto(p)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrOutOfRange))
		var oor *OutOfRangeError
		require.True(t, errors.As(err, &oor))
		assert.Equal(t, p, oor.Page)
		assert.Equal(t, 3, oor.Pages)
		assert.Equal(t, 0, got.Page)
	}
}

func TestGotoOnEmptyAllowsFirstPage(t *testing.T) {
	s := New(nil, "q", 10)
	_, err := s.Goto(0)
	assert.NoError(t, err)
}

func TestContractViolationsPanic(t *testing.T) {
	s := New(items(5), "q", 10)
	assert.Panics(t, func() { s.Advance() })
	assert.Panics(t, func() { s.Retreat() })
}

func TestNewCopiesResults(t *testing.T) {
	src := items(3)
	s := New(src, "q", 10)
	src[0].Title = "changed"
	assert.Equal(t, "track 0", s.Results[0].Title)
}
