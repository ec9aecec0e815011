// Package pagination slices search results into pages. Every function is pure:
// snapshots are values and navigation returns a new one.
package pagination

import (
	"errors"
	"fmt"
)

// DefaultPerPage is applied when a snapshot is created without a page size.
const DefaultPerPage = 10

// Kind tells songs from plain videos in search output.
type Kind string

const (
	KindSong  Kind = "song"
	KindVideo Kind = "video"
)

// ResultItem is one search hit.
type ResultItem struct {
	Title      string
	Artist     string
	Duration   string
	ExternalID string
	Kind       Kind
}

// ErrOutOfRange is matched by errors returned from Goto.
var ErrOutOfRange = errors.New("pagination: page out of range")

// OutOfRangeError carries the rejected page and the valid page count.
type OutOfRangeError struct {
	Page  int
	Pages int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("pagination: page %d out of range [0,%d)", e.Page, e.Pages)
}

// Is lets errors.Is match ErrOutOfRange.
func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

// Code feeds the handler summary err_code field.
func (e *OutOfRangeError) Code() string { return "out_of_range" }

// Snapshot is one version of a result set with its current page. Results is
// shared between versions and must not be modified after New.
type Snapshot struct {
	Results []ResultItem
	Query   string
	Page    int
	PerPage int
}

// New builds a snapshot positioned on the first page.
func New(results []ResultItem, query string, perPage int) Snapshot {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	owned := make([]ResultItem, len(results))
	copy(owned, results)
	return Snapshot{
		Results: owned,
		Query:   query,
		Page:    0,
		PerPage: perPage,
	}
}

func (s Snapshot) perPage() int {
	if s.PerPage <= 0 {
		return DefaultPerPage
	}
	return s.PerPage
}

// TotalResults returns the number of items across all pages.
func (s Snapshot) TotalResults() int {
	return len(s.Results)
}

// TotalPages returns the page count; an empty result set still reports one
// page so it can be displayed as "1/1".
func (s Snapshot) TotalPages() int {
	n := len(s.Results)
	if n == 0 {
		return 1
	}
	per := s.perPage()
	return (n + per - 1) / per
}

// HasNext reports whether a page exists after the current one.
func (s Snapshot) HasNext() bool {
	return (s.Page+1)*s.perPage() < len(s.Results)
}

// HasPrev reports whether a page exists before the current one.
func (s Snapshot) HasPrev() bool {
	return s.Page > 0
}

// PageSlice returns the items of the current page.
func (s Snapshot) PageSlice() []ResultItem {
	per := s.perPage()
	start := s.Page * per
	if start < 0 || start >= len(s.Results) {
		return nil
	}
	end := start + per
	if end > len(s.Results) {
		end = len(s.Results)
	}
	return s.Results[start:end]
}

// Offset is the zero-based index of the first item on the current page.
func (s Snapshot) Offset() int {
	return s.Page * s.perPage()
}

// Advance moves to the next page. Callers must check HasNext first.
func (s Snapshot) Advance() Snapshot {
	if !s.HasNext() {
		panic(fmt.Sprintf("pagination: advance past last page %d of %d", s.Page, s.TotalPages()))
	}
	s.Page++
	return s
}

// Retreat moves to the previous page. Callers must check HasPrev first.
func (s Snapshot) Retreat() Snapshot {
	if !s.HasPrev() {
		panic("pagination: retreat before first page")
	}
	s.Page--
	return s
}

// Goto jumps to page, validating 0 <= page < TotalPages.
func (s Snapshot) Goto(page int) (Snapshot, error) {
	pages := s.TotalPages()
	if page < 0 || page >= pages {
		return s, &OutOfRangeError{Page: page, Pages: pages}
	}
	s.Page = page
	return s, nil
}
