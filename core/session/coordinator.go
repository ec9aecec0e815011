// Package session composes the in-memory stores into the operations the
// Telegram handlers call. A Coordinator is built once by the composition root
// and shared by every handler goroutine.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/m3rciful/tunebot/core/jobs"
	"github.com/m3rciful/tunebot/core/logger"
	"github.com/m3rciful/tunebot/core/metrics"
	"github.com/m3rciful/tunebot/core/pagination"
	"github.com/m3rciful/tunebot/core/ratelimit"
	"github.com/m3rciful/tunebot/core/results"
	"github.com/m3rciful/tunebot/core/state"
)

const component = "session"

// MinQueryLen is the shortest accepted search query, counted in runes after
// trimming.
const MinQueryLen = 3

// Direction selects a neighbouring page.
type Direction int

const (
	Next Direction = iota + 1
	Prev
)

func (d Direction) String() string {
	switch d {
	case Next:
		return "next"
	case Prev:
		return "prev"
	default:
		return "unknown"
	}
}

// Source tells which store a navigated snapshot came from.
type Source string

const (
	SourceMessage  Source = "message"
	SourceIdentity Source = "identity"
)

// Navigation is the outcome of a page move. AtEdge is set when the move was
// refused because the snapshot already sits on the first or last page; the
// snapshot is then returned unchanged.
type Navigation struct {
	Snapshot pagination.Snapshot
	AtEdge   bool
	Source   Source
}

// Options wires the stores into a Coordinator. Nil stores are created with
// defaults; Metrics may stay nil.
type Options struct {
	MaxRequests int
	PerPage     int

	Limiter *ratelimit.Limiter
	States  *state.Store
	Results *results.Store
	Jobs    *jobs.Tracker
	Metrics *metrics.Recorder
}

// Coordinator is the facade over the rate limiter, the state stores and the
// job tracker.
type Coordinator struct {
	maxRequests int
	perPage     int

	limiter *ratelimit.Limiter
	states  *state.Store
	results *results.Store
	jobs    *jobs.Tracker
	metrics *metrics.Recorder

	closeOnce sync.Once
}

// New builds a Coordinator.
func New(opts Options) (*Coordinator, error) {
	c := &Coordinator{
		maxRequests: opts.MaxRequests,
		perPage:     opts.PerPage,
		limiter:     opts.Limiter,
		states:      opts.States,
		results:     opts.Results,
		jobs:        opts.Jobs,
		metrics:     opts.Metrics,
	}
	if c.perPage <= 0 {
		c.perPage = pagination.DefaultPerPage
	}
	if c.limiter == nil {
		c.limiter = ratelimit.New()
	}
	if c.states == nil {
		st, err := state.New(state.Options{})
		if err != nil {
			return nil, err
		}
		c.states = st
	}
	if c.results == nil {
		rs, err := results.New(results.Options{})
		if err != nil {
			return nil, err
		}
		c.results = rs
	}
	if c.jobs == nil {
		c.jobs = jobs.New()
	}
	return c, nil
}

// MaxRequests returns the hourly quota; zero or less means unlimited.
func (c *Coordinator) MaxRequests() int { return c.maxRequests }

// PerPage returns the page size used for new snapshots.
func (c *Coordinator) PerPage() int { return c.perPage }

// States exposes the identity store for callers that need raw access.
func (c *Coordinator) States() *state.Store { return c.states }

// Results exposes the message-bound store.
func (c *Coordinator) Results() *results.Store { return c.results }

// Jobs exposes the job tracker.
func (c *Coordinator) Jobs() *jobs.Tracker { return c.jobs }

// Limiter exposes the rate limiter.
func (c *Coordinator) Limiter() *ratelimit.Limiter { return c.limiter }

// StartSearch admits a search for key. The quota is checked before the
// query, and neither rejection touches any store. On accept one unit is
// recorded and any earlier prompt or browsing state of key is cleared.
func (c *Coordinator) StartSearch(ctx context.Context, key state.Key, query string) error {
	if c.quotaFull(key.UserID) {
		c.metrics.Search("quota_exceeded")
		logger.Debug(ctx, component, "search.reject",
			slog.String("status", "quota"),
			slog.Int("used", c.limiter.CurrentCount(key.UserID)),
			slog.Int("max", c.maxRequests),
		)
		return ErrQuotaExceeded
	}
	if utf8.RuneCountInString(strings.TrimSpace(query)) < MinQueryLen {
		c.metrics.Search("query_too_short")
		logger.Debug(ctx, component, "search.reject", slog.String("status", "short"))
		return ErrQueryTooShort
	}
	used, ok := c.limiter.TryRecord(key.UserID, c.maxRequests)
	if !ok {
		// Lost the last slot to a concurrent request.
		c.metrics.Search("quota_exceeded")
		return ErrQuotaExceeded
	}
	c.states.ResetSearch(key)
	c.metrics.Search("accepted")
	logger.Debug(ctx, component, "search.accept",
		slog.String("identity", key.String()),
		slog.Int("used", used),
	)
	return nil
}

// AdmitRequest records one quota unit for a request that is not a search,
// such as a pasted link.
func (c *Coordinator) AdmitRequest(ctx context.Context, userID int64) error {
	used, ok := c.limiter.TryRecord(userID, c.maxRequests)
	if !ok {
		logger.Debug(ctx, component, "request.reject",
			slog.String("status", "quota"),
			slog.Int("used", used),
		)
		return ErrQuotaExceeded
	}
	return nil
}

func (c *Coordinator) quotaFull(userID int64) bool {
	return c.maxRequests > 0 && c.limiter.CurrentCount(userID) >= c.maxRequests
}

// RecordResults stores a page-0 snapshot for the identity and, when the
// results were rendered into a message, for that message too.
func (c *Coordinator) RecordResults(ctx context.Context, key state.Key, chatID int64, messageID int, items []pagination.ResultItem, query string) pagination.Snapshot {
	snap := pagination.New(items, query, c.perPage)
	c.states.SetBrowsingResults(key, true, &snap)
	if messageID != 0 {
		c.results.Store(chatID, messageID, snap)
	}
	logger.Debug(ctx, component, "results.record",
		slog.Int("count", snap.TotalResults()),
		slog.Int("pages", snap.TotalPages()),
		slog.Int("message_id", messageID),
	)
	return snap
}

// BindMessage attaches an existing snapshot to a message rendered after the
// results were recorded.
func (c *Coordinator) BindMessage(chatID int64, messageID int, snap pagination.Snapshot) {
	if messageID == 0 {
		return
	}
	c.results.Store(chatID, messageID, snap)
}

// lookup resolves the snapshot a navigation acts on: the message-bound entry
// first, then the identity's own results.
func (c *Coordinator) lookup(chatID int64, messageID int, fallback state.Key) (pagination.Snapshot, Source, bool) {
	if messageID != 0 {
		if snap, ok := c.results.Get(chatID, messageID); ok {
			return snap, SourceMessage, true
		}
	}
	if snap, ok := c.states.SearchResults(fallback); ok {
		return snap, SourceIdentity, true
	}
	return pagination.Snapshot{}, "", false
}

// writeBack stores next in the store it was read from.
func (c *Coordinator) writeBack(chatID int64, messageID int, fallback state.Key, src Source, next pagination.Snapshot) {
	switch src {
	case SourceMessage:
		c.results.Update(chatID, messageID, next)
	case SourceIdentity:
		c.states.SetBrowsingResults(fallback, true, &next)
	}
}

// Navigate moves one page in dir. At an edge the unchanged snapshot is
// returned with AtEdge set and no error.
func (c *Coordinator) Navigate(ctx context.Context, chatID int64, messageID int, dir Direction, fallback state.Key) (Navigation, error) {
	snap, src, ok := c.lookup(chatID, messageID, fallback)
	if !ok {
		c.metrics.Navigation("not_found")
		logger.Debug(ctx, component, "navigate.miss", slog.Int("message_id", messageID))
		return Navigation{}, ErrPaginationNotFound
	}

	var next pagination.Snapshot
	switch {
	case dir == Next && snap.HasNext():
		next = snap.Advance()
	case dir == Prev && snap.HasPrev():
		next = snap.Retreat()
	default:
		c.metrics.Navigation("edge")
		logger.Debug(ctx, component, "navigate.edge",
			slog.String("status", "edge"),
			slog.String("direction", dir.String()),
			slog.Int("page", snap.Page),
		)
		return Navigation{Snapshot: snap, AtEdge: true, Source: src}, nil
	}

	c.writeBack(chatID, messageID, fallback, src, next)
	c.metrics.Navigation("moved")
	logger.Debug(ctx, component, "navigate.move",
		slog.String("direction", dir.String()),
		slog.String("source", string(src)),
		slog.Int("page", next.Page),
	)
	return Navigation{Snapshot: next, Source: src}, nil
}

// Jump moves to an absolute page using the same lookup as Navigate. An
// invalid page yields an error matching pagination.ErrOutOfRange.
func (c *Coordinator) Jump(ctx context.Context, chatID int64, messageID int, page int, fallback state.Key) (Navigation, error) {
	snap, src, ok := c.lookup(chatID, messageID, fallback)
	if !ok {
		c.metrics.Navigation("not_found")
		return Navigation{}, ErrPaginationNotFound
	}
	next, err := snap.Goto(page)
	if err != nil {
		c.metrics.Navigation("out_of_range")
		return Navigation{Snapshot: snap, Source: src}, err
	}
	if next.Page != snap.Page {
		c.writeBack(chatID, messageID, fallback, src, next)
	}
	c.metrics.Navigation("moved")
	return Navigation{Snapshot: next, Source: src}, nil
}

// BeginDownload registers a download. The returned guard must be released
// when the job finishes; a duplicate yields a nil guard and ErrDuplicateJob.
func (c *Coordinator) BeginDownload(ctx context.Context, chatID, userID int64, resourceID string) (*jobs.Guard, error) {
	g, ok := c.jobs.Begin(jobs.Key{ChatID: chatID, UserID: userID, ResourceID: resourceID})
	if !ok {
		logger.Debug(ctx, "jobs", "begin.duplicate",
			slog.String("status", "duplicate"),
			slog.String("resource_id", resourceID),
		)
		return nil, ErrDuplicateJob
	}
	logger.Debug(ctx, "jobs", "begin", slog.String("resource_id", resourceID))
	return g, nil
}

// PromptQuery marks the identity as waiting for a search query.
func (c *Coordinator) PromptQuery(key state.Key) {
	c.states.SetPrompt(key, state.WaitingForQuery)
}

// ConsumeQueryPrompt reports and resets the query prompt in one step.
func (c *Coordinator) ConsumeQueryPrompt(key state.Key) bool {
	return c.states.TakeWaitingForQuery(key)
}

// PromptLink marks the identity as waiting for a link.
func (c *Coordinator) PromptLink(key state.Key) {
	c.states.SetPrompt(key, state.WaitingForLink)
}

// ConsumeLinkPrompt reports and resets the link prompt in one step.
func (c *Coordinator) ConsumeLinkPrompt(key state.Key) bool {
	return c.states.TakeWaitingForLink(key)
}

// Reset drops everything stored for the identity.
func (c *Coordinator) Reset(ctx context.Context, key state.Key) {
	c.states.Clear(key)
	logger.Debug(ctx, component, "reset", slog.String("identity", key.String()))
}

// Summary is a point-in-time view of an identity for /mystate.
type Summary struct {
	Key             state.Key
	WaitingForQuery bool
	WaitingForLink  bool
	Browsing        bool
	Query           string
	Page            int
	Pages           int
	Results         int
	Used            int
	Max             int
	ActiveJobs      int
}

// Describe collects the identity's state, quota usage and active jobs.
// Private chats register jobs under the user's own id as chat id.
func (c *Coordinator) Describe(key state.Key) Summary {
	sum := Summary{
		Key:             key,
		WaitingForQuery: c.states.IsWaitingForQuery(key),
		WaitingForLink:  c.states.IsWaitingForLink(key),
		Browsing:        c.states.IsBrowsingResults(key),
		Used:            c.limiter.CurrentCount(key.UserID),
		Max:             c.maxRequests,
	}
	if snap, ok := c.states.SearchResults(key); ok {
		sum.Query = snap.Query
		sum.Page = snap.Page
		sum.Pages = snap.TotalPages()
		sum.Results = snap.TotalResults()
	}
	chatID := key.ChatID
	if key.IsPrivate() {
		chatID = key.UserID
	}
	sum.ActiveJobs = c.jobs.ActiveFor(chatID, key.UserID)
	return sum
}

// Close releases the caches. Repeated calls are no-ops.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.states.Close()
		c.results.Close()
	})
}

// IsRejection reports whether err is one of the coordinator's own
// rejections rather than a collaborator failure.
func IsRejection(err error) bool {
	var se *Error
	return errors.As(err, &se)
}
