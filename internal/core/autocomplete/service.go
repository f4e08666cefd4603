// Package autocomplete resolves the partial token under the cursor into
// hashtag or account candidates. Queries are debounced and cancellable: a
// newer keystroke supersedes the in-flight fetch, and late results from a
// superseded fetch are discarded.
package autocomplete

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"Perch/internal/client"
)

// ResultKind discriminates what a query resolved to.
type ResultKind int

const (
	// KindNone means the token is not completable; any visible
	// suggestions should be cleared.
	KindNone ResultKind = iota

	// KindRecentTags signals the UI to show recently used tags inline;
	// no network call is made for a bare "#".
	KindRecentTags

	// KindHashtags carries hashtag candidates ranked by historical use.
	KindHashtags

	// KindAccounts carries account candidates.
	KindAccounts
)

// Result is one completed autocomplete resolution.
type Result struct {
	Kind     ResultKind
	Query    string
	Hashtags []client.Tag
	Accounts []client.Account
}

// DeliverFunc receives results. Exactly one terminal delivery happens per
// query unless a newer query supersedes it first. Deliveries are serialized
// by the service; implementations must not call back into it.
type DeliverFunc func(Result)

// Config tunes the autocomplete service.
type Config struct {
	// Debounce is how long to wait after a keystroke before searching.
	Debounce time.Duration

	// CacheSize bounds the LRU of recent query results.
	CacheSize int
}

// DefaultConfig debounces 150ms and remembers 64 queries.
func DefaultConfig() Config {
	return Config{
		Debounce:  150 * time.Millisecond,
		CacheSize: 64,
	}
}

// Service runs debounced, cancellable candidate searches.
type Service struct {
	search client.SearchClient
	clock  client.Clock
	cfg    Config
	cache  *lru.Cache[string, Result]

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

// NewService creates an autocomplete service.
func NewService(search client.SearchClient, clock client.Clock, cfg Config) (*Service, error) {
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("CacheSize must be positive, got %d", cfg.CacheSize)
	}
	cache, err := lru.New[string, Result](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}
	return &Service{
		search: search,
		clock:  clock,
		cfg:    cfg,
		cache:  cache,
	}, nil
}

// QueryChanged handles a new token under the cursor. Non-completable
// queries clear immediately (no debounce); completable ones are debounced
// and fetched, superseding any in-flight fetch for the previous keystroke.
func (s *Service) QueryChanged(ctx context.Context, query string, deliver DeliverFunc) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}

	// Clearing and the bare-# signal are synchronous; only real searches
	// need the debounce. Delivered under the lock so a stale fetch result
	// cannot interleave with them.
	switch {
	case !isCompletable(query):
		deliver(Result{Kind: KindNone, Query: query})
		s.mu.Unlock()
		return
	case query == "#":
		deliver(Result{Kind: KindRecentTags, Query: query})
		s.mu.Unlock()
		return
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go s.fetch(fetchCtx, gen, query, deliver)
}

// Cancel aborts any in-flight fetch, used when the suggestion range under
// the cursor is cleared.
func (s *Service) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Service) fetch(ctx context.Context, gen uint64, query string, deliver DeliverFunc) {
	if err := s.clock.Sleep(ctx, s.cfg.Debounce); err != nil {
		return
	}

	if cached, ok := s.cache.Get(query); ok {
		s.deliverIfCurrent(gen, cached, deliver)
		return
	}

	var result Result
	switch {
	case strings.HasPrefix(query, "#"):
		tags, err := s.search.SearchHashtags(ctx, strings.TrimPrefix(query, "#"))
		if err != nil {
			s.logFetchError(ctx, query, err)
			return
		}
		// Rank by descending historical use
		sort.SliceStable(tags, func(i, j int) bool {
			return tags[i].TotalUses() > tags[j].TotalUses()
		})
		result = Result{Kind: KindHashtags, Query: query, Hashtags: tags}

	case strings.HasPrefix(query, "@"):
		accounts, err := s.search.SearchAccounts(ctx, strings.TrimPrefix(query, "@"))
		if err != nil {
			s.logFetchError(ctx, query, err)
			return
		}
		result = Result{Kind: KindAccounts, Query: query, Accounts: accounts}

	default:
		result = Result{Kind: KindNone, Query: query}
	}

	s.cache.Add(query, result)
	s.deliverIfCurrent(gen, result, deliver)
}

// deliverIfCurrent drops results that arrive after a newer query took over.
// The delivery happens under the service lock, together with the generation
// check: once a newer query has delivered, a stale result can never run
// after it. Deliver funcs must not call back into the service.
func (s *Service) deliverIfCurrent(gen uint64, result Result, deliver DeliverFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen == s.generation {
		deliver(result)
	}
}

func (s *Service) logFetchError(ctx context.Context, query string, err error) {
	// Cancellation is the normal supersede path, not worth logging
	if ctx.Err() != nil {
		return
	}
	log.Printf("[AUTOCOMPLETE] search for %q failed: %v", query, err)
}

func isCompletable(query string) bool {
	if len(query) < 1 {
		return false
	}
	return strings.HasPrefix(query, "#") || strings.HasPrefix(query, "@")
}
