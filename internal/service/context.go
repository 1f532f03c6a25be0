package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/timmy/pokedex/internal/domain"
	"github.com/timmy/pokedex/internal/logger"
)

const (
	maxExcerptChars = 300
	maxPassageChars = 400
)

// Searcher runs keyword queries against the index.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.SearchHit, error)
}

// PassageRetriever returns short relevant spans for a natural-language query.
type PassageRetriever interface {
	RetrievePassages(ctx context.Context, query string, limit int) ([]domain.Passage, error)
}

// ContextConfig bounds what the aggregator gathers.
type ContextConfig struct {
	MaxHits         int
	MaxPassages     int
	HistoryTurns    int
	GatherTimeout   time.Duration
	MaxContextChars int
}

// DefaultContextConfig returns the chat defaults.
func DefaultContextConfig() ContextConfig {
	return ContextConfig{
		MaxHits:         domain.MaxSearchHits,
		MaxPassages:     domain.MaxPassages,
		HistoryTurns:    domain.MaxHistoryTurns,
		GatherTimeout:   8 * time.Second,
		MaxContextChars: 6000,
	}
}

// ContextAggregator gathers search hits and passages concurrently for one chat turn.
type ContextAggregator struct {
	searcher Searcher
	passages PassageRetriever
	cfg      ContextConfig
}

// NewContextAggregator creates a new aggregator.
// Parameters:
//   - searcher: keyword search backend.
//   - passages: optional passage backend; nil contributes zero passages.
//   - cfg: caps and the bounded wait. Zero MaxPassages or HistoryTurns disables
//     that source; negative values fall back to the defaults.
// Returns:
//   - *ContextAggregator: initialized aggregator.
func NewContextAggregator(searcher Searcher, passages PassageRetriever, cfg ContextConfig) *ContextAggregator {
	def := DefaultContextConfig()
	if cfg.MaxHits <= 0 {
		cfg.MaxHits = def.MaxHits
	}
	if cfg.MaxPassages < 0 {
		cfg.MaxPassages = def.MaxPassages
	}
	if cfg.HistoryTurns < 0 {
		cfg.HistoryTurns = def.HistoryTurns
	}
	if cfg.GatherTimeout <= 0 {
		cfg.GatherTimeout = def.GatherTimeout
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = def.MaxContextChars
	}
	return &ContextAggregator{searcher: searcher, passages: passages, cfg: cfg}
}

// GatherContext queries both sources at once and joins when both answer or the wait elapses.
// It never fails: a slow or failing source contributes nothing.
func (a *ContextAggregator) GatherContext(ctx context.Context, query string, history []domain.ChatMessage) domain.ChatContext {
	ctx = logger.SetComponent(ctx, "context")
	start := time.Now()

	tctx, cancel := context.WithTimeout(ctx, a.cfg.GatherTimeout)
	defer cancel()

	var (
		mu       sync.Mutex
		hits     = []domain.SearchHit{}
		passages = []domain.Passage{}
	)

	// Every source returns nil so one failure never cancels the other.
	g, gctx := errgroup.WithContext(tctx)
	g.Go(func() error {
		found, err := a.searcher.Search(gctx, query, a.cfg.MaxHits)
		if err != nil {
			logger.CtxWarn(ctx, "Keyword search failed: %v", err)
			return nil
		}
		mu.Lock()
		hits = capHits(found, a.cfg.MaxHits)
		mu.Unlock()
		return nil
	})
	if a.passages != nil && a.cfg.MaxPassages > 0 {
		g.Go(func() error {
			found, err := a.passages.RetrievePassages(gctx, query, a.cfg.MaxPassages)
			if err != nil {
				logger.CtxDebug(ctx, "Passage retrieval unavailable: %v", err)
				return nil
			}
			mu.Lock()
			passages = rankPassages(found, a.cfg.MaxPassages)
			mu.Unlock()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-tctx.Done():
		logger.CtxWarn(ctx, "Context gathering stopped after %v with a source still pending", a.cfg.GatherTimeout)
	}

	mu.Lock()
	out := domain.ChatContext{
		SearchHits: hits,
		Passages:   passages,
		History:    domain.TrimHistory(history, a.cfg.HistoryTurns),
	}
	mu.Unlock()

	logger.With(logger.Fields{
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
		"hits":                 len(out.SearchHits),
		"passages":             len(out.Passages),
	}).Debug(ctx, "Context gathered")
	return out
}

func capHits(hits []domain.SearchHit, max int) []domain.SearchHit {
	if hits == nil {
		return []domain.SearchHit{}
	}
	if len(hits) > max {
		hits = hits[:max]
	}
	return hits
}

func rankPassages(passages []domain.Passage, max int) []domain.Passage {
	ranked := make([]domain.Passage, 0, len(passages))
	for _, p := range passages {
		if strings.TrimSpace(p.Text) != "" {
			ranked = append(ranked, p)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > max {
		ranked = ranked[:max]
	}
	return ranked
}

// Serialize renders the context block: hit summaries, then excerpts, then passages,
// then caller-supplied context. Whole lines are dropped from the tail to respect the size bound.
func (a *ContextAggregator) Serialize(c domain.ChatContext) string {
	return SerializeContext(c, a.cfg.MaxContextChars)
}

// SerializeContext is Serialize with an explicit size bound; maxChars <= 0 means unbounded.
func SerializeContext(c domain.ChatContext, maxChars int) string {
	var lines []string

	for i, h := range c.SearchHits {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, hitSummary(h)))
	}
	for _, h := range c.SearchHits {
		if ex := strings.TrimSpace(h.Excerpt); ex != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", h.Title, truncate(ex, maxExcerptChars)))
		}
	}
	for _, p := range c.Passages {
		lines = append(lines, fmt.Sprintf("Passage (%s): %s", p.DocumentTitle, truncate(strings.TrimSpace(p.Text), maxPassageChars)))
	}
	if s := strings.TrimSpace(c.Supplied); s != "" {
		lines = append(lines, "Additional context: "+s)
	}

	if maxChars > 0 {
		total := 0
		for i, l := range lines {
			size := len(l)
			if i > 0 {
				size++
			}
			if total+size > maxChars {
				lines = lines[:i]
				break
			}
			total += size
		}
	}
	return strings.Join(lines, "\n")
}

// hitSummary renders the structured attributes of a hit on one line.
func hitSummary(h domain.SearchHit) string {
	parts := []string{h.Title}
	if h.Number > 0 {
		parts[0] = fmt.Sprintf("%s (#%d)", h.Title, h.Number)
	}
	if len(h.Types) > 0 {
		parts = append(parts, "Type: "+strings.Join(h.Types, "/"))
	}
	if h.Species != "" {
		parts = append(parts, "Species: "+h.Species)
	}
	if h.Generation != "" {
		parts = append(parts, "Generation: "+h.Generation)
	}
	return strings.Join(parts, " | ")
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max])) + "..."
}
