// Package news implements NewsTimeline (spec.md 4.H): the overnight
// news-accumulation/synthesis/validation phase machine. Articles accrete
// per (symbol, trading-date) from market close, a bounded worker pool
// synthesizes a NarrativeSynthesis per symbol during the 02:00-04:00
// window, and a validation pass between 06:00 and the open discounts any
// synthesis that's gone stale without rewriting its recommendation.
//
// Grounded on internal/marketclock's wall-clock-window classification
// idiom (its own Clock.classify maps time-of-day to a state; Phase here
// does the same for the overnight news cycle, since the two classifiers
// answer different questions and must not share one enumeration) and on
// internal/workerpool's bounded-pool shape for the synthesis fan-out
// spec.md 4.H caps at "bounded parallel, <=20 minutes at 100 symbols".
// NewsTimeline is NOT grounded on the teacher's twitter_sentiment_service.go:
// that file scores crypto-Twitter sentiment per-tweet with no timeline,
// dedup, or phase concept at all, and was deleted along with the rest of
// internal/services as unrelated domain code.
package news

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nyxtrader/decisioncore/internal/core"
	"github.com/nyxtrader/decisioncore/internal/logging"
	"github.com/nyxtrader/decisioncore/internal/workerpool"
)

// Phase is the closed enumeration of overnight news-cycle windows.
type Phase string

const (
	PhaseAccumulation Phase = "accumulation" // market close -> 02:00
	PhaseSynthesis    Phase = "synthesis"    // 02:00 -> 04:00
	PhaseValidation   Phase = "validation"   // 06:00 -> market open
	PhaseClosed       Phase = "closed"       // everything else: no news work due
)

// ClassifyPhase maps a wall-clock time (already in the market timezone)
// to the news cycle phase active at that instant.
func ClassifyPhase(now time.Time) Phase {
	minutes := now.Hour()*60 + now.Minute()
	switch {
	case minutes >= 16*60+30 || minutes < 2*60:
		return PhaseAccumulation
	case minutes < 4*60:
		return PhaseSynthesis
	case minutes >= 6*60 && minutes < 9*60+30:
		return PhaseValidation
	default:
		return PhaseClosed
	}
}

// Synthesizer produces a NarrativeSynthesis from an accumulated article
// set, given the prior synthesis if this is a re-synthesis pass.
type Synthesizer interface {
	Synthesize(ctx context.Context, symbol string, articles []core.NewsArticle, previous *core.NarrativeSynthesis) (core.NarrativeSynthesis, error)
}

// Persister is the subset of LearningStore's API NewsTimeline durability
// needs; satisfied directly by *store.Store.
type Persister interface {
	SaveNewsTimeline(ctx context.Context, t core.SymbolTimeline) error
	NewsTimelineFor(ctx context.Context, symbol, date string) (core.SymbolTimeline, bool, error)
}

// Manager owns the per-(symbol,date) timeline state.
type Manager struct {
	persister   Persister
	synthesizer Synthesizer
	pool        *workerpool.Pool
	logger      *logging.StandardLogger

	locks sync.Map // "symbol|date" -> *sync.Mutex
}

// New builds a Manager. pool is the bounded synthesis worker pool
// (spec caps NewsProvider-facing concurrency at 8); synthesizer may be
// nil if only accumulation/dedup is needed (e.g. in tests).
func New(persister Persister, synthesizer Synthesizer, pool *workerpool.Pool, logger *logging.StandardLogger) *Manager {
	return &Manager{persister: persister, synthesizer: synthesizer, pool: pool, logger: logger.WithComponent("news_timeline")}
}

func lockKey(symbol, date string) string { return symbol + "|" + date }

func (m *Manager) lockFor(symbol, date string) *sync.Mutex {
	l, _ := m.locks.LoadOrStore(lockKey(symbol, date), &sync.Mutex{})
	return l.(*sync.Mutex)
}

// Accumulate appends article to symbol's timeline for date, deduplicating
// by article ID (spec.md 4.H: "unique article ids per symbol/date"). A
// duplicate ID is a silent no-op, not an error.
func (m *Manager) Accumulate(ctx context.Context, symbol, date string, article core.NewsArticle) error {
	lock := m.lockFor(symbol, date)
	lock.Lock()
	defer lock.Unlock()

	timeline, found, err := m.persister.NewsTimelineFor(ctx, symbol, date)
	if err != nil {
		return fmt.Errorf("news: load timeline: %w", err)
	}
	if !found {
		timeline = core.SymbolTimeline{Symbol: symbol, Date: date}
	}

	for _, existing := range timeline.Articles {
		if existing.ID == article.ID {
			return nil
		}
	}
	timeline.Articles = append(timeline.Articles, article)

	return m.persister.SaveNewsTimeline(ctx, timeline)
}

// SynthesizeAll dispatches one synthesis task per symbol through the
// bounded worker pool and waits for all to complete, returning the first
// error encountered (synthesis failures for other symbols still run to
// completion; spec.md 4.H treats a stuck symbol as a skip, not a fatal).
func (m *Manager) SynthesizeAll(ctx context.Context, symbols []string, date string) error {
	if m.synthesizer == nil {
		return fmt.Errorf("news: no synthesizer configured")
	}

	resultChs := make([]<-chan workerpool.Result, 0, len(symbols))
	for _, symbol := range symbols {
		symbol := symbol
		ch, err := m.pool.SubmitAsync(workerpool.Task{
			ID:      fmt.Sprintf("synthesize:%s:%s", symbol, date),
			Execute: func() error { return m.synthesizeOne(ctx, symbol, date) },
		})
		if err != nil {
			return fmt.Errorf("news: submit synthesis for %s: %w", symbol, err)
		}
		resultChs = append(resultChs, ch)
	}

	var firstErr error
	for i, ch := range resultChs {
		res := <-ch
		if res.Error != nil {
			m.logger.WithSymbol(symbols[i]).WithError(res.Error).Warn("synthesis failed, skipping symbol")
			if firstErr == nil {
				firstErr = res.Error
			}
		}
	}
	return firstErr
}

func (m *Manager) synthesizeOne(ctx context.Context, symbol, date string) error {
	lock := m.lockFor(symbol, date)
	lock.Lock()
	defer lock.Unlock()

	timeline, found, err := m.persister.NewsTimelineFor(ctx, symbol, date)
	if err != nil {
		return fmt.Errorf("news: load timeline: %w", err)
	}
	if !found || len(timeline.Articles) == 0 {
		return nil
	}

	synthesis, err := m.synthesizer.Synthesize(ctx, symbol, timeline.Articles, timeline.Synthesis)
	if err != nil {
		return fmt.Errorf("news: synthesize %s: %w", symbol, err)
	}
	synthesis.SynthesizedAt = time.Now().UTC()

	if timeline.Synthesis != nil {
		timeline.Revisions = append(timeline.Revisions, *timeline.Synthesis)
		synthesis.Revision = timeline.Synthesis.Revision + 1
	}
	timeline.Synthesis = &synthesis

	return m.persister.SaveNewsTimeline(ctx, timeline)
}

// staleDiscount is applied to NetSentiment and Confidence once a
// synthesis is marked stale, per spec.md 4.H.
const staleDiscount = 0.5

// ValidateAll marks every symbol's synthesis stale for date, discounting
// NetSentiment and Confidence by staleDiscount without touching the
// Narrative/Recommendation text itself. A symbol with no synthesis, or
// one already marked stale, is left untouched.
func (m *Manager) ValidateAll(ctx context.Context, symbols []string, date string) error {
	for _, symbol := range symbols {
		if err := m.validateOne(ctx, symbol, date); err != nil {
			m.logger.WithSymbol(symbol).WithError(err).Warn("validation failed, skipping symbol")
		}
	}
	return nil
}

func (m *Manager) validateOne(ctx context.Context, symbol, date string) error {
	lock := m.lockFor(symbol, date)
	lock.Lock()
	defer lock.Unlock()

	timeline, found, err := m.persister.NewsTimelineFor(ctx, symbol, date)
	if err != nil {
		return fmt.Errorf("news: load timeline: %w", err)
	}
	if !found || timeline.Synthesis == nil || timeline.Synthesis.Stale {
		return nil
	}

	timeline.Synthesis.Stale = true
	timeline.Synthesis.NetSentiment *= staleDiscount
	timeline.Synthesis.Confidence *= staleDiscount

	return m.persister.SaveNewsTimeline(ctx, timeline)
}

// TimelineFor returns the current persisted timeline for (symbol, date).
func (m *Manager) TimelineFor(ctx context.Context, symbol, date string) (core.SymbolTimeline, bool, error) {
	return m.persister.NewsTimelineFor(ctx, symbol, date)
}
