package news

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyxtrader/decisioncore/internal/core"
	"github.com/nyxtrader/decisioncore/internal/logging"
	"github.com/nyxtrader/decisioncore/internal/workerpool"
)

type memPersister struct {
	mu        sync.Mutex
	timelines map[string]core.SymbolTimeline
}

func newMemPersister() *memPersister {
	return &memPersister{timelines: make(map[string]core.SymbolTimeline)}
}

func (p *memPersister) key(symbol, date string) string { return symbol + "|" + date }

func (p *memPersister) SaveNewsTimeline(ctx context.Context, t core.SymbolTimeline) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timelines[p.key(t.Symbol, t.Date)] = t
	return nil
}

func (p *memPersister) NewsTimelineFor(ctx context.Context, symbol, date string) (core.SymbolTimeline, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.timelines[p.key(symbol, date)]
	return t, ok, nil
}

type fakeSynthesizer struct {
	calls int
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, symbol string, articles []core.NewsArticle, previous *core.NarrativeSynthesis) (core.NarrativeSynthesis, error) {
	f.calls++
	return core.NarrativeSynthesis{
		Narrative:      "synthesis for " + symbol,
		NetSentiment:   0.6,
		Confidence:     0.8,
		Recommendation: core.RecommendBuy,
	}, nil
}

func testLogger() *logging.StandardLogger {
	return logging.NewStandardLogger("error", "test")
}

func testPool(t *testing.T) *workerpool.Pool {
	t.Helper()
	p := workerpool.New(workerpool.Config{Workers: 4, QueueSize: 32})
	require.NoError(t, p.Start())
	t.Cleanup(func() { _ = p.Stop() })
	return p
}

func TestClassifyPhase(t *testing.T) {
	d := func(h, m int) time.Time { return time.Date(2026, 7, 30, h, m, 0, 0, time.UTC) }

	assert.Equal(t, PhaseAccumulation, ClassifyPhase(d(17, 0)))
	assert.Equal(t, PhaseAccumulation, ClassifyPhase(d(1, 0)))
	assert.Equal(t, PhaseSynthesis, ClassifyPhase(d(3, 0)))
	assert.Equal(t, PhaseValidation, ClassifyPhase(d(7, 0)))
	assert.Equal(t, PhaseClosed, ClassifyPhase(d(12, 0)))
}

func TestManager_Accumulate_DedupesByArticleID(t *testing.T) {
	p := newMemPersister()
	m := New(p, nil, nil, testLogger())
	ctx := context.Background()

	article := core.NewsArticle{ID: "a1", Headline: "headline one"}
	require.NoError(t, m.Accumulate(ctx, "AAPL", "2026-07-30", article))
	require.NoError(t, m.Accumulate(ctx, "AAPL", "2026-07-30", article))

	tl, found, err := m.TimelineFor(ctx, "AAPL", "2026-07-30")
	require.NoError(t, err)
	require.True(t, found)
	assert.Len(t, tl.Articles, 1)
}

func TestManager_Accumulate_DistinctArticlesAccumulate(t *testing.T) {
	p := newMemPersister()
	m := New(p, nil, nil, testLogger())
	ctx := context.Background()

	require.NoError(t, m.Accumulate(ctx, "AAPL", "2026-07-30", core.NewsArticle{ID: "a1", Headline: "one"}))
	require.NoError(t, m.Accumulate(ctx, "AAPL", "2026-07-30", core.NewsArticle{ID: "a2", Headline: "two"}))

	tl, _, err := m.TimelineFor(ctx, "AAPL", "2026-07-30")
	require.NoError(t, err)
	assert.Len(t, tl.Articles, 2)
}

func TestManager_SynthesizeAll_ProducesSynthesisPerSymbol(t *testing.T) {
	p := newMemPersister()
	pool := testPool(t)
	synth := &fakeSynthesizer{}
	m := New(p, synth, pool, testLogger())
	ctx := context.Background()

	require.NoError(t, m.Accumulate(ctx, "AAPL", "2026-07-30", core.NewsArticle{ID: "a1"}))
	require.NoError(t, m.Accumulate(ctx, "MSFT", "2026-07-30", core.NewsArticle{ID: "a2"}))

	require.NoError(t, m.SynthesizeAll(ctx, []string{"AAPL", "MSFT"}, "2026-07-30"))
	assert.Equal(t, 2, synth.calls)

	tl, found, err := m.TimelineFor(ctx, "AAPL", "2026-07-30")
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, tl.Synthesis)
	assert.Equal(t, core.RecommendBuy, tl.Synthesis.Recommendation)
	assert.Equal(t, 0, tl.Synthesis.Revision)
}

func TestManager_SynthesizeAll_SkipsSymbolsWithNoArticles(t *testing.T) {
	p := newMemPersister()
	pool := testPool(t)
	synth := &fakeSynthesizer{}
	m := New(p, synth, pool, testLogger())
	ctx := context.Background()

	require.NoError(t, m.SynthesizeAll(ctx, []string{"GME"}, "2026-07-30"))
	assert.Equal(t, 0, synth.calls)

	_, found, err := m.TimelineFor(ctx, "GME", "2026-07-30")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestManager_SynthesizeAll_ResynthesisIncrementsRevision(t *testing.T) {
	p := newMemPersister()
	pool := testPool(t)
	synth := &fakeSynthesizer{}
	m := New(p, synth, pool, testLogger())
	ctx := context.Background()

	require.NoError(t, m.Accumulate(ctx, "AAPL", "2026-07-30", core.NewsArticle{ID: "a1"}))
	require.NoError(t, m.SynthesizeAll(ctx, []string{"AAPL"}, "2026-07-30"))
	require.NoError(t, m.Accumulate(ctx, "AAPL", "2026-07-30", core.NewsArticle{ID: "a2"}))
	require.NoError(t, m.SynthesizeAll(ctx, []string{"AAPL"}, "2026-07-30"))

	tl, _, err := m.TimelineFor(ctx, "AAPL", "2026-07-30")
	require.NoError(t, err)
	require.NotNil(t, tl.Synthesis)
	assert.Equal(t, 1, tl.Synthesis.Revision)
	require.Len(t, tl.Revisions, 1)
}

func TestManager_ValidateAll_DiscountsStaleSynthesisWithoutRewritingText(t *testing.T) {
	p := newMemPersister()
	pool := testPool(t)
	synth := &fakeSynthesizer{}
	m := New(p, synth, pool, testLogger())
	ctx := context.Background()

	require.NoError(t, m.Accumulate(ctx, "AAPL", "2026-07-30", core.NewsArticle{ID: "a1"}))
	require.NoError(t, m.SynthesizeAll(ctx, []string{"AAPL"}, "2026-07-30"))

	before, _, err := m.TimelineFor(ctx, "AAPL", "2026-07-30")
	require.NoError(t, err)
	narrative := before.Synthesis.Narrative
	recommendation := before.Synthesis.Recommendation

	require.NoError(t, m.ValidateAll(ctx, []string{"AAPL"}, "2026-07-30"))

	after, _, err := m.TimelineFor(ctx, "AAPL", "2026-07-30")
	require.NoError(t, err)
	assert.True(t, after.Synthesis.Stale)
	assert.InDelta(t, 0.3, after.Synthesis.NetSentiment, 0.0001)
	assert.InDelta(t, 0.4, after.Synthesis.Confidence, 0.0001)
	assert.Equal(t, narrative, after.Synthesis.Narrative)
	assert.Equal(t, recommendation, after.Synthesis.Recommendation)
}

func TestManager_ValidateAll_AlreadyStaleIsNoOp(t *testing.T) {
	p := newMemPersister()
	pool := testPool(t)
	synth := &fakeSynthesizer{}
	m := New(p, synth, pool, testLogger())
	ctx := context.Background()

	require.NoError(t, m.Accumulate(ctx, "AAPL", "2026-07-30", core.NewsArticle{ID: "a1"}))
	require.NoError(t, m.SynthesizeAll(ctx, []string{"AAPL"}, "2026-07-30"))
	require.NoError(t, m.ValidateAll(ctx, []string{"AAPL"}, "2026-07-30"))

	first, _, err := m.TimelineFor(ctx, "AAPL", "2026-07-30")
	require.NoError(t, err)
	firstSentiment := first.Synthesis.NetSentiment

	require.NoError(t, m.ValidateAll(ctx, []string{"AAPL"}, "2026-07-30"))
	second, _, err := m.TimelineFor(ctx, "AAPL", "2026-07-30")
	require.NoError(t, err)
	assert.Equal(t, firstSentiment, second.Synthesis.NetSentiment)
}
