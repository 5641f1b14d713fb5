// Package integration exercises spec.md 8's testable properties
// end-to-end: a real indicators.Engine, risk.Gate, and sqlite-backed
// store.Store wired through agent.New exactly as cmd/engine/wire.go does
// it, driven against collaborators.PaperBroker and a scripted ai.Model
// standing in for the network-bound LLM call. Grounded on the teacher's
// services/backend-api/test/integration layout (a dedicated
// test/integration directory, separate from package-level unit tests);
// unlike the teacher's Postgres/Redis/gin harness this one needs no
// external services, so there is no CI/DATABASE_URL skip-gate.
package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/nyxtrader/decisioncore/internal/agent"
	"github.com/nyxtrader/decisioncore/internal/ai"
	"github.com/nyxtrader/decisioncore/internal/collaborators"
	"github.com/nyxtrader/decisioncore/internal/config"
	"github.com/nyxtrader/decisioncore/internal/core"
	"github.com/nyxtrader/decisioncore/internal/indicators"
	"github.com/nyxtrader/decisioncore/internal/logging"
	"github.com/nyxtrader/decisioncore/internal/risk"
	"github.com/nyxtrader/decisioncore/internal/store"
)

func testLogger() *logging.StandardLogger {
	return logging.NewStandardLogger("error", "test")
}

// seededBroker adds bar-history and position seeding on top of a real
// PaperBroker, which has neither (PaperBroker.GetBars always errors by
// design — spec.md 6 ships no market-data vendor, and a production Broker
// would be the one answering GetBars for real). Positions are seeded the
// same way the paper engine would ever acquire one: placing a real
// market order against a registered last price, never by poking fields
// directly.
type seededBroker struct {
	*collaborators.PaperBroker
	bars map[string][]core.Bar
}

func newSeededBroker(initialCash decimal.Decimal) *seededBroker {
	return &seededBroker{
		PaperBroker: collaborators.NewPaperBroker(initialCash),
		bars:        make(map[string][]core.Bar),
	}
}

func (b *seededBroker) SeedBars(symbol string, bars []core.Bar) { b.bars[symbol] = bars }

func (b *seededBroker) GetBars(_ context.Context, symbol string, _, _ time.Time, _ string) ([]core.Bar, error) {
	bars, ok := b.bars[symbol]
	if !ok {
		return nil, fmt.Errorf("integration: no bars seeded for %s", symbol)
	}
	return bars, nil
}

// seedPosition opens a position in symbol at price via a real market buy,
// so the resulting core.Position carries a correctly derived AvgEntryPrice
// and MarketValue instead of a hand-built struct.
func (b *seededBroker) seedPosition(t *testing.T, symbol string, qty int64, price decimal.Decimal) {
	t.Helper()
	b.SetLastPrice(symbol, price)
	order, err := b.PlaceMarketOrder(context.Background(), symbol, qty, collaborators.OrderSideBuy)
	require.NoError(t, err)
	require.Equal(t, collaborators.OrderStatusFilled, order.Status)
}

// flatBars returns n daily bars at a constant close, enough to clear
// indicators.MinimumBars so analyzeSymbol succeeds; the scripted model
// below never derives its answer from the indicator values themselves,
// only from which symbol is being asked about.
func flatBars(n int, close float64) []core.Bar {
	bars := make([]core.Bar, 0, n)
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		bars = append(bars, core.Bar{
			Timeframe: "1d",
			Timestamp: now.Add(-time.Duration(n-i) * 24 * time.Hour),
			Open:      close,
			High:      close * 1.01,
			Low:       close * 0.99,
			Close:     close,
			Volume:    1_000_000,
		})
	}
	return bars
}

// scriptedModel stands in for internal/ai.Collaborator: PromptAssembler
// always renders the primary symbol as a literal substring (internal/
// prompt/components.go's "## Technical Data: %s" header and friends), so
// a canned response keyed on that substring drives a known Decision
// through the real parser without a network call.
type scriptedModel struct {
	mu        sync.Mutex
	responses map[string]string
	err       error
	prompts   []string
}

func newScriptedModel() *scriptedModel {
	return &scriptedModel{responses: make(map[string]string)}
}

func (m *scriptedModel) respond(symbol, raw string) { m.responses[symbol] = raw }

func (m *scriptedModel) Complete(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}
	for symbol, raw := range m.responses {
		if strings.Contains(prompt, symbol) {
			return raw, nil
		}
	}
	return "", fmt.Errorf("integration: scriptedModel has no response for prompt: %.80s", prompt)
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func buyDecisionJSON(confidence int, shares int64) string {
	return fmt.Sprintf(`{"action":"buy","confidence":%d,"shares":%d,"price":100.0,"reasoning":"technical and narrative both support accumulation","sentiment":"bullish"}`, confidence, shares)
}

func sellDecisionJSON(confidence int) string {
	return fmt.Sprintf(`{"action":"sell","confidence":%d,"shares":0,"price":100.0,"reasoning":"lock in gains and free capital","sentiment":"neutral"}`, confidence)
}

func holdDecisionJSON() string {
	return `{"action":"hold","confidence":50,"shares":0,"price":100.0,"reasoning":"no clear edge","sentiment":"neutral"}`
}

// testRiskConfig is permissive enough that a single scenario's sizing
// never trips an unrelated check; each scenario tightens the one limit it
// means to exercise.
func testRiskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxPositionPctOfEquity:  1.0,
		MaxPortfolioExposurePct: 1.0,
		MaxDailyLossPct:         0.5,
		MaxConsecutiveLosses:    10,
		MaxTradesPerDay:         50,
		MinConfidenceToTrade:    1,
	}
}

type harness struct {
	t      *testing.T
	broker *seededBroker
	store  *store.Store
	model  *scriptedModel
	agent  *agent.TradingAgent
}

func newHarness(t *testing.T, initialCash decimal.Decimal, riskCfg config.RiskConfig, agentCfg agent.Config) *harness {
	t.Helper()

	dir := t.TempDir()
	st, err := store.Open(config.DatabaseConfig{
		SQLitePath:  filepath.Join(dir, "decisioncore.db"),
		ArtifactDir: filepath.Join(dir, "artifacts"),
	}, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	broker := newSeededBroker(initialCash)
	gate := risk.New(riskCfg, testLogger())
	engine := indicators.New(indicators.DefaultConfig(), testLogger())
	model := newScriptedModel()
	parser := ai.NewResponseParser()

	a := agent.New(broker, st, gate, model, parser, engine, testLogger(), agentCfg)

	return &harness{t: t, broker: broker, store: st, model: model, agent: a}
}

func defaultAgentConfig(profile core.Profile) agent.Config {
	cfg := agent.DefaultConfig()
	cfg.Profile = profile
	return cfg
}
