// Package universe implements UniverseManager (spec.md 4.G): the set of
// symbols TradingAgent considers each cycle, built from three priority
// tiers (held positions, watchlist plus sector leaders, discovery
// candidates) and capped at a configured size, cached to disk for 24
// hours so a restart doesn't immediately re-run discovery.
//
// Grounded on the teacher's generic weekly-job shape (NitinKhare-trader's
// internal/scheduler.Scheduler's "rebuild stock universe" weekly job
// description) for the build/refresh cadence, and on
// internal/marketclock's injectable-dependency style for the cache clock.
package universe

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/nyxtrader/decisioncore/internal/core"
	"github.com/nyxtrader/decisioncore/internal/logging"
)

// sectorTable is the fixed ten-sector leader table spec.md 4.G references:
// for each sector, the top-3 symbols UniverseManager draws from when
// filling priority-2 beyond the explicit watchlist.
var sectorTable = map[string][]string{
	"Technology":             {"AAPL", "MSFT", "NVDA"},
	"Healthcare":             {"UNH", "JNJ", "LLY"},
	"Financials":             {"JPM", "BRK.B", "V"},
	"Energy":                 {"XOM", "CVX", "COP"},
	"Consumer Discretionary": {"AMZN", "TSLA", "HD"},
	"Consumer Staples":       {"PG", "KO", "COST"},
	"Industrials":            {"CAT", "UNP", "HON"},
	"Utilities":              {"NEE", "DUK", "SO"},
	"Real Estate":            {"PLD", "AMT", "EQIX"},
	"Materials":              {"LIN", "SHW", "FCX"},
}

// DiscoverySource supplies priority-3 candidates (e.g. a scanner ranking
// symbols by relative volume or price momentum). TradingAgent's own
// domain has no such collaborator wired by default, so a nil source is
// valid and simply contributes nothing to priority 3.
type DiscoverySource interface {
	Discover(ctx context.Context, limit int) ([]string, error)
}

// Manager builds and caches the tracked-symbol universe.
type Manager struct {
	maxSymbols int
	cachePath  string
	cacheTTL   time.Duration
	discovery  DiscoverySource
	logger     *logging.StandardLogger

	entries []core.UniverseEntry
}

// Option configures a Manager.
type Option func(*Manager)

// WithDiscoverySource wires a priority-3 candidate source.
func WithDiscoverySource(d DiscoverySource) Option {
	return func(m *Manager) { m.discovery = d }
}

// New builds a Manager. maxSymbols is the hard cap on the returned
// universe (spec default 100); cachePath is where universe_cache.json
// lives; cacheTTL is how long a cached build is reused (spec default 24h).
func New(maxSymbols int, cachePath string, cacheTTL time.Duration, logger *logging.StandardLogger, opts ...Option) *Manager {
	if maxSymbols <= 0 {
		maxSymbols = 100
	}
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	m := &Manager{
		maxSymbols: maxSymbols,
		cachePath:  cachePath,
		cacheTTL:   cacheTTL,
		logger:     logger.WithComponent("universe_manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type cacheFile struct {
	BuiltAt time.Time            `json:"built_at"`
	Entries []core.UniverseEntry `json:"entries"`
}

// Build produces the tracked-symbol universe from held positions and a
// static watchlist, honoring a fresh on-disk cache before recomputing.
// Priority 1 (held symbols) always wins a slot; priority 2 (watchlist
// plus up to 3 symbols per sector) fills next; priority 3 (discovery
// candidates, if a DiscoverySource is wired) fills any remaining room.
// The result never exceeds maxSymbols.
func (m *Manager) Build(ctx context.Context, holdings, watchlist []string) ([]core.UniverseEntry, error) {
	if cached, ok := m.readCache(); ok {
		m.entries = cached
		return cached, nil
	}

	now := time.Now().UTC()
	seen := make(map[string]bool)
	var entries []core.UniverseEntry

	add := func(symbol string, reason core.UniverseReason, priority int) {
		if symbol == "" || seen[symbol] {
			return
		}
		seen[symbol] = true
		entries = append(entries, core.UniverseEntry{Symbol: symbol, Reason: reason, Priority: priority, AddedAt: now})
	}

	for _, s := range holdings {
		add(s, core.ReasonHoldings, 1)
	}

	for _, s := range watchlist {
		add(s, core.ReasonWatchlist, 2)
	}
	for _, sector := range sortedSectors() {
		for _, s := range sectorTable[sector] {
			add(s, core.ReasonSectorLeader, 2)
		}
	}

	if m.discovery != nil && len(entries) < m.maxSymbols {
		candidates, err := m.discovery.Discover(ctx, m.maxSymbols-len(entries))
		if err != nil {
			m.logger.WithError(err).Warn("discovery source failed, continuing without priority-3 candidates")
		} else {
			for _, s := range candidates {
				add(s, core.ReasonHighVolume, 3)
			}
		}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Priority < entries[j].Priority })
	if len(entries) > m.maxSymbols {
		entries = entries[:m.maxSymbols]
	}

	m.entries = entries
	if err := m.writeCache(entries, now); err != nil {
		m.logger.WithError(err).Warn("failed to write universe cache")
	}
	return entries, nil
}

// Promote adds symbols at priority 2 with the given reason, bypassing a
// full rebuild — used when NewsTimeline surfaces a breaking story about a
// symbol not currently tracked. Promote does not persist to the cache
// file; the next scheduled Build reconciles it.
func (m *Manager) Promote(symbols []string, reason core.UniverseReason) []core.UniverseEntry {
	now := time.Now().UTC()
	existing := make(map[string]bool, len(m.entries))
	for _, e := range m.entries {
		existing[e.Symbol] = true
	}
	for _, s := range symbols {
		if existing[s] {
			continue
		}
		existing[s] = true
		m.entries = append(m.entries, core.UniverseEntry{Symbol: s, Reason: reason, Priority: 2, AddedAt: now})
	}
	if len(m.entries) > m.maxSymbols {
		m.entries = m.entries[:m.maxSymbols]
	}
	return m.entries
}

// Symbols returns the plain symbol list from the last Build/Promote.
func (m *Manager) Symbols() []string {
	out := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Symbol)
	}
	return out
}

func (m *Manager) readCache() ([]core.UniverseEntry, bool) {
	if m.cachePath == "" {
		return nil, false
	}
	data, err := os.ReadFile(m.cachePath)
	if err != nil {
		return nil, false
	}
	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, false
	}
	if time.Since(cf.BuiltAt) > m.cacheTTL {
		return nil, false
	}
	return cf.Entries, true
}

func (m *Manager) writeCache(entries []core.UniverseEntry, builtAt time.Time) error {
	if m.cachePath == "" {
		return nil
	}
	data, err := json.Marshal(cacheFile{BuiltAt: builtAt, Entries: entries})
	if err != nil {
		return err
	}
	return os.WriteFile(m.cachePath, data, 0o644)
}

func sortedSectors() []string {
	out := make([]string, 0, len(sectorTable))
	for k := range sectorTable {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
