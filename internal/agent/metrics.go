package agent

import "sync"

// Metrics accumulates per-cycle counters across the TradingAgent's
// lifetime, grounded on the teacher's TraderAgentMetrics (mutex-guarded
// counters incremented from MakeDecision) but trimmed to the subset
// this engine's cycle loop actually produces: there is no win/loss or
// avg-confidence tracking here since realized P&L belongs to
// LearningStore's DailyPerformance, not to an in-process counter that
// resets on restart.
type Metrics struct {
	mu sync.Mutex

	CyclesRun            int
	DecisionsExecuted    int
	DecisionsSkipped     int
	DecisionsRejected    int
	ParseFailures        int
	BrokerErrorsTransient int
	BrokerErrorsFatal     int
	SafeModeDecisions     int
	ByAction              map[string]int
}

func newMetrics() *Metrics {
	return &Metrics{ByAction: make(map[string]int)}
}

func (m *Metrics) recordCycle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CyclesRun++
}

func (m *Metrics) recordExecuted(action string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DecisionsExecuted++
	m.ByAction[action]++
}

func (m *Metrics) recordSkipped()          { m.bump(&m.DecisionsSkipped) }
func (m *Metrics) recordRejected()         { m.bump(&m.DecisionsRejected) }
func (m *Metrics) recordParseFailure()     { m.bump(&m.ParseFailures) }
func (m *Metrics) recordBrokerTransient()  { m.bump(&m.BrokerErrorsTransient) }
func (m *Metrics) recordBrokerFatal()      { m.bump(&m.BrokerErrorsFatal) }
func (m *Metrics) recordSafeMode()         { m.bump(&m.SafeModeDecisions) }

func (m *Metrics) bump(counter *int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*counter++
}

// Snapshot returns a copy safe for logging or a status endpoint.
func (m *Metrics) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	byAction := make(map[string]int, len(m.ByAction))
	for k, v := range m.ByAction {
		byAction[k] = v
	}
	return Metrics{
		CyclesRun:             m.CyclesRun,
		DecisionsExecuted:     m.DecisionsExecuted,
		DecisionsSkipped:      m.DecisionsSkipped,
		DecisionsRejected:     m.DecisionsRejected,
		ParseFailures:         m.ParseFailures,
		BrokerErrorsTransient: m.BrokerErrorsTransient,
		BrokerErrorsFatal:     m.BrokerErrorsFatal,
		SafeModeDecisions:     m.SafeModeDecisions,
		ByAction:              byAction,
	}
}
