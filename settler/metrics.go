package settler

import (
	"errors"
	"strings"

	"github.com/datatrails/go-datatrails-proxysettlement/settlement"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics counts settler program runs.
type Metrics struct {
	runs *prometheus.CounterVec
}

// NewMetrics creates the program counters and registers them on reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proxysettle_program_runs_total",
			Help: "Settler program runs by program and outcome.",
		}, []string{"program", "outcome"}),
	}
	if reg == nil {
		return m, nil
	}
	if err := reg.Register(m.runs); err != nil {
		return nil, err
	}
	return m, nil
}

// Runs returns the counter of one program and outcome.
func (m *Metrics) Runs(program Program, outcome string) prometheus.Counter {
	return m.runs.WithLabelValues(string(program), outcome)
}

func (m *Metrics) observe(program Program, err error) {
	if m == nil {
		return
	}
	m.Runs(program, Outcome(err)).Inc()
}

// Outcome labels a run result: "ok", the snake cased pipeline error kind, or
// "error" for anything else (input decoding, ABI encoding).
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	var pipelineErr *settlement.PipelineError
	if errors.As(err, &pipelineErr) {
		return strings.ReplaceAll(pipelineErr.Kind.String(), " ", "_")
	}
	return OutcomeError
}
