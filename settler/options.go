package settler

import (
	"github.com/datatrails/go-datatrails-proxysettlement/segmentvc"
	"github.com/datatrails/go-datatrails-proxysettlement/settlement"
)

type ProgramOptions struct {

	// treeOptions shape the commitment trees built by the overpay and
	// profit programs.
	treeOptions []segmentvc.TreeOption

	// feeSchedule, if set, pins the fee configs the profit program accepts.
	feeSchedule []settlement.ServiceFeeConfig

	// metrics, if set, counts every run by program and outcome.
	metrics *Metrics
}

type ProgramOption func(*ProgramOptions)

// WithTreeOptions sets the tree shape used by the pipeline stages.
func WithTreeOptions(options ...segmentvc.TreeOption) ProgramOption {
	return func(po *ProgramOptions) { po.treeOptions = append(po.treeOptions, options...) }
}

// WithFeeSchedule makes the profit program reject inputs whose fee configs
// commit to a different schedule.
func WithFeeSchedule(configs ...settlement.ServiceFeeConfig) ProgramOption {
	return func(po *ProgramOptions) { po.feeSchedule = append(po.feeSchedule, configs...) }
}

// WithMetrics counts program runs on m.
func WithMetrics(m *Metrics) ProgramOption {
	return func(po *ProgramOptions) { po.metrics = m }
}

// ParseProgramOptions parses the given options into a ProgramOptions struct
func ParseProgramOptions(options ...ProgramOption) ProgramOptions {
	programOptions := ProgramOptions{}

	for _, option := range options {
		option(&programOptions)
	}

	return programOptions
}

func (po ProgramOptions) pipelineOptions() []settlement.PipelineOption {
	if len(po.treeOptions) == 0 {
		return nil
	}
	return []settlement.PipelineOption{settlement.WithTreeOptions(po.treeOptions...)}
}
