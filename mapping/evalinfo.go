package mapping

import (
	"github.com/cdl-saarland/pmevo/arch"
	"github.com/cdl-saarland/pmevo/config"
	"github.com/cdl-saarland/pmevo/exp"
)

// EvalInfo bundles everything the operators need to evaluate and construct
// mappings: the architecture, the experiments, the per-instruction singleton
// cycle counts, and the search config. It is immutable after construction and
// shared by all workers.
type EvalInfo struct {
	Arch   *arch.Architecture
	Exps   []*exp.Experiment
	Config *config.Config

	singletonCycles []float64
	relevantExps    [][]*exp.Experiment
}

// NewEvalInfo builds the bundle and precomputes, per instruction, the list of
// experiments whose sequence contains it.
func NewEvalInfo(a *arch.Architecture, exps []*exp.Experiment, singletonCycles []float64, cfg *config.Config) *EvalInfo {
	info := &EvalInfo{
		Arch:            a,
		Exps:            exps,
		Config:          cfg,
		singletonCycles: singletonCycles,
		relevantExps:    make([][]*exp.Experiment, a.NumInstructions()),
	}
	for _, e := range exps {
		seen := make(map[int]bool)
		for _, insn := range e.Instructions() {
			if seen[insn.ID()] {
				continue
			}
			seen[insn.ID()] = true
			info.relevantExps[insn.ID()] = append(info.relevantExps[insn.ID()], e)
		}
	}
	return info
}

// SingletonCycles returns the measured cycles of the instruction's singleton
// experiment.
func (info *EvalInfo) SingletonCycles(insn *arch.Instruction) float64 {
	return info.singletonCycles[insn.ID()]
}

// RelevantExps returns the experiments whose sequence contains the
// instruction. The returned slice must not be modified.
func (info *EvalInfo) RelevantExps(insn *arch.Instruction) []*exp.Experiment {
	return info.relevantExps[insn.ID()]
}
