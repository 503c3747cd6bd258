// Package exp represents throughput experiments: an instruction sequence
// together with the cycles-per-iteration measured for it on real hardware.
package exp

import (
	"fmt"
	"strings"

	"github.com/cdl-saarland/pmevo/arch"
)

// Experiment is one measured instruction sequence. Experiments do not mutate
// after parsing.
type Experiment struct {
	insns     []*arch.Instruction
	cycles    float64
	evaluated bool
}

// New creates an experiment over the given instruction sequence. The measured
// cycle count is attached later with SetMeasuredCycles.
func New(insns []*arch.Instruction) *Experiment {
	return &Experiment{insns: insns}
}

// Instructions returns the instruction sequence. The returned slice must not
// be modified.
func (e *Experiment) Instructions() []*arch.Instruction { return e.insns }

// MeasuredCycles returns the measured cycles-per-iteration. Panics if no
// measurement has been attached.
func (e *Experiment) MeasuredCycles() float64 {
	if !e.evaluated {
		panic("exp: experiment has no measurement")
	}
	return e.cycles
}

// SetMeasuredCycles attaches the measured cycle count.
func (e *Experiment) SetMeasuredCycles(cycles float64) {
	e.evaluated = true
	e.cycles = cycles
}

// Evaluated reports whether a measurement has been attached.
func (e *Experiment) Evaluated() bool { return e.evaluated }

// IsSingleton reports whether the instruction sequence has length 1.
func (e *Experiment) IsSingleton() bool { return len(e.insns) == 1 }

// String renders the experiment in the input file format.
func (e *Experiment) String() string {
	var sb strings.Builder
	sb.WriteString("experiment:\n")
	sb.WriteString("  instructions:\n")
	for _, insn := range e.insns {
		fmt.Fprintf(&sb, "    %s\n", insn.Name())
	}
	if e.evaluated {
		fmt.Fprintf(&sb, "  cycles: %v\n", e.cycles)
	} else {
		sb.WriteString("  cycles: none\n")
	}
	return sb.String()
}
