package mapping

import (
	"sort"

	"github.com/cdl-saarland/pmevo/arch"
	"github.com/cdl-saarland/pmevo/exp"
)

// SimulateExperiment predicts the steady-state cycles-per-iteration of the
// experiment under this mapping.
//
// The prediction is the closed form of the LP that spreads every uop's count
// over its allowed ports so that the maximum per-port load is minimal: over
// all non-empty port subsets q, the bottleneck is
//
//	load(q) = (sum of counts of uops executable only within q) / popcount(q)
//
// and the result is the maximum load over all q. An experiment that
// contributes no uops at all simulates to 0.0.
func (m *Mapping) SimulateExperiment(a *arch.Architecture, e *exp.Experiment) float64 {
	uops, counts := m.aggregateUops(e)
	if len(uops) == 0 {
		return 0.0
	}

	maxVal := 0.0
	largest := a.LargestUop()
	for q := arch.Uop(1); q <= largest; q++ {
		var sum uint64
		for i, u := range uops {
			if ^q&u == 0 { // u is a subset of q
				sum += counts[i]
			}
		}
		val := float64(sum) / float64(q.PortCount())
		if val > maxVal {
			maxVal = val
		}
	}
	return maxVal
}

// aggregateUops sums the entry counts contributed by every occurrence of
// every instruction in the experiment. The result is ordered by ascending uop
// mask so downstream float summation is deterministic.
func (m *Mapping) aggregateUops(e *exp.Experiment) ([]arch.Uop, []uint64) {
	agg := make(map[arch.Uop]uint64)
	for _, insn := range e.Instructions() {
		if insn.ID() >= len(m.entries) {
			continue
		}
		for _, ent := range m.entries[insn.ID()] {
			agg[ent.Uop] += uint64(ent.Num)
		}
	}
	uops := make([]arch.Uop, 0, len(agg))
	for u := range agg {
		uops = append(uops, u)
	}
	sort.Slice(uops, func(i, j int) bool { return uops[i] < uops[j] })
	counts := make([]uint64, len(uops))
	for i, u := range uops {
		counts[i] = agg[u]
	}
	return uops, counts
}
