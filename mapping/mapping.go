// Package mapping implements the decision variable of the search: the
// assignment of each instruction to a multiset of micro-ops, together with
// the throughput model that scores a candidate assignment against measured
// experiments and the operators the evolutionary search applies to it.
package mapping

import (
	"sort"

	"github.com/cdl-saarland/pmevo/arch"
	"github.com/cdl-saarland/pmevo/exp"
	"github.com/cdl-saarland/pmevo/fitness"
)

// Entry is one (uop, count) element of an instruction's multiset.
type Entry struct {
	Uop arch.Uop
	Num uint32
}

// Mapping assigns each instruction a sorted, duplicate-free vector of
// (uop, count) entries, indexed by instruction ID.
//
// Per-instruction entry vectors may be shared between mappings (the local
// hill climb keeps a parent's vector when it makes no change); shared vectors
// are never written in place, writers clone first.
type Mapping struct {
	entries [][]Entry
}

// New creates an empty mapping sized for the architecture's instructions.
func New(a *arch.Architecture) *Mapping {
	return &Mapping{entries: make([][]Entry, a.NumInstructions())}
}

func (m *Mapping) ensure(id int) {
	for len(m.entries) <= id {
		m.entries = append(m.entries, nil)
	}
}

// Entries returns the entry vector of the given instruction. The returned
// slice must not be modified.
func (m *Mapping) Entries(insn *arch.Instruction) []Entry {
	if insn.ID() >= len(m.entries) {
		return nil
	}
	return m.entries[insn.ID()]
}

// AddInsn makes the instruction known to the mapping without adding entries.
func (m *Mapping) AddInsn(insn *arch.Instruction) {
	m.ensure(insn.ID())
}

// AddEntry inserts (uop, num) into the instruction's vector, keeping it
// sorted by uop. An entry with the same uop already present rejects the
// insertion and returns false; merging counts is the job of Normalize. A zero
// count is ignored and reported as success.
func (m *Mapping) AddEntry(insn *arch.Instruction, uop arch.Uop, num uint32) bool {
	m.ensure(insn.ID())
	vec := m.entries[insn.ID()]
	pos := sort.Search(len(vec), func(i int) bool { return vec[i].Uop >= uop })
	if pos < len(vec) && vec[pos].Uop == uop {
		return false
	}
	if num == 0 {
		return true
	}
	vec = append(vec, Entry{})
	copy(vec[pos+1:], vec[pos:])
	vec[pos] = Entry{Uop: uop, Num: num}
	m.entries[insn.ID()] = vec
	return true
}

// Normalize sorts every instruction's entries by uop, merges runs of equal
// uops by summing their counts, and drops zero-count entries. Normalize is
// idempotent.
func (m *Mapping) Normalize() {
	for id, vec := range m.entries {
		sort.SliceStable(vec, func(i, j int) bool { return vec[i].Uop < vec[j].Uop })
		for i := 1; i < len(vec); i++ {
			if vec[i-1].Uop == vec[i].Uop {
				vec[i].Num += vec[i-1].Num
				vec[i-1].Num = 0
			}
		}
		out := vec[:0]
		for _, e := range vec {
			if e.Num != 0 {
				out = append(out, e)
			}
		}
		m.entries[id] = out
	}
}

// UopNumber counts the distinct uop masks used across the whole mapping.
func (m *Mapping) UopNumber() int {
	seen := make(map[arch.Uop]struct{})
	for _, vec := range m.entries {
		for _, e := range vec {
			seen[e.Uop] = struct{}{}
		}
	}
	return len(seen)
}

// UopVolume sums popcount(uop)*count over all entries.
func (m *Mapping) UopVolume() int {
	res := 0
	for _, vec := range m.entries {
		for _, e := range vec {
			res += e.Uop.PortCount() * int(e.Num)
		}
	}
	return res
}

// AvgNumOfDifferentUops returns the mean entries-per-instruction.
func (m *Mapping) AvgNumOfDifferentUops() float64 {
	if len(m.entries) == 0 {
		return 0
	}
	total := 0
	for _, vec := range m.entries {
		total += len(vec)
	}
	return float64(total) / float64(len(m.entries))
}

// Distance is a metric on normalized mappings. Per instruction it accumulates
// the count mass on which the two mappings disagree, relative to the total
// mass both carry; instructions where neither carries mass are skipped. The
// per-instruction ratios are summed.
func Distance(a, b *Mapping) float64 {
	n := len(a.entries)
	if len(b.entries) > n {
		n = len(b.entries)
	}
	result := 0.0
	for id := 0; id < n; id++ {
		var va, vb []Entry
		if id < len(a.entries) {
			va = a.entries[id]
		}
		if id < len(b.entries) {
			vb = b.entries[id]
		}

		accum := 0.0
		total := 0
		i, j := 0, 0
		for i < len(va) && j < len(vb) {
			switch {
			case va[i].Uop < vb[j].Uop:
				accum += float64(va[i].Num)
				total += int(va[i].Num)
				i++
			case vb[j].Uop < va[i].Uop:
				accum += float64(vb[j].Num)
				total += int(vb[j].Num)
				j++
			default:
				d := int(va[i].Num) - int(vb[j].Num)
				if d < 0 {
					d = -d
				}
				accum += float64(d)
				total += int(va[i].Num) + int(vb[j].Num)
				i++
				j++
			}
		}
		for ; i < len(va); i++ {
			accum += float64(va[i].Num)
			total += int(va[i].Num)
		}
		for ; j < len(vb); j++ {
			accum += float64(vb[j].Num)
			total += int(vb[j].Num)
		}
		if total == 0 {
			continue
		}
		result += accum / float64(total)
	}
	return result
}

// DistanceTo returns Distance(m, other).
func (m *Mapping) DistanceTo(other *Mapping) float64 {
	return Distance(m, other)
}

// evaluateExps scores the mapping against a set of experiments. A simulated
// result of exactly 0.0 is infeasible and yields an infinity fitness.
func (m *Mapping) evaluateExps(res *fitness.Fitness, a *arch.Architecture, exps []*exp.Experiment) {
	maxDiff := 0.0
	sumDiff := 0.0
	singletonSumDiff := 0.0
	numSingletons := 0

	for _, e := range exps {
		simulated := m.SimulateExperiment(a, e)
		if simulated == 0.0 {
			*res = fitness.Fitness{}
			res.SetInfinity()
			return
		}
		relDiff := (e.MeasuredCycles() - simulated) / e.MeasuredCycles()
		if relDiff < 0 {
			relDiff = -relDiff
		}
		if relDiff < 0.1 {
			relDiff = 0.0
		}
		if relDiff > maxDiff {
			maxDiff = relDiff
		}
		sumDiff += relDiff
		if e.IsSingleton() {
			singletonSumDiff += relDiff
			numSingletons++
		}
	}

	avgDiff := 0.0
	if len(exps) > 0 {
		avgDiff = sumDiff / float64(len(exps))
	}
	singletonAvgDiff := 0.0
	if numSingletons > 0 {
		singletonAvgDiff = singletonSumDiff / float64(numSingletons)
	}

	*res = fitness.Fitness{
		AvgErr:          avgDiff,
		SingletonAvgErr: singletonAvgDiff,
		MaxErr:          maxDiff,
		UopNumber:       float64(m.UopNumber()),
		UopVolume:       float64(m.UopVolume()),
		AvgNumDiffUops:  m.AvgNumOfDifferentUops(),
	}
}

// Evaluate computes the mapping's fitness against all experiments of the
// eval info.
func (m *Mapping) Evaluate(res *fitness.Fitness, info *EvalInfo) {
	m.evaluateExps(res, info.Arch, info.Exps)
}

// evaluateInsn scores the mapping against only the experiments containing the
// given instruction.
func (m *Mapping) evaluateInsn(res *fitness.Fitness, info *EvalInfo, insn *arch.Instruction) {
	m.evaluateExps(res, info.Arch, info.RelevantExps(insn))
}
