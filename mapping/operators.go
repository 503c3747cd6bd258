package mapping

import (
	"github.com/cdl-saarland/pmevo/arch"
	"github.com/cdl-saarland/pmevo/fitness"
	"github.com/cdl-saarland/pmevo/rng"
)

// InitRandomly fills the mapping with random entries for every instruction.
// The number of distinct uops, the ports per uop, and the counts are drawn
// uniformly; the count bound is derived from the instruction's singleton
// cycles, which is not formally connected but a decent heuristic. The
// resulting mapping is normalized.
func (m *Mapping) InitRandomly(r *rng.Rand, info *EvalInfo) {
	a := info.Arch
	numPorts := a.NumPorts()

	for _, insn := range a.Instructions() {
		t := info.SingletonCycles(insn)
		numDistinctUops := r.Range(1, numPorts)
		for i := 0; i < numDistinctUops; i++ {
			numUsedPorts := r.Range(1, numPorts)
			var uop arch.Uop
			for _, p := range r.SampleIndices(numUsedPorts, numPorts) {
				uop |= 1 << p
			}
			maxInstances := int(t*float64(numUsedPorts)) + 1
			numSameUops := r.Range(1, maxInstances)
			m.AddEntry(insn, uop, uint32(numSameUops))
		}
	}
	m.Normalize()
}

// Recombine fills two empty children from two parents. Per instruction, the
// parents' entries are pooled, shuffled, and cut at a random split point;
// entries before the cut go to child A, the rest to child B. A pool with a
// single entry goes entirely to child A. Both children are normalized.
func Recombine(r *rng.Rand, childA, childB, parentA, parentB *Mapping, info *EvalInfo) {
	for _, insn := range info.Arch.Instructions() {
		pool := make([]Entry, 0,
			len(parentA.Entries(insn))+len(parentB.Entries(insn)))
		pool = append(pool, parentA.Entries(insn)...)
		pool = append(pool, parentB.Entries(insn)...)
		r.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

		if len(pool) == 0 {
			continue
		}
		if len(pool) == 1 {
			childA.AddEntry(insn, pool[0].Uop, pool[0].Num)
			continue
		}
		split := r.Range(1, len(pool)-1)
		for _, ent := range pool[:split] {
			childA.AddEntry(insn, ent.Uop, ent.Num)
		}
		for _, ent := range pool[split:] {
			childB.AddEntry(insn, ent.Uop, ent.Num)
		}
	}
	childA.Normalize()
	childB.Normalize()
}

// Mutate fills an empty child with a perturbed copy of the parent. Each
// inherited entry may have its uop swapped for one cloned from a random
// instruction (with the count scaled by the new uop's port count over the old
// one's, in integer arithmetic) or its count
// tweaked by one; afterwards, extra cloned entries are appended while a
// Bernoulli trial keeps succeeding. The child is normalized.
func Mutate(r *rng.Rand, child, parent *Mapping, info *EvalInfo) {
	a := info.Arch
	cfg := info.Config
	insns := a.Instructions()

	for _, insn := range insns {
		parentVec := parent.Entries(insn)
		var totalN uint32
		for _, ent := range parentVec {
			totalN += ent.Num
		}
		for _, ent := range parentVec {
			thisU := ent.Uop
			thisN := ent.Num
			if r.Flip(cfg.MutChangeUopChance) {
				other := insns[r.Intn(len(insns))]
				otherVec := parent.Entries(other)
				if len(otherVec) > 0 {
					picked := otherVec[r.Intn(len(otherVec))]
					thisN = thisN * uint32(picked.Uop.PortCount()) / uint32(thisU.PortCount())
					thisU = picked.Uop
				}
			} else if r.Flip(cfg.MutChangeNumChance) {
				if r.Flip(0.5) {
					thisN++
					totalN++
				} else if totalN > 1 {
					thisN--
					totalN--
				}
			}
			if thisN == 0 {
				thisN = 1
			}
			child.AddEntry(insn, thisU, thisN)
		}
		for r.Flip(cfg.MutAddUopChance) {
			other := insns[r.Intn(len(insns))]
			otherVec := parent.Entries(other)
			if len(otherVec) == 0 {
				continue
			}
			picked := otherVec[r.Intn(len(otherVec))]
			child.AddEntry(insn, picked.Uop, uint32(r.Range(1, int(picked.Num))))
		}
	}
	child.Normalize()
}

// OptimizeLocally hill-climbs the entry counts of each instruction against
// the experiments that contain it: per entry, first try shrinking the count
// as long as the per-instruction fitness does not get worse, otherwise try
// growing it as long as the fitness strictly improves. Instructions that no
// experiment exercises are left alone. An instruction whose counts did not
// change keeps its original (possibly shared) entry vector. The mapping is
// normalized and the final global fitness is written into res.
func (m *Mapping) OptimizeLocally(res *fitness.Fitness, info *EvalInfo) {
	var prevFitness, newFitness fitness.Fitness

	for _, insn := range info.Arch.Instructions() {
		if len(info.RelevantExps(insn)) == 0 {
			continue
		}
		m.evaluateInsn(&prevFitness, info, insn)

		prevVec := m.entries[insn.ID()]
		newVec := append([]Entry(nil), prevVec...)
		m.entries[insn.ID()] = newVec

		changed := false
		for idx := range newVec {
			ent := &newVec[idx]
			nBefore := ent.Num
			if ent.Num == 0 {
				continue
			}

			// see whether results get better if we reduce the uop number
			ent.Num--
			m.evaluateInsn(&newFitness, info, insn)
			if fitness.Compare(&newFitness, &prevFitness, 0) <= 0 {
				changed = true
				prevFitness = newFitness
				for ent.Num > 0 {
					ent.Num--
					m.evaluateInsn(&newFitness, info, insn)
					if fitness.Compare(&newFitness, &prevFitness, 0) > 0 {
						// we reduced too much
						ent.Num++
						break
					}
					prevFitness = newFitness
				}
				continue
			}

			ent.Num = nBefore

			// see whether results get better if we increase the uop number
			ent.Num++
			m.evaluateInsn(&newFitness, info, insn)
			if fitness.Compare(&newFitness, &prevFitness, 0) < 0 {
				changed = true
				prevFitness = newFitness
				for {
					ent.Num++
					m.evaluateInsn(&newFitness, info, insn)
					if fitness.Compare(&newFitness, &prevFitness, 0) >= 0 {
						// we increased too much
						ent.Num--
						break
					}
					prevFitness = newFitness
				}
				continue
			}

			ent.Num = nBefore
		}

		if !changed {
			// nothing changed, keep the shared original vector
			m.entries[insn.ID()] = prevVec
		}
	}

	// normalize, especially remove any n == 0 entries
	m.Normalize()

	m.Evaluate(res, info)
}
