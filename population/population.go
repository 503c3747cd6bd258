// Package population provides the fixed-capacity arena the evolutionary
// search breeds in.
//
// The arena is split into a parent slab [0, popSize) and a child slab
// [popSize, capacity). Parents are installed once during bootstrap and then
// only replaced in place; children are claimed through an atomic cursor so
// parallel workers obtain disjoint slots without further synchronization, and
// the whole child slab is discarded by Purge at the end of every generation.
//
// The arena is generic over the individual type; anything that can evaluate
// itself into a fitness and measure distance to a peer can live in it.
package population

import (
	"sort"
	"sync/atomic"

	"github.com/cdl-saarland/pmevo/fitness"
	"github.com/cdl-saarland/pmevo/rng"
)

// Origin records how an individual came to be.
type Origin int

// The possible origins of an individual.
const (
	OriginInitialization Origin = iota
	OriginRecombination
	OriginMutation
)

func (o Origin) String() string {
	switch o {
	case OriginInitialization:
		return "Initialization"
	case OriginRecombination:
		return "Recombination"
	case OriginMutation:
		return "Mutation"
	}
	return "Unknown"
}

// Genome is the capability set an individual must provide. T is the
// individual type itself, E the evaluation context shared by all workers.
type Genome[T, E any] interface {
	Evaluate(res *fitness.Fitness, info E)
	DistanceTo(other T) float64
}

// Entry is one arena slot: the individual, its fitness, and bookkeeping. The
// accumulated fields are scratch space owned by the sorts.
type Entry[T Genome[T, E], E any] struct {
	Elem            T
	Fitness         fitness.Fitness
	Evaluated       bool
	BirthGeneration int
	Origin          Origin

	accumulatedPosition int
	accumulatedValue    float64
}

// Evaluate computes the entry's fitness unless it is already known.
func (e *Entry[T, E]) Evaluate(info E) {
	if e.Evaluated {
		return
	}
	e.Elem.Evaluate(&e.Fitness, info)
	e.Evaluated = true
}

// Population is the arena. Insertion of children is safe to call from
// multiple goroutines; everything else is single-threaded.
type Population[T Genome[T, E], E any] struct {
	arena   []*Entry[T, E]
	popSize int

	firstFreePop   atomic.Int64
	firstFreeChild atomic.Int64

	finalized  bool
	generation int

	newElem func() T
}

// New creates an arena with popSize parent slots and childNum child slots.
// newElem produces a fresh empty individual for a claimed slot.
func New[T Genome[T, E], E any](popSize, childNum int, newElem func() T) *Population[T, E] {
	if popSize < 1 || childNum < 1 {
		panic("population: capacity must be positive")
	}
	p := &Population[T, E]{
		arena:   make([]*Entry[T, E], popSize+childNum),
		popSize: popSize,
		newElem: newElem,
	}
	p.firstFreeChild.Store(int64(popSize))
	return p
}

// InsertPop claims the next parent slot during bootstrap and returns its
// freshly initialized entry.
func (p *Population[T, E]) InsertPop(origin Origin) *Entry[T, E] {
	if p.finalized {
		panic("population: InsertPop after Finalize")
	}
	pos := p.firstFreePop.Add(1) - 1
	if pos >= int64(p.popSize) {
		panic("population: parent slab overflow")
	}
	e := &Entry[T, E]{
		Elem:            p.newElem(),
		BirthGeneration: p.generation,
		Origin:          origin,
	}
	p.arena[pos] = e
	return e
}

// ReplacePop discards the parent at idx and installs a fresh entry, used
// during epoch restarts.
func (p *Population[T, E]) ReplacePop(idx int, origin Origin) *Entry[T, E] {
	e := &Entry[T, E]{
		Elem:            p.newElem(),
		BirthGeneration: p.generation,
		Origin:          origin,
	}
	p.arena[idx] = e
	return e
}

// InsertChild claims the next child slot. The atomic cursor guarantees
// concurrent callers disjoint, exclusive slots.
func (p *Population[T, E]) InsertChild(origin Origin) *Entry[T, E] {
	if !p.finalized {
		panic("population: InsertChild before Finalize")
	}
	pos := p.firstFreeChild.Add(1) - 1
	if pos >= int64(len(p.arena)) {
		panic("population: child slab overflow")
	}
	e := &Entry[T, E]{
		Elem:            p.newElem(),
		BirthGeneration: p.generation,
		Origin:          origin,
	}
	p.arena[pos] = e
	return e
}

// Finalize locks the parent slab. It checks that bootstrap filled the slab
// exactly and bumps the generation counter from 0 to 1.
func (p *Population[T, E]) Finalize() {
	if int(p.firstFreePop.Load()) != p.popSize {
		panic("population: Finalize with unfilled parent slab")
	}
	if int(p.firstFreeChild.Load()) != p.popSize {
		panic("population: Finalize with children present")
	}
	if len(p.arena) <= p.popSize {
		panic("population: no child capacity")
	}
	p.generation++
	p.finalized = true
}

// Purge discards the whole child slab and advances the generation counter.
func (p *Population[T, E]) Purge() {
	if !p.finalized {
		panic("population: Purge before Finalize")
	}
	end := int(p.firstFreeChild.Load())
	for i := p.popSize; i < end; i++ {
		p.arena[i] = nil
	}
	p.firstFreeChild.Store(int64(p.popSize))
	p.generation++
}

// Size returns the parent slab size.
func (p *Population[T, E]) Size() int { return p.popSize }

// ChildrenEnd returns the index one past the last live child.
func (p *Population[T, E]) ChildrenEnd() int { return int(p.firstFreeChild.Load()) }

// Generation returns the current generation counter.
func (p *Population[T, E]) Generation() int { return p.generation }

// At returns the entry at the given arena index.
func (p *Population[T, E]) At(idx int) *Entry[T, E] {
	if idx < 0 || idx >= int(p.firstFreeChild.Load()) {
		panic("population: index out of range")
	}
	return p.arena[idx]
}

// Parents returns the parent slab.
func (p *Population[T, E]) Parents() []*Entry[T, E] {
	return p.arena[:p.popSize]
}

// Swap exchanges two slots. Slots are handles, so this is cheap.
func (p *Population[T, E]) Swap(i, j int) {
	end := int(p.firstFreeChild.Load())
	if i < 0 || i >= end || j < 0 || j >= end {
		panic("population: swap index out of range")
	}
	p.arena[i], p.arena[j] = p.arena[j], p.arena[i]
}

// Shuffle uniformly permutes the parent slab.
func (p *Population[T, E]) Shuffle(r *rng.Rand) {
	if !p.finalized {
		panic("population: Shuffle before Finalize")
	}
	parents := p.arena[:p.popSize]
	r.Shuffle(len(parents), func(i, j int) {
		parents[i], parents[j] = parents[j], parents[i]
	})
}

// Chunks partitions the parent slab into at most n contiguous chunks of
// ceil(popSize/n) entries; the last chunk may be shorter.
func (p *Population[T, E]) Chunks(n int) [][]*Entry[T, E] {
	if n < 1 {
		n = 1
	}
	size := (p.popSize + n - 1) / n
	var chunks [][]*Entry[T, E]
	for start := 0; start < p.popSize; start += size {
		end := start + size
		if end > p.popSize {
			end = p.popSize
		}
		chunks = append(chunks, p.arena[start:end])
	}
	return chunks
}

// RankSort orders parents and children together by mean rank: the combined
// range is sorted once per fitness group, each entry accumulates its
// zero-based positions, and the final order is by accumulated position.
func (p *Population[T, E]) RankSort() {
	live := p.liveRange()

	for _, e := range live {
		e.accumulatedPosition = 0
	}
	for group := 0; group <= fitness.MaxGroup(); group++ {
		g := group
		sort.SliceStable(live, func(i, j int) bool {
			return fitness.Compare(&live[i].Fitness, &live[j].Fitness, g) == -1
		})
		for idx, e := range live {
			e.accumulatedPosition += idx
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].accumulatedPosition < live[j].accumulatedPosition
	})
}

// RatioSort orders like RankSort but accumulates, per group, the group's
// summed component value linearly rescaled into [1, 1001] instead of the
// rank, putting more weight on the magnitude of fitness differences.
// Infinity fitnesses accumulate +Inf and therefore sort last.
func (p *Population[T, E]) RatioSort() {
	live := p.liveRange()

	for _, e := range live {
		e.accumulatedValue = 0
	}

	const rangeMin, rangeMax = 1.0, 1001.0

	for group := 0; group <= fitness.MaxGroup(); group++ {
		minVal, maxVal := 0.0, 0.0
		haveFinite := false
		for _, e := range live {
			if e.Fitness.Infinity {
				continue
			}
			val := e.Fitness.GroupValue(group)
			if !haveFinite {
				minVal, maxVal = val, val
				haveFinite = true
				continue
			}
			if val < minVal {
				minVal = val
			}
			if val > maxVal {
				maxVal = val
			}
		}
		for _, e := range live {
			val := e.Fitness.GroupValue(group)
			var x float64
			switch {
			case e.Fitness.Infinity:
				x = val // +Inf
			case maxVal == minVal:
				x = rangeMin
			default:
				x = ((rangeMax-rangeMin)*(val-minVal))/(maxVal-minVal) + rangeMin
			}
			e.accumulatedValue += x
		}
	}

	sort.SliceStable(live, func(i, j int) bool {
		return live[i].accumulatedValue < live[j].accumulatedValue
	})
}

func (p *Population[T, E]) liveRange() []*Entry[T, E] {
	if !p.finalized {
		panic("population: sort before Finalize")
	}
	return p.arena[:p.firstFreeChild.Load()]
}

// Diversity sums the pairwise distances between all parents, divided by the
// parent count. Quadratic, intended for journal reporting only.
func (p *Population[T, E]) Diversity() float64 {
	result := 0.0
	parents := p.Parents()
	for i, a := range parents {
		for _, b := range parents[i+1:] {
			result += a.Elem.DistanceTo(b.Elem)
		}
	}
	return result / float64(p.popSize)
}
