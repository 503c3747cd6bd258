// Package evo drives the evolutionary search for a port mapping: it owns the
// population arena, runs the epoch and generation loops, and emits the
// winning mappings.
package evo

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/cdl-saarland/pmevo/comm"
	"github.com/cdl-saarland/pmevo/config"
	"github.com/cdl-saarland/pmevo/fitness"
	"github.com/cdl-saarland/pmevo/mapping"
	"github.com/cdl-saarland/pmevo/population"
	"github.com/cdl-saarland/pmevo/rng"
)

// Pop is the population type the runner breeds.
type Pop = population.Population[*mapping.Mapping, *mapping.EvalInfo]

// Entry is one slot of the runner's population.
type Entry = population.Entry[*mapping.Mapping, *mapping.EvalInfo]

// Runner executes the evolutionary search.
type Runner struct {
	cfg    *config.Config
	source *rng.Source
	info   *mapping.EvalInfo
	pop    *Pop

	seeds           []*mapping.Mapping
	topN            int
	asJSON          bool
	journal         io.Writer
	errw            io.Writer
	communicator    *comm.Communicator
	workers         int
	reportDiversity bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithSeedMappings installs parsed mappings as the first parents. There must
// be at most PopulationSize of them.
func WithSeedMappings(seeds []*mapping.Mapping) Option {
	return func(r *Runner) { r.seeds = seeds }
}

// WithTopN sets how many winning mappings are emitted. Default is 1.
func WithTopN(n int) Option {
	return func(r *Runner) { r.topN = n }
}

// WithJSONOutput emits winners in the Mapping3 JSON format instead of the
// text format.
func WithJSONOutput() Option {
	return func(r *Runner) { r.asJSON = true }
}

// WithJournal writes timestamped progress information to w.
func WithJournal(w io.Writer) Option {
	return func(r *Runner) { r.journal = w }
}

// WithCommunicator pumps the given command channel once per generation and
// installs the "print best" and "print all" commands on it.
func WithCommunicator(c *comm.Communicator) Option {
	return func(r *Runner) { r.communicator = c }
}

// WithWorkers sets the number of parallel workers for evaluation,
// reproduction, and local optimization. One worker (the default) gives the
// deterministic single-threaded mode.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithDiversity adds the population diversity metric to journal reports.
// Quadratic in the population size, expensive.
func WithDiversity() Option {
	return func(r *Runner) { r.reportDiversity = true }
}

// NewRunner creates a runner over the given search parameters, random source,
// and evaluation bundle.
func NewRunner(cfg *config.Config, source *rng.Source, info *mapping.EvalInfo, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		source:  source,
		info:    info,
		topN:    1,
		errw:    os.Stderr,
		workers: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// setup creates the arena, installs the command-channel commands, copies the
// seed mappings into the parent slab, fills the remaining slots randomly, and
// evaluates every parent.
func (r *Runner) setup() error {
	r.pop = population.New[*mapping.Mapping, *mapping.EvalInfo](
		r.cfg.PopulationSize, r.cfg.MaxChildNum(),
		func() *mapping.Mapping { return mapping.New(r.info.Arch) })

	if r.communicator != nil {
		r.communicator.RegisterCommand("print best", func(w io.Writer, _ string) {
			r.writeEntry(w, r.pop.At(0))
		})
		r.communicator.RegisterCommand("print all", func(w io.Writer, _ string) {
			for i := 0; i < r.pop.Size(); i++ {
				r.writeEntry(w, r.pop.At(i))
			}
		})
	}

	if len(r.seeds) > r.cfg.PopulationSize {
		return fmt.Errorf("seed population larger than PopulationSize")
	}
	for _, seed := range r.seeds {
		entry := r.pop.InsertPop(population.OriginInitialization)
		entry.Elem = seed
	}
	for i := len(r.seeds); i < r.cfg.PopulationSize; i++ {
		entry := r.pop.InsertPop(population.OriginInitialization)
		entry.Elem.InitRandomly(r.source.Worker(0), r.info)
	}
	r.pop.Finalize()
	r.evaluatePopulation()
	return nil
}

// Run executes the whole search and writes the winning mappings to out.
func (r *Runner) Run(out io.Writer) error {
	if err := r.setup(); err != nil {
		return err
	}

	r.performEvolutionSteps()

	r.sortPopulation()
	fmt.Fprintf(r.errw, "# Winning individuals:\n")
	n := r.topN
	if n > r.pop.Size() {
		n = r.pop.Size()
	}
	for i := 0; i < n; i++ {
		if r.asJSON {
			if err := r.pop.At(i).Elem.DumpJSON(out, r.info.Arch); err != nil {
				return err
			}
		} else {
			r.writeEntry(out, r.pop.At(i))
		}
	}
	return nil
}

func (r *Runner) performEvolutionSteps() {
	for epoch := 0; epoch < r.cfg.NumEpochs; epoch++ {
		r.journalf("starting epoch %d %s\n", epoch, r.jtime())
		if epoch > 0 {
			r.restartEpoch()
		}

		r.sortPopulation()
		r.journalf("  initial population:\n")
		r.journalBestWorst("    ")

		for gen := 0; gen < r.cfg.NumIterations; gen++ {
			r.journalf("  generation %d %s:\n", gen, r.jtime())

			r.pop.Shuffle(r.source.Worker(0))
			r.reproduce()

			curGen := r.pop.Generation()
			r.sortPopulation()

			r.applyLuck()

			r.pop.Purge()

			r.sortPopulation()

			r.journalComposition(curGen)
			r.journalBestWorst("    ")

			if r.communicator != nil {
				if err := r.communicator.CheckCommands(); err != nil {
					fmt.Fprintf(r.errw, "command channel error: %v\n", err)
				}
			}

			best := &r.pop.At(0).Fitness
			worst := &r.pop.At(r.pop.Size() - 1).Fitness
			if fitness.Equal(best, worst) {
				// stagnation, restart early
				break
			}
			if best.IsOptimal() {
				// we already found a perfect candidate, no need to go on
				return
			}
		}

		if r.cfg.EnableLocalOptimization {
			r.performLocalOptimization()
		}

		r.sortPopulation()
		r.journalBestWorst("    ")
	}
}

// restartEpoch re-randomizes every parent outside the elite and re-evaluates
// the population. The elite size is ceil-ish: int(KeepRatio*popSize)+1.
func (r *Runner) restartEpoch() {
	keep := int(r.cfg.KeepRatio*float64(r.cfg.PopulationSize)) + 1
	for i := keep; i < r.cfg.PopulationSize; i++ {
		entry := r.pop.ReplacePop(i, population.OriginInitialization)
		entry.Elem.InitRandomly(r.source.Worker(0), r.info)
	}
	r.evaluatePopulation()
}

// reproduce partitions the parent slab into chunks and breeds each chunk in
// parallel. Parents are drawn from the chunk only; children go through the
// arena's atomic cursor, so workers never contend for a slot.
func (r *Runner) reproduce() {
	chunks := r.pop.Chunks(r.workers)
	p := pool.New().WithMaxGoroutines(r.workers)
	for ci, chunk := range chunks {
		ci, chunk := ci, chunk
		p.Go(func() {
			rnd := r.source.Worker(ci % r.source.Workers())
			half := len(chunk) / 2
			numRecomb := int(r.cfg.MaxRecombinationFactor * float64(half))
			numMut := int(r.cfg.MaxMutationFactor * float64(half))
			r.breedChunk(rnd, chunk, numRecomb, numMut)
		})
	}
	p.Wait()
}

func (r *Runner) breedChunk(rnd *rng.Rand, chunk []*Entry, numRecomb, numMut int) {
	if len(chunk) == 0 {
		panic("evo: empty reproduction chunk")
	}
	for i := 0; i < numMut; i++ {
		parent := chunk[rnd.Intn(len(chunk))].Elem
		child := r.pop.InsertChild(population.OriginMutation)
		mapping.Mutate(rnd, child.Elem, parent, r.info)
		child.Evaluate(r.info)
	}
	for i := 0; i < numRecomb; i++ {
		parentA := chunk[rnd.Intn(len(chunk))].Elem
		parentB := chunk[rnd.Intn(len(chunk))].Elem
		childA := r.pop.InsertChild(population.OriginRecombination)
		childB := r.pop.InsertChild(population.OriginRecombination)
		mapping.Recombine(rnd, childA.Elem, childB.Elem, parentA, parentB, r.info)
		childA.Evaluate(r.info)
		childB.Evaluate(r.info)
	}
}

// applyLuck gives every doomed child a LuckChance shot at swapping places
// with a parent outside the protected elite. The exiled parent lands in the
// child slab, which is about to be purged. This lowers selection pressure so
// locally non-optimal but eventually beneficial structures can survive.
func (r *Runner) applyLuck() {
	rnd := r.source.Worker(0)
	popEnd := r.pop.Size()
	childrenEnd := r.pop.ChildrenEnd()
	firstUnprotected := int(r.cfg.BadLuckProtection * float64(popEnd))
	for i := popEnd; i < childrenEnd; i++ {
		if rnd.Flip(r.cfg.LuckChance) {
			partner := rnd.Range(firstUnprotected, popEnd-1)
			r.pop.Swap(i, partner)
		}
	}
}

func (r *Runner) sortPopulation() {
	if r.cfg.EnableRatioCombination {
		r.pop.RatioSort()
	} else {
		r.pop.RankSort()
	}
}

func (r *Runner) evaluatePopulation() {
	r.forAllParents(func(e *Entry) {
		e.Evaluate(r.info)
	})
}

func (r *Runner) performLocalOptimization() {
	r.journalf("optimizing locally %s\n", r.jtime())
	r.forAllParents(func(e *Entry) {
		e.Elem.OptimizeLocally(&e.Fitness, r.info)
	})
}

// forAllParents applies fn to every parent entry, fanning out over the
// configured worker count. Each task owns its entries exclusively.
func (r *Runner) forAllParents(fn func(*Entry)) {
	parents := r.pop.Parents()
	if r.workers == 1 {
		for _, e := range parents {
			fn(e)
		}
		return
	}
	size := (len(parents) + r.workers - 1) / r.workers
	p := pool.New().WithMaxGoroutines(r.workers)
	for start := 0; start < len(parents); start += size {
		end := start + size
		if end > len(parents) {
			end = len(parents)
		}
		part := parents[start:end]
		p.Go(func() {
			for _, e := range part {
				fn(e)
			}
		})
	}
	p.Wait()
}

func (r *Runner) writeEntry(w io.Writer, e *Entry) {
	if err := e.Elem.DumpText(w, r.info.Arch); err != nil {
		fmt.Fprintf(r.errw, "failed to write mapping: %v\n", err)
		return
	}
	fmt.Fprintf(w, "# with fitness value %s\n", e.Fitness.String())
	fmt.Fprintf(w, "# created in generation %d from %s\n", e.BirthGeneration, e.Origin)
}

func (r *Runner) journalf(format string, args ...any) {
	if r.journal == nil {
		return
	}
	fmt.Fprintf(r.journal, format, args...)
}

func (r *Runner) jtime() string {
	return "[" + time.Now().Format("2006-01-02 15:04:05") + "]"
}

func (r *Runner) journalBestWorst(indent string) {
	if r.journal == nil {
		return
	}
	best := &r.pop.At(0).Fitness
	worst := &r.pop.At(r.pop.Size() - 1).Fitness
	fmt.Fprintf(r.journal, "%sbest:      %s\n", indent, best.String())
	fmt.Fprintf(r.journal, "%sworst:     %s\n", indent, worst.String())
	if r.reportDiversity {
		fmt.Fprintf(r.journal, "%sdiversity: %v\n", indent, r.pop.Diversity())
	}
}

// journalComposition reports which fraction of the surviving parents was
// born in the generation that just reproduced, split by origin.
func (r *Runner) journalComposition(curGen int) {
	if r.journal == nil {
		return
	}
	numNew, numRecomb, numMut := 0, 0, 0
	for _, e := range r.pop.Parents() {
		if e.BirthGeneration != curGen {
			continue
		}
		numNew++
		switch e.Origin {
		case population.OriginRecombination:
			numRecomb++
		case population.OriginMutation:
			numMut++
		}
	}
	popSize := float64(r.pop.Size())
	fmt.Fprintf(r.journal, "    composition:\n")
	fmt.Fprintf(r.journal, "      old generation:   %v%%\n", (1.0-float64(numNew)/popSize)*100)
	fmt.Fprintf(r.journal, "      newly recombined: %v%%\n", float64(numRecomb)/popSize*100)
	fmt.Fprintf(r.journal, "      newly mutated:    %v%%\n", float64(numMut)/popSize*100)
}
