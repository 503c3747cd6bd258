package evo_test

import (
	"bytes"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cdl-saarland/pmevo/arch"
	"github.com/cdl-saarland/pmevo/config"
	"github.com/cdl-saarland/pmevo/evo"
	"github.com/cdl-saarland/pmevo/exp"
	"github.com/cdl-saarland/pmevo/mapping"
	"github.com/cdl-saarland/pmevo/rng"
)

func measured(insns []*arch.Instruction, cycles float64) *exp.Experiment {
	e := exp.New(insns)
	e.SetMeasuredCycles(cycles)
	return e
}

// onePortProblem is a search problem whose unique zero-error answer is
// x: {A: 1}.
func onePortProblem(cfg *config.Config) *mapping.EvalInfo {
	a := arch.New(1)
	x := a.Instruction("x")
	exps := []*exp.Experiment{
		measured([]*arch.Instruction{x}, 1.0),
		measured([]*arch.Instruction{x, x}, 2.0),
		measured([]*arch.Instruction{x, x, x}, 3.0),
	}
	return mapping.NewEvalInfo(a, exps, []float64{1.0}, cfg)
}

func smallConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.PopulationSize = 8
	cfg.NumIterations = 4
	cfg.NumEpochs = 2
	return cfg
}

var _ = Describe("Runner", func() {
	It("should find the exact mapping of a one-port problem", func() {
		cfg := smallConfig()
		info := onePortProblem(cfg)
		runner := evo.NewRunner(cfg, rng.NewSource(424242, 1), info)

		var out bytes.Buffer
		Expect(runner.Run(&out)).To(Succeed())

		Expect(out.String()).To(ContainSubstring("mapping:"))
		Expect(out.String()).To(ContainSubstring("    A: 1\n"))
		Expect(out.String()).To(ContainSubstring("avg_err(G0): 0 "))
	})

	It("should produce byte-identical output for identical seeds", func() {
		run := func() string {
			cfg := smallConfig()
			info := onePortProblem(cfg)
			runner := evo.NewRunner(cfg, rng.NewSource(77, 1), info,
				evo.WithTopN(3))
			var out bytes.Buffer
			Expect(runner.Run(&out)).To(Succeed())
			return out.String()
		}
		Expect(run()).To(Equal(run()))
	})

	It("should emit the winner in the Mapping3 JSON format", func() {
		cfg := smallConfig()
		info := onePortProblem(cfg)
		runner := evo.NewRunner(cfg, rng.NewSource(424242, 1), info,
			evo.WithJSONOutput())

		var out bytes.Buffer
		Expect(runner.Run(&out)).To(Succeed())

		var decoded struct {
			Kind string `json:"kind"`
			Arch struct {
				Kind  string   `json:"kind"`
				Insns []string `json:"insns"`
				Ports []string `json:"ports"`
			} `json:"arch"`
			Assignment map[string][][]string `json:"assignment"`
		}
		Expect(json.Unmarshal(out.Bytes(), &decoded)).To(Succeed())
		Expect(decoded.Kind).To(Equal("Mapping3"))
		Expect(decoded.Arch.Kind).To(Equal("Architecture"))
		Expect(decoded.Arch.Insns).To(Equal([]string{"x"}))
		Expect(decoded.Arch.Ports).To(Equal([]string{"0"}))
		Expect(decoded.Assignment).To(HaveKey("x"))
		Expect(decoded.Assignment["x"]).To(Equal([][]string{{"0"}}))
	})

	It("should write progress to the journal", func() {
		cfg := smallConfig()
		info := onePortProblem(cfg)
		var journal bytes.Buffer
		runner := evo.NewRunner(cfg, rng.NewSource(424242, 1), info,
			evo.WithJournal(&journal))

		var out bytes.Buffer
		Expect(runner.Run(&out)).To(Succeed())

		Expect(journal.String()).To(ContainSubstring("starting epoch 0"))
		Expect(journal.String()).To(ContainSubstring("generation 0"))
		Expect(journal.String()).To(ContainSubstring("best:"))
		Expect(journal.String()).To(ContainSubstring("worst:"))
		Expect(journal.String()).To(ContainSubstring("composition:"))
	})

	It("should run multi-worker without losing or duplicating arena slots", func() {
		cfg := smallConfig()
		cfg.PopulationSize = 16
		info := onePortProblem(cfg)
		runner := evo.NewRunner(cfg, rng.NewSource(424242, 4), info,
			evo.WithWorkers(4))

		var out bytes.Buffer
		Expect(runner.Run(&out)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("mapping:"))
	})

	It("should respect ratio combination sorting", func() {
		cfg := smallConfig()
		cfg.EnableRatioCombination = true
		info := onePortProblem(cfg)
		runner := evo.NewRunner(cfg, rng.NewSource(424242, 1), info)

		var out bytes.Buffer
		Expect(runner.Run(&out)).To(Succeed())
		Expect(out.String()).To(ContainSubstring("    A: 1\n"))
	})
})
