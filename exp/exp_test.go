package exp_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cdl-saarland/pmevo/arch"
	"github.com/cdl-saarland/pmevo/exp"
)

var _ = Describe("Experiment", func() {
	var (
		a *arch.Architecture
		x *arch.Instruction
		y *arch.Instruction
	)

	BeforeEach(func() {
		a = arch.New(2)
		x = a.Instruction("x")
		y = a.Instruction("y")
	})

	It("should hold its sequence and measurement", func() {
		e := exp.New([]*arch.Instruction{x, y, x})
		Expect(e.Evaluated()).To(BeFalse())
		e.SetMeasuredCycles(2.5)
		Expect(e.Evaluated()).To(BeTrue())
		Expect(e.MeasuredCycles()).To(Equal(2.5))
		Expect(e.Instructions()).To(HaveLen(3))
	})

	It("should panic when the measurement is read before it is set", func() {
		e := exp.New([]*arch.Instruction{x})
		Expect(func() { e.MeasuredCycles() }).To(Panic())
	})

	It("should recognize singleton experiments", func() {
		Expect(exp.New([]*arch.Instruction{x}).IsSingleton()).To(BeTrue())
		Expect(exp.New([]*arch.Instruction{x, y}).IsSingleton()).To(BeFalse())
	})

	It("should render in the input file format", func() {
		e := exp.New([]*arch.Instruction{x, y})
		e.SetMeasuredCycles(1.5)
		Expect(e.String()).To(Equal("experiment:\n  instructions:\n    x\n    y\n  cycles: 1.5\n"))
	})
})
