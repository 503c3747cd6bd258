package arch_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cdl-saarland/pmevo/arch"
)

var _ = Describe("Architecture", func() {
	var a *arch.Architecture

	BeforeEach(func() {
		a = arch.New(4)
	})

	It("should assign dense IDs in insertion order", func() {
		x := a.Instruction("add")
		y := a.Instruction("mul")
		z := a.Instruction("div")
		Expect(x.ID()).To(Equal(0))
		Expect(y.ID()).To(Equal(1))
		Expect(z.ID()).To(Equal(2))
		Expect(a.NumInstructions()).To(Equal(3))
	})

	It("should return the identical instruction for the same name", func() {
		x := a.Instruction("add")
		y := a.Instruction("add")
		Expect(x).To(BeIdenticalTo(y))
		Expect(a.NumInstructions()).To(Equal(1))
	})

	It("should list instructions in ID order", func() {
		a.Instruction("b")
		a.Instruction("a")
		insns := a.Instructions()
		Expect(insns).To(HaveLen(2))
		Expect(insns[0].Name()).To(Equal("b"))
		Expect(insns[1].Name()).To(Equal("a"))
	})

	It("should compute the largest uop from the port count", func() {
		Expect(a.LargestUop()).To(Equal(arch.Uop(0b1111)))
		a.SetNumPorts(2)
		Expect(a.LargestUop()).To(Equal(arch.Uop(0b11)))
	})

	It("should reject port counts outside [1, 26]", func() {
		Expect(func() { a.SetNumPorts(0) }).To(Panic())
		Expect(func() { a.SetNumPorts(27) }).To(Panic())
	})
})

var _ = Describe("Uop", func() {
	It("should count its ports", func() {
		Expect(arch.Uop(0b1).PortCount()).To(Equal(1))
		Expect(arch.Uop(0b1011).PortCount()).To(Equal(3))
	})

	It("should render as port letters", func() {
		Expect(arch.Uop(0b1).String()).To(Equal("A"))
		Expect(arch.Uop(0b101).String()).To(Equal("AC"))
		Expect(arch.Uop(0b10).String()).To(Equal("B"))
	})
})
