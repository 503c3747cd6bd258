package fitness_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cdl-saarland/pmevo/fitness"
)

var _ = Describe("Compare", func() {
	It("should report a fitness equal to itself in every group", func() {
		f := &fitness.Fitness{AvgErr: 0.3, SingletonAvgErr: 0.1, MaxErr: 0.9}
		for g := 0; g <= fitness.MaxGroup(); g++ {
			Expect(fitness.Compare(f, f, g)).To(Equal(0))
		}
	})

	It("should prefer the smaller error", func() {
		better := &fitness.Fitness{AvgErr: 0.1}
		worse := &fitness.Fitness{AvgErr: 0.5}
		Expect(fitness.Compare(better, worse, 0)).To(Equal(-1))
		Expect(fitness.Compare(worse, better, 0)).To(Equal(1))
	})

	It("should fall through to later components of the group on a tie", func() {
		a := &fitness.Fitness{AvgErr: 0.2, MaxErr: 0.4}
		b := &fitness.Fitness{AvgErr: 0.2, MaxErr: 0.8}
		Expect(fitness.Compare(a, b, 0)).To(Equal(-1))
	})

	It("should treat differences within the tolerance as equal", func() {
		a := &fitness.Fitness{AvgErr: 0.2}
		b := &fitness.Fitness{AvgErr: 0.2 + 1e-8}
		Expect(fitness.Compare(a, b, 0)).To(Equal(0))
	})

	It("should rank infinity worse than any finite fitness", func() {
		inf := (&fitness.Fitness{}).SetInfinity()
		awful := &fitness.Fitness{AvgErr: 1e9, MaxErr: 1e9}
		for g := 0; g <= fitness.MaxGroup(); g++ {
			Expect(fitness.Compare(inf, awful, g)).To(Equal(1))
			Expect(fitness.Compare(awful, inf, g)).To(Equal(-1))
		}
	})

	It("should treat two infinities as equal", func() {
		a := (&fitness.Fitness{}).SetInfinity()
		b := (&fitness.Fitness{}).SetInfinity()
		Expect(fitness.Compare(a, b, 0)).To(Equal(0))
		Expect(fitness.Equal(a, b)).To(BeTrue())
	})

	It("should never compare disabled components", func() {
		a := &fitness.Fitness{UopNumber: 1, UopVolume: 1, AvgNumDiffUops: 1}
		b := &fitness.Fitness{UopNumber: 9, UopVolume: 9, AvgNumDiffUops: 9}
		Expect(fitness.Equal(a, b)).To(BeTrue())
	})
})

var _ = Describe("GroupValue", func() {
	It("should sum the components of the group", func() {
		f := &fitness.Fitness{AvgErr: 0.1, SingletonAvgErr: 0.2, MaxErr: 0.3}
		Expect(f.GroupValue(0)).To(BeNumerically("~", 0.6, 1e-12))
	})

	It("should be +Inf for an infinity fitness", func() {
		f := (&fitness.Fitness{}).SetInfinity()
		Expect(math.IsInf(f.GroupValue(0), 1)).To(BeTrue())
	})
})

var _ = Describe("String", func() {
	It("should render every component with its group tag", func() {
		f := &fitness.Fitness{AvgErr: 0.25}
		s := f.String()
		Expect(s).To(ContainSubstring("avg_err(G0): 0.25"))
		Expect(s).To(ContainSubstring("uop_number(D)"))
	})

	It("should render an infinity fitness as infinity", func() {
		f := (&fitness.Fitness{}).SetInfinity()
		Expect(f.String()).To(Equal("infinity"))
	})
})

var _ = Describe("IsOptimal", func() {
	It("should stay pessimistic", func() {
		f := &fitness.Fitness{}
		Expect(f.IsOptimal()).To(BeFalse())
	})
})
