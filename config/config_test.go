package config_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/cdl-saarland/pmevo/config"
)

var _ = Describe("Config", func() {
	It("should validate its defaults", func() {
		Expect(config.DefaultConfig().Validate()).To(Succeed())
	})

	It("should derive the child capacity from both reproduction factors", func() {
		cfg := config.DefaultConfig()
		cfg.PopulationSize = 10
		cfg.MaxRecombinationFactor = 1.0
		cfg.MaxMutationFactor = 0.5
		Expect(cfg.MaxChildNum()).To(Equal(15))

		cfg.MaxMutationFactor = 0.55
		Expect(cfg.MaxChildNum()).To(Equal(16)) // ceil(15.5)
	})

	It("should reject out-of-range parameters", func() {
		cfg := config.DefaultConfig()
		cfg.PopulationSize = 0
		Expect(cfg.Validate()).NotTo(Succeed())

		cfg = config.DefaultConfig()
		cfg.KeepRatio = 1.5
		Expect(cfg.Validate()).NotTo(Succeed())

		cfg = config.DefaultConfig()
		cfg.NumPorts = 27
		Expect(cfg.Validate()).NotTo(Succeed())

		cfg = config.DefaultConfig()
		cfg.MaxRecombinationFactor = 0
		cfg.MaxMutationFactor = 0
		Expect(cfg.Validate()).NotTo(Succeed())
	})

	It("should clone into an independent copy", func() {
		cfg := config.DefaultConfig()
		clone := cfg.Clone()
		clone.PopulationSize = 7
		Expect(cfg.PopulationSize).To(Equal(200))
	})
})
