package parse

import (
	"io"
	"strconv"
	"strings"

	"github.com/cdl-saarland/pmevo/config"
)

// ConfigFile reads a configuration file into cfg: a "configuration:" header
// followed by "Key: Value" lines. Keys that are not recognized are skipped,
// so config files may carry settings for other tools.
func ConfigFile(r io.Reader, cfg *config.Config) error {
	sc := newScanner(r)
	if err := sc.nextOrFail(); err != nil {
		return err
	}
	if err := sc.expectLine("configuration:"); err != nil {
		return err
	}
	for sc.next() {
		if len(sc.tokens) < 2 {
			return sc.errf("invalid config option")
		}
		key := sc.tokens[0]
		if !strings.HasSuffix(key, ":") {
			return sc.errf("missing colon in config option")
		}
		key = strings.TrimSuffix(key, ":")
		value := sc.tokens[1]
		if err := applyOption(sc, cfg, key, value); err != nil {
			return err
		}
	}
	return nil
}

func applyOption(sc *scanner, cfg *config.Config, key, value string) error {
	setInt := func(dst *int) error {
		v, err := strconv.Atoi(value)
		if err != nil {
			return sc.errf("invalid value")
		}
		*dst = v
		return nil
	}
	setFloat := func(dst *float64) error {
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return sc.errf("invalid value")
		}
		*dst = v
		return nil
	}
	setBool := func(dst *bool) error {
		switch value {
		case "True", "true", "1":
			*dst = true
		case "False", "false", "0":
			*dst = false
		default:
			return sc.errf("invalid value")
		}
		return nil
	}

	switch key {
	case "PopulationSize":
		return setInt(&cfg.PopulationSize)
	case "MaxRecombinationFactor":
		return setFloat(&cfg.MaxRecombinationFactor)
	case "MaxMutationFactor":
		return setFloat(&cfg.MaxMutationFactor)
	case "NumIterations":
		return setInt(&cfg.NumIterations)
	case "NumEpochs":
		return setInt(&cfg.NumEpochs)
	case "KeepRatio":
		return setFloat(&cfg.KeepRatio)
	case "LuckChance":
		return setFloat(&cfg.LuckChance)
	case "BadLuckProtection":
		return setFloat(&cfg.BadLuckProtection)
	case "MutAddUopChance":
		return setFloat(&cfg.MutAddUopChance)
	case "MutChangeUopChance":
		return setFloat(&cfg.MutChangeUopChance)
	case "MutChangeNumChance":
		return setFloat(&cfg.MutChangeNumChance)
	case "NumPorts":
		return setInt(&cfg.NumPorts)
	case "EnableLocalOptimization":
		return setBool(&cfg.EnableLocalOptimization)
	case "EnableRatioCombination":
		return setBool(&cfg.EnableRatioCombination)
	}
	return nil
}
