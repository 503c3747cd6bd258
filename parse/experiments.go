package parse

import (
	"io"
	"strconv"
	"strings"

	"github.com/cdl-saarland/pmevo/arch"
	"github.com/cdl-saarland/pmevo/exp"
)

// Experiments reads an experiment file: an architecture header declaring the
// instruction names and the port count, followed by any number of
// experiments. The architecture's instruction registry and port count are
// populated as a side effect.
func Experiments(r io.Reader, a *arch.Architecture) ([]*exp.Experiment, error) {
	sc := newScanner(r)
	if err := sc.nextOrFail(); err != nil {
		return nil, err
	}
	if err := parseArchitecture(sc, a); err != nil {
		return nil, err
	}
	var exps []*exp.Experiment
	for sc.next() {
		e, err := parseExperiment(sc, a)
		if err != nil {
			return nil, err
		}
		exps = append(exps, e)
	}
	return exps, nil
}

func parseArchitecture(sc *scanner, a *arch.Architecture) error {
	if err := sc.expectLine("architecture:"); err != nil {
		return err
	}
	if err := sc.nextOrFail(); err != nil {
		return err
	}
	if err := sc.expectLine("instructions:"); err != nil {
		return err
	}
	if err := sc.nextOrFail(); err != nil {
		return err
	}
	for sc.tokens[0] != "ports:" {
		if strings.HasSuffix(sc.tokens[0], ":") {
			return sc.errf("invalid instruction line")
		}
		a.Instruction(sc.tokens[0])
		if err := sc.nextOrFail(); err != nil {
			return err
		}
	}
	if len(sc.tokens) != 2 {
		return sc.errf("invalid 'ports' line")
	}
	ports, err := strconv.Atoi(sc.tokens[1])
	if err != nil {
		return sc.errf("invalid port number")
	}
	if ports < 1 || ports > arch.MaxPorts {
		return sc.errf("port number must be in [1, %d]", arch.MaxPorts)
	}
	a.SetNumPorts(ports)
	return nil
}

// parseExperiment consumes one experiment block, ending on its "cycles:"
// line. The scanner is already positioned on the "experiment:" line.
func parseExperiment(sc *scanner, a *arch.Architecture) (*exp.Experiment, error) {
	if err := sc.expectLine("experiment:"); err != nil {
		return nil, err
	}
	if err := sc.nextOrFail(); err != nil {
		return nil, err
	}
	if err := sc.expectLine("instructions:"); err != nil {
		return nil, err
	}
	if err := sc.nextOrFail(); err != nil {
		return nil, err
	}
	var insns []*arch.Instruction
	for sc.tokens[0] != "cycles:" {
		if strings.HasSuffix(sc.tokens[0], ":") {
			return nil, sc.errf("invalid instruction line")
		}
		insns = append(insns, a.Instruction(sc.tokens[0]))
		if err := sc.nextOrFail(); err != nil {
			return nil, err
		}
	}
	if len(sc.tokens) != 2 {
		return nil, sc.errf("invalid 'cycles' line")
	}
	cycles, err := strconv.ParseFloat(sc.tokens[1], 64)
	if err != nil {
		return nil, sc.errf("invalid cycle number")
	}
	e := exp.New(insns)
	e.SetMeasuredCycles(cycles)
	return e, nil
}
