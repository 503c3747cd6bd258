package parse

import (
	"io"
	"strconv"
	"strings"

	"github.com/cdl-saarland/pmevo/arch"
	"github.com/cdl-saarland/pmevo/mapping"
)

// Mappings reads a mapping file: one or more "mapping:" blocks, each listing
// instructions with their "<port letters>: <count>" entries. Instructions not
// yet known to the architecture are registered.
func Mappings(r io.Reader, a *arch.Architecture) ([]*mapping.Mapping, error) {
	sc := newScanner(r)
	if err := sc.nextOrFail(); err != nil {
		return nil, err
	}
	var mappings []*mapping.Mapping
	for {
		m, err := parseMapping(sc, a)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
		if sc.empty {
			return mappings, nil
		}
	}
}

// parseMapping consumes one "mapping:" block. On return the scanner is
// either exhausted or positioned on the next "mapping:" line.
func parseMapping(sc *scanner, a *arch.Architecture) (*mapping.Mapping, error) {
	if err := sc.expectLine("mapping:"); err != nil {
		return nil, err
	}
	if err := sc.nextOrFail(); err != nil {
		return nil, err
	}
	m := mapping.New(a)
	for !sc.empty {
		if err := parseInsn(sc, a, m); err != nil {
			return nil, err
		}
		if !sc.empty && sc.isLine("mapping:") {
			break
		}
	}
	return m, nil
}

// parseInsn consumes one instruction header plus its uop lines. It leaves the
// scanner on the next single-token line (the following instruction or
// mapping header) or exhausted.
func parseInsn(sc *scanner, a *arch.Architecture, m *mapping.Mapping) error {
	if len(sc.tokens) != 1 {
		return sc.errf("invalid instruction line")
	}
	if !strings.HasSuffix(sc.tokens[0], ":") {
		return sc.errf("missing terminating colon ':' in instruction line")
	}
	insn := a.Instruction(strings.TrimSuffix(sc.tokens[0], ":"))
	m.AddInsn(insn)

	for sc.next() {
		if len(sc.tokens) == 1 {
			return nil
		}
		if len(sc.tokens) != 2 {
			return sc.errf("invalid uop line")
		}
		if !strings.HasSuffix(sc.tokens[0], ":") {
			return sc.errf("missing colon ':' in uop line")
		}
		uop, err := strToUop(sc, strings.TrimSuffix(sc.tokens[0], ":"))
		if err != nil {
			return err
		}
		if uop&^a.LargestUop() != 0 {
			return sc.errf("mapping uses uop that is not in specified architecture")
		}
		num, err := strconv.Atoi(sc.tokens[1])
		if err != nil || num < 0 {
			return sc.errf("invalid uop number")
		}
		if !m.AddEntry(insn, uop, uint32(num)) {
			return sc.errf("duplicate uop entry")
		}
	}
	return nil
}

func strToUop(sc *scanner, s string) (arch.Uop, error) {
	var res arch.Uop
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return 0, sc.errf("invalid port name in uop line")
		}
		mask := arch.Uop(1) << (c - 'A')
		if res&mask != 0 {
			return 0, sc.errf("duplicate port name in uop line")
		}
		res |= mask
	}
	if res == 0 {
		return 0, sc.errf("empty uop in uop line")
	}
	return res, nil
}
