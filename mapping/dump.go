package mapping

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/cdl-saarland/pmevo/arch"
)

type jsonArchitecture struct {
	Kind  string   `json:"kind"`
	Insns []string `json:"insns"`
	Ports []string `json:"ports"`
}

type jsonMapping struct {
	Kind       string                `json:"kind"`
	Arch       jsonArchitecture      `json:"arch"`
	Assignment map[string][][]string `json:"assignment"`
}

// DumpJSON writes the mapping in the Mapping3 JSON format: the architecture
// header plus, per instruction, one port-index list per uop instance (counts
// are flattened into repetition).
func (m *Mapping) DumpJSON(w io.Writer, a *arch.Architecture) error {
	out := jsonMapping{
		Kind: "Mapping3",
		Arch: jsonArchitecture{
			Kind: "Architecture",
		},
		Assignment: make(map[string][][]string),
	}
	for _, insn := range a.Instructions() {
		out.Arch.Insns = append(out.Arch.Insns, insn.Name())
	}
	for p := 0; p < a.NumPorts(); p++ {
		out.Arch.Ports = append(out.Arch.Ports, strconv.Itoa(p))
	}
	for _, insn := range a.Instructions() {
		uopLists := [][]string{}
		for _, ent := range m.Entries(insn) {
			ports := []string{}
			for p := 0; p < arch.MaxPorts; p++ {
				if ent.Uop&(1<<p) != 0 {
					ports = append(ports, strconv.Itoa(p))
				}
			}
			for j := uint32(0); j < ent.Num; j++ {
				uopLists = append(uopLists, ports)
			}
		}
		out.Assignment[insn.Name()] = uopLists
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to serialize mapping: %w", err)
	}
	return nil
}

// DumpText writes the mapping in the line format the mapping parser reads
// back: a "mapping:" header, then per instruction its entries as
// "<port letters>: <count>" lines.
func (m *Mapping) DumpText(w io.Writer, a *arch.Architecture) error {
	if _, err := fmt.Fprintf(w, "mapping:\n"); err != nil {
		return err
	}
	for _, insn := range a.Instructions() {
		if _, err := fmt.Fprintf(w, "  %s:\n", insn.Name()); err != nil {
			return err
		}
		for _, ent := range m.Entries(insn) {
			if _, err := fmt.Fprintf(w, "    %s: %d\n", ent.Uop, ent.Num); err != nil {
				return err
			}
		}
	}
	return nil
}
