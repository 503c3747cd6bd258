// Package main provides the entry point for PMEvo.
// PMEvo infers CPU port mappings from black-box throughput measurements
// with an evolutionary search.
//
// For the full CLI, use: go run ./cmd/pmevo
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("PMEvo - Port Mapping Inference by Evolution")
	fmt.Println("")
	fmt.Println("Usage: pmevo [options] <experiments>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -e <path>   Singleton experiments (required when searching)")
	fmt.Println("  -c <path>   Search configuration file")
	fmt.Println("  -m <path>   Evaluate the experiments against a given mapping")
	fmt.Println("  -j          Print winning mappings as JSON")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/pmevo' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/pmevo' instead.")
	}
}
