// Package main provides the entry point for the PMEvo port-mapping
// inference tool.
//
// Given measured throughput experiments, it evolves a mapping from
// instructions to micro-ops over execution ports whose predicted cycle
// counts reproduce the measurements. With -m it instead evaluates the
// experiments against a given mapping.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cdl-saarland/pmevo/arch"
	"github.com/cdl-saarland/pmevo/comm"
	"github.com/cdl-saarland/pmevo/config"
	"github.com/cdl-saarland/pmevo/evo"
	"github.com/cdl-saarland/pmevo/exp"
	"github.com/cdl-saarland/pmevo/mapping"
	"github.com/cdl-saarland/pmevo/parse"
	"github.com/cdl-saarland/pmevo/rng"
)

const (
	commandFilePath = "/tmp/pmevo-cmd"
	replyFilePath   = "/tmp/pmevo-reply"
)

var (
	configPath    = flag.String("c", "", "read config file")
	mappingPath   = flag.String("m", "", "use the given mapping to evaluate the experiments")
	seedPopPath   = flag.String("p", "", "read seed population of mappings from file")
	journalPath   = flag.String("x", "", "write progress information to file, special values: 'stdout', 'stderr'")
	singletonPath = flag.String("e", "", "singleton experiments for all instructions")
	readStdin     = flag.Bool("i", false, "read experiments from stdin instead of file")
	printAsJSON   = flag.Bool("j", false, "print winners as json to stdout")
	numToPrint    = flag.Int("n", 1, "print N best mappings after evolution is finished")
	timingReps    = flag.Int("t", 0, "print timing of evaluation as json to stderr, repeat experiments N times (only affects -m)")
	numPorts      = flag.Int("q", 0, "override the number of ports given by the config")
	seed          = flag.Int64("s", 424242, "seed for the random number generator")
	numWorkers    = flag.Int("w", 1, "number of parallel workers")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage:\n  pmevo [options] <EXPERIMENTS>\n\nAllowed options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr,
		"\nIf executed in journaling mode (-x), write commands to %s and find "+
			"corresponding replies in %s. Try the 'help' command for possible commands.\n",
		commandFilePath, replyFilePath)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	os.Exit(run())
}

func run() int {
	if flag.NArg() < 1 && !*readStdin {
		fmt.Fprintf(os.Stderr, "Missing experiment file.\n")
		usage()
		return 1
	}
	if flag.NArg() > 1 {
		fmt.Fprintf(os.Stderr, "Superfluous positional argument(s).\n")
		usage()
		return 1
	}
	if *numToPrint < 1 {
		fmt.Fprintf(os.Stderr, "Invalid argument for option -n: must be >0\n")
		return 1
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		if err := readFileInto(*configPath, func(r io.Reader) error {
			return parse.ConfigFile(r, cfg)
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Error while parsing config file: %v\n", err)
			return 1
		}
	}
	if *numPorts > 0 {
		cfg.NumPorts = *numPorts
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	a := arch.New(cfg.NumPorts)

	var exps []*exp.Experiment
	var err error
	if *readStdin {
		exps, err = parse.Experiments(os.Stdin, a)
	} else {
		err = readFileInto(flag.Arg(0), func(r io.Reader) error {
			exps, err = parse.Experiments(r, a)
			return err
		})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error while parsing input file: %v\n", err)
		return 1
	}

	if *mappingPath != "" {
		return evaluateOnly(a, exps)
	}
	return search(cfg, a, exps)
}

// evaluateOnly simulates all experiments against a given mapping, optionally
// repeating them for timing measurements.
func evaluateOnly(a *arch.Architecture, exps []*exp.Experiment) int {
	var mappings []*mapping.Mapping
	if err := readFileInto(*mappingPath, func(r io.Reader) error {
		var err error
		mappings, err = parse.Mappings(r, a)
		return err
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error while parsing mapping file: %v\n", err)
		return 1
	}
	m := mappings[0]

	fmt.Printf("Simulating experiments with the following mapping:\n")
	if err := m.DumpJSON(os.Stdout, a); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	reps := 1
	printTiming := *timingReps > 0
	if printTiming {
		reps = *timingReps
	}

	start := time.Now()
	for i := 0; i < reps; i++ {
		for _, e := range exps {
			fmt.Printf("Simulating:\n%s", e)
			res := m.SimulateExperiment(a, e)
			fmt.Printf("result: %v\n", res)
			if printTiming {
				diff := res - e.MeasuredCycles()
				if diff < 0 {
					diff = -diff
				}
				if diff > 0.00001 {
					fmt.Printf("Simulated result does not match measurement!\n")
					return 1
				}
			}
		}
	}
	elapsed := time.Since(start)

	if printTiming {
		totalSecs := elapsed.Seconds()
		secsPerExp := totalSecs / float64(len(exps)*reps)
		timing := struct {
			TotalSecs  float64 `json:"total_secs"`
			SecsPerExp float64 `json:"secs_per_exp"`
		}{totalSecs, secsPerExp}
		if err := json.NewEncoder(os.Stderr).Encode(timing); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
	}
	return 0
}

// search runs the evolutionary port-mapping inference.
func search(cfg *config.Config, a *arch.Architecture, exps []*exp.Experiment) int {
	if *singletonPath == "" {
		fmt.Fprintf(os.Stderr, "Error: -e parameter with path to singleton experiments missing\n")
		return 1
	}
	var singletonExps []*exp.Experiment
	if err := readFileInto(*singletonPath, func(r io.Reader) error {
		var err error
		singletonExps, err = parse.Experiments(r, a)
		return err
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error while parsing singleton experiment file: %v\n", err)
		return 1
	}

	singletonCycles := make([]float64, a.NumInstructions())
	for _, e := range singletonExps {
		if !e.IsSingleton() {
			fmt.Fprintf(os.Stderr, "erroneous singleton experiment with more than one instruction\n")
			return 1
		}
		singletonCycles[e.Instructions()[0].ID()] = e.MeasuredCycles()
	}

	info := mapping.NewEvalInfo(a, exps, singletonCycles, cfg)
	source := rng.NewSource(*seed, *numWorkers)

	opts := []evo.Option{
		evo.WithTopN(*numToPrint),
		evo.WithWorkers(*numWorkers),
	}
	if *printAsJSON {
		opts = append(opts, evo.WithJSONOutput())
	}

	if *seedPopPath != "" {
		var seeds []*mapping.Mapping
		if err := readFileInto(*seedPopPath, func(r io.Reader) error {
			var err error
			seeds, err = parse.Mappings(r, a)
			return err
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Error while parsing seed population file: %v\n", err)
			return 1
		}
		if len(seeds) > cfg.PopulationSize {
			fmt.Fprintf(os.Stderr, "Number of mappings in %q > PopulationSize\n", *seedPopPath)
			return 1
		}
		opts = append(opts, evo.WithSeedMappings(seeds))
	}

	if *journalPath != "" {
		var journal io.Writer
		switch *journalPath {
		case "stdout":
			journal = os.Stdout
		case "stderr":
			journal = os.Stderr
		default:
			f, err := os.Create(*journalPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error opening journal file: %v\n", err)
				return 1
			}
			defer f.Close()
			journal = f
		}
		opts = append(opts, evo.WithJournal(journal))

		communicator, err := comm.New(commandFilePath, replyFilePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error setting up command channel: %v\n", err)
			return 1
		}
		opts = append(opts, evo.WithCommunicator(communicator))
	}

	runner := evo.NewRunner(cfg, source, info, opts...)
	if err := runner.Run(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error during evolution: %v\n", err)
		return 1
	}
	return 0
}

func readFileInto(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return fn(f)
}
