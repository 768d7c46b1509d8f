package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/wiggleman/vliwsched/internal/config"
	"github.com/wiggleman/vliwsched/internal/emit"
	"github.com/wiggleman/vliwsched/internal/isa"
	"github.com/wiggleman/vliwsched/internal/sched"
	"github.com/wiggleman/vliwsched/internal/schedule"
)

// job is one (input, simple-out, pipelined-out) triple taken from the
// positional arguments.
type job struct {
	inputPath, simpleOut, pipelinedOut string
}

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "Path to a YAML tunables file (default: built-in defaults)")
	format := flag.String("format", "", "Output format, json or csv (default: config's outputFormat)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	logger := log.New(os.Stdout, "", log.LstdFlags)
	if *verbose {
		logger.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	}

	args := flag.Args()
	if len(args) == 0 || len(args)%3 != 0 {
		fmt.Fprintln(os.Stderr, "usage: vliwsched [-config path] [-format json|csv] [-v] <input> <simple-out> <pipelined-out> [<input> <simple-out> <pipelined-out> ...]")
		return 1
	}

	var cfg *config.Config
	if *configPath != "" {
		c, err := config.LoadConfig(*configPath)
		if err != nil {
			logger.Printf("failed to load configuration: %v", err)
			return 1
		}
		cfg = c
	} else {
		cfg = config.DefaultConfig()
	}
	if *format != "" {
		cfg.OutputFormat = *format
	}

	var jobs []job
	for i := 0; i < len(args); i += 3 {
		jobs = append(jobs, job{inputPath: args[i], simpleOut: args[i+1], pipelinedOut: args[i+2]})
	}

	// One goroutine per input program, each owning its own Simple/Pipeline
	// scheduler instance and fresh-register counters — no state is shared
	// across programs.
	var wg sync.WaitGroup
	var worstExit atomic.Int32
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			code := runOne(j, cfg, logger)
			if code != 0 {
				for {
					prev := worstExit.Load()
					if int32(code) <= prev {
						break
					}
					if worstExit.CompareAndSwap(prev, int32(code)) {
						break
					}
				}
			}
		}(j)
	}
	wg.Wait()

	return int(worstExit.Load())
}

func runOne(j job, cfg *config.Config, logger *log.Logger) int {
	data, err := os.ReadFile(j.inputPath)
	if err != nil {
		logger.Printf("%s: failed to read input: %v", j.inputPath, err)
		return 1
	}
	lines := splitNonEmpty(string(data))

	insts, err := isa.Decode(lines)
	if err != nil {
		logger.Printf("%s: %v", j.inputPath, err)
		return 1
	}

	simple, err := schedule.NewSimple(insts, logger)
	if err != nil {
		logger.Printf("%s: %v", j.inputPath, err)
		var malformed *sched.MalformedProgramError
		if errors.As(err, &malformed) {
			return 1
		}
		return 2
	}
	simple.Axis.SortAll()
	if err := writeSchedule(j.simpleOut, emit.ToStrings(simple.Axis.All()), cfg.OutputFormat); err != nil {
		logger.Printf("%s: %v", j.inputPath, err)
		return 1
	}

	pipe, err := schedule.NewPipeline(insts, logger, cfg.MaxII)
	if err != nil {
		logger.Printf("%s: %v", j.inputPath, err)
		return 2
	}
	rows := emit.ToStringsPipelined(pipe.Bundles(), pipe.DT, pipe.LoopImmediate())
	if err := writeSchedule(j.pipelinedOut, rows, cfg.OutputFormat); err != nil {
		logger.Printf("%s: %v", j.inputPath, err)
		return 1
	}

	return 0
}

func writeSchedule(path string, rows [][5]string, format string) error {
	switch format {
	case "csv":
		return emit.WriteCSV(path, rows)
	default:
		return emit.WriteJSON(path, rows)
	}
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
