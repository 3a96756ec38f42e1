// ./cmd/diagnose/main.go
//
// One-shot diagnosis of a recorded sensor window.
//
// Run:
//
//	go run ./cmd/diagnose -window window.json -fault trend
//	go run ./cmd/diagnose -window window.json          (prompts for a selection code)
//	cat window.json | go run ./cmd/diagnose -window - -fault 4 -json
//
// The window file uses the same JSON layout as the MQTT window topic
// (battery_voltage, temperature, acceleration, gyroscope, ...).
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/relabs-tech/node_diagnosis/internal/accelrange"
	"github.com/relabs-tech/node_diagnosis/internal/config"
	"github.com/relabs-tech/node_diagnosis/internal/diagnosis"
	"github.com/relabs-tech/node_diagnosis/internal/window"
)

const menu = `Select a diagnosis:
  0  Normal
  1  Missing data
  2  Minor (resolution)
  3  Outlier
  4  Square (saturation)
  5  Trend
  6  Drift
Choice: `

type options struct {
	configPath string
	windowPath string
	fault      string
	rangeCode  string
	jsonOut    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "KEY=VALUE config file (defaults when empty)")
	flag.StringVar(&opts.windowPath, "window", "", "window JSON file, - for stdin")
	flag.StringVar(&opts.fault, "fault", "", "fault name or selection code 0..6; prompts when empty")
	flag.StringVar(&opts.rangeCode, "range", "", "active accelerometer range (2g, 4g, 8g, 16g), overrides ACCEL_RANGE")
	flag.BoolVar(&opts.jsonOut, "json", false, "print the verdict and repaired window as JSON")
	flag.Parse()

	if err := run(opts, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("diagnose: %v", err)
	}
}

type result struct {
	Verdict     diagnosis.Verdict `json:"verdict"`
	RangeBefore string            `json:"range_before"`
	RangeAfter  string            `json:"range_after"`
	Window      *window.Window    `json:"window"`
}

func run(opts options, stdin io.Reader, stdout io.Writer) error {
	if opts.windowPath == "" {
		return errors.New("-window is required")
	}

	if err := config.InitGlobal(opts.configPath); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.Get()

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	code := cfg.AccelRange
	if opts.rangeCode != "" {
		if code, err = accelrange.ParseCode(opts.rangeCode); err != nil {
			return err
		}
	}

	// stdin is shared between the window and the prompt, so read the window first.
	w, rest, err := readWindow(opts.windowPath, stdin)
	if err != nil {
		return err
	}

	input := bufio.NewReader(rest)
	engine := diagnosis.NewEngine(cfg.Params(), accelrange.NewController(accelrange.NewState(code), logger), logger)

	var v diagnosis.Verdict
	if opts.fault == "" {
		fmt.Fprint(stdout, menu)
		line, rerr := input.ReadString('\n')
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return fmt.Errorf("read choice: %w", rerr)
		}
		choice, cerr := strconv.Atoi(strings.TrimSpace(line))
		if cerr != nil {
			choice = -1 // anything unparsable is an invalid choice
		}
		v, err = engine.Dispatch(w, choice)
	} else {
		f, ferr := diagnosis.ParseFault(opts.fault)
		if ferr != nil {
			return ferr
		}
		v, err = engine.Diagnose(w, f)
	}
	if err != nil {
		return err
	}

	after := engine.Range()
	logger.Debug("diagnosis complete", zap.Stringer("range", after))

	if opts.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result{Verdict: v, RangeBefore: code.String(), RangeAfter: after.String(), Window: w})
	}

	fmt.Fprintln(stdout, v.String())
	if after != code {
		fmt.Fprintf(stdout, "accelerometer range: %s -> %s\n", code, after)
	}
	return nil
}

// readWindow decodes the window at path and returns what is left of stdin
// for the selection prompt.
func readWindow(path string, stdin io.Reader) (*window.Window, io.Reader, error) {
	var w window.Window
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("open window: %w", err)
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&w); err != nil {
			return nil, nil, fmt.Errorf("decode window: %w", err)
		}
		return &w, stdin, nil
	}

	dec := json.NewDecoder(stdin)
	if err := dec.Decode(&w); err != nil {
		return nil, nil, fmt.Errorf("decode window: %w", err)
	}
	return &w, io.MultiReader(dec.Buffered(), stdin), nil
}
