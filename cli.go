package main

import (
	"FeatureBench/config"
	"FeatureBench/pipeline"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

var errIncomplete = errors.New("incomplete arguments given")

type cliArgs struct {
	batch      bool
	serve      bool
	configPath string
	configSet  bool

	detector   string
	descriptor string
	matcher    string
	selector   string

	visualize bool
	focus     bool
	limit     bool
}

func usage(w io.Writer, prog string) {
	fmt.Fprintln(w, "usage:")
	fmt.Fprintf(w, "%s -d <DETECTOR_TYPE> -m <MATCHER_TYPE> -x <DESCRIPTOR_TYPE> -s <SELECTOR_TYPE> \\\n", prog)
	fmt.Fprintln(w, "    [-v] [-f] [-l] [-config <file>]")
	fmt.Fprintf(w, "%s -b [-f] [-l] [-config <file>]\n", prog)
	fmt.Fprintf(w, "%s -serve [-config <file>]\n", prog)
	fmt.Fprintln(w, "-b: run every compatible combination of the sweep and write the csv report")
	fmt.Fprintln(w, "-v: visualize results")
	fmt.Fprintln(w, "-f: focusOnVehicle")
	fmt.Fprintln(w, "-l: limitKpts")
	fmt.Fprintln(w, "-serve: accept runs over HTTP and gRPC")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "DETECTOR_TYPE:  ", strings.Join(pipeline.AllDetectors, ", "))
	fmt.Fprintln(w, "MATCHER_TYPE:   ", strings.Join(pipeline.AllMatchers, ", "))
	fmt.Fprintln(w, "DESCRIPTOR_TYPE:", strings.Join(pipeline.AllDescriptors, ", "))
	fmt.Fprintln(w, "SELECTOR_TYPE:  ", strings.Join(pipeline.AllSelectors, ", "))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Example:")
	fmt.Fprintf(w, "  %s -d SHITOMASI -m MAT_BF -x BRISK -s SEL_NN\n", prog)
}

func parseArgs(prog string, args []string, out io.Writer) (cliArgs, error) {
	var a cliArgs
	fs := flag.NewFlagSet(prog, flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { usage(out, prog) }
	fs.BoolVar(&a.batch, "b", false, "batch mode")
	fs.BoolVar(&a.serve, "serve", false, "server mode")
	fs.StringVar(&a.configPath, "config", "config.yaml", "configuration file")
	fs.StringVar(&a.detector, "d", "", "detector type")
	fs.StringVar(&a.descriptor, "x", "", "descriptor type")
	fs.StringVar(&a.matcher, "m", "", "matcher type")
	fs.StringVar(&a.selector, "s", "", "selector type")
	fs.BoolVar(&a.visualize, "v", false, "visualize results")
	fs.BoolVar(&a.focus, "f", false, "focus on vehicle")
	fs.BoolVar(&a.limit, "l", false, "limit keypoints")
	if err := fs.Parse(args); err != nil {
		return a, err
	}
	if fs.NArg() > 0 {
		return a, fmt.Errorf("unexpected argument found: %s", fs.Arg(0))
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			a.configSet = true
		}
	})
	return a, nil
}

// apply lays the command line over the loaded configuration. A single run
// without an explicit config file needs all four types on the command line.
func (a cliArgs) apply(cfg *config.Config) error {
	if a.focus {
		cfg.Run.FocusOnVehicle = true
	}
	if a.limit {
		cfg.Run.LimitKeypoints = true
	}
	if a.visualize {
		cfg.Run.Visualize = true
	}
	if a.serve {
		cfg.Server.Enabled = true
	}
	if a.batch || cfg.Server.Enabled {
		return nil
	}
	if !a.configSet && (a.detector == "" || a.descriptor == "" || a.matcher == "" || a.selector == "") {
		return errIncomplete
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Run.Detector, a.detector)
	set(&cfg.Run.Descriptor, a.descriptor)
	set(&cfg.Run.Matcher, a.matcher)
	set(&cfg.Run.Selector, a.selector)
	if cfg.Run.Detector == "" || cfg.Run.Descriptor == "" || cfg.Run.Matcher == "" || cfg.Run.Selector == "" {
		return errIncomplete
	}
	return nil
}
