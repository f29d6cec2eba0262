package main

import (
	"FeatureBench/api"
	"FeatureBench/config"
	"FeatureBench/engine"
	backend "FeatureBench/gRPC"
	iface "FeatureBench/interface"
	"FeatureBench/logger"
	"FeatureBench/monitor"
	"FeatureBench/pipeline"
	"FeatureBench/report"
	"FeatureBench/service"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	prog := filepath.Base(os.Args[0])
	cli, err := parseArgs(prog, args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	cfg, err := loadConfig(cli)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if err := cli.apply(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		usage(os.Stderr, prog)
		return 2
	}
	if err := logger.Init(cfg.Log.Mode, cfg.Log.Level); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to init logger:", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case cfg.Server.Enabled:
		err = serve(ctx, cfg)
	case cli.batch:
		err = batch(ctx, cfg)
	default:
		err = single(ctx, cfg)
	}
	if err != nil {
		logger.Log().Error("FeatureBench failed", zap.Error(err))
		return 1
	}
	return 0
}

// loadConfig reads the config file. The default path may be absent, an
// explicit -config may not.
func loadConfig(cli cliArgs) (*config.Config, error) {
	if _, err := os.Stat(cli.configPath); err != nil && !cli.configSet {
		return config.Default(), nil
	}
	return config.Load(cli.configPath)
}

func frameSource(cfg *config.Config) (iface.FrameSource, error) {
	f := cfg.Frames
	if f.List != "" {
		seq, err := engine.NewListSequence(f.List)
		if err != nil {
			return nil, err
		}
		return seq, nil
	}
	return engine.FileSequence{Dir: f.Dir, Prefix: f.Prefix, Ext: f.Ext, Fill: f.Fill, First: f.First, Last: f.Last}, nil
}

type outputs struct {
	sinks report.Sinks
	store *report.Store
}

func (o outputs) Close() {
	if o.store != nil {
		o.store.Close()
	}
}

// openOutputs builds the report sinks enabled in the config.
func openOutputs(ctx context.Context, cfg *config.Config, withCSV bool) (outputs, error) {
	out := report.Sinks{report.Console{W: os.Stdout}}
	if withCSV && cfg.Report.CSV != "" {
		out = append(out, report.CSVFile{Path: cfg.Report.CSV})
	}
	if cfg.Report.Msgpack != "" {
		out = append(out, report.MsgpackFile{Path: cfg.Report.Msgpack})
	}
	if cfg.Report.PublishURL != "" {
		out = append(out, report.NewPublisher(cfg.Report.PublishURL))
	}
	if cfg.Report.Postgres != "" {
		store, err := report.NewStore(ctx, cfg.Report.Postgres)
		if err != nil {
			return outputs{}, err
		}
		if err := store.InitSchema(ctx); err != nil {
			store.Close()
			return outputs{}, err
		}
		return outputs{sinks: append(out, store), store: store}, nil
	}
	return outputs{sinks: out}, nil
}

func newRunner(cfg *config.Config, observer pipeline.Observer) (*pipeline.Runner, func(), error) {
	source, err := frameSource(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts := []pipeline.RunnerOption{pipeline.WithLogger(logger.Log())}
	if observer != nil {
		opts = append(opts, pipeline.WithObserver(observer))
	}
	cleanup := func() {}
	if cfg.Run.Visualize {
		win := engine.NewWindow()
		opts = append(opts, pipeline.WithVisualizer(win))
		cleanup = func() { _ = win.Close() }
	}
	return pipeline.NewRunner(engine.NewBackend(), source, cfg.Options(), opts...), cleanup, nil
}

func single(ctx context.Context, cfg *config.Config) error {
	combo := cfg.Combination()
	logger.Log().Info("Single run", zap.Stringer("combination", combo),
		zap.Bool("focusOnVehicle", cfg.Run.FocusOnVehicle), zap.Bool("limitKeypoints", cfg.Run.LimitKeypoints))
	runner, closeRunner, err := newRunner(cfg, nil)
	if err != nil {
		return err
	}
	defer closeRunner()
	out, err := openOutputs(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer out.Close()

	summary, err := runner.Run(combo)
	if err != nil {
		return err
	}
	return out.sinks.Write(ctx, report.NewDocument([]pipeline.RunSummary{summary}))
}

func batch(ctx context.Context, cfg *config.Config) error {
	combos := cfg.Sweep.Combinations()
	logger.Log().Info("Batch run", zap.Int("combinations", len(combos)),
		zap.Bool("focusOnVehicle", cfg.Run.FocusOnVehicle), zap.Bool("limitKeypoints", cfg.Run.LimitKeypoints))
	// every combination would block on the window
	cfg.Run.Visualize = false
	runner, closeRunner, err := newRunner(cfg, nil)
	if err != nil {
		return err
	}
	defer closeRunner()
	out, err := openOutputs(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer out.Close()

	summaries, sweepErr := pipeline.NewSweeper(runner).Sweep(cfg.Sweep)
	if len(summaries) > 0 {
		if err := out.sinks.Write(ctx, report.NewDocument(summaries)); err != nil {
			return errors.Join(sweepErr, err)
		}
		if cfg.Report.CSV != "" {
			fmt.Println("Summary written to:", cfg.Report.CSV)
		}
	}
	return sweepErr
}

func serve(ctx context.Context, cfg *config.Config) error {
	srv := cfg.Server
	fmt.Println(strings.Repeat("#", 64))
	fmt.Println(" HTTP    Port:", srv.HTTPPort)
	fmt.Println(" gRPC    Port:", srv.RPCPort)
	fmt.Println(" Metrics Port:", srv.MetricsPort)
	fmt.Println(" Queue   Size:", srv.QueueSize)
	fmt.Println(strings.Repeat("#", 64))

	cfg.Run.Visualize = false
	metrics := monitor.New()
	out, err := openOutputs(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer out.Close()
	// the console sink is for interactive use only
	svc := service.New(srv.QueueSize, out.sinks[1:])
	runner, closeRunner, err := newRunner(cfg, pipeline.Observers{metrics, svc})
	if err != nil {
		return err
	}
	defer closeRunner()
	svc.Start(runner)
	defer svc.Close()

	grpcServer, err := backend.StartGRPCServer(srv.RPCPort, svc, metrics)
	if err != nil {
		return err
	}
	defer grpcServer.GracefulStop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup
	errCh := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := metrics.StartMon(ctx, srv.MetricsPort); err != nil {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
	go func() {
		defer wg.Done()
		httpServer := api.New(svc, metrics)
		if out.store != nil {
			httpServer.WithSimilar(out.store)
		}
		if err := httpServer.Run(ctx, srv.HTTPPort); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Log().Warn("Shutting down")
	case err = <-errCh:
	}
	cancel()
	wg.Wait()
	fmt.Println("Safely exited")
	return err
}
