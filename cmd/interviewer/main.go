package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"interviewer/pkg/api"
	"interviewer/pkg/config"
	"interviewer/pkg/evaluation"
	"interviewer/pkg/gateway"
	"interviewer/pkg/interview"
	"interviewer/pkg/journal"
	llmmetrics "interviewer/pkg/llm/middleware/metrics"
	"interviewer/pkg/llm/providers/openaicompat"
	"interviewer/pkg/logx"
	"interviewer/pkg/metrics"
	"interviewer/pkg/mutation"
	"interviewer/pkg/store"
	"interviewer/pkg/version"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to interviewer.yaml (default: search ./ and ~/.config/interviewer)")
		host        = flag.String("host", "", "Override listen.host")
		port        = flag.Int("port", 0, "Override listen.port")
		debug       = flag.Bool("debug", false, "Enable debug logging")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("interviewer %s\n", version.Version)
		fmt.Printf("  commit: %s\n", version.Commit)
		fmt.Printf("  built:  %s\n", version.Date)
		os.Exit(0)
	}

	os.Exit(run(*configPath, *host, *port, *debug))
}

// run contains the main application logic and returns an exit code.
// This allows defers to execute before os.Exit is called.
func run(configPath, host string, port int, debug bool) int {
	path, err := config.FindConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if host != "" {
		cfg.Listen.Host = host
	}
	if port != 0 {
		cfg.Listen.Port = port
	}
	if debug {
		cfg.Log.Debug = true
	}
	logx.SetDebugConfig(cfg.Log.Debug, cfg.Log.Domains)

	logger := logx.NewLogger("main")
	if path != "" {
		logger.Info("Loaded config from %s", path)
	} else {
		logger.Info("No config file found, using defaults")
	}

	a, err := newApp(cfg, prometheus.NewRegistry())
	if err != nil {
		logger.Error("Startup failed: %v", err)
		return 1
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.server.Run(ctx, cfg.Address()); err != nil {
		logger.Error("Server failed: %v", err)
		return 1
	}

	logger.Info("Waiting up to %s for %d evaluation passes", cfg.ShutdownTimeout, a.scheduler.InFlight())
	if !a.scheduler.Wait(cfg.ShutdownTimeout) {
		logger.Warn("Abandoning unfinished evaluations")
	}
	logger.Info("Shutdown complete")
	return 0
}

// app owns every long-lived component built from the config.
type app struct {
	store     *store.MemoryStore
	scheduler *evaluation.Scheduler
	journal   *journal.Journal
	service   *interview.Service
	server    *api.Server
	gateway   *gateway.Gateway
}

func newApp(cfg *config.Config, reg *prometheus.Registry) (*app, error) {
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	gw, err := gateway.FromConfig(cfg, llmmetrics.NewPrometheusRecorder(reg))
	if err != nil {
		return nil, fmt.Errorf("build gateway: %w", err)
	}

	a := &app{
		store:   store.NewMemoryStore(cfg.Store.Shards),
		gateway: gw,
	}

	var recorder evaluation.Recorder
	var journalReader api.JournalReader
	if cfg.Journal.Enabled {
		a.journal, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		recorder, journalReader = a.journal, a.journal
	}

	svcMetrics := metrics.NewService(reg, metrics.Gauges{
		Sessions: a.store.Len,
		InFlight: func() int { return a.scheduler.InFlight() },
	})

	repair := cfg.Evaluation.ScoreRepair
	ev, err := evaluation.New(evaluation.Config{
		Gateway: gw,
		Store:   a.store,
		Repair: mutation.ScoreRepair{
			Enabled:       repair.Enabled,
			Floor:         repair.Floor,
			Bumped:        repair.Bumped,
			ZeroDefault:   repair.ZeroDefault,
			PositiveWords: repair.PositiveWords,
		},
		Journal:     recorder,
		Metrics:     svcMetrics,
		Window:      cfg.Evaluation.Window,
		Temperature: float32(cfg.Evaluation.Temperature),
		Timeout:     cfg.Evaluation.Timeout,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.scheduler = evaluation.NewScheduler(ev)

	var transcriber interview.Transcriber
	if t := cfg.Transcription; t.Enabled {
		transcriber = openaicompat.NewTranscriber(t.APIKey, t.BaseURL, t.Model)
	}

	a.service, err = interview.NewService(interview.Config{
		Gateway:     gw,
		Store:       a.store,
		Scheduler:   a.scheduler,
		Transcriber: transcriber,
		Metrics:     svcMetrics,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	var usage api.UsageSource
	if cfg.Metrics.PrometheusURL != "" {
		q, qerr := metrics.NewQueryService(cfg.Metrics.PrometheusURL)
		if qerr != nil {
			a.close()
			return nil, fmt.Errorf("prometheus client: %w", qerr)
		}
		usage = q
	}

	a.server = api.NewServer(api.Deps{
		Interview: a.service,
		Store:     a.store,
		Scheduler: a.scheduler,
		Journal:   journalReader,
		Usage:     usage,
		Gatherer:  reg,
		Providers: gw.Providers(),
	})
	return a, nil
}

func (a *app) close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logx.Warnf("closing journal: %v", err)
		}
	}
}
