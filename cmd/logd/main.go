// Command logd is the log daemon: it wires the ingest, egress, and
// control endpoints on top of a single in-memory LogStore, in the
// teacher's cmd/nanolog/main.go style of flag parsing, component
// construction, and signal-driven graceful shutdown.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Lunaris-AOSP/system-logging/internal/audit"
	"github.com/Lunaris-AOSP/system-logging/internal/clock"
	"github.com/Lunaris-AOSP/system-logging/internal/config"
	"github.com/Lunaris-AOSP/system-logging/internal/control"
	"github.com/Lunaris-AOSP/system-logging/internal/egress"
	"github.com/Lunaris-AOSP/system-logging/internal/ingest"
	"github.com/Lunaris-AOSP/system-logging/internal/kernellog"
	"github.com/Lunaris-AOSP/system-logging/internal/logrecord"
	"github.com/Lunaris-AOSP/system-logging/internal/prune"
	"github.com/Lunaris-AOSP/system-logging/internal/reader"
	"github.com/Lunaris-AOSP/system-logging/internal/stats"
	"github.com/Lunaris-AOSP/system-logging/internal/store"
	"github.com/Lunaris-AOSP/system-logging/internal/tags"
	"github.com/Lunaris-AOSP/system-logging/internal/trusty"
)

func main() {
	// First pass: pull out -config and -log-level only, ignoring the
	// rest, so we know which YAML file to load before binding the
	// remaining flags as overrides on top of it.
	preScan := pflag.NewFlagSet("logd-prescan", pflag.ContinueOnError)
	preScan.ParseErrorsWhitelist.UnknownFlags = true
	configPath := preScan.String("config", "", "path to a YAML config file")
	logLevel := preScan.String("log-level", "info", "zap log level: debug, info, warn, error")
	_ = preScan.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		zap.S().Fatalf("loading config: %v", err)
	}

	fs := pflag.NewFlagSet("logd", pflag.ExitOnError)
	fs.String("config", *configPath, "path to a YAML config file")
	fs.String("log-level", *logLevel, "zap log level: debug, info, warn, error")
	config.BindFlags(fs, &cfg)
	_ = fs.Parse(os.Args[1:])

	log := mustLogger(*logLevel)
	defer log.Sync()

	log.Info("logd starting",
		zap.String("ingest_socket", cfg.IngestSocket),
		zap.String("egress_socket", cfg.EgressSocket),
		zap.String("control_socket", cfg.ControlSocket),
	)

	clk := clock.Real()
	st := stats.New()
	pl := prune.NewEmpty()
	logStore := store.New(cfg.QuotaTable(), st, pl, clk)
	logStore.SetSecurityPolicy(store.DefaultSecurityPolicy{Ceiling: cfg.SecurityUIDCeiling})

	registry := reader.NewRegistry(cfg.MaxSubscriptions)
	logStore.SetNotifier(registry)

	tagRegistry := tags.New()
	if err := tagRegistry.Load(cfg.TagMapPaths); err != nil {
		log.Warn("loading event-tag dictionary", zap.Error(err))
	}

	ingestEP := ingest.New(logStore, cfg.IngestSocket, log.Named("ingest"))
	egressEP := egress.New(logStore, registry, cfg.EgressSocket, log.Named("egress"))
	controlEP := control.New(logStore, st, tagRegistry, cfg.ControlSocket, log.Named("control"))

	ctx, cancel := context.WithCancel(context.Background())

	runEndpoint(ctx, log, "ingest", ingestEP.Serve)
	runEndpoint(ctx, log, "egress", egressEP.Serve)
	runEndpoint(ctx, log, "control", controlEP.Serve)

	if cfg.EnableKernelLog {
		go runKernelLog(ctx, log, logStore)
	}
	if cfg.EnableAuditLog {
		// The real denial source is a netlink socket, not reachable
		// from Go without cgo (see internal/audit). Production wiring
		// tees a small netlink-to-stdin bridge process into us; here
		// we read that bridge's output straight off our own stdin.
		go runAudit(ctx, log, logStore)
	}
	if cfg.EnableTrusty {
		go runTrusty(ctx, log)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("received signal, shutting down", zap.String("signal", sig.String()))

	cancel()
	ingestEP.Close()
	egressEP.Close()
	controlEP.Close()

	log.Info("logd exited gracefully")
}

func mustLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	var lvl zap.AtomicLevel
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err == nil {
		cfg.Level = lvl
	}
	log, err := cfg.Build()
	if err != nil {
		log, _ = zap.NewProduction()
	}
	return log
}

func runEndpoint(ctx context.Context, log *zap.Logger, name string, serve func(context.Context) error) {
	go func() {
		if err := serve(ctx); err != nil && ctx.Err() == nil {
			log.Error("endpoint exited unexpectedly", zap.String("endpoint", name), zap.Error(err))
		}
	}()
}

func runKernelLog(ctx context.Context, log *zap.Logger, logStore *store.LogStore) {
	r := kernellog.NewKmsgReader()
	lines, err := r.ReadLines(ctx)
	if err != nil {
		log.Warn("kernel log collaborator unavailable", zap.Error(err))
		return
	}
	for line := range lines {
		_, _, _ = logStore.Log(logrecord.Kernel, logrecord.TrustedUID, 0, 0, []byte(line.Text))
	}
}

func runAudit(ctx context.Context, log *zap.Logger, logStore *store.LogStore) {
	if err := audit.New(os.Stdin, logStore).Run(ctx); err != nil && ctx.Err() == nil {
		log.Warn("audit collaborator exited", zap.Error(err))
	}
}

func runTrusty(ctx context.Context, log *zap.Logger) {
	if err := trusty.New().Run(ctx); err != nil && ctx.Err() == nil {
		log.Warn("trusty collaborator exited", zap.Error(err))
	}
}
