// Replays skip list operation records, or serves a skip list backed key set over the Redis protocol.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nobletooth/detskip/pkg/config"
	"github.com/nobletooth/detskip/pkg/port"
	"github.com/nobletooth/detskip/pkg/records"
	"github.com/nobletooth/detskip/pkg/storage"
	"github.com/nobletooth/detskip/pkg/utils"
)

const (
	modeRecords = "records"
	modeServe   = "serve"
)

var (
	printVersion   = flag.Bool("print_version", false, "Print the version and exit.")
	mode           = flag.String("mode", modeRecords, "What to run: records/serve")
	recordsInput   = flag.String("records_input", "", "Records file to replay in records mode.")
	recordsOutput  = flag.String("records_output", "", "Results file of records mode; empty means stdout.")
	recordsDir     = flag.String("records_dir", "", "Replay every matching file of this directory instead of --records_input.")
	recordsGlob    = flag.String("records_glob", "*", "Glob pattern selecting the files of --records_dir.")
	metricsAddress = flag.String("metrics_address", "", "The ip:port serving /metrics in serve mode; empty disables it.")
)

func main() {
	configErr := config.InitFlags()
	utils.InitLogging()
	if configErr != nil {
		slog.Error("Failed to apply the config file.", "error", configErr)
		os.Exit(1)
	}

	if *printVersion {
		slog.Info("Detskip build info.", utils.BuildInfo()...)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() { // Listen for OS interrupts in the background.
		sig := <-signals
		slog.Info("Received termination signal, cancelling the context.", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("Detskip stopped.", "error", err, "uptime", utils.Uptime())
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	switch *mode {
	case modeRecords:
		return replayRecords(ctx)
	case modeServe:
		return serve(ctx)
	default:
		return fmt.Errorf("unknown --mode %q", *mode)
	}
}

func replayRecords(ctx context.Context) error {
	var (
		stats records.Stats
		err   error
	)
	switch {
	case *recordsDir != "":
		stats, err = records.RunDir(ctx, storage.NewKeySet, *recordsDir, *recordsGlob, os.Stderr)
	case *recordsInput != "":
		set, setErr := storage.NewKeySet()
		if setErr != nil {
			return setErr
		}
		stats, err = records.RunFile(ctx, set, *recordsInput, *recordsOutput, os.Stderr)
	default:
		return errors.New("expected --records_input or --records_dir")
	}
	slog.Info("Replayed records.", "files", stats.Files, "records", stats.Records, "hits", stats.Hits,
		"misses", stats.Misses, "malformed", stats.Malformed, "invalid", stats.Invalid)
	return err
}

func serve(ctx context.Context) error {
	set, err := storage.NewKeySet()
	if err != nil {
		return err
	}
	if *metricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Addr: *metricsAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server stopped.", "error", err)
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}
	slog.Info("Serving the key set.", utils.BuildInfo()...)
	return port.RunRedisServer(ctx, set)
}
