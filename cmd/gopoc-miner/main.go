// Command gopoc-miner wires the pipeline together: Registry discovers
// plots, one Reader per drive feeds a buffer pool, one CPU Worker per drive
// scores buffers into candidates (no GPU Worker is built here: GPUWorker
// needs a worker.Device, and none ships in this repository), and the Miner
// Controller drives
// the whole thing from Puzzle Source's feed while handing qualifying
// candidates to the Submitter. Flag parsing and YAML config loading are
// intentionally thin here; this file is the composition root, not the
// configuration system.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/signum-network/gopoc-miner/bufpool"
	"github.com/signum-network/gopoc-miner/config"
	"github.com/signum-network/gopoc-miner/controller"
	"github.com/signum-network/gopoc-miner/diskhealth"
	"github.com/signum-network/gopoc-miner/httpupstream"
	"github.com/signum-network/gopoc-miner/metrics"
	"github.com/signum-network/gopoc-miner/persist"
	"github.com/signum-network/gopoc-miner/poc"
	"github.com/signum-network/gopoc-miner/puzzlesource"
	"github.com/signum-network/gopoc-miner/reader"
	"github.com/signum-network/gopoc-miner/registry"
	"github.com/signum-network/gopoc-miner/submitter"
	minersync "github.com/signum-network/gopoc-miner/sync"
	"github.com/signum-network/gopoc-miner/worker"
)

var ledgerMetadata = submitter.LedgerMetadata

func main() {
	configPath := flag.String("config", "", "path to a JSON settings file")
	logPath := flag.String("log", "gopoc-miner.log", "path to the log file")
	ledgerPath := flag.String("ledger", "gopoc-miner.db", "path to the submission ledger")
	benchmark := flag.Bool("benchmark", false, "run against synthetic plots, skipping disk I/O")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "invalid config:", err)
		os.Exit(1)
	}

	log, err := persist.NewLogger(*logPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not open log file:", err)
		os.Exit(1)
	}

	ledger, err := persist.OpenDatabase(ledgerMetadata, *ledgerPath)
	if err != nil {
		log.Critical("could not open submission ledger:", err)
		log.Close()
		os.Exit(1)
	}

	// Shutdown is coordinated by a ThreadGroup rather than a bare
	// context.CancelFunc: every long-lived goroutine below registers with
	// tg, and Stop drains them before AfterStop runs the ledger and logger
	// close in reverse registration order.
	var tg minersync.ThreadGroup
	tg.AfterStop(func() { log.Close() })
	tg.AfterStop(func() { ledger.Close() })

	m := metrics.NewMetrics()

	var reg *registry.Registry
	if *benchmark {
		reg, err = registry.NewBenchmark(cfg.PlotDirectories, log)
	} else {
		reg, err = registry.New(cfg.PlotDirectories, log)
	}
	if err != nil {
		log.Critical("could not build plot registry:", err)
		os.Exit(1)
	}
	log.Printf("registry: %d drives, %.2f GiB total capacity", len(reg.Drives()), float64(reg.TotalCapacityBytes())/1024/1024/1024)

	health := diskhealth.NewMonitor()
	transport := httpupstream.NewClient(cfg.URL, cfg.HTTPTimeout())

	// ctx is cancelled the moment tg.Stop is called, which lets every
	// goroutine below select on ctx.Done() the way the rest of the
	// pipeline already does, while still going through tg for registration
	// and drain-then-cleanup ordering.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-tg.StopChan()
		cancel()
	}()
	notifyShutdown(&tg)

	readers, candidates := buildPipeline(&tg, cfg, reg, health, log, m, ctx)

	sub := submitter.New(transport, cfg, m, log, ledger)
	runInGroup(&tg, log, "submitter", func() error { return sub.Run(ctx) })

	src := puzzlesource.New(transport, cfg, m, log)
	runInGroup(&tg, log, "puzzlesource", func() error { return src.Run(ctx) })

	ctrl := controller.New(cfg, log, m, sub, readers, &tg)
	if err := ctrl.Run(ctx, src.Puzzles(), candidates); err != nil {
		log.Critical("controller exited with error:", err)
	}

	tg.Stop()
}

// runInGroup registers fn with tg and runs it in a new goroutine, logging
// any error it returns. It is how every long-lived pipeline goroutine joins
// the shutdown group instead of being tracked by an ad hoc WaitGroup.
func runInGroup(tg *minersync.ThreadGroup, log *persist.Logger, name string, fn func() error) {
	if err := tg.Add(); err != nil {
		return
	}
	go func() {
		defer tg.Done()
		if err := fn(); err != nil {
			log.Println(name, "exited with error:", err)
		}
	}()
}

// buildPipeline constructs one buffer pool, reader, and CPU worker per
// drive, and fans every worker's candidate channel into a single channel
// the Miner Controller consumes. The CPU Worker and its fan-in goroutine are
// long-lived for the process's whole run, so both register with tg.
func buildPipeline(tg *minersync.ThreadGroup, cfg config.Settings, reg *registry.Registry, health *diskhealth.Monitor, log *persist.Logger, m *metrics.Metrics, ctx context.Context) ([]reader.Interface, <-chan poc.Candidate) {
	fanIn := make(chan poc.Candidate)
	var readers []reader.Interface

	for _, drive := range reg.Drives() {
		bufSize := cfg.BufferSize
		pool := bufpool.NewPool(cfg.CPUBufferCount, bufSize, int(drive.SectorSize), drive.DirectIOEligible() && cfg.DirectIO)

		var rd reader.Interface
		if cfg.CPUThreadPinning {
			rd = reader.NewSyncReader(drive, pool, health, log, reg.Benchmark())
		} else {
			rd = reader.NewTaskReader(drive, pool, health, log, reg.Benchmark())
		}
		rd.EnableStats(cfg.ReaderStats)
		readers = append(readers, rd)

		cw := worker.NewCPUWorker(pool, health, log)
		runInGroup(tg, log, "cpu worker", func() error { return cw.Run(ctx) })
		runInGroup(tg, log, "candidate forwarder", func() error { forward(ctx, cw.Candidates(), fanIn); return nil })
	}

	return readers, fanIn
}

func forward(ctx context.Context, in <-chan poc.Candidate, out chan<- poc.Candidate) {
	for {
		select {
		case c, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func loadConfig(path string) (config.Settings, error) {
	cfg := config.Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func notifyShutdown(tg *minersync.ThreadGroup) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		tg.Stop()
	}()
}
