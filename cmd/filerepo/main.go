// Command filerepo inspects and edits a fixed-width record file.
//
//	filerepo [flags] count
//	filerepo [flags] range
//	filerepo [flags] get ID
//	filerepo [flags] scan FROM [THROUGH]
//	filerepo [flags] append HEX...
//	filerepo [flags] truncate FROM
//	filerepo [flags] search HEX LEFT RIGHT
//	filerepo [flags] watch INTERVAL
//	filerepo defaults FILE
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fluxorio/filerepo/pkg/concurrency"
	"github.com/fluxorio/filerepo/pkg/config"
	"github.com/fluxorio/filerepo/pkg/fileio"
	"github.com/fluxorio/filerepo/pkg/filerepo"
	"github.com/fluxorio/filerepo/pkg/logging"
	"github.com/fluxorio/filerepo/pkg/observability/otel"
	"github.com/fluxorio/filerepo/pkg/observability/prometheus"
	"github.com/fluxorio/filerepo/pkg/reactor"
)

const version = "0.1.0"

var errUsage = errors.New("usage: filerepo [flags] count|range|get|scan|append|truncate|search|watch|defaults ...")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, errUsage)
			os.Exit(2)
		}
		log.Fatalf("filerepo: %v", err)
	}
}

type cli struct {
	configPath  string
	path        string
	recordSize  int
	offset      int
	metricsAddr string
	trace       bool
	debug       bool
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	var c cli
	fs := flag.NewFlagSet("filerepo", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&c.configPath, "config", os.Getenv("FILEREPO_CONFIG"), "YAML or JSON config file")
	fs.StringVar(&c.path, "path", "", "record file (overrides store.path)")
	fs.IntVar(&c.recordSize, "record-size", 0, "bytes per record (overrides store.record_size)")
	fs.IntVar(&c.offset, "offset", -1, "logical id of the first record (overrides store.offset)")
	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.BoolVar(&c.trace, "trace", false, "print spans to stdout")
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}
	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]

	if cmd == "defaults" {
		if len(cmdArgs) != 1 {
			return errUsage
		}
		return config.SaveYAML(cmdArgs[0], config.Default())
	}

	opts, err := c.options()
	if err != nil {
		return err
	}

	logger := logging.NewDefaultLogger()
	if c.debug {
		logger = logging.NewDebugLogger()
	}

	if c.trace || opts.Trace.Stdout {
		shutdown, err := otel.Initialize(ctx, otel.Config{ServiceName: "filerepo", ServiceVersion: version, Exporter: "stdout", Writer: stdout})
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warnf("trace shutdown: %v", err)
			}
		}()
	}

	metrics := prometheus.GetMetrics()

	// The loop and pool outlive ctx so the file is still closed cleanly
	// after a signal.
	loop := reactor.NewReactor(opts.Loop.Name, opts.Loop.QueueSize)
	loop.SetLogger(logger)
	if err := loop.Start(context.Background()); err != nil {
		return err
	}
	defer func() { _ = loop.Stop(context.Background()) }()

	pool := concurrency.NewWorkerPool(context.Background(), opts.PoolConfig(logger))
	if err := pool.Start(); err != nil {
		return err
	}
	defer func() { _ = pool.Stop(context.Background()) }()

	if opts.Metrics.Enabled {
		srv := serveMetrics(opts.Metrics.Addr, opts.Metrics.Path, logger)
		defer func() { _ = srv.Shutdown(context.Background()) }()
		go metrics.Watch(ctx, time.Second, pool, loop)
	}

	provider := fileio.NewNonBlocking(pool, opts.IOOptions(logger, metrics))
	repo, err := filerepo.Open[filerepo.RawRecord](provider, opts.Store.Path, opts.RepoConfig(), filerepo.RawCodec{}, loop,
		filerepo.WithLogger(logger),
		filerepo.WithObserver(metrics),
		filerepo.WithName(opts.Store.Name),
	).Await(ctx)
	if err != nil {
		return fmt.Errorf("open %s: %w", opts.Store.Path, err)
	}
	defer func() {
		_, _ = filerepo.CloseRecover(loop, logger, repo.Close).Await(context.Background())
	}()

	return execute(ctx, repo, cmd, cmdArgs, stdout)
}

// options layers flags over the config file and environment.
func (c cli) options() (config.Options, error) {
	opts := config.Default()
	if c.configPath != "" {
		if err := config.LoadFile(c.configPath, &opts); err != nil {
			return config.Options{}, fmt.Errorf("failed to load config file: %w", err)
		}
	}
	if err := opts.ApplyEnv(config.DefaultEnvPrefix); err != nil {
		return config.Options{}, err
	}
	if c.path != "" {
		opts.Store.Path = c.path
	}
	if c.recordSize > 0 {
		opts.Store.RecordSize = c.recordSize
	}
	if c.offset >= 0 {
		opts.Store.Offset = c.offset
	}
	if c.metricsAddr != "" {
		opts.Metrics.Enabled = true
		opts.Metrics.Addr = c.metricsAddr
	}
	if err := opts.Validate(); err != nil {
		return config.Options{}, err
	}
	return opts, nil
}

func serveMetrics(addr, path string, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, prometheus.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server: %v", err)
		}
	}()
	logger.Infof("serving metrics on %s%s", addr, path)
	return srv
}

func execute(ctx context.Context, repo *filerepo.Repo[filerepo.RawRecord], cmd string, args []string, out io.Writer) error {
	ints, err := parseInts(args, cmd)
	if err != nil {
		return err
	}

	switch cmd {
	case "count":
		n, err := repo.Count().Await(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, n)

	case "range":
		h, err := repo.Heights().Await(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d %d\n", h.Lower, h.Upper)

	case "get":
		if len(ints) != 1 {
			return errUsage
		}
		rec, err := repo.Find(ints[0]).Await(ctx)
		if err != nil {
			return err
		}
		printRecord(out, rec)

	case "scan":
		var recs []filerepo.RawRecord
		switch len(ints) {
		case 1:
			recs, err = repo.FindFrom(ints[0]).Await(ctx)
		case 2:
			recs, err = repo.FindRange(ints[0], ints[1]).Await(ctx)
		default:
			return errUsage
		}
		if err != nil {
			return err
		}
		for _, rec := range recs {
			printRecord(out, rec)
		}

	case "append":
		if len(args) == 0 {
			return errUsage
		}
		n, err := repo.Count().Await(ctx)
		if err != nil {
			return err
		}
		recs := make([]filerepo.RawRecord, len(args))
		for i, arg := range args {
			data, err := hex.DecodeString(arg)
			if err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			recs[i] = filerepo.RawRecord{ID: repo.Offset() + n + i, Data: data}
		}
		if _, err := repo.Append(recs).Await(ctx); err != nil {
			return err
		}
		if _, err := repo.Sync().Await(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, n+len(recs))

	case "truncate":
		if len(ints) != 1 {
			return errUsage
		}
		if _, err := repo.Delete(ints[0]).Await(ctx); err != nil {
			return err
		}

	case "search":
		if len(args) != 3 {
			return errUsage
		}
		target, err := hex.DecodeString(args[0])
		if err != nil {
			return fmt.Errorf("search key: %w", err)
		}
		key := func(r filerepo.RawRecord) string {
			return string(r.Data[:min(len(r.Data), len(target))])
		}
		rec, err := filerepo.Search(repo, string(target), ints[1], ints[2], key).Await(ctx)
		var nm *filerepo.NoExactMatchError[filerepo.RawRecord]
		if errors.As(err, &nm) {
			fmt.Fprintln(out, "no exact match, neighbours:")
			printRecord(out, nm.Left)
			printRecord(out, nm.Right)
			return nil
		}
		if err != nil {
			return err
		}
		printRecord(out, rec)

	case "watch":
		if len(args) != 1 {
			return errUsage
		}
		interval, err := time.ParseDuration(args[0])
		if err != nil {
			return err
		}
		return watch(ctx, repo, interval, out)

	default:
		return errUsage
	}
	return nil
}

// parseInts converts the numeric arguments of cmd. search takes a hex key
// first, append and watch take no ids.
func parseInts(args []string, cmd string) ([]int, error) {
	switch cmd {
	case "append", "watch":
		return nil, nil
	}
	ints := make([]int, len(args))
	for i, arg := range args {
		if cmd == "search" && i == 0 {
			continue
		}
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", arg, err)
		}
		ints[i] = n
	}
	return ints, nil
}

func watch(ctx context.Context, repo *filerepo.Repo[filerepo.RawRecord], interval time.Duration, out io.Writer) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := -1
	for {
		n, err := repo.Count().Await(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if n != last {
			fmt.Fprintf(out, "%s %d\n", time.Now().Format(time.RFC3339), n)
			last = n
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func printRecord(out io.Writer, rec filerepo.RawRecord) {
	fmt.Fprintf(out, "%d %s\n", rec.ID, hex.EncodeToString(rec.Data))
}
