// Command nefin downloads one NEFIN series, optionally resamples it, and
// writes it to stdout or a file.
//
//	nefin -family risk-factors -keys Market,SMB -agg month -func mean -format csv -out factors.csv
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"nefincli/internal/config"
	"nefincli/internal/exporter"
	"nefincli/internal/infrastructure"
	"nefincli/internal/middleware"
	"nefincli/internal/series"
	"nefincli/internal/services"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const (
	formatTable = "table"
	formatCSV   = "csv"
	formatXLSX  = "xlsx"
	formatJSON  = "json"
)

type options struct {
	family    string
	key       string
	keys      string
	agg       string
	fn        string
	format    string
	out       string
	timeout   time.Duration
	baseURL   string
	logLevel  string
	precision int
	trace     bool
	list      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer, cfg *config.Config) (*options, error) {
	fs := flag.NewFlagSet("nefin", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.family, "family", "", "series family: "+strings.Join(familyNames(), " | "))
	fs.StringVar(&o.key, "key", "", "series key (sector or risk factor)")
	fs.StringVar(&o.keys, "keys", "", "comma separated risk factor keys, joined on date")
	fs.StringVar(&o.agg, "agg", "", "aggregation period: day | month | year")
	fs.StringVar(&o.fn, "func", "", "aggregation function: "+strings.Join(series.AggFuncs(), " | "))
	fs.StringVar(&o.format, "format", formatTable, "output format: table | csv | xlsx | json")
	fs.StringVar(&o.out, "out", "", "output file (defaults to stdout)")
	fs.DurationVar(&o.timeout, "timeout", cfg.Source.Timeout, "download timeout")
	fs.StringVar(&o.baseURL, "base-url", cfg.Source.BaseURL, "root URL of the published spreadsheets")
	fs.StringVar(&o.logLevel, "log-level", "warn", "log level written to stderr: debug | info | warn | error")
	fs.IntVar(&o.precision, "precision", 6, "digits after the decimal point in table output")
	fs.BoolVar(&o.trace, "trace", false, "print OpenTelemetry spans to stderr")
	fs.BoolVar(&o.list, "list", false, "list families, keys and period tokens, then exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	switch o.format {
	case formatTable, formatCSV, formatXLSX, formatJSON:
	default:
		return nil, fmt.Errorf("unknown format %q", o.format)
	}
	if o.list {
		return o, nil
	}
	if o.family == "" {
		return nil, errors.New("-family is required")
	}
	if o.key != "" && o.keys != "" {
		return nil, errors.New("-key and -keys are mutually exclusive")
	}
	if o.keys != "" && o.family != string(series.FamilyRiskFactors) {
		return nil, fmt.Errorf("-keys is only valid with -family %s", series.FamilyRiskFactors)
	}
	if o.format == formatXLSX && o.out == "" {
		return nil, errors.New("-format xlsx requires -out")
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "nefin: failed to load config, using defaults: %v\n", err)
		cfg = config.Default()
	}

	o, err := parseFlags(args, stderr, cfg)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "nefin: %v\n", err)
		return exitUsage
	}

	ctx = infrastructure.EnsureTraceID(ctx)
	logger := infrastructure.WithComponent(infrastructure.NewLogger(stderr, o.logLevel), "cli")

	telemetry := cfg.Telemetry
	telemetry.EnableTracing = o.trace
	telemetry.TraceExporter = "stdout"
	telemetry.EnableMetrics = false
	providers, err := infrastructure.InitializeOTel(telemetry, logger, infrastructure.WithTraceWriter(stderr))
	if err != nil {
		logger.Error("Failed to initialize OpenTelemetry", slog.String("error", err.Error()))
		return exitError
	}
	defer providers.Shutdown(context.Background())

	pipeline, err := series.NewPipeline(
		series.WithBaseURL(o.baseURL),
		series.WithFetcher(series.NewHTTPFetcher(
			series.WithHTTPClient(infrastructure.NewHTTPClient(o.timeout)),
			series.WithUserAgent(cfg.Source.UserAgent),
			series.WithMaxBytes(cfg.Source.MaxBytes),
		)),
		series.WithLogger(logger),
		series.WithTracer(providers.Tracer),
	)
	if err != nil {
		fmt.Fprintf(stderr, "nefin: %v\n", err)
		return exitUsage
	}

	svc := services.NewSeriesService(pipeline, middleware.NewValidator(logger), logger,
		services.WithFetchTimeout(o.timeout))

	if o.list {
		if err := writeFamilies(stdout, svc.Families(ctx)); err != nil {
			fmt.Fprintf(stderr, "nefin: %v\n", err)
			return exitError
		}
		return exitOK
	}

	q := services.SeriesQuery{
		Family:      o.family,
		Series:      o.key,
		Aggregation: o.agg,
		Function:    o.fn,
	}
	if o.keys != "" {
		q.Keys = splitKeys(o.keys)
	}

	res, err := svc.Get(ctx, q)
	if err != nil {
		logger.ErrorContext(ctx, "Fetch failed",
			slog.String("family", o.family),
			slog.String("error", err.Error()))
		fmt.Fprintf(stderr, "nefin: %v\n", err)
		return exitError
	}

	if err := write(stdout, o, res); err != nil {
		logger.ErrorContext(ctx, "Write failed",
			slog.String("format", o.format),
			slog.String("out", o.out),
			slog.String("error", err.Error()))
		fmt.Fprintf(stderr, "nefin: %v\n", err)
		return exitError
	}

	return exitOK
}

func write(stdout io.Writer, o *options, res *services.SeriesResult) error {
	if o.out != "" {
		switch o.format {
		case formatCSV:
			return exporter.WriteCSVFile(o.out, res.Table, exporter.DefaultCSVOptions())
		case formatXLSX:
			return exporter.WriteXLSXFile(o.out, res.Table, exporter.DefaultSheetName)
		}

		f, err := os.Create(o.out)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		if err := writeTo(f, o, res); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return writeTo(stdout, o, res)
}

func writeTo(w io.Writer, o *options, res *services.SeriesResult) error {
	switch o.format {
	case formatCSV:
		return exporter.WriteCSV(w, res.Table, exporter.DefaultCSVOptions())
	case formatXLSX:
		return exporter.WriteXLSX(w, res.Table, exporter.DefaultSheetName)
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	default:
		return exporter.WriteText(w, res.Table, o.precision)
	}
}

func writeFamilies(w io.Writer, families []services.FamilyInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FAMILY\tLAYOUT\tKEYS\tPERIODS")
	for _, f := range families {
		keys := strings.Join(f.CanonicalKeys, ",")
		if keys == "" {
			keys = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Name, f.DateLayout, keys, strings.Join(f.Periods, ","))
	}
	return tw.Flush()
}

func familyNames() []string {
	var names []string
	for _, f := range series.Families() {
		names = append(names, string(f))
	}
	return names
}

func splitKeys(s string) []string {
	var keys []string
	for _, k := range strings.Split(s, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
