package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/akamensky/argparse"

	"psychro-dash/internal/config"
	"psychro-dash/internal/db"
	"psychro-dash/internal/logging"
	"psychro-dash/internal/psychro"
)

const appName = "psychroctl"

var version = "dev"

// Exit codes.
const (
	exitOK       = 0
	exitUsage    = 1
	exitRejected = 2
	exitFailure  = 3
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	parser := argparse.NewParser(appName, "Psychrometric calculations and database tooling")

	calc := parser.NewCommand("calc", "Compute the moist-air state for one dry/wet bulb pair")
	dryBulb := calc.Float("d", "dry-bulb", &argparse.Options{Required: true, Help: "Dry-bulb temperature in °C"})
	wetBulb := calc.Float("w", "wet-bulb", &argparse.Options{Required: true, Help: "Wet-bulb temperature in °C"})
	format := calc.Selector("f", "format", []string{"text", "json"}, &argparse.Options{
		Default: "text",
		Help:    "Output format"})
	maxIter := calc.Int("", "max-iterations", &argparse.Options{
		Default: psychro.DefaultMaxIterations,
		Help:    "Dew-point solver iteration cap"})

	schema := parser.NewCommand("schema", "Apply pending schema files to SQLITE_PATH")

	if err := parser.Parse(args); err != nil {
		fmt.Fprint(stderr, parser.Usage(err))
		return exitUsage
	}

	switch {
	case calc.Happened():
		return runCalc(*dryBulb, *wetBulb, *format, *maxIter, stdout, stderr)
	case schema.Happened():
		return runSchema(ctx, stdout, stderr)
	}
	fmt.Fprint(stderr, parser.Usage(nil))
	return exitUsage
}

func runCalc(dry, wet float64, format string, maxIter int, stdout, stderr io.Writer) int {
	engine := psychro.NewEngine(psychro.WithMaxIterations(maxIter))
	st, err := engine.Compute(psychro.Reading{DryBulb: dry, WetBulb: wet})
	if err != nil {
		code, _ := psychro.CodeOf(err)
		if format == "json" {
			_ = json.NewEncoder(stdout).Encode(map[string]string{"code": string(code), "message": err.Error()})
		} else {
			fmt.Fprintf(stderr, "rejected (%s): %v\n", code, err)
		}
		return exitRejected
	}

	if format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(st); err != nil {
			fmt.Fprintf(stderr, "encode: %v\n", err)
			return exitFailure
		}
		return exitOK
	}

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "dry bulb\t%.2f\t°C\n", st.DryBulb)
	fmt.Fprintf(tw, "wet bulb\t%.2f\t°C\n", st.WetBulb)
	fmt.Fprintf(tw, "relative humidity\t%.2f\t%%\n", st.RelativeHumidity)
	fmt.Fprintf(tw, "dew point\t%.2f\t°C\n", st.DewPoint)
	fmt.Fprintf(tw, "absolute humidity\t%.5f\tkg/kg\n", st.AbsoluteHumidity)
	fmt.Fprintf(tw, "partial pressure\t%.1f\tPa\n", st.PartialPressure)
	fmt.Fprintf(tw, "specific volume\t%.4f\tm³/kg\n", st.SpecificVolume)
	fmt.Fprintf(tw, "enthalpy\t%.2f\tkJ/kg\n", st.Enthalpy)
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(stderr, "write: %v\n", err)
		return exitFailure
	}
	return exitOK
}

func runSchema(ctx context.Context, stdout, stderr io.Writer) int {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return exitFailure
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return exitFailure
	}
	logger := logging.NewWithWriter(stderr, cfg, version, appName)
	slog.SetDefault(logger)

	conn, err := db.Open(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "db open: %v\n", err)
		return exitFailure
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()

	versions, err := db.AppliedVersions(ctx, conn)
	if err != nil {
		fmt.Fprintf(stderr, "schema: %v\n", err)
		return exitFailure
	}
	fmt.Fprintf(stdout, "schema up to date (%d migrations applied)\n", len(versions))
	return exitOK
}
