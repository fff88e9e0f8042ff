// Command fits_extract copies a fraction of a PSRFITS file set into a new
// single-file set.
//
// Usage:
//
//	fits_extract [-s start] [-e end] <input> <output>
//
// start and end are fractions of the input's rows in [0, 1]. The output is
// written to "<output base>_0001.fits".
//
// Examples:
//
//	fits_extract -s 0.5 obs_0001.fits obs_second_half
//	fits_extract -s 0.1 -e 0.2 obs_0001.fits /tmp/obs_slice
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scottransom/psrfits-utils/extract"
	"github.com/scottransom/psrfits-utils/internal/appshell"
	perr "github.com/scottransom/psrfits-utils/internal/errors"
	"github.com/scottransom/psrfits-utils/internal/metrics"
	"github.com/scottransom/psrfits-utils/internal/progress"
	"github.com/scottransom/psrfits-utils/psrfits"
	"github.com/scottransom/psrfits-utils/psrfits/fitsfile"
)

func main() { appshell.Main(run) }

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	env := appshell.Env()
	fs := flag.NewFlagSet("fits_extract", flag.ContinueOnError)
	fs.SetOutput(stderr)
	start := fs.Float64("s", 0, "start of the output, as a fraction of the input rows")
	end := fs.Float64("e", 1, "end of the output, as a fraction of the input rows")
	metricsPath := fs.String("metrics", env.Get("METRICS", ""), "write Prometheus textfile metrics to this path")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: fits_extract [flags] <input> <output>\n\n")
		fmt.Fprintf(stderr, "Copies the rows between two fractions of a PSRFITS file set.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  fits_extract -s 0.5 obs_0001.fits obs_second_half\n")
		fmt.Fprintf(stderr, "  fits_extract -s 0.1 -e 0.2 obs_0001.fits /tmp/obs_slice\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 2
	}

	log := appshell.Logger("fits_extract", *verbose)
	reg := prometheus.NewRegistry()
	n, err := extractFile(ctx, fs.Arg(0), fs.Arg(1), *start, *end,
		extract.WithLogger(log),
		extract.WithMetrics(metrics.New(reg)),
		extract.WithProgress(progress.New(stdout)),
	)
	if err == nil {
		fmt.Fprintf(stdout, "Wrote %d rows\n", n)
	}
	if werr := metrics.WriteTextfile(*metricsPath, reg); werr != nil {
		log.Warn().Err(werr).Str("path", *metricsPath).Msg("writing metrics")
	}
	return appshell.Exit(log, err)
}

func extractFile(ctx context.Context, input, output string, start, end float64, opts ...extract.Option) (n int, err error) {
	in, err := fitsfile.Open(input)
	if err != nil {
		return 0, perr.WrapIO(err, "open %s", input)
	}
	defer in.Close()

	hdr := in.Header()
	hdr.RowsPerFile = 0
	base, _ := psrfits.SplitBase(output)
	out, err := fitsfile.Create(base, hdr)
	if err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeConfiguration, "create output")
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = perr.WrapIO(cerr, "close output")
		}
	}()
	return extract.Rows(ctx, in, out, start, end, opts...)
}
