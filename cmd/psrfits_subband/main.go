// Command psrfits_subband partially dedisperses a PSRFITS search-mode file
// set and sums adjacent channels into subbands.
//
// Usage:
//
//	psrfits_subband [flags] <input>
//
// The input is either a base name ("obs_55529") or its first file
// ("obs_55529_0001.fits"). Output goes to "<input base>_subs_NNNN.fits".
//
// Examples:
//
//	psrfits_subband -nsub 64 obs_55529_0001.fits
//	psrfits_subband -nsub 128 -dm 71.02 -o /data/subs obs_55529
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scottransom/psrfits-utils/internal/appshell"
	perr "github.com/scottransom/psrfits-utils/internal/errors"
	"github.com/scottransom/psrfits-utils/internal/metrics"
	"github.com/scottransom/psrfits-utils/internal/progress"
	"github.com/scottransom/psrfits-utils/psrfits"
	"github.com/scottransom/psrfits-utils/psrfits/fitsfile"
	"github.com/scottransom/psrfits-utils/subband"
)

func main() { appshell.Main(run) }

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	env := appshell.Env()
	fs := flag.NewFlagSet("psrfits_subband", flag.ContinueOnError)
	fs.SetOutput(stderr)
	nsub := fs.Int("nsub", env.GetInt("NSUB", 32), "number of output subbands")
	dm := fs.Float64("dm", 0, "dispersion measure to remove within each subband (pc cm^-3)")
	outdir := fs.String("o", env.Get("OUTDIR", ""), "output directory (default: next to the input)")
	metricsPath := fs.String("metrics", env.Get("METRICS", ""), "write Prometheus textfile metrics to this path")
	verbose := fs.Bool("v", false, "debug logging")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: psrfits_subband [flags] <input>\n\n")
		fmt.Fprintf(stderr, "Partially dedisperses and subbands a PSRFITS search-mode file set.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  psrfits_subband -nsub 64 obs_55529_0001.fits\n")
		fmt.Fprintf(stderr, "  psrfits_subband -nsub 128 -dm 71.02 -o /data/subs obs_55529\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	log := appshell.Logger("psrfits_subband", *verbose)
	reg := prometheus.NewRegistry()
	err := subbandFile(ctx, fs.Arg(0), *outdir, subband.Config{NSub: *nsub, DM: *dm},
		subband.WithLogger(log),
		subband.WithMetrics(metrics.New(reg)),
		subband.WithProgress(progress.New(stdout)),
	)
	if werr := metrics.WriteTextfile(*metricsPath, reg); werr != nil {
		log.Warn().Err(werr).Str("path", *metricsPath).Msg("writing metrics")
	}
	return appshell.Exit(log, err)
}

func subbandFile(ctx context.Context, input, outdir string, cfg subband.Config, opts ...subband.Option) (err error) {
	in, err := fitsfile.Open(input)
	if err != nil {
		return perr.WrapIO(err, "open %s", input)
	}
	defer in.Close()

	eng, err := subband.New(in, cfg, opts...)
	if err != nil {
		return err
	}

	base, _ := psrfits.SplitBase(input)
	hdr := eng.OutputHeader()
	hdr.RowsPerFile = appshell.RowsPerFile(appshell.MaxFileBytes(), hdr.BytesPerRow())
	out, err := fitsfile.Create(psrfits.OutputBase(outdir, base+"_subs"), hdr)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeConfiguration, "create output")
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = perr.WrapIO(cerr, "close output")
		}
	}()
	return eng.Run(ctx, out)
}
