// Command merge_psrfits joins PSRFITS search-mode recordings of adjacent
// frequency bands into one file set covering the whole band.
//
// Usage:
//
//	merge_psrfits [flags] <band file> <band file> ...
//
// Each argument is the first file of a band's set, for example
// "nuppi_55529_0355+54_0012_1408_0001.fits". The output base drops the
// per-band term: "nuppi_55529_0355+54_0012_NNNN.fits".
//
// Examples:
//
//	merge_psrfits obs_1400_0001.fits obs_1404_0001.fits obs_1408_0001.fits
//	merge_psrfits -o /data/merged -v obs_*_0001.fits
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/scottransom/psrfits-utils/internal/appshell"
	perr "github.com/scottransom/psrfits-utils/internal/errors"
	"github.com/scottransom/psrfits-utils/internal/metrics"
	"github.com/scottransom/psrfits-utils/internal/progress"
	"github.com/scottransom/psrfits-utils/merge"
	"github.com/scottransom/psrfits-utils/psrfits"
	"github.com/scottransom/psrfits-utils/psrfits/fitsfile"
)

func main() { appshell.Main(run) }

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	env := appshell.Env()
	fs := flag.NewFlagSet("merge_psrfits", flag.ContinueOnError)
	fs.SetOutput(stderr)
	outdir := fs.String("o", env.Get("OUTDIR", ""), "output directory (default: next to the first input)")
	workers := fs.Int("workers", env.GetInt("WORKERS", 0), "concurrent band readers (0: one per input)")
	metricsPath := fs.String("metrics", env.Get("METRICS", ""), "write Prometheus textfile metrics to this path")
	verbose := fs.Bool("v", false, "debug logging, including every channel frequency")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: merge_psrfits [flags] <band file> <band file> ...\n\n")
		fmt.Fprintf(stderr, "Merges PSRFITS recordings of adjacent bands into one file set.\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  merge_psrfits obs_1400_0001.fits obs_1404_0001.fits\n")
		fmt.Fprintf(stderr, "  merge_psrfits -o /data/merged -v obs_*_0001.fits\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	log := appshell.Logger("merge_psrfits", *verbose)
	reg := prometheus.NewRegistry()
	err := mergeFiles(ctx, fs.Args(), *outdir,
		merge.WithLogger(log),
		merge.WithMetrics(metrics.New(reg)),
		merge.WithWorkers(*workers),
		merge.WithProgress(progress.New(stdout)),
		merge.WithMaxFileBytes(appshell.MaxFileBytes()),
	)
	if werr := metrics.WriteTextfile(*metricsPath, reg); werr != nil {
		log.Warn().Err(werr).Str("path", *metricsPath).Msg("writing metrics")
	}
	return appshell.Exit(log, err)
}

func mergeFiles(ctx context.Context, paths []string, outdir string, opts ...merge.Option) (err error) {
	inputs := make([]merge.Input, 0, len(paths))
	defer func() {
		for _, in := range inputs {
			in.Reader.Close()
		}
	}()
	for _, p := range paths {
		r, err := fitsfile.Open(p)
		if err != nil {
			return perr.WrapIO(err, "open %s", p)
		}
		base, _ := psrfits.SplitBase(p)
		inputs = append(inputs, merge.Input{Name: base, Reader: r})
	}

	s, err := merge.New(inputs, opts...)
	if err != nil {
		return err
	}
	out, err := fitsfile.Create(psrfits.OutputBase(outdir, mergedBase(inputs[0].Name)), s.OutputHeader())
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeConfiguration, "create output")
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = perr.WrapIO(cerr, "close output")
		}
	}()
	return s.Run(ctx, out)
}

// mergedBase drops the last "_" term of a band's base name.
func mergedBase(base string) string {
	i := strings.LastIndexByte(base, '_')
	if i <= strings.LastIndexByte(base, filepath.Separator)+1 {
		return base + "_merged"
	}
	return base[:i]
}
