package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/hupe1980/csrgo"
	"github.com/hupe1980/csrgo/blobstore"
	"github.com/hupe1980/csrgo/codec"
	"github.com/hupe1980/csrgo/internal/resource"
	"github.com/hupe1980/csrgo/parser"
	"github.com/hupe1980/csrgo/snapshot"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type convertFlags struct {
	out         string
	compression string
	raw         bool
	jobs        int
	blockRows   int
	memoryLimit int64
	ioLimit     int
}

type convertResult struct {
	input string
	name  string
	sum   csrgo.Summary
}

func newConvertCmd(g *globalFlags) *cobra.Command {
	var f convertFlags

	cmd := &cobra.Command{
		Use:   "convert [flags] <input.libsvm>...",
		Short: "Convert LibSVM text files into CSR datasets",
		Long: `Convert reads LibSVM text files and stores each one as a CSR dataset.

By default every output is a snapshot (checksummed, optionally compressed,
with a JSON manifest). With --raw the plain binary dataset encoding is
written instead.

Example:
  csrtool convert --out ./data --compression lz4 train.libsvm test.libsvm`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := g.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			manifestCodec, err := g.codec()
			if err != nil {
				return err
			}
			return runConvert(cmd, args, f, logger, manifestCodec)
		},
	}

	cmd.Flags().StringVarP(&f.out, "out", "o", ".", "Output location (directory, s3://bucket/prefix or minio://host/bucket/prefix)")
	cmd.Flags().StringVarP(&f.compression, "compression", "c", "none", "Snapshot compression (none, lz4, zstd)")
	cmd.Flags().BoolVar(&f.raw, "raw", false, "Write the plain binary encoding instead of a snapshot")
	cmd.Flags().IntVarP(&f.jobs, "jobs", "j", runtime.NumCPU(), "Number of files converted concurrently")
	cmd.Flags().IntVar(&f.blockRows, "block-rows", parser.DefaultBlockRows, "Rows per parser block")
	cmd.Flags().Int64Var(&f.memoryLimit, "memory-limit", 0, "Maximum bytes of input converted at once (0 = unlimited)")
	cmd.Flags().IntVar(&f.ioLimit, "io-limit", 0, "Maximum input read rate in bytes per second (0 = unlimited)")

	return cmd
}

func runConvert(cmd *cobra.Command, inputs []string, f convertFlags, logger *csrgo.Logger, manifestCodec codec.Codec) error {
	compression, err := snapshot.ParseCompression(f.compression)
	if err != nil {
		return err
	}
	if f.raw && compression != snapshot.CompressionNone {
		return fmt.Errorf("--compression cannot be combined with --raw")
	}
	if err := checkOutputNames(inputs); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := openStore(ctx, f.out)
	if err != nil {
		return err
	}

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:   f.memoryLimit,
		IOLimitBytesPerSec: f.ioLimit,
	})
	metrics := &csrgo.BasicMetricsCollector{}
	results := make([]convertResult, len(inputs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(f.jobs, 1))
	for i, input := range inputs {
		eg.Go(func() error {
			res, err := convertOne(egCtx, store, rc, input, f, snapshot.Options{
				Compression: compression,
				Codec:       manifestCodec,
			}, logger, metrics)
			if err != nil {
				return fmt.Errorf("convert %s: %w", input, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, r := range results {
		fmt.Fprintf(out, "%s -> %s (%d rows, %d cols, %d nonzero)\n", r.input, r.name, r.sum.Rows, r.sum.Cols, r.sum.NonZero)
	}
	stats := metrics.GetStats()
	fmt.Fprintf(out, "converted %d file(s): %d rows, %d nonzero, %d bytes encoded\n",
		stats.IngestCount, stats.IngestRows, stats.IngestNonzero, stats.SaveBytes)
	return nil
}

// outputName maps an input path to the blob name of its dataset.
func outputName(input string) string {
	base := filepath.Base(input)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base + ".csr"
}

func checkOutputNames(inputs []string) error {
	seen := make(map[string]string, len(inputs))
	for _, in := range inputs {
		name := outputName(in)
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("inputs %s and %s both map to %s", prev, in, name)
		}
		seen[name] = in
	}
	return nil
}

func convertOne(
	ctx context.Context,
	store blobstore.BlobStore,
	rc *resource.Controller,
	input string,
	f convertFlags,
	snapOpts snapshot.Options,
	logger *csrgo.Logger,
	metrics csrgo.MetricsCollector,
) (convertResult, error) {
	file, err := os.Open(input)
	if err != nil {
		return convertResult{}, err
	}
	defer file.Close()

	fi, err := file.Stat()
	if err != nil {
		return convertResult{}, err
	}
	if err := rc.AcquireMemory(ctx, fi.Size()); err != nil {
		return convertResult{}, err
	}
	defer rc.ReleaseMemory(fi.Size())

	log := &csrgo.Logger{Logger: logger.With("input", input)}
	log.Debug("input admitted", "bytes", fi.Size(), "reserved_bytes", rc.MemoryUsage())

	p := parser.NewLibSVMParser(rc.Reader(ctx, file), func(o *parser.LibSVMOptions) {
		if f.blockRows > 0 {
			o.BlockRows = f.blockRows
		}
	})
	ds, err := csrgo.FromParser(p,
		csrgo.WithLogger(log),
		csrgo.WithMetricsCollector(metrics),
	)
	if err != nil {
		return convertResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return convertResult{}, err
	}

	name := outputName(input)
	if f.raw {
		err = writeRaw(ctx, store, name, ds)
	} else {
		snapOpts.Logger = log
		_, err = snapshot.Write(ctx, store, name, ds, snapOpts)
	}
	if err != nil {
		return convertResult{}, err
	}

	return convertResult{input: input, name: name, sum: ds.Summary()}, nil
}

func writeRaw(ctx context.Context, store blobstore.BlobStore, name string, ds *csrgo.Store) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return err
	}
	if err := ds.Save(w); err != nil {
		_ = blobstore.Abort(w)
		return err
	}
	return w.Close()
}
