// Command csrtool converts LibSVM text files into CSR datasets and inspects
// stored datasets.
//
// Storage locations are a local directory, s3://bucket/prefix (credentials
// from the default AWS configuration chain) or
// minio://host:port/bucket/prefix[?secure=true] (credentials from the
// MINIO_* or AWS_* environment variables).
//
// Examples:
//
//	csrtool convert --out s3://ml-data/train --compression zstd part-*.libsvm
//	csrtool inspect --store s3://ml-data/train part-00000.csr
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/hupe1980/csrgo"
	"github.com/hupe1980/csrgo/codec"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

type globalFlags struct {
	logLevel      string
	jsonLog       bool
	manifestCodec string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:           "csrtool",
		Short:         "Build and inspect CSR sparse datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&g.jsonLog, "json-log", false, "Emit logs as JSON")
	root.PersistentFlags().StringVar(&g.manifestCodec, "manifest-codec", codec.Default.Name(), "Snapshot manifest codec (json, go-json)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "csrtool v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newConvertCmd(&g))
	root.AddCommand(newInspectCmd(&g))

	return root
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

func (g *globalFlags) logger(w io.Writer) (*csrgo.Logger, error) {
	level, err := parseLevel(g.logLevel)
	if err != nil {
		return nil, err
	}
	if g.jsonLog {
		return csrgo.NewJSONLogger(w, level), nil
	}
	return csrgo.NewTextLogger(w, level), nil
}

func (g *globalFlags) codec() (codec.Codec, error) {
	c, ok := codec.ByName(g.manifestCodec)
	if !ok {
		return nil, fmt.Errorf("unknown manifest codec %q", g.manifestCodec)
	}
	return c, nil
}
