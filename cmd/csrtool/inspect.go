package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/csrgo"
	"github.com/hupe1980/csrgo/blobstore"
	"github.com/hupe1980/csrgo/codec"
	"github.com/hupe1980/csrgo/snapshot"
	"github.com/spf13/cobra"
)

func newInspectCmd(g *globalFlags) *cobra.Command {
	var storeURI string

	cmd := &cobra.Command{
		Use:   "inspect [flags] <name>...",
		Short: "Print the summary of stored datasets as JSON",
		Long: `Inspect prints one JSON document per dataset.

Snapshots are described by their manifest. Plain binary datasets are
decoded and summarized.`,
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
			opts := snapshot.Options{Logger: logger, Codec: manifestCodec}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			store, err := openStore(ctx, storeURI)
			if err != nil {
				return err
			}
			for _, name := range args {
				doc, err := inspect(ctx, store, name, opts)
				if err != nil {
					return fmt.Errorf("inspect %s: %w", name, err)
				}
				data, err := codec.GoJSON{}.MarshalIndent(doc)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&storeURI, "store", "s", ".", "Storage location holding the datasets")
	return cmd
}

type rawReport struct {
	Name    string        `json:"name"`
	Format  string        `json:"format"`
	Bytes   int64         `json:"bytes"`
	Summary csrgo.Summary `json:"summary"`
}

func inspect(ctx context.Context, store blobstore.BlobStore, name string, opts snapshot.Options) (any, error) {
	isSnap, err := isSnapshot(ctx, store, name)
	if err != nil {
		return nil, err
	}
	if isSnap {
		return snapshot.Stat(ctx, store, name, opts)
	}

	data, err := blobstore.ReadAll(ctx, store, name)
	if err != nil {
		return nil, err
	}
	ds := csrgo.New(csrgo.WithLogger(opts.Logger))
	if err := ds.Load(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return rawReport{Name: name, Format: "binary", Bytes: int64(len(data)), Summary: ds.Summary()}, nil
}

func isSnapshot(ctx context.Context, store blobstore.BlobStore, name string) (bool, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return false, err
	}
	defer b.Close()

	var magic [4]byte
	if _, err := b.ReadAt(ctx, magic[:], 0); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return string(magic[:]) == "CSRS", nil
}
