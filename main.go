package main

import (
	"bufio"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/deflatekit/ckgzip/internal/flate"
	"github.com/deflatekit/ckgzip/internal/progress"
	"github.com/deflatekit/ckgzip/store/sqlitestore"
)

var outputCheckpoint string

func main() {
	root := &cobra.Command{
		Use:   "ckgzip <file.gz>",
		Short: "Decompress a gzip file while emitting random-access checkpoints",
		Long: `ckgzip decodes one or more concatenated gzip members and records a
checkpoint at every DEFLATE block boundary: the bit-exact input position,
the output position, the block type, and a 32 KiB dictionary snapshot.
A companion reader can use those rows to resume decompression at any
block without replaying the stream prefix.

The decompressed payload is consumed internally; its CRC32 is printed at
the end.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], outputCheckpoint)
		},
	}
	root.Flags().StringVarP(&outputCheckpoint, "output-checkpoint", "o", "",
		"path for the checkpoint database (must not already exist)")

	if err := root.Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func run(path, checkpointPath string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	var store *sqlitestore.Store
	if checkpointPath != "" {
		store, err = sqlitestore.Create(checkpointPath)
	} else {
		store, err = sqlitestore.CreateMemory()
	}
	if err != nil {
		return err
	}
	defer store.Close()

	var cp flate.Checkpointer = store
	var bar *progress.Bar
	if terminal.IsTerminal(int(os.Stderr.Fd())) {
		bar = progress.New(store, info.Size(), os.Stderr)
		cp = bar
	}

	logrus.WithFields(logrus.Fields{
		"file": path,
		"size": info.Size(),
	}).Info("decompressing")

	d := flate.NewDecompressor(bufio.NewReader(f), cp)
	sum := crc32.NewIEEE()
	n, err := io.Copy(sum, d)
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return err
	}
	if err := store.Err(); err != nil {
		return err
	}

	if h, ok := d.Header(); ok && h.HasName {
		logrus.WithField("name", h.Name).Info("member name")
	}
	logrus.WithFields(logrus.Fields{
		"bytes":  n,
		"blocks": store.Blocks(),
	}).Info("done")

	fmt.Println("The CRC32 of the decompressed data is...")
	fmt.Printf("%#x\n", sum.Sum32())
	return nil
}
