// Command grx receives a file with XMODEM or XMODEM-1K.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/drunlade/go-xmodem/internal/cli"
	"github.com/drunlade/go-xmodem/xmodem"
)

const version = "0.1.0"

var (
	channelFlags cli.ChannelFlags
	outputFlags  cli.OutputFlags

	useCRC    bool
	retries   int
	overwrite bool
)

var rootCmd = &cobra.Command{
	Use:     "grx [flags] file",
	Short:   "Receive a file with XMODEM",
	Version: version,
	Example: `  grx --crc --port /dev/ttyUSB0 dump.bin          # receive over a serial port
  grx --ssh pi@board --remote "sx log.txt" log.txt # run sx on a remote host`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return receive(args[0])
	},
}

func init() {
	channelFlags.AddFlags(rootCmd)
	outputFlags.AddFlags(rootCmd)
	rootCmd.Flags().BoolVarP(&useCRC, "crc", "c", false, "request CRC-16 instead of the 8-bit checksum")
	rootCmd.Flags().IntVar(&retries, "retries", xmodem.DefaultMaxErrors, "error budget before giving up")
	rootCmd.Flags().BoolVarP(&overwrite, "overwrite", "y", false, "replace an existing file")
}

func receive(path string) error {
	file, err := cli.CreateOutput(path, overwrite)
	if err != nil {
		return err
	}
	name := filepath.Base(path)

	ctx, stop := cli.SignalContext()
	defer stop()

	out, err := outputFlags.Setup("recv")
	if err != nil {
		file.Discard()
		return err
	}
	defer out.Close()

	conn, err := channelFlags.Open("sx " + name)
	if err != nil {
		file.Discard()
		return err
	}
	defer conn.Close()

	mode := xmodem.ChecksumStandard
	if useCRC {
		mode = xmodem.ChecksumCRC16
	}

	cfg := xmodem.DefaultConfig()
	cfg.MaxErrors = retries
	cfg.Name = name

	ch := out.Trace(cli.NewInterruptible(ctx, conn))
	opts := append([]xmodem.Option{xmodem.WithConfig(cfg)}, out.Options(name)...)
	session := xmodem.NewSession(ch, opts...)

	_, err = session.Recv(file, mode)
	if err == nil {
		err = file.Commit()
	} else {
		file.Discard()
	}
	if err != nil {
		if ctx.Err() != nil {
			cli.Abort(conn)
			return fmt.Errorf("interrupted receiving %s", name)
		}
		return fmt.Errorf("receiving %s: %w", name, err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", rootCmd.Name(), err)
		os.Exit(1)
	}
}
