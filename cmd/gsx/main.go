// Command gsx sends a file with XMODEM or XMODEM-1K.
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

	oneK    bool
	retries int
	padByte uint8
)

var rootCmd = &cobra.Command{
	Use:     "gsx [flags] file",
	Short:   "Send a file with XMODEM",
	Version: version,
	Example: `  gsx --port /dev/ttyUSB0 firmware.bin       # send over a serial port
  gsx --1k --ssh pi@board --insecure data.bin # run rx on a remote host
  gsx -v file.txt                             # send over stdin/stdout`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(args[0])
	},
}

func init() {
	channelFlags.AddFlags(rootCmd)
	outputFlags.AddFlags(rootCmd)
	rootCmd.Flags().BoolVarP(&oneK, "1k", "k", false, "send 1024-byte blocks")
	rootCmd.Flags().IntVar(&retries, "retries", xmodem.DefaultMaxErrors, "error budget before giving up")
	rootCmd.Flags().Uint8Var(&padByte, "pad", xmodem.CPMEOF, "byte used to pad the last block")
}

func send(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	name := filepath.Base(path)

	ctx, stop := cli.SignalContext()
	defer stop()

	out, err := outputFlags.Setup("send")
	if err != nil {
		return err
	}
	defer out.Close()

	conn, err := channelFlags.Open("rx " + name)
	if err != nil {
		return err
	}
	defer conn.Close()

	cfg := xmodem.DefaultConfig()
	cfg.MaxErrors = retries
	cfg.PadByte = padByte
	cfg.Name = name
	cfg.ExpectedSize = info.Size()
	if oneK {
		cfg.BlockLength = xmodem.BlockOneK
	}

	ch := out.Trace(cli.NewInterruptible(ctx, conn))
	opts := append([]xmodem.Option{xmodem.WithConfig(cfg)}, out.Options(name)...)
	session := xmodem.NewSession(ch, opts...)

	if _, err := session.Send(file); err != nil {
		if ctx.Err() != nil {
			cli.Abort(conn)
			return fmt.Errorf("interrupted sending %s", name)
		}
		return fmt.Errorf("sending %s: %w", name, err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", rootCmd.Name(), err)
		os.Exit(1)
	}
}
