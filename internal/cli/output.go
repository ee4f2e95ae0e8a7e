package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/drunlade/go-xmodem/internal/metrics"
	"github.com/drunlade/go-xmodem/xmodem"
)

// OutputFlags controls what a command reports and where.
type OutputFlags struct {
	LogFile     string
	MetricsAddr string
	Verbose     bool
	Quiet       bool
}

// AddFlags registers the output flags on cmd.
func (f *OutputFlags) AddFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.LogFile, "log", "", "write a protocol trace to this file")
	cmd.Flags().StringVar(&f.MetricsAddr, "metrics", "", "serve Prometheus metrics on this address")
	cmd.Flags().BoolVarP(&f.Verbose, "verbose", "v", false, "show progress")
	cmd.Flags().BoolVarP(&f.Quiet, "quiet", "q", false, "print nothing but errors")

	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
}

// Output is the per-run reporting state built from OutputFlags.
type Output struct {
	flags  *OutputFlags
	stderr io.Writer
	logger *xmodem.WriterLogger
	stats  *metrics.Transfer
}

// Setup opens the trace log and starts the metrics server if requested.
// Progress and results are printed to stderr, which stays clear of the
// channel when the transfer runs over stdin/stdout.
func (f *OutputFlags) Setup(direction string) (*Output, error) {
	o := &Output{flags: f, stderr: os.Stderr}
	if f.LogFile != "" {
		logger, err := xmodem.NewFileLogger(f.LogFile)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		o.logger = logger
	}
	if f.MetricsAddr != "" {
		o.stats = metrics.New(direction)
		o.stats.StartPrometheus(f.MetricsAddr)
	}
	return o, nil
}

// Trace wraps ch so its traffic goes to the trace log, if one is open.
func (o *Output) Trace(ch xmodem.Channel) xmodem.Channel {
	if o.logger == nil {
		return ch
	}
	return xmodem.NewLoggingChannel(ch, o.logger, "wire")
}

// Options returns the session options for logging, progress and metrics.
func (o *Output) Options(name string) []xmodem.Option {
	var opts []xmodem.Option
	if o.logger != nil {
		opts = append(opts, xmodem.WithLogger(o.logger))
	}
	opts = append(opts, xmodem.WithCallbacks(o.callbacks(name)))
	return opts
}

func (o *Output) callbacks(name string) *xmodem.Callbacks {
	cb := &xmodem.Callbacks{
		OnProgress: func(transferred, total int64, rate float64) {
			if !o.flags.Verbose {
				return
			}
			if total > 0 {
				percent := float64(transferred) / float64(total) * 100
				fmt.Fprintf(o.stderr, "\r%s: %.1f%% (%.0f bytes/s)", name, percent, rate)
			} else {
				fmt.Fprintf(o.stderr, "\r%s: %d bytes (%.0f bytes/s)", name, transferred, rate)
			}
		},
		OnComplete: func(n int64, d time.Duration) {
			if o.flags.Quiet {
				return
			}
			if o.flags.Verbose {
				fmt.Fprintf(o.stderr, "\nCompleted: %s (%d bytes in %v)\n", name, n, d.Round(time.Millisecond))
			} else {
				fmt.Fprintf(o.stderr, "%s\n", name)
			}
		},
		OnError: func(err error, context string) {
			if o.flags.Verbose {
				fmt.Fprintln(o.stderr)
			}
		},
	}
	if o.stats != nil {
		cb.OnEvent = o.stats.Observe
	}
	return cb
}

// Close closes the trace log.
func (o *Output) Close() error {
	if o.logger != nil {
		return o.logger.Close()
	}
	return nil
}
