package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"gitlab.com/d21d3q/segdump/internal/broadcast"
	"gitlab.com/d21d3q/segdump/internal/options"
	"gitlab.com/d21d3q/segdump/internal/source"
	"gitlab.com/d21d3q/segdump/pkg/segdump"
)

var (
	rootCmd = &cobra.Command{
		Use:   "segdump",
		Short: "Decode channel-multiplexed segment streams",
		Long: `segdump reads a raw byte stream, one byte at a time, and prints every data byte
as format, channel, segment number, hex, decimal, segment code and character.
Control bytes (>= 127) that select a new channel are printed as END/START FRAME markers.
The lanes and frames outputs assemble each channel's segments into a display instead.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := options.BindFlags(cfg, cmd.Flags()); err != nil {
				return err
			}
			return options.ReadFile(cfg, configPath)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := options.Load(cfg)
			if err != nil {
				return err
			}
			logrus.SetLevel(opts.LogLevel)
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cfg        = options.New()
	configPath string
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to a config file (yaml, json or toml)")
	flags.Int("max-lines", options.DefaultMaxLines, "iteration cap; at most max-lines-1 bytes are decoded")
	flags.StringP("file", "f", "", "read a capture file instead of stdin")
	flags.StringP("port", "p", "", "read a serial port instead of stdin")
	flags.Uint("baud-rate", 9600, "serial baud rate")
	flags.Uint("data-bits", 8, "serial data bits")
	flags.Uint("stop-bits", 1, "serial stop bits")
	flags.String("parity-mode", "even", "serial parity: none, odd or even")
	flags.Bool("replay", false, "rewind the capture file at EOF and keep decoding")
	flags.Duration("replay-interval", options.DefaultReplayInterval, "delay before each replayed byte")
	flags.StringP("output", "o", options.OutputText, "output format: text, json, lanes or frames")
	flags.String("listen", "", "serve assembled frames to websocket clients on this address (path "+broadcast.Path+")")
	flags.String("log-level", "info", "log level: panic, fatal, error, warn, info, debug, trace")
}

func main() {
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.Fatal(err)
	}
}

func run(ctx context.Context, opts options.Options, out io.Writer) error {
	src, err := openSource(opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := src.Close(); err != nil {
			logrus.WithError(err).Warn("failed to close input")
		}
	}()

	sink, err := segdump.NewSink(opts.Output, out)
	if err != nil {
		return err
	}
	if opts.Listen != "" {
		srv := broadcast.New(opts.Listen)
		srv.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Close(ctx); err != nil {
				logrus.WithError(err).Warn("failed to stop websocket server")
			}
		}()
		sink = segdump.NewPublishingSink(sink, srv)
	}

	summary, err := segdump.Run(ctx, src, sink, segdump.Options{MaxLines: opts.MaxLines})
	logrus.WithFields(logrus.Fields{
		"reason":    summary.Reason,
		"processed": summary.Processed,
	}).Debug("run finished")
	return err
}

func openSource(opts options.Options) (*source.Reader, error) {
	switch {
	case opts.File != "" && opts.Replay:
		logrus.WithFields(logrus.Fields{
			"file":     opts.File,
			"interval": opts.ReplayInterval,
		}).Info("replaying capture file")
		return source.OpenReplay(opts.File, opts.ReplayInterval)
	case opts.File != "":
		logrus.WithField("file", opts.File).Info("reading capture file")
		return source.OpenFile(opts.File)
	case opts.Port != "":
		logrus.WithFields(logrus.Fields{
			"port": opts.Port,
			"baud": opts.BaudRate,
		}).Info("reading serial port")
		return source.OpenSerial(source.SerialConfig{
			Port:     opts.Port,
			BaudRate: opts.BaudRate,
			DataBits: opts.DataBits,
			StopBits: opts.StopBits,
			Parity:   opts.Parity,
		})
	default:
		logrus.Info("Enter input (Ctrl+D to end):")
		return source.Stdin(), nil
	}
}
