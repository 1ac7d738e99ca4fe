// datastorage converts binary record captures into CSV and acquires raw
// records from the network into capture files. Record layouts are described
// by a schema document (JSON, YAML or CBOR).
//
//	datastorage convert --schema type.json --source type.dat --target type.csv
//	datastorage capture --schema type.json --transport udp --listen :10240 --output type.dat
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/oy3o/binparse/config"
	"github.com/oy3o/binparse/observability"
	"github.com/oy3o/binparse/receiver"
	"github.com/oy3o/binparse/storage"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args[0] {
	case "convert":
		return runConvert(ctx, args[1:])
	case "capture":
		return runCapture(ctx, args[1:])
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: datastorage <command> [flags]

commands:
  convert   decode a capture file into CSV
  capture   receive records from the network into a capture file

run "datastorage <command> --help" for the flags of a command.`)
}

// common holds the flags shared by every command.
type common struct {
	configPath string
	logLevel   string
}

func (c *common) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "path to YAML config file")
	fs.StringVar(&c.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

func (c *common) load() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	log, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("setting up logger: %w", err)
	}
	return cfg, log, nil
}

func parse(fs *pflag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func runConvert(ctx context.Context, args []string) error {
	var (
		flags      common
		schema     string
		source     string
		target     string
		noHeader   bool
		delimiter  string
		specifiers []string
	)
	fs := pflag.NewFlagSet("convert", pflag.ContinueOnError)
	flags.addFlags(fs)
	fs.StringVar(&schema, "schema", "", "schema document describing one record")
	fs.StringVar(&source, "source", "", "capture file to decode (.zst and .lz4 are decompressed)")
	fs.StringVar(&target, "target", "", "CSV file to write")
	fs.BoolVar(&noHeader, "no-header", false, "omit the header line")
	fs.StringVar(&delimiter, "delimiter", "", "text written between values")
	fs.StringArrayVar(&specifiers, "specifier", nil, "per-kind format, e.g. float=%.2f (repeatable)")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	cfg, log, err := flags.load()
	if err != nil {
		return err
	}
	defer log.Sync()

	opt := cfg.Convert
	override(&opt.Schema, schema)
	override(&opt.Source, source)
	override(&opt.Target, target)
	if noHeader {
		opt.Header = false
	}
	if fs.Changed("delimiter") {
		cfg.Format.Delimiter = delimiter
	}
	for _, s := range specifiers {
		kind, spec, ok := strings.Cut(s, "=")
		if !ok {
			return fmt.Errorf("invalid --specifier %q, want kind=format", s)
		}
		if cfg.Format.Specifiers == nil {
			cfg.Format.Specifiers = make(map[string]string)
		}
		cfg.Format.Specifiers[kind] = spec
	}
	format, err := cfg.Format.Build()
	if err != nil {
		return err
	}

	converter := storage.NewConverter(storage.ConverterOptions{
		Schema:        opt.Schema,
		Source:        opt.Source,
		Target:        opt.Target,
		Format:        format,
		Header:        opt.Header,
		ProgressEvery: opt.ProgressEvery,
		Logger:        log,
	})
	if err := converter.Prepare(); err != nil {
		converter.Close()
		return err
	}
	defer converter.Close()
	return converter.Run(ctx)
}

func runCapture(ctx context.Context, args []string) error {
	var (
		flags     common
		schema    string
		transport string
		listen    string
		output    string
	)
	fs := pflag.NewFlagSet("capture", pflag.ContinueOnError)
	flags.addFlags(fs)
	fs.StringVar(&schema, "schema", "", "schema document describing one record")
	fs.StringVar(&transport, "transport", "", "udp, tcp, or file (replay a capture file)")
	fs.StringVar(&listen, "listen", "", "listen address, or the source path for --transport file")
	fs.StringVar(&output, "output", "", "capture file to write (.zst and .lz4 are compressed)")
	period := fs.Duration("period", 0, "acquisition interval (default from config)")
	if ok, err := parse(fs, args); !ok {
		return err
	}

	cfg, log, err := flags.load()
	if err != nil {
		return err
	}
	defer log.Sync()

	opt := cfg.Capture
	override(&opt.Schema, schema)
	override(&opt.Transport, strings.ToLower(transport))
	override(&opt.Listen, listen)
	override(&opt.Output, output)
	if fs.Changed("period") {
		opt.Period = *period
	}

	var recv receiver.Receiver
	switch opt.Transport {
	case "udp":
		recv, err = receiver.ListenUDP(ctx, opt.Listen, log)
	case "tcp":
		recv, err = receiver.ListenTCP(ctx, opt.Listen, log)
	case "file":
		recv, err = receiver.OpenFile(opt.Listen)
	default:
		err = fmt.Errorf("unknown transport %q", opt.Transport)
	}
	if err != nil {
		return err
	}
	defer recv.Close()

	task, err := storage.NewTask(recv, storage.TaskOptions{
		Schema:    opt.Schema,
		Output:    opt.Output,
		Period:    opt.Period,
		StopOnEOF: opt.Transport == "file",
		Logger:    log,
	})
	if err != nil {
		return err
	}
	defer task.Close()

	// a blocked receive is interrupted by closing the receiver
	context.AfterFunc(ctx, func() { recv.Close() })
	return task.Run(ctx)
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
