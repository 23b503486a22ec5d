// Command hidboot updates firmware on devices running the HID flash
// bootloader, over USB or a serial bridge.
//
// Usage:
//
//	hidboot [flags] query
//	hidboot [flags] erase
//	hidboot [flags] program <firmware.hex>
//	hidboot [flags] verify <firmware.hex>
//	hidboot [flags] read <address> <length>
//	hidboot [flags] sign
//	hidboot [flags] reset
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/moffa90/go-hidboot/internal/config"
	"github.com/moffa90/go-hidboot/internal/logging"
)

var errUsage = errors.New("usage")

func main() {
	flags := pflag.NewFlagSet("hidboot", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	flags.Usage = func() { usage(flags) }

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	cfg, err := config.Load("", flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hidboot: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hidboot: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, flags.Args()); err != nil {
		if errors.Is(err, errUsage) {
			usage(flags)
			os.Exit(2)
		}
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func usage(flags *pflag.FlagSet) {
	fmt.Fprintln(os.Stderr, "Usage: hidboot [flags] <command> [args]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-30s %s\n", c.name+" "+c.args, c.help)
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Flags:")
	flags.PrintDefaults()
}
