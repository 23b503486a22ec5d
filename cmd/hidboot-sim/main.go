// Command hidboot-sim runs a simulated HID bootloader behind a serial port,
// so the host tools can be exercised without hardware. Connect hidboot to
// the other end of a null-modem pair with --transport serial.
//
// Usage:
//
//	hidboot-sim --port /dev/ttyS1 [--load app.hex] [--metrics-addr :9464]
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/moffa90/go-hidboot/hexfile"
	"github.com/moffa90/go-hidboot/internal/config"
	"github.com/moffa90/go-hidboot/internal/logging"
	"github.com/moffa90/go-hidboot/internal/metrics"
	"github.com/moffa90/go-hidboot/transport"
)

func main() {
	flags := pflag.NewFlagSet("hidboot-sim", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	load := flags.String("load", "", "Intel HEX image to preload into program memory")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	// The simulator always listens on a serial line.
	if f := flags.Lookup("transport"); f != nil && !f.Changed {
		_ = flags.Set("transport", "serial")
	}

	cfg, err := config.Load("", flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hidboot-sim: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hidboot-sim: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, *load); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("simulator stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, load string) error {
	reg := metrics.NewRegistry()
	obs := metrics.NewDeviceMetrics(reg)

	port, err := transport.OpenSerial(transport.SerialConfig{
		Port:        cfg.Serial.Port,
		BaudRate:    cfg.Serial.BaudRate,
		ReadTimeout: cfg.Serial.ReadTimeout,
	})
	if err != nil {
		return err
	}

	s, err := newSimulator(port, cfg.Simulator, logger, obs)
	if err != nil {
		port.Close()
		return err
	}
	defer s.Close()

	if load != "" {
		img, err := hexfile.Parse(load)
		if err != nil {
			return err
		}
		s.Preload(img)
		logger.Info("preloaded image", zap.String("file", load), zap.Int("bytes", img.Size()))
	}

	if cfg.Metrics.Enable {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metricsMux(cfg.Metrics.Path, reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("serving metrics", zap.String("addr", cfg.Metrics.Addr), zap.String("path", cfg.Metrics.Path))
	}

	logger.Info("simulator listening", zap.String("port", cfg.Serial.Port), zap.Int("baud", cfg.Serial.BaudRate))
	return s.Run(ctx)
}
