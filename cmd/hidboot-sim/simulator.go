package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/moffa90/go-hidboot/device"
	"github.com/moffa90/go-hidboot/hexfile"
	"github.com/moffa90/go-hidboot/internal/config"
	"github.com/moffa90/go-hidboot/internal/metrics"
	"github.com/moffa90/go-hidboot/nvm"
	"github.com/moffa90/go-hidboot/sim"
	"github.com/moffa90/go-hidboot/transport"
)

const defaultPollInterval = 200 * time.Microsecond

// simulator is a bootloader polled on a timer behind a serial endpoint.
type simulator struct {
	endpoint *transport.SerialEndpoint
	memory   *nvm.Memory
	platform *sim.Platform
	bl       *device.Bootloader
	interval time.Duration
	log      *zap.Logger
}

func newSimulator(port io.ReadWriteCloser, cfg config.SimulatorConfig, logger *zap.Logger, obs device.Observer) (*simulator, error) {
	geom := nvm.PIC16F145x()
	ep := transport.NewSerialEndpoint(port, logger)

	s := &simulator{
		endpoint: ep,
		memory:   nvm.NewMemory(geom),
		platform: sim.NewPlatform(),
		interval: cfg.PollInterval,
		log:      logger.Named("sim"),
	}
	if s.interval <= 0 {
		s.interval = defaultPollInterval
	}

	opts := []device.Option{device.WithLogger(logger), device.WithObserver(obs)}
	if cfg.ResetHold > 0 {
		opts = append(opts, device.WithResetHold(cfg.ResetHold))
	}
	bl, err := device.New(ep, s.memory, s.platform, geom, opts...)
	if err != nil {
		ep.Close()
		return nil, fmt.Errorf("create bootloader: %w", err)
	}
	s.bl = bl
	return s, nil
}

// Preload seeds program memory with the image's application bytes.
func (s *simulator) Preload(img *hexfile.Image) {
	g := s.memory.Geometry()
	app := img.Clip(0, g.AppByteEnd())
	for _, seg := range app.Segments {
		sim.Load(s.memory, seg.Address, seg.Data)
	}
}

// Run polls the bootloader until ctx is done, the link fails or the
// bootloader faults.
func (s *simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		// Drain everything that is ready before sleeping again.
		for i := 0; i < 4; i++ {
			if err := s.bl.Poll(); err != nil {
				return fmt.Errorf("bootloader halted: %w", err)
			}
		}
		if err := s.endpoint.Err(); err != nil {
			return fmt.Errorf("serial link: %w", err)
		}
	}
}

func (s *simulator) Close() error {
	return s.endpoint.Close()
}

func metricsMux(path string, reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler(reg))
	return mux
}
