package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/moffa90/go-hidboot/bootloader"
	"github.com/moffa90/go-hidboot/hexfile"
	"github.com/moffa90/go-hidboot/internal/config"
	"github.com/moffa90/go-hidboot/internal/metrics"
	"github.com/moffa90/go-hidboot/nvm"
	"github.com/moffa90/go-hidboot/transport"
)

type running struct {
	sim    *simulator
	host   *transport.SerialConn
	obs    *metrics.DeviceMetrics
	reg    *prometheus.Registry
	cancel context.CancelFunc
	done   chan error
}

func (r *running) stop(t *testing.T) {
	t.Helper()
	r.cancel()
	select {
	case err := <-r.done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("simulator did not stop")
	}
}

func counter(c prometheus.Counter) float64 {
	var m dto.Metric
	_ = c.Write(&m)
	return m.GetCounter().GetValue()
}

func startSimulator(t *testing.T) *running {
	t.Helper()
	a, b := net.Pipe()
	reg := metrics.NewRegistry()
	obs := metrics.NewDeviceMetrics(reg)

	s, err := newSimulator(b, config.SimulatorConfig{ResetHold: time.Millisecond}, zap.NewNop(), obs)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r := &running{sim: s, host: transport.NewSerialConn(a), obs: obs, reg: reg, cancel: cancel, done: make(chan error, 1)}
	go func() { r.done <- s.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		r.host.Close()
		s.Close()
	})
	return r
}

func TestSimulatorProgramsOverSerial(t *testing.T) {
	r := startSimulator(t)

	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i) & 0x3F
	}
	img := &hexfile.Image{Segments: []hexfile.Segment{{Address: 0x1240, Data: data}}}

	prog := bootloader.New(r.host, bootloader.WithTimeout(10*time.Second))
	require.NoError(t, prog.Program(context.Background(), img))

	// RESET_DEVICE has no response; wait until the device has taken it.
	require.Eventually(t, func() bool {
		return counter(r.obs.CommandsTotal.WithLabelValues("RESET_DEVICE")) == 1
	}, 2*time.Second, time.Millisecond)
	r.stop(t)

	mem := r.sim.memory
	g := mem.Geometry()
	assert.Equal(t, g.SignatureWordValue(), mem.Read(nvm.SpaceProgram, g.SignatureWord))
	assert.Equal(t, uint16(0x0100), mem.Read(nvm.SpaceProgram, 0x920))
	assert.Equal(t, uint16(0x0302), mem.Read(nvm.SpaceProgram, 0x921))
	assert.Equal(t, 1, r.sim.platform.Resets())

	srv := httptest.NewServer(metricsMux("/metrics", r.reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `hidboot_commands_total{op="ERASE_DEVICE"} 1`)
	assert.Contains(t, string(body), `hidboot_commands_total{op="SIGN_FLASH"} 1`)
}

func TestSimulatorPreload(t *testing.T) {
	_, b := net.Pipe()
	s, err := newSimulator(b, config.SimulatorConfig{}, zap.NewNop(), metrics.NewDeviceMetrics(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, defaultPollInterval, s.interval)

	img := &hexfile.Image{Segments: []hexfile.Segment{
		{Address: 0x1204, Data: []byte{0x03, 0x01}},
		{Address: 0x10000, Data: []byte{0x12, 0x00}},
	}}
	s.Preload(img)

	assert.Equal(t, uint16(0x0103), s.memory.Read(nvm.SpaceProgram, 0x902))
	assert.Equal(t, s.memory.Geometry().BlankWord, s.memory.Read(nvm.SpaceConfig, 0x8000), "config space is not preloaded")
}

func TestSimulatorStopsOnLinkFailure(t *testing.T) {
	r := startSimulator(t)

	require.NoError(t, r.host.Close())

	select {
	case err := <-r.done:
		require.Error(t, err)
		assert.False(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("simulator kept running after the link failed")
	}
}
