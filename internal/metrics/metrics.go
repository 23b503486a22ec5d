package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moffa90/go-hidboot/device"
	"github.com/moffa90/go-hidboot/protocol"
)

// NewRegistry returns a registry with the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// DeviceMetrics counts bootloader activity. It implements device.Observer.
type DeviceMetrics struct {
	CommandsTotal *prometheus.CounterVec // labels: op
	DroppedTotal  *prometheus.CounterVec // labels: op, reason
	BlocksTotal   prometheus.Counter
	FaultsTotal   prometheus.Counter
	LastBlockWord prometheus.Gauge
}

var _ device.Observer = (*DeviceMetrics)(nil)

// NewDeviceMetrics registers and returns the bootloader metrics.
func NewDeviceMetrics(reg prometheus.Registerer) *DeviceMetrics {
	m := &DeviceMetrics{
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hidboot_commands_total",
			Help: "Commands processed by opcode.",
		}, []string{"op"}),
		DroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hidboot_commands_dropped_total",
			Help: "Commands or data that had no effect, by opcode and reason.",
		}, []string{"op", "reason"}),
		BlocksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hidboot_blocks_committed_total",
			Help: "Write blocks committed to flash.",
		}),
		FaultsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hidboot_faults_total",
			Help: "Refused NVM commits.",
		}),
		LastBlockWord: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hidboot_last_block_word",
			Help: "Word address of the most recently committed block.",
		}),
	}
	reg.MustRegister(m.CommandsTotal, m.DroppedTotal, m.BlocksTotal, m.FaultsTotal, m.LastBlockWord)
	return m
}

// CommandStarted counts a command by opcode.
func (m *DeviceMetrics) CommandStarted(op protocol.Opcode) {
	m.CommandsTotal.WithLabelValues(op.String()).Inc()
}

// CommandDropped counts a command that had no effect.
func (m *DeviceMetrics) CommandDropped(op protocol.Opcode, reason device.DropReason) {
	m.DroppedTotal.WithLabelValues(op.String(), string(reason)).Inc()
}

// BlockCommitted counts a block write and records its word address.
func (m *DeviceMetrics) BlockCommitted(word uint32) {
	m.BlocksTotal.Inc()
	m.LastBlockWord.Set(float64(word))
}

// Faulted counts a refused NVM commit.
func (m *DeviceMetrics) Faulted(error) {
	m.FaultsTotal.Inc()
}
