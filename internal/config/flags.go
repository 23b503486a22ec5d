package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps command line flag names to configuration keys.
var flagKeys = map[string]string{
	"transport":    "device.transport",
	"usb-serial":   "device.serial",
	"timeout":      "device.timeout",
	"port":         "serial.port",
	"baud":         "serial.baudRate",
	"chunk-size":   "programmer.chunkSize",
	"retries":      "programmer.retries",
	"verify":       "programmer.verify",
	"config-words": "programmer.configWords",
	"skip-blank":   "programmer.skipBlank",
	"rate":         "programmer.commandRate",
	"reset":        "programmer.resetAfterRun",
	"log-level":    "logging.level",
	"log-format":   "logging.format",
	"log-file":     "logging.file.filename",
	"metrics-addr": "metrics.addr",
	"reset-hold":   "simulator.resetHold",
}

// RegisterFlags adds the common flags to fs. Defaults shown in the help
// text match setDefaults; a flag only overrides the file and environment
// when it is set explicitly.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "config file (default ./configs/hidboot.yaml)")

	fs.StringP("transport", "t", "usb", "transport: usb or serial")
	fs.String("usb-serial", "", "USB serial number of the device to open")
	fs.Duration("timeout", 0, "per-transfer timeout")
	fs.StringP("port", "p", "", "serial port")
	fs.Int("baud", 115200, "serial baud rate")

	fs.Int("chunk-size", 58, "bytes per PROGRAM_DEVICE/GET_DATA packet")
	fs.Int("retries", 3, "retries for query and read transfers")
	fs.Bool("verify", true, "read back and compare after programming")
	fs.Bool("config-words", false, "program configuration words")
	fs.Bool("skip-blank", true, "skip runs of blank words")
	fs.Float64("rate", 0, "maximum commands per second (0 = unlimited)")
	fs.Bool("reset", true, "reset the device after programming")

	fs.String("log-level", "info", "log level: debug, info, warn, error")
	fs.String("log-format", "console", "log format: console or json")
	fs.String("log-file", "", "also log to a rotating file")

	fs.String("metrics-addr", ":9464", "simulator metrics listen address")
	fs.Duration("reset-hold", 0, "simulator detach time on RESET_DEVICE")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}
