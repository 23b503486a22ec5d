package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DeviceConfig selects how the host reaches the bootloader.
type DeviceConfig struct {
	// Transport is "usb" or "serial"
	Transport string        `mapstructure:"transport"`
	Serial    string        `mapstructure:"serial"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// SerialConfig describes the serial line used by the serial transport and
// the simulator.
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baudRate"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

// ProgrammerConfig tunes the host programmer.
type ProgrammerConfig struct {
	ChunkSize     int           `mapstructure:"chunkSize"`
	Retries       int           `mapstructure:"retries"`
	Verify        bool          `mapstructure:"verify"`
	ConfigWords   bool          `mapstructure:"configWords"`
	SkipBlank     bool          `mapstructure:"skipBlank"`
	CommandRate   float64       `mapstructure:"commandRate"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ResetAfterRun bool          `mapstructure:"resetAfterRun"`
}

// SimulatorConfig configures the simulated device.
type SimulatorConfig struct {
	ResetHold    time.Duration `mapstructure:"resetHold"`
	PollInterval time.Duration `mapstructure:"pollInterval"`
}

// LumberjackConfig is the rotating log file configuration.
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig sets the log level and outputs.
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig controls the Prometheus endpoint of the simulator.
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Addr   string `mapstructure:"addr"`
	Path   string `mapstructure:"path"`
}

// Config is the top-level configuration.
type Config struct {
	Device     DeviceConfig     `mapstructure:"device"`
	Serial     SerialConfig     `mapstructure:"serial"`
	Programmer ProgrammerConfig `mapstructure:"programmer"`
	Simulator  SimulatorConfig  `mapstructure:"simulator"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// EnvPrefix is the prefix of environment overrides, e.g.
// HIDBOOT_DEVICE_TRANSPORT=serial.
const EnvPrefix = "HIDBOOT"

// Load reads configuration from a YAML/TOML/JSON file, the environment and
// command line flags, in increasing order of precedence.
// If path is empty, HIDBOOT_CONFIG is tried, then configs/hidboot.yaml.
// A missing default file is not an error.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = v.GetString("config")
	}
	if path == "" && flags != nil {
		path, _ = flags.GetString("config")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("hidboot")
		v.SetConfigType("yaml")
	}

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot check by type.
func (c *Config) Validate() error {
	switch c.Device.Transport {
	case "usb", "serial":
	default:
		return fmt.Errorf("device.transport must be usb or serial, got %q", c.Device.Transport)
	}
	if c.Device.Transport == "serial" && c.Serial.Port == "" {
		return errors.New("serial.port is required for the serial transport")
	}
	if c.Programmer.ChunkSize < 1 || c.Programmer.ChunkSize > 58 {
		return fmt.Errorf("programmer.chunkSize must be 1..58, got %d", c.Programmer.ChunkSize)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("device.transport", "usb")
	v.SetDefault("device.serial", "")
	v.SetDefault("device.timeout", "2s")

	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baudRate", 115200)
	v.SetDefault("serial.readTimeout", "100ms")

	v.SetDefault("programmer.chunkSize", 58)
	v.SetDefault("programmer.retries", 3)
	v.SetDefault("programmer.verify", true)
	v.SetDefault("programmer.configWords", false)
	v.SetDefault("programmer.skipBlank", true)
	v.SetDefault("programmer.commandRate", 0)
	v.SetDefault("programmer.timeout", "5m")
	v.SetDefault("programmer.resetAfterRun", true)

	v.SetDefault("simulator.resetHold", "100ms")
	v.SetDefault("simulator.pollInterval", "200us")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 30)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.addr", ":9464")
	v.SetDefault("metrics.path", "/metrics")
}
