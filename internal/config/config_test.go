package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "usb", cfg.Device.Transport)
	assert.Equal(t, 2*time.Second, cfg.Device.Timeout)
	assert.Equal(t, 58, cfg.Programmer.ChunkSize)
	assert.True(t, cfg.Programmer.Verify)
	assert.False(t, cfg.Programmer.ConfigWords)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 100*time.Millisecond, cfg.Simulator.ResetHold)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoadFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hidboot.yaml")
	content := `
device:
  transport: serial
serial:
  port: /dev/ttyUSB0
programmer:
  chunkSize: 32
  retries: 1
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("HIDBOOT_PROGRAMMER_RETRIES", "7")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"--chunk-size=16"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "serial", cfg.Device.Transport)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 16, cfg.Programmer.ChunkSize, "flag wins over file")
	assert.Equal(t, 7, cfg.Programmer.Retries, "env wins over file")
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  format: json\n"), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse([]string{"-c", path}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "usb", cfg.Device.Transport, "unset flags keep the default")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Device:     DeviceConfig{Transport: "usb"},
			Programmer: ProgrammerConfig{ChunkSize: 58},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "unknown transport", mutate: func(c *Config) { c.Device.Transport = "bluetooth" }, wantErr: true},
		{name: "serial without port", mutate: func(c *Config) { c.Device.Transport = "serial" }, wantErr: true},
		{name: "serial with port", mutate: func(c *Config) {
			c.Device.Transport = "serial"
			c.Serial.Port = "COM4"
		}},
		{name: "chunk too large", mutate: func(c *Config) { c.Programmer.ChunkSize = 64 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			if tt.wantErr {
				assert.Error(t, c.Validate())
			} else {
				assert.NoError(t, c.Validate())
			}
		})
	}
}
