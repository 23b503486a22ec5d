package main

import (
	"fmt"
	"io"

	"github.com/google/gousb"
	"go.uber.org/zap"

	"github.com/moffa90/go-hidboot/internal/config"
	"github.com/moffa90/go-hidboot/transport"
)

// usbDevice closes the libusb context along with the device.
type usbDevice struct {
	*transport.USBHID
	ctx *gousb.Context
}

func (d *usbDevice) Close() error {
	err := d.USBHID.Close()
	if cerr := d.ctx.Close(); err == nil {
		err = cerr
	}
	return err
}

func openDevice(cfg *config.Config, logger *zap.Logger) (io.ReadWriteCloser, error) {
	switch cfg.Device.Transport {
	case "serial":
		port, err := transport.OpenSerial(transport.SerialConfig{
			Port:        cfg.Serial.Port,
			BaudRate:    cfg.Serial.BaudRate,
			ReadTimeout: cfg.Serial.ReadTimeout,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("opened serial bridge", zap.String("port", cfg.Serial.Port), zap.Int("baud", cfg.Serial.BaudRate))
		return transport.NewSerialConn(port), nil

	case "usb":
		ctx := gousb.NewContext()
		dev, err := transport.OpenUSBHID(ctx, cfg.Device.Serial, cfg.Device.Timeout)
		if err != nil {
			ctx.Close()
			return nil, err
		}
		logger.Info("opened USB bootloader", zap.String("product", dev.Product), zap.String("serial", dev.Serial))
		return &usbDevice{USBHID: dev, ctx: ctx}, nil

	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Device.Transport)
	}
}
