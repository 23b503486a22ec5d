package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/moffa90/go-hidboot/protocol"
)

// SerialConfig describes a serial line.
type SerialConfig struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

// OpenSerial opens a serial port at 8N1 with the configured read timeout.
func OpenSerial(cfg SerialConfig) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}
	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			port.Close()
			return nil, fmt.Errorf("set read timeout: %w", err)
		}
	}
	return port, nil
}

// SerialConn is a host connection that exchanges whole packets over a
// byte stream. After Read returns ErrShortFrame the connection should be
// closed and reopened.
type SerialConn struct {
	rw io.ReadWriteCloser
}

// NewSerialConn wraps an open port or any other byte stream.
func NewSerialConn(rw io.ReadWriteCloser) *SerialConn {
	return &SerialConn{rw: rw}
}

// Write sends p as one frame, zero padded to 64 bytes.
func (c *SerialConn) Write(p []byte) (int, error) {
	if err := writeFrame(c.rw, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Read receives one frame.
func (c *SerialConn) Read(p []byte) (int, error) {
	var pkt protocol.Packet
	if err := readFrame(c.rw, &pkt); err != nil {
		return 0, err
	}
	return copy(p, pkt[:]), nil
}

// Close closes the underlying stream.
func (c *SerialConn) Close() error {
	return c.rw.Close()
}

// SerialEndpoint is the device end of a serial link. It implements
// device.Transport and device.Detacher on top of a reader and a writer
// goroutine, so the bootloader can keep polling without blocking.
//
// Like a USB IN endpoint it holds at most one outbound packet. A partial
// frame takes the link down for good; Err reports ErrShortFrame.
type SerialEndpoint struct {
	port   io.ReadWriteCloser
	logger *zap.Logger

	in     chan protocol.Packet
	out    chan protocol.Packet
	active atomic.Bool

	mu  sync.Mutex
	err error

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSerialEndpoint starts serving the port.
func NewSerialEndpoint(port io.ReadWriteCloser, logger *zap.Logger) *SerialEndpoint {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &SerialEndpoint{
		port:   port,
		logger: logger.Named("serial"),
		in:     make(chan protocol.Packet, 1),
		out:    make(chan protocol.Packet, 1),
		done:   make(chan struct{}),
	}
	e.active.Store(true)

	e.wg.Add(2)
	go e.readLoop()
	go e.writeLoop()
	return e
}

func (e *SerialEndpoint) readLoop() {
	defer e.wg.Done()
	for {
		var pkt protocol.Packet
		err := readFrame(e.port, &pkt)
		switch {
		case err == nil:
		case errors.Is(err, ErrTimeout):
			if e.closed() {
				return
			}
			continue
		default:
			if !e.closed() {
				e.fail(err)
			}
			return
		}

		if !e.active.Load() {
			continue
		}
		select {
		case e.in <- pkt:
		case <-e.done:
			return
		}
	}
}

func (e *SerialEndpoint) writeLoop() {
	defer e.wg.Done()
	for {
		select {
		case pkt := <-e.out:
			if err := writeFrame(e.port, pkt[:]); err != nil {
				if !e.closed() {
					e.fail(err)
				}
				return
			}
		case <-e.done:
			return
		}
	}
}

func (e *SerialEndpoint) fail(err error) {
	e.logger.Error("serial link failed", zap.Error(err))
	e.mu.Lock()
	if e.err == nil {
		e.err = err
	}
	e.mu.Unlock()
	e.active.Store(false)
}

func (e *SerialEndpoint) closed() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Receive returns the next packet from the host if one has arrived.
func (e *SerialEndpoint) Receive() (protocol.Packet, bool) {
	select {
	case pkt := <-e.in:
		return pkt, true
	default:
		return protocol.Packet{}, false
	}
}

// SendIfFree queues pkt unless a previous packet is still being written.
func (e *SerialEndpoint) SendIfFree(pkt *protocol.Packet) bool {
	select {
	case e.out <- *pkt:
		return true
	default:
		return false
	}
}

// LinkActive reports whether the link is up and not detached.
func (e *SerialEndpoint) LinkActive() bool {
	return e.active.Load() && e.Err() == nil
}

// Detach takes the link down for hold. Packets arriving meanwhile are lost,
// as they would be on a detached USB device.
func (e *SerialEndpoint) Detach(hold time.Duration) {
	e.active.Store(false)
drain:
	for {
		select {
		case <-e.in:
		default:
			break drain
		}
	}
	time.AfterFunc(hold, func() {
		if e.Err() == nil && !e.closed() {
			e.active.Store(true)
		}
	})
}

// Err returns the error that took the link down, if any.
func (e *SerialEndpoint) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Close stops both goroutines and closes the port.
func (e *SerialEndpoint) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.done)
		err = e.port.Close()
		e.wg.Wait()
	})
	return err
}
