package device

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/moffa90/go-hidboot/nvm"
	"github.com/moffa90/go-hidboot/protocol"
)

// ErrHalted is returned by Poll once an NVM fault has parked the device.
var ErrHalted = errors.New("bootloader halted")

// State is the dispatcher state.
type State int

const (
	// StateIdle means no command is latched
	StateIdle State = iota

	// StateBusy means a command is latched and waiting to complete,
	// typically for the IN endpoint to accept its response
	StateBusy

	// StateHalted means the unlock primitive faulted; only a reset recovers
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateHalted:
		return "halted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Bootloader is the device-side command dispatcher.
//
// It is single-threaded: Poll must not be called concurrently.
type Bootloader struct {
	tr       Transport
	platform Platform
	ctrl     nvm.Controller
	geom     nvm.Geometry
	config   Config
	log      *zap.Logger

	unlocker *nvm.Unlocker
	blocks   blockWriter
	regions  regionWriter
	signer   signer

	state        State
	request      protocol.Packet
	response     protocol.Packet
	replyReady   bool
	session      session
	configLocked bool
	fault        error
}

// New creates a bootloader driving ctrl through the unlock primitive.
//
// Example:
//
//	bl, err := device.New(usb, flash, cpu, nvm.PIC16F145x(),
//	    device.WithLogger(logger),
//	)
//	for {
//	    if err := bl.Poll(); err != nil {
//	        break
//	    }
//	}
func New(tr Transport, ctrl nvm.Controller, platform Platform, geom nvm.Geometry, opts ...Option) (*Bootloader, error) {
	if tr == nil || ctrl == nil || platform == nil {
		return nil, errors.New("transport, controller and platform are required")
	}
	if err := geom.Validate(); err != nil {
		return nil, fmt.Errorf("invalid geometry: %w", err)
	}

	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	u := nvm.NewUnlocker(ctrl, platform)
	b := &Bootloader{
		tr:       tr,
		platform: platform,
		ctrl:     ctrl,
		geom:     geom,
		config:   config,
		log:      config.Logger.Named("device"),
		unlocker: u,
		blocks:   blockWriter{nvm: u, geom: geom, obs: config.Observer},
		regions:  regionWriter{nvm: u, geom: geom, obs: config.Observer},
		signer:   signer{nvm: u, geom: geom, platform: platform},
	}
	b.init()
	return b, nil
}

// init puts the dispatcher in its power-on state.
func (b *Bootloader) init() {
	b.state = StateIdle
	b.replyReady = false
	b.session = newSession(b.geom.WriteBlockSize)
	b.configLocked = true
	b.fault = nil
}

// Poll runs one step of the dispatcher. It never blocks.
//
// Poll returns nil while the link is inactive or no packet is pending, the
// fault error when a command faults the NVM, and ErrHalted on every call
// after that.
func (b *Bootloader) Poll() error {
	if b.state == StateHalted {
		return ErrHalted
	}
	if !b.tr.LinkActive() {
		return nil
	}

	if b.state == StateIdle {
		pkt, ok := b.tr.Receive()
		if !ok {
			return nil
		}
		b.request = pkt
		b.response = protocol.Packet{}
		b.replyReady = false
		b.state = StateBusy
		b.config.Observer.CommandStarted(pkt.Opcode())
	}

	done, err := b.dispatch()
	if err != nil {
		if nvm.IsFault(err) {
			b.halt(err)
		}
		return err
	}
	if done && b.state == StateBusy {
		b.state = StateIdle
	}
	return nil
}

func (b *Bootloader) dispatch() (bool, error) {
	cmd := protocol.ParseCommand(&b.request)

	switch cmd.Opcode {
	case protocol.OpQueryDevice:
		return b.reply(b.queryDevice)

	case protocol.OpUnlockConfig:
		b.configLocked = cmd.LockValue != protocol.LockValueUnlock
		b.log.Debug("config lock", zap.Bool("locked", b.configLocked))
		return true, nil

	case protocol.OpEraseDevice:
		return true, b.erase()

	case protocol.OpProgramDevice:
		return true, b.program(cmd)

	case protocol.OpProgramComplete:
		err := b.blocks.drain(&b.session)
		b.session.close()
		return true, err

	case protocol.OpGetData:
		return b.reply(func() protocol.Packet { return b.readData(cmd) })

	case protocol.OpResetDevice:
		b.reset()
		return true, nil

	case protocol.OpSignFlash:
		b.log.Debug("signing flash", zap.Uint32("word", b.geom.SignatureWord))
		return true, b.signer.sign()

	case protocol.OpQueryExtendedInfo:
		return b.reply(b.extendedInfo)

	default:
		b.log.Warn("unknown command", zap.Uint8("opcode", uint8(cmd.Opcode)))
		b.config.Observer.CommandDropped(cmd.Opcode, DropUnknownOpcode)
		return true, nil
	}
}

// reply builds the response once and then offers it to the transport on
// every poll until it is accepted.
func (b *Bootloader) reply(build func() protocol.Packet) (bool, error) {
	if !b.replyReady {
		b.response = build()
		b.replyReady = true
	}
	if !b.tr.SendIfFree(&b.response) {
		return false, nil
	}
	b.replyReady = false
	return true, nil
}

func (b *Bootloader) program(cmd protocol.Command) error {
	if cmd.Address >= b.geom.UserIDByteStart() {
		if cmd.Address >= b.geom.ConfigByteStart() && b.configLocked {
			b.log.Warn("config write while locked", zap.Uint32("address", cmd.Address))
			b.config.Observer.CommandDropped(cmd.Opcode, DropConfigLocked)
			return nil
		}
		return b.regions.write(cmd.Address, cmd.Data)
	}

	s := &b.session
	if !s.open() {
		s.cursor = cmd.Address
		b.log.Debug("session opened", zap.Uint32("address", cmd.Address))
	}
	if cmd.Address != s.cursor {
		b.log.Warn("non-contiguous program data dropped",
			zap.Uint32("address", cmd.Address),
			zap.Uint32("expected", s.cursor),
		)
		b.config.Observer.CommandDropped(cmd.Opcode, DropNonContiguous)
		return nil
	}

	for _, v := range cmd.Data {
		s.buf[s.fill] = v
		s.fill++
		s.cursor++
		if s.fill == len(s.buf) {
			if err := b.blocks.flush(s); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Bootloader) erase() error {
	g := b.geom
	b.log.Debug("erasing application", zap.Uint32("from", g.AppStart), zap.Uint32("to", g.UserEnd))

	for word := g.AppStart; word < g.UserEnd; word += g.PageWords() {
		b.platform.ClearWatchdog()
		req := nvm.Request{Space: nvm.SpaceProgram, Mode: nvm.ModeErase, Word: word}
		if err := b.unlocker.Commit(nvm.UnlockToken, req); err != nil {
			return err
		}
	}

	req := nvm.Request{Space: nvm.SpaceConfig, Mode: nvm.ModeErase, Word: g.UserIDStart}
	return b.unlocker.Commit(nvm.UnlockToken, req)
}

func (b *Bootloader) reset() {
	b.log.Info("reset requested", zap.Duration("hold", b.config.ResetHold))
	if d, ok := b.tr.(Detacher); ok {
		d.Detach(b.config.ResetHold)
	}
	b.platform.Reset()
	b.init()
}

func (b *Bootloader) halt(err error) {
	b.log.Error("nvm fault, halting", zap.Error(err))
	b.fault = err
	b.state = StateHalted
	b.session.close()
	b.config.Observer.Faulted(err)
}

// State returns the dispatcher state.
func (b *Bootloader) State() State {
	return b.state
}

// ConfigLocked reports whether configuration word writes are refused.
func (b *Bootloader) ConfigLocked() bool {
	return b.configLocked
}

// SessionOpen reports whether a program session is in progress.
func (b *Bootloader) SessionOpen() bool {
	return b.session.open()
}

// Fault returns the error that halted the bootloader, if any.
func (b *Bootloader) Fault() error {
	return b.fault
}

// Geometry returns the memory geometry the bootloader serves.
func (b *Bootloader) Geometry() nvm.Geometry {
	return b.geom
}
