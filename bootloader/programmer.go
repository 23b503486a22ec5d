package bootloader

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/moffa90/go-hidboot/hexfile"
	"github.com/moffa90/go-hidboot/protocol"
)

// Programmer drives a HID flash bootloader from the host. It handles the
// complete update sequence including verification, signing and progress
// tracking.
//
// Programmer is safe for concurrent use after initialization; commands
// from different goroutines are serialized.
type Programmer struct {
	device  io.ReadWriter
	config  Config
	limiter *rate.Limiter
	mu      sync.Mutex
}

// New creates a new Programmer with the given device and options.
// The device must implement io.ReadWriter, one 64-byte report per call.
//
// Example:
//
//	usb, _ := transport.OpenUSBHID(gousb.NewContext(), "", time.Second)
//	prog := bootloader.New(usb,
//	    bootloader.WithProgressCallback(progressFunc),
//	    bootloader.WithTimeout(2*time.Minute),
//	)
func New(device io.ReadWriter, opts ...Option) *Programmer {
	if device == nil {
		panic("device cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	limit := rate.Inf
	if cfg.CommandRate > 0 {
		limit = rate.Limit(cfg.CommandRate)
	}

	return &Programmer{
		device:  device,
		config:  cfg,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Program performs the complete firmware update sequence:
//  1. Query the device memory layout
//  2. Check every image byte lies in a reported region
//  3. Erase the application and user IDs
//  4. Write program memory, user IDs and (optionally) config words
//  5. Read back and verify
//  6. Sign the image so the bootloader hands over on the next boot
//  7. Reset the device
//
// The operation can be cancelled via context.
//
// Example:
//
//	img, _ := hexfile.Parse("firmware.hex")
//	err := prog.Program(context.Background(), img)
func (p *Programmer) Program(ctx context.Context, img *hexfile.Image) error {
	if img == nil {
		return fmt.Errorf("image cannot be nil")
	}
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	run := &programRun{
		id:    uuid.New().String(),
		start: time.Now(),
	}

	// Phase 1: Query
	p.report(run, PhaseQuerying, 0, 0, 0)

	layout, err := p.Query(ctx)
	if err != nil {
		return fmt.Errorf("query device: %w", err)
	}
	program, ok := layout.Region(protocol.RegionProgram)
	if !ok {
		return &NoProgramRegionError{}
	}

	p.logDebug("device layout",
		"run_id", run.id,
		"program_start", fmt.Sprintf("0x%X", program.Address),
		"program_length", program.Length,
		"regions", len(layout.Regions),
	)

	if layout.SupportsExtendedInfo() {
		info, err := p.QueryExtendedInfo(ctx)
		if err != nil {
			return fmt.Errorf("query extended info: %w", err)
		}
		p.logDebug("bootloader info",
			"run_id", run.id,
			"bootloader_ver", fmt.Sprintf("%d.%02d", info.BootloaderMajor(), info.BootloaderMinor()),
			"app_ver", fmt.Sprintf("0x%04X", info.ApplicationVersion),
			"erase_page", info.ErasePageSize,
		)
	}

	// Phase 2: Plan
	plan, err := p.plan(img, layout)
	if err != nil {
		return err
	}
	run.totalChunks = plan.chunks(p.config.ChunkSize)
	p.logInfo("programming",
		"run_id", run.id,
		"bytes", plan.size(),
		"segments", len(plan.program.Segments)+len(plan.userID.Segments)+len(plan.config.Segments),
	)

	// Phase 3: Erase
	p.report(run, PhaseErasing, 2, 0, 0)
	if err := p.Erase(ctx); err != nil {
		return fmt.Errorf("erase: %w", err)
	}

	// Phase 4: Write
	p.report(run, PhaseProgramming, 5, 0, run.totalChunks)
	if err := p.writeImage(ctx, run, plan.program); err != nil {
		return fmt.Errorf("write program memory: %w", err)
	}
	if err := p.writeImage(ctx, run, plan.userID); err != nil {
		return fmt.Errorf("write user IDs: %w", err)
	}
	if !plan.config.Empty() {
		if err := p.writeConfig(ctx, run, plan.config); err != nil {
			return fmt.Errorf("write config words: %w", err)
		}
	}

	// Phase 5: Verify
	if p.config.VerifyAfterProgram {
		p.report(run, PhaseVerifying, 85, 0, 0)
		if err := p.Verify(ctx, plan.verify); err != nil {
			return fmt.Errorf("verify: %w", err)
		}
	}

	// Phase 6: Sign
	p.report(run, PhaseSigning, 95, run.chunks, run.totalChunks)
	if err := p.Sign(ctx); err != nil {
		return fmt.Errorf("sign: %w", err)
	}

	// Phase 7: Reset
	if p.config.ResetAfterProgram {
		p.report(run, PhaseResetting, 98, run.chunks, run.totalChunks)
		if err := p.Reset(ctx); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}

	p.report(run, PhaseComplete, 100, run.chunks, run.totalChunks)
	p.logInfo("programming complete",
		"run_id", run.id,
		"bytes", run.bytes,
		"elapsed", time.Since(run.start).String(),
	)
	return nil
}

// programRun tracks the progress of one Program call.
type programRun struct {
	id          string
	start       time.Time
	chunks      int
	totalChunks int
	bytes       int
}

// writePlan is the image split by destination.
type writePlan struct {
	program *hexfile.Image
	userID  *hexfile.Image
	config  *hexfile.Image
	verify  *hexfile.Image
}

func (w *writePlan) chunks(size int) int {
	return len(w.program.Chunks(size)) + len(w.userID.Chunks(size)) + len(w.config.Chunks(size))
}

func (w *writePlan) size() int {
	return w.program.Size() + w.userID.Size() + w.config.Size()
}

// plan checks the image against the layout and splits it by region.
func (p *Programmer) plan(img *hexfile.Image, layout *protocol.DeviceLayout) (*writePlan, error) {
	for _, s := range img.Segments {
		if err := checkCovered(s, layout.Regions); err != nil {
			return nil, err
		}
	}

	clip := func(t protocol.RegionType) *hexfile.Image {
		r, ok := layout.Region(t)
		if !ok {
			return &hexfile.Image{}
		}
		return img.Clip(r.Address, r.Length)
	}

	plan := &writePlan{
		program: clip(protocol.RegionProgram),
		userID:  clip(protocol.RegionUserID),
		config:  &hexfile.Image{},
	}
	plan.verify = &hexfile.Image{Segments: append(append([]hexfile.Segment(nil), plan.program.Segments...), plan.userID.Segments...)}

	if cfg := clip(protocol.RegionConfig); !cfg.Empty() {
		if p.config.ProgramConfig {
			plan.config = cfg
		} else {
			p.logInfo("skipping config words", "bytes", cfg.Size())
		}
	}
	if p.config.SkipBlank {
		plan.program = plan.program.SkipBlank(p.config.BlankWord, 1)
	}
	return plan, nil
}

// checkCovered reports the first part of s that no region contains.
func checkCovered(s hexfile.Segment, regions []protocol.Region) error {
	addr := s.Address
	for addr < s.End() {
		next := addr
		for _, r := range regions {
			if r.Contains(addr) {
				next = r.End()
				break
			}
		}
		if next == addr {
			return &RegionError{Address: addr, Length: int(s.End() - addr)}
		}
		addr = next
	}
	return nil
}

func (p *Programmer) writeImage(ctx context.Context, run *programRun, img *hexfile.Image) error {
	for _, s := range img.Segments {
		if err := p.write(ctx, s.Address, s.Data, func(n int) {
			run.chunks++
			run.bytes += n
			pct := 5 + float64(run.chunks)/float64(max(run.totalChunks, 1))*80
			p.report(run, PhaseProgramming, pct, run.chunks, run.totalChunks)
		}); err != nil {
			return fmt.Errorf("segment at 0x%X: %w", s.Address, err)
		}
	}
	return nil
}

func (p *Programmer) writeConfig(ctx context.Context, run *programRun, img *hexfile.Image) error {
	if err := p.UnlockConfig(ctx, true); err != nil {
		return err
	}
	err := p.writeImage(ctx, run, img)
	if lockErr := p.UnlockConfig(ctx, false); err == nil {
		err = lockErr
	}
	return err
}

// Query sends QUERY_DEVICE and returns the memory layout.
func (p *Programmer) Query(ctx context.Context) (*protocol.DeviceLayout, error) {
	var layout *protocol.DeviceLayout
	err := p.transact(ctx, protocol.BuildQueryDeviceCmd(), func(resp *protocol.Packet) error {
		var err error
		layout, err = protocol.ParseQueryDeviceResponse(resp)
		return err
	})
	return layout, err
}

// QueryExtendedInfo sends QUERY_EXTENDED_INFO. Only valid when the layout
// reports SupportsExtendedInfo.
func (p *Programmer) QueryExtendedInfo(ctx context.Context) (*protocol.ExtendedInfo, error) {
	var info *protocol.ExtendedInfo
	err := p.transact(ctx, protocol.BuildQueryExtendedInfoCmd(), func(resp *protocol.Packet) error {
		var err error
		info, err = protocol.ParseExtendedInfoResponse(resp)
		return err
	})
	return info, err
}

// UnlockConfig allows (unlock=true) or forbids configuration word writes.
func (p *Programmer) UnlockConfig(ctx context.Context, unlock bool) error {
	return p.send(ctx, protocol.BuildUnlockConfigCmd(unlock))
}

// Erase erases the application and the user IDs.
func (p *Programmer) Erase(ctx context.Context) error {
	p.logDebug("erasing device")
	return p.send(ctx, protocol.BuildEraseDeviceCmd())
}

// Write programs data at the byte address as one program session: as many
// PROGRAM_DEVICE packets as needed followed by PROGRAM_COMPLETE.
func (p *Programmer) Write(ctx context.Context, address uint32, data []byte) error {
	return p.write(ctx, address, data, nil)
}

func (p *Programmer) write(ctx context.Context, address uint32, data []byte, onChunk func(int)) error {
	if len(data) == 0 {
		return nil
	}

	seg := hexfile.Image{Segments: []hexfile.Segment{{Address: address, Data: data}}}
	for _, chunk := range seg.Chunks(p.config.ChunkSize) {
		cmd, err := protocol.BuildProgramDeviceCmd(chunk.Address, chunk.Data)
		if err != nil {
			return err
		}
		if err := p.send(ctx, cmd); err != nil {
			return fmt.Errorf("program 0x%X: %w", chunk.Address, err)
		}
		if onChunk != nil {
			onChunk(len(chunk.Data))
		}
	}
	return p.send(ctx, protocol.BuildProgramCompleteCmd())
}

// Read reads n bytes starting at the byte address.
//
// The device answers GET_DATA from the word containing the requested
// address, so every request starts on an even address and a leading odd
// byte is dropped from the reply.
func (p *Programmer) Read(ctx context.Context, address uint32, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		addr := address + uint32(len(out))
		lead := int(addr & 1)
		start := addr - uint32(lead)
		size := min(n-len(out)+lead, max(p.config.ChunkSize, 2))

		cmd, err := protocol.BuildGetDataCmd(start, size)
		if err != nil {
			return nil, err
		}
		err = p.transact(ctx, cmd, func(resp *protocol.Packet) error {
			rd, err := protocol.ParseGetDataResponse(resp)
			if err != nil {
				return err
			}
			if rd.Address != start || len(rd.Data) != size {
				return &protocol.ResponseError{
					Operation: "get data",
					Opcode:    protocol.OpGetData,
					Reason:    fmt.Sprintf("asked for %d bytes at 0x%X, got %d at 0x%X", size, start, len(rd.Data), rd.Address),
				}
			}
			out = append(out, rd.Data[lead:]...)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("read 0x%X: %w", addr, err)
		}
	}
	return out, nil
}

// Verify reads back every segment of img and compares it. Blank words in
// the image match the all-ones value the device reports for erased memory.
func (p *Programmer) Verify(ctx context.Context, img *hexfile.Image) error {
	for _, s := range img.Segments {
		got, err := p.Read(ctx, s.Address, len(s.Data))
		if err != nil {
			return err
		}
		for i := range s.Data {
			want := p.expected(s, i)
			if got[i] != want {
				return &VerificationError{
					Address:  s.Address + uint32(i),
					Expected: want,
					Actual:   got[i],
				}
			}
		}
	}
	return nil
}

// expected returns the byte a readback should produce at index i of s.
func (p *Programmer) expected(s hexfile.Segment, i int) byte {
	addr := s.Address + uint32(i)
	if addr%2 == 0 || i == 0 {
		return s.Data[i]
	}
	word := uint16(s.Data[i])<<8 | uint16(s.Data[i-1])
	if word == p.config.BlankWord {
		return 0xFF
	}
	return s.Data[i]
}

// Sign writes the recovery signature. Send it only after the image has
// been verified: a signed device boots the application.
func (p *Programmer) Sign(ctx context.Context) error {
	return p.send(ctx, protocol.BuildSignFlashCmd())
}

// Reset resets the device. It has no response; the device drops off the
// bus and re-enumerates.
func (p *Programmer) Reset(ctx context.Context) error {
	return p.send(ctx, protocol.BuildResetDeviceCmd())
}

// send writes a command that has no response.
func (p *Programmer) send(ctx context.Context, cmd protocol.Packet) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.writePacket(ctx, cmd)
}

func (p *Programmer) writePacket(ctx context.Context, cmd protocol.Packet) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cancelled: %w", err)
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("cancelled: %w", err)
	}
	if _, err := p.device.Write(cmd[:]); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

// transact writes a command, reads one report and hands it to parse.
// Failed attempts are retried up to Retries times.
func (p *Programmer) transact(ctx context.Context, cmd protocol.Packet, parse func(*protocol.Packet) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= p.config.Retries; attempt++ {
		if attempt > 0 {
			p.logDebug("retrying command",
				"opcode", cmd.Opcode().String(),
				"attempt", attempt,
				"error", lastErr.Error(),
			)
		}
		if err := p.writePacket(ctx, cmd); err != nil {
			if ctx.Err() != nil {
				return err
			}
			lastErr = err
			continue
		}

		var resp protocol.Packet
		if _, err := p.device.Read(resp[:]); err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}
		if err := parse(&resp); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	p.logError("command failed",
		"opcode", cmd.Opcode().String(),
		"attempts", p.config.Retries+1,
		"error", lastErr.Error(),
	)
	return lastErr
}

// report calls the progress callback if configured.
func (p *Programmer) report(run *programRun, phase string, pct float64, chunk, total int) {
	if p.config.ProgressCallback == nil {
		return
	}
	p.config.ProgressCallback(Progress{
		Phase:        phase,
		RunID:        run.id,
		CurrentChunk: chunk,
		TotalChunks:  total,
		Percentage:   pct,
		BytesWritten: run.bytes,
		ElapsedTime:  time.Since(run.start),
	})
}

// logDebug logs a debug message if a logger is configured.
func (p *Programmer) logDebug(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (p *Programmer) logInfo(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (p *Programmer) logError(msg string, keysAndValues ...interface{}) {
	if p.config.Logger != nil {
		p.config.Logger.Error(msg, keysAndValues...)
	}
}
