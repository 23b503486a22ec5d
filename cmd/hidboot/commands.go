package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/moffa90/go-hidboot/bootloader"
	"github.com/moffa90/go-hidboot/hexfile"
	"github.com/moffa90/go-hidboot/internal/config"
	"github.com/moffa90/go-hidboot/internal/logging"
	"github.com/moffa90/go-hidboot/protocol"
)

type command struct {
	name  string
	args  string
	nargs int
	help  string
	run   func(ctx context.Context, prog *bootloader.Programmer, out io.Writer, args []string) error
}

var commands = []command{
	{name: "query", help: "print the device memory layout and versions", run: runQuery},
	{name: "erase", help: "erase the application and user IDs", run: runErase},
	{name: "program", args: "<file.hex>", nargs: 1, help: "erase, write, verify, sign and reset", run: runProgram},
	{name: "verify", args: "<file.hex>", nargs: 1, help: "compare device memory with an image", run: runVerify},
	{name: "read", args: "<address> <length>", nargs: 2, help: "dump device memory", run: runRead},
	{name: "sign", help: "write the recovery signature", run: runSign},
	{name: "reset", help: "reset the device", run: runReset},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := lookup(args[0])
	if !ok || len(args)-1 != cmd.nargs {
		return errUsage
	}

	dev, err := openDevice(cfg, logger)
	if err != nil {
		return err
	}
	defer dev.Close()

	prog := bootloader.New(dev, programmerOptions(cfg, logger)...)
	return cmd.run(ctx, prog, os.Stdout, args[1:])
}

func programmerOptions(cfg *config.Config, logger *zap.Logger) []bootloader.Option {
	pc := cfg.Programmer
	return []bootloader.Option{
		bootloader.WithLogger(logging.Programmer(logger)),
		bootloader.WithProgressCallback(newProgressPrinter(os.Stderr).update),
		bootloader.WithTimeout(pc.Timeout),
		bootloader.WithChunkSize(pc.ChunkSize),
		bootloader.WithRetries(pc.Retries),
		bootloader.WithVerifyAfterProgram(pc.Verify),
		bootloader.WithCommandRate(pc.CommandRate),
		bootloader.WithConfigWords(pc.ConfigWords),
		bootloader.WithSkipBlank(pc.SkipBlank),
		bootloader.WithResetAfterProgram(pc.ResetAfterRun),
	}
}

func runQuery(ctx context.Context, prog *bootloader.Programmer, out io.Writer, _ []string) error {
	layout, err := prog.Query(ctx)
	if err != nil {
		return err
	}
	printLayout(out, layout)

	if !layout.SupportsExtendedInfo() {
		return nil
	}
	info, err := prog.QueryExtendedInfo(ctx)
	if err != nil {
		return err
	}
	printExtendedInfo(out, info)
	return nil
}

func printLayout(out io.Writer, layout *protocol.DeviceLayout) {
	fmt.Fprintf(out, "Packet data field: %d bytes, %d bytes per address\n", layout.DataFieldSize, layout.BytesPerAddress)
	for _, r := range layout.Regions {
		fmt.Fprintf(out, "  %-8s 0x%06X-0x%06X (%d bytes)\n", r.Type, r.Address, r.End()-1, r.Length)
	}
}

func printExtendedInfo(out io.Writer, info *protocol.ExtendedInfo) {
	fmt.Fprintf(out, "Bootloader version: %d.%02d\n", info.BootloaderMajor(), info.BootloaderMinor())
	fmt.Fprintf(out, "Application version: %d.%02d\n", byte(info.ApplicationVersion>>8), byte(info.ApplicationVersion))
	fmt.Fprintf(out, "Signature: 0x%04X at 0x%06X\n", info.SignatureValue, info.SignatureAddress)
	fmt.Fprintf(out, "Erase page: %d bytes\n", info.ErasePageSize)
}

func runErase(ctx context.Context, prog *bootloader.Programmer, out io.Writer, _ []string) error {
	if err := prog.Erase(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Erased")
	return nil
}

func runProgram(ctx context.Context, prog *bootloader.Programmer, out io.Writer, args []string) error {
	img, err := hexfile.Parse(args[0])
	if err != nil {
		return err
	}
	if err := prog.Program(ctx, img); err != nil {
		return err
	}
	fmt.Fprintf(out, "Programmed %d bytes from %s\n", img.Size(), args[0])
	return nil
}

func runVerify(ctx context.Context, prog *bootloader.Programmer, out io.Writer, args []string) error {
	img, err := hexfile.Parse(args[0])
	if err != nil {
		return err
	}
	if err := prog.Verify(ctx, img); err != nil {
		return err
	}
	fmt.Fprintln(out, "Verify OK")
	return nil
}

func runRead(ctx context.Context, prog *bootloader.Programmer, out io.Writer, args []string) error {
	addr, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", args[0], err)
	}
	n, err := strconv.ParseUint(args[1], 0, 16)
	if err != nil {
		return fmt.Errorf("invalid length %q: %w", args[1], err)
	}

	data, err := prog.Read(ctx, uint32(addr), int(n))
	if err != nil {
		return err
	}
	dumpAt(out, uint32(addr), data)
	return nil
}

// dumpAt prints data 16 bytes per line, labelled with device addresses.
func dumpAt(out io.Writer, addr uint32, data []byte) {
	for off := 0; off < len(data); off += 16 {
		end := min(off+16, len(data))
		fmt.Fprintf(out, "%06X  %s\n", addr+uint32(off), hex.EncodeToString(data[off:end]))
	}
}

func runSign(ctx context.Context, prog *bootloader.Programmer, out io.Writer, _ []string) error {
	if err := prog.Sign(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Signed")
	return nil
}

func runReset(ctx context.Context, prog *bootloader.Programmer, out io.Writer, _ []string) error {
	if err := prog.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Reset")
	return nil
}
