package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/moffa90/go-hidboot/bootloader"
)

const barWidth = 40

type progressPrinter struct {
	out   io.Writer
	phase string
}

func newProgressPrinter(out io.Writer) *progressPrinter {
	return &progressPrinter{out: out}
}

func renderBar(percentage float64) string {
	filled := int(barWidth * percentage / 100.0)
	filled = max(0, min(filled, barWidth))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", barWidth-filled) + "]"
}

func (p *progressPrinter) update(pr bootloader.Progress) {
	if pr.Phase != p.phase {
		if p.phase != "" {
			fmt.Fprintln(p.out)
		}
		p.phase = pr.Phase
	}
	fmt.Fprintf(p.out, "\r%-12s %s %5.1f%% %6d bytes %s",
		pr.Phase, renderBar(pr.Percentage), pr.Percentage, pr.BytesWritten, pr.ElapsedTime.Round(time.Millisecond))
	if pr.Phase == bootloader.PhaseComplete {
		fmt.Fprintln(p.out)
	}
}
