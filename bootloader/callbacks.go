package bootloader

import "time"

// Programming phases reported through Progress.Phase.
const (
	PhaseQuerying    = "querying"
	PhaseErasing     = "erasing"
	PhaseProgramming = "programming"
	PhaseVerifying   = "verifying"
	PhaseSigning     = "signing"
	PhaseResetting   = "resetting"
	PhaseComplete    = "complete"
)

// Progress contains information about the programming progress.
// Passed to ProgressCallback during programming operations.
type Progress struct {
	// Phase is one of the Phase constants
	Phase string

	// RunID identifies the Program call
	RunID string

	// CurrentChunk is the number of packets written or read so far in this phase
	CurrentChunk int

	// TotalChunks is the number of packets this phase needs
	TotalChunks int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// BytesWritten is the total number of bytes written so far
	BytesWritten int

	// ElapsedTime is the time elapsed since programming started
	ElapsedTime time.Duration
}

// ProgressCallback is called periodically during programming to report progress.
// Implementations should return quickly to avoid blocking the programming operation.
//
// Example:
//
//	prog := bootloader.New(device,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("[%s] %.1f%% - %d/%d\n",
//	            p.Phase, p.Percentage, p.CurrentChunk, p.TotalChunks)
//	    }),
//	)
type ProgressCallback func(Progress)

// Logger is an optional logging interface that can be provided to the programmer.
// This allows integration with any logging framework; internal/logging adapts zap.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
