package bootloader

import (
	"time"

	"github.com/moffa90/go-hidboot/protocol"
)

// Config holds the programmer configuration.
type Config struct {
	// ProgressCallback is called during programming to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// Timeout bounds a whole Program call (0 = no limit)
	Timeout time.Duration

	// ChunkSize is the maximum payload per PROGRAM_DEVICE or GET_DATA packet
	ChunkSize int

	// Retries is the number of extra attempts for commands that expect a response
	Retries int

	// VerifyAfterProgram enables readback verification before signing
	VerifyAfterProgram bool

	// CommandRate limits commands per second (0 = unlimited)
	CommandRate float64

	// ProgramConfig enables writing configuration words from the image
	ProgramConfig bool

	// SkipBlank leaves runs of erased words out of the write
	SkipBlank bool

	// BlankWord is the value of an erased word on the target
	BlankWord uint16

	// ResetAfterProgram sends RESET_DEVICE once the image is signed
	ResetAfterProgram bool
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Timeout:            5 * time.Minute,
		ChunkSize:          protocol.DataFieldSize,
		Retries:            3,
		VerifyAfterProgram: true,
		SkipBlank:          true,
		BlankWord:          0x3FFF,
		ResetAfterProgram:  true,
	}
}

// Option is a functional option for configuring the Programmer.
type Option func(*Config)

// WithProgressCallback sets a callback function to track programming progress.
//
// Example:
//
//	prog := bootloader.New(device,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for the programmer operations.
//
// Example:
//
//	prog := bootloader.New(device, bootloader.WithLogger(logging.Programmer(zapLogger)))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithTimeout bounds a whole Program call.
//
// Example:
//
//	prog := bootloader.New(device, bootloader.WithTimeout(2*time.Minute))
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout >= 0 {
			c.Timeout = timeout
		}
	}
}

// WithChunkSize sets the maximum payload per packet.
// Values above the 58-byte data field are ignored.
//
// Example:
//
//	prog := bootloader.New(device, bootloader.WithChunkSize(32))
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size <= protocol.DataFieldSize {
			c.ChunkSize = size
		}
	}
}

// WithRetries sets the number of retry attempts for commands that expect a response.
//
// Example:
//
//	prog := bootloader.New(device, bootloader.WithRetries(5))
func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries >= 0 {
			c.Retries = retries
		}
	}
}

// WithVerifyAfterProgram enables or disables readback verification.
// Default is true.
func WithVerifyAfterProgram(verify bool) Option {
	return func(c *Config) {
		c.VerifyAfterProgram = verify
	}
}

// WithCommandRate limits how many commands per second are sent. Slow
// bridges that drop back-to-back packets need this.
//
// Example:
//
//	prog := bootloader.New(device, bootloader.WithCommandRate(500))
func WithCommandRate(perSecond float64) Option {
	return func(c *Config) {
		if perSecond >= 0 {
			c.CommandRate = perSecond
		}
	}
}

// WithConfigWords enables programming configuration words from the image.
// Default is false: config words in the image are skipped.
func WithConfigWords(enable bool) Option {
	return func(c *Config) {
		c.ProgramConfig = enable
	}
}

// WithSkipBlank controls whether runs of erased words are left out of the write.
// Default is true.
func WithSkipBlank(skip bool) Option {
	return func(c *Config) {
		c.SkipBlank = skip
	}
}

// WithBlankWord sets the erased word value of the target. Default is 0x3FFF.
func WithBlankWord(word uint16) Option {
	return func(c *Config) {
		c.BlankWord = word
	}
}

// WithResetAfterProgram controls whether Program resets the device at the end.
// Default is true.
func WithResetAfterProgram(reset bool) Option {
	return func(c *Config) {
		c.ResetAfterProgram = reset
	}
}
