package sim

// Platform is a simulated processor. It records what the bootloader asks
// of it instead of acting on it.
type Platform struct {
	supplyLow     bool
	interruptsOff bool
	watchdog      int
	held          []error
	resets        int
}

// NewPlatform returns a platform with a healthy supply.
func NewPlatform() *Platform {
	return &Platform{}
}

// DisableInterrupts records that interrupts are off.
func (p *Platform) DisableInterrupts() { p.interruptsOff = true }

// EnableInterrupts records that interrupts are back on.
func (p *Platform) EnableInterrupts() { p.interruptsOff = false }

// SupplyOK reports whether the simulated supply is above the self-write threshold.
func (p *Platform) SupplyOK() bool { return !p.supplyLow }

// ClearWatchdog counts a watchdog clear.
func (p *Platform) ClearWatchdog() { p.watchdog++ }

// Hold records the reason. Real hardware would sleep until reset.
func (p *Platform) Hold(reason error) {
	p.held = append(p.held, reason)
}

// Reset records a processor reset.
func (p *Platform) Reset() {
	p.resets++
	p.interruptsOff = false
}

// SetSupplyOK simulates the supply rising above or dropping below the
// self-write threshold.
func (p *Platform) SetSupplyOK(ok bool) {
	p.supplyLow = !ok
}

// InterruptsEnabled reports the global interrupt state.
func (p *Platform) InterruptsEnabled() bool {
	return !p.interruptsOff
}

// WatchdogClears returns how often the watchdog was cleared.
func (p *Platform) WatchdogClears() int {
	return p.watchdog
}

// Held returns the reasons passed to Hold.
func (p *Platform) Held() []error {
	return append([]error(nil), p.held...)
}

// Resets returns the number of processor resets.
func (p *Platform) Resets() int {
	return p.resets
}
