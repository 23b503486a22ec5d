// Package nvm models the self-programmable non-volatile memory of the target.
//
// Geometry describes the memory layout. Controller is the register-level
// surface of the flash peripheral, and Unlocker is the only code allowed to
// commit an erase or write through it: it checks the supply, demands the
// capability token, services the watchdog and plays the unlock sequence.
//
// Memory is a Controller backed by word arrays, used by the simulator and
// by tests of everything above the primitive.
package nvm
